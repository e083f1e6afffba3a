package chat_test

import (
	"context"
	"fmt"
	"testing"

	"pro-chat/internal/chat"
)

// Unread accounting across the send/mark-read flow.

func TestMarkReadIsIdempotent(t *testing.T) {
	fx := newRouterFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := fx.router.Send(ctx, chat.Outbound{
			Sender: req7, Receiver: prov3, Content: fmt.Sprintf("msg %d", i),
		}); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}

	flipped, err := fx.store.MarkRead(ctx, prov3, req7)
	if err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if flipped != 3 {
		t.Fatalf("expected 3 rows flipped, got %d", flipped)
	}

	again, err := fx.store.MarkRead(ctx, prov3, req7)
	if err != nil {
		t.Fatalf("second MarkRead failed: %v", err)
	}
	if again != 0 {
		t.Fatalf("second MarkRead must flip 0 rows, got %d", again)
	}
}

func TestUnreadCountTracksSendsAndReads(t *testing.T) {
	fx := newRouterFixture(t)
	ctx := context.Background()

	const n = 5
	for i := 0; i < n; i++ {
		if _, _, err := fx.router.Send(ctx, chat.Outbound{
			Sender: req7, Receiver: prov3, Content: fmt.Sprintf("msg %d", i),
		}); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}

	count, err := fx.store.UnreadCount(ctx, prov3)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != n {
		t.Fatalf("expected %d unread, got %d", n, count)
	}

	if _, err := fx.store.MarkRead(ctx, prov3, req7); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	count, err = fx.store.UnreadCount(ctx, prov3)
	if err != nil {
		t.Fatalf("UnreadCount after read failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 unread after mark-read, got %d", count)
	}
}

func TestMarkReadScopedToOnePartner(t *testing.T) {
	fx := newRouterFixture(t)
	fx.lookup.add(prov9, "Carol")
	ctx := context.Background()

	if _, _, err := fx.router.Send(ctx, chat.Outbound{Sender: prov3, Receiver: req7, Content: "from bob"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if _, _, err := fx.router.Send(ctx, chat.Outbound{Sender: prov9, Receiver: req7, Content: "from carol"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if _, err := fx.store.MarkRead(ctx, req7, prov3); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	count, err := fx.store.UnreadCount(ctx, req7)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("only bob's messages are read; expected 1 unread from carol, got %d", count)
	}
}
