package chat_test

import (
	"context"
	"errors"
	"testing"

	"pro-chat/internal/chat"
	"pro-chat/internal/identity"
)

func newGuardFixture(t *testing.T) (*chat.Guard, *memStore, *fakeLookup) {
	t.Helper()
	store := newMemStore()
	lookup := newFakeLookup()
	return chat.NewGuard(store, lookup), store, lookup
}

func TestGuardAllowsExistingConversation(t *testing.T) {
	guard, store, _ := newGuardFixture(t)
	store.seed(chat.Message{Sender: prov3, Receiver: req7, Content: "hi", Kind: chat.KindText})

	// Partner no longer resolves, but the history exists.
	if err := guard.Authorize(context.Background(), req7, prov3); err != nil {
		t.Fatalf("existing conversation must be allowed: %v", err)
	}
}

func TestGuardAllowsNewConversationWithResolvablePartner(t *testing.T) {
	guard, _, lookup := newGuardFixture(t)
	lookup.add(prov3, "Bob")

	if err := guard.Authorize(context.Background(), req7, prov3); err != nil {
		t.Fatalf("resolvable partner must be allowed: %v", err)
	}
}

func TestGuardDeniesUnknownPartner(t *testing.T) {
	guard, _, _ := newGuardFixture(t)

	err := guard.Authorize(context.Background(), req7, prov3)
	if !errors.Is(err, chat.ErrPartnerNotFound) {
		t.Fatalf("expected ErrPartnerNotFound, got %v", err)
	}
}

func TestGuardDeniesMalformedPartner(t *testing.T) {
	guard, _, _ := newGuardFixture(t)

	err := guard.Authorize(context.Background(), req7, identity.Participant{Class: "admin", ID: 1})
	if !errors.Is(err, chat.ErrPartnerNotFound) {
		t.Fatalf("expected ErrPartnerNotFound for bad class, got %v", err)
	}
}

func TestGuardSurfacesLookupFailure(t *testing.T) {
	guard, _, lookup := newGuardFixture(t)
	lookup.err = errStoreDown

	err := guard.Authorize(context.Background(), req7, prov3)
	if err == nil || errors.Is(err, chat.ErrPartnerNotFound) {
		t.Fatalf("transient lookup failure must not read as not-found, got %v", err)
	}
}
