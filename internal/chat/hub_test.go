package chat_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"pro-chat/internal/chat"
)

func newHubFixture(t *testing.T) (*chat.Hub, *routerFixture) {
	t.Helper()
	fx := newRouterFixture(t)
	hub := chat.NewHub("instance-test", fx.presence, fx.router, fx.events, fx.store, nil)
	go hub.Run()
	return hub, fx
}

// waitEvent blocks until an event of the wanted type arrives on c, failing
// the test after a deadline. Other event types are discarded.
func waitEvent(t *testing.T, c *chat.Client, typ string) anyEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				t.Fatalf("channel %s closed while waiting for %q", c.ChannelID, typ)
			}
			var e anyEvent
			if err := json.Unmarshal(data, &e); err != nil {
				t.Fatalf("undecodable event %q: %v", data, err)
			}
			if e.Type == typ {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q on channel %s", typ, c.ChannelID)
		}
	}
}

func waitClosed(t *testing.T, c *chat.Client) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.Send:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("channel %s was not closed", c.ChannelID)
		}
	}
}

func TestConnectPushesCurrentUnreadCount(t *testing.T) {
	hub, fx := newHubFixture(t)

	fx.store.seed(chat.Message{Sender: prov3, Receiver: req7, Content: "a", Kind: chat.KindText})
	fx.store.seed(chat.Message{Sender: prov3, Receiver: req7, Content: "b", Kind: chat.KindText})

	c := newTestClient(req7, "chan-1")
	hub.Register <- c

	e := waitEvent(t, c, chat.EventUnread)
	if e.Count != 2 {
		t.Fatalf("expected unread count 2 on connect, got %d", e.Count)
	}
}

func TestSecondConnectionStealsDelivery(t *testing.T) {
	hub, fx := newHubFixture(t)

	a := newTestClient(req7, "chan-a")
	b := newTestClient(req7, "chan-b")
	hub.Register <- a
	waitEvent(t, a, chat.EventUnread)
	hub.Register <- b
	waitEvent(t, b, chat.EventUnread)

	// The superseded channel is shut down.
	waitClosed(t, a)

	if got, ok := fx.presence.Lookup(req7); !ok || got != b {
		t.Fatal("newest channel must own delivery")
	}

	// The stale tab's disconnect arrives afterwards and changes nothing.
	hub.Unregister <- a
	time.Sleep(50 * time.Millisecond)
	if got, ok := fx.presence.Lookup(req7); !ok || got != b {
		t.Fatal("stale disconnect must not evict the newer channel")
	}
}

func TestNotifyRacingDisconnectIsDropped(t *testing.T) {
	hub, fx := newHubFixture(t)

	c := newTestClient(req7, "chan-x")
	hub.Register <- c
	waitEvent(t, c, chat.EventUnread)

	hub.Unregister <- c
	waitClosed(t, c)

	// Notifications in flight while the channel tears down are dropped,
	// never a crash.
	fx.events.NotifyUnreadCount(req7, 1)
	fx.events.NotifyRefresh(req7)
}

func TestDisconnectBroadcastsOffline(t *testing.T) {
	hub, _ := newHubFixture(t)

	observer := newTestClient(prov3, "chan-obs")
	hub.Register <- observer
	waitEvent(t, observer, chat.EventUnread)

	c := newTestClient(req7, "chan-c")
	hub.Register <- c
	e := waitEvent(t, observer, chat.EventPresence)
	if e.Who == nil || *e.Who != req7 || !e.Online {
		t.Fatalf("expected online broadcast for %s, got %+v", req7, e)
	}

	hub.Unregister <- c
	e = waitEvent(t, observer, chat.EventPresence)
	if e.Who == nil || *e.Who != req7 || e.Online {
		t.Fatalf("expected offline broadcast for %s, got %+v", req7, e)
	}
}

func TestSendFrameDeliversAndAcks(t *testing.T) {
	hub, fx := newHubFixture(t)

	sender := newTestClient(req7, "chan-s")
	receiver := newTestClient(prov3, "chan-r")
	hub.Register <- sender
	waitEvent(t, sender, chat.EventUnread)
	hub.Register <- receiver
	waitEvent(t, receiver, chat.EventUnread)

	hub.Frames <- &chat.InboundFrame{
		Client: sender,
		Frame:  chat.Frame{Type: "send", Receiver: prov3, Content: "hello"},
	}

	got := waitEvent(t, receiver, chat.EventMessage)
	if got.Message == nil || got.Message.Content != "hello" {
		t.Fatalf("receiver expected the message, got %+v", got)
	}

	ack := waitEvent(t, sender, chat.EventAck)
	if ack.Message == nil || ack.Message.Content != "hello" || !ack.Delivered {
		t.Fatalf("sender expected a delivered ack, got %+v", ack)
	}

	// And the durable copy exists regardless.
	page, err := fx.store.MessagesBetween(context.Background(), req7, prov3, 50, 0)
	if err != nil || len(page) != 1 {
		t.Fatalf("expected one persisted message, got %d (err=%v)", len(page), err)
	}
}

func TestSendFrameFailureReportsNotSent(t *testing.T) {
	hub, fx := newHubFixture(t)

	sender := newTestClient(req7, "chan-s")
	hub.Register <- sender
	waitEvent(t, sender, chat.EventUnread)

	fx.store.failNext = errStoreDown
	hub.Frames <- &chat.InboundFrame{
		Client: sender,
		Frame:  chat.Frame{Type: "send", Receiver: prov3, Content: "doomed"},
	}

	e := waitEvent(t, sender, chat.EventError)
	if e.Error == "" {
		t.Fatalf("expected a user-visible failure message, got %+v", e)
	}
}

func TestTypingFrameForwarded(t *testing.T) {
	hub, _ := newHubFixture(t)

	sender := newTestClient(req7, "chan-s")
	receiver := newTestClient(prov3, "chan-r")
	hub.Register <- sender
	waitEvent(t, sender, chat.EventUnread)
	hub.Register <- receiver
	waitEvent(t, receiver, chat.EventUnread)

	hub.Frames <- &chat.InboundFrame{
		Client: sender,
		Frame:  chat.Frame{Type: "typing", Receiver: prov3},
	}

	e := waitEvent(t, receiver, chat.EventTyping)
	if e.From == nil || *e.From != req7 || !e.Typing {
		t.Fatalf("expected typing event from %s, got %+v", req7, e)
	}
}
