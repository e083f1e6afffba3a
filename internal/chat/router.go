package chat

import (
	"context"
	"fmt"
	"log"

	"pro-chat/internal/identity"
)

// Router turns an outbound message into a durable row plus best-effort live
// notifications. The two phases are strictly ordered: persistence always
// completes first, so a failed or skipped live push can never lose the
// message.
type Router struct {
	store    Store
	lookup   Lookup
	presence *Registry
	events   *Broadcaster
}

func NewRouter(store Store, lookup Lookup, presence *Registry, events *Broadcaster) *Router {
	return &Router{
		store:    store,
		lookup:   lookup,
		presence: presence,
		events:   events,
	}
}

func (rt *Router) validate(out Outbound) error {
	if !out.Sender.Valid() || !out.Receiver.Valid() {
		return fmt.Errorf("malformed participant identity")
	}
	if out.Sender == out.Receiver {
		return fmt.Errorf("cannot message yourself")
	}
	switch out.Kind {
	case KindText:
		if out.Content == "" {
			return fmt.Errorf("empty message")
		}
	case KindFile:
		if out.FileRef == "" {
			return fmt.Errorf("file message without file reference")
		}
	default:
		return fmt.Errorf("unknown message kind %q", out.Kind)
	}
	return nil
}

// Send persists the message and attempts live delivery. The returned bool
// reports whether the receiver's channel got a local push; false only means
// the receiver will pick the message up from the store on its next fetch.
func (rt *Router) Send(ctx context.Context, out Outbound) (Message, bool, error) {
	if out.Kind == "" {
		out.Kind = KindText
	}
	if err := rt.validate(out); err != nil {
		return Message{}, false, err
	}

	// Phase 0: the receiver must exist. Rejected before anything persists.
	_, ok, err := rt.lookup.Resolve(ctx, out.Receiver)
	if err != nil {
		return Message{}, false, fmt.Errorf("resolve recipient: %w", err)
	}
	if !ok {
		return Message{}, false, ErrUnknownRecipient
	}

	// Phase 1: durable write. A failure here surfaces to the caller as
	// "not sent" — nothing below runs.
	persisted, err := rt.store.Append(ctx, Message{
		Sender:   out.Sender,
		Receiver: out.Receiver,
		Content:  out.Content,
		Kind:     out.Kind,
		FileRef:  out.FileRef,
		FileName: out.FileName,
		FileSize: out.FileSize,
	})
	if err != nil {
		return Message{}, false, err
	}

	// Phase 2: best-effort live notifications. Nothing from here on can
	// fail the send.
	delivered := rt.notifyReceiver(ctx, persisted)
	rt.notifySender(persisted, delivered)
	return persisted, delivered, nil
}

func (rt *Router) notifyReceiver(ctx context.Context, m Message) bool {
	delivered := rt.events.deliver(m.Receiver, messageEvent{Type: EventMessage, Message: &m})
	rt.events.NotifyRefresh(m.Receiver)

	count, err := rt.store.UnreadCount(ctx, m.Receiver)
	if err != nil {
		log.Printf("unread count for %s after send: %v", m.Receiver, err)
		return delivered
	}
	rt.events.NotifyUnreadCount(m.Receiver, count)
	return delivered
}

// notifySender acks the persisted message back on the sender's own channel,
// if the sender is connected, so every open tab converges.
func (rt *Router) notifySender(m Message, delivered bool) {
	if c, ok := rt.presence.Lookup(m.Sender); ok {
		c.push(ackEvent{Type: EventAck, Message: &m, Delivered: delivered})
		c.push(refreshEvent{Type: EventRefresh})
	}
}

// Typing forwards a typing start/stop to the receiver. No persistence, no
// validation beyond a well-formed pair.
func (rt *Router) Typing(from, to identity.Participant, typing bool) {
	if !from.Valid() || !to.Valid() {
		return
	}
	rt.events.NotifyTyping(to, from, typing)
}
