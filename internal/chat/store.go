package chat

import (
	"context"

	"pro-chat/internal/identity"
)

// Store is the durable message log. The Postgres repository implements it;
// tests substitute an in-memory version.
type Store interface {
	// Append persists a message, assigning id and timestamp.
	Append(ctx context.Context, m Message) (Message, error)

	// MessagesBetween returns one page of the conversation between a and b,
	// oldest first within the page. Offset 0 is the newest page.
	MessagesBetween(ctx context.Context, a, b identity.Participant, limit, offset int) ([]Message, error)

	// MessagesInvolving returns every message where owner is sender or
	// receiver. Input for the conversation aggregation.
	MessagesInvolving(ctx context.Context, owner identity.Participant) ([]Message, error)

	// MarkRead flips unread messages from partner to owner and reports how
	// many rows changed. Idempotent: a second call reports 0.
	MarkRead(ctx context.Context, owner, partner identity.Participant) (int64, error)

	// DeleteConversation removes the full bidirectional slice between a and b.
	DeleteConversation(ctx context.Context, a, b identity.Participant) error

	// UnreadCount is the number of messages addressed to owner still unread.
	UnreadCount(ctx context.Context, owner identity.Participant) (int, error)

	// HasConversation reports whether any message exists between a and b.
	HasConversation(ctx context.Context, a, b identity.Participant) (bool, error)
}

// Lookup is the external participant directory. ok=false means the identity
// does not exist; err means the lookup itself failed.
type Lookup interface {
	Resolve(ctx context.Context, p identity.Participant) (name string, ok bool, err error)
}
