package chat

import (
	"context"
	"fmt"

	"pro-chat/internal/identity"
)

// Guard authorizes REST access to a conversation. It must run before any
// store query or mutation reachable from an external request; the socket
// path skips it because the channel's identity is already authenticated.
type Guard struct {
	store  Store
	lookup Lookup
}

func NewGuard(store Store, lookup Lookup) *Guard {
	return &Guard{store: store, lookup: lookup}
}

// Authorize allows the pair if any message already exists between them, or
// if the partner resolves in the directory (starting a brand-new
// conversation is fine). Everything else is ErrPartnerNotFound.
func (g *Guard) Authorize(ctx context.Context, owner, partner identity.Participant) error {
	if !partner.Valid() {
		return ErrPartnerNotFound
	}

	exists, err := g.store.HasConversation(ctx, owner, partner)
	if err != nil {
		return fmt.Errorf("check conversation: %w", err)
	}
	if exists {
		return nil
	}

	_, ok, err := g.lookup.Resolve(ctx, partner)
	if err != nil {
		return fmt.Errorf("resolve partner: %w", err)
	}
	if !ok {
		return ErrPartnerNotFound
	}
	return nil
}
