package chat

import (
	"context"
	"log"
	"sort"

	"pro-chat/internal/identity"
)

// placeholderName stands in for partners that no longer resolve in the
// directory. One deleted account must not break the whole listing.
const placeholderName = "Deleted account"

// Aggregator derives conversation summaries from the flat message log. It
// is a pure recompute on every call: the log is the source of truth and
// there is no summary state to drift out of sync.
type Aggregator struct {
	store  Store
	lookup Lookup
}

func NewAggregator(store Store, lookup Lookup) *Aggregator {
	return &Aggregator{store: store, lookup: lookup}
}

// Conversations lists one summary per distinct partner the owner has
// exchanged messages with, newest activity first. Partitioning over the
// union of sent and received messages means a conversation shows up for
// both classes even when it is a single unreciprocated inbound message.
func (a *Aggregator) Conversations(ctx context.Context, owner identity.Participant) ([]ConversationSummary, error) {
	messages, err := a.store.MessagesInvolving(ctx, owner)
	if err != nil {
		return nil, err
	}

	type partition struct {
		summary ConversationSummary
		lastID  int
	}
	parts := make(map[string]*partition)

	for _, m := range messages {
		partner := m.Sender
		if partner == owner {
			partner = m.Receiver
		}

		p, ok := parts[partner.Key()]
		if !ok {
			p = &partition{summary: ConversationSummary{Partner: partner}}
			parts[partner.Key()] = p
		}

		if m.CreatedAt.After(p.summary.LastMessageAt) ||
			(m.CreatedAt.Equal(p.summary.LastMessageAt) && m.ID > p.lastID) {
			p.summary.LastMessage = m.Content
			p.summary.LastMessageAt = m.CreatedAt
			p.lastID = m.ID
		}
		if m.Receiver == owner && !m.Read {
			p.summary.UnreadCount++
		}
	}

	summaries := make([]ConversationSummary, 0, len(parts))
	ids := make(map[string]int, len(parts))
	for key, p := range parts {
		p.summary.PartnerName = a.resolveName(ctx, p.summary.Partner)
		summaries = append(summaries, p.summary)
		ids[key] = p.lastID
	}

	sort.Slice(summaries, func(i, j int) bool {
		si, sj := summaries[i], summaries[j]
		if !si.LastMessageAt.Equal(sj.LastMessageAt) {
			return si.LastMessageAt.After(sj.LastMessageAt)
		}
		return ids[si.Partner.Key()] > ids[sj.Partner.Key()]
	})
	return summaries, nil
}

func (a *Aggregator) resolveName(ctx context.Context, p identity.Participant) string {
	name, ok, err := a.lookup.Resolve(ctx, p)
	if err != nil {
		log.Printf("resolve %s for listing: %v", p, err)
		return placeholderName
	}
	if !ok {
		return placeholderName
	}
	return name
}
