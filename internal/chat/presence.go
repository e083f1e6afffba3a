package chat

import (
	"sync"
	"time"

	"pro-chat/internal/identity"
)

// Registry tracks which participants currently hold a live channel. It is
// the only shared mutable state in the core and lives purely in process
// memory: a restart starts empty, which is fine because presence is a
// point-in-time fact.
//
// At most one entry exists per identity. Register replaces; the newest
// channel is authoritative. Always an injected instance, never a package
// global, so tests can run several registries side by side.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*presenceEntry
}

type presenceEntry struct {
	client   *Client
	lastSeen time.Time
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*presenceEntry)}
}

// Register makes c the authoritative channel for its identity and returns
// the channel it displaced, if any.
func (r *Registry) Register(c *Client) (displaced *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := c.Identity.Key()
	if old, ok := r.entries[key]; ok && old.client != c {
		displaced = old.client
	}
	r.entries[key] = &presenceEntry{client: c, lastSeen: time.Now()}
	return displaced
}

// Unregister removes the entry for c's identity only if c is still the
// registered channel. A stale disconnect from a superseded channel cannot
// evict a newer registration. Reports whether an entry was removed.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := c.Identity.Key()
	if cur, ok := r.entries[key]; ok && cur.client == c {
		delete(r.entries, key)
		return true
	}
	return false
}

// Lookup returns the live channel for an identity, if any.
func (r *Registry) Lookup(p identity.Participant) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[p.Key()]
	if !ok {
		return nil, false
	}
	return e.client, true
}

// Touch refreshes the liveness timestamp for c if it is still registered.
func (r *Registry) Touch(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.entries[c.Identity.Key()]; ok && cur.client == c {
		cur.lastSeen = time.Now()
	}
}

// Clients snapshots every registered channel, for presence fan-out.
func (r *Registry) Clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Client, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.client)
	}
	return out
}

// Stale returns channels idle longer than maxIdle. It does not remove them;
// callers run the normal unregister path so lifecycle stays in one place.
func (r *Registry) Stale(maxIdle time.Duration) []*Client {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Client
	for _, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			out = append(out, e.client)
		}
	}
	return out
}
