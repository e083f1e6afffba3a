package chat_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pro-chat/internal/chat"
	"pro-chat/internal/identity"
)

// memStore is an in-memory chat.Store with the same semantics as the
// Postgres repository, so the router, aggregator and guard can be exercised
// without a database.
type memStore struct {
	mu       sync.Mutex
	nextID   int
	rows     []chat.Message
	failNext error
}

func newMemStore() *memStore {
	return &memStore{}
}

func (s *memStore) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

func (s *memStore) Append(ctx context.Context, m chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return chat.Message{}, err
	}

	s.nextID++
	m.ID = s.nextID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.Read = false
	s.rows = append(s.rows, m)
	return m, nil
}

// seed inserts a row keeping the caller's CreatedAt and Read flag, for
// tests that need controlled timestamps.
func (s *memStore) seed(m chat.Message) chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.rows = append(s.rows, m)
	return m
}

func samePair(m chat.Message, a, b identity.Participant) bool {
	return (m.Sender == a && m.Receiver == b) || (m.Sender == b && m.Receiver == a)
}

func (s *memStore) MessagesBetween(ctx context.Context, a, b identity.Participant, limit, offset int) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var newest []chat.Message
	for i := len(s.rows) - 1; i >= 0; i-- {
		if samePair(s.rows[i], a, b) {
			newest = append(newest, s.rows[i])
		}
	}
	if offset >= len(newest) {
		return nil, nil
	}
	newest = newest[offset:]
	if len(newest) > limit {
		newest = newest[:limit]
	}

	// Oldest first within the page.
	out := make([]chat.Message, 0, len(newest))
	for i := len(newest) - 1; i >= 0; i-- {
		out = append(out, newest[i])
	}
	return out, nil
}

func (s *memStore) MessagesInvolving(ctx context.Context, owner identity.Participant) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	var out []chat.Message
	for _, m := range s.rows {
		if m.Sender == owner || m.Receiver == owner {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) MarkRead(ctx context.Context, owner, partner identity.Participant) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return 0, err
	}

	var flipped int64
	for i := range s.rows {
		m := &s.rows[i]
		if m.Receiver == owner && m.Sender == partner && !m.Read {
			m.Read = true
			flipped++
		}
	}
	return flipped, nil
}

func (s *memStore) DeleteConversation(ctx context.Context, a, b identity.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}

	kept := s.rows[:0]
	for _, m := range s.rows {
		if !samePair(m, a, b) {
			kept = append(kept, m)
		}
	}
	s.rows = kept
	return nil
}

func (s *memStore) UnreadCount(ctx context.Context, owner identity.Participant) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return 0, err
	}

	count := 0
	for _, m := range s.rows {
		if m.Receiver == owner && !m.Read {
			count++
		}
	}
	return count, nil
}

func (s *memStore) HasConversation(ctx context.Context, a, b identity.Participant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return false, err
	}

	for _, m := range s.rows {
		if samePair(m, a, b) {
			return true, nil
		}
	}
	return false, nil
}

// fakeLookup is an in-memory directory.
type fakeLookup struct {
	mu    sync.Mutex
	names map[string]string
	err   error
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{names: make(map[string]string)}
}

func (l *fakeLookup) add(p identity.Participant, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names[p.Key()] = name
}

func (l *fakeLookup) remove(p identity.Participant) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.names, p.Key())
}

func (l *fakeLookup) Resolve(ctx context.Context, p identity.Participant) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", false, l.err
	}
	name, ok := l.names[p.Key()]
	return name, ok, nil
}

// fakePublisher records relayed envelopes instead of talking to Redis.
type fakePublisher struct {
	mu        sync.Mutex
	published [][]byte
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := message.([]byte); ok {
		cp := make([]byte, len(b))
		copy(cp, b)
		f.published = append(f.published, cp)
	}
	return redis.NewIntResult(1, nil)
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

var errStoreDown = errors.New("store down")
