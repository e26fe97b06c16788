package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/doorman/pkg/domain"
)

type entry struct {
	state   *domain.CallState
	expires time.Time // zero means no expiry
}

// Store implements ports.SessionStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]entry
	ttl  time.Duration
	mu   sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithTTL expires calls that have not been saved for ttl. Calls abandoned
// while paused are otherwise never removed.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists the state in memory and refreshes its expiry.
func (s *Store) Save(ctx context.Context, callID string, state *domain.CallState) error {
	// Copy to ensure isolation, similar to serialization
	e := entry{state: state.Clone()}
	if s.ttl > 0 {
		e.expires = time.Now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[callID] = e
	return nil
}

// Load retrieves the state from memory.
func (s *Store) Load(ctx context.Context, callID string) (*domain.CallState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[callID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if e.expired(time.Now()) {
		delete(s.data, callID)
		return nil, domain.ErrSessionNotFound
	}

	// Copy on read so callers can't mutate store state through the pointer
	return e.state.Clone(), nil
}

// Delete removes the state.
func (s *Store) Delete(ctx context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, callID)
	return nil
}

// List returns the calls in progress, dropping expired ones.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(time.Now())

	calls := make([]string, 0, len(s.data))
	for id := range s.data {
		calls = append(calls, id)
	}
	sort.Strings(calls)
	return calls, nil
}

// Len returns the number of calls in progress.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(time.Now())
	return len(s.data)
}

// prune must be called with mu held.
func (s *Store) prune(now time.Time) {
	for id, e := range s.data {
		if e.expired(now) {
			delete(s.data, id)
		}
	}
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}
