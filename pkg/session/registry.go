package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/doorman/internal/logging"
	"github.com/aretw0/doorman/pkg/domain"
	"github.com/aretw0/doorman/pkg/ports"
	"github.com/aretw0/doorman/pkg/twiml"
)

// DefaultLockTTL bounds how long a distributed lock outlives a crashed replica.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Registry keeps the calls in progress and serializes turns per call ID.
// It uses Reference Counting to garbage collect unused locks.
type Registry struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	builder []twiml.Option
}

// RegistryOption configures the Registry.
type RegistryOption func(*Registry)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) RegistryOption {
	return func(r *Registry) {
		r.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl > 0 {
			r.lockTTL = ttl
		}
	}
}

// WithRegistryLogger configures a logger for the Registry and its sessions.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRegistryHooks registers observability hooks for every session.
func WithRegistryHooks(hooks domain.LifecycleHooks) RegistryOption {
	return func(r *Registry) {
		r.hooks = hooks
	}
}

// WithEndpoint sets the webhook path Dial and Gather call back to.
func WithEndpoint(endpoint string) RegistryOption {
	return func(r *Registry) {
		r.builder = append(r.builder, twiml.WithEndpoint(endpoint))
	}
}

// NewRegistry creates a Registry backed by store.
func NewRegistry(store ports.SessionStore, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(callID) after unlocking.
func (r *Registry) acquire(callID string) *lockEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.locks[callID]
	if !exists {
		entry = &lockEntry{}
		r.locks[callID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (r *Registry) release(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.locks[callID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(r.locks, callID)
	}
}

// WithLock executes fn while holding the lock for the call.
// GetOrCreate, Save and Remove do not lock: hosts serving concurrent requests
// wrap a whole turn in WithLock, as Turn does.
func (r *Registry) WithLock(ctx context.Context, callID string, fn func(context.Context) error) error {
	entry := r.acquire(callID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		r.release(callID)
	}()

	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, callID, r.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				r.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"call_sid", callID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

func (r *Registry) wrap(state *domain.CallState) *Session {
	opts := []Option{WithHooks(r.hooks), WithLogger(r.logger)}
	if len(r.builder) > 0 {
		opts = append(opts, WithBuilderOptions(r.builder...))
	}
	return New(state, opts...)
}

// GetOrCreate returns the session of call.ID, creating it from the script
// lookup yields for call.From when the call is new.
// Lookup failures, including a missing script, are returned as *domain.LookupError.
func (r *Registry) GetOrCreate(ctx context.Context, call domain.Call, lookup ports.ScriptLookup) (*Session, error) {
	state, err := r.store.Load(ctx, call.ID)
	if err == nil {
		r.logger.Debug("Call exists, resuming call", "call_sid", call.ID)
		return r.wrap(state), nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to check call existence: %w", err)
	}

	script, err := lookup.Lookup(ctx, call.From)
	if err != nil {
		return nil, &domain.LookupError{Caller: call.From, Err: err}
	}

	state = domain.NewCallState(call, script)
	if err := r.store.Save(ctx, call.ID, state); err != nil {
		return nil, fmt.Errorf("failed to initialize call: %w", err)
	}

	r.logger.Debug("Call created", "call_sid", call.ID, "from", call.From, "steps", len(script))
	if r.hooks.OnCallStart != nil {
		r.hooks.OnCallStart(ctx, domain.NewCallEvent(domain.EventCallStart, call))
	}
	return r.wrap(state), nil
}

// Save persists the session's current state.
func (r *Registry) Save(ctx context.Context, s *Session) error {
	return r.store.Save(ctx, s.ID(), s.State())
}

// Remove discards the call. Callers invoke it once they observe a completed session.
func (r *Registry) Remove(ctx context.Context, callID string) error {
	return r.store.Delete(ctx, callID)
}

// List returns the IDs of calls in progress.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	return r.store.List(ctx)
}

// TurnResult is the outcome of one successful turn.
type TurnResult struct {
	Document  string
	Completed bool
	Paused    bool
}

// Turn runs one complete webhook turn for call under its lock: load or create
// the session, advance it with input, then remove it if it completed or save
// it otherwise. A failed turn persists nothing.
func (r *Registry) Turn(ctx context.Context, call domain.Call, input domain.Input, lookup ports.ScriptLookup) (TurnResult, error) {
	var result TurnResult
	err := r.WithLock(ctx, call.ID, func(ctx context.Context) error {
		s, err := r.GetOrCreate(ctx, call, lookup)
		if err != nil {
			return err
		}

		doc, err := s.Advance(ctx, input)
		if err != nil {
			return err
		}

		if s.Completed() {
			r.logger.Debug("Call is complete", "call_sid", call.ID)
			if err := r.Remove(ctx, call.ID); err != nil {
				return fmt.Errorf("failed to remove completed call: %w", err)
			}
		} else if err := r.Save(ctx, s); err != nil {
			return fmt.Errorf("failed to save call: %w", err)
		}

		result = TurnResult{Document: doc, Completed: s.Completed(), Paused: s.Paused()}
		return nil
	})
	return result, err
}
