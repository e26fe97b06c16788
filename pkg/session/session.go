package session

import (
	"context"
	"log/slog"

	"github.com/aretw0/doorman/internal/logging"
	"github.com/aretw0/doorman/pkg/domain"
	"github.com/aretw0/doorman/pkg/twiml"
)

// Session drives one call through its script, one turn at a time.
//
// States: running -> paused (waiting for digits) -> running ... -> completed.
// A Session is owned by a single turn; the Registry serializes turns per call.
type Session struct {
	state   *domain.CallState
	builder *twiml.Builder
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithHooks registers observability hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Session) {
		s.hooks = hooks
	}
}

// WithLogger sets the logger used for turn diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBuilderOptions forwards options to the TwiML builder (e.g. the callback endpoint).
func WithBuilderOptions(opts ...twiml.Option) Option {
	return func(s *Session) {
		s.builder = twiml.NewBuilder(s.state.From, s.state.To, opts...)
	}
}

// New wraps state in a Session. The Session mutates state in place.
func New(state *domain.CallState, opts ...Option) *Session {
	s := &Session{
		state:   state,
		builder: twiml.NewBuilder(state.From, state.To),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the call ID.
func (s *Session) ID() string { return s.state.ID }

// Call returns the identity of the call.
func (s *Session) Call() domain.Call { return s.state.Call }

// State returns the underlying snapshot.
func (s *Session) State() *domain.CallState { return s.state }

// Paused reports whether the call waits for digits.
func (s *Session) Paused() bool { return s.state.Paused() }

// Completed reports whether the call has ended.
func (s *Session) Completed() bool { return s.state.Completed() }

// Advance runs one turn: it resumes a paused call with input, then renders
// steps until one ends the turn, and returns the TwiML document.
//
// A failing step aborts the turn: the error is returned and no document is
// produced. Advancing a completed call fails with an OperationError.
func (s *Session) Advance(ctx context.Context, input domain.Input) (string, error) {
	if s.state.Completed() {
		return "", &domain.OperationError{CallID: s.state.ID, Reason: "cannot advance a completed call"}
	}

	if s.state.Paused() {
		if err := s.resume(input); err != nil {
			return "", err
		}
	}

	defer s.builder.Reset()

	for {
		step, ok := s.state.Current()
		if !ok {
			s.builder.DefaultAction()
			s.state.Status = domain.StatusCompleted
			s.logger.Debug("script exhausted, ending call", "call_sid", s.state.ID, "position", s.state.Position)
			if s.hooks.OnCallComplete != nil {
				s.hooks.OnCallComplete(ctx, domain.NewCallEvent(domain.EventCallComplete, s.state.Call))
			}
			return s.builder.Flush()
		}

		res, err := s.builder.Apply(step)
		if err != nil {
			s.logger.Debug("step rejected", "call_sid", s.state.ID, "command", step.Command, "position", s.state.Position, "err", err)
			return "", err
		}
		if s.hooks.OnStep != nil {
			s.hooks.OnStep(ctx, domain.NewStepEvent(s.state.ID, step.Command, s.state.Position, res.Terminal))
		}

		if !res.Terminal {
			s.state.Position++
			continue
		}

		if res.Resume != nil {
			// Position stays put: resuming always starts the chosen branch at 0.
			s.state.Status = domain.StatusPaused
			s.state.Resume = res.Resume
		} else {
			s.state.Position++
		}
		return s.builder.Flush()
	}
}

func (s *Session) resume(input domain.Input) error {
	if s.state.Resume == nil {
		return &domain.OperationError{CallID: s.state.ID, Reason: "paused without a resolver"}
	}

	s.state.Script = s.state.Resume.Resolve(input.Digits)
	s.state.Position = 0
	s.state.Status = domain.StatusRunning
	s.state.Resume = nil

	s.logger.Debug("call resumed", "call_sid", s.state.ID, "digits", input.Digits, "steps", len(s.state.Script))
	return nil
}
