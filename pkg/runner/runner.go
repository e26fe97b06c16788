package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/doorman/internal/logging"
	"github.com/aretw0/doorman/pkg/domain"
	"github.com/aretw0/doorman/pkg/ports"
	"github.com/aretw0/doorman/pkg/session"
)

// DefaultMaxTurns stops runaway calls, e.g. a script forwarding in a loop.
const DefaultMaxTurns = 100

// ErrTooManyTurns is returned when a call does not complete within the turn limit.
var ErrTooManyTurns = errors.New("call exceeded the maximum number of turns")

// Turn is the outcome of one simulated webhook request.
type Turn struct {
	Number    int    `json:"turn"`
	Digits    string `json:"digits,omitempty"`
	Document  string `json:"document,omitempty"`
	Paused    bool   `json:"paused"`
	Completed bool   `json:"completed"`
	Error     string `json:"error,omitempty"`
}

// Runner handles the turn loop of one call using the provided IO.
type Runner struct {
	registry *session.Registry
	lookup   ports.ScriptLookup

	handler   IOHandler
	logger    *slog.Logger
	maxTurns  int
	maxDigits int
}

// Option configures a Runner.
type Option func(*Runner)

// WithHandler sets the IO strategy. Defaults to a TextHandler on Stdin/Stdout.
func WithHandler(h IOHandler) Option {
	return func(r *Runner) {
		r.handler = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMaxTurns overrides DefaultMaxTurns.
func WithMaxTurns(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

// WithMaxDigits overrides DefaultMaxDigits.
func WithMaxDigits(n int) Option {
	return func(r *Runner) {
		r.maxDigits = n
	}
}

// NewRunner creates a Runner over registry, creating calls from lookup.
func NewRunner(registry *session.Registry, lookup ports.ScriptLookup, opts ...Option) *Runner {
	r := &Runner{
		registry: registry,
		lookup:   lookup,
		logger:   logging.NewNop(),
		maxTurns: DefaultMaxTurns,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.handler == nil {
		r.handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r
}

// Step runs a single turn with digits.
// A failed turn is reported in Turn.Error and returned as an error.
func (r *Runner) Step(ctx context.Context, call domain.Call, number int, digits string) (Turn, error) {
	turn := Turn{Number: number, Digits: digits}

	clean, err := SanitizeDigits(digits, r.maxDigits)
	if err != nil {
		turn.Error = err.Error()
		return turn, err
	}

	res, err := r.registry.Turn(ctx, call, domain.Input{Digits: clean}, r.lookup)
	if err != nil {
		turn.Error = err.Error()
		return turn, err
	}

	turn.Document = res.Document
	turn.Paused = res.Paused
	turn.Completed = res.Completed
	return turn, nil
}

// Run plays call until it completes, the input ends or ctx is cancelled.
// Reaching the end of the input is not an error.
func (r *Runner) Run(ctx context.Context, call domain.Call) error {
	digits := ""
	for n := 1; n <= r.maxTurns; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		turn, err := r.Step(ctx, call, n, digits)
		if outErr := r.handler.Output(ctx, turn); outErr != nil {
			return outErr
		}
		if err != nil {
			return fmt.Errorf("turn %d: %w", n, err)
		}
		if turn.Completed {
			r.logger.Debug("Call completed", "call_sid", call.ID, "turns", n)
			return nil
		}

		digits, err = r.handler.Input(ctx, turn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.logger.Debug("Input closed, leaving call", "call_sid", call.ID)
				return nil
			}
			return err
		}
	}
	return fmt.Errorf("%w (%d)", ErrTooManyTurns, r.maxTurns)
}

// Simulate runs call with one turn per entry of digits, after an initial turn
// without digits. It stops early when the call completes or a turn fails.
func Simulate(ctx context.Context, r *Runner, call domain.Call, digits []string) ([]Turn, error) {
	entries := append([]string{""}, digits...)
	turns := make([]Turn, 0, len(entries))

	for i, d := range entries {
		turn, err := r.Step(ctx, call, i+1, d)
		turns = append(turns, turn)
		if err != nil {
			return turns, fmt.Errorf("turn %d: %w", i+1, err)
		}
		if turn.Completed {
			break
		}
	}
	return turns, nil
}

// ParseDigits reads a list of digit entries from a JSON array or a
// comma-separated list. Entries may be empty.
func ParseDigits(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var digits []string
		if err := json.Unmarshal([]byte(raw), &digits); err != nil {
			return nil, fmt.Errorf("digits must be a JSON array of strings: %w", err)
		}
		return digits, nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}
