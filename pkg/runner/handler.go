package runner

import (
	"context"
)

// IOHandler defines the strategy for interacting with the simulated caller.
// This allows switching between Text (terminal) and JSON (structured) modes.
type IOHandler interface {
	// Output presents the result of a turn.
	Output(ctx context.Context, turn Turn) error

	// Input reads the digits entered for the next turn. An empty string means
	// the caller entered nothing (a timeout, or a forwarded leg hanging up).
	Input(ctx context.Context, turn Turn) (string, error)
}

// ContentRenderer transforms a turn summary before it is printed.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)
