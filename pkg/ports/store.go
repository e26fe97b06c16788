package ports

import (
	"context"

	"github.com/aretw0/doorman/pkg/domain"
)

// SessionStore defines the interface for persisting calls in progress.
// It lets a stateless webhook pick a call up where the previous turn left it.
type SessionStore interface {
	// Save persists the state for a given call ID.
	Save(ctx context.Context, callID string, state *domain.CallState) error

	// Load retrieves the state for a given call ID.
	// Returns domain.ErrSessionNotFound if the call does not exist.
	Load(ctx context.Context, callID string) (*domain.CallState, error)

	// Delete removes the state for a given call ID.
	Delete(ctx context.Context, callID string) error

	// List returns the IDs of calls in progress.
	List(ctx context.Context) ([]string, error)
}
