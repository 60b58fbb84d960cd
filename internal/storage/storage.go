package storage

import (
	"context"
	"errors"

	"presencelight/internal/core"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// Storage defines the interface for the light history. Nothing stored here
// is read back into the poll loop; it is for inspection only.
type Storage interface {
	// Transitions
	SaveTransition(ctx context.Context, tr *core.Transition) error
	ListTransitions(ctx context.Context, limit int) ([]*core.Transition, error)

	// Last observed presence
	SaveLastPresence(ctx context.Context, obs *core.Observation) error
	GetLastPresence(ctx context.Context) (*core.Observation, error)

	// Lifecycle
	Close() error
}
