package workflow

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrConcurrentConflict = errors.New("status changed concurrently")
)

// InvalidTransitionError names both ends of a refused transition.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s status transition from %q to %q", e.Entity, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func lookupError(err error, entity string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %d: %w", entity, id, err)
}

// updateError maps a conditional update that matched no row to a conflict.
func updateError(err error, entity string, id int64, from string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d is no longer %s: %w", entity, id, from, ErrConcurrentConflict)
	}
	return fmt.Errorf("failed to update %s %d: %w", entity, id, err)
}

// resultLabel is the metrics label for a transition outcome.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid"
	case errors.Is(err, ErrConcurrentConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
