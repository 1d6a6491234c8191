package repo

import (
	"context"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
)

// MessageStore retains normalized messages per group
type MessageStore interface {
	// Append adds msg to the end of the group's history, creating it if needed
	Append(ctx context.Context, groupID string, msg *domain.NormalizedMessage) error

	// List returns the history oldest first; an unknown group yields an empty slice
	List(ctx context.Context, groupID string) ([]*domain.NormalizedMessage, error)

	// Drain returns the history and clears it in one step
	Drain(ctx context.Context, groupID string) ([]*domain.NormalizedMessage, error)

	// Purge removes all history for the group; purging twice is not an error
	Purge(ctx context.Context, groupID string) error

	// Counts returns the number of retained messages per group
	Counts(ctx context.Context) (map[string]int, error)

	Close() error
}
