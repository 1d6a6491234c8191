package repo

import (
	"context"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
)

// GroupRepo is the durable group registry
type GroupRepo interface {
	// Load reads the persisted registry, migrating the legacy flat format.
	// It returns the chat ids that came from a legacy file, on every load.
	Load(ctx context.Context) (migrated []string, err error)

	// Put inserts or replaces a group and persists the whole registry
	Put(ctx context.Context, id string, group domain.Group) (domain.Group, error)

	// Get returns the group or domain.ErrNotFound
	Get(ctx context.Context, id string) (domain.Group, error)

	// List returns a snapshot copy of every group
	List(ctx context.Context) (map[string]domain.Group, error)

	// Delete removes the group and persists, or returns domain.ErrNotFound
	Delete(ctx context.Context, id string) error
}
