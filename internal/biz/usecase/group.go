package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
	"github.com/shatool-dad/group-bridge/internal/biz/repo"
)

// GroupUsecase owns the subscription registry and the retained history
// that hangs off it
type GroupUsecase struct {
	groups repo.GroupRepo
	store  repo.MessageStore
	log    zerolog.Logger

	// routeMu orders routing against removal: routing holds the read side
	// while it appends, Remove holds the write side across delete + purge,
	// so an in-flight event cannot repopulate a removed group.
	routeMu sync.RWMutex
}

// NewGroupUsecase creates a new group usecase
func NewGroupUsecase(groups repo.GroupRepo, store repo.MessageStore, log zerolog.Logger) *GroupUsecase {
	return &GroupUsecase{
		groups: groups,
		store:  store,
		log:    log.With().Str("component", "groups").Logger(),
	}
}

// Load loads the persisted registry and returns the chat ids that were
// migrated from the legacy flat format
func (uc *GroupUsecase) Load(ctx context.Context) ([]string, error) {
	uc.routeMu.Lock()
	defer uc.routeMu.Unlock()
	return uc.groups.Load(ctx)
}

// Register creates or replaces a group
func (uc *GroupUsecase) Register(ctx context.Context, groupID, name string, chatIDs []string) (domain.Group, error) {
	if strings.TrimSpace(groupID) == "" {
		return domain.Group{}, fmt.Errorf("%w: group id is required", domain.ErrValidation)
	}
	group, err := domain.NewGroup(name, chatIDs)
	if err != nil {
		return domain.Group{}, err
	}

	stored, err := uc.groups.Put(ctx, groupID, group)
	if err != nil {
		return domain.Group{}, err
	}
	uc.log.Info().Str("group_id", groupID).Str("name", stored.Name).
		Int("chats", len(stored.ChatIDs)).Msg("Group registered")
	return stored, nil
}

// Get returns one group
func (uc *GroupUsecase) Get(ctx context.Context, groupID string) (domain.Group, error) {
	return uc.groups.Get(ctx, groupID)
}

// List returns a snapshot of every group
func (uc *GroupUsecase) List(ctx context.Context) (map[string]domain.Group, error) {
	return uc.groups.List(ctx)
}

// Remove deletes the group and purges its retained history
func (uc *GroupUsecase) Remove(ctx context.Context, groupID string) error {
	uc.routeMu.Lock()
	defer uc.routeMu.Unlock()

	if err := uc.groups.Delete(ctx, groupID); err != nil {
		return err
	}
	if err := uc.store.Purge(ctx, groupID); err != nil {
		return fmt.Errorf("%w: purge messages for %q: %v", domain.ErrUpstream, groupID, err)
	}
	uc.log.Info().Str("group_id", groupID).Msg("Group removed")
	return nil
}

// Messages returns the retained history of a registered group
func (uc *GroupUsecase) Messages(ctx context.Context, groupID string) ([]*domain.NormalizedMessage, error) {
	if _, err := uc.groups.Get(ctx, groupID); err != nil {
		return nil, err
	}
	return uc.store.List(ctx, groupID)
}

// DrainMessages returns the retained history of a registered group and clears it
func (uc *GroupUsecase) DrainMessages(ctx context.Context, groupID string) ([]*domain.NormalizedMessage, error) {
	if _, err := uc.groups.Get(ctx, groupID); err != nil {
		return nil, err
	}
	return uc.store.Drain(ctx, groupID)
}

// RetainedCounts returns retained message counts per group
func (uc *GroupUsecase) RetainedCounts(ctx context.Context) (map[string]int, error) {
	return uc.store.Counts(ctx)
}

// WithMatches calls fn with every group subscribed to chatID, ordered by id.
// fn runs while removal is held off; it must not call Remove.
func (uc *GroupUsecase) WithMatches(ctx context.Context, chatID string, fn func([]domain.MatchedGroup)) error {
	uc.routeMu.RLock()
	defer uc.routeMu.RUnlock()

	all, err := uc.groups.List(ctx)
	if err != nil {
		return err
	}

	var matches []domain.MatchedGroup
	for id, g := range all {
		if g.Contains(chatID) {
			matches = append(matches, domain.MatchedGroup{ID: id, Group: g})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	fn(matches)
	return nil
}
