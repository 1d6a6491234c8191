package biz

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/shatool-dad/group-bridge/internal/biz/repo"
	"github.com/shatool-dad/group-bridge/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Groups *usecase.GroupUsecase
	Router *usecase.Router
	Chats  *usecase.ChatCache
	Digest *usecase.DigestUsecase
	Legacy *usecase.LegacyActiveSet
}

// Options configures the usecases
type Options struct {
	Cache        usecase.ChatCacheConfig
	Digest       usecase.DigestConfig
	LegacyActive []string // seeds the legacy active set
}

// NewUsecases builds the usecase layer and loads the group registry.
// Chat ids migrated from a legacy registry file join the legacy active set.
func NewUsecases(
	ctx context.Context,
	groups repo.GroupRepo,
	store repo.MessageStore,
	completion repo.CompletionRepo,
	source repo.ChatSource,
	publisher usecase.Publisher,
	opts Options,
	log zerolog.Logger,
) (*Usecases, error) {
	groupUC := usecase.NewGroupUsecase(groups, store, log)
	migrated, err := groupUC.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load group registry: %w", err)
	}

	legacy := usecase.NewLegacyActiveSet(opts.LegacyActive...)
	legacy.Add(migrated...)

	return &Usecases{
		Groups: groupUC,
		Router: usecase.NewRouter(groupUC, store, publisher, log),
		Chats:  usecase.NewChatCache(source, legacy, opts.Cache, log),
		Digest: usecase.NewDigestUsecase(groupUC, completion, opts.Digest, log),
		Legacy: legacy,
	}, nil
}
