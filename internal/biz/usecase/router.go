package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
	"github.com/shatool-dad/group-bridge/internal/biz/repo"
)

// Publisher delivers push events to live subscribers
type Publisher interface {
	Publish(ctx context.Context, event *domain.BroadcastEvent) error
}

// Router classifies inbound events against the registry, normalizes them
// and fans them out to storage and subscribers
type Router struct {
	groups    *GroupUsecase
	store     repo.MessageStore
	publisher Publisher
	log       zerolog.Logger
}

// NewRouter creates a new message router
func NewRouter(groups *GroupUsecase, store repo.MessageStore, publisher Publisher, log zerolog.Logger) *Router {
	return &Router{
		groups:    groups,
		store:     store,
		publisher: publisher,
		log:       log.With().Str("component", "router").Logger(),
	}
}

// Route delivers ev to every group subscribed to its chat and returns how
// many groups matched. Storage and broadcast are attempted independently
// for each match; their failures are logged, not returned.
func (r *Router) Route(ctx context.Context, ev *domain.RawEvent) (int, error) {
	if ev == nil {
		return 0, fmt.Errorf("%w: nil event", domain.ErrValidation)
	}
	if ev.Chat.ID == "" {
		return 0, fmt.Errorf("%w: event %q has no chat id", domain.ErrValidation, ev.ID)
	}

	matched := 0
	err := r.groups.WithMatches(ctx, ev.Chat.ID, func(groups []domain.MatchedGroup) {
		if len(groups) == 0 {
			return
		}
		matched = len(groups)

		msg := Normalize(ev)
		var chatName *string
		if ev.Chat.IsGroupConversation() {
			name := ev.Chat.Name
			chatName = &name
		}

		for _, g := range groups {
			log := r.log.With().Str("group_id", g.ID).Str("chat_id", ev.Chat.ID).Str("msg_id", msg.ID).Logger()

			if err := r.store.Append(ctx, g.ID, msg); err != nil {
				log.Err(err).Msg("Failed to retain message")
			}

			event := &domain.BroadcastEvent{
				Type:    domain.EventTypeNewMessage,
				GroupID: g.ID,
				From:    msg.From,
				Group:   chatName,
				Message: msg,
			}
			if err := r.publisher.Publish(ctx, event); err != nil {
				log.Err(err).Msg("Failed to broadcast message")
			}
		}
	})
	if err != nil {
		return 0, err
	}
	return matched, nil
}

// Handle routes ev and logs instead of returning errors, so one bad event
// never stops the stream
func (r *Router) Handle(ctx context.Context, ev *domain.RawEvent) {
	n, err := r.Route(ctx, ev)
	if err != nil {
		r.log.Warn().Err(err).Msg("Dropped event")
		return
	}
	if n == 0 {
		r.log.Debug().Str("chat_id", ev.Chat.ID).Msg("No group subscribed, event ignored")
		return
	}
	r.log.Debug().Str("chat_id", ev.Chat.ID).Int("groups", n).Msg("Event routed")
}
