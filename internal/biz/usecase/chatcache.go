package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
	"github.com/shatool-dad/group-bridge/internal/biz/repo"
)

// ChatCacheConfig contains chat cache configuration
type ChatCacheConfig struct {
	ReadyTimeout      time.Duration // how long Refresh waits for the session
	ReadyPollInterval time.Duration
}

// DefaultChatCacheConfig returns default chat cache configuration
func DefaultChatCacheConfig() ChatCacheConfig {
	return ChatCacheConfig{
		ReadyTimeout:      2 * time.Minute,
		ReadyPollInterval: time.Second,
	}
}

// ChatCache holds the last complete listing of upstream chats.
// Readers get the published snapshot without waiting on a refresh.
type ChatCache struct {
	source repo.ChatSource
	legacy *LegacyActiveSet
	config ChatCacheConfig
	log    zerolog.Logger
	now    func() time.Time

	snapshot atomic.Pointer[domain.ChatSnapshot]
	flight   singleflight.Group
}

// NewChatCache creates a new chat cache
func NewChatCache(source repo.ChatSource, legacy *LegacyActiveSet, config ChatCacheConfig, log zerolog.Logger) *ChatCache {
	if config.ReadyPollInterval <= 0 {
		config.ReadyPollInterval = DefaultChatCacheConfig().ReadyPollInterval
	}
	if config.ReadyTimeout <= 0 {
		config.ReadyTimeout = DefaultChatCacheConfig().ReadyTimeout
	}
	return &ChatCache{
		source: source,
		legacy: legacy,
		config: config,
		log:    log.With().Str("component", "chatcache").Logger(),
		now:    time.Now,
	}
}

// Read returns the last published snapshot
func (c *ChatCache) Read() (*domain.ChatSnapshot, error) {
	snap := c.snapshot.Load()
	if snap == nil {
		return nil, fmt.Errorf("%w: chat list has not been loaded yet", domain.ErrUnavailable)
	}
	return snap, nil
}

// ActiveChats returns the snapshot only while the upstream session is ready
func (c *ChatCache) ActiveChats(ctx context.Context) (*domain.ChatSnapshot, error) {
	status, err := c.source.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: session status: %v", domain.ErrUnavailable, err)
	}
	if !status.Ready() {
		return nil, fmt.Errorf("%w: session is %s", domain.ErrUnavailable, status.State)
	}
	return c.Read()
}

// WaitReady polls the session until it is authenticated and its page is
// available, giving up after the configured timeout or when ctx ends
func (c *ChatCache) WaitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ReadyTimeout)
	defer cancel()

	ticker := time.NewTicker(c.config.ReadyPollInterval)
	defer ticker.Stop()

	for {
		status, err := c.source.Status(ctx)
		switch {
		case err != nil:
			c.log.Debug().Err(err).Msg("Session status check failed, retrying")
		case status.Ready():
			return nil
		default:
			c.log.Debug().Str("state", string(status.State)).Msg("Session not ready, waiting")
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: session not ready: %v", domain.ErrUnavailable, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Refresh lists every upstream chat and publishes a new snapshot.
// Any lookup failure aborts the refresh and leaves the previous snapshot
// in place. Callers arriving while a refresh is in flight share its result
// (and the leader's ctx) instead of starting another pass.
func (c *ChatCache) Refresh(ctx context.Context) (*domain.ChatSnapshot, error) {
	v, err, _ := c.flight.Do("refresh", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.ChatSnapshot), nil
}

func (c *ChatCache) refresh(ctx context.Context) (*domain.ChatSnapshot, error) {
	if err := c.WaitReady(ctx); err != nil {
		return nil, err
	}

	chats, err := c.source.ListChats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list chats: %v", domain.ErrUpstream, err)
	}

	entries := make([]domain.ChatCacheEntry, 0, len(chats))
	for _, chat := range chats {
		entry, err := c.buildEntry(ctx, chat)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	snap := &domain.ChatSnapshot{Chats: entries, CapturedAt: c.now()}
	c.snapshot.Store(snap)
	c.log.Info().Int("chats", len(entries)).Msg("Chat cache refreshed")
	return snap, nil
}

func (c *ChatCache) buildEntry(ctx context.Context, chat domain.Chat) (domain.ChatCacheEntry, error) {
	entry := domain.ChatCacheEntry{
		ID:           chat.ID,
		Kind:         domain.ClassifyChat(chat.ID),
		Name:         chat.Name,
		Active:       c.legacy.IsActive(chat.ID),
		LastActivity: chat.Timestamp,
	}

	switch entry.Kind {
	case domain.ChatKindGroup:
		if chat.Participants >= 0 {
			n := chat.Participants
			entry.Participants = &n
		}
	case domain.ChatKindPrivate:
		contact, err := c.source.GetContact(ctx, chat.ID)
		if err != nil {
			return domain.ChatCacheEntry{}, fmt.Errorf("%w: contact for %s: %v", domain.ErrUpstream, chat.ID, err)
		}
		entry.ContactName = contact.DisplayName()
		entry.ContactNumber = contact.Number
		if entry.Name == "" {
			entry.Name = entry.ContactName
		}
	}
	return entry, nil
}
