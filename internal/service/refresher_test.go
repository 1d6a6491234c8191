package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
	"github.com/shatool-dad/group-bridge/internal/biz/usecase"
)

type countingSource struct {
	lists atomic.Int32
}

func (s *countingSource) Status(ctx context.Context) (domain.SessionStatus, error) {
	return domain.SessionStatus{State: domain.SessionAuthenticated, Authenticated: true, PageReady: true}, nil
}

func (s *countingSource) ListChats(ctx context.Context) ([]domain.Chat, error) {
	s.lists.Add(1)
	return []domain.Chat{{ID: "1@g.us", Name: "Cousins", IsGroup: true, Participants: 3}}, nil
}

func (s *countingSource) GetContact(ctx context.Context, chatID string) (domain.Contact, error) {
	return domain.Contact{}, nil
}

func (s *countingSource) Events() <-chan *domain.RawEvent { return nil }

func TestCacheRefresher_RunsPeriodically(t *testing.T) {
	source := &countingSource{}
	cache := usecase.NewChatCache(source, usecase.NewLegacyActiveSet(), usecase.DefaultChatCacheConfig(), zerolog.Nop())
	r := NewCacheRefresher(cache, 10*time.Millisecond, zerolog.Nop())

	r.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for source.lists.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	r.Stop()

	if source.lists.Load() < 3 {
		t.Errorf("Expected at least 3 refreshes, got %d", source.lists.Load())
	}
	if _, err := cache.Read(); err != nil {
		t.Errorf("Expected a published snapshot, got %v", err)
	}
}

func TestCacheRefresher_ZeroIntervalRunsOnce(t *testing.T) {
	source := &countingSource{}
	cache := usecase.NewChatCache(source, usecase.NewLegacyActiveSet(), usecase.DefaultChatCacheConfig(), zerolog.Nop())
	r := NewCacheRefresher(cache, 0, zerolog.Nop())

	r.Start(context.Background())
	r.Stop()

	if n := source.lists.Load(); n != 1 {
		t.Errorf("Expected exactly 1 refresh, got %d", n)
	}
}
