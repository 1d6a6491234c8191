package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shatool-dad/group-bridge/internal/biz/usecase"
)

// CacheRefresher refreshes the chat cache on a fixed interval
type CacheRefresher struct {
	cache    *usecase.ChatCache
	interval time.Duration
	log      zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCacheRefresher creates a refresher; interval 0 refreshes only once at start
func NewCacheRefresher(cache *usecase.ChatCache, interval time.Duration, log zerolog.Logger) *CacheRefresher {
	return &CacheRefresher{
		cache:    cache,
		interval: interval,
		log:      log.With().Str("component", "refresher").Logger(),
	}
}

// Start starts the refresh loop
func (r *CacheRefresher) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.loop(ctx)

	r.log.Info().Dur("interval", r.interval).Msg("Started")
}

// Stop stops the loop and waits for an in-flight refresh to return
func (r *CacheRefresher) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.log.Info().Msg("Stopped")
}

func (r *CacheRefresher) loop(ctx context.Context) {
	defer r.wg.Done()

	// Initial run
	r.refresh(ctx)

	if r.interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *CacheRefresher) refresh(ctx context.Context) {
	start := time.Now()
	snap, err := r.cache.Refresh(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Err(err).Msg("Chat cache refresh failed, keeping previous snapshot")
		}
		return
	}
	r.log.Debug().Int("chats", len(snap.Chats)).Dur("took", time.Since(start)).Msg("Refresh complete")
}
