package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
	"github.com/shatool-dad/group-bridge/internal/biz/repo"
	"github.com/shatool-dad/group-bridge/internal/service"
)

const seenTTL = 5 * time.Minute

// EventHandler consumes one inbound event
type EventHandler interface {
	Handle(ctx context.Context, ev *domain.RawEvent)
}

// BridgeServer pumps upstream events into the router and keeps the chat
// cache refreshed
type BridgeServer struct {
	source    repo.ChatSource
	handler   EventHandler
	refresher *service.CacheRefresher
	log       zerolog.Logger

	// Message deduplication cache
	seenMsgsMu sync.RWMutex
	seenMsgs   map[string]time.Time // msgID -> first seen
	now        func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBridgeServer creates a new bridge server; refresher may be nil
func NewBridgeServer(source repo.ChatSource, handler EventHandler, refresher *service.CacheRefresher, log zerolog.Logger) *BridgeServer {
	return &BridgeServer{
		source:    source,
		handler:   handler,
		refresher: refresher,
		log:       log.With().Str("component", "bridge").Logger(),
		seenMsgs:  make(map[string]time.Time),
		now:       time.Now,
	}
}

// Start starts the event loop and the cache refresher
func (s *BridgeServer) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	if s.refresher != nil {
		s.refresher.Start(ctx)
	}

	s.wg.Add(1)
	go s.eventLoop(ctx)
}

// Stop stops the event loop and waits for it to exit
func (s *BridgeServer) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	if s.refresher != nil {
		s.refresher.Stop()
	}
}

func (s *BridgeServer) eventLoop(ctx context.Context) {
	defer s.wg.Done()

	events := s.source.Events()
	cleanup := time.NewTicker(seenTTL)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			s.cleanupSeenMessages()
		case ev, ok := <-events:
			if !ok {
				s.log.Warn().Msg("Event stream closed")
				return
			}
			s.handleEvent(ctx, ev)
		}
	}
}

func (s *BridgeServer) handleEvent(ctx context.Context, ev *domain.RawEvent) {
	if ev == nil {
		return
	}
	if ev.ID != "" {
		if s.isMessageSeen(ev.ID) {
			s.log.Debug().Str("msg_id", ev.ID).Msg("Duplicate message ignored")
			return
		}
		s.markMessageSeen(ev.ID)
	}
	s.handler.Handle(ctx, ev)
}

func (s *BridgeServer) isMessageSeen(msgID string) bool {
	s.seenMsgsMu.RLock()
	defer s.seenMsgsMu.RUnlock()
	_, exists := s.seenMsgs[msgID]
	return exists
}

func (s *BridgeServer) markMessageSeen(msgID string) {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()
	s.seenMsgs[msgID] = s.now()
}

// cleanupSeenMessages forgets ids older than seenTTL
func (s *BridgeServer) cleanupSeenMessages() {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()
	cutoff := s.now().Add(-seenTTL)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
}
