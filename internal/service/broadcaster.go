package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
)

// Subscriber is one live push connection
type Subscriber interface {
	ID() string
	IsOpen() bool
	// Send queues payload without blocking
	Send(payload []byte) error
}

// Broadcaster fans push events out to every open subscriber.
// Delivery is best effort: closed subscribers are skipped and a failed
// send to one subscriber never affects the others.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]Subscriber
	log  zerolog.Logger
}

// NewBroadcaster creates a new broadcaster
func NewBroadcaster(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		subs: make(map[string]Subscriber),
		log:  log.With().Str("component", "broadcaster").Logger(),
	}
}

// Subscribe registers sub
func (b *Broadcaster) Subscribe(sub Subscriber) {
	b.mu.Lock()
	b.subs[sub.ID()] = sub
	n := len(b.subs)
	b.mu.Unlock()
	b.log.Info().Str("subscriber", sub.ID()).Int("subscribers", n).Msg("Subscriber connected")
}

// Unsubscribe removes the subscriber with id; unknown ids are ignored
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	_, ok := b.subs[id]
	delete(b.subs, id)
	n := len(b.subs)
	b.mu.Unlock()
	if ok {
		b.log.Info().Str("subscriber", id).Int("subscribers", n).Msg("Subscriber disconnected")
	}
}

// Count returns the number of registered subscribers
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish encodes event once and hands it to every open subscriber
func (b *Broadcaster) Publish(ctx context.Context, event *domain.BroadcastEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode broadcast event: %w", err)
	}

	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.IsOpen() {
			continue
		}
		if err := s.Send(payload); err != nil {
			b.log.Warn().Err(err).Str("subscriber", s.ID()).Msg("Dropped event for subscriber")
		}
	}
	return nil
}
