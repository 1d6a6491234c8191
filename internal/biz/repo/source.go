package repo

import (
	"context"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
)

// ChatSource is the upstream chat session
type ChatSource interface {
	// Status reports authentication and page readiness
	Status(ctx context.Context) (domain.SessionStatus, error)

	// ListChats returns every upstream conversation
	ListChats(ctx context.Context) ([]domain.Chat, error)

	// GetContact looks up the contact behind a private chat
	GetContact(ctx context.Context, chatID string) (domain.Contact, error)

	// Events delivers inbound messages one at a time, in upstream order.
	// The channel is closed when the source stops.
	Events() <-chan *domain.RawEvent
}
