package domain

import (
	"strings"
	"time"
)

// ChatKind classifies an upstream conversation by its identifier suffix
type ChatKind string

const (
	ChatKindGroup   ChatKind = "Group"
	ChatKindPrivate ChatKind = "Private"
	ChatKindUnknown ChatKind = "Unknown"
)

const (
	groupChatSuffix   = "@g.us"
	privateChatSuffix = "@c.us"
)

// ClassifyChat derives the chat kind from the identifier
func ClassifyChat(chatID string) ChatKind {
	switch {
	case strings.HasSuffix(chatID, groupChatSuffix):
		return ChatKindGroup
	case strings.HasSuffix(chatID, privateChatSuffix):
		return ChatKindPrivate
	default:
		return ChatKindUnknown
	}
}

// Chat is an upstream conversation as listed by the session
type Chat struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsGroup      bool   `json:"isGroup"`
	Participants int    `json:"participants"` // -1 when the session has no metadata
	Timestamp    int64  `json:"timestamp"`    // last activity, epoch seconds; 0 if unknown
}

// IsGroupConversation reports whether the chat is multi-party
func (c Chat) IsGroupConversation() bool {
	return c.IsGroup || ClassifyChat(c.ID) == ChatKindGroup
}

// Contact is an upstream address book entry
type Contact struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PushName string `json:"pushname"`
	Number   string `json:"number"`
}

// DisplayName returns the best available name: saved name, push name, then number
func (c Contact) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.PushName != "" {
		return c.PushName
	}
	return c.Number
}

// SessionState is the upstream session lifecycle state
type SessionState string

const (
	SessionStarting      SessionState = "starting"
	SessionWaitingForQR  SessionState = "waiting_for_qr"
	SessionAuthenticated SessionState = "authenticated"
	SessionAuthFailed    SessionState = "auth_failed"
	SessionDisconnected  SessionState = "disconnected"
)

// SessionStatus is what the upstream reports about its readiness
type SessionStatus struct {
	State         SessionState `json:"state"`
	Authenticated bool         `json:"authenticated"`
	PageReady     bool         `json:"pageReady"`
}

// Ready reports whether chats can be listed
func (s SessionStatus) Ready() bool {
	return s.Authenticated && s.PageReady
}

// ChatCacheEntry is one row of the chat cache snapshot
type ChatCacheEntry struct {
	ID            string   `json:"id"`
	Kind          ChatKind `json:"type"`
	Name          string   `json:"name"`
	Active        bool     `json:"active"`
	Participants  *int     `json:"participants,omitempty"`
	ContactName   string   `json:"contactName,omitempty"`
	ContactNumber string   `json:"contactNumber,omitempty"`
	LastActivity  int64    `json:"lastActivity,omitempty"`
}

// ChatSnapshot is an immutable, atomically published copy of the chat list
type ChatSnapshot struct {
	Chats      []ChatCacheEntry `json:"chats"`
	CapturedAt time.Time        `json:"capturedAt"`
}
