package domain

// MessageKind is the normalized message type
type MessageKind string

const (
	KindText    MessageKind = "text"
	KindImage   MessageKind = "image"
	KindVideo   MessageKind = "video"
	KindFile    MessageKind = "file"
	KindAudio   MessageKind = "audio"
	KindSticker MessageKind = "sticker"
	KindMedia   MessageKind = "media"
)

// NormalizedMessage is the wire-shaped record retained per group and pushed
// to subscribers. It is never mutated after creation.
type NormalizedMessage struct {
	ID          string      `json:"id"`
	Timestamp   int64       `json:"timestamp"`
	Group       string      `json:"group"` // chat's own name, empty for private chats
	From        string      `json:"from"`
	FromNumber  string      `json:"fromNumber"`
	Type        MessageKind `json:"type"`
	IsForwarded bool        `json:"isForwarded"`
	Body        string      `json:"body"`
	Links       []string    `json:"links"`
}

// RawEvent is an inbound message as delivered by the upstream session
type RawEvent struct {
	ID          string  `json:"id"`
	Timestamp   int64   `json:"timestamp"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	Body        string  `json:"body"`
	HasMedia    bool    `json:"hasMedia"`
	MediaType   string  `json:"type"`
	IsForwarded bool    `json:"isForwarded"`
	FromMe      bool    `json:"fromMe"`
	Chat        Chat    `json:"chat"`
	Sender      Contact `json:"sender"`
}

// EventTypeNewMessage is the only push event type
const EventTypeNewMessage = "new_message"

// BroadcastEvent is published once per routed message per matching group
type BroadcastEvent struct {
	Type    string             `json:"type"`
	GroupID string             `json:"groupId"`
	From    string             `json:"from"`
	Group   *string            `json:"group"`
	Message *NormalizedMessage `json:"message"`
}
