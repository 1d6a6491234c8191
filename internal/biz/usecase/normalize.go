package usecase

import (
	"regexp"
	"strings"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
)

// linkPattern matches an optional scheme, an optional "www.", a dot-separated
// host ending in an alphabetic label, and an optional port/path/query tail
// that runs until the next whitespace.
var linkPattern = regexp.MustCompile(`(?i)\b(?:https?://)?(?:www\.)?[a-z0-9-]+(?:\.[a-z0-9-]+)*\.[a-z]{2,}(?:[:/?#][^\s]*)?`)

// idPrefixDelimiter ends the transport prefix of serialized message ids,
// e.g. "false_123@g.us_3EB0..." -> "3EB0...".
const idPrefixDelimiter = "us_"

// Normalize converts an upstream event into the retained wire shape
func Normalize(ev *domain.RawEvent) *domain.NormalizedMessage {
	group := ""
	if ev.Chat.IsGroupConversation() {
		group = ev.Chat.Name
	}

	return &domain.NormalizedMessage{
		ID:          StripIDPrefix(ev.ID),
		Timestamp:   ev.Timestamp,
		Group:       group,
		From:        ev.Sender.DisplayName(),
		FromNumber:  BareAddress(ev.From),
		Type:        KindOf(ev.HasMedia, ev.MediaType),
		IsForwarded: ev.IsForwarded,
		Body:        ev.Body,
		Links:       ExtractLinks(ev.Body),
	}
}

// StripIDPrefix drops everything up to and including the first "us_"
func StripIDPrefix(id string) string {
	if i := strings.Index(id, idPrefixDelimiter); i >= 0 {
		return id[i+len(idPrefixDelimiter):]
	}
	return id
}

// BareAddress returns the part of an address before the first '@'
func BareAddress(from string) string {
	if i := strings.IndexByte(from, '@'); i >= 0 {
		return from[:i]
	}
	return from
}

// KindOf maps the upstream media tag to a message kind
func KindOf(hasMedia bool, mediaType string) domain.MessageKind {
	if !hasMedia {
		return domain.KindText
	}
	switch mediaType {
	case "image":
		return domain.KindImage
	case "video":
		return domain.KindVideo
	case "document":
		return domain.KindFile
	case "audio":
		return domain.KindAudio
	case "sticker":
		return domain.KindSticker
	default:
		return domain.KindMedia
	}
}

// ExtractLinks returns every URL-like substring of body, never nil
func ExtractLinks(body string) []string {
	links := linkPattern.FindAllString(body, -1)
	if links == nil {
		return []string{}
	}
	return links
}
