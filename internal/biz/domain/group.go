package domain

import (
	"fmt"
	"strings"
)

// DefaultGroupID and DefaultGroupName name the synthetic group created when a
// legacy flat chat list is migrated.
const (
	DefaultGroupID   = "default"
	DefaultGroupName = "Default Group"
)

// Group is a named subscription over a set of upstream chat identifiers.
// ChatIDs is never nil; an empty set subscribes to nothing.
type Group struct {
	Name    string   `json:"name"`
	ChatIDs []string `json:"chatIds"`
}

// NewGroup validates the input and returns a group with duplicate chat ids
// collapsed (first occurrence wins).
func NewGroup(name string, chatIDs []string) (Group, error) {
	if strings.TrimSpace(name) == "" {
		return Group{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if chatIDs == nil {
		return Group{}, fmt.Errorf("%w: chatIds must be a list of strings", ErrValidation)
	}

	seen := make(map[string]struct{}, len(chatIDs))
	ids := make([]string, 0, len(chatIDs))
	for _, id := range chatIDs {
		if id == "" {
			return Group{}, fmt.Errorf("%w: chatIds must not contain empty strings", ErrValidation)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return Group{Name: name, ChatIDs: ids}, nil
}

// Contains reports whether the group subscribes to chatID.
func (g Group) Contains(chatID string) bool {
	for _, id := range g.ChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no memory with g.
func (g Group) Clone() Group {
	ids := make([]string, len(g.ChatIDs))
	copy(ids, g.ChatIDs)
	return Group{Name: g.Name, ChatIDs: ids}
}

// MatchedGroup pairs a group with its registry key.
type MatchedGroup struct {
	ID    string
	Group Group
}
