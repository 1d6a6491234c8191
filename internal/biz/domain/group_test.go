package domain

import (
	"errors"
	"testing"
)

func TestNewGroup(t *testing.T) {
	g, err := NewGroup("Family", []string{"1@g.us", "2@c.us", "1@g.us"})
	if err != nil {
		t.Fatalf("NewGroup failed: %v", err)
	}
	if len(g.ChatIDs) != 2 || g.ChatIDs[0] != "1@g.us" || g.ChatIDs[1] != "2@c.us" {
		t.Errorf("Expected deduplicated ids in order, got %v", g.ChatIDs)
	}

	empty, err := NewGroup("Quiet", []string{})
	if err != nil {
		t.Fatalf("Empty chat list should be allowed: %v", err)
	}
	if empty.ChatIDs == nil {
		t.Error("Expected non-nil chat ids")
	}
}

func TestNewGroup_Validation(t *testing.T) {
	if _, err := NewGroup("", []string{"1@g.us"}); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected validation error for empty name, got %v", err)
	}
	if _, err := NewGroup("Family", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected validation error for nil ids, got %v", err)
	}
	if _, err := NewGroup("Family", []string{"1@g.us", ""}); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected validation error for empty id, got %v", err)
	}
}

func TestGroup_CloneIsIndependent(t *testing.T) {
	g := Group{Name: "Family", ChatIDs: []string{"1@g.us"}}
	c := g.Clone()
	c.ChatIDs[0] = "changed"

	if g.ChatIDs[0] != "1@g.us" {
		t.Error("Clone shares memory with the original")
	}
	if !g.Contains("1@g.us") || g.Contains("2@g.us") {
		t.Error("Unexpected Contains result")
	}
}
