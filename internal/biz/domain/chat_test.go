package domain

import "testing"

func TestClassifyChat(t *testing.T) {
	tests := []struct {
		id   string
		want ChatKind
	}{
		{"120363@g.us", ChatKindGroup},
		{"972501234567@c.us", ChatKindPrivate},
		{"status@broadcast", ChatKindUnknown},
		{"", ChatKindUnknown},
	}

	for _, tt := range tests {
		if got := ClassifyChat(tt.id); got != tt.want {
			t.Errorf("ClassifyChat(%q) = %s, want %s", tt.id, got, tt.want)
		}
	}
}

func TestContactDisplayName(t *testing.T) {
	tests := []struct {
		contact Contact
		want    string
	}{
		{Contact{Name: "Mom", PushName: "Dina", Number: "1"}, "Mom"},
		{Contact{PushName: "Dina", Number: "1"}, "Dina"},
		{Contact{Number: "1"}, "1"},
	}

	for _, tt := range tests {
		if got := tt.contact.DisplayName(); got != tt.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tt.contact, got, tt.want)
		}
	}
}

func TestSessionStatusReady(t *testing.T) {
	if (SessionStatus{Authenticated: true}).Ready() {
		t.Error("Expected not ready without page")
	}
	if !(SessionStatus{Authenticated: true, PageReady: true}).Ready() {
		t.Error("Expected ready")
	}
}

func TestChatIsGroupConversation(t *testing.T) {
	if !(Chat{ID: "1@g.us"}).IsGroupConversation() {
		t.Error("Expected @g.us chat to be a group conversation")
	}
	if !(Chat{ID: "x", IsGroup: true}).IsGroupConversation() {
		t.Error("Expected flagged chat to be a group conversation")
	}
	if (Chat{ID: "1@c.us"}).IsGroupConversation() {
		t.Error("Expected private chat not to be a group conversation")
	}
}
