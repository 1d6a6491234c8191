package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
	"github.com/shatool-dad/group-bridge/internal/biz/usecase"
	"github.com/shatool-dad/group-bridge/internal/data"
	"github.com/shatool-dad/group-bridge/internal/service"
)

const testToken = "s3cret"

// mockSession implements the chat source for testing
type mockSession struct {
	status domain.SessionStatus
	chats  []domain.Chat
}

func (m *mockSession) Status(ctx context.Context) (domain.SessionStatus, error) {
	return m.status, nil
}

func (m *mockSession) ListChats(ctx context.Context) ([]domain.Chat, error) {
	return m.chats, nil
}

func (m *mockSession) GetContact(ctx context.Context, chatID string) (domain.Contact, error) {
	return domain.Contact{Name: "Bob", Number: "222"}, nil
}

func (m *mockSession) Events() <-chan *domain.RawEvent { return nil }

type testEnv struct {
	handler     http.Handler
	groups      *usecase.GroupUsecase
	router      *usecase.Router
	broadcaster *service.Broadcaster
	session     *mockSession
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zerolog.Nop()

	registry := data.NewRegistryRepo(filepath.Join(t.TempDir(), "active_groups.json"), log)
	store := data.NewMemoryStore(100)
	groups := usecase.NewGroupUsecase(registry, store, log)
	if _, err := groups.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	session := &mockSession{
		status: domain.SessionStatus{State: domain.SessionAuthenticated, Authenticated: true, PageReady: true},
		chats: []domain.Chat{
			{ID: "111@g.us", Name: "Cousins", IsGroup: true, Participants: 4},
			{ID: "222@c.us", Participants: -1},
		},
	}
	cache := usecase.NewChatCache(session, usecase.NewLegacyActiveSet(), usecase.ChatCacheConfig{
		ReadyTimeout:      time.Second,
		ReadyPollInterval: 10 * time.Millisecond,
	}, log)
	broadcaster := service.NewBroadcaster(log)

	server := NewServer("127.0.0.1:0", testToken, Deps{
		Groups:      groups,
		Chats:       cache,
		Session:     session,
		Broadcaster: broadcaster,
	}, log)

	return &testEnv{
		handler:     server.Handler(),
		groups:      groups,
		router:      usecase.NewRouter(groups, store, broadcaster, log),
		broadcaster: broadcaster,
		session:     session,
	}
}

func (e *testEnv) post(t *testing.T, path string, body map[string]interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)

	var result map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
	return w, result
}

func TestUnauthorizedShortCircuits(t *testing.T) {
	env := newTestEnv(t)

	w, result := env.post(t, "/api/setActive/g1", map[string]interface{}{
		"token": "wrong", "name": "Family", "chatIds": []string{"111@g.us"},
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
	if result["error"] == nil {
		t.Error("Expected error message")
	}

	w, _ = env.post(t, "/api/getActive", map[string]interface{}{})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without token, got %d", w.Code)
	}

	all, _ := env.groups.List(context.Background())
	if len(all) != 0 {
		t.Errorf("Unauthorized request mutated the registry: %v", all)
	}
}

func TestBearerTokenAccepted(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/getActive", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSetAndGetActive(t *testing.T) {
	env := newTestEnv(t)

	w, result := env.post(t, "/api/setActive/g1", map[string]interface{}{
		"token": testToken, "name": "Family", "chatIds": []string{"111@g.us"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %v", w.Code, result)
	}
	if result["success"] != true {
		t.Error("Expected success to be true")
	}
	group := result["group"].(map[string]interface{})
	if group["name"] != "Family" {
		t.Errorf("Expected echoed name Family, got %v", group["name"])
	}

	w, result = env.post(t, "/api/getActive/g1", map[string]interface{}{"token": testToken})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	chatIDs := result["group"].(map[string]interface{})["chatIds"].([]interface{})
	if len(chatIDs) != 1 || chatIDs[0] != "111@g.us" {
		t.Errorf("Unexpected chat ids: %v", chatIDs)
	}

	w, result = env.post(t, "/api/getActive", map[string]interface{}{"token": testToken})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if len(result["groups"].(map[string]interface{})) != 1 {
		t.Errorf("Expected 1 group, got %v", result["groups"])
	}
}

func TestGetActiveMissing(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.post(t, "/api/getActive/missing-id", map[string]interface{}{"token": testToken})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestSetActiveValidation(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.post(t, "/api/setActive/g1", map[string]interface{}{
		"token": testToken, "name": "Family", "chatIds": "111@g.us",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for wrong-typed chatIds, got %d", w.Code)
	}

	w, _ = env.post(t, "/api/setActive/g1", map[string]interface{}{
		"token": testToken, "chatIds": []string{"111@g.us"},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for missing name, got %d", w.Code)
	}
}

func TestMessagesLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.post(t, "/api/setActive/g1", map[string]interface{}{
		"token": testToken, "name": "Family", "chatIds": []string{"111@g.us"},
	})
	env.router.Route(ctx, &domain.RawEvent{
		ID:   "false_111@g.us_A1",
		From: "111@g.us",
		Body: "visit http://example.com now",
		Chat: domain.Chat{ID: "111@g.us", Name: "Cousins", IsGroup: true},
	})

	w, result := env.post(t, "/api/getMessages/g1", map[string]interface{}{"token": testToken})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	messages := result["messages"].([]interface{})
	if len(messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(messages))
	}
	msg := messages[0].(map[string]interface{})
	if msg["id"] != "A1" {
		t.Errorf("Expected id A1, got %v", msg["id"])
	}
	if links := msg["links"].([]interface{}); len(links) != 1 || links[0] != "http://example.com" {
		t.Errorf("Unexpected links: %v", links)
	}

	w, _ = env.post(t, "/api/removeActive/g1", map[string]interface{}{"token": testToken})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 on remove, got %d", w.Code)
	}

	w, _ = env.post(t, "/api/getMessages/g1", map[string]interface{}{"token": testToken})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after remove, got %d", w.Code)
	}

	w, _ = env.post(t, "/api/removeActive/g1", map[string]interface{}{"token": testToken})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 on second remove, got %d", w.Code)
	}
}

func TestDrainMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.post(t, "/api/setActive/g1", map[string]interface{}{
		"token": testToken, "name": "Family", "chatIds": []string{"111@g.us"},
	})
	env.router.Route(ctx, &domain.RawEvent{ID: "m1", From: "111@g.us", Chat: domain.Chat{ID: "111@g.us"}})

	_, result := env.post(t, "/api/drainMessages/g1", map[string]interface{}{"token": testToken})
	if len(result["messages"].([]interface{})) != 1 {
		t.Errorf("Expected 1 drained message, got %v", result["messages"])
	}

	_, result = env.post(t, "/api/getMessages/g1", map[string]interface{}{"token": testToken})
	if len(result["messages"].([]interface{})) != 0 {
		t.Errorf("Expected no messages after drain, got %v", result["messages"])
	}
}

func TestActiveChats(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.post(t, "/api/getActiveChats", map[string]interface{}{"token": testToken})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 before first refresh, got %d", w.Code)
	}

	w, result := env.post(t, "/api/updateChats", map[string]interface{}{"token": testToken})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %v", w.Code, result)
	}
	if result["count"].(float64) != 2 {
		t.Errorf("Expected count 2, got %v", result["count"])
	}

	w, result = env.post(t, "/api/getActiveChats", map[string]interface{}{"token": testToken})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	chats := result["chats"].([]interface{})
	if len(chats) != 2 {
		t.Fatalf("Expected 2 chats, got %d", len(chats))
	}
	if chats[1].(map[string]interface{})["contactName"] != "Bob" {
		t.Errorf("Expected contact name for private chat, got %v", chats[1])
	}
	if result["capturedAt"] == nil {
		t.Error("Expected capture timestamp")
	}

	env.session.status = domain.SessionStatus{State: domain.SessionDisconnected}
	w, _ = env.post(t, "/api/getActiveChats", map[string]interface{}{"token": testToken})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 when session is down, got %d", w.Code)
	}
}

func TestDigestNotConfigured(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.post(t, "/api/digest/g1", map[string]interface{}{"token": testToken})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestStatusWithoutAuth(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/api/setActive/g1", map[string]interface{}{
		"token": testToken, "name": "Family", "chatIds": []string{},
	})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var status StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if !status.IsReady || status.State != domain.SessionAuthenticated {
		t.Errorf("Unexpected session status: %+v", status)
	}
	if status.Registry != nil {
		t.Errorf("Expected registry details to be hidden without a token, got %+v", status.Registry)
	}
	if strings.Contains(w.Body.String(), "g1") {
		t.Errorf("Expected group ids not to leak, got %s", w.Body.String())
	}
}

func TestStatusWithToken(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/api/setActive/g1", map[string]interface{}{
		"token": testToken, "name": "Family", "chatIds": []string{},
	})

	for name, req := range map[string]*http.Request{
		"query":  httptest.NewRequest(http.MethodGet, "/status?token="+testToken, nil),
		"bearer": httptest.NewRequest(http.MethodGet, "/status", nil),
	} {
		if name == "bearer" {
			req.Header.Set("Authorization", "Bearer "+testToken)
		}
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, req)

		var status StatusResponse
		if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
			t.Fatalf("%s: failed to parse response: %v", name, err)
		}
		if status.Registry == nil {
			t.Fatalf("%s: expected registry details", name)
		}
		if status.Registry.Groups != 1 {
			t.Errorf("%s: expected 1 group, got %d", name, status.Registry.Groups)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/status?token=wrong", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 with a wrong token, got %d", w.Code)
	}
	var status StatusResponse
	json.Unmarshal(w.Body.Bytes(), &status)
	if status.Registry != nil {
		t.Errorf("Expected registry details hidden for a wrong token, got %+v", status.Registry)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/getActive", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestWebsocketPush(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	if _, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=wrong", nil); err == nil {
		t.Fatal("Expected dial with wrong token to fail")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong token, got %v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+testToken, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.broadcaster.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ctx := context.Background()
	env.groups.Register(ctx, "g1", "Family", []string{"111@g.us"})
	env.router.Route(ctx, &domain.RawEvent{
		ID:     "false_111@g.us_A1",
		From:   "111@g.us",
		Body:   "hello",
		Chat:   domain.Chat{ID: "111@g.us", Name: "Cousins", IsGroup: true},
		Sender: domain.Contact{PushName: "Ana"},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev domain.BroadcastEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if ev.GroupID != "g1" || ev.From != "Ana" || ev.Group == nil || *ev.Group != "Cousins" {
		t.Errorf("Unexpected event: %+v", ev)
	}
	if ev.Message == nil || ev.Message.Body != "hello" {
		t.Errorf("Expected full message payload, got %+v", ev.Message)
	}
}
