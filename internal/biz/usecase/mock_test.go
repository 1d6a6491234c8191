package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
)

// Mock implementations

type mockGroupRepo struct {
	mu     sync.Mutex
	groups map[string]domain.Group
	putErr error
}

func newMockGroupRepo() *mockGroupRepo {
	return &mockGroupRepo{groups: make(map[string]domain.Group)}
}

func (m *mockGroupRepo) Load(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (m *mockGroupRepo) Put(ctx context.Context, id string, group domain.Group) (domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return domain.Group{}, m.putErr
	}
	m.groups[id] = group.Clone()
	return group.Clone(), nil
}

func (m *mockGroupRepo) Get(ctx context.Context, id string) (domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return domain.Group{}, domain.ErrNotFound
	}
	return g.Clone(), nil
}

func (m *mockGroupRepo) List(ctx context.Context) (map[string]domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.Group, len(m.groups))
	for id, g := range m.groups {
		out[id] = g.Clone()
	}
	return out, nil
}

func (m *mockGroupRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.groups, id)
	return nil
}

type mockMessageStore struct {
	mu        sync.Mutex
	history   map[string][]*domain.NormalizedMessage
	appendErr map[string]error // per group
}

func newMockMessageStore() *mockMessageStore {
	return &mockMessageStore{
		history:   make(map[string][]*domain.NormalizedMessage),
		appendErr: make(map[string]error),
	}
}

func (m *mockMessageStore) Append(ctx context.Context, groupID string, msg *domain.NormalizedMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.appendErr[groupID]; err != nil {
		return err
	}
	m.history[groupID] = append(m.history[groupID], msg)
	return nil
}

func (m *mockMessageStore) List(ctx context.Context, groupID string) ([]*domain.NormalizedMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.NormalizedMessage, len(m.history[groupID]))
	copy(out, m.history[groupID])
	return out, nil
}

func (m *mockMessageStore) Drain(ctx context.Context, groupID string) ([]*domain.NormalizedMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.history[groupID]
	delete(m.history, groupID)
	if out == nil {
		out = []*domain.NormalizedMessage{}
	}
	return out, nil
}

func (m *mockMessageStore) Purge(ctx context.Context, groupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.history, groupID)
	return nil
}

func (m *mockMessageStore) Counts(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.history))
	for id, msgs := range m.history {
		out[id] = len(msgs)
	}
	return out, nil
}

func (m *mockMessageStore) Close() error {
	return nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []*domain.BroadcastEvent
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, event *domain.BroadcastEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) published() []*domain.BroadcastEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.BroadcastEvent, len(m.events))
	copy(out, m.events)
	return out
}

type mockChatSource struct {
	mu          sync.Mutex
	status      domain.SessionStatus
	statusErr   error
	chats       []domain.Chat
	listErr     error
	contacts    map[string]domain.Contact
	contactErr  map[string]error
	statusCalls int
	listCalls   int
	// when set, ListChats signals listStarted and blocks until listGate closes
	listStarted chan struct{}
	listGate    chan struct{}
}

func readyStatus() domain.SessionStatus {
	return domain.SessionStatus{State: domain.SessionAuthenticated, Authenticated: true, PageReady: true}
}

func (m *mockChatSource) Status(ctx context.Context) (domain.SessionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCalls++
	return m.status, m.statusErr
}

func (m *mockChatSource) ListChats(ctx context.Context) ([]domain.Chat, error) {
	if m.listGate != nil {
		m.listStarted <- struct{}{}
		<-m.listGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.Chat, len(m.chats))
	copy(out, m.chats)
	return out, nil
}

func (m *mockChatSource) GetContact(ctx context.Context, chatID string) (domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.contactErr[chatID]; err != nil {
		return domain.Contact{}, err
	}
	c, ok := m.contacts[chatID]
	if !ok {
		return domain.Contact{}, errors.New("no such contact")
	}
	return c, nil
}

func (m *mockChatSource) Events() <-chan *domain.RawEvent {
	return nil
}

func (m *mockChatSource) setStatus(st domain.SessionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = st
}

type mockCompletion struct {
	reply      string
	err        error
	calls      int
	lastSystem string
	lastUser   string
}

func (m *mockCompletion) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.calls++
	m.lastSystem = systemPrompt
	m.lastUser = userPrompt
	return m.reply, m.err
}
