package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
)

// Config configures the session sidecar client
type Config struct {
	BaseURL     string        // e.g. http://127.0.0.1:3001
	HTTPTimeout time.Duration // per request
	EventBuffer int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

// DefaultConfig returns default client configuration for baseURL
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:     baseURL,
		HTTPTimeout: 30 * time.Second,
		EventBuffer: 256,
		MinBackoff:  time.Second,
		MaxBackoff:  30 * time.Second,
	}
}

// Client talks to the chat session sidecar: REST for queries and a
// websocket for the inbound message stream
type Client struct {
	cfg    Config
	http   *http.Client
	dialer *websocket.Dialer
	log    zerolog.Logger

	events chan *domain.RawEvent

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewClient creates a new session client
func NewClient(cfg Config, log zerolog.Logger) *Client {
	def := DefaultConfig(cfg.BaseURL)
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = def.HTTPTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = def.MinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = def.MaxBackoff
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.HTTPTimeout},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    log.With().Str("component", "session").Logger(),
		events: make(chan *domain.RawEvent, cfg.EventBuffer),
	}
}

// chatWire is the sidecar's chat shape; participants may be absent
type chatWire struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsGroup      bool   `json:"isGroup"`
	Participants *int   `json:"participants"`
	Timestamp    int64  `json:"timestamp"`
}

// Status reports the session state
func (c *Client) Status(ctx context.Context) (domain.SessionStatus, error) {
	var st domain.SessionStatus
	if err := c.getJSON(ctx, "/status", &st); err != nil {
		return domain.SessionStatus{}, err
	}
	return st, nil
}

// ListChats returns every conversation known to the session
func (c *Client) ListChats(ctx context.Context) ([]domain.Chat, error) {
	var wire []chatWire
	if err := c.getJSON(ctx, "/chats", &wire); err != nil {
		return nil, err
	}

	chats := make([]domain.Chat, 0, len(wire))
	for _, w := range wire {
		chat := domain.Chat{
			ID:           w.ID,
			Name:         w.Name,
			IsGroup:      w.IsGroup,
			Participants: -1,
			Timestamp:    w.Timestamp,
		}
		if w.Participants != nil {
			chat.Participants = *w.Participants
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

// GetContact looks up the contact behind chatID
func (c *Client) GetContact(ctx context.Context, chatID string) (domain.Contact, error) {
	var contact domain.Contact
	if err := c.getJSON(ctx, "/contacts/"+url.PathEscape(chatID), &contact); err != nil {
		return domain.Contact{}, err
	}
	return contact, nil
}

// Events returns the inbound message stream; it is closed after Stop
func (c *Client) Events() <-chan *domain.RawEvent {
	return c.events
}

// Start connects the event stream and keeps it connected until Stop
func (c *Client) Start(ctx context.Context) error {
	if c.started {
		return errors.New("session client already started")
	}
	wsURL, err := c.eventsURL()
	if err != nil {
		return err
	}
	c.started = true

	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.streamLoop(ctx, wsURL)
	return nil
}

// Stop disconnects the event stream and closes the events channel
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if c.started {
		close(c.events)
		c.started = false
	}
}

func (c *Client) eventsURL() (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid session url %q: %w", c.cfg.BaseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid session url %q: unsupported scheme", c.cfg.BaseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/events"
	return u.String(), nil
}

func (c *Client) streamLoop(ctx context.Context, wsURL string) {
	defer c.wg.Done()

	backoff := c.cfg.MinBackoff
	for {
		connected, err := c.stream(ctx, wsURL)
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = c.cfg.MinBackoff
		}
		c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("Event stream disconnected")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > c.cfg.MaxBackoff {
			backoff = c.cfg.MaxBackoff
		}
	}
}

// stream reads one connection until it fails; connected reports whether
// the dial succeeded
func (c *Client) stream(ctx context.Context, wsURL string) (connected bool, err error) {
	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	c.log.Info().Str("url", wsURL).Msg("Event stream connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}

		var ev domain.RawEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.log.Warn().Err(err).Msg("Skipping malformed event")
			continue
		}

		select {
		case c.events <- &ev:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("GET %s: read body: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
