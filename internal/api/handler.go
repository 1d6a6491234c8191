package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
	"github.com/shatool-dad/group-bridge/internal/biz/usecase"
	"github.com/shatool-dad/group-bridge/internal/service"
)

const maxBodyBytes = 1 << 20

// StatusSource reports the upstream session state
type StatusSource interface {
	Status(ctx context.Context) (domain.SessionStatus, error)
}

// Deps are the components the API serves
type Deps struct {
	Groups      *usecase.GroupUsecase
	Chats       *usecase.ChatCache
	Digest      *usecase.DigestUsecase // optional
	Session     StatusSource
	Broadcaster *service.Broadcaster
}

// Server is the admin HTTP API and websocket push endpoint
type Server struct {
	token string
	deps  Deps
	log   zerolog.Logger

	upgrader websocket.Upgrader

	server *http.Server
	addr   string
}

// NewServer creates a new API server
func NewServer(addr, token string, deps Deps, log zerolog.Logger) *Server {
	return &Server{
		token: token,
		deps:  deps,
		log:   log.With().Str("component", "api").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients authenticate with the shared token, not an origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		addr: addr,
	}
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Group registry
	mux.HandleFunc("POST /api/setActive/{groupId}", s.authorized(s.handleSetActive))
	mux.HandleFunc("POST /api/getActive", s.authorized(s.handleGetActive))
	mux.HandleFunc("POST /api/getActive/{groupId}", s.authorized(s.handleGetActive))
	mux.HandleFunc("POST /api/removeActive/{groupId}", s.authorized(s.handleRemoveActive))

	// Retained messages
	mux.HandleFunc("POST /api/getMessages/{groupId}", s.authorized(s.handleGetMessages))
	mux.HandleFunc("POST /api/drainMessages/{groupId}", s.authorized(s.handleDrainMessages))
	mux.HandleFunc("POST /api/digest/{groupId}", s.authorized(s.handleDigest))

	// Chat cache
	mux.HandleFunc("POST /api/getActiveChats", s.authorized(s.handleGetActiveChats))
	mux.HandleFunc("POST /api/updateChats", s.authorized(s.handleUpdateChats))

	// Push
	mux.HandleFunc("GET /ws", s.handleWebsocket)

	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Start starts the HTTP server; it blocks until Stop
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info().Str("addr", s.addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// ============ Auth ============

type authedHandler func(w http.ResponseWriter, r *http.Request, body []byte)

// authorized checks the shared token before the wrapped handler sees the
// request; the body is read once and handed on
func (s *Server) authorized(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: read body: %v", domain.ErrValidation, err))
			return
		}
		if !s.checkToken(requestToken(r, body)) {
			s.writeError(w, domain.ErrUnauthorized)
			return
		}
		next(w, r, body)
	}
}

func (s *Server) checkToken(got string) bool {
	if s.token == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) == 1
}

// requestToken takes the bearer token, falling back to the body's "token"
// queryToken reads the token of a GET request from ?token= or the Bearer header
func queryToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return requestToken(r, nil)
}

func requestToken(r *http.Request, body []byte) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if len(body) == 0 {
		return ""
	}
	var req struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return ""
	}
	return req.Token
}

// decodeBody decodes an optional JSON body into v
func decodeBody(body []byte, v any) error {
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrValidation, err)
	}
	return nil
}

// ============ Group Handlers ============

// SetActiveRequest is the body of setActive
type SetActiveRequest struct {
	Name    string   `json:"name"`
	ChatIDs []string `json:"chatIds"`
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request, body []byte) {
	var req SetActiveRequest
	if err := decodeBody(body, &req); err != nil {
		s.writeError(w, err)
		return
	}

	group, err := s.deps.Groups.Register(r.Context(), r.PathValue("groupId"), req.Name, req.ChatIDs)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, map[string]interface{}{"success": true, "group": group})
}

func (s *Server) handleGetActive(w http.ResponseWriter, r *http.Request, body []byte) {
	groupID := r.PathValue("groupId")
	if groupID == "" {
		groups, err := s.deps.Groups.List(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, map[string]interface{}{"groups": groups})
		return
	}

	group, err := s.deps.Groups.Get(r.Context(), groupID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"group": group})
}

func (s *Server) handleRemoveActive(w http.ResponseWriter, r *http.Request, body []byte) {
	if err := s.deps.Groups.Remove(r.Context(), r.PathValue("groupId")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"success": true})
}

// ============ Message Handlers ============

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request, body []byte) {
	groupID := r.PathValue("groupId")
	msgs, err := s.deps.Groups.Messages(r.Context(), groupID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"groupId": groupID, "messages": msgs})
}

func (s *Server) handleDrainMessages(w http.ResponseWriter, r *http.Request, body []byte) {
	groupID := r.PathValue("groupId")
	msgs, err := s.deps.Groups.DrainMessages(r.Context(), groupID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"groupId": groupID, "messages": msgs})
}

// DigestRequest is the body of digest
type DigestRequest struct {
	Template string `json:"template"`
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request, body []byte) {
	if s.deps.Digest == nil {
		s.writeError(w, fmt.Errorf("%w: digest is not configured", domain.ErrUnavailable))
		return
	}

	var req DigestRequest
	if err := decodeBody(body, &req); err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.deps.Digest.Digest(r.Context(), r.PathValue("groupId"), req.Template)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, result)
}

// ============ Chat Cache Handlers ============

func (s *Server) handleGetActiveChats(w http.ResponseWriter, r *http.Request, body []byte) {
	snap, err := s.deps.Chats.ActiveChats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"chats": snap.Chats, "capturedAt": snap.CapturedAt})
}

func (s *Server) handleUpdateChats(w http.ResponseWriter, r *http.Request, body []byte) {
	snap, err := s.deps.Chats.Refresh(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"success":    true,
		"count":      len(snap.Chats),
		"capturedAt": snap.CapturedAt,
	})
}

// ============ Push & Status ============

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if !s.checkToken(queryToken(r)) {
		s.writeError(w, domain.ErrUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		s.log.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}

	sub := service.NewWSSubscriber(conn, s.log)
	s.deps.Broadcaster.Subscribe(sub)
	defer s.deps.Broadcaster.Unsubscribe(sub.ID())

	sub.Serve()
}

// StatusResponse is the body of /status. Registry is only filled in for
// callers presenting the token.
type StatusResponse struct {
	State    domain.SessionState `json:"state"`
	IsReady  bool                `json:"isReady"`
	Registry *RegistryStatus     `json:"registry,omitempty"`
}

// RegistryStatus summarizes registered groups and their retained history
type RegistryStatus struct {
	Groups   int            `json:"groups"`
	Retained map[string]int `json:"retained"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{State: domain.SessionDisconnected}

	if st, err := s.deps.Session.Status(r.Context()); err == nil {
		resp.State = st.State
		resp.IsReady = st.Ready()
	} else {
		s.log.Debug().Err(err).Msg("Session status unavailable")
	}

	if s.checkToken(queryToken(r)) {
		reg := &RegistryStatus{Retained: map[string]int{}}
		if groups, err := s.deps.Groups.List(r.Context()); err == nil {
			reg.Groups = len(groups)
		}
		if counts, err := s.deps.Groups.RetainedCounts(r.Context()); err == nil {
			reg.Retained = counts
		}
		resp.Registry = reg
	}

	s.writeJSON(w, resp)
}

// ============ Helpers ============

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Warn().Err(err).Int("status", status).Msg("Request failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
