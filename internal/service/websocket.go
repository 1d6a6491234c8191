package service

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxReadMessage = 512
	wsSendQueue      = 64
)

var (
	ErrSubscriberClosed = errors.New("subscriber closed")
	ErrSubscriberBusy   = errors.New("subscriber queue full")
)

// WSSubscriber adapts a websocket connection to Subscriber. A single writer
// goroutine owns the connection's write side; Send only enqueues.
type WSSubscriber struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	log  zerolog.Logger

	open      atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewWSSubscriber wraps conn
func NewWSSubscriber(conn *websocket.Conn, log zerolog.Logger) *WSSubscriber {
	id := uuid.NewString()
	s := &WSSubscriber{
		id:   id,
		conn: conn,
		send: make(chan []byte, wsSendQueue),
		log:  log.With().Str("subscriber", id).Logger(),
		done: make(chan struct{}),
	}
	s.open.Store(true)
	return s
}

func (s *WSSubscriber) ID() string { return s.id }

func (s *WSSubscriber) IsOpen() bool { return s.open.Load() }

func (s *WSSubscriber) Send(payload []byte) error {
	if !s.open.Load() {
		return ErrSubscriberClosed
	}
	select {
	case <-s.done:
		return ErrSubscriberClosed
	case s.send <- payload:
		return nil
	default:
		return ErrSubscriberBusy
	}
}

// Serve pumps the connection until the peer goes away. It blocks.
func (s *WSSubscriber) Serve() {
	go s.writePump()
	s.readPump()
}

// Close marks the subscriber closed and tears down the connection
func (s *WSSubscriber) Close() {
	s.closeOnce.Do(func() {
		s.open.Store(false)
		close(s.done)
		s.conn.Close()
	})
}

// readPump discards inbound frames; it exists to process control frames
// and to notice when the peer disconnects
func (s *WSSubscriber) readPump() {
	defer s.Close()

	s.conn.SetReadLimit(wsMaxReadMessage)
	s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("Websocket read failed")
			}
			return
		}
	}
}

func (s *WSSubscriber) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.log.Debug().Err(err).Msg("Websocket write failed")
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
