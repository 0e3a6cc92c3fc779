package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"dispatch/internal/domain"
)

// ErrNoSession is returned when a notification targets a recipient with no
// live websocket session. Role-wide broadcasts never fail this way.
var ErrNoSession = errors.New("no websocket session for recipient")

// WSSession is one connected client. Writes are serialized per connection.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) send(n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(n)
}

// WSHub holds live sessions keyed by recipient id and delivers notifications
// to connected drivers, admins, and passengers in real time.
type WSHub struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

// NewWSHub creates an empty hub.
func NewWSHub() *WSHub {
	return &WSHub{sessions: make(map[string]*WSSession)}
}

// Add registers a connection for the recipient, replacing any previous one.
func (h *WSHub) Add(recipientID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.sessions[recipientID]; ok {
		_ = old.conn.Close()
	}
	h.sessions[recipientID] = &WSSession{conn: conn}
}

// Remove drops the recipient's session if conn is still the registered one.
func (h *WSHub) Remove(recipientID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[recipientID]; ok && s.conn == conn {
		delete(h.sessions, recipientID)
	}
}

func (h *WSHub) Name() string { return "websocket" }

// Deliver pushes the notification to the recipient's session. A notification
// without a recipient id is a role broadcast and goes to every session.
func (h *WSHub) Deliver(ctx context.Context, n domain.Notification) error {
	if n.RecipientID == "" {
		return h.broadcast(n)
	}

	h.mu.RLock()
	s, ok := h.sessions[n.RecipientID]
	h.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}

	if err := s.send(n); err != nil {
		h.Remove(n.RecipientID, s.conn)
		return err
	}
	return nil
}

func (h *WSHub) broadcast(n domain.Notification) error {
	h.mu.RLock()
	sessions := make([]*WSSession, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.send(n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
