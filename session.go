package views

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const closeGracePeriod = time.Second

// Session is one upgraded websocket connection. Writes are serialized;
// reads belong to the WebsocketView that created the session.
type Session struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func newSession(conn *websocket.Conn) *Session {
	return &Session{id: uuid.NewString(), conn: conn}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string { return s.conn.RemoteAddr().String() }

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// WriteText writes one text frame.
func (s *Session) WriteText(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionNotOpen
	}
	return errors.Wrap(s.conn.WriteMessage(websocket.TextMessage, []byte(msg)), "write text frame")
}

// Close sends a normal-closure frame and closes the connection. Calling
// Close again is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	//nolint:errcheck,gosec // the peer may already be gone
	s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))

	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return errors.Wrap(err, "close websocket connection")
	}
	return nil
}

// Respond finalizes the upgraded exchange. The handshake response was
// written by the upgrade, so only the connection is released.
func (s *Session) Respond(http.ResponseWriter, *http.Request) error {
	return s.Close()
}
