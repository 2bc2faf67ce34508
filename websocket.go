package views

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// State is the lifecycle position of a WebsocketView.
type State int

// WebsocketView states, in order.
const (
	StateCreated State = iota
	StatePrepared
	StateOpen
	StateReceiving
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StatePrepared:
		return "prepared"
	case StateOpen:
		return "open"
	case StateReceiving:
		return "receiving"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Lifecycle receives the callbacks of one websocket session. OnMessage
// calls for a session never overlap and follow arrival order.
type Lifecycle interface {
	// OnOpen runs once, right after the upgrade.
	OnOpen(ctx context.Context, v *WebsocketView) error
	// OnMessage runs for every text message. An error ends the session.
	OnMessage(ctx context.Context, v *WebsocketView, message string) error
	// OnClose runs exactly once after OnOpen, however the session ended.
	OnClose(ctx context.Context, v *WebsocketView)
}

// NopLifecycle implements Lifecycle with no-ops. Embed it to override
// only some callbacks.
type NopLifecycle struct{}

func (NopLifecycle) OnOpen(context.Context, *WebsocketView) error            { return nil }
func (NopLifecycle) OnMessage(context.Context, *WebsocketView, string) error { return nil }
func (NopLifecycle) OnClose(context.Context, *WebsocketView)                 {}

// LifecycleFuncs adapts functions to Lifecycle. Nil fields are no-ops.
type LifecycleFuncs struct {
	Open    func(ctx context.Context, v *WebsocketView) error
	Message func(ctx context.Context, v *WebsocketView, message string) error
	Close   func(ctx context.Context, v *WebsocketView)
}

func (f LifecycleFuncs) OnOpen(ctx context.Context, v *WebsocketView) error {
	if f.Open == nil {
		return nil
	}
	return f.Open(ctx, v)
}

func (f LifecycleFuncs) OnMessage(ctx context.Context, v *WebsocketView, message string) error {
	if f.Message == nil {
		return nil
	}
	return f.Message(ctx, v, message)
}

func (f LifecycleFuncs) OnClose(ctx context.Context, v *WebsocketView) {
	if f.Close != nil {
		f.Close(ctx, v)
	}
}

// SessionError is returned by WebsocketView.Call for failures after the
// upgrade. The connection is already hijacked, so there is no HTTP
// response left to write.
type SessionError struct {
	SessionID string
	Err       error
}

func (e *SessionError) Error() string {
	return "websocket session " + e.SessionID + ": " + e.Err.Error()
}

func (e *SessionError) Unwrap() error { return e.Err }

// SocketOption configures a WebsocketView.
type SocketOption func(*WebsocketView)

// WithUpgrader sets the upgrader used for the handshake.
func WithUpgrader(u websocket.Upgrader) SocketOption {
	return func(v *WebsocketView) {
		v.upgrader = u
	}
}

// WithReadLimit caps the size of inbound messages. A larger message ends
// the session.
func WithReadLimit(n int64) SocketOption {
	return func(v *WebsocketView) {
		v.readLimit = n
	}
}

// WithMessageRate throttles inbound messages per session. The receive loop
// waits before dispatching a message that exceeds the rate.
func WithMessageRate(limit rate.Limit, burst int) SocketOption {
	return func(v *WebsocketView) {
		if burst < 1 {
			burst = 1
		}
		v.messageRate = limit
		v.messageBurst = burst
	}
}

// WithSocketLogger sets the logger for session events.
func WithSocketLogger(l zerolog.Logger) SocketOption {
	return func(v *WebsocketView) {
		v.logger = l
	}
}

// WebsocketView upgrades the request and drives a Lifecycle from the
// inbound message stream.
type WebsocketView struct {
	*Base
	lifecycle Lifecycle

	upgrader     websocket.Upgrader
	readLimit    int64
	messageRate  rate.Limit
	messageBurst int
	logger       zerolog.Logger

	mu      sync.Mutex
	state   State
	session *Session
}

// NewWebsocketView returns a view running lc for the request in base.
func NewWebsocketView(base *Base, lc Lifecycle, opts ...SocketOption) *WebsocketView {
	if lc == nil {
		lc = NopLifecycle{}
	}
	v := &WebsocketView{
		Base:      base,
		lifecycle: lc,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// State returns the current state.
func (v *WebsocketView) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Session returns the session, or nil before the upgrade.
func (v *WebsocketView) Session() *Session {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.session
}

// Send writes a text frame to the client.
func (v *WebsocketView) Send(message string) error {
	v.mu.Lock()
	st, s := v.state, v.session
	v.mu.Unlock()

	if s == nil || (st != StateOpen && st != StateReceiving) {
		return ErrSessionNotOpen
	}
	return s.WriteText(message)
}

func (v *WebsocketView) setState(st State) {
	v.mu.Lock()
	v.state = st
	v.mu.Unlock()
}

// CanPrepare reports whether r asks for a websocket upgrade that the
// upgrader can negotiate. The key must be the base64 form of 16 bytes.
func CanPrepare(r *http.Request) bool {
	return r.Method == http.MethodGet &&
		websocket.IsWebSocketUpgrade(r) &&
		r.Header.Get("Sec-Websocket-Version") == "13" &&
		validKey(r.Header.Get("Sec-Websocket-Key"))
}

func validKey(key string) bool {
	if key == "" {
		return false
	}
	b, err := base64.StdEncoding.DecodeString(key)
	return err == nil && len(b) == 16
}

// Call negotiates the upgrade and runs the session until the client goes
// away, the context is cancelled, or a callback fails. A request without
// a websocket handshake gets a text/plain explanation instead.
//
// On success the closed *Session is returned. OnClose has run by then.
func (v *WebsocketView) Call(ctx context.Context) (result any, err error) {
	req := v.Request
	if !CanPrepare(req.Request) {
		return Text(http.StatusOK, requestURL(req.Request)+" was meant to be called through ws protocol"), nil
	}

	conn, err := v.upgrader.Upgrade(req.Writer, req.Request, nil)
	if err != nil {
		return nil, wrapSentinel(ErrUpgrade, err)
	}
	if v.readLimit > 0 {
		conn.SetReadLimit(v.readLimit)
	}

	s := newSession(conn)
	v.mu.Lock()
	v.session = s
	v.state = StatePrepared
	v.mu.Unlock()

	logger := v.logger.With().
		Str("component", "views").
		Str("session_id", s.ID()).
		Str("remote", s.RemoteAddr()).
		Logger()

	ctx = withSession(ctx, s)
	stop := context.AfterFunc(ctx, func() {
		//nolint:errcheck,gosec // unblocks the pending read
		conn.Close()
	})
	defer stop()

	v.setState(StateOpen)
	defer func() {
		v.finish(ctx, s, logger)
		if err != nil {
			result, err = nil, &SessionError{SessionID: s.ID(), Err: err}
			return
		}
		result = s
	}()
	return nil, v.run(ctx, s, logger)
}

// run calls OnOpen and then reads until the stream ends. Panics in the
// callbacks come back as errors.
func (v *WebsocketView) run(ctx context.Context, s *Session, logger zerolog.Logger) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Msg("websocket callback panicked")
			err = errors.Errorf("websocket callback panic: %v", rec)
		}
	}()

	if err := v.lifecycle.OnOpen(ctx, v); err != nil {
		return errors.Wrap(err, "on open")
	}
	v.setState(StateReceiving)

	var limiter *rate.Limiter
	if v.messageRate > 0 {
		limiter = rate.NewLimiter(v.messageRate, v.messageBurst)
	}

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			switch {
			case ctx.Err() != nil:
				logger.Debug().Msg("websocket session cancelled")
			case errors.As(err, &ce):
				logger.Debug().Int("code", ce.Code).Msg("websocket session closed by peer")
			default:
				logger.Error().Err(err).Msg("websocket connection closed with exception")
			}
			return nil
		}

		if mt != websocket.TextMessage {
			logger.Debug().Int("message_type", mt).Msg("ignoring non-text websocket message")
			continue
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				logger.Debug().Err(err).Msg("websocket session cancelled while throttled")
				return nil
			}
		}

		if err := v.lifecycle.OnMessage(ctx, v, string(data)); err != nil {
			return errors.Wrap(err, "on message")
		}
	}
}

// finish runs OnClose and releases the connection. A panic in OnClose is
// logged and swallowed; the connection is already hijacked.
func (v *WebsocketView) finish(ctx context.Context, s *Session, logger zerolog.Logger) {
	v.setState(StateClosing)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Msg("websocket close callback panicked")
		}
		if err := s.Close(); err != nil {
			logger.Warn().Err(err).Msg("websocket close failed")
		}
		v.setState(StateClosed)
	}()
	v.lifecycle.OnClose(ctx, v)
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
