package views

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Hub tracks open sessions so messages can be fanned out to all of them.
// Register a session in OnOpen and remove it in OnClose.
type Hub struct {
	name   string
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHub returns an empty hub. name appears in log lines.
func NewHub(name string) *Hub {
	return &Hub{
		name:     name,
		logger:   log.Logger,
		sessions: map[string]*Session{},
	}
}

// WithLogger returns h logging to l.
func (h *Hub) WithLogger(l zerolog.Logger) *Hub {
	h.logger = l
	return h
}

// Add registers s.
func (h *Hub) Add(s *Session) {
	if h == nil || s == nil {
		return
	}
	h.mu.Lock()
	h.sessions[s.ID()] = s
	h.mu.Unlock()
}

// Remove unregisters s. The session itself is left to its view.
func (h *Hub) Remove(s *Session) {
	if h == nil || s == nil {
		return
	}
	h.mu.Lock()
	delete(h.sessions, s.ID())
	h.mu.Unlock()
}

// Broadcast sends msg to every session. Sessions that fail the write are
// dropped and closed. It returns the number of successful sends.
func (h *Hub) Broadcast(msg string) int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	sent := 0
	for _, s := range targets {
		if err := s.WriteText(msg); err != nil {
			h.logger.Warn().Err(err).
				Str("component", "views").
				Str("hub", h.name).
				Str("session_id", s.ID()).
				Msg("ws broadcast failed, dropping session")
			h.Remove(s)
			//nolint:errcheck,gosec // already failing
			s.Close()
			continue
		}
		sent++
	}
	return sent
}

// Count returns the number of registered sessions.
func (h *Hub) Count() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
