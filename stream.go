package views

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// Stream is a response whose body is copied from a reader, for binary or
// otherwise non-JSON payloads.
type Stream struct {
	ContentType string
	Status      int
	Body        io.Reader
}

// Respond writes the stream.
func (s *Stream) Respond(w http.ResponseWriter, _ *http.Request) error {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	status := s.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if s.Body == nil {
		return nil
	}
	if _, err := io.Copy(w, s.Body); err != nil {
		return errors.Wrap(err, "copy stream body")
	}
	return nil
}

// SSEStream is a response type for server-sent events.
// The view writes events to the channel; Respond flushes them until the
// channel is closed or the client goes away.
type SSEStream struct {
	Events <-chan SSEEvent
}

// SSEEvent is a single server-sent event.
type SSEEvent struct {
	// Event is the event type (optional). Maps to the "event:" field.
	Event string
	// Data is the event payload. If it's a struct/map, it will be JSON-encoded.
	Data any
	// ID is the event ID (optional). Maps to the "id:" field.
	ID string
}

// Respond writes the event stream.
func (s *SSEStream) Respond(w http.ResponseWriter, r *http.Request) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return errors.New("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return nil
		case event, ok := <-s.Events:
			if !ok {
				return nil
			}
			writeSSEEvent(w, event)
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w io.Writer, event SSEEvent) {
	if event.ID != "" {
		writeSSEField(w, "id", event.ID)
	}
	if event.Event != "" {
		writeSSEField(w, "event", event.Event)
	}

	switch v := event.Data.(type) {
	case string:
		writeSSEField(w, "data", v)
	case []byte:
		writeSSEField(w, "data", string(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			writeSSEField(w, "data", err.Error())
		} else {
			writeSSEField(w, "data", string(data))
		}
	}

	//nolint:errcheck // best-effort SSE write
	fmt.Fprint(w, "\n")
}

func writeSSEField(w io.Writer, name, value string) {
	//nolint:errcheck // best-effort SSE write
	fmt.Fprintf(w, "%s: %s\n", name, value)
}
