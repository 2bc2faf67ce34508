package main

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bjaus/views"
)

// Note is a short text entry.
type Note struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type noteStore struct {
	mu    sync.RWMutex
	notes map[string]*Note
}

func newNoteStore() *noteStore {
	return &noteStore{notes: map[string]*Note{}}
}

func (s *noteStore) list() []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *noteStore) create(text string) Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	n := &Note{ID: uuid.NewString(), Text: text, CreatedAt: now, UpdatedAt: now}
	s.notes[n.ID] = n
	return *n
}

func (s *noteStore) update(id, text string) (Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return Note{}, false
	}
	n.Text = text
	n.UpdatedAt = time.Now().UTC()
	return *n, true
}

func (s *noteStore) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[id]; !ok {
		return false
	}
	delete(s.notes, id)
	return true
}

// resolve looks up the {id} path value; unknown ids answer 404 before a
// view is built.
func (s *noteStore) resolve(r *http.Request) (any, error) {
	id := r.PathValue("id")
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, views.Errorf(http.StatusNotFound, "note %s not found", id)
	}
	return *n, nil
}

type noteBody struct {
	Text string `json:"text"`
}

func (b noteBody) validate() error {
	if strings.TrimSpace(b.Text) == "" {
		return views.Error(http.StatusBadRequest, "text is required")
	}
	return nil
}

// notesView serves the collection.
type notesView struct {
	*views.Base
	store *noteStore
}

func (v *notesView) Get(context.Context) (any, error) {
	return map[string]any{"notes": v.store.list()}, nil
}

func (v *notesView) Post(context.Context) (any, error) {
	var body noteBody
	if err := v.Request.DecodeJSON(&body); err != nil {
		return nil, views.Error(http.StatusBadRequest, err.Error())
	}
	if err := body.validate(); err != nil {
		return nil, err
	}
	n := v.store.create(body.Text)
	resp, err := views.JSON(http.StatusCreated, n)
	if err != nil {
		return nil, err
	}
	resp.Header.Set("Location", "/notes/"+n.ID)
	return resp, nil
}

// noteView serves one resolved note.
type noteView struct {
	*views.Base
	store *noteStore
}

func (v *noteView) note() Note {
	n, _ := v.Resource.(Note)
	return n
}

func (v *noteView) Get(context.Context) (any, error) {
	return v.note(), nil
}

func (v *noteView) Patch(context.Context) (any, error) {
	var body noteBody
	if err := v.Request.DecodeJSON(&body); err != nil {
		return nil, views.Error(http.StatusBadRequest, err.Error())
	}
	if err := body.validate(); err != nil {
		return nil, err
	}
	n, ok := v.store.update(v.note().ID, body.Text)
	if !ok {
		return nil, views.Error(http.StatusNotFound, "note was deleted")
	}
	return n, nil
}

func (v *noteView) Delete(context.Context) (any, error) {
	if !v.store.delete(v.note().ID) {
		return nil, views.Error(http.StatusNotFound, "note was deleted")
	}
	return &views.Response{Status: http.StatusNoContent}, nil
}

// clock streams the server time once per second until the client leaves.
func clock(ctx context.Context) (any, error) {
	events := make(chan views.SSEEvent)
	go func() {
		defer close(events)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				select {
				case events <- views.SSEEvent{Event: "tick", Data: map[string]string{"time": t.UTC().Format(time.RFC3339)}}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return &views.SSEStream{Events: events}, nil
}
