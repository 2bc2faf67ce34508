package views_test

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/views"
	"github.com/bjaus/views/viewtest"
)

type note struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type notesView struct {
	*views.Base
	store map[string]note
}

func (v *notesView) Get(context.Context) (any, error) {
	if len(v.Tail) == 0 {
		return v.store, nil
	}
	n, ok := v.store[v.Tail[0]]
	if !ok {
		return nil, views.Errorf(http.StatusNotFound, "note %s not found", v.Tail[0])
	}
	return n, nil
}

func (v *notesView) Post(context.Context) (any, error) {
	var n note
	if err := v.Request.DecodeJSON(&n); err != nil {
		return nil, views.Error(http.StatusBadRequest, err.Error())
	}
	return n, nil
}

func newNotesRouter(opts ...views.RouterOption) *views.Router {
	r := views.New(append([]views.RouterOption{views.WithLogger(zerolog.Nop())}, opts...)...)
	store := map[string]note{"1": {ID: "1", Text: "first"}}
	r.Mount("/notes/{tail...}", func(req *views.Request, res any, tail []string) views.View {
		nv := &notesView{Base: views.NewBase(req, res, tail), store: store}
		return views.NewRESTView(nv.Base, views.MethodHandlers(nv))
	})
	return r
}

func TestRouter_REST_view(t *testing.T) {
	t.Parallel()

	c := viewtest.NewClient(t, newNotesRouter())

	tests := map[string]struct {
		method     string
		path       string
		body       any
		wantStatus int
		wantBody   string
	}{
		"get one": {
			method: http.MethodGet, path: "/notes/1",
			wantStatus: http.StatusOK, wantBody: `{"id":"1","text":"first"}`,
		},
		"get all": {
			method: http.MethodGet, path: "/notes/",
			wantStatus: http.StatusOK, wantBody: `{"1":{"id":"1","text":"first"}}`,
		},
		"post": {
			method: http.MethodPost, path: "/notes/", body: note{ID: "2", Text: "second"},
			wantStatus: http.StatusOK, wantBody: `{"id":"2","text":"second"}`,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			resp := viewtest.Do(t, c, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.wantStatus, resp.Status)
			assert.Equal(t, views.ContentTypeJSON, resp.Headers.Get("Content-Type"))
			assert.JSONEq(t, tc.wantBody, string(resp.Body))
		})
	}
}

func TestRouter_errors_become_problem_details(t *testing.T) {
	t.Parallel()

	c := viewtest.NewClient(t, newNotesRouter())

	tests := map[string]struct {
		method     string
		path       string
		wantStatus int
		wantAllow  string
	}{
		"not found": {
			method: http.MethodGet, path: "/notes/404",
			wantStatus: http.StatusNotFound,
		},
		"method not allowed": {
			method: http.MethodOptions, path: "/notes/1",
			wantStatus: http.StatusMethodNotAllowed,
			wantAllow:  "GET, POST, PUT, PATCH, DELETE, OPTION",
		},
		"not implemented verb": {
			method: http.MethodPut, path: "/notes/1",
			wantStatus: http.StatusInternalServerError,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			resp := viewtest.Do(t, c, tc.method, tc.path, nil)
			assert.Equal(t, tc.wantStatus, resp.Status)
			assert.Equal(t, views.ContentTypeProblem, resp.Headers.Get("Content-Type"))
			assert.Equal(t, tc.wantAllow, resp.Headers.Get("Allow"))

			pd := viewtest.DecodeJSON[views.ProblemDetail](t, resp)
			assert.Equal(t, tc.wantStatus, pd.Status)
			assert.Equal(t, http.StatusText(tc.wantStatus), pd.Title)
		})
	}
}

func TestRouter_resource_and_tail_pass_through(t *testing.T) {
	t.Parallel()

	type seen struct {
		resource any
		tail     []string
	}
	got := make(chan seen, 1)

	r := views.New(views.WithLogger(zerolog.Nop()))
	r.Mount("/files/{bucket}/{tail...}", func(req *views.Request, res any, tail []string) views.View {
		return views.ViewFunc(func(context.Context) (any, error) {
			got <- seen{resource: res, tail: tail}
			return nil, nil
		})
	}, views.WithResource(func(req *http.Request) (any, error) {
		bucket := req.PathValue("bucket")
		if bucket == "missing" {
			return nil, views.Error(http.StatusNotFound, "no such bucket")
		}
		return "bucket:" + bucket, nil
	}))

	c := viewtest.NewClient(t, r)

	resp := viewtest.Get(t, c, "/files/photos/2024/summer/beach.png")
	assert.Equal(t, http.StatusNoContent, resp.Status)
	s := <-got
	assert.Equal(t, "bucket:photos", s.resource)
	assert.Equal(t, []string{"2024", "summer", "beach.png"}, s.tail)

	resp = viewtest.Get(t, c, "/files/missing/x")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Empty(t, got)
}

func TestRouter_custom_tail(t *testing.T) {
	t.Parallel()

	got := make(chan []string, 1)
	r := views.New(views.WithLogger(zerolog.Nop()))
	r.Mount("/q", func(_ *views.Request, _ any, tail []string) views.View {
		got <- tail
		return views.ViewFunc(func(context.Context) (any, error) { return nil, nil })
	}, views.WithTail(func(req *http.Request) []string {
		return req.URL.Query()["seg"]
	}))

	viewtest.Get(t, viewtest.NewClient(t, r), "/q?seg=a&seg=b")
	assert.Equal(t, []string{"a", "b"}, <-got)
}

func TestRouter_unsupported_result(t *testing.T) {
	t.Parallel()

	var buf syncBuffer
	r := views.New(views.WithLogger(zerolog.New(&buf)))
	r.Mount("/raw", func(req *views.Request, res any, tail []string) views.View {
		// A MethodsView result that no wrapping view serialized.
		return views.NewMethodsView(views.NewBase(req, res, tail), views.Handlers{
			views.MethodGet: func(context.Context) (any, error) { return 42, nil },
		})
	})

	resp := viewtest.Get(t, viewtest.NewClient(t, r), "/raw")
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Contains(t, string(resp.Body), "unsupported view result int")
	assert.Contains(t, buf.String(), "view failed")
}

func TestRouter_error_handler(t *testing.T) {
	t.Parallel()

	r := newNotesRouter(views.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
		w.WriteHeader(views.ErrorStatus(err))
		_, _ = w.Write([]byte("custom: " + err.Error())) //nolint:errcheck
	}))

	resp := viewtest.Get(t, viewtest.NewClient(t, r), "/notes/nope")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "custom: note nope not found", string(resp.Body))
}

func TestRouter_Group(t *testing.T) {
	t.Parallel()

	r := views.New(views.WithLogger(zerolog.Nop()))
	g := r.Group("/v1", views.WithGroupMiddleware(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Group", "v1")
			next.ServeHTTP(w, req)
		})
	}))
	g.Mount("/ping", func(*views.Request, any, []string) views.View {
		return views.ViewFunc(func(context.Context) (any, error) {
			return views.Text(http.StatusOK, "pong"), nil
		})
	}, views.WithMountMiddleware(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Mount", "ping")
			next.ServeHTTP(w, req)
		})
	}))

	resp := viewtest.Get(t, viewtest.NewClient(t, r), "/v1/ping")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "pong", string(resp.Body))
	assert.Equal(t, "v1", resp.Headers.Get("X-Group"))
	assert.Equal(t, "ping", resp.Headers.Get("X-Mount"))
	assert.Equal(t, []string{"/v1/ping"}, r.Patterns())
}

type spanRecorder struct {
	mu    sync.Mutex
	names []string
	ended int
}

func (s *spanRecorder) StartSpan(ctx context.Context, name string, _ map[string]string) (context.Context, func()) {
	s.mu.Lock()
	s.names = append(s.names, name)
	s.mu.Unlock()
	return ctx, func() {
		s.mu.Lock()
		s.ended++
		s.mu.Unlock()
	}
}

func TestRouter_tracer(t *testing.T) {
	t.Parallel()

	tr := &spanRecorder{}
	r := newNotesRouter(views.WithTracer(tr))
	viewtest.Get(t, viewtest.NewClient(t, r), "/notes/1")

	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Equal(t, []string{"view /notes/{tail...}"}, tr.names)
	assert.Equal(t, 1, tr.ended)
}

func TestRouter_websocket_through_middleware(t *testing.T) {
	t.Parallel()

	var logBuf syncBuffer
	logger := zerolog.New(&logBuf)
	hub := views.NewHub("room").WithLogger(zerolog.Nop())
	opened := make(chan struct{}, 2)
	closed := make(chan struct{}, 2)

	r := views.New(views.WithLogger(logger))
	r.Use(views.Recovery(logger), views.RequestID(), views.Logger(logger))
	r.Mount("/room", func(req *views.Request, res any, tail []string) views.View {
		return views.NewWebsocketView(views.NewBase(req, res, tail), views.LifecycleFuncs{
			Open: func(ctx context.Context, v *views.WebsocketView) error {
				hub.Add(v.Session())
				opened <- struct{}{}
				return nil
			},
			Message: func(ctx context.Context, v *views.WebsocketView, msg string) error {
				hub.Broadcast(msg)
				return nil
			},
			Close: func(ctx context.Context, v *views.WebsocketView) {
				hub.Remove(v.Session())
				closed <- struct{}{}
			},
		}, views.WithSocketLogger(zerolog.Nop()))
	})

	c := viewtest.NewClient(t, r)
	a := viewtest.Dial(t, c, "/room")
	b := viewtest.Dial(t, c, "/room")
	for range 2 {
		select {
		case <-opened:
		case <-time.After(wsTimeout):
			t.Fatal("session did not open")
		}
	}
	assert.Equal(t, 2, hub.Count())

	writeText(t, a, "hi all")
	assert.Equal(t, "hi all", viewtest.ReadText(t, a, wsTimeout))
	assert.Equal(t, "hi all", viewtest.ReadText(t, b, wsTimeout))

	viewtest.CloseNormal(t, a)
	viewtest.CloseNormal(t, b)
	for range 2 {
		select {
		case <-closed:
		case <-time.After(wsTimeout):
			t.Fatal("session did not close")
		}
	}
	assert.Equal(t, 0, hub.Count())

	require.Eventually(t, func() bool {
		return bytes.Contains(logBuf.Bytes(), []byte(`"upgraded":true`))
	}, wsTimeout, 10*time.Millisecond)
	assert.Contains(t, logBuf.String(), `"status":101`)

	// Plain GET on the websocket mount gets the diagnostic text.
	resp := viewtest.Get(t, c, "/room")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, string(resp.Body), "/room was meant to be called through ws protocol")
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func (b *syncBuffer) String() string {
	return string(b.Bytes())
}

func TestRouter_ListenAndServe_shuts_down(t *testing.T) {
	t.Parallel()

	r := newNotesRouter(views.WithShutdownTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- r.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(wsTimeout):
		t.Fatal("ListenAndServe did not return")
	}
}
