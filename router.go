package views

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Router mounts view factories on an http.ServeMux and applies middleware.
// It implements http.Handler.
type Router struct {
	mux        *http.ServeMux
	middleware []Middleware
	mounts     []mountInfo

	logger       zerolog.Logger
	errorHandler ErrorHandler
	tracer       SpanStarter

	shutdownTimeout time.Duration

	mu sync.Mutex
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLogger sets the logger used for view failures.
func WithLogger(l zerolog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = l
	}
}

// ErrorHandler is a custom error response writer.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// WithErrorHandler sets a custom error handler for the router. It is not
// called for errors that happen after a websocket upgrade.
func WithErrorHandler(h ErrorHandler) RouterOption {
	return func(r *Router) {
		r.errorHandler = h
	}
}

// SpanStarter is a tracing hook interface for creating spans per view call.
// Implement this with your preferred tracing backend (e.g., OpenTelemetry).
type SpanStarter interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func())
}

// WithTracer sets a tracing hook for the router.
func WithTracer(s SpanStarter) RouterOption {
	return func(r *Router) {
		r.tracer = s
	}
}

// WithShutdownTimeout bounds graceful shutdown in ListenAndServe.
func WithShutdownTimeout(d time.Duration) RouterOption {
	return func(r *Router) {
		r.shutdownTimeout = d
	}
}

// New creates a new Router with the given options.
func New(opts ...RouterOption) *Router {
	r := &Router{
		mux:             http.NewServeMux(),
		logger:          log.Logger,
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Use adds middleware to the router. Middleware is applied in the order added.
func (r *Router) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	handler := http.Handler(r.mux)
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}
	handler.ServeHTTP(w, req)
}

// ListenAndServe starts an HTTP server on the given address.
// It blocks until the context is cancelled, then shuts down gracefully.
// Requests run under ctx, so open websocket sessions end with it.
func (r *Router) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Patterns returns the mounted patterns in registration order.
func (r *Router) Patterns() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.mounts))
	for i, mi := range r.mounts {
		out[i] = mi.pattern
	}
	return out
}

// addMount registers a mountInfo with the router's mux. Global middleware
// is applied in ServeHTTP; only group and mount middleware is
// baked into mi.handler.
func (r *Router) addMount(mi mountInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.mux.Handle(mi.pattern, mi.handler)
	r.mounts = append(r.mounts, mi)
}
