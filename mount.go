package views

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// ResolveFunc resolves the resource a view operates on. Returning an
// error with a status (see Error) answers the request without building
// the view.
type ResolveFunc func(r *http.Request) (any, error)

// TailFunc returns the unresolved remainder of the path.
type TailFunc func(r *http.Request) []string

// mountInfo holds a mounted factory and how to build its views.
type mountInfo struct {
	pattern    string
	factory    Factory
	resolve    ResolveFunc
	tail       TailFunc
	middleware []Middleware

	handler http.Handler
}

// MountOption configures a mount at registration time.
type MountOption func(*mountInfo)

// WithResource sets the resolver whose result is passed to the factory.
func WithResource(fn ResolveFunc) MountOption {
	return func(mi *mountInfo) {
		mi.resolve = fn
	}
}

// WithTail overrides how the tail is computed. The default splits the
// {tail...} wildcard of the pattern on "/".
func WithTail(fn TailFunc) MountOption {
	return func(mi *mountInfo) {
		mi.tail = fn
	}
}

// WithMountMiddleware wraps only this mount.
func WithMountMiddleware(mw ...Middleware) MountOption {
	return func(mi *mountInfo) {
		mi.middleware = append(mi.middleware, mw...)
	}
}

// PathTail splits the {tail...} wildcard of the matched pattern into
// segments. Empty segments are dropped.
func PathTail(r *http.Request) []string {
	raw := r.PathValue("tail")
	if raw == "" {
		return nil
	}
	var out []string
	for _, seg := range strings.Split(raw, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// Registrar is implemented by *Router and *Group.
type Registrar interface {
	Mount(pattern string, f Factory, opts ...MountOption)
}

// Mount registers f for every method on pattern. Method filtering is the
// view's business (see MethodsView).
func (r *Router) Mount(pattern string, f Factory, opts ...MountOption) {
	r.mount(pattern, f, nil, opts...)
}

func (r *Router) mount(pattern string, f Factory, groupMW []Middleware, opts ...MountOption) {
	mi := mountInfo{
		pattern: pattern,
		factory: f,
		tail:    PathTail,
	}
	for _, opt := range opts {
		opt(&mi)
	}

	mi.handler = r.buildHandler(mi)

	mw := append(append([]Middleware{}, groupMW...), mi.middleware...)
	for i := len(mw) - 1; i >= 0; i-- {
		mi.handler = mw[i](mi.handler)
	}

	r.addMount(mi)
}

// buildHandler wraps a view factory into an http.Handler.
func (r *Router) buildHandler(mi mountInfo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		if r.tracer != nil {
			var end func()
			ctx, end = r.tracer.StartSpan(ctx, "view "+mi.pattern, map[string]string{
				"http.method": req.Method,
				"http.route":  mi.pattern,
			})
			defer end()
			req = req.WithContext(ctx)
		}

		var resource any
		if mi.resolve != nil {
			res, err := mi.resolve(req)
			if err != nil {
				r.handleError(w, req, err)
				return
			}
			resource = res
		}

		view := mi.factory(NewRequest(w, req), resource, mi.tail(req))
		result, err := view.Call(ctx)
		if err != nil {
			r.handleError(w, req, err)
			return
		}
		r.writeResult(w, req, result)
	})
}

// writeResult writes what a view returned.
func (r *Router) writeResult(w http.ResponseWriter, req *http.Request, result any) {
	switch res := result.(type) {
	case nil:
		w.WriteHeader(http.StatusNoContent)
	case StreamResponse:
		if err := res.Respond(w, req); err != nil {
			r.logger.Warn().Err(err).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Msg("response write failed")
		}
	default:
		r.handleError(w, req, errors.Errorf("unsupported view result %T", result))
	}
}

// handleError answers a failed view call. Errors from an upgraded
// connection are only logged.
func (r *Router) handleError(w http.ResponseWriter, req *http.Request, err error) {
	var se *SessionError
	if errors.Is(err, ErrUpgrade) || errors.As(err, &se) {
		r.logger.Warn().Err(err).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Msg("websocket view failed")
		return
	}

	if status := ErrorStatus(err); status >= http.StatusInternalServerError {
		r.logger.Error().Err(err).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("status", status).
			Msg("view failed")
	}

	if r.errorHandler != nil {
		r.errorHandler(w, req, err)
		return
	}
	writeErrorResponse(w, err)
}
