package views

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// View is invoked once per inbound request. The result is either a
// StreamResponse the router writes as is, a value a wrapping view turns
// into one, or nil for 204 No Content.
type View interface {
	Call(ctx context.Context) (any, error)
}

// ViewFunc adapts a function to View.
type ViewFunc func(ctx context.Context) (any, error)

// Call calls f(ctx).
func (f ViewFunc) Call(ctx context.Context) (any, error) { return f(ctx) }

// Factory builds the view for one request. The router calls it with the
// resource and tail its resolvers produced.
type Factory func(req *Request, resource any, tail []string) View

// Request is the inbound HTTP request together with the writer the
// response (or websocket upgrade) goes to.
type Request struct {
	*http.Request
	Writer http.ResponseWriter
}

// NewRequest pairs r with w.
func NewRequest(w http.ResponseWriter, r *http.Request) *Request {
	return &Request{Request: r, Writer: w}
}

// DecodeJSON decodes the request body into v. An empty body leaves v
// untouched.
func (r *Request) DecodeJSON(v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return wrapSentinel(ErrDecode, err)
	}
	return nil
}

// Base holds what every view is built from. Embed it and shadow Call.
type Base struct {
	Request  *Request
	Resource any
	Tail     []string
}

// NewBase returns a Base for the given request, resource and tail.
func NewBase(req *Request, resource any, tail []string) *Base {
	return &Base{Request: req, Resource: resource, Tail: tail}
}

// Call returns ErrNotImplemented.
func (b *Base) Call(context.Context) (any, error) {
	return nil, ErrNotImplemented
}
