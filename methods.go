package views

import (
	"context"
	"strings"
)

// Method is a lowercased HTTP verb name.
type Method string

// Verbs MethodsView dispatches. MethodOption is "option", so an OPTIONS
// request ("options") is not allowed.
const (
	MethodGet    Method = "get"
	MethodPost   Method = "post"
	MethodPut    Method = "put"
	MethodPatch  Method = "patch"
	MethodDelete Method = "delete"
	MethodOption Method = "option"
)

// AllowedMethods returns the fixed set of verbs MethodsView dispatches.
func AllowedMethods() []Method {
	return []Method{MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete, MethodOption}
}

func isAllowed(m Method) bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete, MethodOption:
		return true
	}
	return false
}

// HandlerFunc handles one verb.
type HandlerFunc func(ctx context.Context) (any, error)

// Handlers maps verbs to their handlers. A verb in AllowedMethods without
// an entry answers ErrNotImplemented.
type Handlers map[Method]HandlerFunc

// Per-verb handler interfaces picked up by MethodHandlers.
type (
	Getter   interface{ Get(ctx context.Context) (any, error) }
	Poster   interface{ Post(ctx context.Context) (any, error) }
	Putter   interface{ Put(ctx context.Context) (any, error) }
	Patcher  interface{ Patch(ctx context.Context) (any, error) }
	Deleter  interface{ Delete(ctx context.Context) (any, error) }
	Optioner interface{ Option(ctx context.Context) (any, error) }
)

// MethodHandlers builds a Handlers table from the verb interfaces v
// implements.
func MethodHandlers(v any) Handlers {
	h := Handlers{}
	if g, ok := v.(Getter); ok {
		h[MethodGet] = g.Get
	}
	if p, ok := v.(Poster); ok {
		h[MethodPost] = p.Post
	}
	if p, ok := v.(Putter); ok {
		h[MethodPut] = p.Put
	}
	if p, ok := v.(Patcher); ok {
		h[MethodPatch] = p.Patch
	}
	if d, ok := v.(Deleter); ok {
		h[MethodDelete] = d.Delete
	}
	if o, ok := v.(Optioner); ok {
		h[MethodOption] = o.Option
	}
	return h
}

// MethodsView dispatches on the request method.
type MethodsView struct {
	*Base
	handlers Handlers
}

// NewMethodsView returns a view dispatching to h.
func NewMethodsView(base *Base, h Handlers) *MethodsView {
	return &MethodsView{Base: base, handlers: h}
}

// Call runs the handler for the lowercased request method and returns its
// result unchanged. Methods outside AllowedMethods fail with a
// *MethodNotAllowedError.
func (v *MethodsView) Call(ctx context.Context) (any, error) {
	m := Method(strings.ToLower(v.Request.Method))
	if !isAllowed(m) {
		return nil, &MethodNotAllowedError{Method: m, Allowed: AllowedMethods()}
	}
	h, ok := v.handlers[m]
	if !ok || h == nil {
		return nil, ErrNotImplemented
	}
	return h(ctx)
}
