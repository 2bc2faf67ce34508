package views

import (
	"context"
	"encoding/json"
	"net/http"
)

// Serializer turns a handler result into a response body.
type Serializer interface {
	Serialize(v any) ([]byte, error)
}

// SerializerFunc adapts a function to Serializer.
type SerializerFunc func(v any) ([]byte, error)

// Serialize calls f(v).
func (f SerializerFunc) Serialize(v any) ([]byte, error) { return f(v) }

// JSONSerializer encodes values with encoding/json. The output is UTF-8.
type JSONSerializer struct{}

// Serialize returns the JSON encoding of v.
func (JSONSerializer) Serialize(v any) ([]byte, error) {
	return json.Marshal(v)
}

// RESTOption configures a RESTView.
type RESTOption func(*RESTView)

// WithSerializer replaces the JSON serializer, for results encoding/json
// cannot represent. The content type stays application/json.
func WithSerializer(s Serializer) RESTOption {
	return func(v *RESTView) {
		v.serializer = s
	}
}

// RESTView is a MethodsView whose results become JSON responses.
type RESTView struct {
	*MethodsView
	serializer Serializer
}

// NewRESTView returns a RESTView dispatching to h.
func NewRESTView(base *Base, h Handlers, opts ...RESTOption) *RESTView {
	v := &RESTView{
		MethodsView: NewMethodsView(base, h),
		serializer:  JSONSerializer{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Call dispatches the request. A StreamResponse result is returned as is;
// anything else is serialized into a 200 response with
// Content-Type application/json; charset=utf-8.
func (v *RESTView) Call(ctx context.Context) (any, error) {
	data, err := v.MethodsView.Call(ctx)
	if err != nil {
		return nil, err
	}
	if sr, ok := data.(StreamResponse); ok {
		return sr, nil
	}

	body, err := v.serializer.Serialize(data)
	if err != nil {
		return nil, wrapSentinel(ErrSerialize, err)
	}
	return &Response{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": {ContentTypeJSON}},
		Body:   body,
	}, nil
}
