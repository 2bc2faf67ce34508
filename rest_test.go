package views_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/views"
)

func restView(method string, result any, opts ...views.RESTOption) *views.RESTView {
	h := views.Handlers{}
	for _, m := range views.AllowedMethods() {
		h[m] = func(context.Context) (any, error) { return result, nil }
	}
	return views.NewRESTView(newBase(method), h, opts...)
}

func TestRESTView_serializes_results(t *testing.T) {
	t.Parallel()

	type item struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	tests := map[string]struct {
		value any
	}{
		"struct":  {value: item{ID: 1, Name: "ünïcode"}},
		"map":     {value: map[string]any{"a": 1.5, "b": []string{"x"}}},
		"slice":   {value: []int{1, 2, 3}},
		"string":  {value: "hello"},
		"number":  {value: 42},
		"nil":     {value: nil},
		"boolean": {value: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := restView(http.MethodGet, tc.value).Call(context.Background())
			require.NoError(t, err)

			resp, ok := got.(*views.Response)
			require.True(t, ok, "got %T", got)

			want, err := json.Marshal(tc.value)
			require.NoError(t, err)
			assert.Equal(t, want, resp.Body)
			assert.Equal(t, http.StatusOK, resp.Status)
			assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
		})
	}
}

func TestRESTView_passes_stream_responses_through(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		value views.StreamResponse
	}{
		"stream":   {value: &views.Stream{ContentType: "image/png", Body: strings.NewReader("png")}},
		"response": {value: views.Text(http.StatusAccepted, "queued")},
		"redirect": {value: &views.Redirect{URL: "/elsewhere"}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := restView(http.MethodPost, tc.value).Call(context.Background())
			require.NoError(t, err)
			assert.Same(t, tc.value, got)
		})
	}
}

func TestRESTView_serialization_failure(t *testing.T) {
	t.Parallel()

	_, err := restView(http.MethodGet, map[string]any{"ch": make(chan int)}).Call(context.Background())
	require.ErrorIs(t, err, views.ErrSerialize)

	var ute *json.UnsupportedTypeError
	assert.ErrorAs(t, err, &ute)
}

type money struct {
	cents int
}

func TestRESTView_custom_serializer(t *testing.T) {
	t.Parallel()

	ser := views.SerializerFunc(func(v any) ([]byte, error) {
		if m, ok := v.(money); ok {
			return []byte(fmt.Sprintf(`{"amount":"%d.%02d"}`, m.cents/100, m.cents%100)), nil
		}
		return json.Marshal(v)
	})

	got, err := restView(http.MethodGet, money{cents: 1999}, views.WithSerializer(ser)).Call(context.Background())
	require.NoError(t, err)

	resp, ok := got.(*views.Response)
	require.True(t, ok)
	assert.JSONEq(t, `{"amount":"19.99"}`, string(resp.Body))
	assert.Equal(t, views.ContentTypeJSON, resp.Header.Get("Content-Type"))
}

func TestRESTView_propagates_dispatch_errors(t *testing.T) {
	t.Parallel()

	_, err := restView(http.MethodHead, "x").Call(context.Background())

	var mna *views.MethodNotAllowedError
	require.ErrorAs(t, err, &mna)
	assert.Equal(t, views.Method("head"), mna.Method)
}
