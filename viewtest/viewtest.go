// Package viewtest provides test helpers for routers built with views.
package viewtest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Client wraps an httptest.Server for convenient view testing.
type Client struct {
	Server *httptest.Server
}

// NewClient starts a test server for h.
func NewClient(t testing.TB, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &Client{Server: srv}
}

// Response holds a fully read response.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Get sends a GET request.
func Get(t testing.TB, c *Client, path string) *Response {
	t.Helper()
	return Do(t, c, http.MethodGet, path, nil)
}

// Do sends a request. A non-nil body is sent as JSON.
func Do(t testing.TB, c *Client, method, path string, body any) *Response {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("viewtest: marshal request body: %v", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, c.Server.URL+path, reqBody)
	if err != nil {
		t.Fatalf("viewtest: create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("viewtest: execute request: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.Errorf("viewtest: close body: %v", closeErr)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("viewtest: read body: %v", err)
	}

	return &Response{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Body:    data,
	}
}

// DecodeJSON decodes the response body into a T.
func DecodeJSON[T any](t testing.TB, resp *Response) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		t.Fatalf("viewtest: decode body %q: %v", resp.Body, err)
	}
	return out
}

// URL returns the websocket URL for path on the test server.
func (c *Client) URL(path string) string {
	return "ws" + strings.TrimPrefix(c.Server.URL, "http") + path
}

// Dial opens a websocket connection to path. The connection is closed
// when the test ends.
func Dial(t testing.TB, c *Client, path string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.URL(path), nil)
	if resp != nil && resp.Body != nil {
		//nolint:errcheck,gosec // handshake body is empty
		resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("viewtest: dial %s: %v", path, err)
	}
	t.Cleanup(func() {
		//nolint:errcheck,gosec // may already be closed by the test
		conn.Close()
	})
	return conn
}

// ReadText reads one text message, failing the test after timeout.
func ReadText(t testing.TB, conn *websocket.Conn, timeout time.Duration) string {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("viewtest: set read deadline: %v", err)
	}
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("viewtest: read message: %v", err)
	}
	if mt != websocket.TextMessage {
		t.Fatalf("viewtest: got message type %d, want text", mt)
	}
	return string(data)
}

// CloseNormal sends a normal-closure frame.
func CloseNormal(t testing.TB, conn *websocket.Conn) {
	t.Helper()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("viewtest: write close: %v", err)
	}
}
