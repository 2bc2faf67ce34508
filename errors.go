package views

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// Sentinel errors.
var (
	// ErrNotImplemented is returned by views and verb handlers that were
	// never overridden.
	ErrNotImplemented = errors.New("not implemented")
	ErrSerialize      = errors.New("serialize response")
	ErrDecode         = errors.New("decode body")
	// ErrUpgrade reports a websocket handshake the upgrader rejected. The
	// upgrader has already written the HTTP error response.
	ErrUpgrade        = errors.New("websocket upgrade")
	ErrSessionNotOpen = errors.New("websocket session is not open")
)

// kindError tags a cause with the sentinel describing what failed. Both
// match errors.Is and errors.As.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string { return e.kind.Error() + ": " + e.cause.Error() }

func (e *kindError) Unwrap() []error { return []error{e.kind, e.cause} }

// wrapSentinel reports err as an instance of sentinel, with a stack.
func wrapSentinel(sentinel, err error) error {
	return errors.WithStack(&kindError{kind: sentinel, cause: err})
}

// StatusCoder is implemented by errors or responses that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// ProblemDetail is an RFC 9457 problem details response.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Error returns the detail message (or title if detail is empty).
func (p *ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// StatusCode returns the HTTP status code.
func (p *ProblemDetail) StatusCode() int { return p.Status }

// HTTPError is an error with an HTTP status code.
type HTTPError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error returns the error message.
func (e *HTTPError) Error() string { return e.Message }

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Error returns an error with the given HTTP status code and message.
func Error(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

// Errorf returns a formatted error with the given HTTP status code.
func Errorf(status int, format string, args ...any) error {
	return &HTTPError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// MethodNotAllowedError is returned by MethodsView for a method outside
// its allowed set.
type MethodNotAllowedError struct {
	Method  Method
	Allowed []Method
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("method %q is not allowed", string(e.Method))
}

// StatusCode returns 405.
func (e *MethodNotAllowedError) StatusCode() int { return http.StatusMethodNotAllowed }

// SetHeaders sets the Allow header to the uppercased allowed methods.
func (e *MethodNotAllowedError) SetHeaders(h http.Header) {
	names := make([]string, len(e.Allowed))
	for i, m := range e.Allowed {
		names[i] = strings.ToUpper(string(m))
	}
	h.Set("Allow", strings.Join(names, ", "))
}

// ErrorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}
