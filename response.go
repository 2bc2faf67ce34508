package views

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

// Content types written by this package.
const (
	ContentTypeJSON    = "application/json; charset=utf-8"
	ContentTypeText    = "text/plain; charset=utf-8"
	ContentTypeProblem = "application/problem+json"
)

// StreamResponse is a response that writes itself. Views return one to
// take over the body; RESTView passes it through without serializing.
type StreamResponse interface {
	Respond(w http.ResponseWriter, r *http.Request) error
}

// HeaderSetter is optionally implemented by errors and responses to set
// response headers.
type HeaderSetter interface {
	SetHeaders(h http.Header)
}

// Response is a fully buffered response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Text returns a text/plain response.
func Text(status int, body string) *Response {
	return &Response{
		Status: status,
		Header: http.Header{"Content-Type": {ContentTypeText}},
		Body:   []byte(body),
	}
}

// JSON encodes v into an application/json response.
func JSON(status int, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode json response")
	}
	return &Response{
		Status: status,
		Header: http.Header{"Content-Type": {ContentTypeJSON}},
		Body:   body,
	}, nil
}

// Respond writes the header, status and body.
func (resp *Response) Respond(w http.ResponseWriter, _ *http.Request) error {
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(resp.Body) == 0 {
		return nil
	}
	_, err := w.Write(resp.Body)
	return err
}

// Redirect is returned from a view to issue an HTTP redirect.
type Redirect struct {
	URL    string
	Status int
}

// Respond issues the redirect, 302 Found unless Status is set.
func (rd *Redirect) Respond(w http.ResponseWriter, r *http.Request) error {
	status := rd.Status
	if status == 0 {
		status = http.StatusFound
	}
	http.Redirect(w, r, rd.URL, status)
	return nil
}

// writeErrorResponse writes an error as an RFC 9457 problem details response.
func writeErrorResponse(w http.ResponseWriter, err error) {
	var hs HeaderSetter
	if errors.As(err, &hs) {
		hs.SetHeaders(w.Header())
	}

	// If the error is already a ProblemDetail, use it directly.
	var pd *ProblemDetail
	if errors.As(err, &pd) {
		w.Header().Set("Content-Type", ContentTypeProblem)
		w.WriteHeader(pd.Status)
		//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
		json.NewEncoder(w).Encode(pd)
		return
	}

	status := ErrorStatus(err)
	problem := &ProblemDetail{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: err.Error(),
	}

	w.Header().Set("Content-Type", ContentTypeProblem)
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
	json.NewEncoder(w).Encode(problem)
}
