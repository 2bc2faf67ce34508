// Package views provides view types for net/http services. A view is
// created per request from the request, a resolved resource and the
// unresolved path tail, and is invoked once:
//
//	type View interface {
//	    Call(ctx context.Context) (any, error)
//	}
//
// Three views cover the common cases:
//
//   - MethodsView dispatches on the lowercased HTTP method to a Handlers
//     table and rejects anything outside AllowedMethods with a
//     *MethodNotAllowedError.
//   - RESTView serializes handler results to JSON bodies. Handlers that
//     return a StreamResponse bypass serialization.
//   - WebsocketView upgrades the connection and drives a Lifecycle
//     (OnOpen, OnMessage, OnClose) from the inbound message stream.
//
// Views are mounted on a Router, which resolves the resource and tail,
// writes the result and translates errors into RFC 9457 problem details:
//
//	r := views.New(views.WithLogger(logger))
//	r.Mount("/notes/{tail...}", func(req *views.Request, res any, tail []string) views.View {
//	    n := &notesView{store: store}
//	    return views.NewRESTView(views.NewBase(req, res, tail), views.MethodHandlers(n))
//	})
//
// Middleware uses the standard func(http.Handler) http.Handler signature.
package views
