package views

// Group is a collection of mounts under a shared prefix with shared middleware.
type Group struct {
	router     *Router
	prefix     string
	middleware []Middleware
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithGroupMiddleware adds middleware to the group.
func WithGroupMiddleware(mw ...Middleware) GroupOption {
	return func(g *Group) {
		g.middleware = append(g.middleware, mw...)
	}
}

// Group creates a new group with the given prefix and options.
func (r *Router) Group(prefix string, opts ...GroupOption) *Group {
	g := &Group{
		router: r,
		prefix: prefix,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Mount registers f under the group prefix. A method in pattern
// ("GET /x") is not supported; views filter methods themselves.
func (g *Group) Mount(pattern string, f Factory, opts ...MountOption) {
	g.router.mount(g.prefix+pattern, f, g.middleware, opts...)
}
