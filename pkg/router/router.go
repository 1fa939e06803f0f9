package router

import (
	"log/slog"
	"sync"
)

// Router matches pathnames against a fixed route tree. Branches are
// flattened and ranked once, on first use. A Router is safe for concurrent
// use.
type Router struct {
	routes   []*RouteNode
	basename string
	logger   *slog.Logger

	once     sync.Once
	branches []Branch
	err      error

	byID map[string]*RouteNode
}

// Option configures a Router.
type Option func(*Router)

// WithBasename sets the prefix stripped from every pathname before
// matching.
func WithBasename(basename string) Option {
	return func(r *Router) {
		r.basename = basename
	}
}

// WithLogger sets the router's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		r.logger = l
	}
}

// New creates a router over routes.
func New(routes []*RouteNode, opts ...Option) *Router {
	r := &Router{
		routes:   routes,
		basename: "/",
		logger:   slog.Default(),
		byID:     make(map[string]*RouteNode),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "router")
	Walk(routes, func(n *RouteNode) { r.byID[n.ID] = n })
	return r
}

// Branches returns the ranked branches, computing them on first call.
func (r *Router) Branches() ([]Branch, error) {
	r.once.Do(func() {
		r.branches, r.err = FlattenRoutes(r.routes)
		if r.err != nil {
			return
		}
		RankBranches(r.branches)
		r.logger.Debug("ranked route branches", "routes", len(r.byID), "branches", len(r.branches))
	})
	return r.branches, r.err
}

// Match matches pathname. It returns ErrNoBaseMatch when pathname is outside
// the basename and (nil, nil) when no route matches.
func (r *Router) Match(pathname string) (Matches, error) {
	branches, err := r.Branches()
	if err != nil {
		return nil, err
	}
	return matchBranches(branches, pathname, r.basename)
}

// Route looks a route up by id.
func (r *Router) Route(id string) (*RouteNode, bool) {
	n, ok := r.byID[id]
	return n, ok
}

// Routes returns the top-level routes.
func (r *Router) Routes() []*RouteNode {
	return r.routes
}

// Basename returns the configured basename.
func (r *Router) Basename() string {
	return r.basename
}
