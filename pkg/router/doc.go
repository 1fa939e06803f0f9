// Package router matches URL pathnames against a tree of nested routes.
//
// Routes are declared once, usually from a route manifest, and form a tree
// rooted at the route with id "root". Each route may carry a path pattern
// (see package routepath), be an index route that renders at its parent's
// path, or be pathless, contributing a layout without consuming any of the
// pathname.
//
// Matching flattens the tree into branches (one per matchable root-to-leaf
// path), scores each branch by how specific its pattern is and tries them in
// rank order. The first branch whose every route matches wins:
//
//	r := router.New(routes, router.WithBasename("/app"))
//	matches, err := r.Match("/app/posts/42")
//	// matches[i].Route.ID: "root", "posts", "post"
//	// matches[2].Params:   {"id": "42"}
//
// An empty result with a nil error means nothing matched and the caller
// should render its not-found view. ErrNoBaseMatch means the pathname is
// outside the basename entirely.
//
// Matches also yield segment keys, one per route level, which identify the
// rendered segments a client may already hold (see package segcache).
//
// Relative navigation targets are resolved at the route level with
// ResolveTo: each leading ".." leaves one route, not one URL segment.
package router
