package router

import "github.com/vango-dev/flight/pkg/routepath"

// RootID is the id every route tree is rooted at.
const RootID = "root"

// Definition is one declared route as it appears in a route manifest.
// Entries reference their parent by id; order among siblings is the order of
// declaration.
type Definition struct {
	ID       string `json:"id" yaml:"id"`
	ParentID string `json:"parentId,omitempty" yaml:"parentId,omitempty"`

	// Path is nil for pathless layout and index routes.
	Path *string `json:"path,omitempty" yaml:"path,omitempty"`

	Index         bool `json:"index,omitempty" yaml:"index,omitempty"`
	CaseSensitive bool `json:"caseSensitive,omitempty" yaml:"caseSensitive,omitempty"`

	// Component is the reference handed to the component loader.
	Component string `json:"component,omitempty" yaml:"component,omitempty"`
}

// RouteNode is a route in the declared tree. Nodes are immutable once built.
type RouteNode struct {
	ID string

	// Path is the route's own pattern, relative to its parent unless it
	// starts with "/". HasPath is false for pathless routes.
	Path    string
	HasPath bool

	Index         bool
	CaseSensitive bool
	Component     string

	Children []*RouteNode
	parent   *RouteNode
}

// Parent returns the parent route, or nil for the root.
func (n *RouteNode) Parent() *RouteNode { return n.parent }

// Pattern returns the route's own path pattern. ok is false for pathless
// routes.
func (n *RouteNode) Pattern() (p routepath.Pattern, ok bool) {
	if !n.HasPath {
		return routepath.Pattern{}, false
	}
	return routepath.Pattern{Path: n.Path, CaseSensitive: n.CaseSensitive, End: true}, true
}

// contributesPath reports whether the route adds to the pathname used for
// relative resolution.
func (n *RouteNode) contributesPath() bool {
	return n.HasPath && n.Path != ""
}

// Route returns a route with a path.
func Route(id, path string, children ...*RouteNode) *RouteNode {
	return link(&RouteNode{ID: id, Path: path, HasPath: true, Children: children})
}

// Layout returns a pathless layout route.
func Layout(id string, children ...*RouteNode) *RouteNode {
	return link(&RouteNode{ID: id, Children: children})
}

// IndexRoute returns an index route.
func IndexRoute(id string) *RouteNode {
	return &RouteNode{ID: id, Index: true}
}

// WithCaseSensitive marks n as matching its literal segments case-sensitively.
func (n *RouteNode) WithCaseSensitive() *RouteNode {
	n.CaseSensitive = true
	return n
}

// WithComponent sets the component reference.
func (n *RouteNode) WithComponent(ref string) *RouteNode {
	n.Component = ref
	return n
}

func link(n *RouteNode) *RouteNode {
	for _, c := range n.Children {
		c.parent = n
	}
	return n
}

// Walk visits every route depth first, parents before children.
func Walk(routes []*RouteNode, fn func(*RouteNode)) {
	for _, r := range routes {
		fn(r)
		Walk(r.Children, fn)
	}
}
