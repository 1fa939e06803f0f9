package segcache

import "strings"

// RootSegment is the sentinel segment of the root node.
const RootSegment = "<root>"

// Node is one cached segment.
type Node[T any] struct {
	Segment string

	subtree  *T
	children map[string]*Node[T]
	order    []string
}

func newNode[T any](segment string) *Node[T] {
	return &Node[T]{Segment: segment, children: make(map[string]*Node[T])}
}

// Content returns the node's rendered content. ok is false while the node is
// unresolved.
func (n *Node[T]) Content() (content T, ok bool) {
	if n.subtree == nil {
		return content, false
	}
	return *n.subtree, true
}

// Resolved reports whether content has been set on n.
func (n *Node[T]) Resolved() bool { return n.subtree != nil }

// Child returns the child for segment, or nil.
func (n *Node[T]) Child(segment string) *Node[T] { return n.children[segment] }

// Children returns the children in insertion order.
func (n *Node[T]) Children() []*Node[T] {
	out := make([]*Node[T], len(n.order))
	for i, k := range n.order {
		out[i] = n.children[k]
	}
	return out
}

func (n *Node[T]) addChild(segment string) *Node[T] {
	c := newNode[T](segment)
	n.children[segment] = c
	n.order = append(n.order, segment)
	return c
}

// Tree is a client-side segment cache.
type Tree[T any] struct {
	root *Node[T]
}

// New returns an empty tree.
func New[T any]() *Tree[T] {
	return &Tree[T]{root: newNode[T](RootSegment)}
}

// Root returns the sentinel root node.
func (t *Tree[T]) Root() *Node[T] { return t.root }

// Has reports whether a node exists for every segment of path. The nodes do
// not have to be resolved. An empty path is never present.
func (t *Tree[T]) Has(path []string) bool {
	if len(path) == 0 {
		return false
	}
	return t.Lookup(path) != nil
}

// Lookup returns the node at path, or nil when any segment is missing. An
// empty path returns the root.
func (t *Tree[T]) Lookup(path []string) *Node[T] {
	n := t.root
	for _, seg := range path {
		if n = n.children[seg]; n == nil {
			return nil
		}
	}
	return n
}

// EnsureShallowestUncached follows path from the root through existing nodes.
// At the first missing segment it creates exactly one node and returns it
// together with the prefix of path that already existed. Segments below the
// new node are left alone so the caller fetches one subtree per call.
//
// When every segment exists nothing is created: the deepest node is returned
// with the whole path as the existing prefix. An empty path returns the root.
func (t *Tree[T]) EnsureShallowestUncached(path []string) (*Node[T], []string) {
	n := t.root
	for i, seg := range path {
		child := n.children[seg]
		if child == nil {
			return n.addChild(seg), clonePath(path[:i])
		}
		n = child
	}
	return n, clonePath(path)
}

// Set stores content on n, replacing any earlier content. Content is never
// cleared short of Reset.
func (t *Tree[T]) Set(n *Node[T], content T) {
	n.subtree = &content
}

// FirstUnresolved returns the depth of the first segment of path whose node
// is missing or has no content. ok is false when the whole path is resolved.
func (t *Tree[T]) FirstUnresolved(path []string) (depth int, ok bool) {
	n := t.root
	for i, seg := range path {
		if n = n.children[seg]; n == nil || !n.Resolved() {
			return i, true
		}
	}
	return 0, false
}

// Reset drops every node.
func (t *Tree[T]) Reset() {
	t.root = newNode[T](RootSegment)
}

// Walk visits every node below the root depth first, parents before
// children and siblings in insertion order. path is the segment path of the
// node and must not be retained.
func (t *Tree[T]) Walk(fn func(path []string, n *Node[T])) {
	var walk func(n *Node[T], path []string)
	walk = func(n *Node[T], path []string) {
		for _, k := range n.order {
			c := n.children[k]
			p := append(path, k)
			fn(p, c)
			walk(c, p)
		}
	}
	walk(t.root, nil)
}

// String renders the tree one node per line, marking unresolved nodes.
func (t *Tree[T]) String() string {
	var b strings.Builder
	b.WriteString(RootSegment)
	b.WriteByte('\n')
	t.Walk(func(path []string, n *Node[T]) {
		b.WriteString(strings.Repeat("  ", len(path)))
		b.WriteString(n.Segment)
		if !n.Resolved() {
			b.WriteString(" (pending)")
		}
		b.WriteByte('\n')
	})
	return b.String()
}

func clonePath(p []string) []string {
	out := make([]string, len(p))
	copy(out, p)
	return out
}
