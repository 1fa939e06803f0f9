package router

import (
	"strings"

	ferrors "github.com/vango-dev/flight/internal/errors"
)

// BuildTree links manifest definitions into a route tree rooted at the "root"
// route and validates it. Entries without a parent id other than the root
// itself are attached to the root. Sibling order follows declaration order.
//
// Every problem is a configuration error returned immediately: a missing or
// duplicate id, a missing root, an unknown parent, a parent cycle, an index
// route with children, a splat that is not the last segment, or an absolute
// child path outside its parent.
func BuildTree(defs []Definition) ([]*RouteNode, error) {
	nodes := make(map[string]*RouteNode, len(defs))
	index := make(map[string]int, len(defs))

	for i, d := range defs {
		if d.ID == "" {
			return nil, ferrors.New("E209").WithSource("", i)
		}
		if _, dup := nodes[d.ID]; dup {
			return nil, ferrors.New("E201").
				WithDetailf("route %q (first declared at entry %d)", d.ID, index[d.ID]).
				WithSource("", i)
		}
		n := &RouteNode{
			ID:            d.ID,
			Index:         d.Index,
			CaseSensitive: d.CaseSensitive,
			Component:     d.Component,
		}
		if d.Path != nil {
			n.Path, n.HasPath = *d.Path, true
			if err := checkSplat(n.Path); err != nil {
				return nil, err.WithDetailf("route %q path %q", d.ID, n.Path).WithSource("", i)
			}
		}
		nodes[d.ID] = n
		index[d.ID] = i
	}

	root, ok := nodes[RootID]
	if !ok {
		return nil, ferrors.New("E202")
	}

	for i, d := range defs {
		if d.ID == RootID {
			continue
		}
		parentID := d.ParentID
		if parentID == "" {
			parentID = RootID
		}
		parent, ok := nodes[parentID]
		if !ok {
			return nil, ferrors.New("E203").
				WithDetailf("route %q names parent %q", d.ID, parentID).
				WithSource("", i)
		}
		n := nodes[d.ID]
		n.parent = parent
		parent.Children = append(parent.Children, n)
	}

	// Anything not reachable from the root sits on a parent cycle.
	reached := 0
	Walk([]*RouteNode{root}, func(*RouteNode) { reached++ })
	if reached != len(nodes) {
		for i, d := range defs {
			if !descendsFromRoot(nodes[d.ID]) {
				return nil, ferrors.New("E204").
					WithDetailf("route %q", d.ID).
					WithSource("", i)
			}
		}
	}

	for i, d := range defs {
		if n := nodes[d.ID]; n.Index && len(n.Children) > 0 {
			return nil, ferrors.New("E205").
				WithDetailf("route %q", n.ID).
				WithSource("", i)
		}
	}

	routes := []*RouteNode{root}
	// Flattening checks absolute child paths against their parents.
	if _, err := FlattenRoutes(routes); err != nil {
		return nil, err
	}
	return routes, nil
}

func descendsFromRoot(n *RouteNode) bool {
	seen := make(map[*RouteNode]bool)
	for ; n != nil; n = n.parent {
		if n.ID == RootID {
			return true
		}
		if seen[n] {
			return false
		}
		seen[n] = true
	}
	return false
}

func checkSplat(path string) *ferrors.FlightError {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if strings.Contains(s, "*") && i != len(segs)-1 {
			return ferrors.New("E207")
		}
	}
	return nil
}
