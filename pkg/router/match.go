package router

import (
	"errors"
	"strings"

	"github.com/vango-dev/flight/pkg/routepath"
)

// ErrNoBaseMatch is returned when a pathname does not start with the
// router's basename.
var ErrNoBaseMatch = errors.New("router: pathname is outside the basename")

// Match is one route's share of a successful match.
type Match struct {
	// Params holds every param captured by this route and its ancestors.
	// Deeper routes overwrite ancestors on name collisions.
	Params map[string]string

	// Pathname is the part of the pathname matched up to and including
	// this route.
	Pathname string

	// PathnameBase is Pathname without a splat value or trailing slash.
	// Child routes match from here.
	PathnameBase string

	Route *RouteNode
}

// Matches is an ordered root-to-leaf match list.
type Matches []Match

// MatchRoutes flattens, ranks and matches routes against pathname in one
// call. Callers matching repeatedly should build a Router, which ranks the
// branches once.
//
// It returns ErrNoBaseMatch when pathname is outside basename, a
// configuration error when the tree is malformed, and (nil, nil) when no
// route matches.
func MatchRoutes(routes []*RouteNode, pathname, basename string) (Matches, error) {
	branches, err := FlattenRoutes(routes)
	if err != nil {
		return nil, err
	}
	RankBranches(branches)
	return matchBranches(branches, pathname, basename)
}

func matchBranches(branches []Branch, pathname, basename string) (Matches, error) {
	if pathname == "" {
		pathname = "/"
	}
	stripped, ok := routepath.StripBasename(pathname, basename)
	if !ok {
		return nil, ErrNoBaseMatch
	}
	decoded := routepath.SafeDecodeURI(stripped)
	for _, b := range branches {
		if m := MatchBranch(b, decoded); m != nil {
			return m, nil
		}
	}
	return nil, nil
}

// MatchBranch matches each route of branch in turn, each against what the
// previous routes left of pathname. It returns nil unless every route
// matches and the last one consumes the whole pathname.
func MatchBranch(branch Branch, pathname string) Matches {
	params := make(map[string]string)
	matchedPathname := "/"
	matches := make(Matches, 0, len(branch.Routes))

	for i, meta := range branch.Routes {
		end := i == len(branch.Routes)-1
		remaining := pathname
		if matchedPathname != "/" && len(matchedPathname) <= len(pathname) {
			remaining = pathname[len(matchedPathname):]
			if remaining == "" {
				remaining = "/"
			}
		}

		m := routepath.MatchPath(routepath.Pattern{
			Path:          meta.RelativePath,
			CaseSensitive: meta.CaseSensitive,
			End:           end,
		}, remaining)
		if m == nil {
			return nil
		}

		for k, v := range m.Params {
			params[k] = v
		}
		snapshot := make(map[string]string, len(params))
		for k, v := range params {
			snapshot[k] = v
		}

		matches = append(matches, Match{
			Params:       snapshot,
			Pathname:     routepath.JoinPaths(matchedPathname, m.Pathname),
			PathnameBase: routepath.NormalizePathname(routepath.JoinPaths(matchedPathname, m.PathnameBase)),
			Route:        meta.Route,
		})

		if m.PathnameBase != "/" {
			matchedPathname = routepath.JoinPaths(matchedPathname, m.PathnameBase)
		}
	}
	return matches
}

// Leaf returns the deepest match. It panics on an empty list.
func (ms Matches) Leaf() Match { return ms[len(ms)-1] }

// Params returns the params of the deepest match, or nil.
func (ms Matches) Params() map[string]string {
	if len(ms) == 0 {
		return nil
	}
	return ms.Leaf().Params
}

// RouteIDs lists the matched route ids root to leaf.
func (ms Matches) RouteIDs() []string {
	ids := make([]string, len(ms))
	for i, m := range ms {
		ids[i] = m.Route.ID
	}
	return ids
}

// SegmentKeys returns one cache key per match. A key is the part of the
// pathname the match adds below its parent, without slashes; routes that add
// nothing (the root, pathless layouts, index routes) use their route id.
//
// For root → posts → posts/:id matched against /posts/42 the keys are
// ["root", "posts", "42"].
func (ms Matches) SegmentKeys() []string {
	keys := make([]string, len(ms))
	parentBase := "/"
	for i, m := range ms {
		added := m.Pathname
		if len(added) >= len(parentBase) && strings.EqualFold(added[:len(parentBase)], parentBase) {
			added = added[len(parentBase):]
		}
		added = strings.Trim(added, "/")
		if added == "" {
			added = m.Route.ID
		}
		keys[i] = added
		parentBase = m.PathnameBase
	}
	return keys
}

// PathContributingMatches drops matches whose route adds nothing to the
// pathname (pathless layouts, index routes), keeping the first match.
func PathContributingMatches(ms Matches) Matches {
	out := make(Matches, 0, len(ms))
	for i, m := range ms {
		if i == 0 || m.Route.contributesPath() {
			out = append(out, m)
		}
	}
	return out
}

// RoutePathnames returns the PathnameBase of every path contributing match,
// the ancestor list ResolveTo resolves ".." against.
func (ms Matches) RoutePathnames() []string {
	contributing := PathContributingMatches(ms)
	out := make([]string, len(contributing))
	for i, m := range contributing {
		out[i] = m.PathnameBase
	}
	return out
}
