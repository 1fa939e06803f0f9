package router

import (
	"regexp"
	"sort"
	"strings"

	ferrors "github.com/vango-dev/flight/internal/errors"
	"github.com/vango-dev/flight/pkg/routepath"
)

// RouteMeta is one route's contribution to a branch.
type RouteMeta struct {
	// RelativePath is the part of the branch pattern this route matches,
	// with any absolute prefix owned by its parents removed.
	RelativePath  string
	CaseSensitive bool

	// ChildrenIndex is the route's position among its declared siblings.
	ChildrenIndex int

	Route *RouteNode
}

// Branch is one matchable root-to-leaf path through the route tree.
type Branch struct {
	// Path is the full pattern of the branch.
	Path   string
	Score  int
	Routes []RouteMeta
}

// Score weights.
const (
	dynamicSegmentValue = 3
	indexRouteValue     = 2
	emptySegmentValue   = 1
	staticSegmentValue  = 10
	splatPenalty        = -2
)

var paramSegment = regexp.MustCompile(`^:\w+$`)

// FlattenRoutes walks routes depth first and returns one branch per
// matchable route, children before their parent. Routes with neither a path
// nor the index flag contribute no branch of their own. Optional segments
// ("/:lang?/docs") are exploded into one branch per combination.
func FlattenRoutes(routes []*RouteNode) ([]Branch, error) {
	var branches []Branch
	if err := flatten(routes, &branches, nil, ""); err != nil {
		return nil, err
	}
	return branches, nil
}

func flatten(routes []*RouteNode, branches *[]Branch, parents []RouteMeta, parentPath string) error {
	for i, r := range routes {
		if !r.HasPath || r.Path == "" || !strings.Contains(r.Path, "?") {
			if err := flattenRoute(r, i, r.Path, branches, parents, parentPath); err != nil {
				return err
			}
			continue
		}
		for _, exploded := range ExplodeOptionalSegments(r.Path) {
			if err := flattenRoute(r, i, exploded, branches, parents, parentPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func flattenRoute(r *RouteNode, index int, relativePath string, branches *[]Branch, parents []RouteMeta, parentPath string) error {
	meta := RouteMeta{
		RelativePath:  relativePath,
		CaseSensitive: r.CaseSensitive,
		ChildrenIndex: index,
		Route:         r,
	}

	if strings.HasPrefix(meta.RelativePath, "/") {
		if !strings.HasPrefix(meta.RelativePath, parentPath) {
			return ferrors.New("E206").
				WithDetailf("route %q path %q is not under %q", r.ID, meta.RelativePath, parentPath).
				WithSuggestion("Make the child path relative, or start it with the combined path of its parents")
		}
		meta.RelativePath = meta.RelativePath[len(parentPath):]
	}

	path := routepath.JoinPaths(parentPath, meta.RelativePath)
	chain := make([]RouteMeta, len(parents)+1)
	copy(chain, parents)
	chain[len(parents)] = meta

	if len(r.Children) > 0 {
		if r.Index {
			return ferrors.New("E205").WithDetailf("route %q at %q", r.ID, path)
		}
		if err := flatten(r.Children, branches, chain, path); err != nil {
			return err
		}
	}

	if !r.HasPath && !r.Index {
		return nil
	}

	*branches = append(*branches, Branch{
		Path:   path,
		Score:  ComputeScore(path, r.Index),
		Routes: chain,
	})
	return nil
}

// ExplodeOptionalSegments returns every combination of the optional
// segments in path. For each optional segment, variants with the segment
// present come before variants with it omitted:
//
//	/one/:two?/three/:four?/:five?
//
// explodes to
//
//	/one/:two/three/:four/:five
//	/one/:two/three/:four
//	/one/:two/three/:five
//	/one/:two/three
//	/one/three/:four/:five
//	/one/three/:four
//	/one/three/:five
//	/one/three
func ExplodeOptionalSegments(path string) []string {
	segments := strings.Split(path, "/")
	first, rest := segments[0], segments[1:]

	optional := strings.HasSuffix(first, "?")
	required := strings.TrimSuffix(first, "?")

	if len(rest) == 0 {
		if optional {
			return []string{required, ""}
		}
		return []string{required}
	}

	restExploded := ExplodeOptionalSegments(strings.Join(rest, "/"))

	result := make([]string, 0, 2*len(restExploded))
	for _, sub := range restExploded {
		if sub == "" {
			result = append(result, required)
		} else {
			result = append(result, required+"/"+sub)
		}
	}
	if optional {
		result = append(result, restExploded...)
	}

	if strings.HasPrefix(path, "/") {
		for i, e := range result {
			if e == "" {
				result[i] = "/"
			}
		}
	}
	return result
}

// ComputeScore rates how specific a branch pattern is. Higher is more
// specific. Each segment counts one, plus 10 for a literal, 3 for a
// parameter and 1 for an empty segment. A splat costs 2 and an index route
// gains 2.
func ComputeScore(path string, index bool) int {
	segments := strings.Split(path, "/")
	score := len(segments)
	for _, s := range segments {
		if s == "*" {
			score += splatPenalty
			break
		}
	}
	if index {
		score += indexRouteValue
	}
	for _, s := range segments {
		switch {
		case s == "*":
		case paramSegment.MatchString(s):
			score += dynamicSegmentValue
		case s == "":
			score += emptySegmentValue
		default:
			score += staticSegmentValue
		}
	}
	return score
}

// RankBranches orders branches by score, highest first. Equal scores between
// siblings go to the one declared first; any other tie keeps flattening
// order.
func RankBranches(branches []Branch) {
	sort.SliceStable(branches, func(i, j int) bool {
		a, b := branches[i], branches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return compareIndexes(a.Routes, b.Routes) < 0
	})
}

// compareIndexes orders sibling branches by declaration index. Branches are
// siblings when they have the same depth and agree on every index but the
// last. Non-siblings compare equal.
func compareIndexes(a, b []RouteMeta) int {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	for i := 0; i < len(a)-1; i++ {
		if a[i].ChildrenIndex != b[i].ChildrenIndex {
			return 0
		}
	}
	return a[len(a)-1].ChildrenIndex - b[len(b)-1].ChildrenIndex
}
