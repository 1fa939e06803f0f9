package router

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/flight/pkg/routepath"
)

func TestExplodeOptionalSegments(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/one/:two?/three", []string{"/one/:two/three", "/one/three"}},
		{":lang?", []string{":lang", ""}},
		{"/:lang?", []string{"/:lang", "/"}},
		{"/static", []string{"/static"}},
		{
			"/one/:two?/three/:four?/:five?",
			[]string{
				"/one/:two/three/:four/:five",
				"/one/:two/three/:four",
				"/one/:two/three/:five",
				"/one/:two/three",
				"/one/three/:four/:five",
				"/one/three/:four",
				"/one/three/:five",
				"/one/three",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ExplodeOptionalSegments(tt.path))
		})
	}
}

func TestComputeScore(t *testing.T) {
	tests := []struct {
		path  string
		index bool
		want  int
	}{
		{"/", false, 2 + 1 + 1},
		{"/posts", false, 2 + 1 + 10},
		{"/posts/:id", false, 3 + 1 + 10 + 3},
		{"/files/*", false, 3 - 2 + 1 + 10},
		{"/posts", true, 2 + 2 + 1 + 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ComputeScore(tt.path, tt.index), "%s index=%v", tt.path, tt.index)
	}
}

func TestOptionalSegmentPrecedence(t *testing.T) {
	routes := []*RouteNode{
		Route(RootID, "/",
			Route("opt", "one/:two?/three"),
			Route("later", "one/three"),
		),
	}
	branches, err := FlattenRoutes(routes)
	require.NoError(t, err)

	var paths []string
	for _, b := range branches {
		paths = append(paths, b.Path)
	}
	assert.Contains(t, paths, "/one/:two/three")
	assert.Contains(t, paths, "/one/three")

	// "/one/three" from the optional route ties with the later sibling and
	// wins on declaration order.
	matches, err := MatchRoutes(routes, "/one/three", "/")
	require.NoError(t, err)
	assert.Equal(t, "opt", matches.Leaf().Route.ID)
	assert.NotContains(t, matches.Leaf().Params, "two")

	matches, err = MatchRoutes(routes, "/one/2/three", "/")
	require.NoError(t, err)
	assert.Equal(t, "2", matches.Leaf().Params["two"])
}

func TestRankBranchesSiblingOrder(t *testing.T) {
	routes := []*RouteNode{
		Route(RootID, "/",
			Route("b", ":b"),
			Route("a", ":a"),
		),
	}
	matches, err := MatchRoutes(routes, "/x", "/")
	require.NoError(t, err)
	assert.Equal(t, "b", matches.Leaf().Route.ID)
}

func TestRankingDeterministicProperty(t *testing.T) {
	perms := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	names := []string{"alpha", "beta", "gamma"}

	properties := gopter.NewProperties(nil)
	properties.Property("earliest equal-score sibling wins", prop.ForAll(
		func(p int, segment string) bool {
			perm := perms[p]
			children := make([]*RouteNode, len(perm))
			for i, idx := range perm {
				children[i] = Route(names[idx], ":"+names[idx])
			}
			routes := []*RouteNode{Route(RootID, "/", Route("section", "section", children...))}

			matches, err := MatchRoutes(routes, "/section/"+segment, "/")
			if err != nil || len(matches) != 3 {
				return false
			}
			return matches.Leaf().Route.ID == names[perm[0]]
		},
		gen.IntRange(0, len(perms)-1),
		gen.RegexMatch(`^[a-z0-9]{1,6}$`),
	))
	properties.TestingRun(t)
}

// Matching a branch route by route gives the same pathname and base as
// matching the joined pattern in one go.
func TestBranchCompositionProperty(t *testing.T) {
	type level struct {
		pattern string
		value   string
	}
	levelGen := gen.OneGenOf(
		gen.RegexMatch(`^[a-z]{1,6}$`).Map(func(s string) level { return level{s, s} }),
		gen.RegexMatch(`^[a-z]{1,6}$`).Map(func(s string) level { return level{":p" + s, s + "v"} }),
	)

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 150
	properties := gopter.NewProperties(params)

	properties.Property("segment-wise match equals whole-pattern match", prop.ForAll(
		func(levels []level) bool {
			var leaf *RouteNode
			full, pathname := "", ""
			for i := len(levels) - 1; i >= 0; i-- {
				id := fmt.Sprintf("r%d", i)
				if leaf == nil {
					leaf = Route(id, levels[i].pattern)
				} else {
					leaf = Route(id, levels[i].pattern, leaf)
				}
			}
			seen := map[string]bool{}
			for _, l := range levels {
				if seen[l.pattern] {
					return true // duplicate param names collapse; not this property's concern
				}
				seen[l.pattern] = true
				full += "/" + l.pattern
				pathname += "/" + l.value
			}

			routes := []*RouteNode{Route(RootID, "/", leaf)}
			matches, err := MatchRoutes(routes, pathname, "/")
			if err != nil || matches == nil {
				return false
			}
			direct := routepath.MatchPath(routepath.Pattern{Path: full, End: true}, pathname)
			if direct == nil {
				return false
			}
			last := matches.Leaf()
			return last.Pathname == direct.Pathname && last.PathnameBase == direct.PathnameBase
		},
		gen.SliceOfN(4, levelGen),
	))
	properties.TestingRun(t)
}
