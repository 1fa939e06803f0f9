package component

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/vango-dev/flight/pkg/protocol"
	"github.com/vango-dev/flight/pkg/render"
)

// OutlineLoader renders every reference as an outline of its route: the
// reference, the route id and the params, around an outlet. It lets a
// manifest be served and navigated before its components exist.
type OutlineLoader struct{}

// Load implements Loader. It never fails.
func (OutlineLoader) Load(_ context.Context, ref string) (render.Component, error) {
	return render.ComponentFunc(func(c *render.Ctx) (render.Outcome, error) {
		return render.Ok(Outline(ref, c.RouteID(), c.Params())), nil
	}), nil
}

// Outline is the node OutlineLoader renders.
func Outline(ref, routeID string, params map[string]string) *protocol.Node {
	label := ref
	if len(params) > 0 {
		pairs := make([]string, 0, len(params))
		for _, k := range slices.Sorted(maps.Keys(params)) {
			pairs = append(pairs, k+"="+params[k])
		}
		label += " (" + strings.Join(pairs, ", ") + ")"
	}
	return protocol.Element("div", map[string]string{
		"data-component": ref,
		"data-route":     routeID,
	},
		protocol.Element("p", nil, protocol.Text(label)),
		protocol.Outlet(),
	)
}
