package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vango-dev/flight/pkg/render"
	"github.com/vango-dev/flight/pkg/routepath"
	"github.com/vango-dev/flight/pkg/router"
)

// loadRouter loads the configured manifest and builds its router.
func loadRouter(ctx context.Context, flags *globalFlags) (*router.Router, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	m, err := loadManifest(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return m.Router(router.WithBasename(cfg.Routes.Basename))
}

func routesCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the manifest and its ranked branches",
		Long: `List every manifest entry, then every matchable branch in the order
the matcher tries them, with its score.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			m, err := loadManifest(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			rt, err := m.Router(router.WithBasename(cfg.Routes.Basename))
			if err != nil {
				return err
			}
			branches, err := rt.Branches()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%d routes)\n", m.Source, len(m.Routes))
			io.WriteString(out, m.String())
			fmt.Fprintln(out)
			printBranches(out, branches)
			return nil
		},
	}
	return cmd
}

func printBranches(w io.Writer, branches []router.Branch) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tPATH\tROUTES")
	for _, b := range branches {
		ids := make([]string, len(b.Routes))
		for i, r := range b.Routes {
			ids[i] = r.Route.ID
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", b.Score, b.Path, strings.Join(ids, " > "))
	}
	tw.Flush()
}

func matchCmd(flags *globalFlags) *cobra.Command {
	var state []string

	cmd := &cobra.Command{
		Use:   "match <pathname>",
		Short: "Match a pathname and show the segment keys",
		Long: `Match a pathname against the manifest and print one line per matched
route with its segment key and params.

With --state, also show which segments a client holding those keys
would be sent.

Examples:
  flight match /posts/42
  flight match /posts/42 --state root,posts,7`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRouter(cmd.Context(), flags)
			if err != nil {
				return err
			}
			ms, err := rt.Match(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ms) == 0 {
				warn(out, "no route matches %s", args[0])
				return nil
			}
			printMatches(out, ms)

			if cmd.Flags().Changed("state") {
				keys := ms.SegmentKeys()
				skip := render.SkipPrefix(keys, state)
				fmt.Fprintln(out)
				info(out, "skipped: %s", strings.Join(keys[:skip], ", "))
				info(out, "render:  %s", strings.Join(keys[skip:], ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&state, "state", nil, "Segment keys the client already holds, root first")
	return cmd
}

func printMatches(w io.Writer, ms router.Matches) {
	keys := ms.SegmentKeys()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEPTH\tKEY\tROUTE\tPATHNAME\tCOMPONENT")
	for i, m := range ms {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, keys[i], m.Route.ID, m.Pathname, m.Route.Component)
	}
	tw.Flush()
	if params := ms.Params(); len(params) > 0 {
		fmt.Fprintf(w, "params: %v\n", params)
	}
}

func resolveCmd(flags *globalFlags) *cobra.Command {
	var (
		from         string
		pathRelative bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <to>",
		Short: "Resolve a relative link against a location",
		Long: `Resolve a link the way a route component at --from would: ".." steps
up one route, not one URL segment.

Examples:
  flight resolve .. --from /posts/42
  flight resolve ../7?tab=comments --from /posts/42`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRouter(cmd.Context(), flags)
			if err != nil {
				return err
			}
			ms, err := rt.Match(from)
			if err != nil {
				return err
			}
			p := router.ResolveTo(args[0], ms.RoutePathnames(), from)
			if pathRelative {
				p, err = router.ResolveToPath(router.ParsePath(args[0]), ms.RoutePathnames(), from, true)
				if err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "/", "Current location pathname")
	cmd.Flags().BoolVar(&pathRelative, "path", false, "Resolve against the URL path instead of the route hierarchy")
	return cmd
}

func linkCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "link <route-id> [name=value...]",
		Short: "Build the URL of a route from params",
		Long: `Fill a route's full path pattern with params. Optional params may be
left out; "*=value" fills a trailing splat.

Examples:
  flight link post id=42
  flight link posts-index`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MinimumNArgs(1)(cmd, args); err != nil {
				return usageError(cmd, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRouter(cmd.Context(), flags)
			if err != nil {
				return err
			}
			pattern, ok := routePattern(rt, args[0])
			if !ok {
				return usageError(cmd, fmt.Errorf("unknown route %q", args[0]))
			}
			params := make(map[string]string, len(args)-1)
			for _, kv := range args[1:] {
				name, value, ok := strings.Cut(kv, "=")
				if !ok || name == "" {
					return usageError(cmd, fmt.Errorf("param %q is not name=value", kv))
				}
				params[name] = value
			}
			p, err := router.GeneratePath(pattern, params)
			if err != nil {
				return err
			}
			if base := rt.Basename(); base != "" && base != "/" {
				p = routepath.JoinPaths(base, p)
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

// routePattern returns the full path pattern of route id, from the root or
// the nearest absolute ancestor.
func routePattern(rt *router.Router, id string) (string, bool) {
	n, ok := rt.Route(id)
	if !ok {
		return "", false
	}
	var parts []string
	for ; n != nil; n = n.Parent() {
		if !n.HasPath {
			continue
		}
		parts = append(parts, n.Path)
		if strings.HasPrefix(n.Path, "/") {
			break
		}
	}
	slices.Reverse(parts)
	return routepath.JoinPaths(parts...), true
}
