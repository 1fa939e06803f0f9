package router

import (
	"fmt"
	"regexp"
	"strings"

	ferrors "github.com/vango-dev/flight/internal/errors"
	"github.com/vango-dev/flight/pkg/routepath"
)

// Path is a location split into its parts. Search keeps its leading "?" and
// Hash its leading "#".
type Path struct {
	Pathname string
	Search   string
	Hash     string
}

// String joins the parts back into a URL path.
func (p Path) String() string {
	return CreatePath(p)
}

// ParsePath splits a URL path into pathname, search and hash. Pathname is
// empty when s carries only a search or hash.
func ParsePath(s string) Path {
	var p Path
	if s == "" {
		return p
	}
	if i := strings.IndexByte(s, '#'); i >= 0 {
		p.Hash = s[i:]
		s = s[:i]
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		p.Search = s[i:]
		s = s[:i]
	}
	p.Pathname = s
	return p
}

// CreatePath is the inverse of ParsePath. An empty pathname becomes "/".
func CreatePath(p Path) string {
	out := p.Pathname
	if out == "" {
		out = "/"
	}
	return out + routepath.NormalizeSearch(p.Search) + routepath.NormalizeHash(p.Hash)
}

// ResolvePath resolves to against the URL pathname from using URL rules:
// "." stays, ".." drops one URL segment. An empty to.Pathname resolves to
// from itself.
func ResolvePath(to Path, from string) Path {
	if from == "" {
		from = "/"
	}
	pathname := from
	if to.Pathname != "" {
		if strings.HasPrefix(to.Pathname, "/") {
			pathname = to.Pathname
		} else {
			pathname = resolvePathname(to.Pathname, from)
		}
	}
	return Path{
		Pathname: pathname,
		Search:   routepath.NormalizeSearch(to.Search),
		Hash:     routepath.NormalizeHash(to.Hash),
	}
}

func resolvePathname(relative, from string) string {
	segments := strings.Split(strings.TrimRight(from, "/"), "/")
	for _, seg := range strings.Split(relative, "/") {
		switch seg {
		case "..":
			// Keep the leading "" so the result stays absolute.
			if len(segments) > 1 {
				segments = segments[:len(segments)-1]
			}
		case ".":
		default:
			segments = append(segments, seg)
		}
	}
	if len(segments) > 1 {
		return strings.Join(segments, "/")
	}
	return "/"
}

// ResolveTo resolves a navigation target relative to a matched route chain.
//
// routePathnames is the ancestor list from Matches.RoutePathnames, and
// locationPathname the current URL pathname. A relative pathname resolves
// against the deepest route; each leading ".." moves up one route rather
// than one URL segment, and popping past the first route resolves from "/".
// A target with only a search or hash keeps the current location pathname.
//
// The result ends in "/" when to did, or when to points at the current route
// ("" or ".") and the location already ends in "/".
func ResolveTo(to string, routePathnames []string, locationPathname string) Path {
	p := ParsePath(to)
	return resolveTo(p, to == "" || p.Pathname != "", routePathnames, locationPathname, false)
}

// ResolveToPath is ResolveTo for a pre-split target. A Pathname holding "?"
// or "#", or a Search holding "#", is rejected. With pathRelative set the
// target resolves against locationPathname instead of the route chain. An
// empty Pathname is treated as absent.
func ResolveToPath(to Path, routePathnames []string, locationPathname string, pathRelative bool) (Path, error) {
	switch {
	case strings.Contains(to.Pathname, "?"):
		return Path{}, invalidPathError('?', "Pathname", "Search", to)
	case strings.Contains(to.Pathname, "#"):
		return Path{}, invalidPathError('#', "Pathname", "Hash", to)
	case strings.Contains(to.Search, "#"):
		return Path{}, invalidPathError('#', "Search", "Hash", to)
	}
	return resolveTo(to, to.Pathname != "", routePathnames, locationPathname, pathRelative), nil
}

func invalidPathError(c rune, field, dest string, to Path) error {
	return fmt.Errorf("router: cannot include %q in Path.%s %+v, move it to Path.%s", c, field, to, dest)
}

func resolveTo(to Path, hasPathname bool, routePathnames []string, locationPathname string, pathRelative bool) Path {
	isEmptyPath := hasPathname && to.Pathname == ""
	toPathname := to.Pathname
	if isEmptyPath {
		toPathname = "/"
	}

	var from string
	if pathRelative || !hasPathname {
		from = locationPathname
	} else {
		idx := len(routePathnames) - 1
		if strings.HasPrefix(toPathname, "..") {
			segments := strings.Split(toPathname, "/")
			for len(segments) > 0 && segments[0] == ".." {
				segments = segments[1:]
				idx--
			}
			to.Pathname = strings.Join(segments, "/")
		}
		from = "/"
		if idx >= 0 {
			from = routePathnames[idx]
		}
	}

	path := ResolvePath(to, from)

	explicitTrailing := hasPathname && toPathname != "/" && strings.HasSuffix(toPathname, "/")
	currentTrailing := (isEmptyPath || toPathname == ".") && strings.HasSuffix(locationPathname, "/")
	if !strings.HasSuffix(path.Pathname, "/") && (explicitTrailing || currentTrailing) {
		path.Pathname += "/"
	}
	return path
}

var generateParam = regexp.MustCompile(`^:(\w+)(\??)$`)

// GeneratePath interpolates params into a route pattern. Optional params may
// be absent; a missing required param is an error. A trailing splat takes
// params["*"].
//
//	GeneratePath("/posts/:id/*", map[string]string{"id": "42", "*": "edit"})
//	// "/posts/42/edit"
func GeneratePath(pattern string, params map[string]string) (string, error) {
	path := pattern
	if path != "*" && strings.HasSuffix(path, "*") && !strings.HasSuffix(path, "/*") {
		path = strings.TrimSuffix(path, "*") + "/*"
	}

	prefix := ""
	if strings.HasPrefix(path, "/") {
		prefix = "/"
	}

	raw := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	out := make([]string, 0, len(raw))
	for i, seg := range raw {
		if i == len(raw)-1 && seg == "*" {
			if v := params["*"]; v != "" {
				out = append(out, v)
			}
			continue
		}
		if m := generateParam.FindStringSubmatch(seg); m != nil {
			v, ok := params[m[1]]
			if m[2] == "?" {
				if ok && v != "" {
					out = append(out, v)
				}
				continue
			}
			if !ok {
				return "", ferrors.New("E208").WithDetailf(`":%s" in %q`, m[1], pattern)
			}
			if v != "" {
				out = append(out, v)
			}
			continue
		}
		if s := strings.TrimSuffix(seg, "?"); s != "" {
			out = append(out, s)
		}
	}
	return prefix + strings.Join(out, "/"), nil
}
