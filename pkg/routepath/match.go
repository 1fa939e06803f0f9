package routepath

import "strings"

// Pattern describes how a route path is matched.
type Pattern struct {
	Path          string
	CaseSensitive bool

	// End requires the pattern to consume the whole pathname.
	End bool
}

// PathMatch is the result of matching a Pattern against a pathname.
type PathMatch struct {
	// Params holds decoded parameter values keyed by name. A splat is
	// stored under "*".
	Params map[string]string

	// Pathname is the portion of the pathname that was matched.
	Pathname string

	// PathnameBase is Pathname without the splat value and without
	// trailing slashes. Child routes match from here.
	PathnameBase string

	Pattern Pattern
}

// MatchPath matches pattern against pathname. It returns nil when the
// pattern does not match.
func MatchPath(pattern Pattern, pathname string) *PathMatch {
	m := Compile(pattern.Path, pattern.CaseSensitive, pattern.End)
	matched, groups, ok := m.find(pathname)
	if !ok {
		return nil
	}

	base := trimTrailingSlashes(matched)
	params := make(map[string]string, len(m.ParamNames))
	for i, name := range m.ParamNames {
		value := groups[i]
		if name == "*" {
			// Computed from the raw splat; the decoded value may differ in length.
			base = trimTrailingSlashes(matched[:len(matched)-len(value)])
		}
		params[name] = SafeDecodeComponent(value, name)
	}

	return &PathMatch{
		Params:       params,
		Pathname:     matched,
		PathnameBase: base,
		Pattern:      pattern,
	}
}

// MatchString matches path as a whole-pathname, case-insensitive pattern.
func MatchString(path, pathname string) *PathMatch {
	return MatchPath(Pattern{Path: path, End: true}, pathname)
}

// trimTrailingSlashes removes trailing slashes but never empties the string.
func trimTrailingSlashes(s string) string {
	if len(s) < 2 {
		return s
	}
	t := strings.TrimRight(s[1:], "/")
	return s[:1] + t
}
