// Package routepath compiles route path patterns and matches them against
// URL pathnames.
//
// A pattern is a slash separated path where a segment may be a literal
// ("posts"), a dynamic parameter (":id") or, in last position only, a splat
// ("*") that captures the rest of the pathname:
//
//	m := routepath.MatchPath(routepath.Pattern{Path: "/a/:b/*", End: true}, "/a/x/y/z")
//	// m.Params == map[string]string{"b": "x", "*": "y/z"}
//
// Patterns are matched case-insensitively unless CaseSensitive is set. With
// End set the whole pathname must match (trailing slashes ignored); without
// it the pattern matches a prefix that stops at a "/" boundary, which is how
// nested routes consume their part of a pathname.
//
// Compilation never fails. Malformed input degrades to best-effort matching
// and a warning on the package logger. Percent-decoding failures keep the raw
// string and also only warn.
package routepath
