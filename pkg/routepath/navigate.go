package routepath

import (
	"errors"
	"strings"
)

// Navigation target errors.
var (
	ErrInvalidPath     = errors.New("routepath: invalid navigation target")
	ErrBackslashInPath = errors.New("routepath: path contains backslash")
	ErrNullByteInPath  = errors.New("routepath: path contains null byte")
)

// ValidateNavigateTarget checks a navigation target received from a client,
// such as the x-navigate header. Targets must be site-relative ("/..."),
// never absolute or protocol-relative URLs, and must not carry backslashes,
// NUL bytes or malformed escapes. The target is returned unchanged; trailing
// slashes and relative segments are left to route resolution.
func ValidateNavigateTarget(target string) (string, error) {
	if strings.HasPrefix(target, "//") || !strings.HasPrefix(target, "/") {
		return "", ErrInvalidPath
	}
	path, _, _ := strings.Cut(target, "?")
	path, _, _ = strings.Cut(path, "#")
	if strings.Contains(path, "\\") {
		return "", ErrBackslashInPath
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return "", ErrNullByteInPath
	}
	if _, err := DecodeURIComponent(path); errors.Is(err, ErrInvalidPercentEscape) {
		return "", err
	}
	return target, nil
}

// SplitPathAndQuery splits a path into path and query components.
// The query is returned without the leading "?".
func SplitPathAndQuery(input string) (path, query string) {
	path, query, _ = strings.Cut(input, "?")
	return path, query
}
