package routepath

import "strings"

// JoinPaths joins path fragments with "/" and collapses repeated slashes.
func JoinPaths(paths ...string) string {
	return collapseSlashes(strings.Join(paths, "/"))
}

func collapseSlashes(s string) string {
	if !strings.Contains(s, "//") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prevSlash := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// NormalizePathname removes trailing slashes and ensures exactly one leading
// slash.
func NormalizePathname(pathname string) string {
	return "/" + strings.TrimLeft(strings.TrimRight(pathname, "/"), "/")
}

// NormalizeSearch returns search with a leading "?", or "" when empty.
func NormalizeSearch(search string) string {
	switch {
	case search == "" || search == "?":
		return ""
	case strings.HasPrefix(search, "?"):
		return search
	default:
		return "?" + search
	}
}

// NormalizeHash returns hash with a leading "#", or "" when empty.
func NormalizeHash(hash string) string {
	switch {
	case hash == "" || hash == "#":
		return ""
	case strings.HasPrefix(hash, "#"):
		return hash
	default:
		return "#" + hash
	}
}

// StripBasename removes basename from the front of pathname. Comparison is
// case-insensitive and must end on a "/" boundary. ok is false when pathname
// is not under basename.
func StripBasename(pathname, basename string) (string, bool) {
	if basename == "" || basename == "/" {
		return pathname, true
	}
	if len(pathname) < len(basename) || !strings.EqualFold(pathname[:len(basename)], basename) {
		return "", false
	}

	// A basename with a trailing slash keeps that slash in the remainder.
	start := len(basename)
	if strings.HasSuffix(basename, "/") {
		start--
	}
	if start < len(pathname) && pathname[start] != '/' {
		return "", false
	}
	rest := pathname[start:]
	if rest == "" {
		rest = "/"
	}
	return rest, true
}
