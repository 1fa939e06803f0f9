package routepath

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
)

// MatchTimeout bounds a single pattern evaluation.
const MatchTimeout = 50 * time.Millisecond

var logger = slog.Default().With("component", "routepath")

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	logger = l.With("component", "routepath")
}

// Matcher is a compiled route pattern.
type Matcher struct {
	// Source is the generated expression.
	Source string

	// ParamNames lists captured parameters in group order. A trailing splat
	// is reported as "*".
	ParamNames []string

	re *regexp2.Regexp
}

type compileKey struct {
	path          string
	caseSensitive bool
	end           bool
}

var (
	compiled sync.Map // compileKey -> *Matcher

	trailingSplat = regexp.MustCompile(`/*\*?$`)
	leadingSlash  = regexp.MustCompile(`^/*`)
	regexSpecial  = regexp.MustCompile(`[\\.*+^$?{}|()\[\]]`)
	dynamicParam  = regexp.MustCompile(`/:(\w+)`)
)

// Compile turns a route path into a Matcher. Results are cached per
// (path, caseSensitive, end).
func Compile(path string, caseSensitive, end bool) *Matcher {
	key := compileKey{path, caseSensitive, end}
	if m, ok := compiled.Load(key); ok {
		return m.(*Matcher)
	}
	m := compile(path, caseSensitive, end)
	actual, _ := compiled.LoadOrStore(key, m)
	return actual.(*Matcher)
}

func compile(path string, caseSensitive, end bool) *Matcher {
	if path != "*" && strings.HasSuffix(path, "*") && !strings.HasSuffix(path, "/*") {
		logger.Warn("route path ends in a bare *, treating it as /*",
			"path", path,
			"treated_as", strings.TrimSuffix(path, "*")+"/*")
	}

	var names []string
	body := trailingSplat.ReplaceAllString(path, "")
	body = leadingSlash.ReplaceAllString(body, "/")
	body = regexSpecial.ReplaceAllString(body, `\$0`)
	body = dynamicParam.ReplaceAllStringFunc(body, func(seg string) string {
		names = append(names, seg[2:])
		return `/([^\/]+)`
	})

	source := "^" + body
	switch {
	case strings.HasSuffix(path, "*"):
		names = append(names, "*")
		if path == "*" || path == "/*" {
			source += `(.*)$`
		} else {
			source += `(?:\/(.+)|\/*)$`
		}
	case end:
		source += `\/*$`
	case path != "" && path != "/":
		// Prefix matches must stop at a segment boundary.
		source += `(?:(?=\/|$))`
	}

	var opts regexp2.RegexOptions = regexp2.ECMAScript
	if !caseSensitive {
		opts |= regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(source, opts)
	if err != nil {
		// Only reachable for inputs the escaping above cannot neutralise.
		// Fall back to a literal comparison of the whole path.
		logger.Warn("route path did not compile, matching it literally",
			"path", path, "error", err)
		names = nil
		re = regexp2.MustCompile("^"+regexp2.Escape(path)+`\/*$`, opts)
	}
	re.MatchTimeout = MatchTimeout

	return &Matcher{Source: source, ParamNames: names, re: re}
}

// find returns the full match and one capture per ParamNames entry, or
// ok=false when the pattern does not match.
func (m *Matcher) find(pathname string) (matched string, groups []string, ok bool) {
	res, err := m.re.FindStringMatch(pathname)
	if err != nil {
		logger.Warn("route pattern evaluation failed", "pattern", m.Source, "error", err)
		return "", nil, false
	}
	if res == nil {
		return "", nil, false
	}
	groups = make([]string, len(m.ParamNames))
	for i := range groups {
		if g := res.GroupByNumber(i + 1); g != nil {
			groups[i] = g.String()
		}
	}
	return res.String(), groups, true
}
