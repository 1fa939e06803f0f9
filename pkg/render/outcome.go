package render

import (
	"net/http"

	"github.com/vango-dev/flight/pkg/protocol"
)

// OutcomeKind tells which variant an Outcome holds.
type OutcomeKind uint8

const (
	OutcomeOk OutcomeKind = iota
	OutcomeRedirect
	OutcomeNotFound
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOk:
		return "ok"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Outcome is the result of rendering one component: a tree, a redirect or
// not-found. The zero value is Ok with an empty tree.
type Outcome struct {
	kind   OutcomeKind
	node   *protocol.Node
	url    string
	status int
}

// Ok wraps a rendered tree. Layout components place protocol.Outlet() where
// their child segment goes.
func Ok(node *protocol.Node) Outcome {
	return Outcome{kind: OutcomeOk, node: node}
}

// Redirect sends the client to url with 303 See Other.
func Redirect(url string) Outcome {
	return RedirectWithStatus(url, http.StatusSeeOther)
}

// RedirectWithStatus sends the client to url with the given 3xx status.
func RedirectWithStatus(url string, status int) Outcome {
	return Outcome{kind: OutcomeRedirect, url: url, status: status}
}

// NotFound reports that the requested resource does not exist.
func NotFound() Outcome {
	return Outcome{kind: OutcomeNotFound}
}

func (o Outcome) Kind() OutcomeKind    { return o.kind }
func (o Outcome) Node() *protocol.Node { return o.node }
func (o Outcome) URL() string          { return o.url }
func (o Outcome) Status() int          { return o.status }
