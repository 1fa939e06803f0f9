package protocol

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// ContentType marks a segment stream, both in Accept and in responses.
const ContentType = "text/x-component"

// Request and response headers of the segment transport.
const (
	HeaderAccept      = "Accept"
	HeaderNavigate    = "X-Navigate"
	HeaderRouterState = "X-Router-State"
	HeaderMutation    = "X-Mutation"
	HeaderAction      = "X-Action"
	HeaderRedirect    = "X-Redirect"
)

var logger = slog.Default().With("component", "protocol")

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	logger = l.With("component", "protocol")
}

// Request is the transport view of an incoming HTTP request.
type Request struct {
	// Component is set when the client wants a segment stream instead of
	// an HTML document.
	Component bool

	// Navigate is the logical target when the physical URL is only an
	// endpoint. Empty means the request URL itself.
	Navigate string

	// RouterState lists the segment keys the client already has, root
	// first.
	RouterState []string

	Mutation bool
	Action   string
}

// ParseRequest reads the transport headers of r. A malformed router state
// is logged and treated as empty so the full tree is rendered.
func ParseRequest(r *http.Request) Request {
	req := Request{
		Component: AcceptsComponent(r.Header.Get(HeaderAccept)),
		Navigate:  r.Header.Get(HeaderNavigate),
		Mutation:  r.Header.Get(HeaderMutation) == "1",
		Action:    r.Header.Get(HeaderAction),
	}
	if raw := r.Header.Get(HeaderRouterState); raw != "" {
		var keys []string
		if err := json.Unmarshal([]byte(raw), &keys); err != nil {
			logger.Warn("ignoring malformed router state", "header", raw, "error", err)
		} else {
			req.RouterState = keys
		}
	}
	return req
}

// Apply sets the transport headers of req on r.
func (req Request) Apply(r *http.Request) {
	if req.Component {
		r.Header.Set(HeaderAccept, ContentType)
	}
	if req.Navigate != "" {
		r.Header.Set(HeaderNavigate, req.Navigate)
	}
	if req.RouterState != nil {
		b, _ := json.Marshal(req.RouterState)
		r.Header.Set(HeaderRouterState, string(b))
	}
	if req.Mutation {
		r.Header.Set(HeaderMutation, "1")
	}
	if req.Action != "" {
		r.Header.Set(HeaderAction, req.Action)
	}
}

// SocketRequest is one navigation sent over the websocket transport as a
// text message. The server answers with the segment stream, one frame per
// binary message.
type SocketRequest struct {
	URL         string   `json:"url"`
	RouterState []string `json:"routerState,omitempty"`
}

// AcceptsComponent reports whether an Accept header asks for a segment
// stream.
func AcceptsComponent(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mt, _, _ := strings.Cut(part, ";")
		if strings.EqualFold(strings.TrimSpace(mt), ContentType) {
			return true
		}
	}
	return false
}
