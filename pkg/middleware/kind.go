package middleware

import (
	"net/http"
	"strings"

	"github.com/vango-dev/flight/pkg/protocol"
)

// Request kinds.
const (
	KindPage     = "page"
	KindSegment  = "segment"
	KindAction   = "action"
	KindMutation = "mutation"
	KindWS       = "ws"
)

// RequestKind classifies r by its flight headers.
func RequestKind(r *http.Request) string {
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return KindWS
	}
	req := protocol.ParseRequest(r)
	switch {
	case req.Mutation:
		return KindMutation
	case req.Action != "" || r.Method == http.MethodPost:
		return KindAction
	case req.Component:
		return KindSegment
	default:
		return KindPage
	}
}
