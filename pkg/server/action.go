package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	ferrors "github.com/vango-dev/flight/internal/errors"
	"github.com/vango-dev/flight/pkg/protocol"
)

// FormActionField names the form field that selects the action of a plain
// form post.
const FormActionField = "_action"

// Action is a server action. args is the JSON body of the request, or the
// form values as a JSON object for plain form posts.
type Action func(ctx context.Context, args json.RawMessage) (ActionResult, error)

// ActionResult tells the server what to render after an action.
type ActionResult struct {
	redirect string
}

// Continue re-renders the page the action was posted from.
func Continue() ActionResult { return ActionResult{} }

// RedirectTo renders url instead.
func RedirectTo(url string) ActionResult { return ActionResult{redirect: url} }

// Redirect returns the redirect target, if any.
func (r ActionResult) Redirect() (string, bool) { return r.redirect, r.redirect != "" }

// HandleAction registers fn under id, replacing any earlier registration.
func (s *Server) HandleAction(id string, fn Action) {
	s.actionsMu.Lock()
	defer s.actionsMu.Unlock()
	s.actions[id] = fn
}

func (s *Server) action(id string) (Action, bool) {
	s.actionsMu.RLock()
	defer s.actionsMu.RUnlock()
	fn, ok := s.actions[id]
	return fn, ok
}

// handleAction serves POST requests.
//
// With X-Action the body is JSON arguments. A mutation (X-Mutation: 1)
// answers with a segment stream of the resulting page; other action calls
// answer with a small JSON result. Plain form posts name the action in the
// _action field and answer with a 303 to the resulting page.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	req := protocol.ParseRequest(r)
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxMessageSize)

	id := req.Action
	var args json.RawMessage
	var err error
	if id != "" {
		args, err = readJSONArgs(r.Body)
	} else {
		id, args, err = readFormArgs(r)
	}
	if err != nil {
		s.rejectAction(w, req, http.StatusBadRequest, protocol.ErrInvalidRequest, err)
		return
	}

	fn, ok := s.action(id)
	if !ok {
		err := ferrors.New("E400").WithDetailf("%q", id)
		s.logger.Warn("unknown action", "action", id)
		s.rejectAction(w, req, http.StatusNotFound, protocol.ErrActionNotFound, err)
		return
	}

	result, err := fn(r.Context(), args)
	if err != nil {
		err := ferrors.New("E401").WithDetailf("%q", id).Wrap(err)
		s.logger.Error("action failed", "action", id, "error", err)
		s.rejectAction(w, req, http.StatusInternalServerError, protocol.ErrActionFailed, err)
		return
	}
	redirect, redirected := result.Redirect()

	switch {
	case req.Mutation:
		dest := req.Navigate
		if redirected {
			dest = redirect
		}
		t, err := resolveTarget(r, dest)
		if err != nil {
			s.rejectAction(w, req, http.StatusBadRequest, protocol.ErrInvalidRequest, err)
			return
		}
		if redirected {
			w.Header().Set(protocol.HeaderRedirect, redirect)
		}
		s.stream(w, r, s.job(r.Context(), t, req.RouterState))

	case req.Action != "":
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(actionResponse{OK: true, Redirect: redirect})

	default:
		dest := r.URL.RequestURI()
		if redirected {
			dest = redirect
		}
		http.Redirect(w, r, dest, http.StatusSeeOther)
	}
}

type actionResponse struct {
	OK       bool   `json:"ok"`
	Redirect string `json:"redirect,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) rejectAction(w http.ResponseWriter, req protocol.Request, status int, code protocol.ErrorCode, err error) {
	switch {
	case req.Mutation:
		s.streamError(w, status, code, err)
	case req.Action != "":
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(actionResponse{Error: err.Error()})
	default:
		http.Error(w, err.Error(), status)
	}
}

func readJSONArgs(body io.Reader) (json.RawMessage, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(data) {
		return nil, errors.New("action arguments are not valid JSON")
	}
	return data, nil
}

func readFormArgs(r *http.Request) (string, json.RawMessage, error) {
	if err := r.ParseForm(); err != nil {
		return "", nil, err
	}
	id := r.PostForm.Get(FormActionField)
	if id == "" {
		return "", nil, fmt.Errorf("missing %s field", FormActionField)
	}
	values := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if k != FormActionField && len(v) > 0 {
			values[k] = v[0]
		}
	}
	args, err := json.Marshal(values)
	return id, args, err
}
