package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vango-dev/flight/pkg/middleware"
	"github.com/vango-dev/flight/pkg/protocol"
	"github.com/vango-dev/flight/pkg/render"
	"github.com/vango-dev/flight/pkg/routepath"
	"github.com/vango-dev/flight/pkg/router"
)

// target is what a request asks to render.
type target struct {
	pathname string
	search   url.Values
}

// resolveTarget picks the page to render: the x-navigate header when
// present, otherwise the request URL. Pathnames stay percent-encoded; the
// router decodes them so an escaped "/" never splits a segment.
func resolveTarget(r *http.Request, navigate string) (target, error) {
	if navigate == "" {
		return target{pathname: r.URL.EscapedPath(), search: r.URL.Query()}, nil
	}
	return parseTarget(navigate)
}

func parseTarget(raw string) (target, error) {
	raw, err := routepath.ValidateNavigateTarget(raw)
	if err != nil {
		return target{}, err
	}
	p := router.ParsePath(raw)
	search, err := url.ParseQuery(strings.TrimPrefix(p.Search, "?"))
	if err != nil {
		return target{}, err
	}
	return target{pathname: p.Pathname, search: search}, nil
}

// job matches t against the current routes.
func (s *Server) job(ctx context.Context, t target, routerState []string) render.Job {
	job := render.Job{
		ID:          chimw.GetReqID(ctx),
		Pathname:    t.pathname,
		Search:      t.search,
		RouterState: routerState,
	}
	ms, err := s.Router().Match(t.pathname)
	switch {
	case errors.Is(err, router.ErrNoBaseMatch):
		s.metrics.RecordMatch(middleware.MatchOutsideBasename)
	case err != nil:
		s.logger.Error("route ranking failed", "error", err)
	case len(ms) == 0:
		s.metrics.RecordMatch(middleware.MatchNotFound)
	default:
		s.metrics.RecordMatch(middleware.MatchFound)
		job.Matches = ms
	}
	return job
}

// handlePage serves GET requests: a segment stream when the client accepts
// one, an HTML document otherwise.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	req := protocol.ParseRequest(r)
	t, err := resolveTarget(r, req.Navigate)
	if err != nil {
		s.logger.Warn("invalid navigation target", "navigate", req.Navigate, "error", err)
		if req.Component {
			s.streamError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, err)
			return
		}
		http.Error(w, "invalid navigation target", http.StatusBadRequest)
		return
	}

	if req.Component {
		s.stream(w, r, s.job(r.Context(), t, req.RouterState))
		return
	}
	s.renderDocument(w, r, s.job(r.Context(), t, nil))
}

// stream writes job as a segment stream.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, job render.Job) {
	out := newStreamResponse(w)
	sum, err := s.pool.Stream(r.Context(), job, out)
	s.finish(r, job, sum, err)
}

func (s *Server) renderDocument(w http.ResponseWriter, r *http.Request, job render.Job) {
	out := render.NewHTMLWriter(w, s.config.Document)
	sum, err := s.pool.Stream(r.Context(), job, out)
	s.finish(r, job, sum, err)
}

func (s *Server) finish(r *http.Request, job render.Job, sum render.Summary, err error) {
	s.metrics.RecordSegments(sum.Rendered, sum.Skipped)
	s.metrics.RecordPayload(sum.Records, sum.Modules)
	if err != nil {
		s.metrics.RecordStreamError(err)
		if r.Context().Err() != nil {
			s.logger.Debug("client went away", "pathname", job.Pathname, "job", sum.JobID)
			return
		}
		s.logger.Error("stream failed", "pathname", job.Pathname, "job", sum.JobID, "error", err)
		return
	}
	s.logger.Debug("stream done",
		"pathname", job.Pathname,
		"job", sum.JobID,
		"rendered", sum.Rendered,
		"skipped", sum.Skipped,
		"outcome", sum.Outcome.String(),
	)
}

// streamError answers with a stream holding only a fatal error.
func (s *Server) streamError(w http.ResponseWriter, status int, code protocol.ErrorCode, err error) {
	out := newStreamResponse(w)
	out.status = status
	_ = out.Write(&protocol.Head{Version: protocol.Version})
	_ = out.Write(protocol.NewFatalError(code, err.Error()))
	_ = out.Write(&protocol.End{})
}

// streamResponse is a segment stream over an HTTP response. The status
// line waits for the first message after Head, so a not-found or a
// failure that comes before any segment still sets the status code.
type streamResponse struct {
	w      http.ResponseWriter
	sw     *protocol.StreamWriter
	head   *protocol.Head
	status int
}

func newStreamResponse(w http.ResponseWriter) *streamResponse {
	return &streamResponse{w: w}
}

func (s *streamResponse) Write(m protocol.Message) error {
	if s.sw == nil {
		if h, ok := m.(*protocol.Head); ok && s.head == nil {
			s.head = h
			return nil
		}
		status := http.StatusOK
		switch m := m.(type) {
		case *protocol.NotFound:
			status = http.StatusNotFound
		case *protocol.ErrorMessage:
			if m.Fatal {
				status = http.StatusInternalServerError
			}
		case *protocol.Redirect:
			s.w.Header().Set(protocol.HeaderRedirect, m.URL)
		}
		if s.status == 0 {
			s.status = status
		}
		s.start()
		if s.head != nil {
			if err := s.sw.Write(s.head); err != nil {
				return err
			}
		}
	}
	return s.sw.Write(m)
}

func (s *streamResponse) start() {
	h := s.w.Header()
	h.Set("Content-Type", protocol.ContentType)
	h.Set("Cache-Control", "no-store")
	h.Add("Vary", "Accept, "+protocol.HeaderRouterState)
	s.w.WriteHeader(s.status)
	s.sw = protocol.NewStreamWriter(s.w)
}
