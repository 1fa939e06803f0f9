package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vango-dev/flight/pkg/component"
	"github.com/vango-dev/flight/pkg/middleware"
	"github.com/vango-dev/flight/pkg/protocol"
	"github.com/vango-dev/flight/pkg/render"
	"github.com/vango-dev/flight/pkg/router"
)

func blogRouter() *router.Router {
	return router.New([]*router.RouteNode{
		router.Route(router.RootID, "/",
			router.Route("posts", "posts",
				router.IndexRoute("posts-index").WithComponent("posts/index"),
				router.Route("post", ":id").WithComponent("posts/show"),
			).WithComponent("posts/layout"),
			router.Route("gone", "gone").WithComponent("gone"),
		).WithComponent("root"),
	})
}

func blogRegistry() *component.Registry {
	reg := component.NewRegistry()
	outlet := func(tag string) func(*render.Ctx) (render.Outcome, error) {
		return func(*render.Ctx) (render.Outcome, error) {
			return render.Ok(protocol.Element(tag, nil, protocol.Outlet())), nil
		}
	}
	reg.RegisterFunc("root", outlet("main"))
	reg.RegisterFunc("posts/layout", outlet("section"))
	reg.RegisterFunc("posts/index", func(*render.Ctx) (render.Outcome, error) {
		return render.Ok(protocol.Text("all posts")), nil
	})
	reg.RegisterFunc("posts/show", func(c *render.Ctx) (render.Outcome, error) {
		if err := c.Push("post:"+c.Param("id"), map[string]string{"title": "Post " + c.Param("id")}); err != nil {
			return render.Outcome{}, err
		}
		return render.Ok(protocol.Element("article", nil, protocol.Text("post "+c.Param("id")))), nil
	})
	reg.RegisterFunc("gone", func(*render.Ctx) (render.Outcome, error) {
		return render.NotFound(), nil
	})
	return reg
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s := New(nil, blogRouter(), component.NewCachingLoader(blogRegistry()), opts...)
	t.Cleanup(s.Close)
	return s
}

func segmentRequest(method, target string, req protocol.Request, body io.Reader) *http.Request {
	r := httptest.NewRequest(method, target, body)
	req.Component = true
	req.Apply(r)
	return r
}

func readStream(t *testing.T, body io.Reader) *protocol.Result {
	t.Helper()
	a := protocol.NewAssembler()
	require.NoError(t, a.Consume(context.Background(), protocol.NewStreamReader(body), nil))
	res, err := a.Wait(context.Background())
	require.NoError(t, err)
	return res
}

func segmentKeys(res *protocol.Result) []string {
	keys := make([]string, len(res.Segments))
	for i, s := range res.Segments {
		keys[i] = s.Key
	}
	return keys
}

func TestSegmentStreamSkipsHeldSegments(t *testing.T) {
	s := newTestServer(t)

	r := segmentRequest(http.MethodGet, "/posts/42", protocol.Request{RouterState: []string{"root", "posts", "7"}}, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, protocol.ContentType, rec.Header().Get("Content-Type"))

	res := readStream(t, rec.Body)
	assert.Equal(t, []string{"root", "posts"}, res.Head.Skipped)
	assert.Equal(t, []string{"42"}, segmentKeys(res))
	require.Len(t, res.Records, 1)
	assert.Equal(t, "post:42", res.Records[0].Key)
}

func TestSegmentStreamNavigateHeader(t *testing.T) {
	s := newTestServer(t)

	r := segmentRequest(http.MethodGet, "/_rsc", protocol.Request{Navigate: "/posts/?page=2"}, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, r)

	res := readStream(t, rec.Body)
	assert.Equal(t, []string{"root", "posts", "posts-index"}, segmentKeys(res))
	assert.Equal(t, "/posts/", res.Head.Pathname)
}

func TestSegmentStreamEncodedParams(t *testing.T) {
	tests := []struct {
		name   string
		target string
		nav    string
		key    string
		id     string
	}{
		{"escaped slash in url", "/posts/a%2Fb", "", "a%2Fb", "a/b"},
		{"escaped slash in x-navigate", "/_rsc", "/posts/a%2Fb", "a%2Fb", "a/b"},
		{"escaped percent in url", "/posts/100%25", "", "100%", "100%"},
		{"escaped percent in x-navigate", "/_rsc", "/posts/100%25", "100%", "100%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, segmentRequest(http.MethodGet, tt.target, protocol.Request{Navigate: tt.nav}, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			res := readStream(t, rec.Body)
			assert.Nil(t, res.NotFound)
			assert.Equal(t, []string{"root", "posts", tt.key}, segmentKeys(res))
			leaf := res.Segments[len(res.Segments)-1]
			assert.Equal(t, tt.id, leaf.Params["id"])
		})
	}
}

func TestDocumentEncodedParam(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts/a%2Fb", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<article>post a/b</article>")
}

func TestSegmentStreamNotFound(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/nowhere", "/gone"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, segmentRequest(http.MethodGet, path, protocol.Request{}, nil))
		res := readStream(t, rec.Body)
		require.NotNil(t, res.NotFound, path)
		if path == "/nowhere" {
			assert.Equal(t, http.StatusNotFound, rec.Code)
		}
	}
}

func TestSegmentStreamInvalidTarget(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, segmentRequest(http.MethodGet, "/", protocol.Request{Navigate: "//evil.example"}, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	res := readStream(t, rec.Body)
	require.NotNil(t, res.Error)
	assert.Equal(t, protocol.ErrInvalidRequest, res.Error.Code)
}

func TestDocumentResponse(t *testing.T) {
	s := New(&Config{Document: render.Document{Title: "Blog"}}, blogRouter(), blogRegistry())
	defer s.Close()

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts/42", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Blog</title>")
	assert.Contains(t, body, "<article>post 42</article></section></main>")
	assert.Contains(t, body, "post:42")

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetRouterSwapsRoutes(t *testing.T) {
	s := newTestServer(t)
	s.SetRouter(router.New([]*router.RouteNode{
		router.Route(router.RootID, "/", router.Route("about", "about")),
	}))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, segmentRequest(http.MethodGet, "/about", protocol.Request{}, nil))
	res := readStream(t, rec.Body)
	assert.Equal(t, []string{"root", "about"}, segmentKeys(res))
}

func TestActions(t *testing.T) {
	s := newTestServer(t)
	var likes int
	s.HandleAction("posts/like", func(ctx context.Context, args json.RawMessage) (ActionResult, error) {
		var in struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return ActionResult{}, err
		}
		likes++
		if in.ID == "new" {
			return RedirectTo("/posts/99"), nil
		}
		return Continue(), nil
	})
	s.HandleAction("posts/leave", func(context.Context, json.RawMessage) (ActionResult, error) {
		return RedirectTo("https://elsewhere.example/posts"), nil
	})
	s.HandleAction("posts/fail", func(context.Context, json.RawMessage) (ActionResult, error) {
		return ActionResult{}, errors.New("database down")
	})

	t.Run("mutation continue", func(t *testing.T) {
		r := segmentRequest(http.MethodPost, "/posts/42",
			protocol.Request{Action: "posts/like", Mutation: true, RouterState: []string{"root", "posts", "42"}},
			strings.NewReader(`{"id":"42"}`))
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get(protocol.HeaderRedirect))
		res := readStream(t, rec.Body)
		assert.Equal(t, []string{"42"}, segmentKeys(res))
	})

	t.Run("mutation redirect", func(t *testing.T) {
		r := segmentRequest(http.MethodPost, "/posts/42",
			protocol.Request{Action: "posts/like", Mutation: true, RouterState: []string{"root", "posts", "42"}},
			strings.NewReader(`{"id":"new"}`))
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, r)

		assert.Equal(t, "/posts/99", rec.Header().Get(protocol.HeaderRedirect))
		res := readStream(t, rec.Body)
		assert.Equal(t, "/posts/99", res.Head.Pathname)
		assert.Equal(t, []string{"99"}, segmentKeys(res))
	})

	t.Run("mutation redirect to external url", func(t *testing.T) {
		r := segmentRequest(http.MethodPost, "/posts/42",
			protocol.Request{Action: "posts/leave", Mutation: true}, nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, rec.Header().Get(protocol.HeaderRedirect))
		res := readStream(t, rec.Body)
		require.NotNil(t, res.Error)
		assert.Equal(t, protocol.ErrInvalidRequest, res.Error.Code)
		assert.Empty(t, res.Segments)
	})

	t.Run("mutation failure", func(t *testing.T) {
		r := segmentRequest(http.MethodPost, "/posts/42",
			protocol.Request{Action: "posts/fail", Mutation: true}, nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		res := readStream(t, rec.Body)
		require.NotNil(t, res.Error)
		assert.Equal(t, protocol.ErrActionFailed, res.Error.Code)
		assert.Contains(t, res.Error.Message, "database down")
	})

	t.Run("plain action call", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/posts/42", strings.NewReader(`{"id":"new"}`))
		protocol.Request{Action: "posts/like"}.Apply(r)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ok":true,"redirect":"/posts/99"}`, rec.Body.String())
	})

	t.Run("unknown action", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		protocol.Request{Action: "nope"}.Apply(r)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "E400")
	})

	t.Run("invalid json", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		protocol.Request{Action: "posts/like"}.Apply(r)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("form post", func(t *testing.T) {
		form := url.Values{FormActionField: {"posts/like"}, "id": {"42"}}
		r := httptest.NewRequest(http.MethodPost, "/posts/42", strings.NewReader(form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/posts/42", rec.Header().Get("Location"))
	})

	t.Run("form post without action", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/posts/42", strings.NewReader("a=b"))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	assert.Equal(t, 4, likes)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := middleware.NewMetrics(middleware.WithRegistry(reg))
	s := newTestServer(t, WithMetrics(m, reg))

	s.ServeHTTP(httptest.NewRecorder(), segmentRequest(http.MethodGet, "/posts/42", protocol.Request{RouterState: []string{"root"}}, nil))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `flight_segments_total{state="rendered"} 2`)
	assert.Contains(t, body, `flight_segments_total{state="skipped"} 1`)
	assert.Contains(t, body, `flight_matches_total{result="matched"} 1`)
	assert.Contains(t, body, `flight_rehydration_records_total 1`)
	assert.Contains(t, body, `flight_requests_total{code="200",kind="segment"} 1`)
}

func TestMetricsWithMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	var seen []string
	record := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
	s := newTestServer(t,
		WithMetrics(middleware.NewMetrics(middleware.WithRegistry(reg)), reg),
		WithMiddleware(record),
	)

	var h http.Handler
	require.NotPanics(t, func() { h = s.Handler() })
	require.NotNil(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, segmentRequest(http.MethodGet, "/posts/42", protocol.Request{}, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"/metrics", "/posts/42"}, seen)
}

func TestTracingCoversRenderJobs(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	s := newTestServer(t, WithTracing(middleware.WithTracerProvider(tp)))

	s.ServeHTTP(httptest.NewRecorder(), segmentRequest(http.MethodGet, "/posts/42", protocol.Request{}, nil))

	names := map[string]int{}
	var request sdktrace.ReadOnlySpan
	for _, span := range rec.Ended() {
		names[span.Name()]++
		if strings.HasPrefix(span.Name(), "flight.segment") {
			request = span
		}
	}
	require.NotNil(t, request)
	assert.Equal(t, 1, names["render.Stream"])
	assert.Equal(t, 3, names["render.Segment"])
	for _, span := range rec.Ended() {
		if span.Name() == "render.Stream" {
			assert.Equal(t, request.SpanContext().SpanID(), span.Parent().SpanID())
		}
	}
}

func TestWebSocketTransport(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + WebSocketPath
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	navigate := func(req protocol.SocketRequest) *protocol.Result {
		t.Helper()
		data, err := json.Marshal(req)
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

		var buf bytes.Buffer
		for {
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
			kind, msg, err := conn.ReadMessage()
			require.NoError(t, err)
			require.Equal(t, websocket.BinaryMessage, kind)
			buf.Write(msg)
			f, err := protocol.DecodeFrame(msg)
			require.NoError(t, err)
			if f.Type == protocol.FrameEnd {
				break
			}
		}
		return readStream(t, &buf)
	}

	res := navigate(protocol.SocketRequest{URL: "/posts/1"})
	assert.Equal(t, []string{"root", "posts", "1"}, segmentKeys(res))

	res = navigate(protocol.SocketRequest{URL: "/posts/2", RouterState: []string{"root", "posts", "1"}})
	assert.Equal(t, []string{"2"}, segmentKeys(res))

	res = navigate(protocol.SocketRequest{URL: "http://evil.example/"})
	require.NotNil(t, res.Error)
}

func TestWebSocketRejectsCrossOrigin(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + WebSocketPath
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSameOriginCheck(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://example.com", true},
		{"http://other.com", false},
		{"://bad", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, SameOriginCheck(r), tt.origin)
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := New(&Config{Address: "127.0.0.1:0"}, blogRouter(), blogRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
