package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/flight/pkg/middleware"
	"github.com/vango-dev/flight/pkg/render"
	"github.com/vango-dev/flight/pkg/router"
)

// WebSocketPath is where the websocket transport is served.
const WebSocketPath = "/_flight/ws"

// Server serves pages, segment streams and actions for one route tree.
type Server struct {
	config *Config
	router atomic.Pointer[router.Router]

	renderer *render.Renderer
	pool     *render.Pool

	actionsMu sync.RWMutex
	actions   map[string]Action

	metrics      *middleware.Metrics
	gatherer     prometheus.Gatherer
	tracing      []middleware.OTelOption
	traced       bool
	middleware   []func(http.Handler) http.Handler
	renderOpts   []render.Option
	upgrader     websocket.Upgrader
	handlerOnce  sync.Once
	handler      http.Handler
	httpServer   *http.Server
	httpServerMu sync.Mutex

	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithModules sets the client module map used by components.
func WithModules(m render.ModuleResolver) Option {
	return func(s *Server) { s.renderOpts = append(s.renderOpts, render.WithModules(m)) }
}

// WithMetrics records Prometheus metrics into m and serves g on /metrics.
// A nil g serves the default gatherer.
func WithMetrics(m *middleware.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
		if g == nil {
			s.gatherer = prometheus.DefaultGatherer
		}
	}
}

// WithTracing wraps every request in an OpenTelemetry span. Render jobs
// trace through the same provider.
func WithTracing(opts ...middleware.OTelOption) Option {
	return func(s *Server) {
		s.traced = true
		s.tracing = opts
		s.renderOpts = append(s.renderOpts, render.WithTracer(middleware.Tracer(opts...)))
	}
}

// WithMiddleware adds HTTP middleware, outermost first, inside the
// built-in request id, recovery, tracing and metrics middleware.
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(s *Server) { s.middleware = append(s.middleware, mw...) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l.With("component", "server") }
}

// New returns a server rendering the routes of rt with components from
// loader. The render workers start immediately; Close stops them.
func New(config *Config, rt *router.Router, loader render.Loader, opts ...Option) *Server {
	config = config.withDefaults()
	s := &Server{
		config:  config,
		actions: make(map[string]Action),
		logger:  slog.Default().With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router.Store(rt)

	s.renderer = render.NewRenderer(loader, append([]render.Option{render.WithLogger(s.logger)}, s.renderOpts...)...)
	s.pool = render.NewPool(s.renderer, config.Workers)
	return s
}

// SetRouter swaps the route tree, for manifest reloads. Requests already
// matched finish against the old tree.
func (s *Server) SetRouter(rt *router.Router) {
	s.router.Store(rt)
	s.logger.Info("routes replaced", "routes", len(rt.Routes()))
}

// Router returns the current route tree.
func (s *Server) Router() *router.Router {
	return s.router.Load()
}

// Config returns the server configuration.
func (s *Server) Config() *Config {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// SetLogger sets the server logger.
func (s *Server) SetLogger(l *slog.Logger) {
	s.logger = l.With("component", "server")
}

// Handler returns the server's chi router. It is built on first use.
func (s *Server) Handler() http.Handler {
	s.handlerOnce.Do(func() {
		r := chi.NewRouter()
		r.Use(chimw.RequestID, chimw.Recoverer)
		if s.traced {
			r.Use(middleware.Tracing(s.tracing...))
		}
		if s.metrics != nil {
			r.Use(s.metrics.Handler)
		}
		r.Use(s.middleware...)

		// chi rejects Use after the first route.
		if s.metrics != nil {
			r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		}

		if s.config.Assets != nil {
			r.Handle(s.config.AssetsPrefix+"*", http.HandlerFunc(s.serveAsset))
		}
		if s.config.WebSocket {
			r.Get(WebSocketPath, s.handleWebSocket)
		}
		r.Post("/*", s.handleAction)
		r.Get("/*", s.handlePage)
		s.handler = r
	})
	return s.handler
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}

// Run listens on the configured address until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}
	s.httpServerMu.Lock()
	s.httpServer = srv
	s.httpServerMu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.pool.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting requests, waits for in-flight ones up to the
// shutdown timeout and stops the render workers.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.httpServerMu.Lock()
	srv := s.httpServer
	s.httpServerMu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}
	s.pool.Close()
	s.logger.Info("server shutdown complete")
	return nil
}

// Close stops the render workers without touching the listener. Use it
// when the handler is mounted elsewhere.
func (s *Server) Close() {
	s.pool.Close()
}
