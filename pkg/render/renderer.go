package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/flight/pkg/protocol"
	"github.com/vango-dev/flight/pkg/rehydrate"
	"github.com/vango-dev/flight/pkg/router"
)

const tracerName = "github.com/vango-dev/flight/pkg/render"

// Emitter receives the messages of a render. *protocol.StreamWriter and
// *HTMLWriter both implement it.
type Emitter interface {
	Write(m protocol.Message) error
}

// Job is one render request.
type Job struct {
	// ID is filled with a random UUID when empty.
	ID string

	Pathname string
	Search   url.Values
	Matches  router.Matches

	// RouterState is the list of segment keys the client already holds.
	RouterState []string
}

// Summary describes a finished render.
type Summary struct {
	JobID    string
	Rendered int
	Skipped  int
	Records  int
	Modules  int
	Outcome  OutcomeKind
}

// Renderer renders jobs. It is safe for concurrent use.
type Renderer struct {
	loader  Loader
	modules ModuleResolver
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithModules sets the resolver used by Ctx.Module.
func WithModules(m ModuleResolver) Option {
	return func(r *Renderer) { r.modules = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l.With("component", "render") }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(r *Renderer) { r.tracer = t }
}

// NewRenderer returns a renderer that loads components through loader.
func NewRenderer(loader Loader, opts ...Option) *Renderer {
	r := &Renderer{
		loader: loader,
		logger: slog.Default().With("component", "render"),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SkipPrefix returns how many leading keys the client already holds. The
// leaf is always rendered, so the result is below len(keys) unless keys is
// empty.
func SkipPrefix(keys, routerState []string) int {
	n := 0
	for n < len(keys) && n < len(routerState) && keys[n] == routerState[n] {
		n++
	}
	if n == len(keys) && n > 0 {
		n--
	}
	return n
}

// Stream renders job into out.
//
// The stream opens with a Head naming the skipped keys, then carries one
// Segment per route below them, root to leaf. Records pushed and modules
// referenced while a component renders are written just before its
// segment. A component that returns Redirect or NotFound ends the stream
// with that frame. Load and render errors end it with a fatal Error frame
// and are returned. Every stream but a canceled one ends with End.
func (r *Renderer) Stream(ctx context.Context, job Job, out Emitter) (Summary, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	keys := job.Matches.SegmentKeys()
	skip := SkipPrefix(keys, job.RouterState)
	sum := Summary{JobID: job.ID, Skipped: skip}

	ctx, span := r.tracer.Start(ctx, "render.Stream",
		trace.WithAttributes(
			attribute.String("flight.job_id", job.ID),
			attribute.String("flight.pathname", job.Pathname),
			attribute.Int("flight.matches", len(job.Matches)),
			attribute.Int("flight.skipped", skip),
		))
	defer span.End()

	fail := func(code protocol.ErrorCode, err error) (Summary, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("render failed", "job", job.ID, "pathname", job.Pathname, "error", err)
		if werr := out.Write(protocol.NewFatalError(code, err.Error())); werr == nil {
			_ = out.Write(&protocol.End{})
		}
		return sum, err
	}

	if err := out.Write(&protocol.Head{
		Version:  protocol.Version,
		Pathname: job.Pathname,
		Skipped:  keys[:skip],
	}); err != nil {
		return sum, err
	}

	if len(job.Matches) == 0 {
		sum.Outcome = OutcomeNotFound
		if err := out.Write(&protocol.NotFound{Pathname: job.Pathname}); err != nil {
			return sum, err
		}
		return sum, out.Write(&protocol.End{})
	}

	todo := job.Matches[skip:]
	comps, err := r.load(ctx, todo)
	if err != nil {
		return fail(protocol.ErrLoadFailed, err)
	}

	state := &jobState{queue: rehydrate.NewQueue(), modules: r.modules, sent: make(map[string]bool)}
	flush := func() error {
		for _, ref := range state.takeModules() {
			if err := out.Write(&ref); err != nil {
				return err
			}
			sum.Modules++
		}
		for _, rec := range state.queue.Flush() {
			if err := out.Write(&rec); err != nil {
				return err
			}
			sum.Records++
		}
		return nil
	}

	for i, m := range todo {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return sum, err
		}
		depth := skip + i
		c := &Ctx{
			ctx:      ctx,
			jobID:    job.ID,
			match:    m,
			depth:    depth,
			pathname: job.Pathname,
			search:   job.Search,
			state:    state,
		}

		outcome, err := r.renderSegment(ctx, comps[i], c)
		if err != nil {
			return fail(protocol.ErrRenderFailed, fmt.Errorf("render: route %q: %w", m.Route.ID, err))
		}
		if err := flush(); err != nil {
			return sum, err
		}

		switch outcome.Kind() {
		case OutcomeRedirect:
			sum.Outcome = OutcomeRedirect
			span.SetAttributes(attribute.String("flight.redirect", outcome.URL()))
			if err := out.Write(&protocol.Redirect{URL: outcome.URL(), Status: outcome.Status()}); err != nil {
				return sum, err
			}
			return sum, out.Write(&protocol.End{})
		case OutcomeNotFound:
			sum.Outcome = OutcomeNotFound
			if err := out.Write(&protocol.NotFound{Pathname: job.Pathname}); err != nil {
				return sum, err
			}
			return sum, out.Write(&protocol.End{})
		}

		if err := out.Write(&protocol.Segment{
			Key:     keys[depth],
			RouteID: m.Route.ID,
			Depth:   depth,
			Params:  m.Params,
			Node:    outcome.Node(),
		}); err != nil {
			return sum, err
		}
		sum.Rendered++
	}

	if err := flush(); err != nil {
		return sum, err
	}
	span.SetAttributes(attribute.Int("flight.rendered", sum.Rendered))
	span.SetStatus(codes.Ok, "")
	return sum, out.Write(&protocol.End{})
}

func (r *Renderer) renderSegment(ctx context.Context, comp Component, c *Ctx) (Outcome, error) {
	_, span := r.tracer.Start(ctx, "render.Segment",
		trace.WithAttributes(
			attribute.String("flight.route_id", c.RouteID()),
			attribute.Int("flight.depth", c.depth),
		))
	defer span.End()

	outcome, err := comp.Render(c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Outcome{}, err
	}
	span.SetAttributes(attribute.String("flight.outcome", outcome.Kind().String()))
	return outcome, nil
}

// load resolves the components of ms concurrently. Routes without a
// component reference render only their outlet.
func (r *Renderer) load(ctx context.Context, ms router.Matches) ([]Component, error) {
	comps := make([]Component, len(ms))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range ms {
		ref := m.Route.Component
		if ref == "" {
			comps[i] = outletOnly
			continue
		}
		if r.loader == nil {
			g.Go(func() error { return errNoLoader })
			break
		}
		g.Go(func() error {
			c, err := r.loader.Load(gctx, ref)
			if err != nil {
				return fmt.Errorf("render: load %q for route %q: %w", ref, m.Route.ID, err)
			}
			comps[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return comps, nil
}

var errNoLoader = errors.New("render: no component loader configured")

var outletOnly = ComponentFunc(func(*Ctx) (Outcome, error) {
	return Ok(protocol.Outlet()), nil
})
