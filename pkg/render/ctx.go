package render

import (
	"context"
	"net/url"
	"sync"

	"github.com/vango-dev/flight/pkg/protocol"
	"github.com/vango-dev/flight/pkg/rehydrate"
	"github.com/vango-dev/flight/pkg/router"
)

// Component renders one route segment.
type Component interface {
	Render(c *Ctx) (Outcome, error)
}

// ComponentFunc adapts a function to Component.
type ComponentFunc func(c *Ctx) (Outcome, error)

func (f ComponentFunc) Render(c *Ctx) (Outcome, error) { return f(c) }

// Loader resolves a component reference from the route manifest. It must be
// idempotent; see component.CachingLoader.
type Loader interface {
	Load(ctx context.Context, ref string) (Component, error)
}

// ModuleResolver maps a client module id to the chunks that load it.
type ModuleResolver interface {
	Resolve(id string) (protocol.ModuleRef, error)
}

// jobState is shared by the Ctx values of one render job.
type jobState struct {
	queue   *rehydrate.Queue
	modules ModuleResolver

	mu      sync.Mutex
	sent    map[string]bool
	pending []protocol.ModuleRef
}

func (s *jobState) takeModules() []protocol.ModuleRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// Ctx is what a component sees while it renders.
type Ctx struct {
	ctx      context.Context
	jobID    string
	match    router.Match
	depth    int
	pathname string
	search   url.Values
	state    *jobState
}

// Context returns the job's context. It is canceled when the client goes
// away.
func (c *Ctx) Context() context.Context { return c.ctx }

// JobID identifies the render job, for logs and traces.
func (c *Ctx) JobID() string { return c.jobID }

// RouteID returns the id of the route being rendered.
func (c *Ctx) RouteID() string { return c.match.Route.ID }

// Depth returns the index of this route in the match list.
func (c *Ctx) Depth() int { return c.depth }

// Pathname returns the full pathname being rendered.
func (c *Ctx) Pathname() string { return c.pathname }

// Match returns the route match of this segment.
func (c *Ctx) Match() router.Match { return c.match }

// Params returns the params accumulated down to this route.
func (c *Ctx) Params() map[string]string { return c.match.Params }

// Param returns one param, or "".
func (c *Ctx) Param(name string) string { return c.match.Params[name] }

// Bind copies params into a struct tagged with `param:"name"`.
func (c *Ctx) Bind(target any) error {
	return router.BindParams(c.match.Params, target)
}

// Search returns the query parameters of the request.
func (c *Ctx) Search() url.Values { return c.search }

// Push queues value under key for the client's data store. Keys already
// written in this response are ignored.
func (c *Ctx) Push(key string, value any) error {
	_, err := c.state.queue.Push(key, value)
	return err
}

// Module returns a placeholder node for a client module and makes sure the
// client is told which chunks to load before it sees the segment.
func (c *Ctx) Module(id string, props map[string]string, fallback ...*protocol.Node) (*protocol.Node, error) {
	if c.state.modules != nil {
		ref, err := c.state.modules.Resolve(id)
		if err != nil {
			return nil, err
		}
		c.state.mu.Lock()
		if !c.state.sent[ref.ID] {
			c.state.sent[ref.ID] = true
			c.state.pending = append(c.state.pending, ref)
		}
		c.state.mu.Unlock()
	}
	return protocol.ClientRef(id, props, fallback...), nil
}

// NewTestCtx builds a Ctx outside a render job, for exercising components
// in tests.
func NewTestCtx(ctx context.Context, m router.Match, search url.Values) *Ctx {
	return &Ctx{
		ctx:      ctx,
		match:    m,
		pathname: m.Pathname,
		search:   search,
		state:    &jobState{queue: rehydrate.NewQueue(), sent: map[string]bool{}},
	}
}
