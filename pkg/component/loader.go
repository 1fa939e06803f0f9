package component

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/vango-dev/flight/pkg/render"
)

// ErrUnknownComponent is returned for a reference nothing was registered
// under.
var ErrUnknownComponent = errors.New("component: unknown reference")

// Loader resolves component references.
type Loader = render.Loader

var logger = slog.Default().With("component", "component")

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	logger = l.With("component", "component")
}

// Registry is a static Loader backed by a map.
type Registry struct {
	mu    sync.RWMutex
	comps map[string]render.Component
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{comps: make(map[string]render.Component)}
}

// Register adds c under ref, replacing any earlier registration.
func (r *Registry) Register(ref string, c render.Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comps[ref] = c
}

// RegisterFunc is Register for plain functions.
func (r *Registry) RegisterFunc(ref string, fn func(*render.Ctx) (render.Outcome, error)) {
	r.Register(ref, render.ComponentFunc(fn))
}

// Load implements Loader.
func (r *Registry) Load(_ context.Context, ref string) (render.Component, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.comps[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, ref)
	}
	return c, nil
}

// Refs returns the registered references, sorted.
func (r *Registry) Refs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	refs := make([]string, 0, len(r.comps))
	for ref := range r.comps {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// CachingLoader memoizes another Loader. Concurrent loads of the same
// reference share one call to the underlying loader; failures are not
// cached.
type CachingLoader struct {
	next  Loader
	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]render.Component
}

// NewCachingLoader wraps next.
func NewCachingLoader(next Loader) *CachingLoader {
	return &CachingLoader{next: next, cache: make(map[string]render.Component)}
}

// Load implements Loader.
func (l *CachingLoader) Load(ctx context.Context, ref string) (render.Component, error) {
	l.mu.RLock()
	c, ok := l.cache[ref]
	l.mu.RUnlock()
	if ok {
		return c, nil
	}

	v, err, shared := l.group.Do(ref, func() (any, error) {
		c, err := l.next.Load(ctx, ref)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.cache[ref] = c
		l.mu.Unlock()
		return c, nil
	})
	if err != nil {
		logger.Warn("component load failed", "ref", ref, "shared", shared, "error", err)
		return nil, err
	}
	return v.(render.Component), nil
}

// Invalidate drops every cached component, for dev reloads.
func (l *CachingLoader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.cache)
}

// Len returns the number of cached components.
func (l *CachingLoader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cache)
}
