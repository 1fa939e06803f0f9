package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/vango-dev/flight/pkg/protocol"
	"github.com/vango-dev/flight/pkg/rehydrate"
	"github.com/vango-dev/flight/pkg/routepath"
	"github.com/vango-dev/flight/pkg/router"
	"github.com/vango-dev/flight/pkg/segcache"
)

// Navigation errors.
var (
	// ErrStale is returned when a newer navigation moved away from the
	// subtree this one fetched. Its segments were not cached.
	ErrStale = errors.New("client: navigation superseded")

	ErrTooManyRedirects = errors.New("client: too many redirects")
)

// DefaultMaxRedirects bounds the render redirects one navigation follows.
const DefaultMaxRedirects = 5

// Tree is the segment cache a session owns.
type Tree = segcache.Tree[*protocol.Segment]

// Navigation is the outcome of Navigate or Mutate.
type Navigation struct {
	// URL is the target that was rendered, after redirects.
	URL string
	// Pathname is the percent-encoded pathname of URL.
	Pathname string

	// Keys is the segment path of the page, root first.
	Keys []string

	// Segments holds the cached content along Keys, root first. It stops
	// at the first segment the cache does not hold, which only happens on
	// not-found.
	Segments []*protocol.Segment

	// Fetched lists the keys streamed by this navigation. It is empty when
	// the page came from the cache.
	Fetched []string

	// Records are the data records that changed the store.
	Records []protocol.Record

	Modules   []*protocol.ModuleRef
	FromCache bool
	NotFound  bool
}

// NavigateOptions configures one navigation.
type NavigateOptions struct {
	// Params are query parameters to add to the URL.
	Params map[string]any

	// Refetch fetches the leaf segment even when the cache holds the whole
	// path.
	Refetch bool
}

// NavigateOption is a functional option for Navigate.
type NavigateOption func(*NavigateOptions)

// WithParams adds query parameters to the navigation URL.
func WithParams(params map[string]any) NavigateOption {
	return func(o *NavigateOptions) {
		o.Params = params
	}
}

// WithRefetch fetches the leaf segment again even when it is cached.
func WithRefetch() NavigateOption {
	return func(o *NavigateOptions) {
		o.Refetch = true
	}
}

// Option configures a Session.
type Option func(*Session)

// WithTree sets the segment cache.
func WithTree(t *Tree) Option {
	return func(s *Session) { s.tree = t }
}

// WithStore sets the rehydration store.
func WithStore(st *rehydrate.Store) Option {
	return func(s *Session) { s.store = st }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMaxRedirects bounds the render redirects one navigation follows.
func WithMaxRedirects(n int) Option {
	return func(s *Session) { s.maxRedirects = n }
}

// Session is one client's navigation state. It is the only writer of its
// segment cache. Navigate and Mutate may be called concurrently; the last
// navigation started decides which results are kept.
type Session struct {
	id           string
	router       *router.Router
	transport    Transport
	store        *rehydrate.Store
	logger       *slog.Logger
	maxRedirects int

	mu      sync.Mutex
	tree    *Tree
	seq     uint64
	latest  []string
	current string
}

// NewSession returns a session matching against rt and fetching through t.
func NewSession(rt *router.Router, t Transport, opts ...Option) *Session {
	s := &Session{
		id:           uuid.NewString(),
		router:       rt,
		transport:    t,
		maxRedirects: DefaultMaxRedirects,
		current:      "/",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tree == nil {
		s.tree = segcache.New[*protocol.Segment]()
	}
	if s.store == nil {
		s.store = rehydrate.NewStore()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "client", "session", s.id)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Store returns the rehydration store.
func (s *Session) Store() *rehydrate.Store { return s.store }

// URL returns the URL of the last completed navigation.
func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Cache returns a dump of the segment cache.
func (s *Session) Cache() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.String()
}

// Cached reports whether every segment of keys is resolved.
func (s *Session) Cached(keys []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, unresolved := s.tree.FirstUnresolved(keys)
	return len(keys) > 0 && !unresolved
}

// Reset drops the segment cache, as a full page reload does. The data
// store is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Reset()
}

// Navigate renders rawURL. Redirects issued while rendering are followed.
func (s *Session) Navigate(ctx context.Context, rawURL string, opts ...NavigateOption) (*Navigation, error) {
	var options NavigateOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	target, err := buildURL(rawURL, options.Params)
	if err != nil {
		return nil, err
	}

	for redirects := 0; ; redirects++ {
		nav, redirect, err := s.navigate(ctx, target, options.Refetch)
		if err != nil || redirect == "" {
			return nav, err
		}
		if redirects >= s.maxRedirects {
			return nil, fmt.Errorf("%w: %s", ErrTooManyRedirects, rawURL)
		}
		s.logger.Debug("following redirect", "from", target, "to", redirect)
		if target, err = routepath.ValidateNavigateTarget(redirect); err != nil {
			return nil, fmt.Errorf("client: redirect to %q: %w", redirect, err)
		}
		options.Refetch = false
	}
}

func (s *Session) navigate(ctx context.Context, target string, refetch bool) (*Navigation, string, error) {
	pathname := targetPathname(target)
	var keys []string
	ms, err := s.router.Match(pathname)
	if err != nil && !errors.Is(err, router.ErrNoBaseMatch) {
		return nil, "", err
	}
	keys = ms.SegmentKeys()

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.latest = keys

	depth, unresolved := s.tree.FirstUnresolved(keys)
	if len(keys) > 0 && !unresolved && !refetch {
		nav := s.cachedLocked(target, pathname, keys)
		nav.FromCache = true
		s.current = target
		s.mu.Unlock()
		return nav, "", nil
	}
	if !unresolved {
		depth = len(keys) - 1
	}
	var held []string
	if len(keys) > 0 {
		_, held = s.tree.EnsureShallowestUncached(keys[:depth+1])
		held = held[:depth]
	}
	s.mu.Unlock()

	resp, err := s.transport.Do(ctx, Request{URL: target, RouterState: held})
	if err != nil {
		return nil, "", err
	}
	return s.consume(ctx, resp, target, seq)
}

// Mutate runs the action actionID with args on the server and renders the
// page it leads to: the current page, or the page the action redirected to.
func (s *Session) Mutate(ctx context.Context, actionID string, args any) (*Navigation, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	ms, err := s.router.Match(targetPathname(current))
	if err != nil && !errors.Is(err, router.ErrNoBaseMatch) {
		return nil, err
	}
	keys := ms.SegmentKeys()

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.latest = keys
	held := keys
	if depth, unresolved := s.tree.FirstUnresolved(keys); unresolved {
		held = keys[:depth]
	}
	s.mu.Unlock()

	resp, err := s.transport.Do(ctx, Request{
		URL:         current,
		RouterState: slices.Clone(held),
		Action:      actionID,
		Args:        raw,
	})
	if err != nil {
		return nil, err
	}
	target := current
	if resp.Redirect != "" {
		if target, err = routepath.ValidateNavigateTarget(resp.Redirect); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("client: redirect to %q: %w", resp.Redirect, err)
		}
	}
	nav, redirect, err := s.consume(ctx, resp, target, seq)
	if err != nil || redirect == "" {
		return nav, err
	}
	return s.Navigate(ctx, redirect)
}

// consume reads one stream to its end. Data records are applied as they
// arrive; segments are cached only once the stream has ended.
func (s *Session) consume(ctx context.Context, resp *Response, target string, seq uint64) (*Navigation, string, error) {
	defer resp.Body.Close()

	var changed []protocol.Record
	asm := protocol.NewAssembler()
	err := asm.Consume(ctx, protocol.NewStreamReader(resp.Body), func(m protocol.Message) {
		if r, ok := m.(*protocol.Record); ok {
			changed = append(changed, s.store.Apply(*r)...)
		}
	})
	if err != nil {
		s.logger.Warn("stream failed", "url", target, "error", err)
		return nil, "", err
	}
	res, err := asm.Wait(ctx)
	if err != nil {
		return nil, "", err
	}
	if res.Error != nil && res.Error.Fatal {
		return nil, "", res.Error
	}
	if res.Redirect != nil {
		return nil, res.Redirect.URL, nil
	}

	var path []string
	if res.Head != nil {
		path = slices.Clone(res.Head.Skipped)
	}
	fetched := make([]string, 0, len(res.Segments))
	for _, seg := range res.Segments {
		if seg.Depth > len(path) {
			return nil, "", fmt.Errorf("%w: segment %q at depth %d below a %d segment path",
				protocol.ErrMalformedFrame, seg.Key, seg.Depth, len(path))
		}
		path = append(path[:seg.Depth], seg.Key)
		fetched = append(fetched, seg.Key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(res.Segments) > 0 && s.seq != seq {
		first := path[:res.Segments[0].Depth+1]
		if !hasPrefix(s.latest, first) {
			s.logger.Debug("discarding stale navigation", "url", target, "keys", first)
			return nil, "", ErrStale
		}
	}
	for _, seg := range res.Segments {
		n := ensure(s.tree, path[:seg.Depth+1])
		s.tree.Set(n, seg)
	}
	if s.seq == seq {
		s.current = target
	}

	nav := s.cachedLocked(target, targetPathname(target), path)
	nav.Fetched = fetched
	nav.Records = changed
	nav.Modules = res.Modules
	nav.NotFound = res.NotFound != nil
	return nav, "", nil
}

// cachedLocked builds a navigation from the cache along keys.
func (s *Session) cachedLocked(target, pathname string, keys []string) *Navigation {
	nav := &Navigation{URL: target, Pathname: pathname, Keys: slices.Clone(keys)}
	n := s.tree.Root()
	for _, k := range keys {
		if n = n.Child(k); n == nil {
			break
		}
		seg, ok := n.Content()
		if !ok {
			break
		}
		nav.Segments = append(nav.Segments, seg)
	}
	return nav
}

// ensure creates every missing node along path, one level per call of
// EnsureShallowestUncached, and returns the node at path.
func ensure(t *Tree, path []string) *segcache.Node[*protocol.Segment] {
	for {
		n, existing := t.EnsureShallowestUncached(path)
		if len(existing) >= len(path)-1 {
			return n
		}
	}
}

func hasPrefix(keys, prefix []string) bool {
	return len(prefix) <= len(keys) && slices.Equal(keys[:len(prefix)], prefix)
}

func buildURL(rawURL string, params map[string]any) (string, error) {
	if len(params) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", err
		}
		q := u.Query()
		for k, v := range params {
			q.Set(k, fmt.Sprint(v))
		}
		u.RawQuery = q.Encode()
		rawURL = u.String()
	}
	return routepath.ValidateNavigateTarget(rawURL)
}

// targetPathname returns the still-encoded pathname of target.
func targetPathname(target string) string {
	return router.ParsePath(target).Pathname
}
