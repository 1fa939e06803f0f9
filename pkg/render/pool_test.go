package render

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/flight/pkg/protocol"
	"github.com/vango-dev/flight/pkg/router"
)

func TestPoolRender(t *testing.T) {
	p := NewPool(NewRenderer(blogLoader()), 2)
	defer p.Close()

	c, err := p.Render(context.Background(), job(t, "/posts/42"))
	require.NoError(t, err)

	var types []protocol.FrameType
	for m := range c.Messages() {
		types = append(types, m.FrameType())
	}
	sum, err := c.Wait()
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Rendered)
	assert.Equal(t, protocol.FrameHead, types[0])
	assert.Equal(t, protocol.FrameEnd, types[len(types)-1])
}

func TestPoolStreamConcurrent(t *testing.T) {
	p := NewPool(NewRenderer(blogLoader()), 3)
	defer p.Close()

	j := job(t, "/posts/7")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := &recorder{}
			sum, err := p.Stream(context.Background(), j, out)
			assert.NoError(t, err)
			assert.Equal(t, 3, sum.Rendered)
			assert.Len(t, out.segments(), 3)
		}()
	}
	wg.Wait()
}

func TestPoolStreamWriteError(t *testing.T) {
	p := NewPool(NewRenderer(blogLoader()), 1)
	defer p.Close()

	out := &recorder{err: errors.New("broken pipe")}
	_, err := p.Stream(context.Background(), job(t, "/posts/7"), out)
	assert.EqualError(t, err, "broken pipe")

	// The worker is free again.
	out = &recorder{}
	_, err = p.Stream(context.Background(), job(t, "/posts/7"), out)
	assert.NoError(t, err)
}

func TestPoolCancel(t *testing.T) {
	block := make(chan struct{})
	loader := &mapLoader{comps: map[string]Component{
		"slow": ComponentFunc(func(c *Ctx) (Outcome, error) {
			close(block)
			<-c.Context().Done()
			return Outcome{}, c.Context().Err()
		}),
	}}
	routes := []*router.RouteNode{router.Route(router.RootID, "/").WithComponent("slow")}
	ms, err := router.MatchRoutes(routes, "/", "/")
	require.NoError(t, err)

	p := NewPool(NewRenderer(loader), 1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c, err := p.Render(ctx, Job{Pathname: "/", Matches: ms})
	require.NoError(t, err)

	<-block
	cancel()

	done := make(chan struct{})
	go func() {
		for range c.Messages() {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("messages channel not closed after cancel")
	}
	_, err = c.Wait()
	assert.Error(t, err)
}

func TestPoolClosed(t *testing.T) {
	p := NewPool(NewRenderer(blogLoader()), 1)
	p.Close()
	p.Close()

	_, err := p.Render(context.Background(), job(t, "/"))
	assert.ErrorIs(t, err, ErrPoolClosed)
}
