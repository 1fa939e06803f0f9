package client

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/flight/pkg/protocol"
	"github.com/vango-dev/flight/pkg/router"
	"github.com/vango-dev/flight/pkg/server"
)

func wsURL(ts *testServer) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + server.WebSocketPath
}

func TestWSTransportNavigation(t *testing.T) {
	ts := newTestServer(t)
	tr := NewWSTransport(wsURL(ts))
	defer tr.Close()
	sess := NewSession(router.New(blogRoutes()), tr)
	ctx := context.Background()

	nav, err := sess.Navigate(ctx, "/posts/7")
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "posts", "7"}, nav.Fetched)

	nav, err = sess.Navigate(ctx, "/posts/42")
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, nav.Fetched)

	nav, err = sess.Navigate(ctx, "/posts/missing")
	require.NoError(t, err)
	assert.True(t, nav.NotFound)

	_, err = sess.Mutate(ctx, "posts/like", nil)
	assert.ErrorIs(t, err, ErrMutationUnsupported)
}

func TestWSTransportRedialsAfterAbandonedStream(t *testing.T) {
	ts := newTestServer(t)
	tr := NewWSTransport(wsURL(ts))
	defer tr.Close()
	ctx := context.Background()

	resp, err := tr.Do(ctx, Request{URL: "/posts/1"})
	require.NoError(t, err)
	buf := make([]byte, protocol.FrameHeaderSize)
	_, err = resp.Body.Read(buf)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	tr.mu.Lock()
	assert.Nil(t, tr.conn)
	tr.mu.Unlock()

	resp, err = tr.Do(ctx, Request{URL: "/posts/2"})
	require.NoError(t, err)
	defer resp.Body.Close()
	asm := protocol.NewAssembler()
	require.NoError(t, asm.Consume(ctx, protocol.NewStreamReader(resp.Body), nil))
	res, err := asm.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/posts/2", res.Head.Pathname)
}

func TestWSTransportCancel(t *testing.T) {
	ts := newTestServer(t)
	tr := NewWSTransport(wsURL(ts))
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := tr.Do(ctx, Request{URL: "/posts/1"})
	require.NoError(t, err)
	cancel()

	_, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
