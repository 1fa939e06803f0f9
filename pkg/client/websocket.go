package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/flight/pkg/protocol"
)

// ErrMutationUnsupported is returned when a mutation is sent over the
// websocket transport, which only carries navigations.
var ErrMutationUnsupported = errors.New("client: websocket transport does not carry mutations")

// WSTransport fetches streams over one websocket connection, dialed on
// first use and redialed after a failure. The server answers requests in
// order, so a request holds the connection until its body is closed.
type WSTransport struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSTransport returns a transport for the websocket endpoint at url,
// such as "ws://localhost:3000/_flight/ws".
func NewWSTransport(url string) *WSTransport {
	return &WSTransport{URL: url, Dialer: websocket.DefaultDialer}
}

// Do implements Transport.
func (t *WSTransport) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Action != "" {
		return nil, ErrMutationUnsupported
	}
	data, err := json.Marshal(protocol.SocketRequest{URL: req.URL, RouterState: req.RouterState})
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	conn, err := t.connect(ctx)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	deadline, _ := ctx.Deadline()
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.dropLocked()
		t.mu.Unlock()
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Time{})

	body := &wsBody{t: t, conn: conn, ctx: ctx}
	body.stop = context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	return &Response{Body: body}, nil
}

// Close closes the connection.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *WSTransport) connect(ctx context.Context) (*websocket.Conn, error) {
	if t.conn != nil {
		return t.conn, nil
	}
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, t.URL, t.Header)
	if err != nil {
		return nil, err
	}
	t.conn = conn
	return conn, nil
}

func (t *WSTransport) dropLocked() {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
}

// wsBody reads one stream from successive binary messages, up to and
// including the End frame.
type wsBody struct {
	t    *WSTransport
	conn *websocket.Conn
	ctx  context.Context
	stop func() bool

	buf  []byte
	last bool
	done bool
	err  error

	closeOnce sync.Once
}

func (b *wsBody) Read(p []byte) (int, error) {
	for len(b.buf) == 0 {
		if b.done {
			return 0, io.EOF
		}
		if b.err != nil {
			return 0, b.err
		}
		kind, msg, err := b.conn.ReadMessage()
		if err != nil {
			if ctxErr := b.ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			b.err = err
			return 0, err
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		if f, err := protocol.DecodeFrame(msg); err == nil && f.Type == protocol.FrameEnd {
			b.last = true
		}
		b.buf = msg
	}
	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	if len(b.buf) == 0 && b.last {
		b.done = true
	}
	return n, nil
}

// Close releases the connection for the next request. A stream that was
// not read to its end leaves unread frames on the wire, so the connection
// is dropped and redialed next time.
func (b *wsBody) Close() error {
	b.closeOnce.Do(func() {
		b.stop()
		if !b.done {
			b.t.dropLocked()
		}
		b.t.mu.Unlock()
	})
	return nil
}
