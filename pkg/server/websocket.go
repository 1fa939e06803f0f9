package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/flight/pkg/protocol"
)

// handleWebSocket upgrades the connection and serves one segment stream
// per request message, in order. Every frame of a stream is sent as its
// own binary message.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	s.metrics.RecordWebSocket(1)
	defer s.metrics.RecordWebSocket(-1)

	conn.SetReadLimit(s.config.MaxMessageSize)
	ctx := r.Context()
	out := &wsEmitter{conn: conn, timeout: s.config.WriteTimeout}

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		var req protocol.SocketRequest
		if err := json.Unmarshal(data, &req); err != nil {
			s.writeWSError(out, errors.New("malformed request"))
			continue
		}
		t, err := parseTarget(req.URL)
		if err != nil {
			s.writeWSError(out, err)
			continue
		}

		job := s.job(ctx, t, req.RouterState)
		sum, err := s.pool.Stream(ctx, job, out)
		s.metrics.RecordSegments(sum.Rendered, sum.Skipped)
		s.metrics.RecordPayload(sum.Records, sum.Modules)
		if err != nil {
			s.metrics.RecordStreamError(err)
			s.logger.Warn("websocket stream failed", "pathname", job.Pathname, "error", err)
			if out.broken() {
				return
			}
		}
	}
}

func (s *Server) writeWSError(out *wsEmitter, err error) {
	_ = out.Write(&protocol.Head{Version: protocol.Version})
	_ = out.Write(protocol.NewFatalError(protocol.ErrInvalidRequest, err.Error()))
	_ = out.Write(&protocol.End{})
}

// wsEmitter writes messages as binary websocket messages, one frame each.
type wsEmitter struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
	err     error
}

func (e *wsEmitter) Write(m protocol.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	for _, f := range protocol.SplitFrames(m.FrameType(), protocol.EncodeMessage(m)) {
		e.conn.SetWriteDeadline(time.Now().Add(e.timeout))
		if err := e.conn.WriteMessage(websocket.BinaryMessage, f.Encode()); err != nil {
			e.err = err
			return err
		}
	}
	return nil
}

func (e *wsEmitter) broken() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err != nil
}
