package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haasonsaas/parley/internal/agent"
)

const (
	wsMaxPayloadBytes = 8 << 20 // inline images arrive base64-encoded
	wsPingInterval    = 15 * time.Second
	wsPongWait        = 45 * time.Second
	wsWriteWait       = 10 * time.Second
)

// inboundFrame is one client message.
type inboundFrame struct {
	Type    string   `json:"type"`
	Message string   `json:"message"`
	Images  []string `json:"images,omitempty"`
}

// outboundFrame is one server message. Status is progress, success, or
// error; the role is always "model".
type outboundFrame struct {
	Status  string `json:"status"`
	Role    string `json:"role"`
	Message string `json:"message"`
}

type wsHandler struct {
	server   *Server
	upgrader websocket.Upgrader
}

func (s *Server) newWSHandler() http.Handler {
	return &wsHandler{
		server: s,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     s.checkOrigin,
		},
	}
}

func (h *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	sid := uuid.NewString()
	wc := &wsConn{
		server:     h.server,
		conn:       conn,
		send:       make(chan outboundFrame, 64),
		writerDone: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		sid:        sid,
		logger:     h.server.logger.With("session", sid),
	}
	wc.run()
}

// wsConn is one websocket connection and its session. The session lives as
// long as the connection unless the idle sweep takes it first.
type wsConn struct {
	server     *Server
	conn       *websocket.Conn
	send       chan outboundFrame
	writerDone chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	sid        string
	logger     *slog.Logger
}

func (c *wsConn) run() {
	c.logger.Info("client connected")
	c.server.store.GetOrCreate(c.sid)
	defer func() {
		c.server.store.Remove(c.sid)
		c.cancel()
		c.logger.Info("client disconnected")
	}()

	go c.writeLoop()
	c.readLoop()

	// The last turn may have queued its final envelope just before the read
	// side ended. Let the writer drain before the socket goes away.
	close(c.send)
	<-c.writerDone
	_ = c.conn.Close()
}

func (c *wsConn) readLoop() {
	pongWait := c.server.pongWait
	c.conn.SetReadLimit(wsMaxPayloadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn("malformed frame", "error", err)
			continue
		}
		if frame.Type != "" && frame.Type != "message" {
			continue
		}
		// Turns are handled inline: one in-flight turn per session. While
		// a turn runs nothing reads pongs, so the deadline must be pushed
		// out afterwards or a turn longer than pongWait kills the
		// connection on the next read.
		c.handleTurn(frame)
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (c *wsConn) writeLoop() {
	defer close(c.writerDone)
	ticker := time.NewTicker(c.server.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.server.writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.cancel()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.server.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// handleTurn runs one turn through the engine and emits progress, then the
// final result or an error envelope. A failed engine is replaced so the
// session stays usable.
func (c *wsConn) handleTurn(frame inboundFrame) {
	engine := c.server.store.GetOrCreate(c.sid)

	progress := func(status string) {
		c.emit(outboundFrame{Status: "progress", Role: "model", Message: status})
	}

	answer, err := engine.SendTurn(c.ctx, agent.Turn{
		Text:      frame.Message,
		ImageRefs: frame.Images,
	}, progress)

	switch {
	case err == nil:
		if answer == agent.SafetyNotice {
			c.incTurn("safety")
		} else {
			c.incTurn("success")
		}
		// Cosmetic rewrite so bullet glyphs render as markdown lists.
		answer = strings.ReplaceAll(answer, "•", "  *")
		c.emit(outboundFrame{Status: "success", Role: "model", Message: answer})

	case errors.Is(err, agent.ErrNoAnswer):
		c.incTurn("error")
		c.logger.Warn("turn ended without an answer")
		c.emit(outboundFrame{Status: "error", Role: "model", Message: err.Error()})

	default:
		c.incTurn("error")
		c.logger.Error("turn failed, replacing engine", "error", err)
		c.server.store.Replace(c.sid)
		c.emit(outboundFrame{Status: "error", Role: "model", Message: err.Error()})
	}
}

func (c *wsConn) emit(frame outboundFrame) {
	select {
	case c.send <- frame:
	case <-c.ctx.Done():
	}
}

func (c *wsConn) incTurn(status string) {
	if c.server.metrics != nil {
		c.server.metrics.IncTurn(status)
	}
}
