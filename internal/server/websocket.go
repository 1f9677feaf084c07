package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kode4food/flowrelay/pkg/api"
	"github.com/kode4food/flowrelay/pkg/log"
)

// Socket is one WebSocket caller running a single streamed flow
type Socket struct {
	server    *Server
	conn      *websocket.Conn
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 64 * 1024
	wsBufferSize       = 1024
	incomingBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed",
			log.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sock := &Socket{
		server: s,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
	}
	s.registerWebSocket(sock)
	go sock.run()
}

// Close cancels the socket's stream session and closes the connection
func (c *Socket) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close()
	})
}

func (c *Socket) run() {
	defer func() {
		c.server.unregisterWebSocket(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	incoming := make(chan []byte, incomingBufferSize)
	go c.readMessages(incoming)

	message, ok := <-incoming
	if !ok {
		return
	}
	req, err := c.parseRequest(message)
	if err != nil {
		c.sendFrame(api.SocketFrame{
			Type:  api.SocketFrameError,
			Error: err.Error(),
		})
		c.sendClose()
		return
	}

	pump := newFramePump()
	defer pump.Stop()

	start := time.Now()
	res, err := c.server.client.RunFlow(c.ctx, req, pump.Sinks())
	c.server.metrics.RecordRun(transportWS, err, time.Since(start))
	if err != nil {
		slog.Error("Run flow failed",
			log.SessionID(req.SessionID),
			log.FlowID(req.FlowID),
			log.Error(err))
		c.sendFrame(api.SocketFrame{
			Type:  api.SocketFrameError,
			Error: err.Error(),
		})
		c.sendClose()
		return
	}
	sess := res.Stream
	defer sess.Cancel()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case _, ok := <-incoming:
			if !ok {
				return
			}

		case f := <-pump.Frames():
			if !c.sendFrame(socketFrame(f)) {
				return
			}
			if f.isFinal() {
				c.sendClose()
				return
			}

		case <-ticker.C:
			if !c.sendPing() {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Socket) readMessages(incoming chan []byte) {
	defer close(incoming)
	defer c.cancel()
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case incoming <- message:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Socket) parseRequest(message []byte) (*api.RunRequest, error) {
	var body api.RunFlowRequest
	if err := json.Unmarshal(message, &body); err != nil {
		return nil, ErrInvalidRequest
	}
	if body.InputValue == "" {
		return nil, errors.New(msgInputRequired)
	}
	return c.server.client.NewRunRequest(
		body.InputValue, body.InputType, body.OutputType, true,
	), nil
}

func (c *Socket) sendFrame(f api.SocketFrame) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(f); err != nil {
		slog.Error("WebSocket write failed",
			slog.String("frame", string(f.Type)),
			log.Error(err))
		return false
	}
	return true
}

func (c *Socket) sendClose() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
}

func (c *Socket) sendPing() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.PingMessage, nil)
	return err == nil
}

func socketFrame(f frame) api.SocketFrame {
	switch f.kind {
	case frameUpdate:
		return api.SocketFrame{Type: api.SocketFrameUpdate, Data: f.data}
	case frameError:
		return api.SocketFrame{Type: api.SocketFrameError, Error: f.err.Error()}
	default:
		return api.SocketFrame{Type: api.SocketFrameClose, Reason: f.reason}
	}
}

