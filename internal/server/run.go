package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/flowrelay/internal/client"
	"github.com/kode4food/flowrelay/internal/stream"
	"github.com/kode4food/flowrelay/pkg/api"
	"github.com/kode4food/flowrelay/pkg/log"
)

const (
	transportJSON = "json"
	transportSSE  = "sse"
	transportWS   = "ws"

	msgInputRequired = "Input value is required"
)

var (
	ErrInvalidRequest = errors.New("invalid request body")
	ErrNoFlusher      = errors.New("streaming unsupported by connection")
)

func (s *Server) handleRunFlow(c *gin.Context) {
	var body api.RunFlowRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest,
			api.NewErrorResponse(ErrInvalidRequest.Error()),
		)
		return
	}
	if body.InputValue == "" {
		c.JSON(http.StatusBadRequest,
			api.NewErrorResponse(msgInputRequired),
		)
		return
	}

	req := s.client.NewRunRequest(
		body.InputValue, body.InputType, body.OutputType, body.Stream,
	)
	if req.StreamRequested {
		s.streamRun(c, req)
		return
	}
	s.jsonRun(c, req)
}

func (s *Server) jsonRun(c *gin.Context, req *api.RunRequest) {
	start := time.Now()
	res, err := s.client.RunFlow(c.Request.Context(), req, stream.Sinks{})
	if err == nil && res.Shape.Text == "" {
		err = client.ErrInvalidUpstreamShape
	}
	s.metrics.RecordRun(transportJSON, err, time.Since(start))

	if err != nil {
		slog.Error("Run flow failed",
			log.SessionID(req.SessionID),
			log.FlowID(req.FlowID),
			log.Error(err))
		c.JSON(http.StatusInternalServerError,
			api.NewErrorResponse(err.Error()),
		)
		return
	}

	c.JSON(http.StatusOK, api.RunFlowResponse{
		Success: true,
		Output:  res.Shape.Text,
	})
}

func (s *Server) streamRun(c *gin.Context, req *api.RunRequest) {
	pump := newFramePump()
	defer pump.Stop()

	start := time.Now()
	res, err := s.client.RunFlow(c.Request.Context(), req, pump.Sinks())
	s.metrics.RecordRun(transportSSE, err, time.Since(start))
	if err != nil {
		slog.Error("Run flow failed",
			log.SessionID(req.SessionID),
			log.FlowID(req.FlowID),
			log.Error(err))
		c.JSON(http.StatusInternalServerError,
			api.NewErrorResponse(err.Error()),
		)
		return
	}

	sess := res.Stream
	defer sess.Cancel()

	w := newSSEWriter(c.Writer)
	if w == nil {
		c.JSON(http.StatusInternalServerError,
			api.NewErrorResponse(ErrNoFlusher.Error()),
		)
		return
	}

	gone := c.Request.Context().Done()
	for {
		select {
		case f := <-pump.Frames():
			if err := writeSSEFrame(w, f); err != nil {
				slog.Warn("Stream write failed",
					log.URL(sess.URL()),
					log.Error(err))
				return
			}
			if f.isFinal() {
				return
			}
		case <-gone:
			slog.Info("Caller disconnected",
				log.URL(sess.URL()))
			return
		}
	}
}

func writeSSEFrame(w *sseWriter, f frame) error {
	switch f.kind {
	case frameUpdate:
		return w.SendData(f.data)
	case frameError:
		return w.SendData(api.StreamError{Error: f.err.Error()})
	default:
		return nil
	}
}
