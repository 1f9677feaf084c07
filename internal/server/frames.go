package server

import (
	"errors"

	"github.com/kode4food/flowrelay/internal/stream"
)

type (
	// framePump turns stream sink calls into frames consumed by a single
	// writer goroutine. Sink calls never block once the writer has gone
	framePump struct {
		frames chan frame
		done   chan struct{}
	}

	frame struct {
		data   any
		err    error
		reason string
		kind   frameKind
	}

	frameKind int
)

const (
	frameUpdate frameKind = iota
	frameError
	frameClose
)

const frameBufferSize = 64

func newFramePump() *framePump {
	return &framePump{
		frames: make(chan frame, frameBufferSize),
		done:   make(chan struct{}),
	}
}

// Sinks returns stream sinks feeding the pump
func (p *framePump) Sinks() stream.Sinks {
	return stream.Sinks{
		Update: stream.UpdateFunc(func(data any) {
			p.send(frame{kind: frameUpdate, data: data})
		}),
		Close: stream.CloseFunc(func(reason string) {
			p.send(frame{kind: frameClose, reason: reason})
		}),
		Error: stream.ErrorFunc(func(err error) {
			p.send(frame{kind: frameError, err: err})
		}),
	}
}

// Frames is read by the writer
func (p *framePump) Frames() <-chan frame {
	return p.frames
}

// Stop is called by the writer when it will read no more frames
func (p *framePump) Stop() {
	close(p.done)
}

func (p *framePump) send(f frame) {
	select {
	case p.frames <- f:
	case <-p.done:
	}
}

// isFinal reports whether f ends the stream
func (f frame) isFinal() bool {
	switch f.kind {
	case frameClose:
		return true
	case frameError:
		return errors.Is(f.err, stream.ErrStreamTransport)
	default:
		return false
	}
}
