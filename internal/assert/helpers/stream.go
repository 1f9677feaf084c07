package helpers

import (
	"context"
	"errors"
	"sync"

	"github.com/kode4food/flowrelay/internal/stream"
)

type (
	// FakeSource is a stream.Source fed by the test
	FakeSource struct {
		items  chan sourceItem
		closed chan struct{}
		once   sync.Once
	}

	// FakeSubscriber hands out a single FakeSource, or fails with Err. When
	// Hold is set, Subscribe blocks until it is closed
	FakeSubscriber struct {
		Source *FakeSource
		Err    error
		Hold   chan struct{}
		urls   []string
		mu     sync.Mutex
	}

	// SinkRecorder captures everything a session delivers
	SinkRecorder struct {
		events chan SinkEvent
		all    []SinkEvent
		mu     sync.Mutex
	}

	// SinkEvent is one recorded sink invocation
	SinkEvent struct {
		Data   any
		Err    error
		Kind   SinkKind
		Reason string
	}

	SinkKind string

	sourceItem struct {
		ev  *stream.Event
		err error
	}
)

const (
	SinkUpdate SinkKind = "update"
	SinkClose  SinkKind = "close"
	SinkError  SinkKind = "error"
)

// ErrSourceClosed is returned by Next once a FakeSource is closed
var ErrSourceClosed = errors.New("fake source closed")

var (
	_ stream.Source     = (*FakeSource)(nil)
	_ stream.Subscriber = (*FakeSubscriber)(nil)
)

// NewFakeSource creates an empty source
func NewFakeSource() *FakeSource {
	return &FakeSource{
		items:  make(chan sourceItem, 100),
		closed: make(chan struct{}),
	}
}

// NewFakeSubscriber creates a subscriber serving src
func NewFakeSubscriber(src *FakeSource) *FakeSubscriber {
	return &FakeSubscriber{Source: src}
}

// Message queues an unnamed event carrying data
func (s *FakeSource) Message(data string) {
	s.items <- sourceItem{ev: &stream.Event{
		Type: stream.EventMessage,
		Data: data,
	}}
}

// Named queues an event of the given type
func (s *FakeSource) Named(typ, data string) {
	s.items <- sourceItem{ev: &stream.Event{Type: typ, Data: data}}
}

// CloseEvent queues the upstream's close event
func (s *FakeSource) CloseEvent() {
	s.Named(stream.EventClose, "")
}

// Fail queues a transport failure
func (s *FakeSource) Fail(err error) {
	s.items <- sourceItem{err: err}
}

// Next returns the next queued item, blocking until one arrives or the
// source is closed
func (s *FakeSource) Next() (*stream.Event, error) {
	select {
	case it := <-s.items:
		return it.ev, it.err
	case <-s.closed:
		return nil, ErrSourceClosed
	}
}

// Close releases any blocked Next
func (s *FakeSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// Closed reports whether Close was called
func (s *FakeSource) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Subscribe records url and returns the configured source or error
func (s *FakeSubscriber) Subscribe(
	_ context.Context, url string,
) (stream.Source, error) {
	s.mu.Lock()
	s.urls = append(s.urls, url)
	s.mu.Unlock()

	if s.Hold != nil {
		<-s.Hold
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Source, nil
}

// URLs returns every subscribed url
func (s *FakeSubscriber) URLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.urls...)
}

// NewSinkRecorder creates an empty recorder
func NewSinkRecorder() *SinkRecorder {
	return &SinkRecorder{events: make(chan SinkEvent, 100)}
}

// Sinks returns stream sinks that record into r
func (r *SinkRecorder) Sinks() stream.Sinks {
	return stream.Sinks{
		Update: stream.UpdateFunc(func(data any) {
			r.record(SinkEvent{Kind: SinkUpdate, Data: data})
		}),
		Close: stream.CloseFunc(func(reason string) {
			r.record(SinkEvent{Kind: SinkClose, Reason: reason})
		}),
		Error: stream.ErrorFunc(func(err error) {
			r.record(SinkEvent{Kind: SinkError, Err: err})
		}),
	}
}

// Events receives each recorded invocation as it happens
func (r *SinkRecorder) Events() <-chan SinkEvent {
	return r.events
}

// All returns every recorded invocation, in order
func (r *SinkRecorder) All() []SinkEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SinkEvent(nil), r.all...)
}

// Count returns the number of recorded invocations of kind
func (r *SinkRecorder) Count(kind SinkKind) int {
	n := 0
	for _, ev := range r.All() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// IsKind matches recorded events of the given kind
func IsKind(kind SinkKind) func(SinkEvent) bool {
	return func(ev SinkEvent) bool {
		return ev.Kind == kind
	}
}

func (r *SinkRecorder) record(ev SinkEvent) {
	r.mu.Lock()
	r.all = append(r.all, ev)
	r.mu.Unlock()

	select {
	case r.events <- ev:
	default:
	}
}
