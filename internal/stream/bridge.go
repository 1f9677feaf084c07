package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/kode4food/flowrelay/pkg/api"
	"github.com/kode4food/flowrelay/pkg/log"
)

type (
	// State is the lifecycle state of a Session
	State string

	// Bridge opens stream Sessions through a Subscriber
	Bridge struct {
		subscriber Subscriber
	}

	// Session is one live stream subscription. It is created Open and moves
	// exactly once to Closed or Errored
	Session struct {
		sinks      Sinks
		subscriber Subscriber
		dispatch   *dispatcher
		ctx        context.Context
		cancel     context.CancelFunc
		stopWatch  func() bool
		source     Source
		id         api.SessionID
		url        string
		readDone   chan struct{}
		done       chan struct{}
		state      atomic.Int32
		mu         sync.Mutex
		release    sync.Once
	}
)

const (
	StateOpen    State = "open"
	StateClosed  State = "closed"
	StateErrored State = "errored"
)

const (
	stateOpen int32 = iota
	stateClosed
	stateCancelled
	stateErrored
)

const (
	ReasonClosed    = "Stream closed"
	ReasonCancelled = "Stream cancelled"
)

// NewBridge creates a Bridge using sub to establish connections
func NewBridge(sub Subscriber) *Bridge {
	return &Bridge{subscriber: sub}
}

// Open starts a Session against url and returns it in the Open state. The
// connection is established in the background; a failure to connect is
// reported through the error sink. Cancelling ctx cancels the Session
func (b *Bridge) Open(
	ctx context.Context, id api.SessionID, url string, sinks Sinks,
) (*Session, error) {
	if url == "" {
		return nil, ErrMissingURL
	}

	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		sinks:      sinks.withDefaults(),
		subscriber: b.subscriber,
		dispatch:   newDispatcher(),
		ctx:        sessCtx,
		cancel:     cancel,
		id:         id,
		url:        url,
		readDone:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.mu.Lock()
	s.stopWatch = context.AfterFunc(ctx, s.Cancel)
	s.mu.Unlock()

	go s.read()
	go s.awaitDone()
	return s, nil
}

// ID returns the session id this Session was opened with
func (s *Session) ID() api.SessionID {
	return s.id
}

// URL returns the stream endpoint this Session is subscribed to
func (s *Session) URL() string {
	return s.url
}

// State reports the current lifecycle state
func (s *Session) State() State {
	switch s.state.Load() {
	case stateOpen:
		return StateOpen
	case stateErrored:
		return StateErrored
	default:
		return StateClosed
	}
}

// Done is closed after the terminal sink has been called and the
// connection has been released
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Cancel moves an Open Session to Closed, releases the connection, and
// waits for the read loop to stop. An update or error callback already
// running may finish, but none is dispatched after Cancel returns. The
// close sink is still called once. Cancelling a Session that already ended
// has no effect
func (s *Session) Cancel() {
	s.transition(stateCancelled, func() {
		s.sinks.Close.Close(ReasonCancelled)
	})
	<-s.readDone
}

func (s *Session) awaitDone() {
	<-s.dispatch.Done()
	<-s.readDone
	close(s.done)
}

func (s *Session) read() {
	defer close(s.readDone)

	src, err := s.subscriber.Subscribe(s.ctx, s.url)
	if err != nil {
		s.fail(err)
		return
	}
	if !s.attach(src) {
		_ = src.Close()
		return
	}

	slog.Info("Streaming from upstream",
		log.SessionID(s.id),
		log.URL(s.url))

	for s.state.Load() == stateOpen {
		ev, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrStreamEnded
			}
			s.fail(err)
			return
		}

		switch ev.Type {
		case EventClose:
			s.transition(stateClosed, func() {
				s.sinks.Close.Close(ReasonClosed)
			})
			return
		case EventMessage:
			s.deliver(ev)
		default:
			slog.Debug("Ignoring named stream event",
				log.SessionID(s.id),
				log.URL(s.url),
				slog.String("event", ev.Type))
		}
	}
}

func (s *Session) deliver(ev *Event) {
	var data any
	if err := json.Unmarshal([]byte(ev.Data), &data); err != nil {
		perr := &ParseError{Data: ev.Data, Err: err}
		slog.Warn("Error parsing stream data",
			log.SessionID(s.id),
			log.URL(s.url),
			log.Error(perr))
		s.dispatch.Enqueue(func() {
			if s.state.Load() != stateCancelled {
				s.sinks.Error.Error(perr)
			}
		})
		return
	}

	s.dispatch.Enqueue(func() {
		if s.state.Load() != stateCancelled {
			s.sinks.Update.Update(data)
		}
	})
}

func (s *Session) fail(err error) {
	terr := &TransportError{Err: err}
	if s.transition(stateErrored, func() {
		s.sinks.Error.Error(terr)
	}) {
		slog.Error("Stream error",
			log.SessionID(s.id),
			log.URL(s.url),
			log.Error(terr))
	}
}

// attach records the live source, refusing it if the session already ended
func (s *Session) attach(src Source) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Load() != stateOpen {
		return false
	}
	s.source = src
	return true
}

// transition moves an Open session to a terminal state. Only the first
// caller wins; it releases the connection and schedules the terminal sink
func (s *Session) transition(to int32, terminal func()) bool {
	s.mu.Lock()
	if !s.state.CompareAndSwap(stateOpen, to) {
		s.mu.Unlock()
		return false
	}
	src := s.source
	stop := s.stopWatch
	s.mu.Unlock()

	s.release.Do(func() {
		if stop != nil {
			stop()
		}
		s.cancel()
		if src != nil {
			_ = src.Close()
		}
	})
	s.dispatch.Finish(terminal)
	return true
}
