package stream_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/kode4food/flowrelay/internal/assert"
	"github.com/kode4food/flowrelay/internal/assert/helpers"
	"github.com/kode4food/flowrelay/internal/assert/wait"
	"github.com/kode4food/flowrelay/internal/stream"
	"github.com/kode4food/flowrelay/pkg/api"
)

const (
	testSessionID = api.SessionID("sess-1")
	testStreamURL = "https://upstream.test/stream/abc"
	doneTimeout   = time.Second
)

func openSession(
	t *testing.T, ctx context.Context, sub stream.Subscriber,
	rec *helpers.SinkRecorder,
) *stream.Session {
	t.Helper()
	sess, err := stream.NewBridge(sub).Open(
		ctx, testSessionID, testStreamURL, rec.Sinks(),
	)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	return sess
}

func TestOpenMissingURL(t *testing.T) {
	as := assert.New(t)
	sub := helpers.NewFakeSubscriber(helpers.NewFakeSource())

	sess, err := stream.NewBridge(sub).Open(
		context.Background(), testSessionID, "", stream.Sinks{},
	)
	as.Nil(sess)
	as.ErrorIs(err, stream.ErrMissingURL)
}

func TestUpdatesThenClose(t *testing.T) {
	as := assert.New(t)
	src := helpers.NewFakeSource()
	sub := helpers.NewFakeSubscriber(src)
	rec := helpers.NewSinkRecorder()

	sess := openSession(t, context.Background(), sub, rec)
	as.SessionState(sess, stream.StateOpen)
	as.Equal(testStreamURL, sess.URL())
	as.Equal(testSessionID, sess.ID())

	src.Message(`{"chunk":"Hel"}`)
	src.Message(`{"chunk":"lo"}`)
	src.CloseEvent()
	src.CloseEvent()

	as.SessionDone(sess, doneTimeout)
	as.SessionState(sess, stream.StateClosed)
	as.True(src.Closed())
	as.Equal([]string{testStreamURL}, sub.URLs())

	all := rec.All()
	as.Len(all, 3)
	as.Equal(map[string]any{"chunk": "Hel"}, all[0].Data)
	as.Equal(map[string]any{"chunk": "lo"}, all[1].Data)
	as.Equal(helpers.SinkClose, all[2].Kind)
	as.Equal(stream.ReasonClosed, all[2].Reason)
}

func TestParseErrorKeepsSessionOpen(t *testing.T) {
	as := assert.New(t)
	src := helpers.NewFakeSource()
	rec := helpers.NewSinkRecorder()

	sess := openSession(t, context.Background(),
		helpers.NewFakeSubscriber(src), rec,
	)

	src.Message(`{not json`)
	ev := wait.On(t, rec.Events()).ForOne(helpers.IsKind(helpers.SinkError))
	as.ErrorIs(ev.Err, stream.ErrStreamParse)
	var pe *stream.ParseError
	as.True(errors.As(ev.Err, &pe))
	as.Equal(`{not json`, pe.Data)
	as.SessionState(sess, stream.StateOpen)

	src.Message(`"after"`)
	ev = wait.On(t, rec.Events()).ForOne(helpers.IsKind(helpers.SinkUpdate))
	as.Equal("after", ev.Data)

	src.CloseEvent()
	as.SessionDone(sess, doneTimeout)
	as.SessionState(sess, stream.StateClosed)
}

func TestTransportErrorEndsSession(t *testing.T) {
	as := assert.New(t)
	src := helpers.NewFakeSource()
	rec := helpers.NewSinkRecorder()

	sess := openSession(t, context.Background(),
		helpers.NewFakeSubscriber(src), rec,
	)

	boom := errors.New("connection reset")
	src.Message(`1`)
	src.Fail(boom)

	as.SessionDone(sess, doneTimeout)
	as.SessionState(sess, stream.StateErrored)
	as.True(src.Closed())

	all := rec.All()
	as.Len(all, 2)
	as.Equal(float64(1), all[0].Data)
	as.Equal(helpers.SinkError, all[1].Kind)
	as.ErrorIs(all[1].Err, stream.ErrStreamTransport)
	as.ErrorIs(all[1].Err, boom)
	as.Zero(rec.Count(helpers.SinkClose))
}

func TestEndWithoutCloseIsError(t *testing.T) {
	as := assert.New(t)
	src := helpers.NewFakeSource()
	rec := helpers.NewSinkRecorder()

	sess := openSession(t, context.Background(),
		helpers.NewFakeSubscriber(src), rec,
	)
	src.Fail(io.EOF)

	as.SessionDone(sess, doneTimeout)
	as.SessionState(sess, stream.StateErrored)
	all := rec.All()
	as.Len(all, 1)
	as.ErrorIs(all[0].Err, stream.ErrStreamEnded)
}

func TestSubscribeFailure(t *testing.T) {
	as := assert.New(t)
	sub := helpers.NewFakeSubscriber(nil)
	sub.Err = errors.New("dial failed")
	rec := helpers.NewSinkRecorder()

	sess := openSession(t, context.Background(), sub, rec)

	as.SessionDone(sess, doneTimeout)
	as.SessionState(sess, stream.StateErrored)
	all := rec.All()
	as.Len(all, 1)
	as.ErrorIs(all[0].Err, stream.ErrStreamTransport)
}

func TestNamedEventsIgnored(t *testing.T) {
	as := assert.New(t)
	src := helpers.NewFakeSource()
	rec := helpers.NewSinkRecorder()

	sess := openSession(t, context.Background(),
		helpers.NewFakeSubscriber(src), rec,
	)
	src.Named("heartbeat", `{"x":1}`)
	src.Message(`{"y":2}`)
	src.CloseEvent()

	as.SessionDone(sess, doneTimeout)
	all := rec.All()
	as.Len(all, 2)
	as.Equal(map[string]any{"y": float64(2)}, all[0].Data)
}

func TestCancel(t *testing.T) {
	as := assert.New(t)
	src := helpers.NewFakeSource()
	rec := helpers.NewSinkRecorder()

	sess := openSession(t, context.Background(),
		helpers.NewFakeSubscriber(src), rec,
	)
	src.Message(`"one"`)
	wait.On(t, rec.Events()).ForOne(helpers.IsKind(helpers.SinkUpdate))

	sess.Cancel()
	as.SessionState(sess, stream.StateClosed)
	as.True(src.Closed())

	src.Message(`"late"`)
	as.SessionDone(sess, doneTimeout)
	as.Equal(1, rec.Count(helpers.SinkUpdate))
	as.Equal(1, rec.Count(helpers.SinkClose))
	as.Equal(stream.ReasonCancelled, rec.All()[1].Reason)

	sess.Cancel()
	as.Equal(1, rec.Count(helpers.SinkClose))
}

func TestCancelDropsQueuedUpdates(t *testing.T) {
	as := assert.New(t)
	src := helpers.NewFakeSource()
	started := make(chan struct{})
	release := make(chan struct{})
	updates := make(chan any, 10)
	closed := make(chan string, 1)
	sinks := stream.Sinks{
		Update: stream.UpdateFunc(func(data any) {
			updates <- data
			if data == "one" {
				close(started)
				<-release
			}
		}),
		Close: stream.CloseFunc(func(reason string) {
			closed <- reason
		}),
	}

	sess, err := stream.NewBridge(helpers.NewFakeSubscriber(src)).Open(
		context.Background(), testSessionID, testStreamURL, sinks,
	)
	as.NoError(err)
	src.Message(`"one"`)
	<-started
	src.Message(`"two"`)

	sess.Cancel()
	close(release)

	as.SessionDone(sess, doneTimeout)
	as.Equal(stream.ReasonCancelled, <-closed)
	as.Len(updates, 1)
	as.Equal("one", <-updates)
}

func TestCancelAfterTerminal(t *testing.T) {
	as := assert.New(t)
	src := helpers.NewFakeSource()
	rec := helpers.NewSinkRecorder()

	sess := openSession(t, context.Background(),
		helpers.NewFakeSubscriber(src), rec,
	)
	src.Fail(errors.New("gone"))
	as.SessionDone(sess, doneTimeout)

	sess.Cancel()
	as.SessionState(sess, stream.StateErrored)
	as.Zero(rec.Count(helpers.SinkClose))
}

func TestCancelFromSink(t *testing.T) {
	as := assert.New(t)
	src := helpers.NewFakeSource()

	var sess *stream.Session
	ready := make(chan struct{})
	closed := make(chan string, 1)
	sinks := stream.Sinks{
		Update: stream.UpdateFunc(func(any) {
			<-ready
			sess.Cancel()
		}),
		Close: stream.CloseFunc(func(reason string) {
			closed <- reason
		}),
	}

	var err error
	sess, err = stream.NewBridge(helpers.NewFakeSubscriber(src)).Open(
		context.Background(), testSessionID, testStreamURL, sinks,
	)
	as.NoError(err)
	close(ready)
	src.Message(`"stop"`)

	as.SessionDone(sess, doneTimeout)
	as.Equal(stream.ReasonCancelled, <-closed)
	as.SessionState(sess, stream.StateClosed)
}

func TestContextCancelsSession(t *testing.T) {
	as := assert.New(t)
	src := helpers.NewFakeSource()
	rec := helpers.NewSinkRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	sess := openSession(t, ctx, helpers.NewFakeSubscriber(src), rec)
	cancel()

	as.SessionDone(sess, doneTimeout)
	as.SessionState(sess, stream.StateClosed)
	as.True(src.Closed())
	as.Equal(1, rec.Count(helpers.SinkClose))
}

func TestDoneWaitsForConnectionRelease(t *testing.T) {
	as := assert.New(t)
	src := helpers.NewFakeSource()
	sub := helpers.NewFakeSubscriber(src)
	sub.Hold = make(chan struct{})
	rec := helpers.NewSinkRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	sess := openSession(t, ctx, sub, rec)
	cancel()

	select {
	case ev := <-rec.Events():
		as.Equal(helpers.SinkClose, ev.Kind)
		as.Equal(stream.ReasonCancelled, ev.Reason)
	case <-time.After(doneTimeout):
		t.Fatal("close sink not called")
	}

	select {
	case <-sess.Done():
		t.Fatal("done before the connection was released")
	case <-time.After(20 * time.Millisecond):
	}

	close(sub.Hold)
	as.SessionDone(sess, doneTimeout)
	as.True(src.Closed())
	as.Equal(1, rec.Count(helpers.SinkClose))
}

func TestNilSinksUseDefaults(t *testing.T) {
	as := assert.New(t)
	src := helpers.NewFakeSource()

	sess, err := stream.NewBridge(helpers.NewFakeSubscriber(src)).Open(
		context.Background(), testSessionID, testStreamURL, stream.Sinks{},
	)
	as.NoError(err)
	src.Message(`{"ok":true}`)
	src.Message(`bad`)
	src.CloseEvent()

	as.SessionDone(sess, doneTimeout)
	as.SessionState(sess, stream.StateClosed)
}
