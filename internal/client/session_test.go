package client_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kode4food/flowrelay/internal/assert"
	"github.com/kode4food/flowrelay/internal/assert/helpers"
	"github.com/kode4food/flowrelay/internal/classify"
	"github.com/kode4food/flowrelay/internal/client"
	"github.com/kode4food/flowrelay/internal/stream"
	"github.com/kode4food/flowrelay/pkg/api"
)

type sessionCounter struct {
	ended  chan stream.State
	opened int
	mu     sync.Mutex
}

func newSessionCounter() *sessionCounter {
	return &sessionCounter{ended: make(chan stream.State, 10)}
}

func (c *sessionCounter) SessionOpened() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened++
}

func (c *sessionCounter) SessionEnded(s stream.State) {
	c.ended <- s
}

func newTestClient(
	t *testing.T, exec client.Executor, streams client.StreamOpener,
) *client.Client {
	t.Helper()
	c, err := client.New(helpers.NewTestConfig(), client.Dependencies{
		Executor: exec,
		Streams:  streams,
		NewTimer: helpers.NewFakeClock().NewTimer,
	})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return c
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	as := assert.New(t)
	cfg := helpers.NewTestConfig()
	cfg.BaseURL = "not a url"

	c, err := client.New(cfg, client.Dependencies{})
	as.Nil(c)
	as.ErrorIs(err, client.ErrInvalidConfig)
}

func TestRunURL(t *testing.T) {
	as := assert.New(t)
	c := newTestClient(t, helpers.NewMockExecutor(), nil)

	req := api.NewRunRequest("flow/1", "coll 2", "hi", "", "", true, nil)
	as.Equal(
		"https://api.langflow.astra.datastax.com"+
			"/lf/coll%202/api/v1/run/flow%2F1?stream=true",
		c.RunURL(req),
	)

	req.StreamRequested = false
	as.Contains(c.RunURL(req), "?stream=false")
}

func TestInitiateSessionBody(t *testing.T) {
	as := assert.New(t)
	exec := helpers.NewMockExecutor(helpers.Respond(`{"outputs":[]}`))
	c := newTestClient(t, exec, nil)

	req := c.NewRunRequest("hello", api.IOTypeText, "", false)
	res, err := c.InitiateSession(context.Background(), req)
	as.NoError(err)
	as.JSONEq(`{"outputs":[]}`, string(res))

	calls := exec.Calls()
	as.Len(calls, 1)
	as.Equal(c.RunURL(req), calls[0].URL)

	body, ok := calls[0].Body.(api.RunBody)
	as.True(ok)
	as.Equal("hello", body.InputValue)
	as.Equal(api.IOTypeText, body.InputType)
	as.Equal(api.IOTypeChat, body.OutputType)
	as.Len(body.Tweaks, len(helpers.NewTestConfig().Tweaks))
}

func TestInitiateSessionPropagatesFailure(t *testing.T) {
	as := assert.New(t)
	exec := helpers.NewMockExecutor(
		helpers.Fail(&client.HTTPError{Status: 502}),
	)
	c := newTestClient(t, exec, nil)

	_, err := c.InitiateSession(context.Background(),
		helpers.NewTestRunRequest("x", false),
	)
	as.RetriesExhausted(err, 3)
	as.HTTPStatus(err, 502)
}

func TestRunFlowStreamURL(t *testing.T) {
	as := assert.New(t)
	exec := helpers.NewMockExecutor(helpers.Respond(
		`{"outputs":[{"outputs":[{"artifacts":` +
			`{"stream_url":"https://x/stream"}}]}]}`,
	))
	src := helpers.NewFakeSource()
	sub := helpers.NewFakeSubscriber(src)
	c := newTestClient(t, exec, stream.NewBridge(sub))

	rec := helpers.NewSinkRecorder()
	req := helpers.NewTestRunRequest("hi", true)
	res, err := c.RunFlow(context.Background(), req, rec.Sinks())
	as.NoError(err)
	as.Equal(classify.HasStreamURL, res.Shape.Kind)
	as.NotNil(res.Stream)
	as.NotEmpty(req.SessionID)
	as.Equal(req.SessionID, res.Stream.ID())
	as.SessionState(res.Stream, stream.StateOpen)
	as.Equal("https://x/stream", res.Stream.URL())

	src.CloseEvent()
	as.SessionDone(res.Stream, time.Second)
	as.Equal([]string{"https://x/stream"}, sub.URLs())
}

func TestRunFlowRelativeStreamURL(t *testing.T) {
	as := assert.New(t)
	exec := helpers.NewMockExecutor(helpers.Respond(
		`{"outputs":[{"outputs":[{"artifacts":` +
			`{"stream_url":"/api/v1/build/abc/events"}}]}]}`,
	))
	src := helpers.NewFakeSource()
	sessions := newSessionCounter()
	c, err := client.New(helpers.NewTestConfig(), client.Dependencies{
		Executor: exec,
		Streams:  stream.NewBridge(helpers.NewFakeSubscriber(src)),
		Sessions: sessions,
	})
	as.NoError(err)

	res, err := c.RunFlow(context.Background(),
		helpers.NewTestRunRequest("hi", true), stream.Sinks{},
	)
	as.NoError(err)
	as.Equal(
		"https://api.langflow.astra.datastax.com/api/v1/build/abc/events",
		res.Stream.URL(),
	)

	src.Fail(errors.New("gone"))
	select {
	case st := <-sessions.ended:
		as.Equal(stream.StateErrored, st)
	case <-time.After(time.Second):
		t.Fatal("session end not observed")
	}
	sessions.mu.Lock()
	as.Equal(1, sessions.opened)
	sessions.mu.Unlock()
}

func TestRunFlowStreamingNotGranted(t *testing.T) {
	as := assert.New(t)
	exec := helpers.NewMockExecutor(helpers.Respond(
		`{"outputs":[{"outputs":[{"outputs":{"message":{"text":"hi"}}}]}]}`,
	))
	c := newTestClient(t, exec, nil)

	res, err := c.RunFlow(context.Background(),
		helpers.NewTestRunRequest("hi", true), stream.Sinks{},
	)
	as.Nil(res)
	as.ErrorIs(err, client.ErrStreamingNotGranted)
}

func TestRunFlowDirectResult(t *testing.T) {
	as := assert.New(t)
	exec := helpers.NewMockExecutor(helpers.Respond(
		`{"outputs":[{"outputs":[{"outputs":{"message":{"text":"Hello"}}}]}]}`,
	))
	c := newTestClient(t, exec, nil)

	res, err := c.RunFlow(context.Background(),
		helpers.NewTestRunRequest("hi", false), stream.Sinks{},
	)
	as.NoError(err)
	as.Nil(res.Stream)
	as.Equal(classify.HasDirectResult, res.Shape.Kind)
	as.Equal("Hello", res.Shape.Text)
	as.Contains(c.RunURL(helpers.NewTestRunRequest("", false)), "stream=false")
}

func TestRunFlowMissingOutputs(t *testing.T) {
	as := assert.New(t)
	exec := helpers.NewMockExecutor(helpers.Respond(`{"session_id":"abc"}`))
	c := newTestClient(t, exec, nil)

	res, err := c.RunFlow(context.Background(),
		helpers.NewTestRunRequest("hi", false), stream.Sinks{},
	)
	as.Nil(res)
	as.ErrorIs(err, client.ErrInvalidUpstreamShape)
}

func TestRunFlowUpstreamFailure(t *testing.T) {
	as := assert.New(t)
	exec := helpers.NewMockExecutor(
		helpers.Fail(&client.TransportError{Err: errors.New("refused")}),
	)
	c := newTestClient(t, exec, nil)

	_, err := c.RunFlow(context.Background(),
		helpers.NewTestRunRequest("hi", false), stream.Sinks{},
	)
	as.RetriesExhausted(err, 3)
	as.ErrorIs(err, client.ErrTransport)
}
