package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/kode4food/flowrelay/internal/classify"
	"github.com/kode4food/flowrelay/internal/config"
	"github.com/kode4food/flowrelay/internal/stream"
	"github.com/kode4food/flowrelay/pkg/api"
	"github.com/kode4food/flowrelay/pkg/log"
)

type (
	// Client starts flow runs against the upstream and, when asked, bridges
	// the resulting stream to the caller's sinks
	Client struct {
		config   *config.Config
		baseURL  *url.URL
		retrier  *Retrier
		streams  StreamOpener
		sessions SessionObserver
	}

	// StreamOpener opens stream sessions for stream URLs
	StreamOpener interface {
		Open(
			ctx context.Context, id api.SessionID, url string,
			sinks stream.Sinks,
		) (*stream.Session, error)
	}

	// SessionObserver is told when stream sessions start and end
	SessionObserver interface {
		SessionOpened()
		SessionEnded(stream.State)
	}

	// Dependencies holds the collaborators of a Client. Nil fields are
	// replaced with the HTTP and logging defaults
	Dependencies struct {
		Executor Executor
		Streams  StreamOpener
		Observer Observer
		Sessions SessionObserver
		NewTimer TimerConstructor
	}

	// RunResult is the outcome of RunFlow. Stream is set only when a stream
	// session was opened
	RunResult struct {
		Response api.RunResponse
		Stream   *stream.Session
		Shape    classify.Shape
	}

	noSessions struct{}
)

const runPathFormat = "lf/%s/api/v1/run/%s"

// New creates a Client from a validated configuration
func New(cfg *config.Config, deps Dependencies) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q", ErrInvalidConfig, cfg.BaseURL)
	}

	exec := deps.Executor
	if exec == nil {
		exec = NewHTTPExecutor(cfg.Token, cfg.RequestTimeout)
	}
	streams := deps.Streams
	if streams == nil {
		streams = stream.NewBridge(
			stream.NewHTTPSubscriber(cfg.Token, cfg.BaseURL),
		)
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = noSessions{}
	}

	return &Client{
		config:   cfg,
		baseURL:  base,
		streams:  streams,
		sessions: sessions,
		retrier: NewRetrier(exec, cfg.MaxAttempts, cfg.RetryBaseDelay,
			WithObserver(deps.Observer),
			WithTimer(deps.NewTimer),
		),
	}, nil
}

// NewRunRequest builds a request against the configured flow, carrying a
// private copy of the configured tweaks
func (c *Client) NewRunRequest(
	input string, inputType, outputType api.IOType, streaming bool,
) *api.RunRequest {
	return api.NewRunRequest(
		c.config.FlowID, c.config.CollectionID,
		input, inputType, outputType, streaming, c.config.Tweaks,
	)
}

// RunURL returns the upstream endpoint for req
func (c *Client) RunURL(req *api.RunRequest) string {
	u := c.baseURL.JoinPath(fmt.Sprintf(runPathFormat,
		url.PathEscape(string(req.CollectionID)),
		url.PathEscape(string(req.FlowID)),
	))
	u.RawQuery = fmt.Sprintf("stream=%t", req.StreamRequested)
	return u.String()
}

// InitiateSession submits req to the upstream, retrying per configuration.
// Failures are returned unchanged from the Retrier
func (c *Client) InitiateSession(
	ctx context.Context, req *api.RunRequest,
) (api.RunResponse, error) {
	runURL := c.RunURL(req)
	slog.Info("Running flow",
		log.SessionID(req.SessionID),
		log.FlowID(req.FlowID),
		log.CollectionID(req.CollectionID),
		slog.Bool("stream", req.StreamRequested))
	return c.retrier.Do(ctx, runURL, req.Body())
}

// RunFlow initiates req and classifies the response. When streaming was
// requested and granted, a stream session delivering to sinks is opened and
// returned in the result
func (c *Client) RunFlow(
	ctx context.Context, req *api.RunRequest, sinks stream.Sinks,
) (*RunResult, error) {
	resp, err := c.InitiateSession(ctx, req)
	if err != nil {
		slog.Error("Upstream request failed",
			log.SessionID(req.SessionID),
			log.FlowID(req.FlowID),
			log.Error(err))
		return nil, err
	}

	shape := classify.Classify(resp)
	res := &RunResult{
		Response: resp,
		Shape:    shape,
	}

	if !req.StreamRequested {
		if shape.Kind != classify.HasDirectResult {
			return nil, ErrInvalidUpstreamShape
		}
		return res, nil
	}

	if shape.Kind != classify.HasStreamURL {
		slog.Warn("Streaming not granted",
			log.SessionID(req.SessionID),
			log.FlowID(req.FlowID),
			slog.String("shape", shape.Kind.String()))
		return nil, ErrStreamingNotGranted
	}

	streamURL, err := c.resolve(shape.StreamURL)
	if err != nil {
		return nil, err
	}
	sess, err := c.streams.Open(ctx, req.SessionID, streamURL, sinks)
	if err != nil {
		return nil, err
	}
	c.watch(sess)
	res.Stream = sess
	return res, nil
}

func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %w", stream.ErrMissingURL, err)
	}
	return c.baseURL.ResolveReference(u).String(), nil
}

func (c *Client) watch(sess *stream.Session) {
	c.sessions.SessionOpened()
	go func() {
		<-sess.Done()
		state := sess.State()
		slog.Info("Stream session ended",
			log.SessionID(sess.ID()),
			log.State(state))
		c.sessions.SessionEnded(state)
	}()
}

func (noSessions) SessionOpened() {}

func (noSessions) SessionEnded(stream.State) {}
