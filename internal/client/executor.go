package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kode4food/flowrelay/pkg/api"
	"github.com/kode4food/flowrelay/pkg/log"
)

type (
	// Executor performs exactly one upstream POST and reports its outcome
	Executor interface {
		Post(ctx context.Context, url string, body any) (api.RunResponse, error)
	}

	// HTTPExecutor is an Executor that talks to the upstream over HTTP with a
	// bearer token and a per-attempt deadline
	HTTPExecutor struct {
		httpClient *http.Client
		token      string
		timeout    time.Duration
	}
)

const userAgent = "Flowrelay/1.0"

var _ Executor = (*HTTPExecutor)(nil)

// NewHTTPExecutor creates an executor whose attempts are bounded by timeout
func NewHTTPExecutor(token string, timeout time.Duration) *HTTPExecutor {
	return &HTTPExecutor{
		httpClient: &http.Client{},
		token:      token,
		timeout:    timeout,
	}
}

// Post sends body as JSON to url. The attempt's context is cancelled when
// the deadline elapses so the in-flight connection is released
func (e *HTTPExecutor) Post(
	ctx context.Context, url string, body any,
) (api.RunResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(
		attemptCtx, http.MethodPost, url, bytes.NewReader(data),
	)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	req.Header.Set("Authorization", "Bearer "+e.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	slog.Debug("Making upstream request", log.URL(url))

	start := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, e.failure(ctx, attemptCtx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, e.failure(ctx, attemptCtx, err)
	}

	slog.Debug("Upstream responded",
		log.URL(url),
		slog.Int("status_code", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       string(respBody),
		}
	}

	if !gjson.ValidBytes(respBody) {
		return nil, &TransportError{Err: ErrInvalidResponseBody}
	}
	return api.RunResponse(respBody), nil
}

func (e *HTTPExecutor) failure(ctx, attemptCtx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{
			Timeout: e.timeout.String(),
			Err:     err,
		}
	}
	return &TransportError{Err: err}
}
