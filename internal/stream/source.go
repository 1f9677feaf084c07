package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type (
	// Source is a live, owned event subscription. Next is lazy and blocks
	// for the next event; Close releases the connection and unblocks Next
	Source interface {
		Next() (*Event, error)
		Close() error
	}

	// Subscriber establishes Sources for stream URLs
	Subscriber interface {
		Subscribe(ctx context.Context, url string) (Source, error)
	}

	// HTTPSubscriber subscribes to text/event-stream endpoints over HTTP
	HTTPSubscriber struct {
		httpClient *http.Client
		token      string
		tokenHost  string
	}

	httpSource struct {
		body io.ReadCloser
		dec  *Decoder
	}
)

const maxRejectBody = 1024

var _ Subscriber = (*HTTPSubscriber)(nil)

// NewHTTPSubscriber creates a Subscriber. The bearer token is only sent to
// stream URLs on the same host as baseURL
func NewHTTPSubscriber(token, baseURL string) *HTTPSubscriber {
	host := ""
	if u, err := url.Parse(baseURL); err == nil {
		host = u.Host
	}
	return &HTTPSubscriber{
		httpClient: &http.Client{},
		token:      token,
		tokenHost:  host,
	}
}

// Subscribe opens the stream. The connection lives until ctx is cancelled
// or the returned Source is closed
func (s *HTTPSubscriber) Subscribe(
	ctx context.Context, streamURL string,
) (Source, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, streamURL, nil,
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if s.token != "" && s.tokenHost != "" && req.URL.Host == s.tokenHost {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxRejectBody))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d, body: %s",
			ErrSubscribeStatus, resp.StatusCode,
			strings.TrimSpace(string(body)))
	}

	return &httpSource{
		body: resp.Body,
		dec:  NewDecoder(resp.Body),
	}, nil
}

func (s *httpSource) Next() (*Event, error) {
	return s.dec.Next()
}

func (s *httpSource) Close() error {
	return s.body.Close()
}
