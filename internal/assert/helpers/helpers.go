package helpers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/flowrelay/internal/config"
	"github.com/kode4food/flowrelay/pkg/api"
)

const TestToken = "test-token"

// NewTestConfig creates a valid default configuration with debug logging
// enabled and a test application token
func NewTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LogLevel = "debug"
	cfg.Token = TestToken
	cfg.RetryBaseDelay = 0
	return cfg
}

// NewTestRunRequest creates a run request against the default test flow
func NewTestRunRequest(input string, stream bool) *api.RunRequest {
	cfg := NewTestConfig()
	return api.NewRunRequest(
		cfg.FlowID, cfg.CollectionID, input, "", "", stream, cfg.Tweaks,
	)
}

// SSEHandler serves each frame verbatim as a text/event-stream body,
// flushing after every frame
func SSEHandler(t *testing.T, frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, ok := w.(http.Flusher)
		assert.True(t, ok)
		for _, f := range frames {
			if _, err := w.Write([]byte(f)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HoldingSSEHandler writes the frames and then keeps the connection open
// until the client goes away
func HoldingSSEHandler(t *testing.T, frames ...string) http.HandlerFunc {
	write := SSEHandler(t, frames...)
	return func(w http.ResponseWriter, r *http.Request) {
		write(w, r)
		<-r.Context().Done()
	}
}
