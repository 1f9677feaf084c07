package assert

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/flowrelay/internal/client"
	"github.com/kode4food/flowrelay/internal/config"
	"github.com/kode4food/flowrelay/internal/stream"
)

// Wrapper wraps testify assertions with relay-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
	Require *assert.Assertions
}

// DefaultRetryInterval is the default polling interval for Eventually checks
const DefaultRetryInterval = 10 * time.Millisecond

// New creates a new test assertion wrapper with both assert and require from
// testify plus relay-specific helpers
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
		Require:    assert.New(t),
	}
}

// ConfigValid asserts that a configuration is valid
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
	w.True(cfg.APIPort > 0 && cfg.APIPort <= 65535)
	w.True(cfg.RequestTimeout > 0)
	w.GreaterOrEqual(cfg.MaxAttempts, 1)
}

// ConfigInvalid asserts that a configuration is invalid
func (w *Wrapper) ConfigInvalid(cfg *config.Config, contains string) {
	w.Helper()
	err := cfg.Validate()
	w.Error(err)
	if err != nil && contains != "" {
		w.Contains(err.Error(), contains)
	}
}

// HTTPStatus asserts that err is an upstream HTTP error with the status
func (w *Wrapper) HTTPStatus(err error, status int) {
	w.Helper()
	var he *client.HTTPError
	if w.True(errors.As(err, &he), "expected HTTPError, got %v", err) {
		w.Equal(status, he.Status)
	}
}

// RetriesExhausted asserts that err reports exhaustion after the given
// number of attempts and returns the last underlying error
func (w *Wrapper) RetriesExhausted(err error, attempts int) error {
	w.Helper()
	var re *client.RetriesExhaustedError
	if !w.True(errors.As(err, &re), "expected exhaustion, got %v", err) {
		return nil
	}
	w.Equal(attempts, re.Attempts)
	w.ErrorIs(err, client.ErrRetriesExhausted)
	return re.LastError
}

// SessionState asserts the current state of a stream session
func (w *Wrapper) SessionState(s *stream.Session, expected stream.State) {
	w.Helper()
	w.Equal(expected, s.State())
}

// SessionDone waits for a stream session to deliver its terminal callback
// and release its connection
func (w *Wrapper) SessionDone(s *stream.Session, timeout time.Duration) {
	w.Helper()
	select {
	case <-s.Done():
	case <-time.After(timeout):
		w.FailNow("stream session did not finish", "url: %s", s.URL())
	}
}

// Eventually runs a condition repeatedly until it passes or times out
func (w *Wrapper) Eventually(
	condition func() bool, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(DefaultRetryInterval)
	}
	w.Fail(msg, args...)
}
