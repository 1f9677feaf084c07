package client

import (
	"log/slog"
	"time"

	"github.com/kode4food/flowrelay/pkg/log"
)

type (
	// Observer is notified of retry progress. Observers must not block and
	// have no influence on retry decisions
	Observer interface {
		AttemptStarted(RetryState)
		AttemptFailed(RetryState)
		DelayScheduled(RetryState, time.Duration)
	}

	// Observers fans notifications out to each contained Observer
	Observers []Observer

	// LogObserver reports retry progress through the default slog logger
	LogObserver struct{}
)

var (
	_ Observer = Observers(nil)
	_ Observer = LogObserver{}
)

func (o Observers) AttemptStarted(s RetryState) {
	for _, ob := range o {
		ob.AttemptStarted(s)
	}
}

func (o Observers) AttemptFailed(s RetryState) {
	for _, ob := range o {
		ob.AttemptFailed(s)
	}
}

func (o Observers) DelayScheduled(s RetryState, d time.Duration) {
	for _, ob := range o {
		ob.DelayScheduled(s, d)
	}
}

func (LogObserver) AttemptStarted(s RetryState) {
	slog.Debug("Upstream attempt started",
		log.Attempt(s.Attempt, s.MaxAttempts))
}

func (LogObserver) AttemptFailed(s RetryState) {
	slog.Warn("Upstream attempt failed",
		log.Attempt(s.Attempt, s.MaxAttempts),
		log.Error(s.LastError))
}

func (LogObserver) DelayScheduled(s RetryState, d time.Duration) {
	slog.Info("Retrying upstream request",
		log.Attempt(s.Attempt, s.MaxAttempts),
		log.Delay(d))
}
