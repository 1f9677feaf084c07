package wait

import (
	"testing"
	"time"
)

type (
	// Wait reads values from a channel until a predicate is satisfied
	Wait[T any] struct {
		t       *testing.T
		ch      <-chan T
		timeout time.Duration
	}

	Predicate[T any] func(T) bool
)

const DefaultTimeout = time.Second * 5

func On[T any](t *testing.T, ch <-chan T) *Wait[T] {
	return &Wait[T]{
		t:       t,
		ch:      ch,
		timeout: DefaultTimeout,
	}
}

func (w *Wait[T]) WithTimeout(timeout time.Duration) *Wait[T] {
	res := *w
	res.timeout = timeout
	return &res
}

// For waits for count matching values and returns them in arrival order
func (w *Wait[T]) For(count int, pred Predicate[T]) []T {
	w.t.Helper()

	deadline := time.NewTimer(w.timeout)
	defer deadline.Stop()

	res := make([]T, 0, count)
	for len(res) < count {
		select {
		case v, ok := <-w.ch:
			if !ok {
				w.t.Fatalf(
					"channel closed before receiving %d values", count,
				)
			}
			if pred(v) {
				res = append(res, v)
			}
		case <-deadline.C:
			w.t.Fatalf("timeout waiting for %d values", count)
		}
	}
	return res
}

// ForOne waits for a single matching value
func (w *Wait[T]) ForOne(pred Predicate[T]) T {
	w.t.Helper()
	return w.For(1, pred)[0]
}

// Any matches every value
func Any[T any](T) bool {
	return true
}

// And composes predicates and returns true when all match
func And[T any](preds ...Predicate[T]) Predicate[T] {
	return func(v T) bool {
		for _, p := range preds {
			if !p(v) {
				return false
			}
		}
		return true
	}
}
