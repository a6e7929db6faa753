// Package chflow holds channel helpers that give up when a context ends.
package chflow

import "context"

// Receive returns the next value from ch. ok is false when ctx ends first or
// ch is closed.
func Receive[T any](ctx context.Context, ch <-chan T) (T, bool) {
	var data T
	select {
	case <-ctx.Done():
		return data, false
	case data, ok := <-ch:
		return data, ok
	}
}

// Send blocks until ch accepts data or ctx ends, reporting which happened.
func Send[T any](ctx context.Context, ch chan<- T, data T) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- data:
		return true
	}
}

// TrySend delivers data only when ch has room right now. Callers use it to
// coalesce wake-up signals.
func TrySend[T any](ch chan<- T, data T) bool {
	select {
	case ch <- data:
		return true
	default:
		return false
	}
}
