package testutil

import (
	"errors"
	"slices"
	"testing"
	"time"
)

// Timeout bounds every blocking helper in this package.
const Timeout = 2 * time.Second

func Assert[T comparable](t *testing.T, expected T, value T, message string) {
	t.Helper()

	if expected != value {
		t.Fatalf("%s: expected %v got %v", message, expected, value)
	}
}

// AssertSlice compares two slices element by element.
func AssertSlice[T comparable](t *testing.T, expected []T, value []T, message string) {
	t.Helper()

	if !slices.Equal(expected, value) {
		t.Fatalf("%s: expected %v got %v", message, expected, value)
	}
}

func AssertErr(t *testing.T, expected error, value error, message string) {
	t.Helper()

	if expected == nil && value == nil {
		return
	}

	if expected == nil || value == nil || !errors.Is(value, expected) {
		t.Fatalf("%s: expected %v got %v", message, expected, value)
	}
}

func IsNil(t *testing.T, value interface{}, message string) {
	t.Helper()

	if value != nil {
		t.Fatalf("%s: expected nil got %v", message, value)
	}
}

func IsNotNil(t *testing.T, value interface{}, message string) {
	t.Helper()

	if value == nil {
		t.Fatalf("%s: expected not nil got nil", message)
	}
}

// Recv reads one value from ch, failing the test if nothing arrives in time
// or the channel is closed.
func Recv[T any](t *testing.T, ch <-chan T, message string) T {
	t.Helper()

	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed", message)
		}

		return v
	case <-time.After(Timeout):
		t.Fatalf("%s: timed out", message)
	}

	var zero T

	return zero
}

// RecvUntil reads from ch until match returns true and returns the matching value.
func RecvUntil[T any](t *testing.T, ch <-chan T, match func(T) bool, message string) T {
	t.Helper()

	deadline := time.After(Timeout)

	for {
		select {
		case v, ok := <-ch:
			if !ok {
				t.Fatalf("%s: channel closed", message)
			}

			if match(v) {
				return v
			}
		case <-deadline:
			t.Fatalf("%s: timed out", message)
		}
	}
}

// Closed waits for ch to be closed, discarding any values still buffered.
func Closed[T any](t *testing.T, ch <-chan T, message string) {
	t.Helper()

	deadline := time.After(Timeout)

	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("%s: channel was not closed", message)
		}
	}
}

// Silent fails if ch delivers a value within d.
func Silent[T any](t *testing.T, ch <-chan T, d time.Duration, message string) {
	t.Helper()

	select {
	case v, ok := <-ch:
		if ok {
			t.Fatalf("%s: unexpected value %v", message, v)
		}
	case <-time.After(d):
	}
}
