package tests

import (
	"testing"
	"time"
)

// WaitCondition reports whether fn eventually returned true,
// checking immediately and then every checkEvery amount,
// until waitFor has elapsed, at which point it returns false.
func WaitCondition(waitFor, checkEvery time.Duration, fn func() bool) bool {
	deadline := time.Now().Add(waitFor)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(checkEvery)
	}
	return false
}

// AssertEventually fails the test if fn does not report true within 5s.
func AssertEventually(t *testing.T, what string, fn func() bool) {
	t.Helper()
	if !WaitCondition(5*time.Second, 5*time.Millisecond, fn) {
		t.Fatalf("timed out waiting for %s", what)
	}
}

// AssertClosed fails the test if ch is not closed (or readable) within 5s.
func AssertClosed(t *testing.T, what string, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}
