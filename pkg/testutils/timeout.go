package testutils

import (
	"context"
	"testing"
	"time"
)

var (
	SyncTimeout  = 5 * time.Second
	PollInterval = 5 * time.Millisecond
)

// WithTimeout polls f until it returns an empty string, failing the test with the last
// message once SyncTimeout elapses.
func WithTimeout(t *testing.T, f func() string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), SyncTimeout)
	defer cancel()
	lastErr := ""
	for {
		select {
		case <-ctx.Done():
			t.Fatalf("did not reach expected state after %v: %s", SyncTimeout, lastErr)
			return
		case <-time.After(PollInterval):
			lastErr = f()
			if lastErr == "" {
				return
			}
		}
	}
}
