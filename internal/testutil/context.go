// Package testutil holds helpers shared by tests that need a real reporting store.
package testutil

import (
	"context"
	"testing"
	"time"
)

// Context returns a context that times out after 30 seconds and is canceled
// when the test ends.
func Context(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
