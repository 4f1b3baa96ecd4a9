package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConflict = errors.New("Conflict on update")

func TestDo(t *testing.T) {
	cfg := Config{MaxRetries: 4, InitialBackoff: time.Millisecond}

	t.Run("first call succeeds", func(t *testing.T) {
		calls := 0
		require.NoError(t, Do(context.Background(), cfg, func() error { calls++; return nil }, nil))
		assert.Equal(t, 1, calls)
	})

	t.Run("transient errors are retried", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), cfg, func() error {
			calls++
			if calls < 3 {
				return errConflict
			}
			return nil
		}, func(err error) bool { return errors.Is(err, errConflict) })
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhaustion wraps the last error", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), cfg, func() error { calls++; return errConflict }, nil)
		require.ErrorIs(t, err, errConflict)
		assert.Contains(t, err.Error(), "failed after 4 retries")
		assert.Equal(t, 4, calls)
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		permanent := errors.New("duplicate key")
		calls := 0
		err := Do(context.Background(), cfg, func() error { calls++; return permanent },
			func(err error) bool { return errors.Is(err, errConflict) })
		assert.Same(t, permanent, err)
		assert.Equal(t, 1, calls)
	})
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Config{MaxRetries: 3, InitialBackoff: time.Hour}, func() error {
		calls++
		cancel()
		return errConflict
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestConfig_Backoff(t *testing.T) {
	cfg := Config{MaxRetries: 10, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 50 * time.Millisecond}
	assert.Zero(t, cfg.Backoff(0))
	assert.Equal(t, 10*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 20*time.Millisecond, cfg.Backoff(2))
	assert.Equal(t, 40*time.Millisecond, cfg.Backoff(3))
	assert.Equal(t, 50*time.Millisecond, cfg.Backoff(4))

	cfg.Jitter = 0.5
	assert.Equal(t, 60*time.Millisecond, cfg.Backoff(4))
}
