package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spherical/scan-router/internal/observability"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}
	assert.Equal(t, 100*time.Millisecond, calculateBackoff(0, cfg))
	assert.Equal(t, 400*time.Millisecond, calculateBackoff(2, cfg))
	assert.Equal(t, time.Second, calculateBackoff(5, cfg))
}

func TestRetryWithBackoff(t *testing.T) {
	busy := fmt.Errorf("rename: %w", fs.ErrPermission)

	t.Run("succeeds after busy", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), fastRetry(), observability.Nop(), func() error {
			calls++
			if calls < 3 {
				return busy
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), fastRetry(), observability.Nop(), func() error {
			calls++
			return busy
		})
		assert.ErrorIs(t, err, fs.ErrPermission)
		assert.Equal(t, 4, calls)
	})

	t.Run("permanent error", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), fastRetry(), observability.Nop(), func() error {
			calls++
			return fs.ErrNotExist
		})
		assert.ErrorIs(t, err, fs.ErrNotExist)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		cfg := fastRetry()
		cfg.InitialBackoff = time.Hour
		cfg.MaxBackoff = time.Hour
		err := retryWithBackoff(ctx, cfg, observability.Nop(), func() error { return busy })
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
