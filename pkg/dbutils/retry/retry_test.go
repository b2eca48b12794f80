package retry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
	"github.com/dbutils-go/broker/pkg/dbutils/retry"
)

func TestDefaultConfig(t *testing.T) {
	cfg := retry.DefaultConfig()

	assert.Equal(t, retry.DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, retry.DefaultInitialDelay, cfg.InitialDelay)
	assert.Equal(t, retry.DefaultMaxDelay, cfg.MaxDelay)
	assert.Equal(t, retry.DefaultBackoffFactor, cfg.BackoffFactor)
	assert.True(t, cfg.RetryableKinds[dberr.KindConnection])
}

func TestConfigChaining(t *testing.T) {
	cfg := retry.DefaultConfig().
		WithMaxRetries(5).
		WithInitialDelay(10 * time.Millisecond).
		WithMaxDelay(1 * time.Second).
		WithBackoffFactor(3)

	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 1*time.Second, cfg.MaxDelay)
	assert.Equal(t, 3.0, cfg.BackoffFactor)
}

func TestValidateInvalidMaxRetries(t *testing.T) {
	err := retry.DefaultConfig().WithMaxRetries(0).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MaxRetries")
}

func TestValidateMaxDelayLessThanInitial(t *testing.T) {
	cfg := retry.Config{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 500 * time.Millisecond, BackoffFactor: 2}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be >= InitialDelay")
}

func TestConfigValidationErrorMessage(t *testing.T) {
	err := retry.ConfigValidationError{Field: "MaxRetries", Message: "must be >= 1"}
	assert.Equal(t, "retry: invalid MaxRetries: must be >= 1", err.Error())
}

func TestDoRetriesOnlyRetryableKind(t *testing.T) {
	cfg := retry.DefaultConfig().WithMaxRetries(3).WithInitialDelay(time.Millisecond).WithMaxDelay(time.Millisecond)

	attempts := 0
	err := retry.Do(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return dberr.Connection("c1", "transient", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, dberr.IsKind(err, dberr.KindConnection))
}

func TestDoStopsImmediatelyOnNonRetryableKind(t *testing.T) {
	cfg := retry.DefaultConfig()

	attempts := 0
	err := retry.Do(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return dberr.Query("SELECT 1", "bad syntax", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	cfg := retry.DefaultConfig().WithInitialDelay(time.Millisecond).WithMaxDelay(time.Millisecond)

	attempts := 0
	err := retry.Do(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return dberr.Connection("c1", "transient", nil)
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}
