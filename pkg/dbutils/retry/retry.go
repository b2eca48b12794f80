// Package retry implements the exponential-backoff retry handler (spec
// §4.10): a utility the pool and other components wrap transient-failure
// operations in — it is not itself a policy authority.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

// Defaults per spec §4.10.
const (
	DefaultMaxRetries    = 3
	DefaultInitialDelay  = 100 * time.Millisecond
	DefaultMaxDelay      = 5 * time.Second
	DefaultBackoffFactor = 2.0
)

// Config is the retry policy. Zero value is invalid; use
// DefaultConfig().
type Config struct {
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	BackoffFactor  float64
	RetryableKinds map[dberr.Kind]bool
}

// DefaultConfig returns spec §4.10's defaults, retrying only Connection
// errors.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     DefaultMaxRetries,
		InitialDelay:   DefaultInitialDelay,
		MaxDelay:       DefaultMaxDelay,
		BackoffFactor:  DefaultBackoffFactor,
		RetryableKinds: map[dberr.Kind]bool{dberr.KindConnection: true},
	}
}

// WithMaxRetries returns a copy of cfg with MaxRetries replaced.
func (cfg Config) WithMaxRetries(n int) Config {
	cfg.MaxRetries = n
	return cfg
}

// WithInitialDelay returns a copy of cfg with InitialDelay replaced.
func (cfg Config) WithInitialDelay(d time.Duration) Config {
	cfg.InitialDelay = d
	return cfg
}

// WithMaxDelay returns a copy of cfg with MaxDelay replaced.
func (cfg Config) WithMaxDelay(d time.Duration) Config {
	cfg.MaxDelay = d
	return cfg
}

// WithBackoffFactor returns a copy of cfg with BackoffFactor replaced.
func (cfg Config) WithBackoffFactor(f float64) Config {
	cfg.BackoffFactor = f
	return cfg
}

// WithRetryableKind registers an additional retryable kind, returning a
// copy of cfg.
func (cfg Config) WithRetryableKind(kind dberr.Kind) Config {
	kinds := make(map[dberr.Kind]bool, len(cfg.RetryableKinds)+1)
	for k := range cfg.RetryableKinds {
		kinds[k] = true
	}

	kinds[kind] = true
	cfg.RetryableKinds = kinds

	return cfg
}

// ConfigValidationError reports a single invalid field.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("retry: invalid %s: %s", e.Field, e.Message)
}

// Validate checks the policy's field constraints.
func (cfg Config) Validate() error {
	if cfg.MaxRetries < 1 {
		return ConfigValidationError{"MaxRetries", "must be >= 1"}
	}

	if cfg.InitialDelay <= 0 {
		return ConfigValidationError{"InitialDelay", "must be > 0"}
	}

	if cfg.MaxDelay <= 0 {
		return ConfigValidationError{"MaxDelay", "must be > 0"}
	}

	if cfg.MaxDelay < cfg.InitialDelay {
		return ConfigValidationError{"MaxDelay", "must be >= InitialDelay"}
	}

	if cfg.BackoffFactor <= 0 {
		return ConfigValidationError{"BackoffFactor", "must be > 0"}
	}

	return nil
}

// delayFor returns the delay before retry n (0-indexed: delayFor(0) is
// the wait before the second attempt), per spec §4.10:
// min(initial * factor^n, max_delay).
func (cfg Config) delayFor(n int) time.Duration {
	d := float64(cfg.InitialDelay)
	for i := 0; i < n; i++ {
		d *= cfg.BackoffFactor
	}

	if d > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}

	return time.Duration(d)
}

func (cfg Config) retryable(err error) bool {
	kind, ok := dberr.As(err)
	if !ok {
		return false
	}

	return cfg.RetryableKinds[kind]
}

// Op is the nullary callable the handler wraps.
type Op func(ctx context.Context) error

// Do runs op, retrying per cfg until it succeeds, a non-retryable error
// is returned, or the retry budget is exhausted — in which case the last
// error is surfaced unchanged (spec §4.10).
func Do(ctx context.Context, cfg Config, op Op) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.delayFor(attempt - 1)):
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if !cfg.retryable(err) {
			return err
		}
	}

	return lastErr
}
