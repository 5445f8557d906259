package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Jitter bounds: computed delays are scaled by a uniform factor in
// [jitterMin, jitterMin+jitterSpread].
const (
	jitterMin    = 0.8
	jitterSpread = 0.4

	backoffMultiplier = 2.0
)

// ErrInvalidConfig is returned when retry configuration fails validation.
// Validation runs before the first attempt; the operation is never invoked
// with a bad config.
var ErrInvalidConfig = errors.New("retry: invalid config")

// Operation is a fallible unit of work executed under the retry policy.
type Operation func(ctx context.Context) error

// Config controls the retry policy.
type Config struct {
	// Retries is the number of additional attempts after the first.
	// Zero means exactly one attempt. Must be non-negative.
	Retries int

	// BaseDelay is the delay before the first retry. Must be positive.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth. Must be positive.
	MaxDelay time.Duration

	// Jitter scales each delay by a uniform random factor in [0.8, 1.2]
	// to avoid synchronised retry storms across callers.
	Jitter bool

	// OnRetry, if set, is invoked before each inter-attempt sleep with the
	// error that triggered the retry, the attempt number that failed
	// (1-based), and the computed delay. A panicking callback is swallowed;
	// it never aborts the retry loop.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// Validate checks the configuration. Do runs it before the first
// attempt; callers holding a policy long-term can check it up front.
func (c Config) Validate() error {
	if c.Retries < 0 {
		return fmt.Errorf("%w: retries must be non-negative, got %d", ErrInvalidConfig, c.Retries)
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("%w: base delay must be positive, got %v", ErrInvalidConfig, c.BaseDelay)
	}
	if c.MaxDelay <= 0 {
		return fmt.Errorf("%w: max delay must be positive, got %v", ErrInvalidConfig, c.MaxDelay)
	}
	return nil
}

// Do executes op under the retry policy described by cfg.
//
// The operation runs up to cfg.Retries+1 times, strictly sequentially.
// Each failure except the last is followed by a backoff sleep; the final
// failure is returned untransformed.
//
// Parameters:
//   - ctx: Passed through to each invocation of op (sleeps are not cancellable)
//   - cfg: Retry policy configuration (validated before the first attempt)
//   - op: The operation to execute
//
// Returns:
//   - error: nil on the first success, ErrInvalidConfig on bad configuration,
//     otherwise the error from the final attempt
func Do(ctx context.Context, cfg Config, op Operation) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var lastErr error
	attempts := cfg.Retries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		delay := cfg.delayFor(attempt)
		cfg.notify(lastErr, attempt, delay)
		time.Sleep(delay)
	}

	return lastErr
}

// delayFor computes the backoff delay after the given failed attempt (1-based).
func (c Config) delayFor(attempt int) time.Duration {
	delay := float64(c.BaseDelay) * math.Pow(backoffMultiplier, float64(attempt-1))
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}

	if c.Jitter {
		delay *= jitterMin + rand.Float64()*jitterSpread //nolint:gosec // jitter needs no cryptographic randomness

		// Floor the jittered value to whole milliseconds so observed
		// delays are stable values. Without jitter the configured delay
		// passes through exactly, however small.
		ms := math.Floor(delay / float64(time.Millisecond))
		return time.Duration(ms) * time.Millisecond
	}

	return time.Duration(delay)
}

// notify invokes the OnRetry callback, swallowing any panic it raises.
func (c Config) notify(err error, attempt int, delay time.Duration) {
	if c.OnRetry == nil {
		return
	}
	defer func() {
		_ = recover() // A broken observer must not abort the retry loop.
	}()
	c.OnRetry(err, attempt, delay)
}
