// Package retry provides a generic retry wrapper with exponential backoff.
//
// It is the single resilience primitive for transient failures in the core:
// adapter command execution, broker publishes, and persistence calls are all
// wrapped the same way.
//
//	err := retry.Do(ctx, retry.Config{
//	    Retries:   3,
//	    BaseDelay: 100 * time.Millisecond,
//	    MaxDelay:  2 * time.Second,
//	    Jitter:    true,
//	}, func(ctx context.Context) error {
//	    return adapter.ExecuteCommand(ctx, deviceID, cmd)
//	})
//
// Attempts run strictly sequentially. The delay before attempt n (n >= 2) is
// min(BaseDelay * 2^(n-2), MaxDelay), optionally scaled by a uniform jitter
// factor in [0.8, 1.2]. When every attempt has failed, the last error is
// returned unchanged so callers can errors.Is/As against the underlying
// failure.
//
// Backoff sleeps are deliberately not cancellable: a caller that wants to
// abandon a sequence must let it run to exhaustion. The context is passed
// through to the operation only.
package retry
