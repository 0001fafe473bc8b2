package network

import (
	"maps"
	"time"

	"clangraph/lib/utils/logging"
	"clangraph/lib/utils/retry"
)

// TransientNetworkErrorRetryConfig retries the transient failure class
// (timeouts, connection errors, 5xx, Cloudflare pages) with exponential
// backoff. Each retry is logged as a warning with loggingFields attached.
func TransientNetworkErrorRetryConfig(logger logging.Logger, loggingFields map[string]any) retry.RetryConfig {
	return retry.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   3,
		Jitter:       0.2,
		OnRetry: func(attempt int, err error) {
			fields := map[string]any{
				logging.ATTEMPT: attempt,
				logging.REASON:  string(CategorizeNetworkError(err).Type),
			}
			maps.Copy(fields, loggingFields)
			logger.Warn("TRANSIENT_NETWORK_ERROR", err, fields)
		},
		ShouldRetry: ShouldRetry,
	}
}
