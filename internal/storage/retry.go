package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/util"
)

// retryConfig holds configuration for MongoDB retry logic
type retryConfig struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
}

// defaultRetryConfig provides default retry configuration
var defaultRetryConfig = retryConfig{
	maxAttempts:  constants.MaxRetryAttempts,
	initialDelay: constants.InitialRetryDelay,
	maxDelay:     constants.MaxRetryDelay,
	multiplier:   constants.RetryMultiplier,
}

// transientErrorMarkers are substrings of network and driver errors worth retrying.
var transientErrorMarkers = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"i/o timeout",
	"EOF",
	"server selection timeout",
	"no reachable servers",
	"connection pool",
	"socket",
}

// isRetryableError checks if an error is retryable (transient)
func isRetryableError(err error) bool {
	// No else needed: early return pattern (guard clause)
	if err == nil {
		return false
	}
	return util.ContainsAny(err.Error(), transientErrorMarkers)
}

// retryOperation executes fn with exponential backoff while it fails with transient errors.
func retryOperation(ctx context.Context, logger *golog.Logger, cfg retryConfig, operation string, fn func() error) error {
	var lastErr error
	delay := cfg.initialDelay

	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		err := fn()
		// No else needed: early return pattern (guard clause - success case)
		if err == nil {
			return nil
		}

		// No else needed: early return pattern (guard clause - non-retryable error)
		if !isRetryableError(err) {
			return err
		}

		lastErr = err

		// No else needed: optional operation (only retry if attempts remain)
		if attempt < cfg.maxAttempts {
			logger.Warn("MongoDB operation failed, retrying",
				"operation", operation,
				"attempt", attempt,
				"max_attempts", cfg.maxAttempts,
				"delay", delay,
				"error", err)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("operation cancelled during retry: %w", ctx.Err())
			}

			delay = time.Duration(float64(delay) * cfg.multiplier)
			// No else needed: optional operation (only cap if exceeds max)
			if delay > cfg.maxDelay {
				delay = cfg.maxDelay
			}
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.maxAttempts, lastErr)
}
