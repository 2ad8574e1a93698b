package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/civicaid/regsearch/internal/embed"
)

// RetryConfig configures retry behavior for external provider calls.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for embedding and
// extraction API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups transient error substrings by category,
// matched case-insensitively against err.Error().
//
// NOTE: string matching because the provider SDKs do not expose typed
// errors for transient failures.
var retryablePatterns = [][]string{
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

// retryableError reports whether err is transient and worth retrying.
// Rate-limit signals are always retryable.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	if embed.IsRateLimited(err) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, sub := range group {
			if strings.Contains(errStr, sub) {
				return true
			}
		}
	}
	return false
}

// withRetry runs fn with exponential backoff on transient failures.
// Non-retryable errors fail immediately; the context is honored while
// waiting between attempts.
func withRetry(ctx context.Context, logger *slog.Logger, cfg RetryConfig, op string, fn func(context.Context) error) error {
	var lastErr error
	delay := cfg.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Debug("operation succeeded after retry",
					"operation", op,
					"attempts", attempt+1,
					"elapsed", time.Since(start))
			}
			return nil
		}

		lastErr = err

		if !retryableError(err) {
			return fmt.Errorf("%s: %w", op, err)
		}

		// Last attempt, don't sleep.
		if attempt == cfg.MaxRetries {
			break
		}

		logger.Debug("retrying after transient error",
			"operation", op,
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, cfg.MaxInterval)
		}
	}

	return fmt.Errorf("%s after %d retries (elapsed: %v): %w",
		op, cfg.MaxRetries, time.Since(start), lastErr)
}
