package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config holds the parameters for the retry strategy.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *slog.Logger
}

// Do executes fn with exponential back-off until it succeeds, the attempt
// cap is reached, or ctx is cancelled.
func Do(ctx context.Context, cfg Config, operation string, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < cfg.MaxAttempts {
			cfg.Logger.Warn("operation failed, retrying",
				"operation", operation,
				"attempt", attempt,
				"max_attempts", cfg.MaxAttempts,
				"delay", delay,
				"error", lastErr)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, cfg.MaxAttempts, lastErr)
}
