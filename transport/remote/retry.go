package remote

import (
	"context"
	"log/slog"
	"time"

	syncErrors "github.com/c0deZ3R0/quotesync/errors"
)

// RetryConfig controls retries of retryable fetch errors.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
}

// DefaultRetryConfig makes three attempts starting at 200ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
	}
}

type exponentialBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
}

func (eb *exponentialBackoff) nextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(eb.initialDelay)
	for i := 0; i < attempt; i++ {
		delay *= eb.multiplier
	}
	result := time.Duration(delay)
	if eb.maxDelay > 0 && result > eb.maxDelay {
		result = eb.maxDelay
	}
	return result
}

// withRetry runs operation until it succeeds, fails with a non-retryable
// error, the attempts run out or ctx is done.
func withRetry(ctx context.Context, config RetryConfig, logger *slog.Logger, operation func() error) error {
	if config.MaxAttempts <= 1 {
		return operation()
	}
	multiplier := config.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	eb := &exponentialBackoff{
		initialDelay: config.InitialDelay,
		maxDelay:     config.MaxDelay,
		multiplier:   multiplier,
	}

	err := operation()
	for attempt := 1; err != nil && attempt < config.MaxAttempts; attempt++ {
		if !syncErrors.IsRetryable(err) {
			return err
		}
		delay := eb.nextDelay(attempt - 1)
		logger.Debug("Retrying after retryable error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		err = operation()
	}
	if err != nil && config.MaxAttempts > 1 && syncErrors.IsRetryable(err) {
		logger.Warn("All retry attempts exhausted", "attempts", config.MaxAttempts, "error", err)
	}
	return err
}
