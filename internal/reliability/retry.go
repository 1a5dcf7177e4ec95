package reliability

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// RetryPolicy retries an operation with exponential backoff. An operation
// that keeps failing is attempted exactly MaxRetries times and the last
// error is returned unchanged.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration

	// RetryAll controls whether non-retryable errors (per IsRetryable) are
	// retried too. The original behavior retried everything; set false to
	// gate retries on IsRetryable.
	RetryAll bool
}

// DefaultRetryPolicy mirrors the stock configuration: 3 attempts, 1s initial
// delay doubling up to 10s, retrying all errors.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		Multiplier:   2.0,
		MaxDelay:     10 * time.Second,
		RetryAll:     true,
	}
}

// Execute runs op until it succeeds or attempts are exhausted. The backoff
// sleep is context-aware; cancellation aborts the wait and returns ctx.Err().
func (p RetryPolicy) Execute(ctx context.Context, op func(ctx context.Context) (string, error)) (string, error) {
	delay := p.InitialDelay
	var lastErr error

	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt >= p.MaxRetries {
			slog.Error("request failed after retries", "attempts", attempt, "error", err)
			return "", lastErr
		}
		if !p.RetryAll && !IsRetryable(err) {
			slog.Debug("error classified non-retryable, giving up", "error", err)
			return "", lastErr
		}

		slog.Warn("request failed, retrying",
			"attempt", attempt, "max_retries", p.MaxRetries, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}

// retryableSignals are transport-level markers in error text: timeouts,
// connection failures, and 5xx-class statuses.
var retryableSignals = []string{
	"timeout",
	"connection",
	"network",
	"500",
	"502",
	"503",
	"504",
}

// IsRetryable classifies an error as transient by pattern-matching its
// textual description. Informational for callers who want to short-circuit;
// Execute consults it only when RetryAll is false.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, signal := range retryableSignals {
		if strings.Contains(msg, signal) {
			return true
		}
	}
	return false
}
