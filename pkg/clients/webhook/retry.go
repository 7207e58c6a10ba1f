package webhook

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

// RetryConfig configures redelivery of failed sends. All attempts share the
// client's send timeout.
type RetryConfig struct {
	// MaxAttempts counts the first try. 1 disables retries.
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      200 * time.Millisecond,
		MaxDelay:          2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// retryPolicy implements exponential backoff
type retryPolicy struct {
	config RetryConfig
}

func newRetryPolicy(config RetryConfig) retryPolicy {
	def := DefaultRetryConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = def.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	if config.BackoffMultiplier <= 1.0 {
		config.BackoffMultiplier = def.BackoffMultiplier
	}
	return retryPolicy{config: config}
}

// shouldRetry reports whether another attempt may follow the given number
// of failed ones. Rejections (4xx other than 429) are final.
func (p retryPolicy) shouldRetry(attempts int, err error) bool {
	if err == nil || attempts >= p.config.MaxAttempts {
		return false
	}
	var status *statusError
	if errors.As(err, &status) {
		return status.code == http.StatusTooManyRequests || status.code >= 500
	}
	return true
}

// nextDelay is initialDelay * multiplier^(attempts-1), capped at MaxDelay.
func (p retryPolicy) nextDelay(attempts int) time.Duration {
	if attempts <= 1 {
		return p.config.InitialDelay
	}
	delay := float64(p.config.InitialDelay) * math.Pow(p.config.BackoffMultiplier, float64(attempts-1))
	if delay > float64(p.config.MaxDelay) {
		return p.config.MaxDelay
	}
	return time.Duration(delay)
}

// do runs fn until it succeeds, the policy gives up or ctx ends.
func (p retryPolicy) do(ctx context.Context, fn func(context.Context) error) error {
	for attempts := 1; ; attempts++ {
		err := fn(ctx)
		if !p.shouldRetry(attempts, err) {
			if err != nil && attempts > 1 {
				return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
			}
			return err
		}

		timer := time.NewTimer(p.nextDelay(attempts))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted after %d attempts: %w", attempts, errors.Join(err, ctx.Err()))
		case <-timer.C:
		}
	}
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("webhook returned non-2xx status: %d", e.code)
}
