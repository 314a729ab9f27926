package util

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RandomizeFactor float64
	RetryableFunc   func(error) bool
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    1 * time.Second,
		MaxDelay:        30 * time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.3,
		RetryableFunc:   IsRetryableError,
	}
}

// IsRetryableError determines if an error is retryable
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// RetryWithBackoff executes fn until it succeeds, returns a non-retryable
// error, or MaxAttempts is reached.
func RetryWithBackoff(ctx context.Context, config *RetryConfig, operation string, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	retryable := config.RetryableFunc
	if retryable == nil {
		retryable = IsRetryableError
	}

	backoff := NewBackoff(config)
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) {
			return fmt.Errorf("%s failed (non-retryable): %w", operation, err)
		}
		if attempt >= config.MaxAttempts {
			break
		}

		if err := Sleep(ctx, backoff.Next()); err != nil {
			return fmt.Errorf("%s cancelled after %d attempts: %w", operation, attempt, err)
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, config.MaxAttempts, lastErr)
}

// Backoff hands out successive jittered, exponentially growing delays.
type Backoff struct {
	mu      sync.Mutex
	config  RetryConfig
	current time.Duration
}

// NewBackoff creates a Backoff from config; nil means DefaultRetryConfig.
func NewBackoff(config *RetryConfig) *Backoff {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &Backoff{config: *config, current: config.InitialDelay}
}

// Next returns the delay to wait before the next attempt and grows the base.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := calculateDelay(b.current, b.config.RandomizeFactor, b.config.MaxDelay)

	multiplier := b.config.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	b.current = time.Duration(float64(b.current) * multiplier)
	if b.config.MaxDelay > 0 && b.current > b.config.MaxDelay {
		b.current = b.config.MaxDelay
	}
	return delay
}

// SetBase replaces the current base delay, e.g. with a server supplied retry hint.
func (b *Backoff) SetBase(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d > 0 {
		b.config.InitialDelay = d
		b.current = d
	}
}

// Reset returns to the initial delay after a successful attempt.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.config.InitialDelay
}

// calculateDelay adds jitter to the delay
func calculateDelay(base time.Duration, randomizeFactor float64, maxDelay time.Duration) time.Duration {
	jitter := float64(base) * randomizeFactor
	minDelay := float64(base) - jitter
	maxJitteredDelay := float64(base) + jitter

	delay := minDelay + (rand.Float64() * (maxJitteredDelay - minDelay))

	if maxDelay > 0 && delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}

	// Ensure minimum delay of 1ms
	if delay < float64(time.Millisecond) {
		delay = float64(time.Millisecond)
	}

	return time.Duration(delay)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
