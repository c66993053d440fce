package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/dominica-news/feedback/pkg/feedback"
	"github.com/dominica-news/feedback/pkg/logging"
)

// Config holds configuration for retry logic
type Config struct {
	// MaxRetries is the number of retries after the initial attempt,
	// so an operation runs at most MaxRetries+1 times
	MaxRetries int
	// BaseDelay is the delay before the first retry; retry k waits
	// BaseDelay * 2^(k-1)
	BaseDelay time.Duration
	// MaxDelay caps the backoff delay
	MaxDelay time.Duration
	// Jitter adds up to 10% randomness to each delay. Off by default;
	// the reference behavior is plain exponential backoff.
	Jitter bool
	// Offline feeds the classifier when retries are exhausted
	Offline func() bool
	// Sink receives the classified descriptor on exhaustion
	Sink feedback.Sink
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	// OnExhausted is called once when all attempts have failed,
	// after classification. The report pipeline hooks in here.
	OnExhausted func(err error, desc feedback.Descriptor)
}

// DefaultConfig returns the default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// Executor runs operations with retry and exponential backoff. Attempts
// of one call are strictly sequential; the next attempt starts only
// after the previous one settled and its backoff delay elapsed.
type Executor struct {
	config Config
	logger *logging.Logger
}

// NewExecutor creates an executor with the given configuration
func NewExecutor(config Config) *Executor {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 1 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}

	return &Executor{
		config: config,
		logger: logging.GetLogger(),
	}
}

// Do executes the operation, retrying on failure until the attempt
// budget is exhausted. On exhaustion the last error is classified,
// surfaced through the sink if one is configured, and returned wrapped.
func (e *Executor) Do(ctx context.Context, operation func(context.Context) error) error {
	totalAttempts := e.config.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= totalAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 1 {
				e.logger.Info("Operation succeeded after retry",
					"attempt", attempt,
					"total_attempts", totalAttempts,
				)
			}
			return nil
		}

		lastErr = err

		if attempt == totalAttempts {
			break
		}

		delay := e.delayBeforeRetry(attempt)

		e.logger.Warn("Operation failed, retrying",
			"error", err.Error(),
			"attempt", attempt,
			"max_attempts", totalAttempts,
			"delay", delay,
		)

		if e.config.OnRetry != nil {
			e.config.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	desc := feedback.Classify(lastErr, e.offline())

	e.logger.Error("Operation failed after all retry attempts",
		"error", lastErr.Error(),
		"attempts", totalAttempts,
		"category", string(desc.Category),
	)

	if e.config.Sink != nil {
		e.config.Sink.Error(desc, feedback.Options{})
	}
	if e.config.OnExhausted != nil {
		e.config.OnExhausted(lastErr, desc)
	}

	return fmt.Errorf("operation failed after %d attempts: %w", totalAttempts, lastErr)
}

// DoWithResult executes an operation that returns a result
func (e *Executor) DoWithResult(ctx context.Context, operation func(context.Context) (interface{}, error)) (interface{}, error) {
	var result interface{}
	err := e.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = operation(ctx)
		return err
	})
	return result, err
}

// DoWithFallback returns fallback instead of an error when the
// operation fails terminally. The failure still goes through the
// classification and reporting pipeline as a side effect.
func (e *Executor) DoWithFallback(ctx context.Context, operation func(context.Context) (interface{}, error), fallback interface{}) interface{} {
	result, err := e.DoWithResult(ctx, operation)
	if err != nil {
		e.logger.Warn("Operation degraded to fallback value",
			"error", err.Error(),
		)
		return fallback
	}
	return result
}

func (e *Executor) delayBeforeRetry(attempt int) time.Duration {
	delay := float64(e.config.BaseDelay) * math.Pow(2, float64(attempt-1))

	if delay > float64(e.config.MaxDelay) {
		delay = float64(e.config.MaxDelay)
	}

	if e.config.Jitter {
		delay += rand.Float64() * 0.1 * delay
	}

	return time.Duration(delay)
}

func (e *Executor) offline() bool {
	if e.config.Offline == nil {
		return false
	}
	return e.config.Offline()
}

// WithRetry executes an operation with an ad hoc retry budget
func WithRetry(ctx context.Context, operation func(context.Context) error, maxRetries int, baseDelay time.Duration) error {
	config := DefaultConfig()
	config.MaxRetries = maxRetries
	config.BaseDelay = baseDelay
	return NewExecutor(config).Do(ctx, operation)
}

// Retry executes an operation with the default configuration
func Retry(ctx context.Context, operation func(context.Context) error) error {
	return NewExecutor(DefaultConfig()).Do(ctx, operation)
}
