package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominica-news/feedback/pkg/feedback"
)

func TestExecutor_SucceedsFirstAttempt(t *testing.T) {
	executor := NewExecutor(Config{MaxRetries: 3, BaseDelay: 10 * time.Millisecond})

	attempts := 0
	err := executor.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestExecutor_SucceedsAfterRetries(t *testing.T) {
	executor := NewExecutor(Config{MaxRetries: 3, BaseDelay: 10 * time.Millisecond})

	attempts := 0
	err := executor.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary failure")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestExecutor_ExhaustsAttemptBudget(t *testing.T) {
	executor := NewExecutor(Config{MaxRetries: 3, BaseDelay: 10 * time.Millisecond})

	attempts := 0
	err := executor.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("persistent failure")
	})

	require.Error(t, err)
	assert.Equal(t, 4, attempts)
	assert.Contains(t, err.Error(), "after 4 attempts")
	assert.Contains(t, err.Error(), "persistent failure")
}

func TestExecutor_ExponentialBackoff(t *testing.T) {
	executor := NewExecutor(Config{MaxRetries: 3, BaseDelay: 100 * time.Millisecond})

	start := time.Now()
	err := executor.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("always fails")
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	// Delays are 100ms, 200ms, 400ms between the four attempts
	assert.GreaterOrEqual(t, elapsed, 700*time.Millisecond)
	assert.Less(t, elapsed, 1500*time.Millisecond)
}

func TestExecutor_MaxDelayCap(t *testing.T) {
	executor := NewExecutor(Config{
		MaxRetries: 10,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   40 * time.Millisecond,
	})

	for attempt := 1; attempt <= 10; attempt++ {
		delay := executor.delayBeforeRetry(attempt)
		assert.LessOrEqual(t, delay, 40*time.Millisecond)
	}
	assert.Equal(t, 10*time.Millisecond, executor.delayBeforeRetry(1))
	assert.Equal(t, 20*time.Millisecond, executor.delayBeforeRetry(2))
	assert.Equal(t, 40*time.Millisecond, executor.delayBeforeRetry(3))
	assert.Equal(t, 40*time.Millisecond, executor.delayBeforeRetry(4))
}

func TestExecutor_OnRetryCallback(t *testing.T) {
	var mu sync.Mutex
	var retries []int

	executor := NewExecutor(Config{
		MaxRetries: 2,
		BaseDelay:  10 * time.Millisecond,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			mu.Lock()
			retries = append(retries, attempt)
			mu.Unlock()
		},
	})

	err := executor.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("fails")
	})

	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestExecutor_ContextCancellation(t *testing.T) {
	executor := NewExecutor(Config{MaxRetries: 5, BaseDelay: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	go func() {
		time.Sleep(75 * time.Millisecond)
		cancel()
	}()

	err := executor.Do(ctx, func(ctx context.Context) error {
		attempts++
		return errors.New("fails")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	// Cancellation lands during backoff, well before the budget runs out
	assert.LessOrEqual(t, attempts, 3)
}

func TestExecutor_ContextTimeout(t *testing.T) {
	executor := NewExecutor(Config{MaxRetries: 10, BaseDelay: 20 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := executor.Do(ctx, func(ctx context.Context) error {
		return errors.New("fails")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecutor_ExhaustionNotifiesSink(t *testing.T) {
	sink := feedback.NewToastCenter(nil)
	defer sink.Close()

	var exhaustedErr error
	var exhaustedDesc feedback.Descriptor

	executor := NewExecutor(Config{
		MaxRetries: 1,
		BaseDelay:  5 * time.Millisecond,
		Sink:       sink,
		OnExhausted: func(err error, desc feedback.Descriptor) {
			exhaustedErr = err
			exhaustedDesc = desc
		},
	})

	err := executor.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("HTTP 500: Internal Server Error")
	})

	require.Error(t, err)
	require.Error(t, exhaustedErr)
	assert.Equal(t, feedback.CategoryServerError, exhaustedDesc.Category)
	require.Len(t, sink.Active(), 1)
	assert.Equal(t, feedback.LevelError, sink.Active()[0].Level)
}

func TestExecutor_ExhaustionUsesOfflineState(t *testing.T) {
	var desc feedback.Descriptor

	executor := NewExecutor(Config{
		MaxRetries: 0,
		BaseDelay:  5 * time.Millisecond,
		Offline:    func() bool { return true },
		OnExhausted: func(err error, d feedback.Descriptor) {
			desc = d
		},
	})

	err := executor.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("database query failed")
	})

	require.Error(t, err)
	assert.Equal(t, feedback.CategoryConnection, desc.Category)
}

func TestExecutor_DoWithResult(t *testing.T) {
	executor := NewExecutor(Config{MaxRetries: 2, BaseDelay: 5 * time.Millisecond})

	attempts := 0
	result, err := executor.DoWithResult(context.Background(), func(ctx context.Context) (interface{}, error) {
		attempts++
		if attempts < 2 {
			return nil, errors.New("not yet")
		}
		return "article-42", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "article-42", result)
	assert.Equal(t, 2, attempts)
}

func TestExecutor_DoWithFallback(t *testing.T) {
	executor := NewExecutor(Config{MaxRetries: 1, BaseDelay: 5 * time.Millisecond})

	result := executor.DoWithFallback(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("fails")
	}, []string{})

	assert.Equal(t, []string{}, result)
}

func TestWithRetry(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("fails")
	}, 1, 5*time.Millisecond)

	require.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestNewExecutor_NormalizesConfig(t *testing.T) {
	executor := NewExecutor(Config{MaxRetries: -1})
	assert.Equal(t, 0, executor.config.MaxRetries)
	assert.Equal(t, 1*time.Second, executor.config.BaseDelay)
	assert.Equal(t, 30*time.Second, executor.config.MaxDelay)
}
