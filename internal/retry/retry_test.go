package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errFlaky = errors.New("flaky")
	errFatal = errors.New("fatal")
)

func isFlaky(err error) bool { return errors.Is(err, errFlaky) }

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	var waits []time.Duration
	policy := Policy{
		MaxAttempts: 4,
		Backoff:     Linear(time.Nanosecond),
		Retryable:   isFlaky,
		OnRetry:     func(_ int, wait time.Duration, _ error) { waits = append(waits, wait) },
	}

	got, err := Do(context.Background(), policy, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errFlaky
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("Do() = %q, want ok", got)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
	if len(waits) != 2 || waits[0] != time.Nanosecond || waits[1] != 2*time.Nanosecond {
		t.Errorf("Expected linear waits [1ns 2ns], got %v", waits)
	}
}

func TestDo_StopsAtMaxAttempts(t *testing.T) {
	calls := 0
	policy := Policy{MaxAttempts: 4, Retryable: isFlaky}

	_, err := Do(context.Background(), policy, func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})
	if calls != 4 {
		t.Errorf("Expected 4 calls, got %d", calls)
	}
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("Expected ErrExhausted, got %v", err)
	}
	if !errors.Is(err, errFlaky) {
		t.Errorf("Expected last error to be wrapped, got %v", err)
	}
}

func TestDo_DoesNotRetryFatalErrors(t *testing.T) {
	calls := 0
	policy := Policy{MaxAttempts: 5, Retryable: isFlaky}

	_, err := Do(context.Background(), policy, func(context.Context) (int, error) {
		calls++
		return 0, errFatal
	})
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if !errors.Is(err, errFatal) || errors.Is(err, ErrExhausted) {
		t.Errorf("Expected the fatal error unchanged, got %v", err)
	}
}

func TestDo_ZeroPolicyMakesOneAttempt(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if !errors.Is(err, errFlaky) {
		t.Errorf("Expected errFlaky, got %v", err)
	}
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{
		MaxAttempts: 3,
		Backoff:     Linear(time.Hour),
		Retryable:   isFlaky,
		OnRetry:     func(int, time.Duration, error) { cancel() },
	}

	_, err := Do(ctx, policy, func(context.Context) (int, error) {
		return 0, errFlaky
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSleep(t *testing.T) {
	if err := Sleep(context.Background(), 0); err != nil {
		t.Errorf("Sleep(0) = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep on cancelled context = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep did not return promptly on cancellation")
	}
}
