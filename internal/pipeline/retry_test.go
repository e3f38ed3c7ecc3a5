package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgallion1/alertledger/internal/ledger"
)

var fastRetry = RetryPolicy{Attempts: 3, Base: time.Millisecond, Max: 2 * time.Millisecond}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{Attempts: 3, Base: time.Second, Max: 30 * time.Second}
	tests := []struct {
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{0, time.Second, 1500 * time.Millisecond},
		{1, 2 * time.Second, 3 * time.Second},
		{10, 30 * time.Second, 45 * time.Second},
	}
	for _, tc := range tests {
		for j := 0; j < 20; j++ {
			d := p.Delay(tc.attempt)
			if d < tc.min || d >= tc.max {
				t.Fatalf("attempt %d: delay %s outside [%s, %s)", tc.attempt, d, tc.min, tc.max)
			}
		}
	}
}

func TestRetryPolicy_RetriesTransientErrors(t *testing.T) {
	calls := 0
	err := fastRetry.Do(context.Background(), func(int) error {
		calls++
		if calls < 3 {
			return &ledger.RetryableError{StatusCode: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryPolicy_GivesUp(t *testing.T) {
	calls := 0
	err := fastRetry.Do(context.Background(), func(int) error {
		calls++
		return &ledger.RetryableError{StatusCode: 429}
	})
	if !IsRetryable(err) {
		t.Errorf("expected last retryable error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryPolicy_StopsOnPermanentError(t *testing.T) {
	calls := 0
	perm := errors.New("bad request")
	err := fastRetry.Do(context.Background(), func(int) error {
		calls++
		return perm
	})
	if !errors.Is(err, perm) || calls != 1 {
		t.Errorf("expected one call returning perm, got %d calls, %v", calls, err)
	}
}

func TestRetryPolicy_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := RetryPolicy{Attempts: 3, Base: time.Hour, Max: time.Hour}
	err := slow.Do(ctx, func(int) error {
		cancel()
		return &ledger.RetryableError{StatusCode: 503}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
