package reliability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(maxRetries int, retryAll bool) RetryPolicy {
	return RetryPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Millisecond,
		RetryAll:     retryAll,
	}
}

func TestExecute_SucceedsFirstAttempt(t *testing.T) {
	p := fastPolicy(3, true)

	calls := 0
	result, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q, want %q", result, "ok")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecute_ExactAttemptCount(t *testing.T) {
	p := fastPolicy(3, true)

	calls := 0
	failure := errors.New("connection refused")
	_, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", failure
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, failure) {
		t.Errorf("err = %v, want last attempt's error", err)
	}
}

func TestExecute_SucceedsAfterFailures(t *testing.T) {
	p := fastPolicy(3, true)

	calls := 0
	result, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("timeout")
		}
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != "recovered" {
		t.Errorf("result = %q, want %q", result, "recovered")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestExecute_LastErrorUnwrapped(t *testing.T) {
	p := fastPolicy(2, true)

	sentinel := errors.New("boom")
	_, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		return "", sentinel
	})
	if err != sentinel {
		t.Errorf("err = %v, want the identical last error", err)
	}
}

func TestExecute_NonRetryableStopsEarly(t *testing.T) {
	p := fastPolicy(3, false)

	calls := 0
	_, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("invalid API key")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (non-retryable)", calls)
	}
}

func TestExecute_RetryableSignalsWithSelectivePolicy(t *testing.T) {
	p := fastPolicy(2, false)

	for _, msg := range []string{
		"request timeout",
		"connection reset by peer",
		"network unreachable",
		"upstream returned 503",
	} {
		calls := 0
		p.Execute(context.Background(), func(ctx context.Context) (string, error) {
			calls++
			return "", errors.New(msg)
		})
		if calls != 2 {
			t.Errorf("%q: calls = %d, want 2", msg, calls)
		}
	}
}

func TestExecute_ContextCancelledDuringBackoff(t *testing.T) {
	p := RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Hour,
		Multiplier:   2.0,
		MaxDelay:     time.Hour,
		RetryAll:     true,
	}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := p.Execute(ctx, func(ctx context.Context) (string, error) {
			calls++
			return "", errors.New("timeout")
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Execute did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("dial tcp: i/o timeout"), true},
		{errors.New("Connection refused"), true},
		{errors.New("network is down"), true},
		{errors.New("HTTP 500 from upstream"), true},
		{errors.New("status 502"), true},
		{errors.New("503 service unavailable"), true},
		{errors.New("gateway 504"), true},
		{errors.New("invalid API key"), false},
		{errors.New("bad request"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
