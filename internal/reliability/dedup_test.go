package reliability

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDo_ConcurrentCallersShareOneExecution(t *testing.T) {
	d := NewDeduplicator()

	var executions atomic.Int32
	release := make(chan struct{})

	const callers = 10
	var wg, started sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			results[i], errs[i] = d.Do(context.Background(), "same-key", func(ctx context.Context) (string, error) {
				executions.Add(1)
				<-release
				return "shared result", nil
			})
		}(i)
	}

	// Callers that arrive after the first execution finishes start their own,
	// so hold the operation open until everyone has joined the flight.
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := executions.Load(); got != 1 {
		t.Errorf("executions = %d, want 1", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d: %v", i, errs[i])
		}
		if results[i] != "shared result" {
			t.Errorf("caller %d: result = %q, want %q", i, results[i], "shared result")
		}
	}
}

func TestDo_DistinctKeysRunIndependently(t *testing.T) {
	d := NewDeduplicator()

	var executions atomic.Int32
	var wg sync.WaitGroup
	for _, key := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			d.Do(context.Background(), key, func(ctx context.Context) (string, error) {
				executions.Add(1)
				return key, nil
			})
		}(key)
	}
	wg.Wait()

	if got := executions.Load(); got != 3 {
		t.Errorf("executions = %d, want 3", got)
	}
}

func TestDo_KeyReleasedAfterCompletion(t *testing.T) {
	d := NewDeduplicator()

	calls := 0
	for i := 0; i < 2; i++ {
		_, err := d.Do(context.Background(), "k", func(ctx context.Context) (string, error) {
			calls++
			return "", nil
		})
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (sequential calls are not cached)", calls)
	}
}

func TestDo_ErrorPropagated(t *testing.T) {
	d := NewDeduplicator()

	failure := errors.New("upstream down")
	_, err := d.Do(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "", failure
	})
	if !errors.Is(err, failure) {
		t.Errorf("err = %v, want %v", err, failure)
	}
}

func TestKey_StableAndDistinct(t *testing.T) {
	if Key("model", "prompt") != Key("model", "prompt") {
		t.Error("identical parts must produce identical keys")
	}
	if Key("model", "prompt") == Key("model", "other") {
		t.Error("different parts must produce different keys")
	}
	// The separator keeps part boundaries unambiguous.
	if Key("ab", "c") == Key("a", "bc") {
		t.Error("part boundaries must affect the key")
	}
}
