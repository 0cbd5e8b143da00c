package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunBoundedPreservesOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	// Later items finish first.
	worker := func(_ context.Context, n int) int {
		time.Sleep(time.Duration(len(items)-n) * 5 * time.Millisecond)
		return n * 10
	}

	for _, limit := range []int{1, 3, 6, 20} {
		got, err := RunBounded(context.Background(), items, limit, worker)
		if err != nil {
			t.Fatalf("limit %d: %v", limit, err)
		}
		for i, n := range items {
			if got[i] != n*10 {
				t.Fatalf("limit %d: results[%d] = %d, want %d", limit, i, got[i], n*10)
			}
		}
	}
}

func TestRunBoundedInvalidConcurrency(t *testing.T) {
	for _, limit := range []int{0, -1} {
		_, err := RunBounded(context.Background(), []int{1}, limit, func(_ context.Context, n int) int { return n })
		if !errors.Is(err, ErrInvalidConcurrency) {
			t.Fatalf("limit %d: err = %v, want ErrInvalidConcurrency", limit, err)
		}
	}
}

func TestRunBoundedEmpty(t *testing.T) {
	got, err := RunBounded(context.Background(), nil, 2, func(_ context.Context, n int) int { return n })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}

func TestRunBoundedIsolatesPanics(t *testing.T) {
	items := []string{"a", "boom", "c"}
	got, err := RunBounded(context.Background(), items, 2, func(_ context.Context, s string) string {
		if s == "boom" {
			panic("worker failed")
		}
		return s + "!"
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a!", "", "c!"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("results[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRunBoundedLimitsConcurrency(t *testing.T) {
	const perItem = 40 * time.Millisecond
	items := make([]int, 10)

	tests := []struct {
		limit   int
		minTime time.Duration
		maxTime time.Duration
	}{
		{limit: 1, minTime: 10 * perItem, maxTime: 30 * perItem},
		{limit: 5, minTime: 2 * perItem, maxTime: 6 * perItem},
	}

	for _, tt := range tests {
		var inFlight, peak int64
		worker := func(_ context.Context, _ int) bool {
			n := atomic.AddInt64(&inFlight, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(perItem)
			atomic.AddInt64(&inFlight, -1)
			return true
		}

		start := time.Now()
		if _, err := RunBounded(context.Background(), items, tt.limit, worker); err != nil {
			t.Fatalf("limit %d: %v", tt.limit, err)
		}
		elapsed := time.Since(start)

		if got := atomic.LoadInt64(&peak); got != int64(tt.limit) {
			t.Fatalf("limit %d: peak in flight = %d", tt.limit, got)
		}
		if elapsed < tt.minTime || elapsed > tt.maxTime {
			t.Fatalf("limit %d: elapsed %v outside [%v, %v]", tt.limit, elapsed, tt.minTime, tt.maxTime)
		}
	}
}

func TestRunBoundedCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	items := []int{1, 2, 3, 4, 5}
	var calls int64

	got, err := RunBounded(ctx, items, 1, func(_ context.Context, n int) int {
		if atomic.AddInt64(&calls, 1) == 2 {
			cancel()
		}
		return n
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(got) != len(items) {
		t.Fatalf("len = %d, want %d", len(got), len(items))
	}
	if got[0] != 1 || got[1] != 2 {
		t.Fatalf("completed results lost: %v", got)
	}
	if atomic.LoadInt64(&calls) != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	for i := 2; i < len(items); i++ {
		if got[i] != 0 {
			t.Fatalf("results[%d] = %d, want zero for undispatched item", i, got[i])
		}
	}
}
