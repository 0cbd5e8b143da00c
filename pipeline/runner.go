package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrInvalidConcurrency is returned when RunBounded is given a limit below 1.
var ErrInvalidConcurrency = errors.New("pipeline: max concurrency must be at least 1")

// RunBounded applies worker to every item with at most maxConcurrency calls in
// flight and returns the results in input order. A worker that panics leaves
// the zero R in its slot. When ctx is cancelled no further items are
// dispatched; the returned slice still has len(items) entries, with the zero R
// for items that never ran, and the error is ctx.Err().
func RunBounded[T, R any](ctx context.Context, items []T, maxConcurrency int, worker func(context.Context, T) R) ([]R, error) {
	if maxConcurrency < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, maxConcurrency)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

dispatch:
	for i := range items {
		select {
		case <-ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}
		// A slot may have been won in the same select as a cancellation.
		if ctx.Err() != nil {
			<-sem
			break
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = runItem(ctx, i, items[i], worker)
		}(i)
	}

	wg.Wait()
	return results, ctx.Err()
}

func runItem[T, R any](ctx context.Context, index int, item T, worker func(context.Context, T) R) (out R) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline worker panicked",
				slog.Int("index", index),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			var zero R
			out = zero
		}
	}()
	return worker(ctx, item)
}
