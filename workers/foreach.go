package workers

import (
	"context"
	"sync"
)

// ForEach calls fn for every index of items with at most concurrency calls in flight and
// waits for all of them. There is no early abort: fn records failures in its own result slot
// and sees the cancelled ctx once the caller gives up.
func ForEach[T any](ctx context.Context, concurrency int, items []T, fn func(ctx context.Context, i int, item T)) {
	if concurrency < 1 {
		concurrency = 1
	}

	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, item := range items {
		semaphore <- struct{}{}

		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			defer func() { <-semaphore }()
			fn(ctx, i, item)
		}(i, item)
	}

	wg.Wait()
}
