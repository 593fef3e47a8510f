package engine

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// BatchItem pairs one descriptor's result with its error. Exactly one of
// the two fields is set.
type BatchItem struct {
	Result *Result
	Err    error
}

// RunMany executes several descriptors against one source concurrently,
// bounded by a worker pool. Results come back in descriptor order; a
// failure in one descriptor does not affect the others. This is the
// dashboard-refresh path, where every widget on a dashboard queries at
// once.
func (e *Engine) RunMany(ctx context.Context, src TableFetcher, queries []QueryDescriptor, workers int) []BatchItem {
	items := make([]BatchItem, len(queries))
	if len(queries) == 0 {
		return items
	}
	if workers <= 0 || workers > len(queries) {
		workers = len(queries)
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		for i := range items {
			items[i].Err = err
		}
		return items
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, q := range queries {
		i, q := i, q
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			res, err := e.Run(ctx, src, q)
			items[i] = BatchItem{Result: res, Err: err}
		})
		if submitErr != nil {
			wg.Done()
			items[i].Err = submitErr
		}
	}
	wg.Wait()
	return items
}
