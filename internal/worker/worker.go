// Package worker runs independent units of work across a bounded set of
// goroutines. Scripts never share mutable state, so script-granularity
// parallelism needs no locking beyond the pool itself.
package worker

import (
	"context"
	"sync"
)

// Result pairs one input with its outcome.
type Result[T, R any] struct {
	Input T
	Value R
	Err   error
}

// Run processes every input through fn using up to workers goroutines
// and returns the results in input order. A cancelled context stops
// dispatching new inputs; results for undispatched inputs carry the
// context error.
func Run[T, R any](ctx context.Context, workers int, inputs []T, fn func(context.Context, T) (R, error)) []Result[T, R] {
	if workers < 1 {
		workers = 1
	}

	results := make([]Result[T, R], len(inputs))
	for i := range results {
		results[i] = Result[T, R]{Input: inputs[i], Err: ctx.Err()}
	}

	indexCh := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexCh {
				value, err := fn(ctx, inputs[idx])
				results[idx] = Result[T, R]{Input: inputs[idx], Value: value, Err: err}
			}
		}()
	}

	for i := range inputs {
		select {
		case <-ctx.Done():
			for j := i; j < len(inputs); j++ {
				results[j].Err = ctx.Err()
			}
			close(indexCh)
			wg.Wait()
			return results
		case indexCh <- i:
		}
	}
	close(indexCh)
	wg.Wait()
	return results
}

// Batch splits items into chunks of at most size elements.
func Batch[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	var batches [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}
	return batches
}
