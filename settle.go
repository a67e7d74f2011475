package tracemark

import (
	"context"
	"log/slog"
	"sync"
)

// Result is the outcome of one per-file operation in a bulk run.
type Result[T any] struct {
	Path  string
	Value T
	Err   error
}

// settle runs fn for every path on a bounded worker pool and waits for all
// of them. Results keep the order of paths; failures do not stop the run.
func settle[T any](ctx context.Context, workers int, paths []string, fn func(context.Context, string) (T, error)) []Result[T] {
	results := make([]Result[T], len(paths))
	if len(paths) == 0 {
		return results
	}
	numWorkers := min(max(workers, 1), len(paths))

	workCh := make(chan int, len(paths))
	for i := range paths {
		workCh <- i
	}
	close(workCh)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				if err := ctx.Err(); err != nil {
					results[i] = Result[T]{Path: paths[i], Err: err}
					continue
				}
				v, err := fn(ctx, paths[i])
				results[i] = Result[T]{Path: paths[i], Value: v, Err: err}
			}
		}()
	}
	wg.Wait()
	return results
}

// Succeeded keeps the successful results and logs every dropped one.
func Succeeded[T any](results []Result[T], logger *slog.Logger) []Result[T] {
	out := make([]Result[T], 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			logger.Warn("dropping document", "path", r.Path, "error", r.Err)
			continue
		}
		out = append(out, r)
	}
	return out
}

// failures counts results with an error.
func failures[T any](results []Result[T]) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
