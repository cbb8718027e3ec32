// Package workpool runs independent index-addressed jobs with bounded
// concurrency. Results land in the slot of their index, so output order
// always matches input order regardless of completion order.
package workpool

import (
	"context"
	"runtime"
	"sync"
)

// Workers resolves a requested worker count: values < 1 mean GOMAXPROCS.
func Workers(n int) int {
	if n < 1 {
		return runtime.GOMAXPROCS(0)
	}

	return n
}

// Map calls fn(ctx, i) for every i in [0, n) on at most workers goroutines
// and returns one error slot per index. A failing job never stops its
// siblings. Once ctx is cancelled no new jobs start; unstarted indices
// get ctx.Err().
func Map(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	if n == 0 {
		return errs
	}

	workers = min(Workers(workers), n)

	if workers == 1 {
		for i := range n {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				continue
			}

			errs[i] = fn(ctx, i)
		}

		return errs
	}

	jobs := make(chan int)

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range jobs {
				if err := ctx.Err(); err != nil {
					errs[i] = err
					continue
				}

				errs[i] = fn(ctx, i)
			}
		}()
	}

	for i := range n {
		jobs <- i
	}

	close(jobs)
	wg.Wait()

	return errs
}

// Collect maps fn over [0, n) and gathers values in index order.
func Collect[T any](ctx context.Context, n, workers int, fn func(ctx context.Context, i int) (T, error)) ([]T, []error) {
	out := make([]T, n)

	errs := Map(ctx, n, workers, func(ctx context.Context, i int) error {
		v, err := fn(ctx, i)
		if err != nil {
			return err
		}

		out[i] = v

		return nil
	})

	return out, errs
}

// FirstError returns the first non-nil error in errs.
func FirstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}

// Failed counts the non-nil errors in errs.
func Failed(errs []error) int {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}

	return n
}
