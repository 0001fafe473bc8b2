package batch

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// Result is the outcome of one item in a batch
type Result[T any] struct {
	Value T
	Err   error
}

// Run calls fn for every input concurrently, at most limit at a time
// (limit <= 0 means unbounded), and waits for all of them. Results are
// returned in input order. A failing item never cancels its siblings.
func Run[I any, T any](ctx context.Context, inputs []I, limit int, fn func(ctx context.Context, input I) (T, error)) []Result[T] {
	results := make([]Result[T], len(inputs))
	if len(inputs) == 0 {
		return results
	}

	p := pool.New()
	if limit > 0 {
		p = p.WithMaxGoroutines(limit)
	}
	workers := p.WithContext(ctx)

	for i, input := range inputs {
		i, input := i, input
		workers.Go(func(ctx context.Context) error {
			value, err := fn(ctx, input)
			results[i] = Result[T]{Value: value, Err: err}
			return nil
		})
	}

	// Item errors are carried in results, so Wait has nothing to report
	_ = workers.Wait()
	return results
}
