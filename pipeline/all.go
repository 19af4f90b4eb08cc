package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// All runs independent operations concurrently, each as its own top-level
// call with its own resource handle, and returns their results in order.
// The first failure cancels the context of the calls still running and is
// returned. WithConcurrency bounds the fan-out.
func All[R, T any](ctx context.Context, p *Pipeline[R], ops ...Operation[R, T]) ([]T, error) {
	results := make([]T, len(ops))

	g, ctx := errgroup.WithContext(ctx)
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}

	for i, op := range ops {
		g.Go(func() error {
			v, err := Run(ctx, p, op)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
