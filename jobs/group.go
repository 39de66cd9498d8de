package jobs

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// errSkipped marks a branch that had nothing to do. It is counted, not logged
// as a failure.
var errSkipped = errors.New("skipped")

// fanOut runs fn for every index in [0, n) with at most limit running at once
// and waits for all of them. A failing branch never cancels its siblings; the
// returned slice holds each branch's error at its index.
func fanOut(ctx context.Context, limit, n int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	if n == 0 {
		return errs
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
