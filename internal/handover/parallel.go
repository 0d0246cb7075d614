package handover

import (
	"context"

	"golang.org/x/sync/errgroup"

	"baton/pkg/types"
)

// Request pairs one context with the options for its handover.
type Request struct {
	Context *types.PersonaContext
	Options Options
}

// Parallel runs independent pipeline-branch handovers concurrently, one
// child process each. Contexts carry unique IDs, so the branches share
// nothing beyond the store directory and need no locking. Results are
// returned in request order; the first error cancels the remaining
// branches and is returned after all of them have stopped.
func Parallel(ctx context.Context, c *Coordinator, requests []Request) ([]*types.TaskResult, error) {
	results := make([]*types.TaskResult, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range requests {
		g.Go(func() error {
			result, err := Retry(gctx, c, req.Context, req.Options)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
