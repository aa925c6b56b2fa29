package coordinator

import (
	"context"
	"fmt"

	"github.com/harun/cortex/internal/observability"
	"github.com/harun/cortex/internal/tracing"
	"github.com/harun/cortex/pkg/memory"
)

// iterations counts composite steps against one region's budget.
type iterations struct {
	region memory.Region
	limit  int
	used   int
}

// next claims one iteration, failing if the budget would be exceeded.
func (it *iterations) next() error {
	if it.used >= it.limit {
		observability.RecordIterationLimit(string(it.region))
		return &memory.IterationError{Region: it.region, Limit: it.limit}
	}
	it.used++
	return nil
}

// traverse walks the concept graph breadth first from req.Key for up to
// req.Depth hops (at least one), expanding each concept with a one-hop
// OpGetAssociations call. Each expansion costs one iteration. Concepts are
// returned in discovery order without the start concept or duplicates.
func (c *Coordinator) traverse(ctx context.Context, rt *region, req memory.Request) (memory.Result, error) {
	if err := memory.ValidateKey(req.Key); err != nil {
		return memory.Result{}, err
	}

	depth := req.Depth
	if depth < 1 {
		depth = 1
	}
	budget := &iterations{region: rt.name, limit: rt.cfg.MaxIterations}

	visited := map[string]bool{req.Key: true}
	frontier := []string{req.Key}
	found := []string{}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, concept := range frontier {
			if err := budget.next(); err != nil {
				return memory.Result{}, err
			}

			res, err := c.attempt(ctx, rt, memory.Request{
				Region: rt.name,
				Op:     memory.OpGetAssociations,
				Key:    concept,
			})
			if err != nil {
				return memory.Result{}, err
			}

			for _, target := range res.Concepts {
				if visited[target] {
					continue
				}
				visited[target] = true
				found = append(found, target)
				next = append(next, target)
			}
		}
		frontier = next
	}

	return memory.Result{Concepts: found, Found: len(found) > 0}, nil
}

// Chain executes reqs in order as one composite operation, e.g. linking two
// concepts and then storing a fact about them. Every step counts one
// iteration against its own region's max_iterations; the whole chain is
// checked before any step runs. On failure the results of completed steps
// are returned with the error.
func (c *Coordinator) Chain(ctx context.Context, reqs ...memory.Request) ([]memory.Result, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	budgets := make(map[memory.Region]*iterations)
	for i, req := range reqs {
		rt, err := c.region(req.Region)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if err := rt.check(req.Op); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}

		b, ok := budgets[rt.name]
		if !ok {
			b = &iterations{region: rt.name, limit: rt.cfg.MaxIterations}
			budgets[rt.name] = b
		}
		if err := b.next(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	ctx = tracing.WithChainID(ctx, tracing.NewRequestID())
	results := make([]memory.Result, 0, len(reqs))
	for i, req := range reqs {
		res, err := c.Execute(ctx, req)
		if err != nil {
			return results, fmt.Errorf("step %d (%s %s): %w", i, req.Region, req.Op, err)
		}
		results = append(results, res)
	}
	return results, nil
}
