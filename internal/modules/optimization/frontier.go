package optimization

import (
	"context"
	"fmt"

	"github.com/aristath/riskengine/internal/modules/portfolio"
	"golang.org/x/sync/errgroup"
)

// EfficientFrontier traces steps+1 minimum-variance allocations at target returns spaced
// evenly between the minimum-variance and the maximum-return allocations, both
// endpoints included. Points are solved concurrently and returned in order of target
// return. steps <= 0 uses the configured default.
func (o *Optimizer) EfficientFrontier(ctx context.Context, p *portfolio.Portfolio, steps int) ([]portfolio.FrontierPoint, error) {
	if steps <= 0 {
		steps = o.frontierSteps
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	minVar, err := o.MinimizeVariance(p, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to find minimum variance endpoint: %w", err)
	}
	maxRet, err := o.MaximizeReturn(p)
	if err != nil {
		return nil, fmt.Errorf("failed to find maximum return endpoint: %w", err)
	}

	low, high := p.Return(minVar), p.Return(maxRet)
	increment := (high - low) / float64(steps)

	o.log.Debug().
		Float64("min_return", low).
		Float64("max_return", high).
		Int("steps", steps).
		Msg("Tracing efficient frontier")

	frontier := make([]portfolio.FrontierPoint, steps+1)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i <= steps; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			target := low + increment*float64(i)
			if i == steps {
				target = high
			}
			w, err := o.MinimizeVariance(p, &target)
			if err != nil {
				return fmt.Errorf("frontier point %d (target %v): %w", i, target, err)
			}
			frontier[i] = p.Summarize(w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return frontier, nil
}
