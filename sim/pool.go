package sim

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RegionWorkerPool evaluates the disease step for all regions concurrently.
// Every step is a barrier: Evaluate returns only when all regions have
// produced a next-day vector or one of them has failed. A failed or missing
// region fails the whole step, because a partial region set would break the
// downstream migration conservation invariant.
type RegionWorkerPool struct {
	Workers     int
	StepTimeout time.Duration
}

// NewRegionWorkerPool creates a pool of the given size. workers < 1 is
// normalized to 1; a zero stepTimeout disables the per-step deadline.
func NewRegionWorkerPool(workers int, stepTimeout time.Duration) *RegionWorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &RegionWorkerPool{Workers: workers, StepTimeout: stepTimeout}
}

type regionOutcome struct {
	regionID string
	next     Compartments
	err      error
}

// Evaluate runs AdvanceDisease for every region on the pool and returns the
// complete set of next-day vectors keyed by region ID. params carries the
// per-region effective parameters resolved by the orchestrator; workers only
// read their own region and never touch shared state, so the result is
// independent of pool size.
func (p *RegionWorkerPool) Evaluate(ctx context.Context, day int, regions []*Region, params map[string]DiseaseParameters) (map[string]Compartments, error) {
	if p.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.StepTimeout)
		defer cancel()
	}

	jobs := make(chan *Region, len(regions))
	for _, r := range regions {
		jobs <- r
	}
	close(jobs)

	results := make(chan regionOutcome, len(regions))
	workers := p.Workers
	if workers > len(regions) {
		workers = len(regions)
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				if ctx.Err() != nil {
					return
				}
				next, err := AdvanceDisease(r.Compartments, params[r.ID])
				if err != nil {
					err = &RegionComputationError{Region: r.ID, Day: day, Err: err}
				}
				results <- regionOutcome{regionID: r.ID, next: next, err: err}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string]Compartments, len(regions))
	for range regions {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("day %d: disease phase did not complete: %w", day, ctx.Err())
		case res, ok := <-results:
			if !ok {
				// Workers bailed out on cancellation before covering every region.
				return nil, fmt.Errorf("day %d: disease phase did not complete: %w", day, ctx.Err())
			}
			if res.err != nil {
				return nil, res.err
			}
			out[res.regionID] = res.next
		}
	}
	return out, nil
}
