package wall

import (
	"context"
	"log/slog"
	"sync"

	"github.com/chazu/wallforge/pkg/kernel"
	"github.com/chazu/wallforge/pkg/plan"
)

// Result is the outcome of one wall in a plan build. Exactly one of
// Assembly and Err is set.
type Result struct {
	WallID   plan.WallID
	Assembly *kernel.Assembly
	Err      error
}

// BuildPlan builds every wall of p in plan order using a bounded pool of
// workers. A failing wall does not stop the others. When ctx is cancelled no
// further walls are started and the unstarted ones report ctx.Err().
//
// Each worker reads only its own wall and openings plus the plan's covering
// library, and writes only its own result slot.
func BuildPlan(ctx context.Context, p *plan.Plan, opts ...Option) []Result {
	cfg := newConfig(opts)
	walls := p.OrderedWalls()
	results := make([]Result, len(walls))

	inputs := make([]Input, len(walls))
	for i, w := range walls {
		results[i].WallID = w.ID
		openings, missing := p.ResolveOpenings(w)
		for _, id := range missing {
			Logger().Warn("unknown opening reference",
				slog.String("wall", string(w.ID)), slog.String("opening", string(id)))
		}
		inputs[i] = Input{Wall: *w, Openings: openings, Textures: p.Textures}
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for n := 0; n < min(cfg.workers, len(walls)); n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i].Assembly, results[i].Err = Build(inputs[i], withConfig(cfg))
			}
		}()
	}

	next := 0
dispatch:
	for ; next < len(walls); next++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- next:
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(walls); i++ {
		results[i].Err = ctx.Err()
	}
	return results
}

// Assemblies returns the successful assemblies of rs in order.
func Assemblies(rs []Result) []*kernel.Assembly {
	var out []*kernel.Assembly
	for _, r := range rs {
		if r.Assembly != nil {
			out = append(out, r.Assembly)
		}
	}
	return out
}

// Failed returns the results that carry an error.
func Failed(rs []Result) []Result {
	var out []Result
	for _, r := range rs {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
