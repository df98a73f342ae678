// Package optim designs pulse trains by exhaustive search: every combination
// of candidate stimulation settings is simulated and scored.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/san-kum/fesim/internal/dynamo"
	"github.com/san-kum/fesim/internal/experiment"
	"golang.org/x/sync/errgroup"
)

var ErrNoCandidates = errors.New("optim: empty search grid")

// Objective scores a run; lower is better.
type Objective func(*dynamo.Result) float64

// Metric minimizes a recorded metric.
func Metric(name string) Objective {
	return func(r *dynamo.Result) float64 { return r.Metrics[name] }
}

// TargetPeakForce minimizes the distance between the peak force and target.
func TargetPeakForce(target float64) Objective {
	return func(r *dynamo.Result) float64 { return math.Abs(r.Metrics["peak_force"] - target) }
}

// Builder turns one grid point into a ready experiment.
type Builder func(params map[string]float64) (*experiment.Experiment, error)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	// Workers bounds concurrent runs; <= 0 means GOMAXPROCS.
	Workers int
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Best is the winning grid point.
type Best struct {
	Params    map[string]float64
	Score     float64
	Result    *dynamo.Result
	Evaluated int
}

// Points enumerates the grid, the last parameter varying fastest.
func (g *GridSearch) Points() []map[string]float64 {
	var points []map[string]float64
	g.enumerate(0, make(map[string]float64), &points)
	return points
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		point := make(map[string]float64, len(current))
		for k, v := range current {
			point[k] = v
		}
		*out = append(*out, point)
		return
	}

	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[name] = val
		g.enumerate(depth+1, current, out)
	}
	delete(current, name)
}

// Search builds every point, so a bad candidate fails before any run, then
// simulates them concurrently. Ties go to the earliest point.
func (g *GridSearch) Search(ctx context.Context, build Builder, objective Objective) (*Best, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, fmt.Errorf("optim: %d names for %d ranges", len(g.paramNames), len(g.ranges))
	}
	points := g.Points()
	if len(g.paramNames) == 0 || len(points) == 0 {
		return nil, ErrNoCandidates
	}

	exps := make([]*experiment.Experiment, len(points))
	for i, p := range points {
		exp, err := build(p)
		if err != nil {
			return nil, fmt.Errorf("candidate %v: %w", p, err)
		}
		exps[i] = exp
	}

	workers := g.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	scores := make([]float64, len(points))
	results := make([]*dynamo.Result, len(points))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for i, exp := range exps {
		eg.Go(func() error {
			res, err := exp.Run(ctx)
			if err != nil {
				return fmt.Errorf("candidate %v: %w", points[i], err)
			}
			results[i] = res
			scores[i] = objective(res)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	best := -1
	for i, s := range scores {
		if math.IsNaN(s) {
			continue
		}
		if best < 0 || s < scores[best] {
			best = i
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("optim: every candidate scored NaN")
	}

	return &Best{
		Params:    points[best],
		Score:     scores[best],
		Result:    results[best],
		Evaluated: len(points),
	}, nil
}
