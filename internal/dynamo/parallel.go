package dynamo

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Job is one independent run of a batch.
type Job struct {
	Name       string
	System     System
	Integrator Integrator
	Controller Controller
	Metrics    func() []Metric
	X0         State
	Config     Config
}

// Batch runs independent jobs concurrently, at most limit at a time
// (limit <= 0 means GOMAXPROCS). Results keep the order of jobs. The first
// failure cancels the remaining runs.
func Batch(ctx context.Context, jobs []Job, limit int) ([]*Result, error) {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]*Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, job := range jobs {
		g.Go(func() error {
			s := New(job.System, job.Integrator, job.Controller)
			if job.Metrics != nil {
				for _, m := range job.Metrics() {
					s.AddMetric(m)
				}
			}

			res, err := s.Run(ctx, job.X0, job.Config)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
