// Package automation runs scripted sequences of muscle simulations and
// parameter studies: yaml scenarios, parallel sweeps and Monte Carlo
// sensitivity runs over the model constants.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/san-kum/fesim/internal/config"
	"github.com/san-kum/fesim/internal/dynamo"
	"github.com/san-kum/fesim/internal/experiment"
	"github.com/san-kum/fesim/internal/storage"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var ErrEmptyStudy = errors.New("automation: nothing to run")

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one run. Its config keys sit next to name and save_as and
// are read over the defaults, like a standalone config file.
type ScenarioStep struct {
	Name   string
	SaveAs string
	Config *config.Config
}

func (s *ScenarioStep) UnmarshalYAML(node *yaml.Node) error {
	var meta struct {
		Name   string `yaml:"name"`
		SaveAs string `yaml:"save_as"`
	}
	if err := node.Decode(&meta); err != nil {
		return err
	}
	cfg, err := config.Decode(node)
	if err != nil {
		return err
	}
	s.Name, s.SaveAs, s.Config = meta.Name, meta.SaveAs, cfg
	return nil
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%w: scenario %q has no steps", ErrEmptyStudy, scenario.Name)
	}
	return &scenario, nil
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

// Runner carries what every study needs. Zero values are usable: a nil
// Registry means the default one, a nil Logger means slog.Default and a nil
// Store disables saving.
type Runner struct {
	Registry *experiment.Registry
	Logger   *slog.Logger
	Store    *storage.Store
	// Workers bounds concurrent runs; <= 0 means GOMAXPROCS.
	Workers int
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Runner) workers() int {
	if r.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return r.Workers
}

func (r *Runner) build(cfg *config.Config) (*experiment.Experiment, error) {
	opts := []experiment.Option{experiment.WithLogger(r.logger())}
	if r.Registry != nil {
		opts = append(opts, experiment.WithRegistry(r.Registry))
	}
	return experiment.Build(cfg, opts...)
}

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Name   string
	RunID  string
	Result *dynamo.Result
}

// RunScenario builds every step first, so a bad step fails the scenario
// before anything is integrated, then runs them in order.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) ([]StepResult, error) {
	exps := make([]*experiment.Experiment, len(scenario.Steps))
	for i, step := range scenario.Steps {
		exp, err := r.build(step.Config)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Name, err)
		}
		exps[i] = exp
	}

	results := make([]StepResult, 0, len(scenario.Steps))
	for i, step := range scenario.Steps {
		r.logger().Info("scenario step", "scenario", scenario.Name, "step", i+1, "of", len(scenario.Steps), "name", step.Name)

		result, err := exps[i].Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		sr := StepResult{Name: step.Name, Result: result}
		if step.SaveAs != "" && r.Store != nil {
			meta := exps[i].Metadata()
			meta.Model = step.SaveAs
			if sr.RunID, err = r.Store.Save(meta, result); err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
		}
		results = append(results, sr)
	}

	return results, nil
}

// ParameterSweep varies one config value over an even grid. Param is any
// name config.SetValue accepts.
type ParameterSweep struct {
	Base     *config.Config
	Param    string
	Min      float64
	Max      float64
	NumSteps int
}

// Values is the grid of the sweep.
func (s *ParameterSweep) Values() []float64 {
	if s.NumSteps <= 1 {
		return []float64{s.Min}
	}
	step := (s.Max - s.Min) / float64(s.NumSteps-1)
	out := make([]float64, s.NumSteps)
	for i := range out {
		out[i] = s.Min + float64(i)*step
	}
	return out
}

// SweepResult holds results from a parameter sweep
type SweepResult struct {
	ParamValue   float64
	FinalState   dynamo.State
	PeakForce    float64
	ForceImpulse float64
	FatigueIndex float64
}

// RunSweep runs every grid point concurrently. All points are built before
// the first one runs; results keep grid order.
func (r *Runner) RunSweep(ctx context.Context, sweep *ParameterSweep) ([]SweepResult, error) {
	if sweep.Base == nil || sweep.NumSteps < 1 {
		return nil, fmt.Errorf("%w: sweep needs a base config and at least one step", ErrEmptyStudy)
	}

	values := sweep.Values()
	exps := make([]*experiment.Experiment, len(values))
	for i, v := range values {
		cfg := sweep.Base.Clone()
		if err := cfg.SetValue(sweep.Param, v); err != nil {
			return nil, err
		}
		exp, err := r.build(cfg)
		if err != nil {
			return nil, fmt.Errorf("%s=%g: %w", sweep.Param, v, err)
		}
		exps[i] = exp
	}

	results := make([]SweepResult, len(values))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())

	for i, exp := range exps {
		g.Go(func() error {
			result, err := exp.Run(ctx)
			if err != nil {
				return fmt.Errorf("%s=%g: %w", sweep.Param, values[i], err)
			}

			sr := SweepResult{
				ParamValue:   values[i],
				PeakForce:    result.Metrics["peak_force"],
				ForceImpulse: result.Metrics["force_impulse"],
				FatigueIndex: result.Metrics["fatigue_index"],
			}
			if len(result.States) > 0 {
				sr.FinalState = result.States[len(result.States)-1]
			}
			results[i] = sr

			r.logger().Debug("sweep point", "param", sweep.Param, "value", values[i], "peak_force", sr.PeakForce)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// MonteCarloConfig perturbs model constants by a relative amount.
type MonteCarloConfig struct {
	Base *config.Config
	// Params are the constants to perturb; each is scaled by a factor drawn
	// uniformly from [1-Perturbation, 1+Perturbation].
	Params       []string
	Perturbation float64
	NumTrials    int
	Seed         int64
}

// MonteCarloResult holds statistics from Monte Carlo runs
type MonteCarloResult struct {
	TrialID   int
	Params    map[string]float64
	PeakForce float64
	Stable    bool // finite, non-negative force throughout
}

// RunMonteCarlo draws every trial up front from one seeded source, so
// results are reproducible regardless of scheduling.
func (r *Runner) RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig) ([]MonteCarloResult, error) {
	if cfg.Base == nil || cfg.NumTrials < 1 || len(cfg.Params) == 0 {
		return nil, fmt.Errorf("%w: monte carlo needs a base config, params and trials", ErrEmptyStudy)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	// constants the base config leaves at their defaults come from the model
	probe, err := r.build(cfg.Base)
	if err != nil {
		return nil, err
	}
	nominal := probe.Model().GetParams()

	exps := make([]*experiment.Experiment, cfg.NumTrials)
	draws := make([]map[string]float64, cfg.NumTrials)
	for trial := range exps {
		c := cfg.Base.Clone()
		draws[trial] = make(map[string]float64, len(cfg.Params))
		for _, name := range cfg.Params {
			base, ok := nominal[name]
			if !ok {
				return nil, fmt.Errorf("automation: %s has no parameter %q", probe.Model().Variant, name)
			}
			v := base * (1 + (rng.Float64()*2-1)*cfg.Perturbation)
			draws[trial][name] = v
			if err := c.SetValue(name, v); err != nil {
				return nil, err
			}
		}
		exp, err := r.build(c)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", trial, err)
		}
		exps[trial] = exp
	}

	results := make([]MonteCarloResult, cfg.NumTrials)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())

	for trial, exp := range exps {
		g.Go(func() error {
			result, err := exp.Run(ctx)
			mr := MonteCarloResult{TrialID: trial, Params: draws[trial]}
			switch {
			case errors.Is(err, dynamo.ErrInvalidState):
				// a blown-up trial is a finding, not a failure
			case err != nil:
				return fmt.Errorf("trial %d: %w", trial, err)
			default:
				mr.PeakForce = result.Metrics["peak_force"]
				mr.Stable = result.Metrics["stability"] == 1 && !math.IsNaN(mr.PeakForce)
			}
			results[trial] = mr
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger().Info("monte carlo finished", "trials", cfg.NumTrials, "seed", seed)
	return results, nil
}

// MonteCarloStats computes summary statistics from Monte Carlo results
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
