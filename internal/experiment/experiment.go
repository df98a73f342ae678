// Package experiment turns a config into a validated, ready-to-run muscle
// simulation. Every configuration error surfaces from Build, before any
// integration step.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/san-kum/fesim/internal/config"
	"github.com/san-kum/fesim/internal/dynamo"
	"github.com/san-kum/fesim/internal/muscle"
	"github.com/san-kum/fesim/internal/stim"
	"github.com/san-kum/fesim/internal/storage"
)

type Experiment struct {
	cfg       *config.Config
	model     *muscle.Model
	train     *stim.Train
	system    *muscle.System
	simulator *dynamo.Simulator
	simCfg    dynamo.Config
	logger    *slog.Logger
}

type Option func(*buildOptions)

type buildOptions struct {
	registry *Registry
	logger   *slog.Logger
	every    int
}

func WithRegistry(r *Registry) Option  { return func(o *buildOptions) { o.registry = r } }
func WithLogger(l *slog.Logger) Option { return func(o *buildOptions) { o.logger = l } }

// WithProgress logs every n-th step at debug level.
func WithProgress(n int) Option { return func(o *buildOptions) { o.every = n } }

// Build validates cfg and assembles the model, pulse train, integrator and
// simulator.
func Build(cfg *config.Config, opts ...Option) (*Experiment, error) {
	o := buildOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Clone()

	model, err := o.registry.GetModel(cfg.Model,
		muscle.WithMuscle(cfg.Muscle),
		muscle.WithTruncation(cfg.Truncation),
	)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(cfg.Params))
	for name := range cfg.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := model.SetParam(name, cfg.Params[name]); err != nil {
			return nil, err
		}
	}

	times, err := resolveTimes(cfg)
	if err != nil {
		return nil, err
	}

	mode, err := stim.ParseMode(cfg.Stim.PulseMode)
	if err != nil {
		return nil, err
	}

	var durations, intensities []float64
	switch model.Variant.Family {
	case muscle.Ding2007:
		durations = cfg.Stim.PulseDuration
	case muscle.Hmed2018:
		intensities = cfg.Stim.PulseIntensity
	}

	train, err := stim.Build(times, mode, durations, intensities)
	if err != nil {
		return nil, err
	}
	if err := train.Apply(model); err != nil {
		return nil, err
	}

	integ, err := o.registry.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	ctrl, err := o.registry.GetController(cfg.Controller, map[string]float64{
		"fl": cfg.Coupling.ForceLength,
		"fv": cfg.Coupling.ForceVelocity,
	})
	if err != nil {
		return nil, err
	}

	system := muscle.NewSystem(model)
	simulator := dynamo.New(system, integ, ctrl)
	for _, m := range o.registry.DefaultMetrics(model) {
		simulator.AddMetric(m)
	}
	if o.every > 0 {
		simulator.AddObserver(NewStepLogger(o.logger, o.every))
	}

	dt := cfg.Dt()
	simCfg := dynamo.Config{
		Dt:            dt,
		Steps:         cfg.IVP.NShooting,
		Duration:      cfg.IVP.FinalTime,
		Tolerance:     cfg.IVP.Tolerance,
		MinDt:         dt * 1e-6,
		MaxDt:         dt * 10,
		Adaptive:      cfg.IVP.Adaptive,
		ValidateState: true,
	}

	o.logger.Debug("experiment built",
		"model", model.String(),
		"integrator", cfg.Integrator,
		"n_stim", train.N(),
		"mode", string(mode),
		"final_time", cfg.IVP.FinalTime,
		"n_shooting", cfg.IVP.NShooting,
	)

	return &Experiment{
		cfg:       cfg,
		model:     model,
		train:     train,
		system:    system,
		simulator: simulator,
		simCfg:    simCfg,
		logger:    o.logger,
	}, nil
}

// resolveTimes picks explicit times or derives them from the frequency. A
// frequency with n_stim sets the final time to n_stim/frequency.
func resolveTimes(cfg *config.Config) ([]float64, error) {
	s := cfg.Stim
	if len(s.Times) > 0 {
		return s.Times, nil
	}
	if s.NStim > 0 {
		times, final, err := stim.TimesFromFrequencyAndNStim(s.Frequency, s.NStim)
		if err != nil {
			return nil, err
		}
		cfg.IVP.FinalTime = final
		return times, nil
	}
	times, err := stim.TimesFromFrequencyAndFinalTime(s.Frequency, cfg.IVP.FinalTime, s.RoundDown)
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: %g Hz over %gs", stim.ErrEmptyTrain, s.Frequency, cfg.IVP.FinalTime)
	}
	return times, nil
}

func (e *Experiment) Run(ctx context.Context) (*dynamo.Result, error) {
	e.logger.Info("simulation started", "model", e.model.String(), "steps", e.simCfg.StepCount())

	result, err := e.simulator.Run(ctx, e.system.RestState(), e.simCfg)
	if err != nil {
		e.logger.Error("simulation failed", "model", e.model.String(), "err", err)
		return result, err
	}

	e.logger.Info("simulation finished",
		"model", e.model.String(),
		"steps", result.StepsTaken,
		"peak_force", result.Metrics["peak_force"],
	)
	return result, nil
}

// TimeToForce is the first grid time at which force reaches target. The run
// stops there; ok is false when the force never gets that high.
func (e *Experiment) TimeToForce(ctx context.Context, target float64) (t float64, ok bool, err error) {
	const force = 1
	err = e.simulator.RunWithCallback(ctx, e.system.RestState(), e.simCfg, func(x dynamo.State, _ dynamo.Control, at float64) bool {
		if x[force] >= target {
			t, ok = at, true
			return false
		}
		return true
	})
	return t, ok, err
}

func (e *Experiment) Config() *config.Config       { return e.cfg }
func (e *Experiment) Model() *muscle.Model         { return e.model }
func (e *Experiment) Train() *stim.Train           { return e.train }
func (e *Experiment) System() *muscle.System       { return e.system }
func (e *Experiment) SimConfig() dynamo.Config     { return e.simCfg }
func (e *Experiment) Simulator() *dynamo.Simulator { return e.simulator }

// Metadata describes the run for storage. Metrics are filled in on save.
func (e *Experiment) Metadata() storage.RunMetadata {
	return storage.RunMetadata{
		Model:      e.model.Variant.String(),
		Muscle:     e.model.Muscle,
		Integrator: e.cfg.Integrator,
		Controller: e.cfg.Controller,
		PulseMode:  string(e.train.Mode),
		StimTimes:  e.train.Times,
		Durations:  e.train.Durations,
		Intensity:  e.train.Intensities,
		Dt:         e.simCfg.Dt,
		FinalTime:  e.cfg.IVP.FinalTime,
		NShooting:  e.simCfg.StepCount(),
		StateNames: e.system.StateNames(),
		Params:     e.model.GetParams(),
	}
}
