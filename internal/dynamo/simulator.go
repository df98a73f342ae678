package dynamo

import (
	"context"
	"fmt"
	"math"
)

type Simulator struct {
	dyn        System
	integrator Integrator
	controller Controller
	metrics    []Metric
	observers  []Observer
}

func New(dyn System, integrator Integrator, controller Controller) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		controller: controller,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// System returns the simulated system.
func (s *Simulator) System() System { return s.dyn }

func (s *Simulator) Integrator() Integrator { return s.integrator }
func (s *Simulator) Controller() Controller { return s.controller }

// Run integrates from x0. Fixed-step runs evaluate at t_i = i*dt so the grid
// does not accumulate rounding error.
func (s *Simulator) Run(ctx context.Context, x0 State, cfg Config) (*Result, error) {
	if err := s.validate(x0, cfg); err != nil {
		return nil, err
	}

	steps := cfg.StepCount()
	result := &Result{
		States:   make([]State, 0, steps+1),
		Controls: make([]Control, 0, steps),
		Times:    make([]float64, 0, steps+1),
		Metrics:  make(map[string]float64),
	}
	if n, ok := s.dyn.(Named); ok {
		result.Names = n.StateNames()
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	t := 0.0
	dt := cfg.Dt
	end := float64(steps) * cfg.Dt

	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, t)

	for i := 0; ; i++ {
		if cfg.Adaptive {
			if t >= end-1e-12 {
				break
			}
			dt = math.Min(dt, end-t)
		} else if i >= steps {
			break
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		u := s.controller.Compute(x, t)

		for _, m := range s.metrics {
			m.Observe(x, u, t)
		}
		for _, obs := range s.observers {
			obs.OnStep(x, u, t)
		}

		var newX State
		var stepErr error
		used := dt

		if cfg.Adaptive {
			newX, used, dt, stepErr = s.adaptiveStep(x, u, t, dt, cfg)
		} else {
			newX, stepErr = s.step(x, u, t, dt)
		}

		if stepErr != nil {
			return result, &SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: stepErr}
		}
		if cfg.ValidateState && !newX.IsValid() {
			return result, &SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: ErrInvalidState}
		}

		x = newX
		if cfg.Adaptive {
			t += used
		} else {
			t = float64(i+1) * cfg.Dt
		}
		result.StepsTaken++

		result.States = append(result.States, x.Clone())
		result.Controls = append(result.Controls, u)
		result.Times = append(result.Times, t)
	}

	u := s.controller.Compute(x, t)
	for _, m := range s.metrics {
		m.Observe(x, u, t)
	}
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}

func (s *Simulator) validate(x0 State, cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidConfig, cfg.Dt)
	}
	if cfg.Steps <= 0 && cfg.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %g", ErrInvalidConfig, cfg.Duration)
	}
	if cfg.Adaptive && cfg.Tolerance <= 0 {
		return fmt.Errorf("%w: tolerance must be positive for adaptive stepping", ErrInvalidConfig)
	}
	if len(x0) != s.dyn.StateDim() {
		return fmt.Errorf("%w: state has %d components, system has %d", ErrDimensionMismatch, len(x0), s.dyn.StateDim())
	}
	return nil
}

func (s *Simulator) step(x State, u Control, t, dt float64) (State, error) {
	if f, ok := s.integrator.(FallibleIntegrator); ok {
		return f.TryStep(s.dyn, x, u, t, dt)
	}
	return s.integrator.Step(s.dyn, x, u, t, dt), nil
}

// adaptiveStep returns the new state, the step actually taken and the
// suggested next step.
func (s *Simulator) adaptiveStep(x State, u Control, t, dt float64, cfg Config) (State, float64, float64, error) {
	if adaptive, ok := s.integrator.(AdaptiveIntegrator); ok {
		newX, taken, next, err := adaptive.StepAdaptive(s.dyn, x, u, t, dt, cfg.Tolerance)
		if err != nil {
			return nil, 0, 0, err
		}
		if cfg.MaxDt > 0 {
			next = math.Min(next, cfg.MaxDt)
		}
		return newX, taken, next, nil
	}

	// step doubling
	for {
		x1, err := s.step(x, u, t, dt)
		if err != nil {
			return nil, 0, 0, err
		}
		xHalf, err := s.step(x, u, t, dt/2)
		if err != nil {
			return nil, 0, 0, err
		}
		x2, err := s.step(xHalf, u, t+dt/2, dt/2)
		if err != nil {
			return nil, 0, 0, err
		}

		e := x1.Sub(x2).Norm()
		if e > cfg.Tolerance {
			if dt/2 < cfg.MinDt {
				return nil, 0, 0, ErrStepTooSmall
			}
			dt /= 2
			continue
		}

		next := dt
		if e < cfg.Tolerance/10 {
			next = dt * 2
			if cfg.MaxDt > 0 {
				next = math.Min(next, cfg.MaxDt)
			}
		}
		return x2, dt, next, nil
	}
}

// RunWithCallback steps on the fixed grid until the callback returns false.
func (s *Simulator) RunWithCallback(ctx context.Context, x0 State, cfg Config, callback func(State, Control, float64) bool) error {
	if err := s.validate(x0, cfg); err != nil {
		return err
	}

	x := x0.Clone()
	steps := cfg.StepCount()

	for i := 0; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t := float64(i) * cfg.Dt
		u := s.controller.Compute(x, t)

		if !callback(x, u, t) || i == steps {
			return nil
		}

		next, err := s.step(x, u, t, cfg.Dt)
		if err != nil {
			return &SimulationError{Step: i, Time: t, State: x, Wrapped: err}
		}
		if cfg.ValidateState && !next.IsValid() {
			return &SimulationError{Step: i, Time: t, State: x, Wrapped: ErrInvalidState}
		}
		x = next
	}

	return nil
}
