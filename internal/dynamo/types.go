package dynamo

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// AddScaled returns s + alpha*other.
func (s State) AddScaled(alpha float64, other State) State {
	result := s.Clone()
	for i := range result {
		if i < len(other) {
			result[i] += alpha * other[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

type Control []float64

type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Differentiable systems supply d(Derive)/dx, used by implicit schemes.
type Differentiable interface {
	System
	Jacobian(x State, u Control, t float64) *mat.Dense
}

// Named systems label their state components.
type Named interface {
	StateNames() []string
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

// AdaptiveIntegrator returns the new state, the step size it actually took
// and a suggested size for the next step.
type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(dyn System, x State, u Control, t, dt, tol float64) (State, float64, float64, error)
}

// FallibleIntegrator reports step failures instead of returning a bad state.
type FallibleIntegrator interface {
	Integrator
	TryStep(dyn System, x State, u Control, t float64, dt float64) (State, error)
}

type Controller interface {
	Compute(x State, t float64) Control
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, u Control, t float64)
}

type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

type Config struct {
	Dt            float64
	Steps         int // overrides Duration when positive
	Duration      float64
	Tolerance     float64
	MaxDt         float64
	MinDt         float64
	Adaptive      bool
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.001,
		Duration:      0.3,
		Tolerance:     1e-6,
		MaxDt:         0.01,
		MinDt:         1e-9,
		Adaptive:      false,
		ValidateState: true,
	}
}

// StepCount is the number of fixed steps covering Duration.
// Duration/Dt is rounded, so 0.3/0.001 yields 300 steps, not 299.
func (c Config) StepCount() int {
	if c.Steps > 0 {
		return c.Steps
	}
	return int(math.Round(c.Duration / c.Dt))
}

type Result struct {
	States     []State
	Controls   []Control
	Times      []float64
	Metrics    map[string]float64
	StepsTaken int
	Names      []string
}

// Column extracts state component i over the run.
func (r *Result) Column(i int) []float64 {
	out := make([]float64, len(r.States))
	for k, x := range r.States {
		out[k] = x[i]
	}
	return out
}

// Index returns the column of the named state, or -1.
func (r *Result) Index(name string) int {
	for i, n := range r.Names {
		if n == name {
			return i
		}
	}
	return -1
}
