package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/fesim/internal/control"
	"github.com/san-kum/fesim/internal/dynamo"
	"github.com/san-kum/fesim/internal/integrators"
	"github.com/san-kum/fesim/internal/metrics"
	"github.com/san-kum/fesim/internal/muscle"
)

type Registry struct {
	models      map[string]func(...muscle.Option) *muscle.Model
	integrators map[string]func() dynamo.Integrator
	controllers map[string]func(map[string]float64) dynamo.Controller
}

func NewRegistry() *Registry {
	r := &Registry{
		models:      make(map[string]func(...muscle.Option) *muscle.Model),
		integrators: make(map[string]func() dynamo.Integrator),
		controllers: make(map[string]func(map[string]float64) dynamo.Controller),
	}

	for _, v := range muscle.Variants() {
		r.models[v.String()] = func(opts ...muscle.Option) *muscle.Model { return muscle.New(v, opts...) }
	}

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk1"] = r.integrators["euler"]
	r.integrators["rk2"] = func() dynamo.Integrator { return integrators.NewRK2() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["rk45"] = func() dynamo.Integrator { return integrators.NewRK45() }
	r.integrators["implicit_euler"] = func() dynamo.Integrator { return integrators.NewImplicitEuler() }

	r.controllers["none"] = func(params map[string]float64) dynamo.Controller {
		return control.NewNone(2)
	}
	r.controllers["constant"] = func(params map[string]float64) dynamo.Controller {
		fl, ok := params["fl"]
		if !ok {
			fl = 1
		}
		fv, ok := params["fv"]
		if !ok {
			fv = 1
		}
		return control.NewConstant(fl, fv)
	}

	return r
}

// GetModel accepts any spelling muscle.ParseVariant understands.
func (r *Registry) GetModel(name string, opts ...muscle.Option) (*muscle.Model, error) {
	v, err := muscle.ParseVariant(name)
	if err != nil {
		return nil, err
	}
	fn, ok := r.models[v.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", muscle.ErrUnknownVariant, name)
	}
	return fn(opts...), nil
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetController(name string, params map[string]float64) (dynamo.Controller, error) {
	fn, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", name)
	}
	return fn(params), nil
}

func (r *Registry) ListModels() []string {
	return sortedKeys(r.models)
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics are recorded on every run of m.
func (r *Registry) DefaultMetrics(m *muscle.Model) []dynamo.Metric {
	aIdx := -1
	if m.Variant.Fatigue {
		aIdx = 2
	}
	return metrics.Standard(1, aIdx)
}
