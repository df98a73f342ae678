package muscle

import (
	"github.com/san-kum/fesim/internal/dynamo"
	"github.com/san-kum/fesim/internal/numeric"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/dual"
)

// System adapts a Model and its pushed history to dynamo.System. The control
// vector carries force-length and force-velocity coefficients; missing
// entries default to 1.
type System struct {
	model *Model
}

// NewSystem wraps m. Later setter calls on m are seen by the system.
func NewSystem(m *Model) *System {
	return &System{model: m}
}

func (s *System) Model() *Model { return s.model }

func (s *System) StateDim() int   { return s.model.NumStates() }
func (s *System) ControlDim() int { return 2 }

func (s *System) StateNames() []string { return s.model.StateNames(true) }

// RestState is the initial state of a run.
func (s *System) RestState() dynamo.State { return s.model.RestValues() }

// window returns the history used at time t.
func (s *System) window(t float64) History[float64] {
	return Truncate(s.model.hist, t, s.model.Truncation)
}

func coupling(u dynamo.Control) (float64, float64) {
	fl, fv := 1.0, 1.0
	if len(u) > 0 {
		fl = u[0]
	}
	if len(u) > 1 {
		fv = u[1]
	}
	return fl, fv
}

func (s *System) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	fl, fv := coupling(u)
	return DynamicsCoupled[float64](numeric.Float{}, s.model, t, x, s.window(t), fl, fv)
}

// Jacobian is d(Derive)/dx by forward-mode dual numbers, one column per state.
func (s *System) Jacobian(x dynamo.State, u dynamo.Control, t float64) *mat.Dense {
	f := numeric.Dual{}
	n := len(x)
	fl, fv := coupling(u)
	h := Lift[dual.Number](f, s.window(t))

	jac := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		dx := DynamicsCoupled[dual.Number](f, s.model, f.Const(t), numeric.Seed(x, j), h, f.Const(fl), f.Const(fv))
		for i := 0; i < n; i++ {
			jac.Set(i, j, dx[i].Emag)
		}
	}
	return jac
}

// GetParams and SetParam expose the model constants.
func (s *System) GetParams() map[string]float64 { return s.model.GetParams() }

func (s *System) SetParam(name string, value float64) error {
	return s.model.SetParam(name, value)
}

var (
	_ dynamo.Differentiable = (*System)(nil)
	_ dynamo.Named          = (*System)(nil)
	_ dynamo.Configurable   = (*System)(nil)
)
