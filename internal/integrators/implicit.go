package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/fesim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// ImplicitEuler solves y = x + dt*f(y, t+dt) by Newton iteration. The
// Jacobian comes from the system when it is [dynamo.Differentiable] and from
// forward differences otherwise.
type ImplicitEuler struct {
	MaxIter int
	Tol     float64
}

func NewImplicitEuler() *ImplicitEuler {
	return &ImplicitEuler{MaxIter: 25, Tol: 1e-10}
}

func (ie *ImplicitEuler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	y, err := ie.TryStep(dyn, x, u, t, dt)
	if err != nil {
		nan := make(dynamo.State, len(x))
		for i := range nan {
			nan[i] = math.NaN()
		}
		return nan
	}
	return y
}

func (ie *ImplicitEuler) TryStep(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) (dynamo.State, error) {
	n := len(x)
	tn := t + dt

	// explicit predictor
	y := x.AddScaled(dt, dyn.Derive(x, u, t))

	for iter := 0; iter < ie.MaxIter; iter++ {
		f := dyn.Derive(y, u, tn)
		res := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			res.SetVec(i, y[i]-x[i]-dt*f[i])
		}

		jf := jacobian(dyn, y, u, tn, f)
		g := mat.NewDense(n, n, nil)
		g.Scale(-dt, jf)
		for i := 0; i < n; i++ {
			g.Set(i, i, g.At(i, i)+1)
		}

		var delta mat.VecDense
		if err := delta.SolveVec(g, res); err != nil {
			return nil, fmt.Errorf("%w: %v", dynamo.ErrNewtonDiverged, err)
		}

		size := 0.0
		for i := 0; i < n; i++ {
			y[i] -= delta.AtVec(i)
			size = math.Max(size, math.Abs(delta.AtVec(i))/(1+math.Abs(y[i])))
		}
		if !y.IsValid() {
			break
		}
		if size <= ie.Tol {
			return y, nil
		}
	}

	return nil, fmt.Errorf("%w after %d iterations at t=%g", dynamo.ErrNewtonDiverged, ie.MaxIter, t)
}

func jacobian(dyn dynamo.System, x dynamo.State, u dynamo.Control, t float64, fx dynamo.State) *mat.Dense {
	if d, ok := dyn.(dynamo.Differentiable); ok {
		return d.Jacobian(x, u, t)
	}

	n := len(x)
	jac := mat.NewDense(n, n, nil)
	xp := x.Clone()
	for j := 0; j < n; j++ {
		h := 1e-7 * math.Max(1, math.Abs(x[j]))
		xp[j] = x[j] + h
		fp := dyn.Derive(xp, u, t)
		for i := 0; i < n; i++ {
			jac.Set(i, j, (fp[i]-fx[i])/h)
		}
		xp[j] = x[j]
	}
	return jac
}
