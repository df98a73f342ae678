// Package integrators holds the fixed-step, adaptive and implicit schemes used
// to advance muscle states. Integrators with scratch buffers are not safe for
// concurrent use; build one per run.
package integrators

import "github.com/san-kum/fesim/internal/dynamo"

// Euler is the explicit first-order scheme.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t float64, dt float64) dynamo.State {
	return x.AddScaled(dt, dyn.Derive(x, u, t))
}

// RK2 is the explicit midpoint rule.
type RK2 struct {
	scratch dynamo.State
}

func NewRK2() *RK2 {
	return &RK2{}
}

func (r *RK2) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	if len(r.scratch) != n {
		r.scratch = make(dynamo.State, n)
	}

	k1 := dyn.Derive(x, u, t)
	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*k1[i]
	}
	k2 := dyn.Derive(r.scratch, u, t+dt*0.5)

	return x.AddScaled(dt, k2)
}
