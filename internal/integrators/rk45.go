package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/fesim/internal/dynamo"
)

// Dormand-Prince tableau. The seventh stage is evaluated at the fifth-order
// solution (FSAL) and only enters the error estimate.
var (
	dpNodes = [6]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1}
	dpA     = [6][]float64{
		nil,
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
	}
	dpB5 = [7]float64{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84, 0}
	dpB4 = [7]float64{5179.0 / 57600, 0, 7571.0 / 16695, 393.0 / 640, -92097.0 / 339200, 187.0 / 2100, 1.0 / 40}
)

// RK45 is the Dormand-Prince embedded pair. Step takes one unchecked step of
// the given size; StepAdaptive rejects and retries steps whose error estimate
// exceeds the tolerance.
type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
	minDt    float64
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
		minDt:    1e-12,
	}
}

func (r *RK45) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	xNew, _ := r.try(dyn, x, u, t, dt, 1e-6)
	return xNew
}

func (r *RK45) StepAdaptive(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt, tol float64) (dynamo.State, float64, float64, error) {
	for {
		xNew, errRatio := r.try(dyn, x, u, t, dt, tol)

		if errRatio <= 1 {
			next := dt * r.maxScale
			if errRatio > 0 {
				next = dt * math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
			}
			return xNew, dt, next, nil
		}

		dt *= math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
		if dt < r.minDt || math.IsNaN(errRatio) {
			return nil, 0, 0, fmt.Errorf("%w: dt=%g at t=%g", dynamo.ErrStepTooSmall, dt, t)
		}
	}
}

// try returns the fifth-order solution and its error relative to tol.
func (r *RK45) try(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt, tol float64) (dynamo.State, float64) {
	var k [7]dynamo.State
	for s := range dpA {
		xs := x
		for j, a := range dpA[s] {
			xs = xs.AddScaled(dt*a, k[j])
		}
		k[s] = dyn.Derive(xs, u, t+dpNodes[s]*dt)
	}

	xNew := x
	for s := 0; s < 6; s++ {
		if dpB5[s] != 0 {
			xNew = xNew.AddScaled(dt*dpB5[s], k[s])
		}
	}
	k[6] = dyn.Derive(xNew, u, t+dt)

	errMax := 0.0
	for i := range x {
		est := 0.0
		for s := range k {
			est += (dpB5[s] - dpB4[s]) * k[s][i]
		}
		scale := math.Abs(x[i]) + math.Abs(dt*k[0][i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(dt*est)/scale)
	}

	return xNew, errMax / tol
}
