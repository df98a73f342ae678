package muscle

import "github.com/san-kum/fesim/internal/numeric"

// Decay returns exp(-dt/tau). It does not guard dt; see Contribution.
func Decay[T any](f numeric.Field[T], dt, tau T) T {
	return f.Exp(f.Neg(f.Div(dt, tau)))
}

// Contribution returns weight*Decay(dt, tau) when dt >= 0 and exactly 0
// otherwise. A pulse is active from its own apparition time onward, so
// dt == 0 yields the full weight.
func Contribution[T any](f numeric.Field[T], dt, tau, weight T) T {
	zero := f.Const(0)
	return f.IfLE(zero, dt, f.Mul(weight, Decay(f, dt, tau)), zero)
}
