package muscle

import "github.com/san-kum/fesim/internal/numeric"

// Dynamics evaluates the state derivative at time t with unit force-length
// and force-velocity coupling.
func Dynamics[T any](f numeric.Field[T], m *Model, t T, x []T, h History[T]) []T {
	one := f.Const(1)
	return DynamicsCoupled(f, m, t, x, h, one, one)
}

// DynamicsCoupled evaluates the state derivative with the given force-length
// (fl) and force-velocity (fv) coefficients. It is pure: the result depends
// only on its arguments and the model constants.
func DynamicsCoupled[T any](f numeric.Field[T], m *Model, t T, x []T, h History[T], fl, fv T) []T {
	p := m.Params
	c := func(v float64) T { return f.Const(v) }

	cn, force := x[idxCn], x[idxF]
	a, tau1, km := c(p.ARest), c(p.Tau1Rest), c(p.KmRest)
	if m.Variant.Fatigue {
		a, tau1, km = x[idxA], x[idxTau1], x[idxKm]
	}

	tauc := c(p.TauC)
	r0 := f.Add(km, c(p.R0KmRelationship))

	var lambda func(int) T
	if m.Variant.Family == Hmed2018 {
		lambda = func(i int) T { return intensityFactor(f, p, at(h.Intensities, i)) }
	}

	sum := CnSum(f, t, h.Times, r0, tauc, lambda)
	cnDot := f.Sub(f.Div(sum, tauc), f.Div(cn, tauc))

	aEff := a
	if m.Variant.Family == Ding2007 {
		if !m.Variant.Fatigue {
			aEff = c(p.AScale)
		}
		pd := ActiveValue(f, t, h.Times, h.Durations)
		aEff = durationScaled(f, p, aEff, pd)
	}

	bind := f.Div(cn, f.Add(km, cn))
	drive := f.Mul(f.Mul(f.Mul(aEff, bind), fl), fv)
	decline := f.Div(force, f.Add(tau1, f.Mul(c(p.Tau2), bind)))
	fDot := f.Sub(drive, decline)

	if !m.Variant.Fatigue {
		return []T{cnDot, fDot}
	}

	tauFat := c(p.TauFat)
	relax := func(v T, rest, alpha float64) T {
		return f.Add(f.Neg(f.Div(f.Sub(v, c(rest)), tauFat)), f.Mul(c(alpha), force))
	}
	return []T{
		cnDot,
		fDot,
		relax(a, p.ARest, p.AlphaA),
		relax(tau1, p.Tau1Rest, p.AlphaTau1),
		relax(km, p.KmRest, p.AlphaKm),
	}
}

// durationScaled is a*(1 - exp(-(pd - pd0)/pdt)).
func durationScaled[T any](f numeric.Field[T], p Params, a, pd T) T {
	return f.Mul(a, f.Sub(f.Const(1), Decay(f, f.Sub(pd, f.Const(p.PD0)), f.Const(p.PDT))))
}

// intensityFactor is ar*(tanh(bs*(I - Is)) + cr).
func intensityFactor[T any](f numeric.Field[T], p Params, intensity T) T {
	return f.Mul(f.Const(p.AR), f.Add(f.Tanh(f.Mul(f.Const(p.BS), f.Sub(intensity, f.Const(p.IS)))), f.Const(p.CR)))
}
