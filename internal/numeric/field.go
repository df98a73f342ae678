package numeric

import (
	"math"

	"gonum.org/v1/gonum/num/dual"
)

// Field is a set of scalar operations over T.
type Field[T any] interface {
	Const(v float64) T
	Add(a, b T) T
	Sub(a, b T) T
	Mul(a, b T) T
	Div(a, b T) T
	Neg(a T) T
	Exp(a T) T
	Tanh(a T) T
	// IfLE returns then when a <= b, els otherwise.
	IfLE(a, b, then, els T) T
	// IfNonZero returns then when x is finite and non-zero, els otherwise.
	IfNonZero(x, then, els T) T
}

// Sum adds all terms, returning zero for an empty list.
func Sum[T any](f Field[T], terms ...T) T {
	acc := f.Const(0)
	for _, t := range terms {
		acc = f.Add(acc, t)
	}
	return acc
}

// Consts lifts a float64 slice into the field.
func Consts[T any](f Field[T], vs []float64) []T {
	out := make([]T, len(vs))
	for i, v := range vs {
		out[i] = f.Const(v)
	}
	return out
}

// Float is the float64 field.
type Float struct{}

func (Float) Const(v float64) float64  { return v }
func (Float) Add(a, b float64) float64 { return a + b }
func (Float) Sub(a, b float64) float64 { return a - b }
func (Float) Mul(a, b float64) float64 { return a * b }
func (Float) Div(a, b float64) float64 { return a / b }
func (Float) Neg(a float64) float64    { return -a }
func (Float) Exp(a float64) float64    { return math.Exp(a) }
func (Float) Tanh(a float64) float64   { return math.Tanh(a) }

func (Float) IfLE(a, b, then, els float64) float64 {
	if a <= b {
		return then
	}
	return els
}

func (Float) IfNonZero(x, then, els float64) float64 {
	if x != 0 && !math.IsNaN(x) && !math.IsInf(x, 0) {
		return then
	}
	return els
}

// Dual is the forward-mode differentiation field. Comparisons inside the
// select primitives use the real part only.
type Dual struct{}

func (Dual) Const(v float64) dual.Number      { return dual.Number{Real: v} }
func (Dual) Add(a, b dual.Number) dual.Number { return dual.Add(a, b) }
func (Dual) Sub(a, b dual.Number) dual.Number { return dual.Sub(a, b) }
func (Dual) Mul(a, b dual.Number) dual.Number { return dual.Mul(a, b) }
func (Dual) Div(a, b dual.Number) dual.Number { return dual.Mul(a, dual.Inv(b)) }
func (Dual) Neg(a dual.Number) dual.Number    { return dual.Scale(-1, a) }
func (Dual) Exp(a dual.Number) dual.Number    { return dual.Exp(a) }
func (Dual) Tanh(a dual.Number) dual.Number   { return dual.Tanh(a) }

func (Dual) IfLE(a, b, then, els dual.Number) dual.Number {
	if a.Real <= b.Real {
		return then
	}
	return els
}

func (Dual) IfNonZero(x, then, els dual.Number) dual.Number {
	if x.Real != 0 && !math.IsNaN(x.Real) && !math.IsInf(x.Real, 0) {
		return then
	}
	return els
}

// Seed returns vs as dual numbers with a unit derivative at index wrt.
func Seed(vs []float64, wrt int) []dual.Number {
	out := make([]dual.Number, len(vs))
	for i, v := range vs {
		out[i] = dual.Number{Real: v}
		if i == wrt {
			out[i].Emag = 1
		}
	}
	return out
}
