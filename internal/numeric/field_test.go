package numeric

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/num/dual"
)

// logistic-ish expression exercising every operation
func expr[T any](f Field[T], x T) T {
	num := f.Mul(f.Exp(f.Neg(x)), f.Tanh(x))
	den := f.Add(f.Const(1), f.Mul(x, x))
	return f.Sub(f.Div(num, den), f.Const(0.5))
}

func TestFloatField(t *testing.T) {
	f := Float{}
	x := 0.7
	want := math.Exp(-x)*math.Tanh(x)/(1+x*x) - 0.5
	if got := expr[float64](f, x); math.Abs(got-want) > 1e-15 {
		t.Errorf("expr(%v) = %v, want %v", x, got, want)
	}
}

func TestDualMatchesFiniteDifference(t *testing.T) {
	f := Dual{}
	for _, x := range []float64{-1.2, 0, 0.3, 2.5} {
		got := expr[dual.Number](f, dual.Number{Real: x, Emag: 1})

		h := 1e-6
		fd := (expr[float64](Float{}, x+h) - expr[float64](Float{}, x-h)) / (2 * h)

		if math.Abs(got.Real-expr[float64](Float{}, x)) > 1e-14 {
			t.Errorf("real part at %v = %v", x, got.Real)
		}
		if math.Abs(got.Emag-fd) > 1e-7 {
			t.Errorf("derivative at %v = %v, finite difference %v", x, got.Emag, fd)
		}
	}
}

func TestSelectPrimitives(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"le strict", Float{}.IfLE(1, 2, 10, 20), 10},
		{"le equal", Float{}.IfLE(2, 2, 10, 20), 10},
		{"le greater", Float{}.IfLE(3, 2, 10, 20), 20},
		{"nonzero", Float{}.IfNonZero(0.1, 10, 20), 10},
		{"zero", Float{}.IfNonZero(0, 10, 20), 20},
		{"nan", Float{}.IfNonZero(math.NaN(), 10, 20), 20},
		{"inf", Float{}.IfNonZero(math.Inf(1), 10, 20), 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	d := Dual{}.IfLE(dual.Number{Real: 1, Emag: 5}, dual.Number{Real: 1}, dual.Number{Real: 3, Emag: 7}, dual.Number{})
	if d.Real != 3 || d.Emag != 7 {
		t.Errorf("dual IfLE picked %+v", d)
	}
}

func TestSumAndSeed(t *testing.T) {
	if got := Sum[float64](Float{}); got != 0 {
		t.Errorf("empty sum = %v", got)
	}
	if got := Sum[float64](Float{}, 1, 2, 3.5); got != 6.5 {
		t.Errorf("sum = %v", got)
	}

	s := Seed([]float64{1, 2, 3}, 1)
	if s[0].Emag != 0 || s[1].Emag != 1 || s[2].Emag != 0 || s[2].Real != 3 {
		t.Errorf("seed = %+v", s)
	}
}
