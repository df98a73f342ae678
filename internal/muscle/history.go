package muscle

import (
	"fmt"
	"sort"

	"github.com/san-kum/fesim/internal/numeric"
)

// History is the stimulation sequence seen by one dynamics evaluation.
// Durations and Intensities are empty, a single value for every pulse, or
// paired index-wise with Times.
type History[T any] struct {
	Times       []T
	Durations   []T
	Intensities []T
}

// Len is the number of pulses.
func (h History[T]) Len() int { return len(h.Times) }

// Slice returns the pulses in [i, j).
func (h History[T]) Slice(i, j int) History[T] {
	return History[T]{
		Times:       h.Times[i:j],
		Durations:   slicePerPulse(h.Durations, len(h.Times), i, j),
		Intensities: slicePerPulse(h.Intensities, len(h.Times), i, j),
	}
}

func slicePerPulse[T any](values []T, n, i, j int) []T {
	if len(values) == n {
		return values[i:j]
	}
	return values
}

// at is the value of pulse i; a single value applies to every pulse.
func at[T any](values []T, i int) T {
	if len(values) == 1 {
		return values[0]
	}
	return values[i]
}

// Lift converts a float history into any field.
func Lift[T any](f numeric.Field[T], h History[float64]) History[T] {
	return History[T]{
		Times:       numeric.Consts(f, h.Times),
		Durations:   numeric.Consts(f, h.Durations),
		Intensities: numeric.Consts(f, h.Intensities),
	}
}

// Ri is the calcium summation factor of pulse i: 1 for the first pulse and
// 1 + (r0-1)*exp(-(t_i - t_{i-1})/tauc) for the ones after it.
func Ri[T any](f numeric.Field[T], times []T, i int, r0, tauc T) T {
	one := f.Const(1)
	if i == 0 {
		return one
	}
	return f.Add(one, f.Mul(f.Sub(r0, one), Decay(f, f.Sub(times[i], times[i-1]), tauc)))
}

// CnSum is sum_i Ri * lambda_i * exp(-(t - t_i)/tauc) over the pulses with
// t_i <= t. Pulses in the future contribute exactly 0. A nil lambda means 1.
func CnSum[T any](f numeric.Field[T], t T, times []T, r0, tauc T, lambda func(i int) T) T {
	sum := f.Const(0)
	for i := range times {
		w := Ri(f, times, i, r0, tauc)
		if lambda != nil {
			w = f.Mul(w, lambda(i))
		}
		sum = f.Add(sum, Contribution(f, f.Sub(t, times[i]), tauc, w))
	}
	return sum
}

// ActiveValue returns the value paired with the most recent pulse whose time
// has passed. It folds over the pulses in order starting from values[0]; a
// candidate that is zero or non-finite keeps the previous selection.
func ActiveValue[T any](f numeric.Field[T], t T, times, values []T) T {
	if len(values) == 0 {
		return f.Const(0)
	}
	zero := f.Const(0)
	sel := values[0]
	for i := range times {
		cand := f.IfLE(times[i], t, at(values, i), zero)
		sel = f.IfNonZero(cand, cand, sel)
	}
	return sel
}

// Broadcast expands a single value to n pulses and checks the length
// otherwise.
func Broadcast(values []float64, n int) ([]float64, error) {
	if len(values) == 1 && n > 1 {
		out := make([]float64, n)
		for i := range out {
			out[i] = values[0]
		}
		return out, nil
	}
	if len(values) != n {
		return nil, fmt.Errorf("%w: %d values for %d stimulations", ErrLengthMismatch, len(values), n)
	}
	return append([]float64(nil), values...), nil
}

// Window returns the index range of the last k pulses with time <= t.
// k <= 0 keeps every active pulse. When no pulse is active yet the first
// pulse is kept so per-pulse values stay defined; it contributes nothing.
func Window(times []float64, t float64, k int) (int, int) {
	end := sort.Search(len(times), func(i int) bool { return times[i] > t })
	if end == 0 {
		if len(times) == 0 {
			return 0, 0
		}
		return 0, 1
	}
	start := 0
	if k > 0 && end > k {
		start = end - k
	}
	return start, end
}

// Truncate keeps the pulses of h active at t, limited to the last k.
func Truncate(h History[float64], t float64, k int) History[float64] {
	i, j := Window(h.Times, t, k)
	return h.Slice(i, j)
}
