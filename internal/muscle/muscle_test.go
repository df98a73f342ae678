package muscle

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/fesim/internal/dynamo"
	"github.com/san-kum/fesim/internal/integrators"
	"github.com/san-kum/fesim/internal/numeric"
)

func configured(t *testing.T, m *Model, times, durations, intensities []float64) *Model {
	t.Helper()
	if err := m.SetPulseApparitionTime(times); err != nil {
		t.Fatal(err)
	}
	if durations != nil {
		if err := m.SetImpulseDuration(durations); err != nil {
			t.Fatal(err)
		}
	}
	if intensities != nil {
		if err := m.SetImpulseIntensity(intensities); err != nil {
			t.Fatal(err)
		}
	}
	return m
}

// integrate runs RK4 with one step per interval on t_i = i*dt and returns F.
func integrate(m *Model, finalTime float64, n int) []float64 {
	sys := NewSystem(m)
	integ := integrators.NewRK4()
	dt := finalTime / float64(n)

	x := sys.RestState()
	force := []float64{x[idxF]}
	for i := 0; i < n; i++ {
		x = integ.Step(sys, x, nil, float64(i)*dt, dt)
		force = append(force, x[idxF])
	}
	return force
}

func TestStateNamesMatchRestValues(t *testing.T) {
	for _, v := range Variants() {
		m := New(v, WithMuscle("biceps"))
		names, rest := m.StateNames(false), m.RestValues()
		if len(names) != len(rest) || len(names) != m.NumStates() {
			t.Errorf("%s: %d names, %d rest values, %d states", v, len(names), len(rest), m.NumStates())
		}
		if got := m.StateNames(true)[1]; got != "F_biceps" {
			t.Errorf("%s: suffixed name = %q", v, got)
		}
	}

	m := NewDing2003WithFatigue()
	want := []float64{0, 0, 3009, 0.050957, 0.103}
	for i, v := range m.RestValues() {
		if v != want[i] {
			t.Errorf("rest[%d] = %v, want %v", i, v, want[i])
		}
	}
	if got := NewDing2007WithFatigue().RestValues()[idxA]; got != 4920 {
		t.Errorf("duration model A rest = %v, want a_scale", got)
	}
}

func TestParseVariant(t *testing.T) {
	for _, v := range Variants() {
		got, err := ParseVariant(v.String())
		if err != nil || got != v {
			t.Errorf("ParseVariant(%q) = %v, %v", v.String(), got, err)
		}
	}
	if v, err := ParseVariant("Hmed2018-fatigue"); err != nil || v != (Variant{Family: Hmed2018, Fatigue: true}) {
		t.Errorf("alias parse = %v, %v", v, err)
	}
	if _, err := ParseVariant("veltink1992"); !errors.Is(err, ErrUnknownVariant) {
		t.Errorf("err = %v, want ErrUnknownVariant", err)
	}
}

func TestContribution(t *testing.T) {
	f := numeric.Float{}
	for _, dt := range []float64{-1, -1e-300, math.Inf(-1)} {
		if got := Contribution[float64](f, dt, 0.02, 3); got != 0 || math.Signbit(got) {
			t.Errorf("contribution(%v) = %v, want exactly 0", dt, got)
		}
	}
	if got := Contribution[float64](f, 0, 0.02, 3); got != 3 {
		t.Errorf("contribution at own apparition time = %v, want 3", got)
	}
	if got, want := Contribution[float64](f, 0.01, 0.02, 2), 2*math.Exp(-0.5); got != want {
		t.Errorf("contribution(0.01) = %v, want %v", got, want)
	}
}

func TestDynamicsFirstPulse(t *testing.T) {
	m := configured(t, NewDing2003(), []float64{0}, nil, nil)
	dx := NewSystem(m).Derive(m.RestValues(), nil, 0)
	if math.Abs(dx[idxCn]-50) > 1e-12 || dx[idxF] != 0 {
		t.Errorf("derivative at rest = %v, want [50 0]", dx)
	}

	// a pulse in the future leaves the muscle at rest
	m = configured(t, NewDing2003(), []float64{0.1}, nil, nil)
	if dx := NewSystem(m).Derive(m.RestValues(), nil, 0.05); dx[idxCn] != 0 || dx[idxF] != 0 {
		t.Errorf("derivative before first pulse = %v", dx)
	}
}

func TestDynamicsDeterministic(t *testing.T) {
	for _, v := range Variants() {
		m := New(v)
		times := []float64{0, 0.01, 0.02}
		if err := m.SetPulseApparitionTime(times); err != nil {
			t.Fatal(err)
		}
		_ = m.SetImpulseDuration([]float64{0.0003})
		_ = m.SetImpulseIntensity([]float64{50})

		sys := NewSystem(m)
		x := dynamo.State(m.RestValues())
		x[idxCn], x[idxF] = 0.4, 12
		a, b := sys.Derive(x, nil, 0.015), sys.Derive(x, nil, 0.015)
		for i := range a {
			if a[i] != b[i] || math.IsNaN(a[i]) {
				t.Errorf("%s: component %d %v vs %v", v, i, a[i], b[i])
			}
		}
	}
}

func TestReferenceForces(t *testing.T) {
	base := []float64{0, 0.1, 0.2}
	doublet := []float64{0, 0.005, 0.1, 0.105, 0.2, 0.205}
	triplet := []float64{0, 0.005, 0.01, 0.1, 0.105, 0.11, 0.2, 0.205, 0.21}

	tests := []struct {
		name        string
		model       *Model
		times       []float64
		durations   []float64
		intensities []float64
		n           int
		mid, end    float64
	}{
		{"ding2003", NewDing2003(), base, nil, nil, 300, 91.80567367377697, 131.36141448855284},
		{"ding2003 fatigue", NewDing2003WithFatigue(), base, nil, nil, 300, 92.47272524474053, 140.08443077501863},
		{"ding2003 fatigue doublet", NewDing2003WithFatigue(), doublet, nil, nil, 300, 129.20173193528873, 204.32341945760993},
		{"ding2003 fatigue triplet", NewDing2003WithFatigue(), triplet, nil, nil, 300, 148.0019331088371, 238.6839192670876},
		{"ding2007 scalar", NewDing2007(), base, []float64{0.0003}, nil, 30, 28.116838973337046, 36.263299814887766},
		{"ding2007 list", NewDing2007(), base, []float64{0.0003, 0.0004, 0.0005}, nil, 30, 28.116838973337046, 51.68572030372867},
		{"ding2007 fatigue scalar", NewDing2007WithFatigue(), base, []float64{0.0003}, nil, 30, 28.3477940849177, 38.25981953994852},
		{"ding2007 fatigue list", NewDing2007WithFatigue(), base, []float64{0.0003, 0.0004, 0.0005}, nil, 30, 28.3477940849177, 54.99264277880504},
		{"hmed2018 scalar", NewHmed2018(), base, nil, []float64{50}, 30, 41.919149060781905, 57.52368033991404},
		{"hmed2018 list", NewHmed2018(), base, nil, []float64{50, 60, 70}, 30, 41.91914906078192, 90.43032549879167},
		{"hmed2018 fatigue scalar", NewHmed2018WithFatigue(), base, nil, []float64{50}, 30, 42.18211764372108, 60.31613669576681},
		{"hmed2018 fatigue list", NewHmed2018WithFatigue(), base, nil, []float64{50, 60, 70}, 30, 42.18211764372109, 94.48614428838563},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := configured(t, tt.model, tt.times, tt.durations, tt.intensities)
			force := integrate(m, 0.3, tt.n)

			if force[0] != 0 {
				t.Errorf("F[0] = %v, want 0", force[0])
			}
			if force[1] <= 0 {
				t.Errorf("F[1] = %v, want force to rise from 0", force[1])
			}
			mid := tt.n / 3
			if math.Abs(force[mid]-tt.mid) > 1e-6 {
				t.Errorf("F[%d] = %.12f, want %.12f", mid, force[mid], tt.mid)
			}
			if got := force[len(force)-1]; math.Abs(got-tt.end) > 1e-6 {
				t.Errorf("F[end] = %.12f, want %.12f", got, tt.end)
			}
		})
	}
}

func TestBroadcastEquivalence(t *testing.T) {
	times := []float64{0, 0.1, 0.2}

	scalar := integrate(configured(t, NewHmed2018(), times, nil, []float64{55}), 0.3, 30)
	list := integrate(configured(t, NewHmed2018(), times, nil, []float64{55, 55, 55}), 0.3, 30)
	for i := range scalar {
		if scalar[i] != list[i] {
			t.Fatalf("F[%d]: scalar %v, list %v", i, scalar[i], list[i])
		}
	}

	// a single value set before the times is broadcast once they are known
	m := NewDing2007()
	if err := m.SetImpulseDuration([]float64{0.0003}); err != nil {
		t.Fatal(err)
	}
	if err := m.SetPulseApparitionTime(times); err != nil {
		t.Fatal(err)
	}
	if got := m.History().Durations; len(got) != 3 || got[2] != 0.0003 {
		t.Errorf("durations = %v", got)
	}
}

func TestConfigurationErrors(t *testing.T) {
	times := []float64{0, 0.1, 0.2}

	m := configured(t, NewDing2007(), times, nil, nil)
	if err := m.SetImpulseDuration([]float64{0.0001}); !errors.Is(err, ErrBelowMinimum) {
		t.Errorf("short duration: err = %v, want ErrBelowMinimum", err)
	}
	if err := m.SetImpulseDuration([]float64{0.0003, 0.0004}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("two durations for three pulses: err = %v, want ErrLengthMismatch", err)
	}
	if err := m.Validate(); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("missing durations: err = %v, want ErrLengthMismatch", err)
	}

	h := configured(t, NewHmed2018(), times, nil, nil)
	if err := h.SetImpulseIntensity([]float64{50, 10, 50}); !errors.Is(err, ErrBelowMinimum) {
		t.Errorf("low intensity: err = %v, want ErrBelowMinimum", err)
	}

	if err := NewDing2003().SetImpulseDuration([]float64{0.0003}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("duration on frequency model: err = %v, want ErrUnsupported", err)
	}
	if _, err := NewDing2007().MinPulseIntensity(); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
	if err := NewDing2003().SetPulseApparitionTime([]float64{0.1, 0}); !errors.Is(err, ErrUnordered) {
		t.Errorf("err = %v, want ErrUnordered", err)
	}
}

func TestMinimums(t *testing.T) {
	pd, err := NewDing2007().MinPulseDuration()
	if err != nil || pd != 0.000131405 {
		t.Errorf("MinPulseDuration = %v, %v", pd, err)
	}
	in, err := NewHmed2018().MinPulseIntensity()
	if err != nil || math.Abs(in-17.02854931878943) > 1e-9 {
		t.Errorf("MinPulseIntensity = %v, %v", in, err)
	}
	if got := intensityFactor[float64](numeric.Float{}, DefaultParams(Hmed2018), in); math.Abs(got) > 1e-12 {
		t.Errorf("lambda at minimum intensity = %v, want 0", got)
	}
}

func TestParams(t *testing.T) {
	m := NewDing2007WithFatigue()
	if err := m.SetParam("a_scale", 5000); err != nil {
		t.Fatal(err)
	}
	if m.RestValues()[idxA] != 5000 {
		t.Error("a_scale did not move the A rest value")
	}
	if err := m.SetParam("ar", 1); !errors.Is(err, ErrUnknownParam) {
		t.Errorf("err = %v, want ErrUnknownParam", err)
	}

	ids := NewHmed2018().IdentifiableParameters()
	for _, name := range []string{"a_rest", "tau1_rest", "km_rest", "tau2", "ar", "bs", "Is", "cr"} {
		if _, ok := ids[name]; !ok {
			t.Errorf("missing identifiable %q", name)
		}
	}
	if got := NewDing2003WithFatigue().GetParams()["tau_fat"]; got != 127 {
		t.Errorf("tau_fat = %v", got)
	}
}

func TestJacobianMatchesFiniteDifference(t *testing.T) {
	for _, v := range Variants() {
		m := New(v)
		_ = m.SetPulseApparitionTime([]float64{0, 0.02, 0.04})
		_ = m.SetImpulseDuration([]float64{0.0003, 0.0004, 0.0005})
		_ = m.SetImpulseIntensity([]float64{40, 60, 80})
		sys := NewSystem(m)

		x := dynamo.State(m.RestValues())
		x[idxCn], x[idxF] = 0.6, 30
		u := dynamo.Control{0.9, 1.1}
		tm := 0.05

		jac := sys.Jacobian(x, u, tm)
		for j := range x {
			h := 1e-6 * math.Max(1, math.Abs(x[j]))
			xp, xm := x.Clone(), x.Clone()
			xp[j] += h
			xm[j] -= h
			fp, fm := sys.Derive(xp, u, tm), sys.Derive(xm, u, tm)
			for i := range x {
				fd := (fp[i] - fm[i]) / (2 * h)
				if math.Abs(jac.At(i, j)-fd) > 1e-5*math.Max(1, math.Abs(fd)) {
					t.Errorf("%s: J[%d][%d] = %v, finite difference %v", v, i, j, jac.At(i, j), fd)
				}
			}
		}
	}
}

func TestSymbolicMatchesFloat(t *testing.T) {
	times := []float64{0, 0.02, 0.04}
	values := map[Family][]float64{
		Ding2007: {0.0003, 0.0004, 0.0005},
		Hmed2018: {40, 60, 80},
	}

	for _, v := range Variants() {
		m := New(v, WithMuscle("quad"))
		s := m.Symbolic(len(times))
		fn, err := s.Compile()
		if err != nil {
			t.Fatalf("%s: %v", v, err)
		}

		x := m.RestValues()
		x[idxCn], x[idxF] = 0.6, 30

		for _, tm := range []float64{0, 0.03, 0.05} {
			in := append([]float64{tm}, x...)
			in = append(in, 1, 1)
			in = append(in, times...)
			in = append(in, values[v.Family]...)

			got, err := fn.Call(in)
			if err != nil {
				t.Fatalf("%s: %v", v, err)
			}

			h := History[float64]{Times: times}
			if v.Family == Ding2007 {
				h.Durations = values[v.Family]
			} else if v.Family == Hmed2018 {
				h.Intensities = values[v.Family]
			}
			want := Dynamics[float64](numeric.Float{}, m, tm, x, h)
			for i := range want {
				if math.Abs(got[i]-want[i]) > 1e-9*math.Max(1, math.Abs(want[i])) {
					t.Errorf("%s t=%v: component %d = %v, want %v", v, tm, i, got[i], want[i])
				}
			}
		}

		if jac := s.StateJacobian(); len(jac) != m.NumStates() || len(jac[0]) != m.NumStates() {
			t.Errorf("%s: jacobian shape %dx%d", v, len(jac), len(jac[0]))
		}
	}
}
