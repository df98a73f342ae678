package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/fesim/internal/dynamo"
)

func feed(m dynamo.Metric, forces []float64, dt float64) {
	m.Reset()
	for i, f := range forces {
		m.Observe(dynamo.State{0, f, 3009 - float64(i)}, nil, float64(i)*dt)
	}
}

func TestPeakForce(t *testing.T) {
	m := NewPeakForce(1)
	feed(m, []float64{0, 10, 40, 25}, 0.1)
	if m.Value() != 40 || math.Abs(m.Time()-0.2) > 1e-12 {
		t.Errorf("peak = %v at %v, want 40 at 0.2", m.Value(), m.Time())
	}
	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero after reset")
	}
}

func TestForceImpulse(t *testing.T) {
	m := NewForceImpulse(1)
	feed(m, []float64{0, 10, 10, 0}, 0.5)
	// trapezoids: 2.5 + 5 + 2.5
	if math.Abs(m.Value()-10) > 1e-12 {
		t.Errorf("impulse = %v, want 10", m.Value())
	}
}

func TestFatigueIndex(t *testing.T) {
	m := NewFatigueIndex(2)
	feed(m, []float64{0, 1, 2, 3}, 1)
	if want := 3006.0 / 3009.0; math.Abs(m.Value()-want) > 1e-12 {
		t.Errorf("fatigue index = %v, want %v", m.Value(), want)
	}

	none := NewFatigueIndex(-1)
	feed(none, []float64{0, 1}, 1)
	if none.Value() != 1 {
		t.Errorf("no-fatigue index = %v, want 1", none.Value())
	}
}

func TestStability(t *testing.T) {
	tests := []struct {
		name   string
		forces []float64
		want   float64
	}{
		{"clean", []float64{0, 1, 2, 3}, 1},
		{"negative", []float64{0, -1, 2, 3}, 0.75},
		{"nan", []float64{math.NaN(), 1}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewStability(1, 1e-9)
			feed(m, tt.forces, 0.1)
			if math.Abs(m.Value()-tt.want) > 1e-12 {
				t.Errorf("stability = %v, want %v", m.Value(), tt.want)
			}
		})
	}
}

func TestStandardNames(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range Standard(1, -1) {
		seen[m.Name()] = true
	}
	for _, name := range []string{"peak_force", "force_impulse", "fatigue_index", "stability"} {
		if !seen[name] {
			t.Errorf("missing metric %q", name)
		}
	}
}
