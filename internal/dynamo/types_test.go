package dynamo

import (
	"math"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"rest", State{0, 0, 3009, 0.050957, 0.103}, true},
		{"with NaN", State{1.0, math.NaN()}, false},
		{"with +Inf", State{1.0, math.Inf(1)}, false},
		{"with -Inf", State{1.0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestState_Arithmetic(t *testing.T) {
	a := State{1, 2, 3}
	b := State{4, 5, 6}

	if sum := a.Add(b); sum[0] != 5 || sum[1] != 7 || sum[2] != 9 {
		t.Errorf("Add failed: got %v", sum)
	}
	if diff := b.Sub(a); diff[0] != 3 || diff[1] != 3 || diff[2] != 3 {
		t.Errorf("Sub failed: got %v", diff)
	}
	if s := a.AddScaled(0.5, b); s[0] != 3 || s[1] != 4.5 || s[2] != 6 {
		t.Errorf("AddScaled failed: got %v", s)
	}
	if n := (State{3, 4}).Norm(); math.Abs(n-5) > 1e-12 {
		t.Errorf("Norm = %v, want 5", n)
	}
	if a[0] != 1 {
		t.Error("arithmetic mutated its receiver")
	}
}

func TestConfig_StepCount(t *testing.T) {
	tests := []struct {
		cfg  Config
		want int
	}{
		{Config{Dt: 0.001, Duration: 0.3}, 300},
		{Config{Dt: 0.01, Duration: 0.3}, 30},
		{Config{Dt: 0.1, Duration: 1}, 10},
		{Config{Dt: 0.1, Duration: 1, Steps: 4}, 4},
	}
	for _, tt := range tests {
		if got := tt.cfg.StepCount(); got != tt.want {
			t.Errorf("StepCount(%+v) = %d, want %d", tt.cfg, got, tt.want)
		}
	}
}
