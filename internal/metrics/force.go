package metrics

import (
	"math"

	"github.com/san-kum/fesim/internal/dynamo"
)

// PeakForce tracks the largest force and when it occurred.
type PeakForce struct {
	name   string
	index  int
	peak   float64
	atTime float64
}

func NewPeakForce(index int) *PeakForce {
	return &PeakForce{name: "peak_force", index: index}
}

func (p *PeakForce) Name() string { return p.name }

func (p *PeakForce) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if f := x[p.index]; f > p.peak {
		p.peak = f
		p.atTime = t
	}
}

func (p *PeakForce) Value() float64 { return p.peak }

// Time is when the peak was observed.
func (p *PeakForce) Time() float64 { return p.atTime }

func (p *PeakForce) Reset() {
	p.peak = 0
	p.atTime = 0
}

// ForceImpulse is the trapezoidal time integral of force (N s).
type ForceImpulse struct {
	name  string
	index int
	sum   float64
	prevF float64
	prevT float64
	seen  bool
}

func NewForceImpulse(index int) *ForceImpulse {
	return &ForceImpulse{name: "force_impulse", index: index}
}

func (f *ForceImpulse) Name() string { return f.name }

func (f *ForceImpulse) Observe(x dynamo.State, u dynamo.Control, t float64) {
	force := x[f.index]
	if f.seen {
		f.sum += 0.5 * (force + f.prevF) * (t - f.prevT)
	}
	f.prevF, f.prevT, f.seen = force, t, true
}

func (f *ForceImpulse) Value() float64 { return f.sum }

func (f *ForceImpulse) Reset() {
	f.sum = 0
	f.seen = false
}

// FatigueIndex is A at the last sample over A at the first, 1 for an
// unfatigued muscle. Models without an A state report 1.
type FatigueIndex struct {
	name  string
	index int
	first float64
	last  float64
}

// NewFatigueIndex watches state index (A); a negative index disables it.
func NewFatigueIndex(index int) *FatigueIndex {
	return &FatigueIndex{name: "fatigue_index", index: index}
}

func (fi *FatigueIndex) Name() string { return fi.name }

func (fi *FatigueIndex) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if fi.index < 0 || fi.index >= len(x) {
		return
	}
	if fi.first == 0 {
		fi.first = x[fi.index]
	}
	fi.last = x[fi.index]
}

func (fi *FatigueIndex) Value() float64 {
	if fi.first == 0 || math.IsNaN(fi.last) {
		return 1
	}
	return fi.last / fi.first
}

func (fi *FatigueIndex) Reset() {
	fi.first = 0
	fi.last = 0
}
