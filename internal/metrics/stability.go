package metrics

import "github.com/san-kum/fesim/internal/dynamo"

// Stability is the fraction of samples whose force is finite and not
// negative beyond tolerance.
type Stability struct {
	name       string
	index      int
	tolerance  float64
	violations int
	samples    int
}

func NewStability(index int, tolerance float64) *Stability {
	return &Stability{
		name:      "stability",
		index:     index,
		tolerance: tolerance,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(x dynamo.State, u dynamo.Control, t float64) {
	s.samples++
	if !x.IsValid() || x[s.index] < -s.tolerance {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
