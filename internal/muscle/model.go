// Package muscle implements the FES muscle force and fatigue models.
//
// Every variant shares one set of equations written over numeric.Field, so
// the same code evaluates plain floats for simulation, dual numbers for
// Jacobians and expression graphs for an external optimizer:
//
//	Cn' = CnSum/tauc - Cn/tauc
//	F'  = A*Cn/(Km+Cn)*fl*fv - F/(Tau1 + Tau2*Cn/(Km+Cn))
//
// with CnSum = sum_i Ri*lambda_i*exp(-(t - t_i)/tauc) over the pulses that
// have already occurred. The fatigue variants add relaxing A, Tau1 and Km
// states driven by force.
package muscle

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Model is one muscle's equations and constants plus the stimulation values
// pushed in through the setter hooks. Setters are not safe for concurrent
// use with evaluation.
type Model struct {
	Variant Variant
	Params  Params

	// Muscle suffixes state names when several muscles are composed.
	Muscle string
	// Truncation keeps only the last K pulses in history sums; 0 keeps all.
	Truncation int

	hist History[float64]
}

// Option configures a Model.
type Option func(*Model)

func WithMuscle(name string) Option { return func(m *Model) { m.Muscle = name } }
func WithTruncation(k int) Option   { return func(m *Model) { m.Truncation = k } }
func WithParams(p Params) Option    { return func(m *Model) { m.Params = p } }

// New builds a model with the published constants of its family.
func New(v Variant, opts ...Option) *Model {
	m := &Model{Variant: v, Params: DefaultParams(v.Family)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewDing2003 is the frequency model.
func NewDing2003(opts ...Option) *Model {
	return New(Variant{Family: Ding2003}, opts...)
}

// NewDing2003WithFatigue is the frequency model with fatigue states.
func NewDing2003WithFatigue(opts ...Option) *Model {
	return New(Variant{Family: Ding2003, Fatigue: true}, opts...)
}

// NewDing2007 is the pulse-duration model.
func NewDing2007(opts ...Option) *Model {
	return New(Variant{Family: Ding2007}, opts...)
}

// NewDing2007WithFatigue is the pulse-duration model with fatigue states.
func NewDing2007WithFatigue(opts ...Option) *Model {
	return New(Variant{Family: Ding2007, Fatigue: true}, opts...)
}

// NewHmed2018 is the pulse-intensity model.
func NewHmed2018(opts ...Option) *Model {
	return New(Variant{Family: Hmed2018}, opts...)
}

// NewHmed2018WithFatigue is the pulse-intensity model with fatigue states.
func NewHmed2018WithFatigue(opts ...Option) *Model {
	return New(Variant{Family: Hmed2018, Fatigue: true}, opts...)
}

// Clone returns an independent copy, including the pushed history.
func (m *Model) Clone() *Model {
	c := *m
	c.hist = History[float64]{
		Times:       slices.Clone(m.hist.Times),
		Durations:   slices.Clone(m.hist.Durations),
		Intensities: slices.Clone(m.hist.Intensities),
	}
	return &c
}

func (m *Model) String() string {
	if m.Muscle != "" {
		return m.Variant.String() + "/" + m.Muscle
	}
	return m.Variant.String()
}

const (
	idxCn = iota
	idxF
	idxA
	idxTau1
	idxKm
)

var stateNames = []string{"Cn", "F", "A", "Tau1", "Km"}

// NumStates is 2, or 5 with fatigue.
func (m *Model) NumStates() int {
	if m.Variant.Fatigue {
		return 5
	}
	return 2
}

// StateNames returns the state labels in evaluation order, suffixed with
// "_<muscle>" when withMuscle is set and the model has a muscle name.
func (m *Model) StateNames(withMuscle bool) []string {
	names := slices.Clone(stateNames[:m.NumStates()])
	if withMuscle && m.Muscle != "" {
		for i := range names {
			names[i] += "_" + m.Muscle
		}
	}
	return names
}

// RestValues returns the initial state: Cn=0, F=0, A=a_rest, Tau1=tau1_rest,
// Km=km_rest.
func (m *Model) RestValues() []float64 {
	x := []float64{0, 0}
	if m.Variant.Fatigue {
		x = append(x, m.Params.ARest, m.Params.Tau1Rest, m.Params.KmRest)
	}
	return x
}

// MinPulseDuration is pd0 for the duration family.
func (m *Model) MinPulseDuration() (float64, error) {
	if m.Variant.Family != Ding2007 {
		return 0, fmt.Errorf("%w: %s has no pulse duration", ErrUnsupported, m.Variant)
	}
	return m.Params.PD0, nil
}

// MinPulseIntensity is the intensity at which lambda reaches zero,
// atanh(-cr)/bs + Is, for the intensity family.
func (m *Model) MinPulseIntensity() (float64, error) {
	if m.Variant.Family != Hmed2018 {
		return 0, fmt.Errorf("%w: %s has no pulse intensity", ErrUnsupported, m.Variant)
	}
	p := m.Params
	return math.Atanh(-p.CR)/p.BS + p.IS, nil
}

// IdentifiableParameters returns the values an identification layer fits.
func (m *Model) IdentifiableParameters() map[string]float64 {
	return m.Params.values(identifiable(m.Variant))
}

// GetParams returns every constant used by the variant's equations.
func (m *Model) GetParams() map[string]float64 {
	return m.Params.values(paramNames(m.Variant))
}

// SetParam overwrites one constant by name.
func (m *Model) SetParam(name string, value float64) error {
	return m.Params.set(m.Variant, name, value)
}

// History returns the stimulation values pushed through the setters.
func (m *Model) History() History[float64] { return m.hist }

// ResetHistory drops every pushed stimulation value.
func (m *Model) ResetHistory() { m.hist = History[float64]{} }

// SetPulseApparitionTime replaces the stimulation times. Per-pulse values
// already set must still match the new count.
func (m *Model) SetPulseApparitionTime(times []float64) error {
	for i := 1; i < len(times); i++ {
		if times[i] < times[i-1] {
			return fmt.Errorf("%w: t[%d]=%g after t[%d]=%g", ErrUnordered, i, times[i], i-1, times[i-1])
		}
	}
	for _, vs := range [][]float64{m.hist.Durations, m.hist.Intensities} {
		if len(vs) > 1 && len(vs) != len(times) {
			return fmt.Errorf("%w: %d values for %d stimulations", ErrLengthMismatch, len(vs), len(times))
		}
	}
	m.hist.Times = slices.Clone(times)

	var err error
	if len(m.hist.Durations) == 1 {
		m.hist.Durations, err = Broadcast(m.hist.Durations, len(times))
	}
	if len(m.hist.Intensities) == 1 && err == nil {
		m.hist.Intensities, err = Broadcast(m.hist.Intensities, len(times))
	}
	return err
}

// SetImpulseDuration sets one duration per pulse, broadcasting a single value.
func (m *Model) SetImpulseDuration(durations []float64) error {
	minimum, err := m.MinPulseDuration()
	if err != nil {
		return err
	}
	ds, err := m.perPulse(durations, minimum, "pulse duration")
	if err != nil {
		return err
	}
	m.hist.Durations = ds
	return nil
}

// SetImpulseIntensity sets one intensity per pulse, broadcasting a single value.
func (m *Model) SetImpulseIntensity(intensities []float64) error {
	minimum, err := m.MinPulseIntensity()
	if err != nil {
		return err
	}
	is, err := m.perPulse(intensities, minimum, "pulse intensity")
	if err != nil {
		return err
	}
	m.hist.Intensities = is
	return nil
}

func (m *Model) perPulse(values []float64, minimum float64, what string) ([]float64, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no %s given", ErrLengthMismatch, what)
	}
	for i, v := range values {
		if math.IsNaN(v) || v < minimum {
			return nil, fmt.Errorf("%w: %s %g at index %d is under %g", ErrBelowMinimum, what, v, i, minimum)
		}
	}
	n := len(m.hist.Times)
	if n == 0 {
		return slices.Clone(values), nil
	}
	return Broadcast(values, n)
}

// Validate checks that the pushed history is complete for the variant.
func (m *Model) Validate() error {
	h := m.hist
	var errs []error
	if len(h.Times) == 0 {
		errs = append(errs, fmt.Errorf("%w: no stimulation times", ErrLengthMismatch))
	}
	switch m.Variant.Family {
	case Ding2007:
		if len(h.Durations) != len(h.Times) {
			errs = append(errs, fmt.Errorf("%w: %d pulse durations for %d stimulations", ErrLengthMismatch, len(h.Durations), len(h.Times)))
		}
	case Hmed2018:
		if len(h.Intensities) != len(h.Times) {
			errs = append(errs, fmt.Errorf("%w: %d pulse intensities for %d stimulations", ErrLengthMismatch, len(h.Intensities), len(h.Times)))
		}
	}
	return errors.Join(errs...)
}
