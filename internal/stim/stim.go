// Package stim builds stimulation pulse trains and pushes them into muscle
// models before a run.
package stim

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/san-kum/fesim/internal/muscle"
)

var (
	ErrPulseModeNotImplemented = errors.New("stim: pulse mode not implemented")
	ErrNonIntegerStimCount     = errors.New("stim: non-integer stimulation count")
	ErrOverlappingPulses       = errors.New("stim: pulse times collide after mode expansion")
	ErrInvalidFrequency        = errors.New("stim: frequency must be positive")
	ErrEmptyTrain              = errors.New("stim: no stimulation times")
)

// Mode repeats every base pulse as a burst.
type Mode string

const (
	Single  Mode = "single"
	Doublet Mode = "doublet"
	Triplet Mode = "triplet"
)

const (
	doubletStep = 0.005
	tripletStep = 0.010
)

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return Single, nil
	}
	if _, err := m.offsets(); err != nil {
		return "", err
	}
	return m, nil
}

func (m Mode) offsets() ([]float64, error) {
	switch m {
	case Single, "":
		return nil, nil
	case Doublet:
		return []float64{doubletStep}, nil
	case Triplet:
		return []float64{doubletStep, tripletStep}, nil
	}
	return nil, fmt.Errorf("%w: pulse mode %q not yet implemented, use single, doublet or triplet", ErrPulseModeNotImplemented, string(m))
}

// PulsesPerBurst is 1, 2 or 3.
func (m Mode) PulsesPerBurst() int {
	o, _ := m.offsets()
	return len(o) + 1
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

// ExpandMode adds the burst pulses of mode after each base time, rounded to
// the millisecond, and returns the sorted sequence. Colliding times are an
// error.
func ExpandMode(times []float64, mode Mode) ([]float64, error) {
	offsets, err := mode.offsets()
	if err != nil {
		return nil, err
	}

	out := slices.Clone(times)
	for _, off := range offsets {
		for _, t := range times {
			out = append(out, round3(t+off))
		}
	}
	slices.Sort(out)

	for i := 1; i < len(out); i++ {
		if out[i] == out[i-1] {
			return nil, fmt.Errorf("%w: two pulses at %gs", ErrOverlappingPulses, out[i])
		}
	}
	return out, nil
}

// Regular returns n times spaced 1/frequency apart from 0.
func Regular(frequency float64, n int) ([]float64, error) {
	if frequency <= 0 || math.IsNaN(frequency) || math.IsInf(frequency, 0) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidFrequency, frequency)
	}
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i) / frequency
	}
	return times, nil
}

// TimesFromFrequencyAndFinalTime places final_time*frequency pulses. A
// fractional count is rounded down when roundDown is set and rejected
// otherwise.
func TimesFromFrequencyAndFinalTime(frequency, finalTime float64, roundDown bool) ([]float64, error) {
	if frequency <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidFrequency, frequency)
	}
	count := finalTime * frequency
	if !roundDown && count != math.Trunc(count) {
		return nil, fmt.Errorf("%w: %g pulses; the number of stimulation needs to be integer within the final time, set round down or make final_time * frequency an integer",
			ErrNonIntegerStimCount, count)
	}
	return Regular(frequency, int(count))
}

// TimesFromFrequencyAndNStim places n pulses and returns the final time
// n/frequency that covers them.
func TimesFromFrequencyAndNStim(frequency float64, n int) ([]float64, float64, error) {
	times, err := Regular(frequency, n)
	if err != nil {
		return nil, 0, err
	}
	return times, float64(n) / frequency, nil
}

// Train is a validated pulse sequence with optional per-pulse values.
type Train struct {
	Times       []float64
	Durations   []float64
	Intensities []float64
	Mode        Mode
}

// Build expands base times by mode and broadcasts single durations or
// intensities to every resulting pulse. Lists must already match the
// expanded count.
func Build(times []float64, mode Mode, durations, intensities []float64) (*Train, error) {
	if len(times) == 0 {
		return nil, ErrEmptyTrain
	}
	if !slices.IsSorted(times) {
		return nil, fmt.Errorf("%w: %v", muscle.ErrUnordered, times)
	}

	expanded, err := ExpandMode(times, mode)
	if err != nil {
		return nil, err
	}

	tr := &Train{Times: expanded, Mode: mode}
	if len(durations) > 0 {
		if tr.Durations, err = muscle.Broadcast(durations, len(expanded)); err != nil {
			return nil, fmt.Errorf("pulse_duration list must have the same length as n_stim: %w", err)
		}
	}
	if len(intensities) > 0 {
		if tr.Intensities, err = muscle.Broadcast(intensities, len(expanded)); err != nil {
			return nil, fmt.Errorf("pulse_intensity list must have the same length as n_stim: %w", err)
		}
	}
	return tr, nil
}

func (tr *Train) N() int { return len(tr.Times) }

// History is the train as a float history.
func (tr *Train) History() muscle.History[float64] {
	return muscle.History[float64]{Times: tr.Times, Durations: tr.Durations, Intensities: tr.Intensities}
}

// MeanFrequency is the average pulse rate between the first and last pulse.
func (tr *Train) MeanFrequency() float64 {
	if len(tr.Times) < 2 {
		return 0
	}
	span := tr.Times[len(tr.Times)-1] - tr.Times[0]
	return float64(len(tr.Times)-1) / span
}

// Validate checks the train against the model's minimums and the values
// its family needs. It collects every problem.
func (tr *Train) Validate(m *muscle.Model) error {
	var errs []error

	switch m.Variant.Family {
	case muscle.Ding2007:
		minimum, _ := m.MinPulseDuration()
		if len(tr.Durations) == 0 {
			errs = append(errs, fmt.Errorf("%w: %s needs pulse durations", muscle.ErrLengthMismatch, m.Variant))
		}
		for i, d := range tr.Durations {
			if d < minimum {
				errs = append(errs, fmt.Errorf("Pulse duration must be greater than minimum pulse duration: %w: pulse %d is %gs, minimum %gs", muscle.ErrBelowMinimum, i, d, minimum))
			}
		}
	case muscle.Hmed2018:
		minimum, _ := m.MinPulseIntensity()
		if len(tr.Intensities) == 0 {
			errs = append(errs, fmt.Errorf("%w: %s needs pulse intensities", muscle.ErrLengthMismatch, m.Variant))
		}
		for i, v := range tr.Intensities {
			if v < minimum {
				errs = append(errs, fmt.Errorf("Pulse intensity must be greater than minimum pulse intensity: %w: pulse %d is %gmA, minimum %gmA", muscle.ErrBelowMinimum, i, v, minimum))
			}
		}
	}

	return errors.Join(errs...)
}

// Apply validates the train and pushes it into m through the setter hooks.
func (tr *Train) Apply(m *muscle.Model) error {
	if err := tr.Validate(m); err != nil {
		return err
	}
	m.ResetHistory()
	if err := m.SetPulseApparitionTime(tr.Times); err != nil {
		return err
	}
	switch m.Variant.Family {
	case muscle.Ding2007:
		return m.SetImpulseDuration(tr.Durations)
	case muscle.Hmed2018:
		return m.SetImpulseIntensity(tr.Intensities)
	}
	return nil
}
