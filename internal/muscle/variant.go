package muscle

import (
	"fmt"
	"strings"
)

// Family selects which pulse property modulates the force response.
type Family uint8

const (
	// Ding2003 is the frequency model: only pulse timing matters.
	Ding2003 Family = iota
	// Ding2007 scales force by the active pulse duration.
	Ding2007
	// Hmed2018 scales calcium release by each pulse intensity.
	Hmed2018
)

func (f Family) String() string {
	switch f {
	case Ding2003:
		return "ding2003"
	case Ding2007:
		return "ding2007"
	case Hmed2018:
		return "hmed2018"
	}
	return fmt.Sprintf("family(%d)", uint8(f))
}

// Variant is a model family with or without the fatigue states.
type Variant struct {
	Family  Family
	Fatigue bool
}

const fatigueSuffix = "_with_fatigue"

func (v Variant) String() string {
	if v.Fatigue {
		return v.Family.String() + fatigueSuffix
	}
	return v.Family.String()
}

// Variants lists every supported combination.
func Variants() []Variant {
	var out []Variant
	for _, f := range []Family{Ding2003, Ding2007, Hmed2018} {
		out = append(out, Variant{Family: f}, Variant{Family: f, Fatigue: true})
	}
	return out
}

// ParseVariant accepts names such as "ding2003" or "hmed2018-with-fatigue".
func ParseVariant(s string) (Variant, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")

	var v Variant
	if base, ok := strings.CutSuffix(name, fatigueSuffix); ok {
		v.Fatigue = true
		name = base
	} else if base, ok := strings.CutSuffix(name, "_fatigue"); ok {
		v.Fatigue = true
		name = base
	}

	for _, f := range []Family{Ding2003, Ding2007, Hmed2018} {
		if f.String() == name {
			v.Family = f
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

// Description is a one-line summary for listings.
func (v Variant) Description() string {
	var d string
	switch v.Family {
	case Ding2003:
		d = "frequency model (Ding 2003)"
	case Ding2007:
		d = "pulse-duration model (Ding 2007)"
	case Hmed2018:
		d = "pulse-intensity model (Hmed 2018)"
	}
	if v.Fatigue {
		d += " with A, Tau1, Km fatigue states"
	}
	return d
}
