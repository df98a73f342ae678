package muscle

import (
	"fmt"
	"math"
	"slices"
)

// Params holds the rest and calibration constants of a model.
type Params struct {
	TauC             float64 // calcium decay time constant (s)
	R0KmRelationship float64 // R0 = Km + R0KmRelationship

	ARest    float64 // force scaling at rest (N/s)
	Tau1Rest float64 // force decline time constant at rest (s)
	KmRest   float64 // calcium sensitivity at rest
	Tau2     float64 // force decline time constant under binding (s)

	AlphaA    float64 // A fatigue rate (s^-2)
	AlphaTau1 float64 // Tau1 fatigue rate (N^-1)
	AlphaKm   float64 // Km fatigue rate (s^-1 N^-1)
	TauFat    float64 // fatigue recovery time constant (s)

	AScale float64 // duration model force scaling (N/s)
	PD0    float64 // minimum effective pulse duration (s)
	PDT    float64 // duration time constant (s)

	AR float64 // intensity model scaling
	BS float64 // intensity slope (mA^-1)
	IS float64 // intensity at half saturation (mA)
	CR float64 // intensity offset
}

// DefaultParams returns the published constants for a family.
func DefaultParams(f Family) Params {
	p := Params{
		TauC:             0.020,
		R0KmRelationship: 1.04,
		ARest:            3009,
		Tau1Rest:         0.050957,
		KmRest:           0.103,
		Tau2:             0.060,
		AlphaA:           -4e-6,
		AlphaTau1:        2.1e-4,
		AlphaKm:          1.9e-7,
		TauFat:           127,
	}

	switch f {
	case Ding2007:
		p.AScale = 4920
		p.PD0 = 0.000131405
		p.PDT = 0.000194138
		p.Tau1Rest = 0.060601
		p.Tau2 = 0.001
		p.KmRest = 0.137
		p.TauC = 0.011
		// A relaxes to a_scale in the fatigue variant
		p.ARest = p.AScale
	case Hmed2018:
		p.AR = 0.586
		p.BS = 0.026
		p.IS = 63.1
		p.CR = 0.833
	}
	return p
}

type paramField struct {
	name string
	ptr  func(p *Params) *float64
}

var paramFields = []paramField{
	{"tauc", func(p *Params) *float64 { return &p.TauC }},
	{"r0_km_relationship", func(p *Params) *float64 { return &p.R0KmRelationship }},
	{"a_rest", func(p *Params) *float64 { return &p.ARest }},
	{"tau1_rest", func(p *Params) *float64 { return &p.Tau1Rest }},
	{"km_rest", func(p *Params) *float64 { return &p.KmRest }},
	{"tau2", func(p *Params) *float64 { return &p.Tau2 }},
	{"alpha_a", func(p *Params) *float64 { return &p.AlphaA }},
	{"alpha_tau1", func(p *Params) *float64 { return &p.AlphaTau1 }},
	{"alpha_km", func(p *Params) *float64 { return &p.AlphaKm }},
	{"tau_fat", func(p *Params) *float64 { return &p.TauFat }},
	{"a_scale", func(p *Params) *float64 { return &p.AScale }},
	{"pd0", func(p *Params) *float64 { return &p.PD0 }},
	{"pdt", func(p *Params) *float64 { return &p.PDT }},
	{"ar", func(p *Params) *float64 { return &p.AR }},
	{"bs", func(p *Params) *float64 { return &p.BS }},
	{"Is", func(p *Params) *float64 { return &p.IS }},
	{"cr", func(p *Params) *float64 { return &p.CR }},
}

// paramNames lists the parameters that enter a variant's equations.
func paramNames(v Variant) []string {
	names := []string{"tauc", "r0_km_relationship", "tau1_rest", "km_rest", "tau2"}
	switch v.Family {
	case Ding2003:
		names = append(names, "a_rest")
	case Ding2007:
		names = append(names, "a_scale", "pd0", "pdt")
	case Hmed2018:
		names = append(names, "a_rest", "ar", "bs", "Is", "cr")
	}
	if v.Fatigue {
		names = append(names, "alpha_a", "alpha_tau1", "alpha_km", "tau_fat")
	}
	return names
}

// identifiable lists the parameters an identification layer may fit.
func identifiable(v Variant) []string {
	names := []string{"tau1_rest", "km_rest", "tau2"}
	switch v.Family {
	case Ding2003:
		names = append([]string{"a_rest"}, names...)
	case Ding2007:
		names = append([]string{"a_scale"}, append(names, "pd0", "pdt")...)
	case Hmed2018:
		names = append([]string{"a_rest"}, append(names, "ar", "bs", "Is", "cr")...)
	}
	if v.Fatigue {
		names = append(names, "alpha_a", "alpha_tau1", "alpha_km", "tau_fat")
	}
	return names
}

func (p *Params) field(name string) (*float64, bool) {
	for _, f := range paramFields {
		if f.name == name {
			return f.ptr(p), true
		}
	}
	return nil, false
}

func (p Params) values(names []string) map[string]float64 {
	out := make(map[string]float64, len(names))
	for _, n := range names {
		v, _ := p.field(n)
		out[n] = *v
	}
	return out
}

func (p *Params) set(v Variant, name string, value float64) error {
	if !slices.Contains(paramNames(v), name) {
		return fmt.Errorf("%w: %s has no %q", ErrUnknownParam, v, name)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("muscle: %s must be finite, got %v", name, value)
	}
	ptr, _ := p.field(name)
	*ptr = value
	if v.Family == Ding2007 && name == "a_scale" {
		p.ARest = value
	}
	return nil
}
