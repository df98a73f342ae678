package config

import "sort"

var reference = []float64{0, 0.1, 0.2}

var Presets = map[string]map[string]*Config{
	"ding2003": {
		"reference": {
			Model: "ding2003", Integrator: "rk4", Controller: "none",
			Stim: StimConfig{Times: reference, PulseMode: "single"},
			IVP:  IVPConfig{NShooting: 300, FinalTime: 0.3},
		},
		"tetanic": {
			Model: "ding2003", Integrator: "rk4", Controller: "none",
			Stim: StimConfig{Frequency: 50, PulseMode: "single"},
			IVP:  IVPConfig{NShooting: 1000, FinalTime: 1},
		},
		"doublet": {
			Model: "ding2003", Integrator: "rk4", Controller: "none",
			Stim: StimConfig{Frequency: 10, PulseMode: "doublet"},
			IVP:  IVPConfig{NShooting: 1000, FinalTime: 1},
		},
	},
	"ding2003_with_fatigue": {
		"reference": {
			Model: "ding2003_with_fatigue", Integrator: "rk4", Controller: "none",
			Stim: StimConfig{Times: reference, PulseMode: "single"},
			IVP:  IVPConfig{NShooting: 300, FinalTime: 0.3},
		},
		"triplet": {
			Model: "ding2003_with_fatigue", Integrator: "rk4", Controller: "none",
			Stim: StimConfig{Times: reference, PulseMode: "triplet"},
			IVP:  IVPConfig{NShooting: 300, FinalTime: 0.3},
		},
		"fatiguing": {
			Model: "ding2003_with_fatigue", Integrator: "rk4", Controller: "none",
			Stim: StimConfig{Frequency: 33, RoundDown: true, PulseMode: "single"},
			IVP:  IVPConfig{NShooting: 10000, FinalTime: 10},
		},
	},
	"ding2007": {
		"reference": {
			Model: "ding2007", Integrator: "rk4", Controller: "none",
			Stim: StimConfig{Times: reference, PulseMode: "single", PulseDuration: Values{0.0003}},
			IVP:  IVPConfig{NShooting: 30, FinalTime: 0.3},
		},
		"ramp": {
			Model: "ding2007", Integrator: "rk4", Controller: "none",
			Stim: StimConfig{Times: reference, PulseMode: "single", PulseDuration: Values{0.0003, 0.0004, 0.0005}},
			IVP:  IVPConfig{NShooting: 30, FinalTime: 0.3},
		},
	},
	"ding2007_with_fatigue": {
		"reference": {
			Model: "ding2007_with_fatigue", Integrator: "rk4", Controller: "none",
			Stim: StimConfig{Times: reference, PulseMode: "single", PulseDuration: Values{0.0003}},
			IVP:  IVPConfig{NShooting: 30, FinalTime: 0.3},
		},
	},
	"hmed2018": {
		"reference": {
			Model: "hmed2018", Integrator: "rk4", Controller: "none",
			Stim: StimConfig{Times: reference, PulseMode: "single", PulseIntensity: Values{50, 60, 70}},
			IVP:  IVPConfig{NShooting: 30, FinalTime: 0.3},
		},
	},
	"hmed2018_with_fatigue": {
		"reference": {
			Model: "hmed2018_with_fatigue", Integrator: "rk4", Controller: "none",
			Stim: StimConfig{Times: reference, PulseMode: "single", PulseIntensity: Values{50, 60, 70}},
			IVP:  IVPConfig{NShooting: 30, FinalTime: 0.3},
		},
	},
}

// GetPreset returns a copy of a preset, with unit coupling, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	out := cfg.Clone()
	if out.Coupling == (CouplingConfig{}) {
		out.Coupling = CouplingConfig{ForceLength: 1, ForceVelocity: 1}
	}
	if out.IVP.Tolerance == 0 {
		out.IVP.Tolerance = DefaultTolerance
	}
	return out
}

// ListPresets returns the preset names of a model, sorted.
func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
