package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

const (
	DefaultModel          = "ding2003"
	DefaultIntegrator     = "rk4"
	DefaultPulseMode      = "single"
	DefaultPulseDuration  = 0.0003
	DefaultPulseIntensity = 50.0
	DefaultNShooting      = 300
	DefaultFinalTime      = 0.3
	DefaultTolerance      = 1e-6
)

var ErrInvalid = errors.New("config: invalid")

// Values is a list of per-pulse values that also accepts a single scalar.
type Values []float64

func (v *Values) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var f float64
		if err := node.Decode(&f); err != nil {
			return err
		}
		*v = Values{f}
		return nil
	}
	var fs []float64
	if err := node.Decode(&fs); err != nil {
		return err
	}
	*v = fs
	return nil
}

func (v Values) MarshalYAML() (any, error) {
	if len(v) == 1 {
		return v[0], nil
	}
	return []float64(v), nil
}

type Config struct {
	Model      string             `yaml:"model"`
	Muscle     string             `yaml:"muscle,omitempty"`
	Truncation int                `yaml:"truncation,omitempty"`
	Integrator string             `yaml:"integrator"`
	Controller string             `yaml:"controller"`
	Stim       StimConfig         `yaml:"stim"`
	IVP        IVPConfig          `yaml:"ivp"`
	Coupling   CouplingConfig     `yaml:"coupling"`
	Params     map[string]float64 `yaml:"params,omitempty"`
}

type StimConfig struct {
	Times          []float64 `yaml:"stim_time,omitempty"`
	Frequency      float64   `yaml:"frequency,omitempty"`
	NStim          int       `yaml:"n_stim,omitempty"`
	RoundDown      bool      `yaml:"round_down,omitempty"`
	PulseMode      string    `yaml:"pulse_mode"`
	PulseDuration  Values    `yaml:"pulse_duration,omitempty"`
	PulseIntensity Values    `yaml:"pulse_intensity,omitempty"`
}

type IVPConfig struct {
	NShooting int     `yaml:"n_shooting"`
	FinalTime float64 `yaml:"final_time"`
	Adaptive  bool    `yaml:"adaptive,omitempty"`
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

type CouplingConfig struct {
	ForceLength   float64 `yaml:"force_length"`
	ForceVelocity float64 `yaml:"force_velocity"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      DefaultModel,
		Integrator: DefaultIntegrator,
		Controller: "none",
		Stim: StimConfig{
			Times:          []float64{0, 0.1, 0.2},
			PulseMode:      DefaultPulseMode,
			PulseDuration:  Values{DefaultPulseDuration},
			PulseIntensity: Values{DefaultPulseIntensity},
		},
		IVP: IVPConfig{
			NShooting: DefaultNShooting,
			FinalTime: DefaultFinalTime,
			Tolerance: DefaultTolerance,
		},
		Coupling: CouplingConfig{ForceLength: 1, ForceVelocity: 1},
	}
}

// Parse unmarshals data over the defaults. A frequency in the file replaces
// the default stimulation times.
func Parse(data []byte) (*Config, error) {
	return decode(func(cfg *Config) error { return yaml.Unmarshal(data, cfg) })
}

// Decode is Parse for a node already read as part of a larger document.
func Decode(node *yaml.Node) (*Config, error) {
	return decode(func(cfg *Config) error { return node.Decode(cfg) })
}

func decode(fill func(*Config) error) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Stim.Times = nil
	if err := fill(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if len(cfg.Stim.Times) == 0 && cfg.Stim.Frequency == 0 {
		cfg.Stim.Times = DefaultConfig().Stim.Times
	}
	return cfg, nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Stim.Times = slices.Clone(c.Stim.Times)
	out.Stim.PulseDuration = slices.Clone(c.Stim.PulseDuration)
	out.Stim.PulseIntensity = slices.Clone(c.Stim.PulseIntensity)
	if c.Params != nil {
		out.Params = make(map[string]float64, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	return &out
}

// Dt is the shooting interval final_time/n_shooting.
func (c *Config) Dt() float64 {
	return c.IVP.FinalTime / float64(c.IVP.NShooting)
}

// Validate checks the shape of the file. Model-specific checks happen when
// the experiment is built.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Model == "" {
		bad("model is required")
	}
	if c.IVP.NShooting <= 0 {
		bad("ivp.n_shooting must be positive, got %d", c.IVP.NShooting)
	}
	if c.IVP.FinalTime <= 0 && !(c.Stim.Frequency > 0 && c.Stim.NStim > 0) {
		bad("ivp.final_time must be positive, got %g", c.IVP.FinalTime)
	}
	if c.IVP.Adaptive && c.IVP.Tolerance <= 0 {
		bad("ivp.tolerance must be positive for adaptive runs")
	}
	if len(c.Stim.Times) == 0 && c.Stim.Frequency <= 0 {
		bad("stim needs stim_time or a positive frequency")
	}
	if c.Stim.NStim < 0 {
		bad("stim.n_stim must not be negative")
	}
	if c.Truncation < 0 {
		bad("truncation must not be negative")
	}
	if c.Coupling.ForceLength < 0 || c.Coupling.ForceVelocity < 0 {
		bad("coupling coefficients must not be negative")
	}

	return errors.Join(errs...)
}

// Sweepable lists the names SetValue understands besides model parameters.
var Sweepable = []string{"frequency", "pulse_duration", "pulse_intensity", "force_length", "force_velocity", "final_time", "truncation"}

// SetValue overrides one stimulation, coupling or run setting by name. Any
// other name is stored as a model parameter and checked when the experiment
// is built.
func (c *Config) SetValue(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be finite", ErrInvalid, name)
	}

	switch name {
	case "frequency":
		c.Stim.Times = nil
		c.Stim.NStim = 0
		c.Stim.Frequency = v
		c.Stim.RoundDown = true
	case "pulse_duration":
		c.Stim.PulseDuration = Values{v}
	case "pulse_intensity":
		c.Stim.PulseIntensity = Values{v}
	case "force_length":
		c.Coupling.ForceLength = v
		c.Controller = "constant"
	case "force_velocity":
		c.Coupling.ForceVelocity = v
		c.Controller = "constant"
	case "final_time":
		c.IVP.FinalTime = v
	case "truncation":
		if v != math.Trunc(v) {
			return fmt.Errorf("%w: truncation must be a whole number, got %g", ErrInvalid, v)
		}
		c.Truncation = int(v)
	default:
		if name == "" {
			return fmt.Errorf("%w: empty parameter name", ErrInvalid)
		}
		if c.Params == nil {
			c.Params = make(map[string]float64)
		}
		c.Params[name] = v
	}
	return nil
}
