package control

import (
	"fmt"

	"github.com/san-kum/fesim/internal/dynamo"
)

// Constant holds force-length and force-velocity coefficients.
type Constant struct {
	FL float64
	FV float64
}

func NewConstant(fl, fv float64) *Constant {
	return &Constant{FL: fl, FV: fv}
}

func (c *Constant) Compute(x dynamo.State, t float64) dynamo.Control {
	return dynamo.Control{c.FL, c.FV}
}

// GetParams returns tunable parameters for live adjustment
func (c *Constant) GetParams() map[string]float64 {
	return map[string]float64{
		"fl": c.FL,
		"fv": c.FV,
	}
}

// SetParam adjusts a coefficient; both must stay non-negative.
func (c *Constant) SetParam(name string, value float64) error {
	if value < 0 {
		return fmt.Errorf("control: %s must be non-negative, got %g", name, value)
	}
	switch name {
	case "fl":
		c.FL = value
	case "fv":
		c.FV = value
	default:
		return fmt.Errorf("control: unknown parameter %q", name)
	}
	return nil
}

var _ dynamo.Configurable = (*Constant)(nil)
