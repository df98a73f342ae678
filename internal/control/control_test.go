package control

import (
	"testing"
)

func TestNoneIsUnitCoupling(t *testing.T) {
	u := NewNone(2).Compute(nil, 0)
	if len(u) != 2 || u[0] != 1 || u[1] != 1 {
		t.Errorf("Compute = %v, want [1 1]", u)
	}
}

func TestConstant(t *testing.T) {
	c := NewConstant(0.8, 1)
	if err := c.SetParam("fv", 0.5); err != nil {
		t.Fatal(err)
	}
	if u := c.Compute(nil, 0); u[0] != 0.8 || u[1] != 0.5 {
		t.Errorf("Compute = %v", u)
	}

	if err := c.SetParam("fl", -1); err == nil {
		t.Error("negative coefficient accepted")
	}
	if err := c.SetParam("gain", 1); err == nil {
		t.Error("unknown parameter accepted")
	}
	if p := c.GetParams(); p["fl"] != 0.8 || p["fv"] != 0.5 {
		t.Errorf("GetParams = %v", p)
	}
}
