package muscle

import (
	"fmt"

	"github.com/san-kum/fesim/internal/symbolic"
)

// Symbolic is the derivative of a model as an expression graph over named
// symbols: "t", the state names, "fl", "fv", "t_stim_<i>" and, per family,
// "pd_<i>" or "I_<i>" for each of n pulses.
type Symbolic struct {
	Time   *symbolic.Expr
	States []*symbolic.Expr
	FL, FV *symbolic.Expr
	Stim   []*symbolic.Expr
	Values []*symbolic.Expr

	Derivative []*symbolic.Expr

	vars []string
}

// Symbolic builds the graph for n pulses.
func (m *Model) Symbolic(n int) *Symbolic {
	g := symbolic.Graph{}
	s := &Symbolic{
		Time: symbolic.Var("t"),
		FL:   symbolic.Var("fl"),
		FV:   symbolic.Var("fv"),
	}
	s.vars = append(s.vars, "t")

	names := m.StateNames(true)
	s.States = symbolic.Vars(names...)
	s.vars = append(s.vars, names...)
	s.vars = append(s.vars, "fl", "fv")

	prefix := ""
	switch m.Variant.Family {
	case Ding2007:
		prefix = "pd"
	case Hmed2018:
		prefix = "I"
	}

	h := History[*symbolic.Expr]{}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("t_stim_%d", i)
		s.Stim = append(s.Stim, symbolic.Var(name))
		s.vars = append(s.vars, name)
	}
	h.Times = s.Stim
	if prefix != "" {
		for i := 0; i < n; i++ {
			name := fmt.Sprintf("%s_%d", prefix, i)
			s.Values = append(s.Values, symbolic.Var(name))
			s.vars = append(s.vars, name)
		}
		if prefix == "pd" {
			h.Durations = s.Values
		} else {
			h.Intensities = s.Values
		}
	}

	s.Derivative = DynamicsCoupled[*symbolic.Expr](g, m, s.Time, s.States, h, s.FL, s.FV)
	return s
}

// Vars lists the symbol names in the order Compile expects them.
func (s *Symbolic) Vars() []string { return s.vars }

// Compile turns the derivative into a float64 function of Vars().
func (s *Symbolic) Compile() (*symbolic.Func, error) {
	return symbolic.Compile(s.Derivative, s.vars)
}

// StateJacobian is d(Derivative)/d(States) as expressions.
func (s *Symbolic) StateJacobian() [][]*symbolic.Expr {
	names := make([]string, len(s.States))
	for i, x := range s.States {
		names[i] = x.Name()
	}
	return symbolic.Jacobian(s.Derivative, names)
}
