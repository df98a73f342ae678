// Package symbolic is an expression-graph backend for the muscle dynamics.
//
// [Graph] implements numeric.Field over [*Expr], so the exact formula used for
// simulation can be built as a graph, differentiated symbolically, and compiled
// back into a float64 function for an external optimizer.
package symbolic

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type op uint8

const (
	opConst op = iota
	opVar
	opAdd
	opSub
	opMul
	opDiv
	opNeg
	opExp
	opTanh
	opIfLE
	opIfNonZero
)

// Expr is an immutable graph node. Sub-expressions may be shared.
type Expr struct {
	op    op
	value float64
	name  string
	args  []*Expr
}

// Const returns a constant node.
func Const(v float64) *Expr { return &Expr{op: opConst, value: v} }

// Var returns a free variable node.
func Var(name string) *Expr { return &Expr{op: opVar, name: name} }

// Vars returns one variable per name.
func Vars(names ...string) []*Expr {
	out := make([]*Expr, len(names))
	for i, n := range names {
		out[i] = Var(n)
	}
	return out
}

// IsConst reports whether e is a constant and returns its value.
func (e *Expr) IsConst() (float64, bool) {
	if e.op == opConst {
		return e.value, true
	}
	return 0, false
}

// Name returns the variable name, or "" for non-variable nodes.
func (e *Expr) Name() string { return e.name }

// Size counts distinct nodes reachable from e.
func (e *Expr) Size() int {
	seen := make(map[*Expr]struct{})
	var walk func(*Expr)
	walk = func(n *Expr) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		for _, a := range n.args {
			walk(a)
		}
	}
	walk(e)
	return len(seen)
}

// Free returns the sorted-by-first-appearance names of the variables in e.
func (e *Expr) Free() []string {
	seen := make(map[*Expr]struct{})
	names := make(map[string]struct{})
	var out []string
	var walk func(*Expr)
	walk = func(n *Expr) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		if n.op == opVar {
			if _, ok := names[n.name]; !ok {
				names[n.name] = struct{}{}
				out = append(out, n.name)
			}
		}
		for _, a := range n.args {
			walk(a)
		}
	}
	walk(e)
	return out
}

func (e *Expr) String() string {
	var sb strings.Builder
	e.write(&sb)
	return sb.String()
}

func (e *Expr) write(sb *strings.Builder) {
	switch e.op {
	case opConst:
		sb.WriteString(strconv.FormatFloat(e.value, 'g', -1, 64))
	case opVar:
		sb.WriteString(e.name)
	case opAdd, opSub, opMul, opDiv:
		sym := map[op]string{opAdd: " + ", opSub: " - ", opMul: "*", opDiv: "/"}[e.op]
		sb.WriteByte('(')
		e.args[0].write(sb)
		sb.WriteString(sym)
		e.args[1].write(sb)
		sb.WriteByte(')')
	case opNeg:
		sb.WriteString("-")
		e.args[0].write(sb)
	case opExp, opTanh:
		if e.op == opExp {
			sb.WriteString("exp(")
		} else {
			sb.WriteString("tanh(")
		}
		e.args[0].write(sb)
		sb.WriteByte(')')
	case opIfLE:
		sb.WriteString("if_le(")
		for i, a := range e.args {
			if i > 0 {
				sb.WriteString(", ")
			}
			a.write(sb)
		}
		sb.WriteByte(')')
	case opIfNonZero:
		sb.WriteString("if_nonzero(")
		for i, a := range e.args {
			if i > 0 {
				sb.WriteString(", ")
			}
			a.write(sb)
		}
		sb.WriteByte(')')
	}
}

// Eval evaluates e with the variable bindings in env.
func (e *Expr) Eval(env map[string]float64) (float64, error) {
	memo := make(map[*Expr]float64)
	return e.eval(env, memo)
}

func (e *Expr) eval(env map[string]float64, memo map[*Expr]float64) (float64, error) {
	if v, ok := memo[e]; ok {
		return v, nil
	}

	args := make([]float64, len(e.args))
	for i, a := range e.args {
		v, err := a.eval(env, memo)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}

	var v float64
	switch e.op {
	case opConst:
		v = e.value
	case opVar:
		bound, ok := env[e.name]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnbound, e.name)
		}
		v = bound
	case opAdd:
		v = args[0] + args[1]
	case opSub:
		v = args[0] - args[1]
	case opMul:
		v = args[0] * args[1]
	case opDiv:
		v = args[0] / args[1]
	case opNeg:
		v = -args[0]
	case opExp:
		v = math.Exp(args[0])
	case opTanh:
		v = math.Tanh(args[0])
	case opIfLE:
		v = args[3]
		if args[0] <= args[1] {
			v = args[2]
		}
	case opIfNonZero:
		v = args[2]
		if x := args[0]; x != 0 && !math.IsNaN(x) && !math.IsInf(x, 0) {
			v = args[1]
		}
	}

	memo[e] = v
	return v, nil
}
