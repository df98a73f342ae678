package symbolic

import "math"

// Graph builds expression nodes with light constant folding.
// It satisfies numeric.Field[*Expr].
type Graph struct{}

func isConst(e *Expr, v float64) bool {
	c, ok := e.IsConst()
	return ok && c == v
}

func both(a, b *Expr) (float64, float64, bool) {
	x, ok1 := a.IsConst()
	y, ok2 := b.IsConst()
	return x, y, ok1 && ok2
}

func (Graph) Const(v float64) *Expr { return Const(v) }

func (Graph) Add(a, b *Expr) *Expr {
	if x, y, ok := both(a, b); ok {
		return Const(x + y)
	}
	if isConst(a, 0) {
		return b
	}
	if isConst(b, 0) {
		return a
	}
	return &Expr{op: opAdd, args: []*Expr{a, b}}
}

func (g Graph) Sub(a, b *Expr) *Expr {
	if x, y, ok := both(a, b); ok {
		return Const(x - y)
	}
	if isConst(b, 0) {
		return a
	}
	if isConst(a, 0) {
		return g.Neg(b)
	}
	return &Expr{op: opSub, args: []*Expr{a, b}}
}

// Mul folds only constant operands and the unit element. 0*x stays a node
// so that 0*Inf evaluates to NaN as it does in float64.
func (Graph) Mul(a, b *Expr) *Expr {
	if x, y, ok := both(a, b); ok {
		return Const(x * y)
	}
	if isConst(a, 1) {
		return b
	}
	if isConst(b, 1) {
		return a
	}
	return &Expr{op: opMul, args: []*Expr{a, b}}
}

func (Graph) Div(a, b *Expr) *Expr {
	if x, y, ok := both(a, b); ok {
		return Const(x / y)
	}
	if isConst(b, 1) {
		return a
	}
	return &Expr{op: opDiv, args: []*Expr{a, b}}
}

func (Graph) Neg(a *Expr) *Expr {
	if x, ok := a.IsConst(); ok {
		return Const(-x)
	}
	if a.op == opNeg {
		return a.args[0]
	}
	return &Expr{op: opNeg, args: []*Expr{a}}
}

func (Graph) Exp(a *Expr) *Expr {
	if x, ok := a.IsConst(); ok {
		return Const(math.Exp(x))
	}
	return &Expr{op: opExp, args: []*Expr{a}}
}

func (Graph) Tanh(a *Expr) *Expr {
	if x, ok := a.IsConst(); ok {
		return Const(math.Tanh(x))
	}
	return &Expr{op: opTanh, args: []*Expr{a}}
}

func (Graph) IfLE(a, b, then, els *Expr) *Expr {
	if x, y, ok := both(a, b); ok {
		if x <= y {
			return then
		}
		return els
	}
	if then == els {
		return then
	}
	return &Expr{op: opIfLE, args: []*Expr{a, b, then, els}}
}

func (Graph) IfNonZero(x, then, els *Expr) *Expr {
	if v, ok := x.IsConst(); ok {
		if v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return then
		}
		return els
	}
	if then == els {
		return then
	}
	return &Expr{op: opIfNonZero, args: []*Expr{x, then, els}}
}
