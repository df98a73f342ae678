package symbolic

// Diff returns the derivative of e with respect to the variable name.
// Select nodes are differentiated branch-wise; the condition is kept as is.
// Terms whose derivative factor is structurally zero are dropped.
func (e *Expr) Diff(name string) *Expr {
	memo := make(map[*Expr]*Expr)
	return e.diff(name, memo)
}

func (e *Expr) diff(name string, memo map[*Expr]*Expr) *Expr {
	if d, ok := memo[e]; ok {
		return d
	}

	g := Graph{}
	var d *Expr

	switch e.op {
	case opConst:
		d = Const(0)
	case opVar:
		if e.name == name {
			d = Const(1)
		} else {
			d = Const(0)
		}
	case opAdd:
		d = g.Add(e.args[0].diff(name, memo), e.args[1].diff(name, memo))
	case opSub:
		d = g.Sub(e.args[0].diff(name, memo), e.args[1].diff(name, memo))
	case opMul:
		a, b := e.args[0], e.args[1]
		d = g.Add(scale(a.diff(name, memo), b), scale(b.diff(name, memo), a))
	case opDiv:
		a, b := e.args[0], e.args[1]
		num := g.Sub(scale(a.diff(name, memo), b), scale(b.diff(name, memo), a))
		if isConst(num, 0) {
			d = num
		} else {
			d = g.Div(num, g.Mul(b, b))
		}
	case opNeg:
		d = g.Neg(e.args[0].diff(name, memo))
	case opExp:
		d = scale(e.args[0].diff(name, memo), e)
	case opTanh:
		d = scale(e.args[0].diff(name, memo), g.Sub(Const(1), g.Mul(e, e)))
	case opIfLE:
		d = g.IfLE(e.args[0], e.args[1], e.args[2].diff(name, memo), e.args[3].diff(name, memo))
	case opIfNonZero:
		d = g.IfNonZero(e.args[0], e.args[1].diff(name, memo), e.args[2].diff(name, memo))
	}

	memo[e] = d
	return d
}

// scale is d*v, or d itself when d is the constant 0.
func scale(d, v *Expr) *Expr {
	if isConst(d, 0) {
		return d
	}
	return Graph{}.Mul(d, v)
}

// Jacobian returns d outputs[i] / d vars[j].
func Jacobian(outputs []*Expr, vars []string) [][]*Expr {
	jac := make([][]*Expr, len(outputs))
	for i, out := range outputs {
		jac[i] = make([]*Expr, len(vars))
		for j, v := range vars {
			jac[i][j] = out.Diff(v)
		}
	}
	return jac
}
