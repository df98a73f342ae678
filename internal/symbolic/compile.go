package symbolic

import (
	"fmt"
	"math"
)

type instr struct {
	op    op
	value float64
	in    int // variable slot for opVar
	args  [4]int
}

// Func is a compiled, allocation-light evaluator of several outputs.
// It is safe for concurrent use.
type Func struct {
	prog    []instr
	outputs []int
	nIn     int
}

// Compile flattens outputs into a straight-line program over vars.
func Compile(outputs []*Expr, vars []string) (*Func, error) {
	slots := make(map[string]int, len(vars))
	for i, v := range vars {
		slots[v] = i
	}

	f := &Func{nIn: len(vars)}
	index := make(map[*Expr]int)

	var emit func(*Expr) (int, error)
	emit = func(e *Expr) (int, error) {
		if i, ok := index[e]; ok {
			return i, nil
		}
		ins := instr{op: e.op, value: e.value}
		for k, a := range e.args {
			i, err := emit(a)
			if err != nil {
				return 0, err
			}
			ins.args[k] = i
		}
		if e.op == opVar {
			s, ok := slots[e.name]
			if !ok {
				return 0, fmt.Errorf("%w: %s", ErrUnbound, e.name)
			}
			ins.in = s
		}
		f.prog = append(f.prog, ins)
		index[e] = len(f.prog) - 1
		return len(f.prog) - 1, nil
	}

	for _, out := range outputs {
		i, err := emit(out)
		if err != nil {
			return nil, err
		}
		f.outputs = append(f.outputs, i)
	}
	return f, nil
}

// Call evaluates the program at in.
func (f *Func) Call(in []float64) ([]float64, error) {
	if len(in) != f.nIn {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrArity, len(in), f.nIn)
	}

	reg := make([]float64, len(f.prog))
	for i, ins := range f.prog {
		a := ins.args
		switch ins.op {
		case opConst:
			reg[i] = ins.value
		case opVar:
			reg[i] = in[ins.in]
		case opAdd:
			reg[i] = reg[a[0]] + reg[a[1]]
		case opSub:
			reg[i] = reg[a[0]] - reg[a[1]]
		case opMul:
			reg[i] = reg[a[0]] * reg[a[1]]
		case opDiv:
			reg[i] = reg[a[0]] / reg[a[1]]
		case opNeg:
			reg[i] = -reg[a[0]]
		case opExp:
			reg[i] = math.Exp(reg[a[0]])
		case opTanh:
			reg[i] = math.Tanh(reg[a[0]])
		case opIfLE:
			reg[i] = reg[a[3]]
			if reg[a[0]] <= reg[a[1]] {
				reg[i] = reg[a[2]]
			}
		case opIfNonZero:
			reg[i] = reg[a[2]]
			if x := reg[a[0]]; x != 0 && !math.IsNaN(x) && !math.IsInf(x, 0) {
				reg[i] = reg[a[1]]
			}
		}
	}

	out := make([]float64, len(f.outputs))
	for i, o := range f.outputs {
		out[i] = reg[o]
	}
	return out, nil
}

// Len is the number of instructions in the program.
func (f *Func) Len() int { return len(f.prog) }
