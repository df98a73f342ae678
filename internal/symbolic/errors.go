package symbolic

import "errors"

var (
	// ErrUnbound indicates a variable without a value during evaluation.
	ErrUnbound = errors.New("symbolic: unbound variable")

	// ErrArity indicates a compiled function called with the wrong input length.
	ErrArity = errors.New("symbolic: wrong number of inputs")
)
