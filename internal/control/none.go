package control

import "github.com/san-kum/fesim/internal/dynamo"

type None struct {
	dim int
}

func NewNone(dim int) *None {
	return &None{
		dim: dim,
	}
}

func (n *None) Compute(x dynamo.State, t float64) dynamo.Control {
	u := make(dynamo.Control, n.dim)
	for i := range u {
		u[i] = 1
	}
	return u
}
