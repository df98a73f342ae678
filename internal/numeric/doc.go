// Package numeric defines the arithmetic the muscle dynamics are written against.
//
// Every derivative formula is expressed once, as straight-line code over a
// [Field]. Branching on concrete values is only allowed through the select
// primitives [Field.IfLE] and [Field.IfNonZero], so the same formula can run as:
//
//   - [Float]: plain float64 evaluation for trajectory integration
//   - [Dual]: forward-mode derivatives (gonum dual numbers) for Jacobians
//   - symbolic.Graph: an expression graph for gradient-based optimization
//
// Implementations hold no state and are safe for concurrent use.
package numeric
