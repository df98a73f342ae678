// Package control provides the coupling vector fed to muscle systems.
//
// The muscle adapters read u[0] as the force-length coefficient and u[1] as
// the force-velocity coefficient:
//
//   - [None]: unit coupling, an isometric muscle at optimal length
//   - [Constant]: fixed coefficients, adjustable while a run is live
//
// # Usage
//
//	ctrl := control.NewConstant(0.8, 1.0)
//	sim := dynamo.New(sys, integ, ctrl)
//
// [Constant] implements [dynamo.Configurable] for live tuning.
package control
