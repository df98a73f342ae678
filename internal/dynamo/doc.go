// Package dynamo provides the simulation primitives the muscle models run on.
//
// The package defines the interfaces and types for integrating ordinary
// differential equations of the form dX/dt = f(X, u, t):
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems
//   - [Differentiable]: a System that also supplies its Jacobian
//   - [Integrator]: numerical stepping scheme
//   - [Controller]: produces the coupling vector u at each step
//   - [Simulator]: orchestrates a run over a fixed time grid
//
// # Example
//
//	sys := muscle.NewSystem(muscle.NewDing2003(), train)
//	sim := dynamo.New(sys, integrators.NewRK4(), control.NewNone(sys.ControlDim()))
//	result, _ := sim.Run(ctx, sys.RestState(), cfg)
//
// # Thread Safety
//
// Simulator instances are NOT thread-safe. For parallel runs use [Batch],
// which builds one simulator per job.
package dynamo
