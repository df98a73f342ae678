// Package metrics summarizes muscle runs: peak force, force impulse, fatigue
// and numerical health. Each metric implements dynamo.Metric.
package metrics

import "github.com/san-kum/fesim/internal/dynamo"

// Standard returns the metrics recorded for every run. forceIdx is the F
// column; aIdx is the A column or -1 when the model has no fatigue.
func Standard(forceIdx, aIdx int) []dynamo.Metric {
	return []dynamo.Metric{
		NewPeakForce(forceIdx),
		NewForceImpulse(forceIdx),
		NewFatigueIndex(aIdx),
		NewStability(forceIdx, 1e-9),
	}
}
