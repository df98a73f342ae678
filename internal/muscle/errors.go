package muscle

import "errors"

var (
	// ErrBelowMinimum indicates a pulse duration or intensity under the
	// model's physiological threshold.
	ErrBelowMinimum = errors.New("muscle: pulse value below minimum")

	// ErrLengthMismatch indicates per-pulse values that do not match the
	// number of stimulations.
	ErrLengthMismatch = errors.New("muscle: length mismatch with stimulation count")

	// ErrUnsupported indicates an operation the model family does not have.
	ErrUnsupported = errors.New("muscle: not implemented for this model")

	// ErrUnknownVariant indicates an unrecognized model name.
	ErrUnknownVariant = errors.New("muscle: unknown model variant")

	// ErrUnknownParam indicates a parameter name the model does not carry.
	ErrUnknownParam = errors.New("muscle: unknown parameter")

	// ErrUnordered indicates stimulation times that decrease.
	ErrUnordered = errors.New("muscle: stimulation times must be non-decreasing")
)
