package experiment

import (
	"log/slog"

	"github.com/san-kum/fesim/internal/dynamo"
)

// StepLogger logs the state every n steps at debug level.
type StepLogger struct {
	logger *slog.Logger
	every  int
	step   int
}

func NewStepLogger(logger *slog.Logger, every int) *StepLogger {
	if every < 1 {
		every = 1
	}
	return &StepLogger{logger: logger, every: every}
}

func (s *StepLogger) OnStep(x dynamo.State, u dynamo.Control, t float64) {
	if s.step%s.every == 0 {
		s.logger.Debug("step", "n", s.step, "t", t, "state", []float64(x))
	}
	s.step++
}
