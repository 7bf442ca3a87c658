package system

import (
	"time"

	coresys "github.com/gritengine/gritd/internal/core/system"
	"github.com/gritengine/gritd/internal/object"
	"go.uber.org/zap"
)

// StepSystem dispatches stepCallback at a fixed rate, independent of the
// frame rate. Elapsed frame time accumulates and is consumed one step at a
// time; when more than maxSteps are owed in one frame the backlog is
// dropped so a slow frame cannot snowball.
// Phase 0 (Step).
type StepSystem struct {
	reg      *object.Registry
	log      *zap.Logger
	step     time.Duration
	maxSteps int
	acc      time.Duration
}

func NewStepSystem(reg *object.Registry, step time.Duration, maxSteps int, log *zap.Logger) *StepSystem {
	if maxSteps <= 0 {
		maxSteps = 1
	}
	return &StepSystem{reg: reg, log: log, step: step, maxSteps: maxSteps}
}

func (s *StepSystem) Phase() coresys.Phase { return coresys.PhaseStep }

func (s *StepSystem) Update(dt time.Duration) {
	s.acc += dt
	elapsed := float32(s.step.Seconds())
	n := 0
	for s.acc >= s.step && n < s.maxSteps {
		s.reg.DispatchStepCallbacks(elapsed)
		s.acc -= s.step
		n++
	}
	if s.acc >= s.step {
		s.log.Debug("dropping step backlog", zap.Duration("backlog", s.acc))
		s.acc %= s.step
	}
}

// FrameSystem dispatches frameCallback once per tick with the real
// elapsed time.
// Phase 2 (Frame).
type FrameSystem struct {
	reg *object.Registry
}

func NewFrameSystem(reg *object.Registry) *FrameSystem {
	return &FrameSystem{reg: reg}
}

func (s *FrameSystem) Phase() coresys.Phase { return coresys.PhaseFrame }

func (s *FrameSystem) Update(dt time.Duration) {
	s.reg.DispatchFrameCallbacks(float32(dt.Seconds()))
}
