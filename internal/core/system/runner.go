package system

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Runner executes systems in phase order each tick. Systems sharing a
// phase run in registration order. A tick that takes longer than the
// budget is logged with the time spent per phase.
type Runner struct {
	phases [phaseCount][]System
	budget time.Duration
	log    *zap.Logger
}

// NewRunner creates a runner. A zero budget disables slow tick reports.
func NewRunner(budget time.Duration, log *zap.Logger) *Runner {
	return &Runner{budget: budget, log: log}
}

// Register adds s to the bucket of its phase. Panics on an unknown phase.
func (r *Runner) Register(s System) {
	p := s.Phase()
	if !p.valid() {
		panic(fmt.Sprintf("system %T has unknown phase %v", s, p))
	}
	r.phases[p] = append(r.phases[p], s)
}

// Len returns the number of registered systems.
func (r *Runner) Len() int {
	n := 0
	for _, b := range r.phases {
		n += len(b)
	}
	return n
}

func (r *Runner) Tick(dt time.Duration) {
	var spent [phaseCount]time.Duration
	start := time.Now()
	for p := range r.phases {
		t0 := time.Now()
		r.TickPhase(Phase(p), dt)
		spent[p] = time.Since(t0)
	}
	if total := time.Since(start); r.budget > 0 && total > r.budget {
		r.log.Warn("slow tick",
			zap.Duration("total", total),
			zap.Duration("budget", r.budget),
			zap.Duration(PhaseStep.String(), spent[PhaseStep]),
			zap.Duration(PhaseStream.String(), spent[PhaseStream]),
			zap.Duration(PhaseFrame.String(), spent[PhaseFrame]))
	}
}

// TickPhase runs only the systems of the given phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	if !phase.valid() {
		return
	}
	for _, s := range r.phases[phase] {
		s.Update(dt)
	}
}
