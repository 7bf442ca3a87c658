package system

import (
	"fmt"
	"time"
)

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseStep   Phase = iota // fixed-step callbacks
	PhaseStream              // activation, deactivation, fades
	PhaseFrame               // per-frame callbacks

	phaseCount
)

func (p Phase) String() string {
	switch p {
	case PhaseStep:
		return "step"
	case PhaseStream:
		return "stream"
	case PhaseFrame:
		return "frame"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) valid() bool { return p >= 0 && p < phaseCount }

// System is one stage of the game loop tick.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
