package system

import (
	"time"

	coresys "github.com/gritengine/gritd/internal/core/system"
	"github.com/gritengine/gritd/internal/streamer"
	"go.uber.org/zap"
)

// statsInterval is how many ticks pass between streamer stats log lines.
const statsInterval = 600

// StreamSystem runs one streaming round around the current centre.
// Phase 1 (Stream).
type StreamSystem struct {
	streamer *streamer.Streamer
	log      *zap.Logger
	ticks    int
	last     streamer.Stats
}

func NewStreamSystem(s *streamer.Streamer, log *zap.Logger) *StreamSystem {
	return &StreamSystem{streamer: s, log: log}
}

func (s *StreamSystem) Phase() coresys.Phase { return coresys.PhaseStream }

func (s *StreamSystem) Update(_ time.Duration) {
	s.last = s.streamer.Update(s.streamer.Centre())

	s.ticks++
	if s.ticks < statsInterval {
		return
	}
	s.ticks = 0
	s.log.Debug("streamer",
		zap.Int("listed", s.last.Listed),
		zap.Int("activated", s.last.Activated),
		zap.Int("overlapping", s.last.Overlapping))
}

// Stats returns the result of the latest streaming round.
func (s *StreamSystem) Stats() streamer.Stats { return s.last }
