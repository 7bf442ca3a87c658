package streamer

import (
	"math"
	"sort"

	"github.com/gritengine/gritd/internal/config"
	"github.com/gritengine/gritd/internal/object"
	"go.uber.org/zap"
)

// Streamer decides which objects are activated based on their distance to
// a moving centre, and drives their fades. It implements object.Streamer.
//
// An object is in range when its distance to the centre is below its
// rendering distance scaled by the visibility factor. In-range objects get
// activated, closest first; activated objects out of range get
// deactivated, and deleted when their deactivate callback asks for it.
// Accessed only from the game loop goroutine, no locks.
type Streamer struct {
	reg *object.Registry
	cfg config.StreamerConfig
	log *zap.Logger

	slots     []slot
	free      []int
	grid      *Grid
	activated map[*object.Object]struct{}
	centre    object.Vec3
}

type slot struct {
	obj    *object.Object
	pos    object.Vec3
	radius float32
}

// Stats is a point-in-time summary of the streamer.
type Stats struct {
	Listed      int
	Activated   int
	Overlapping int // activated objects fading against a near counterpart
}

var _ object.Streamer = (*Streamer)(nil)

// New creates a streamer and attaches it to reg.
func New(reg *object.Registry, cfg config.StreamerConfig, log *zap.Logger) *Streamer {
	s := &Streamer{
		reg:       reg,
		cfg:       cfg,
		log:       log,
		grid:      NewGrid(cfg.CellSize),
		activated: make(map[*object.Object]struct{}, 256),
	}
	reg.AttachStreamer(s)
	s.registerLua()
	return s
}

func (s *Streamer) FadeOutFactor() float32     { return s.cfg.FadeOutFactor }
func (s *Streamer) FadeOverlapFactor() float32 { return s.cfg.FadeOverlapFactor }
func (s *Streamer) Centre() object.Vec3        { return s.centre }
func (s *Streamer) SetCentre(c object.Vec3)    { s.centre = c }

func (s *Streamer) reach(radius float32) float32 {
	return radius * s.cfg.Visibility
}

// List assigns o a slot and enters its sphere into the grid.
func (s *Streamer) List(o *object.Object) {
	var i int
	if n := len(s.free); n > 0 {
		i = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		i = len(s.slots)
		s.slots = append(s.slots, slot{})
	}
	pos, radius := o.Pos(), o.Radius()
	s.slots[i] = slot{obj: o, pos: pos, radius: radius}
	s.grid.Insert(i, pos.X, pos.Y, s.reach(radius))
	o.SetIndex(i)
}

// Unlist frees o's slot.
func (s *Streamer) Unlist(o *object.Object) {
	i := o.Index()
	if i < 0 || i >= len(s.slots) || s.slots[i].obj != o {
		s.log.Warn("unlisting object the streamer does not track", zap.String("object", o.Name()))
		o.SetIndex(object.NoIndex)
		return
	}
	s.grid.Remove(i)
	s.slots[i] = slot{}
	s.free = append(s.free, i)
	delete(s.activated, o)
	o.SetIndex(object.NoIndex)
}

func (s *Streamer) ListAsActivated(o *object.Object)   { s.activated[o] = struct{}{} }
func (s *Streamer) UnlistAsActivated(o *object.Object) { delete(s.activated, o) }

func (s *Streamer) UpdateSphere(i int, pos object.Vec3, radius float32) {
	if i < 0 || i >= len(s.slots) || s.slots[i].obj == nil {
		return
	}
	s.slots[i].pos = pos
	s.slots[i].radius = radius
	s.grid.Move(i, pos.X, pos.Y, s.reach(radius))
}

// range2 is the squared distance to the centre normalised by the squared
// scaled rendering distance: below 1 means in range.
func (s *Streamer) range2(pos object.Vec3, radius float32) float32 {
	reach := s.reach(radius)
	if reach <= 0 {
		return math.MaxFloat32
	}
	return pos.Sub(s.centre).Length2() / (reach * reach)
}

// Update moves the centre and runs one streaming round: fades and
// deactivations for activated objects, then activations of objects that
// came into range.
func (s *Streamer) Update(centre object.Vec3) Stats {
	s.centre = centre
	overlapping := s.updateActivated()
	s.activate()
	return Stats{Listed: s.grid.Len(), Activated: len(s.activated), Overlapping: overlapping}
}

func (s *Streamer) updateActivated() int {
	overlapping := 0
	for _, o := range s.activatedSnapshot() {
		// an earlier callback this round may have torn it down
		if o.Destroyed() || !o.Activated() || o.Index() == object.NoIndex {
			continue
		}
		sl := s.slots[o.Index()]
		r2 := s.range2(sl.pos, sl.radius)
		if r2 >= 1 {
			killme, err := o.Deactivate()
			if err != nil {
				s.log.Error("streamer: deactivation failed",
					zap.String("object", o.Name()), zap.Error(err))
			}
			if killme {
				s.reg.Delete(o)
			}
			continue
		}

		overlap := false
		f := o.CalcFade(r2, &overlap)
		if overlap {
			overlapping++
		}
		if f == o.LastFade() {
			continue
		}
		o.SetLastFade(f)
		if err := o.NotifyFade(f); err != nil {
			s.log.Error("streamer: fade notification failed",
				zap.String("object", o.Name()), zap.Error(err))
		}
	}
	return overlapping
}

type candidate struct {
	obj    *object.Object
	range2 float32
}

func (s *Streamer) activate() {
	slots := s.grid.Query(s.centre.X, s.centre.Y)
	cands := make([]candidate, 0, len(slots))
	for _, i := range slots {
		sl := s.slots[i]
		if sl.obj == nil || sl.obj.Activated() {
			continue
		}
		if r2 := s.range2(sl.pos, sl.radius); r2 < 1 {
			cands = append(cands, candidate{obj: sl.obj, range2: r2})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].range2 != cands[j].range2 {
			return cands[i].range2 < cands[j].range2
		}
		return cands[i].obj.Name() < cands[j].obj.Name()
	})
	if limit := s.cfg.ActivationsPerTick; limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}

	for _, c := range cands {
		o := c.obj
		// activate callbacks may delete or activate other candidates
		if o.Destroyed() || o.Activated() || o.Index() == object.NoIndex {
			continue
		}
		if err := o.Activate(); err != nil {
			s.log.Error("streamer: activation failed",
				zap.String("object", o.Name()), zap.Error(err))
		}
	}
}

func (s *Streamer) activatedSnapshot() []*object.Object {
	out := make([]*object.Object, 0, len(s.activated))
	for o := range s.activated {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Listed returns the number of objects the streamer tracks.
func (s *Streamer) Listed() int { return s.grid.Len() }

// ActivatedCount returns the number of objects listed as activated.
func (s *Streamer) ActivatedCount() int { return len(s.activated) }
