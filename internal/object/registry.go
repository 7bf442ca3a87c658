package object

import (
	"fmt"
	"sort"

	"github.com/gritengine/gritd/internal/class"
	"github.com/gritengine/gritd/internal/demand"
	"github.com/gritengine/gritd/internal/scripting"
	"go.uber.org/zap"
)

// maxDeleteAllPasses bounds DeleteAll when teardown callbacks keep creating
// new objects.
const maxDeleteAllPasses = 16

// maxLoggedLeftovers caps the names logged when DeleteAll gives up.
const maxLoggedLeftovers = 20

// Registry owns every live object by name and the sets of objects that
// want frame and step callbacks.
// Accessed only from the game loop goroutine, no locks. Script callbacks
// may re-enter any method, so every loop over a set works on a snapshot.
type Registry struct {
	engine   *scripting.Engine
	classes  *class.Table
	cache    *demand.Cache
	streamer Streamer
	log      *zap.Logger

	objs        map[string]*Object
	frameSet    map[*Object]struct{}
	stepSet     map[*Object]struct{}
	nameCounter uint64

	lua luaAPI
}

// NewRegistry creates an empty registry and installs the object API into
// the engine's VM. Until AttachStreamer is called objects are not spatially
// indexed.
func NewRegistry(engine *scripting.Engine, classes *class.Table, cache *demand.Cache, log *zap.Logger) *Registry {
	r := &Registry{
		engine:   engine,
		classes:  classes,
		cache:    cache,
		streamer: nopStreamer{},
		log:      log,
		objs:     make(map[string]*Object, 1024),
		frameSet: make(map[*Object]struct{}, 64),
		stepSet:  make(map[*Object]struct{}, 64),
	}
	r.registerLua(engine.State())
	return r
}

// AttachStreamer sets the streaming subsystem notified of object changes.
func (r *Registry) AttachStreamer(s Streamer) {
	r.streamer = s
}

func (r *Registry) Engine() *scripting.Engine { return r.engine }
func (r *Registry) Classes() *class.Table     { return r.classes }

// Add creates and registers an object. An empty name is replaced by a
// unique "Unnamed:<class>:<n>" name. An existing object with the same name
// is deleted first.
func (r *Registry) Add(name string, c *class.Class) *Object {
	anonymous := false
	if name == "" {
		anonymous = true
		for {
			name = fmt.Sprintf("Unnamed:%s:%d", c.Name(), r.nameCounter)
			r.nameCounter++
			if _, ok := r.objs[name]; !ok {
				break
			}
		}
	}

	// Teardown callbacks may register the name again; keep deleting.
	for prev, ok := r.objs[name]; ok; prev, ok = r.objs[name] {
		r.Delete(prev)
	}

	o := newObject(r, name, c)
	o.anonymous = anonymous
	r.objs[name] = o
	r.streamer.List(o)
	return o
}

// Delete destroys an object and removes it from the streamer and the name
// table. Deleting an object already gone is harmless.
func (r *Registry) Delete(o *Object) {
	o.Destroy()
	if o.index != NoIndex {
		r.streamer.Unlist(o)
	}

	// Since deactivation can destroy other objects, teardown order can
	// bring us here for an object already removed, or replaced under the
	// same name.
	if cur, ok := r.objs[o.name]; ok && cur == o {
		delete(r.objs, o.name)
	}
}

// Get returns the live object with the given name.
func (r *Registry) Get(name string) (*Object, error) {
	o, ok := r.objs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return o, nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.objs[name]
	return ok
}

// Count returns the number of live objects.
func (r *Registry) Count() int {
	return len(r.objs)
}

// All returns a snapshot of the live objects ordered by name.
func (r *Registry) All() []*Object {
	out := make([]*Object, 0, len(r.objs))
	for _, o := range r.objs {
		out = append(out, o)
	}
	sortByName(out)
	return out
}

// DeleteAll deletes every object, including ones created by teardown
// callbacks along the way.
func (r *Registry) DeleteAll() {
	for pass := 0; len(r.objs) > 0; pass++ {
		if pass == maxDeleteAllPasses {
			left := r.All()
			names := make([]string, 0, min(len(left), maxLoggedLeftovers))
			for _, o := range left[:cap(names)] {
				names = append(names, o.name)
			}
			r.log.Warn("objects still being created during teardown",
				zap.Int("remaining", len(left)), zap.Strings("objects", names))
			return
		}
		for _, o := range r.All() {
			r.Delete(o)
		}
	}
}

// FrameSubscribers returns the number of objects wanting frame callbacks.
func (r *Registry) FrameSubscribers() int { return len(r.frameSet) }

// StepSubscribers returns the number of objects wanting step callbacks.
func (r *Registry) StepSubscribers() int { return len(r.stepSet) }

// DispatchFrameCallbacks runs frameCallback on every subscribed object.
// Objects whose callback is missing or fails are unsubscribed.
func (r *Registry) DispatchFrameCallbacks(elapsed float32) {
	for _, o := range snapshot(r.frameSet) {
		if o.Destroyed() {
			continue // deleted by an earlier callback this round
		}
		keep, err := o.FrameCallback(elapsed)
		if err != nil {
			r.log.Error("frameCallback lookup failed", o.logFields(err)...)
		}
		if keep || o.Destroyed() {
			continue
		}
		_ = o.SetNeedsFrameCallbacks(false)
	}
}

// DispatchStepCallbacks runs stepCallback on every subscribed object.
// Objects whose callback is missing or fails are unsubscribed.
func (r *Registry) DispatchStepCallbacks(elapsed float32) {
	for _, o := range snapshot(r.stepSet) {
		if o.Destroyed() {
			continue
		}
		keep, err := o.StepCallback(elapsed)
		if err != nil {
			r.log.Error("stepCallback lookup failed", o.logFields(err)...)
		}
		if keep || o.Destroyed() {
			continue
		}
		_ = o.SetNeedsStepCallbacks(false)
	}
}

func snapshot(set map[*Object]struct{}) []*Object {
	out := make([]*Object, 0, len(set))
	for o := range set {
		out = append(out, o)
	}
	sortByName(out)
	return out
}

func sortByName(objs []*Object) {
	sort.Slice(objs, func(i, j int) bool { return objs[i].name < objs[j].name })
}
