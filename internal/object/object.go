package object

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/gritengine/gritd/internal/class"
	"github.com/gritengine/gritd/internal/demand"
	"github.com/gritengine/gritd/internal/fade"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// loadTimeout bounds the synchronous resource load done by an explicit
// activation.
const loadTimeout = 30 * time.Second

// Object is a named, class-typed world entity.
//
// An object is alive while it holds its class; Destroy drops the class and
// every later lifecycle call fails with ErrObjectDestroyed. It is activated
// while it owns a script instance table. Near and far are non-owning links
// used only for fade propagation.
type Object struct {
	name      string
	anonymous bool
	class     *class.Class
	reg       *Registry

	handle     *lua.LUserData // persistent handle passed to every callback
	userValues *lua.LTable    // per-object fields, shadowing the class's
	instance   *lua.LTable    // script state of the current activation
	activated  bool

	needsFrameCallbacks bool
	needsStepCallbacks  bool

	demand *demand.Demand

	pos    Vec3
	radius float32
	index  int

	imposedFarFade float32
	lastFade       float32

	near *Object
	far  *Object
}

func newObject(r *Registry, name string, c *class.Class) *Object {
	c.Acquire()
	o := &Object{
		name:           name,
		class:          c,
		reg:            r,
		userValues:     r.engine.NewTable(),
		demand:         demand.New(r.cache, c.Resources()),
		radius:         c.RenderingDistance(),
		index:          NoIndex,
		imposedFarFade: 1,
		lastFade:       fade.Unset,
	}
	o.handle = r.newHandle(o)
	return o
}

func (o *Object) Name() string              { return o.name }
func (o *Object) Anonymous() bool           { return o.anonymous }
func (o *Object) Destroyed() bool           { return o.class == nil }
func (o *Object) Activated() bool           { return o.activated }
func (o *Object) Instance() *lua.LTable     { return o.instance }
func (o *Object) Handle() lua.LValue        { return o.handle }
func (o *Object) Demand() *demand.Demand    { return o.demand }
func (o *Object) Pos() Vec3                 { return o.pos }
func (o *Object) Radius() float32           { return o.radius }
func (o *Object) Index() int                { return o.index }
func (o *Object) SetIndex(i int)            { o.index = i }
func (o *Object) ImposedFarFade() float32   { return o.imposedFarFade }
func (o *Object) LastFade() float32         { return o.lastFade }
func (o *Object) SetLastFade(f float32)     { o.lastFade = f }
func (o *Object) Near() *Object             { return o.near }
func (o *Object) Far() *Object              { return o.far }
func (o *Object) NeedsFrameCallbacks() bool { return o.needsFrameCallbacks }
func (o *Object) NeedsStepCallbacks() bool  { return o.needsStepCallbacks }
func (o *Object) UserValues() *lua.LTable   { return o.userValues }
func (o *Object) Class() *class.Class       { return o.class }

// className is safe to call after destroy, for diagnostics.
func (o *Object) className() string {
	if o.class == nil {
		return "<destroyed>"
	}
	return o.class.Name()
}

func (o *Object) logFields(err error) []zap.Field {
	fields := []zap.Field{zap.String("object", o.name), zap.String("class", o.className())}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	return fields
}

// Field resolves key on the object's own values first, then on its class.
// An error raised while indexing is returned to the caller.
func (o *Object) Field(key string) (lua.LValue, error) {
	if o.class == nil {
		return lua.LNil, ErrObjectDestroyed
	}
	v, err := o.reg.engine.Index(o.userValues, key)
	if err != nil {
		return lua.LNil, fmt.Errorf("object %q field %s: %w", o.name, key, err)
	}
	if v != lua.LNil {
		return v, nil
	}
	return o.class.Get(o.reg.engine, key)
}

// Init runs the class's init callback. A missing init, or one that raises,
// removes the object from the world.
func (o *Object) Init() error {
	if o.class == nil {
		return ErrObjectDestroyed
	}

	fn, err := o.Field("init")
	if err != nil {
		return err
	}
	if fn == lua.LNil {
		o.reg.log.Error("initializing object: class does not have init function", o.logFields(nil)...)
		o.reg.Delete(o)
		return nil
	}

	if _, err := o.reg.engine.Call(fn, 0, o.handle); err != nil {
		o.reg.log.Error("object raised an error on initialization, so destroying it", o.logFields(err)...)
		o.reg.Delete(o)
	}
	return nil
}

// Activate loads the object's resources if needed, creates a fresh script
// instance and runs the class's activate callback. No-op when already
// activated.
func (o *Object) Activate() error {
	if o.activated {
		return nil
	}
	if o.class == nil {
		return ErrObjectDestroyed
	}

	// class_add may have swapped the class's resource list since creation
	if res := o.class.Resources(); !slices.Equal(res, o.demand.Resources()) {
		o.demand.Release()
		o.demand = demand.New(o.reg.cache, res)
	}
	if !o.demand.Loaded() {
		// Not via the streamer, which waits for the load; make sure it works.
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		err := o.demand.ImmediateLoad(ctx)
		cancel()
		if err != nil {
			o.reg.log.Error("object raised an error on activation, so destroying it", o.logFields(err)...)
			o.reg.Delete(o)
			return nil
		}
	}

	fn, err := o.Field("activate")
	if err != nil {
		return err
	}
	if fn == lua.LNil {
		o.reg.log.Error("activating object: class does not have activate function", o.logFields(nil)...)
		o.reg.Delete(o)
		return nil
	}

	inst := o.reg.engine.NewTable()
	o.instance = inst
	o.activated = true

	if _, err := o.reg.engine.Call(fn, 0, o.handle, inst); err != nil {
		o.reg.log.Error("object raised an error on activation, so destroying it", o.logFields(err)...)
		o.reg.Delete(o)
		return nil
	}

	// The callback may have destroyed or deactivated us.
	if o.class == nil || !o.activated || o.instance != inst {
		return nil
	}
	o.reg.streamer.ListAsActivated(o)
	o.lastFade = fade.Unset
	return nil
}

// Deactivate runs the class's deactivate callback and releases the script
// instance. The result asks the caller to delete the object: the callback
// returned true, raised, or does not exist.
func (o *Object) Deactivate() (bool, error) {
	if o.class == nil {
		return false, ErrObjectDestroyed
	}
	if !o.activated {
		return false, nil
	}

	// Re-entrant calls from the callback see the object as deactivated.
	o.activated = false
	o.reg.streamer.UnlistAsActivated(o)
	inst := o.instance
	defer func() {
		// a re-activation from inside the callback owns a new instance
		if o.instance == inst {
			o.releaseInstance()
		}
	}()

	fn, err := o.Field("deactivate")
	if err != nil {
		return false, err
	}
	if fn == lua.LNil {
		o.reg.log.Error("deactivating object: class does not have deactivate function", o.logFields(nil)...)
		return true, nil
	}

	ret, err := o.reg.engine.Call(fn, 1, o.handle)
	if err != nil {
		o.reg.log.Error("object raised an error on deactivation", o.logFields(err)...)
		return true, nil
	}
	return lua.LVAsBool(ret[0]), nil
}

func (o *Object) releaseInstance() {
	o.instance = nil
}

// Destroy tears the object down. Idempotent, and safe to re-enter from a
// callback the teardown itself triggers.
func (o *Object) Destroy() {
	if o.class == nil {
		return
	}
	if o.needsFrameCallbacks {
		o.needsFrameCallbacks = false
		delete(o.reg.frameSet, o)
	}
	if o.needsStepCallbacks {
		o.needsStepCallbacks = false
		delete(o.reg.stepSet, o)
	}
	_ = o.SetNearObj(nil)
	_ = o.SetFarObj(nil)

	if _, err := o.Deactivate(); err != nil {
		o.reg.log.Error("destroying object: deactivation failed", o.logFields(err)...)
	}
	if o.class == nil {
		// destroyed from inside the deactivate callback
		return
	}

	o.class.Release()
	o.class = nil
	o.demand.Release()
	o.userValues = nil
}

// SetNearObj links v as this object's near counterpart and this object as
// v's far counterpart, unlinking any previous partners on both sides.
func (o *Object) SetNearObj(v *Object) error {
	if o.class == nil || (v != nil && v.class == nil) {
		return ErrObjectDestroyed
	}
	if o.near == v {
		return nil
	}
	if old := o.near; old != nil {
		o.near = nil
		_ = old.SetFarObj(nil)
	}
	o.near = v
	if v != nil {
		return v.SetFarObj(o)
	}
	return nil
}

// SetFarObj is the mirror of SetNearObj.
func (o *Object) SetFarObj(v *Object) error {
	if o.class == nil || (v != nil && v.class == nil) {
		return ErrObjectDestroyed
	}
	if o.far == v {
		return nil
	}
	if old := o.far; old != nil {
		o.far = nil
		_ = old.SetNearObj(nil)
	}
	o.far = v
	if v != nil {
		return v.SetNearObj(o)
	}
	return nil
}

// CalcFade computes this object's fade for a normalised squared range and
// updates the fade it imposes on its far counterpart. overlap is set, never
// cleared.
func (o *Object) CalcFade(range2 float32, overlap *bool) float32 {
	in := fade.Input{
		Range2: range2,
		Out:    o.reg.streamer.FadeOutFactor(),
		Over:   o.reg.streamer.FadeOverlapFactor(),
		HasFar: o.far != nil,
	}
	if o.near != nil && o.near.activated {
		in.HasNear = true
		in.NearImposedFarFade = o.near.imposedFarFade
	}
	r := fade.Calc(in)
	o.imposedFarFade = r.ImposedFarFade
	if r.Overlap {
		*overlap = true
	}
	return r.Fade
}

// NotifyFade passes a new fade value to the class's setFade callback.
func (o *Object) NotifyFade(f float32) error {
	if o.class == nil {
		return ErrObjectDestroyed
	}
	if !o.activated {
		return nil
	}

	fn, err := o.Field("setFade")
	if err != nil {
		return err
	}
	if fn == lua.LNil {
		return nil
	}

	if _, err := o.reg.engine.Call(fn, 0, o.handle, lua.LNumber(f)); err != nil {
		o.reg.log.Error("object raised an error in setFade, so destroying it", o.logFields(err)...)
		o.reg.Delete(o)
	}
	return nil
}

// FrameCallback runs the class's frameCallback. false means the object
// should stop receiving frame callbacks.
func (o *Object) FrameCallback(elapsed float32) (bool, error) {
	return o.tickCallback("frameCallback", elapsed)
}

// StepCallback runs the class's stepCallback. false means the object
// should stop receiving step callbacks.
func (o *Object) StepCallback(elapsed float32) (bool, error) {
	return o.tickCallback("stepCallback", elapsed)
}

func (o *Object) tickCallback(name string, elapsed float32) (bool, error) {
	if o.class == nil {
		return false, ErrObjectDestroyed
	}

	fn, err := o.Field(name)
	if err != nil {
		return false, err
	}
	if fn == lua.LNil {
		return false, nil
	}

	if _, err := o.reg.engine.Call(fn, 0, o.handle, lua.LNumber(elapsed)); err != nil {
		o.reg.log.Error("object raised an error in "+name, o.logFields(err)...)
		return false, nil
	}
	return true, nil
}

// SetNeedsFrameCallbacks subscribes or unsubscribes the object from
// per-frame dispatch.
func (o *Object) SetNeedsFrameCallbacks(v bool) error {
	if o.class == nil {
		return ErrObjectDestroyed
	}
	if v == o.needsFrameCallbacks {
		return nil
	}
	o.needsFrameCallbacks = v
	if v {
		o.reg.frameSet[o] = struct{}{}
	} else {
		delete(o.reg.frameSet, o)
	}
	return nil
}

// SetNeedsStepCallbacks subscribes or unsubscribes the object from
// fixed-step dispatch.
func (o *Object) SetNeedsStepCallbacks(v bool) error {
	if o.class == nil {
		return ErrObjectDestroyed
	}
	if v == o.needsStepCallbacks {
		return nil
	}
	o.needsStepCallbacks = v
	if v {
		o.reg.stepSet[o] = struct{}{}
	} else {
		delete(o.reg.stepSet, o)
	}
	return nil
}

// UpdateSphere moves the object's bounding sphere. Ignored while the
// object is not spatially indexed; an invalid sphere is rejected with
// ErrInvalidSphere and leaves the old one in place.
func (o *Object) UpdateSphere(pos Vec3, radius float32) error {
	if err := CheckSphere(pos, radius); err != nil {
		return err
	}
	if o.index == NoIndex {
		return nil
	}
	o.pos = pos
	o.radius = radius
	o.reg.streamer.UpdateSphere(o.index, pos, radius)
	return nil
}

func (o *Object) UpdatePos(pos Vec3) error     { return o.UpdateSphere(pos, o.radius) }
func (o *Object) UpdateRadius(r float32) error { return o.UpdateSphere(o.pos, r) }
