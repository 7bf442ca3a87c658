package world

import (
	"github.com/gritengine/gritd/internal/data"
	"github.com/gritengine/gritd/internal/object"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Spawn creates an object for every placement and runs its init callback.
// Far links are made once every placement exists, so a placement may name
// a far counterpart defined later in the list. Returns the number of
// objects still alive afterwards.
func Spawn(reg *object.Registry, placements []data.Placement, log *zap.Logger) int {
	spawned := make([]*object.Object, len(placements))
	for i := range placements {
		p := &placements[i]
		c, err := reg.Classes().Get(p.Class)
		if err != nil {
			log.Warn("spawn: unknown class", zap.String("object", p.Name), zap.String("class", p.Class))
			continue
		}

		pos := object.Vec3{X: p.Pos[0], Y: p.Pos[1], Z: p.Pos[2]}
		radius := p.Radius
		if radius == 0 {
			radius = c.RenderingDistance()
		}
		if err := object.CheckSphere(pos, radius); err != nil {
			log.Warn("spawn: bad placement sphere", zap.String("object", p.Name), zap.Error(err))
			continue
		}

		o := reg.Add(p.Name, c)
		for k, v := range p.Fields {
			lv, ok := toLValue(v)
			if !ok {
				log.Warn("spawn: unsupported field value",
					zap.String("object", o.Name()), zap.String("field", k), zap.Any("value", v))
				continue
			}
			o.UserValues().RawSetString(k, lv)
		}
		if err := o.UpdateSphere(pos, radius); err != nil {
			log.Warn("spawn: cannot place object", zap.String("object", o.Name()), zap.Error(err))
		}

		if err := o.Init(); err != nil {
			log.Error("spawn: init failed", zap.String("object", o.Name()), zap.Error(err))
		}
		spawned[i] = o
	}

	for i, o := range spawned {
		far := placements[i].Far
		if o == nil || o.Destroyed() || far == "" {
			continue
		}
		fo, err := reg.Get(far)
		if err != nil {
			log.Warn("spawn: far counterpart missing", zap.String("object", o.Name()), zap.String("far", far))
			continue
		}
		if err := o.SetFarObj(fo); err != nil {
			log.Warn("spawn: cannot link far counterpart",
				zap.String("object", o.Name()), zap.String("far", far), zap.Error(err))
		}
	}

	alive := 0
	for _, o := range spawned {
		if o != nil && !o.Destroyed() {
			alive++
		}
	}
	return alive
}

// Snapshot captures the live objects as placements, ordered by name.
// Anonymous objects are saved without a name and get a fresh one when
// spawned again; links to them are not kept. Only scalar user values
// survive.
func Snapshot(reg *object.Registry) []data.Placement {
	objs := reg.All()
	out := make([]data.Placement, 0, len(objs))
	for _, o := range objs {
		if o.Destroyed() {
			continue
		}
		pos := o.Pos()
		p := data.Placement{
			Class:  o.Class().Name(),
			Pos:    [3]float32{pos.X, pos.Y, pos.Z},
			Radius: o.Radius(),
		}
		if !o.Anonymous() {
			p.Name = o.Name()
		}
		if f := o.Far(); f != nil && !f.Anonymous() {
			p.Far = f.Name()
		}
		o.UserValues().ForEach(func(k, v lua.LValue) {
			key, ok := k.(lua.LString)
			if !ok {
				return
			}
			if gv, ok := fromLValue(v); ok {
				if p.Fields == nil {
					p.Fields = make(map[string]any)
				}
				p.Fields[string(key)] = gv
			}
		})
		out = append(out, p)
	}
	return out
}

func toLValue(v any) (lua.LValue, bool) {
	switch v := v.(type) {
	case string:
		return lua.LString(v), true
	case bool:
		return lua.LBool(v), true
	case int:
		return lua.LNumber(v), true
	case int32:
		return lua.LNumber(v), true
	case int64:
		return lua.LNumber(v), true
	case float32:
		return lua.LNumber(v), true
	case float64:
		return lua.LNumber(v), true
	}
	return lua.LNil, false
}

func fromLValue(v lua.LValue) (any, bool) {
	switch v := v.(type) {
	case lua.LString:
		return string(v), true
	case lua.LBool:
		return bool(v), true
	case lua.LNumber:
		return float64(v), true
	}
	return nil, false
}
