package object

import (
	"errors"

	"github.com/gritengine/gritd/internal/class"
	lua "github.com/yuin/gopher-lua"
)

const luaObjectTypeName = "GritObject"

type luaAPI struct {
	methods map[string]*lua.LFunction
}

// registerLua installs the GritObject metatable and the object globals:
//
//	object_add(class, name?, fields?) -> object
//	object_get(name) -> object
//	object_has(name) -> bool
//	object_del(object)
//	object_count() -> n
//	object_all() -> { object, ... }
func (r *Registry) registerLua(L *lua.LState) {
	mt := L.NewTypeMetatable(luaObjectTypeName)
	L.SetField(mt, "__index", L.NewFunction(r.luaIndex))
	L.SetField(mt, "__newindex", L.NewFunction(r.luaNewIndex))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		o := checkObject(L, 1)
		if o.Destroyed() {
			L.Push(lua.LString(`GritObject "` + o.name + `" (destroyed)`))
		} else {
			L.Push(lua.LString(`GritObject "` + o.name + `"`))
		}
		return 1
	}))
	L.SetField(mt, "__eq", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(checkObject(L, 1) == checkObject(L, 2)))
		return 1
	}))

	r.lua.methods = map[string]*lua.LFunction{
		"activate": L.NewFunction(func(L *lua.LState) int {
			raise(L, checkObject(L, 1).Activate())
			return 0
		}),
		"deactivate": L.NewFunction(func(L *lua.LState) int {
			o := checkObject(L, 1)
			killme, err := o.Deactivate()
			raise(L, err)
			if killme {
				r.Delete(o)
			}
			return 0
		}),
		"destroy": L.NewFunction(func(L *lua.LState) int {
			r.Delete(checkObject(L, 1))
			return 0
		}),
		"updateSphere": L.NewFunction(func(L *lua.LState) int {
			o := checkObject(L, 1)
			raise(L, destroyedErr(o))
			pos := Vec3{
				X: float32(L.CheckNumber(2)),
				Y: float32(L.CheckNumber(3)),
				Z: float32(L.CheckNumber(4)),
			}
			raise(L, o.UpdateSphere(pos, float32(L.OptNumber(5, lua.LNumber(o.radius)))))
			return 0
		}),
	}

	L.SetGlobal("object_add", L.NewFunction(r.luaAdd))
	L.SetGlobal("object_get", L.NewFunction(func(L *lua.LState) int {
		o, err := r.Get(L.CheckString(1))
		raise(L, err)
		L.Push(o.handle)
		return 1
	}))
	L.SetGlobal("object_has", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(r.Has(L.CheckString(1))))
		return 1
	}))
	L.SetGlobal("object_del", L.NewFunction(func(L *lua.LState) int {
		r.Delete(checkObject(L, 1))
		return 0
	}))
	L.SetGlobal("object_count", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(r.Count()))
		return 1
	}))
	L.SetGlobal("object_all", L.NewFunction(func(L *lua.LState) int {
		out := L.NewTable()
		for _, o := range r.All() {
			out.Append(o.handle)
		}
		L.Push(out)
		return 1
	}))
}

func (r *Registry) newHandle(o *Object) *lua.LUserData {
	L := r.engine.State()
	ud := L.NewUserData()
	ud.Value = o
	L.SetMetatable(ud, L.GetTypeMetatable(luaObjectTypeName))
	return ud
}

// luaAdd implements object_add(class, name?, fields?). The fields are
// copied into the object's own values before init runs; pos and radius
// place the object's sphere. Fields are checked before the object is
// created, so a bad table leaves the registry untouched.
func (r *Registry) luaAdd(L *lua.LState) int {
	var c *class.Class
	switch v := L.Get(1).(type) {
	case lua.LString:
		var err error
		c, err = r.classes.Get(string(v))
		raise(L, err)
	default:
		c = class.CheckClass(L, 1)
	}
	name := L.OptString(2, "")
	fields := L.OptTable(3, nil)

	var (
		pos      Vec3
		radius   = c.RenderingDistance()
		placed   bool
		userKeys []string
		userVals []lua.LValue
	)
	if fields != nil {
		fields.ForEach(func(k, v lua.LValue) {
			key, ok := k.(lua.LString)
			if !ok {
				return
			}
			switch key {
			case "pos":
				pos, placed = toVec3(L, v), true
			case "radius":
				n, ok := v.(lua.LNumber)
				if !ok {
					L.RaiseError("radius must be a number, got %s", v.Type().String())
				}
				radius, placed = float32(n), true
			default:
				userKeys = append(userKeys, string(key))
				userVals = append(userVals, v)
			}
		})
		raise(L, CheckSphere(pos, radius))
	}

	o := r.Add(name, c)
	for i, k := range userKeys {
		o.userValues.RawSetString(k, userVals[i])
	}
	if placed {
		raise(L, o.UpdateSphere(pos, radius))
	}
	raise(L, o.Init())
	L.Push(o.handle)
	return 1
}

func (r *Registry) luaIndex(L *lua.LState) int {
	o := checkObject(L, 1)
	key := L.CheckString(2)
	switch key {
	case "name":
		L.Push(lua.LString(o.name))
	case "destroyed":
		L.Push(lua.LBool(o.Destroyed()))
	case "activated":
		L.Push(lua.LBool(o.activated))
	case "anonymous":
		L.Push(lua.LBool(o.anonymous))
	case "class":
		raise(L, destroyedErr(o))
		L.Push(o.class.LValue(L))
	case "className":
		raise(L, destroyedErr(o))
		L.Push(lua.LString(o.class.Name()))
	case "instance":
		if o.instance == nil {
			L.Push(lua.LNil)
		} else {
			L.Push(o.instance)
		}
	case "needsFrameCallbacks":
		L.Push(lua.LBool(o.needsFrameCallbacks))
	case "needsStepCallbacks":
		L.Push(lua.LBool(o.needsStepCallbacks))
	case "pos":
		t := L.NewTable()
		t.RawSetString("x", lua.LNumber(o.pos.X))
		t.RawSetString("y", lua.LNumber(o.pos.Y))
		t.RawSetString("z", lua.LNumber(o.pos.Z))
		L.Push(t)
	case "radius":
		L.Push(lua.LNumber(o.radius))
	case "imposedFarFade":
		L.Push(lua.LNumber(o.imposedFarFade))
	case "near":
		L.Push(handleOrNil(o.near))
	case "far":
		L.Push(handleOrNil(o.far))
	default:
		if m, ok := r.lua.methods[key]; ok {
			L.Push(m)
			return 1
		}
		v, err := o.Field(key)
		raise(L, err)
		L.Push(v)
	}
	return 1
}

func (r *Registry) luaNewIndex(L *lua.LState) int {
	o := checkObject(L, 1)
	key := L.CheckString(2)
	v := L.Get(3)
	switch key {
	case "needsFrameCallbacks":
		raise(L, o.SetNeedsFrameCallbacks(lua.LVAsBool(v)))
	case "needsStepCallbacks":
		raise(L, o.SetNeedsStepCallbacks(lua.LVAsBool(v)))
	case "near":
		raise(L, o.SetNearObj(optObject(L, 3)))
	case "far":
		raise(L, o.SetFarObj(optObject(L, 3)))
	case "pos":
		raise(L, destroyedErr(o))
		raise(L, o.UpdatePos(toVec3(L, v)))
	case "radius":
		raise(L, destroyedErr(o))
		raise(L, o.UpdateRadius(float32(L.CheckNumber(3))))
	case "name", "destroyed", "activated", "anonymous", "class", "className", "instance", "imposedFarFade":
		L.RaiseError("GritObject field %q is read-only", key)
	default:
		if _, ok := r.lua.methods[key]; ok {
			L.RaiseError("GritObject method %q cannot be replaced", key)
			return 0
		}
		raise(L, destroyedErr(o))
		o.userValues.RawSetString(key, v)
	}
	return 0
}

func checkObject(L *lua.LState, n int) *Object {
	ud := L.CheckUserData(n)
	if o, ok := ud.Value.(*Object); ok {
		return o
	}
	L.ArgError(n, "GritObject expected")
	return nil
}

func optObject(L *lua.LState, n int) *Object {
	if L.Get(n) == lua.LNil {
		return nil
	}
	return checkObject(L, n)
}

func handleOrNil(o *Object) lua.LValue {
	if o == nil {
		return lua.LNil
	}
	return o.handle
}

// toVec3 accepts {x=, y=, z=} or {x, y, z}.
func toVec3(L *lua.LState, v lua.LValue) Vec3 {
	t, ok := v.(*lua.LTable)
	if !ok {
		L.RaiseError("position must be a table, got %s", v.Type().String())
		return Vec3{}
	}
	get := func(name string, i int) float32 {
		if n, ok := t.RawGetString(name).(lua.LNumber); ok {
			return float32(n)
		}
		return float32(lua.LVAsNumber(t.RawGetInt(i)))
	}
	return Vec3{X: get("x", 1), Y: get("y", 2), Z: get("z", 3)}
}

func destroyedErr(o *Object) error {
	if o.Destroyed() {
		return ErrObjectDestroyed
	}
	return nil
}

func raise(L *lua.LState, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, ErrObjectDestroyed) {
		L.RaiseError("Object destroyed")
		return
	}
	L.RaiseError("%s", err.Error())
}
