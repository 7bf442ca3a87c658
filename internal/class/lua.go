package class

import (
	lua "github.com/yuin/gopher-lua"
)

const luaClassTypeName = "GritClass"

// Register installs the class API into the VM:
//
//	class_add(name, fields) -> class
//	class_get(name) -> class
//	class_has(name) -> bool
//	class_del(name)
//	class_all() -> { class, ... }
func (t *Table) Register(L *lua.LState) {
	mt := L.NewTypeMetatable(luaClassTypeName)
	L.SetField(mt, "__index", L.NewFunction(classIndex))
	L.SetField(mt, "__newindex", L.NewFunction(classNewIndex))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		c := CheckClass(L, 1)
		L.Push(lua.LString(`GritClass "` + c.name + `"`))
		return 1
	}))

	L.SetGlobal("class_add", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		fields := L.CheckTable(2)
		L.Push(t.Add(name, fields).LValue(L))
		return 1
	}))
	L.SetGlobal("class_get", L.NewFunction(func(L *lua.LState) int {
		c, err := t.Get(L.CheckString(1))
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(c.LValue(L))
		return 1
	}))
	L.SetGlobal("class_has", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(t.Has(L.CheckString(1))))
		return 1
	}))
	L.SetGlobal("class_del", L.NewFunction(func(L *lua.LState) int {
		if err := t.Remove(L.CheckString(1)); err != nil {
			L.RaiseError("%s", err.Error())
		}
		return 0
	}))
	L.SetGlobal("class_all", L.NewFunction(func(L *lua.LState) int {
		out := L.NewTable()
		for _, n := range t.Names() {
			out.Append(t.classes[n].LValue(L))
		}
		L.Push(out)
		return 1
	}))
}

// LValue returns the class's Lua handle, creating it on first use.
func (c *Class) LValue(L *lua.LState) lua.LValue {
	if c.handle == nil {
		ud := L.NewUserData()
		ud.Value = c
		L.SetMetatable(ud, L.GetTypeMetatable(luaClassTypeName))
		c.handle = ud
	}
	return c.handle
}

// CheckClass returns the class at stack position n or raises an argument error.
func CheckClass(L *lua.LState, n int) *Class {
	ud := L.CheckUserData(n)
	if c, ok := ud.Value.(*Class); ok {
		return c
	}
	L.ArgError(n, "GritClass expected")
	return nil
}

func classIndex(L *lua.LState) int {
	c := CheckClass(L, 1)
	key := L.CheckString(2)
	switch key {
	case "name":
		L.Push(lua.LString(c.name))
		return 1
	case "refs":
		L.Push(lua.LNumber(c.refs))
		return 1
	}
	if c.fields == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(L.GetField(c.fields, key))
	return 1
}

func classNewIndex(L *lua.LState) int {
	c := CheckClass(L, 1)
	key := L.CheckString(2)
	if key == "name" || key == "refs" {
		L.RaiseError("class field %q is read-only", key)
		return 0
	}
	if c.fields == nil {
		L.RaiseError("class %q has been freed", c.name)
		return 0
	}
	c.fields.RawSetString(key, L.Get(3))
	return 0
}
