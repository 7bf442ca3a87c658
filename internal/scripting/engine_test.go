package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(zap.NewNop())
	t.Cleanup(e.Close)
	return e
}

func TestEngine_CallReturnsResults(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.DoString(`function pair(a, b) return a + b, a * b end`))

	ret, err := e.Call(e.State().GetGlobal("pair"), 2, lua.LNumber(3), lua.LNumber(4))
	require.NoError(t, err)
	require.Len(t, ret, 2)
	assert.Equal(t, lua.LNumber(7), ret[0])
	assert.Equal(t, lua.LNumber(12), ret[1])
	assert.Equal(t, 0, e.State().GetTop())
}

func TestEngine_CallContainsErrors(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.DoString(`function boom() error("kaboom") end`))

	_, err := e.Call(e.State().GetGlobal("boom"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	_, err = e.Call(lua.LNumber(1), 0)
	assert.Error(t, err, "calling a non-function is an error, not a panic")
	assert.Equal(t, 0, e.State().GetTop())
}

func TestEngine_NestedCall(t *testing.T) {
	e := newTestEngine(t)
	e.State().SetGlobal("call_back", e.State().NewFunction(func(L *lua.LState) int {
		ret, err := e.Call(L.Get(1), 1)
		if err != nil {
			L.Push(lua.LString("failed"))
			return 1
		}
		L.Push(ret[0])
		return 1
	}))
	require.NoError(t, e.DoString(`
		ok_result = call_back(function() return "inner" end)
		err_result = call_back(function() error("x") end)
	`))
	assert.Equal(t, lua.LString("inner"), e.State().GetGlobal("ok_result"))
	assert.Equal(t, lua.LString("failed"), e.State().GetGlobal("err_result"))
}

func TestEngine_IndexHonoursMetatable(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.DoString(`
		base = { colour = "green" }
		derived = setmetatable({}, { __index = base })
		broken = setmetatable({}, { __index = function() error("no lookups") end })
	`))

	v, err := e.Index(e.State().GetGlobal("derived"), "colour")
	require.NoError(t, err)
	assert.Equal(t, lua.LString("green"), v)

	v, err = e.Index(e.State().GetGlobal("derived"), "missing")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, v)

	_, err = e.Index(e.State().GetGlobal("broken"), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no lookups")
}

func TestEngine_LoadScriptsOrder(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, src string) {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(src), 0o644))
	}
	write("core/a.lua", `order = "core"`)
	write("classes/b.lua", `order = order .. ",classes"`)
	write("world/c.lua", `order = order .. ",world"`)
	write("world/notes.txt", `this is not lua`)

	e := newTestEngine(t)
	require.NoError(t, e.LoadScripts(dir))
	assert.Equal(t, lua.LString("core,classes,world"), e.State().GetGlobal("order"))
}

func TestEngine_LoadScriptsReportsSyntaxError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "core"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "core", "bad.lua"), []byte(`function (`), 0o644))

	e := newTestEngine(t)
	err := e.LoadScripts(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.lua")
}

func TestLuaHelpers(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.DoString(`t = { radius = 25, resources = { "a.mesh", 3, "b.tex" } }`))
	tbl := e.State().GetGlobal("t").(*lua.LTable)

	assert.Equal(t, 25.0, LNumberOr(tbl, "radius", 1))
	assert.Equal(t, 1.0, LNumberOr(tbl, "missing", 1))
	assert.Equal(t, []string{"a.mesh", "b.tex"}, LStrings(tbl, "resources"))
	assert.Nil(t, LStrings(tbl, "radius"))
}
