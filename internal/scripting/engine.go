package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for object scripts.
// Single-goroutine access only (game loop). Go callbacks registered on the
// VM may re-enter Call; gopher-lua supports nested protected calls.
type Engine struct {
	vm    *lua.LState
	log   *zap.Logger
	index *lua.LFunction
}

// NewEngine creates a Lua VM with the standard libraries opened and no
// scripts loaded. Globals that scripts depend on must be registered before
// LoadScripts.
func NewEngine(log *zap.Logger) *Engine {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	e.index = vm.NewFunction(func(L *lua.LState) int {
		L.Push(L.GetField(L.Get(1), L.CheckString(2)))
		return 1
	})
	return e
}

// LoadScripts loads core scripts, then class definitions, then world
// scripts from the given directory.
func (e *Engine) LoadScripts(scriptsDir string) error {
	for _, sub := range []string{"core", "classes", "world"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			return fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return nil
}

// loadDir loads all .lua files in a directory in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a chunk of Lua source.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// State exposes the VM for registering Go functions and metatables.
func (e *Engine) State() *lua.LState {
	return e.vm
}

// NewTable allocates an empty Lua table.
func (e *Engine) NewTable() *lua.LTable {
	return e.vm.NewTable()
}

// Call invokes fn in protected mode and returns exactly nret results.
// A Lua error inside fn is returned, never raised into the caller.
func (e *Engine) Call(fn lua.LValue, nret int, args ...lua.LValue) ([]lua.LValue, error) {
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    nret,
		Protect: true,
	}, args...); err != nil {
		return nil, err
	}

	ret := make([]lua.LValue, nret)
	for i := 0; i < nret; i++ {
		ret[i] = e.vm.Get(i - nret)
	}
	e.vm.Pop(nret)
	return ret, nil
}

// Index performs t[key] with metamethods honoured. An error raised by an
// __index handler is returned instead of escaping.
func (e *Engine) Index(t lua.LValue, key string) (lua.LValue, error) {
	ret, err := e.Call(e.index, 1, t, lua.LString(key))
	if err != nil {
		return lua.LNil, err
	}
	return ret[0], nil
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}

// --- Lua helpers ---

// LNumberOr reads a numeric field from a Lua table, or def when absent.
func LNumberOr(t *lua.LTable, key string, def float64) float64 {
	if n, ok := t.RawGetString(key).(lua.LNumber); ok {
		return float64(n)
	}
	return def
}

// LStrings reads an array of strings from a Lua table field.
func LStrings(t *lua.LTable, key string) []string {
	arr, ok := t.RawGetString(key).(*lua.LTable)
	if !ok {
		return nil
	}
	var out []string
	arr.ForEach(func(_, v lua.LValue) {
		if s, ok := v.(lua.LString); ok {
			out = append(out, string(s))
		}
	})
	return out
}
