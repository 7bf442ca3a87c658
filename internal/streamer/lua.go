package streamer

import (
	"github.com/gritengine/gritd/internal/object"
	lua "github.com/yuin/gopher-lua"
)

// registerLua installs:
//
//	streamer_centre(x?, y?, z?) -> x, y, z
//	streamer_stats() -> { listed = n, activated = n }
func (s *Streamer) registerLua() {
	L := s.reg.Engine().State()
	L.SetGlobal("streamer_centre", L.NewFunction(func(L *lua.LState) int {
		if L.GetTop() > 0 {
			s.SetCentre(object.Vec3{
				X: float32(L.CheckNumber(1)),
				Y: float32(L.CheckNumber(2)),
				Z: float32(L.CheckNumber(3)),
			})
		}
		L.Push(lua.LNumber(s.centre.X))
		L.Push(lua.LNumber(s.centre.Y))
		L.Push(lua.LNumber(s.centre.Z))
		return 3
	}))
	L.SetGlobal("streamer_stats", L.NewFunction(func(L *lua.LState) int {
		t := L.NewTable()
		t.RawSetString("listed", lua.LNumber(s.Listed()))
		t.RawSetString("activated", lua.LNumber(s.ActivatedCount()))
		L.Push(t)
		return 1
	}))
}
