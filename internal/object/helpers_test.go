package object

import (
	"strings"
	"testing"

	"github.com/gritengine/gritd/internal/class"
	"github.com/gritengine/gritd/internal/demand"
	"github.com/gritengine/gritd/internal/scripting"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// recordingStreamer is an in-memory Streamer that hands out indices and
// remembers what it was told.
type recordingStreamer struct {
	next      int
	listed    map[*Object]bool
	activated map[*Object]bool
	spheres   map[int]Vec3
	unlisted  []string
	out, over float32
}

func newRecordingStreamer() *recordingStreamer {
	return &recordingStreamer{
		listed:    make(map[*Object]bool),
		activated: make(map[*Object]bool),
		spheres:   make(map[int]Vec3),
		out:       DefaultFadeOutFactor,
		over:      DefaultFadeOverlapFactor,
	}
}

func (s *recordingStreamer) List(o *Object) {
	s.listed[o] = true
	o.SetIndex(s.next)
	s.next++
}

func (s *recordingStreamer) Unlist(o *Object) {
	delete(s.listed, o)
	delete(s.activated, o)
	s.unlisted = append(s.unlisted, o.Name())
	o.SetIndex(NoIndex)
}

func (s *recordingStreamer) ListAsActivated(o *Object)   { s.activated[o] = true }
func (s *recordingStreamer) UnlistAsActivated(o *Object) { delete(s.activated, o) }
func (s *recordingStreamer) UpdateSphere(i int, pos Vec3, _ float32) {
	s.spheres[i] = pos
}
func (s *recordingStreamer) FadeOutFactor() float32     { return s.out }
func (s *recordingStreamer) FadeOverlapFactor() float32 { return s.over }

type testEnv struct {
	reg      *Registry
	engine   *scripting.Engine
	classes  *class.Table
	streamer *recordingStreamer
	logs     *observer.ObservedLogs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	e := scripting.NewEngine(log)
	t.Cleanup(e.Close)
	classes := class.NewTable(log)
	classes.Register(e.State())

	reg := NewRegistry(e, classes, demand.NewCache(t.TempDir(), 2, log), log)
	s := newRecordingStreamer()
	reg.AttachStreamer(s)
	return &testEnv{reg: reg, engine: e, classes: classes, streamer: s, logs: logs}
}

func (env *testEnv) run(t *testing.T, src string) {
	t.Helper()
	require.NoError(t, env.engine.DoString(src))
}

func (env *testEnv) class(t *testing.T, name string) *class.Class {
	t.Helper()
	c, err := env.classes.Get(name)
	require.NoError(t, err)
	return c
}

func (env *testEnv) global(name string) lua.LValue {
	return env.engine.State().GetGlobal(name)
}

func (env *testEnv) errorLogs(msgSubstr string) int {
	n := 0
	for _, e := range env.logs.FilterLevelExact(zapcore.ErrorLevel).All() {
		if msgSubstr == "" || strings.Contains(e.Message, msgSubstr) {
			n++
		}
	}
	return n
}

// A class with every callback, counting calls into the global "calls" table.
const fullClass = `
calls = { init = 0, activate = 0, deactivate = 0, frame = 0, step = 0, fade = 0 }
last_fade = nil
class_add("Full", {
	init = function(self) calls.init = calls.init + 1 end,
	activate = function(self, instance)
		calls.activate = calls.activate + 1
		instance.mesh = "full.mesh"
	end,
	deactivate = function(self)
		calls.deactivate = calls.deactivate + 1
		return self.killme_on_deactivate
	end,
	frameCallback = function(self, elapsed) calls.frame = calls.frame + 1 end,
	stepCallback = function(self, elapsed) calls.step = calls.step + 1 end,
	setFade = function(self, fade)
		calls.fade = calls.fade + 1
		last_fade = fade
	end,
})
`

func (env *testEnv) calls(t *testing.T, key string) int {
	t.Helper()
	tbl, ok := env.global("calls").(*lua.LTable)
	require.True(t, ok)
	return int(lua.LVAsNumber(tbl.RawGetString(key)))
}
