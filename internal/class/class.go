package class

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/gritengine/gritd/internal/scripting"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ErrUnknownClass is returned when a class name is not registered.
var ErrUnknownClass = errors.New("class does not exist")

// DefaultRenderingDistance is the sphere radius given to objects whose
// class does not set renderingDistance.
const DefaultRenderingDistance = 100

// Class is a named, shared set of script fields. Objects hold a reference
// from creation until destroy; the Table holds one while registered.
type Class struct {
	name   string
	fields *lua.LTable
	refs   int
	handle *lua.LUserData
	log    *zap.Logger
}

func newClass(name string, fields *lua.LTable, log *zap.Logger) *Class {
	return &Class{name: name, fields: fields, log: log}
}

func (c *Class) Name() string        { return c.name }
func (c *Class) Fields() *lua.LTable { return c.fields }
func (c *Class) Refs() int           { return c.refs }
func (c *Class) Freed() bool         { return c.fields == nil }

// Acquire adds a reference.
func (c *Class) Acquire() {
	c.refs++
}

// Release drops a reference. The field table is dropped with the last one.
func (c *Class) Release() {
	if c.refs <= 0 {
		c.log.Warn("class released too many times", zap.String("class", c.name))
		return
	}
	c.refs--
	if c.refs == 0 {
		c.fields = nil
		c.handle = nil
		c.log.Debug("class freed", zap.String("class", c.name))
	}
}

// Get looks up a class field, honouring any metatable on the field table.
func (c *Class) Get(e *scripting.Engine, key string) (lua.LValue, error) {
	if c.fields == nil {
		return lua.LNil, nil
	}
	v, err := e.Index(c.fields, key)
	if err != nil {
		return lua.LNil, fmt.Errorf("class %q field %s: %w", c.name, key, err)
	}
	return v, nil
}

// Resources lists the demand-loaded resource paths declared by the class.
func (c *Class) Resources() []string {
	if c.fields == nil {
		return nil
	}
	return scripting.LStrings(c.fields, "resources")
}

// RenderingDistance is the default sphere radius of the class's objects.
// Negative or non-finite values fall back to DefaultRenderingDistance.
func (c *Class) RenderingDistance() float32 {
	if c.fields == nil {
		return DefaultRenderingDistance
	}
	d := float64(float32(scripting.LNumberOr(c.fields, "renderingDistance", DefaultRenderingDistance)))
	if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return DefaultRenderingDistance
	}
	return float32(d)
}

// Table holds registered classes by name.
// Accessed only from the game loop goroutine, no locks.
type Table struct {
	classes map[string]*Class
	log     *zap.Logger
}

func NewTable(log *zap.Logger) *Table {
	return &Table{
		classes: make(map[string]*Class, 64),
		log:     log,
	}
}

// Add registers a class. Re-adding an existing name swaps its fields in
// place so live objects pick up the new definition.
func (t *Table) Add(name string, fields *lua.LTable) *Class {
	if c, ok := t.classes[name]; ok {
		c.fields = fields
		t.log.Debug("class reloaded", zap.String("class", name))
		return c
	}
	c := newClass(name, fields, t.log)
	c.Acquire()
	t.classes[name] = c
	return c
}

// Get returns a registered class.
func (t *Table) Get(name string) (*Class, error) {
	c, ok := t.classes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, name)
	}
	return c, nil
}

func (t *Table) Has(name string) bool {
	_, ok := t.classes[name]
	return ok
}

// Remove unregisters a class. Objects still using it keep it alive.
func (t *Table) Remove(name string) error {
	c, ok := t.classes[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClass, name)
	}
	delete(t.classes, name)
	c.Release()
	return nil
}

// Count returns the number of registered classes.
func (t *Table) Count() int {
	return len(t.classes)
}

// Names returns registered class names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.classes))
	for n := range t.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clear unregisters every class.
func (t *Table) Clear() {
	for _, n := range t.Names() {
		_ = t.Remove(n)
	}
}
