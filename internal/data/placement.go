package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Placement is one object put into the world at startup.
type Placement struct {
	Name   string         `yaml:"name"` // empty for an anonymous object
	Class  string         `yaml:"class"`
	Pos    [3]float32     `yaml:"pos"`
	Radius float32        `yaml:"radius"` // 0 keeps the class's rendering distance
	Far    string         `yaml:"far"`    // name of the far counterpart, if any
	Fields map[string]any `yaml:"fields"` // copied into the object's own values
}

// PlacementTable is an ordered list of placements.
type PlacementTable struct {
	entries []Placement
	byName  map[string]int
}

// LoadPlacementTable loads a placement YAML file.
func LoadPlacementTable(path string) (*PlacementTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read placements: %w", err)
	}
	var entries []Placement
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse placements: %w", err)
	}
	return NewPlacementTable(entries)
}

// NewPlacementTable validates entries: every placement needs a class and
// names must be unique.
func NewPlacementTable(entries []Placement) (*PlacementTable, error) {
	t := &PlacementTable{
		entries: entries,
		byName:  make(map[string]int, len(entries)),
	}
	for i := range entries {
		p := &entries[i]
		if p.Class == "" {
			return nil, fmt.Errorf("placement %d (%q): missing class", i, p.Name)
		}
		if p.Radius < 0 {
			return nil, fmt.Errorf("placement %q: negative radius", p.Name)
		}
		if p.Name == "" {
			continue
		}
		if _, dup := t.byName[p.Name]; dup {
			return nil, fmt.Errorf("placement %q: duplicate name", p.Name)
		}
		t.byName[p.Name] = i
	}
	return t, nil
}

// All returns the placements in file order.
func (t *PlacementTable) All() []Placement {
	return t.entries
}

// Get returns the named placement, or nil if none.
func (t *PlacementTable) Get(name string) *Placement {
	i, ok := t.byName[name]
	if !ok {
		return nil
	}
	return &t.entries[i]
}

// Count returns the total number of placements loaded.
func (t *PlacementTable) Count() int {
	return len(t.entries)
}
