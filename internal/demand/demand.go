package demand

import (
	"context"
	"errors"
)

var errNoCache = errors.New("no resource cache configured")

// Demand is the set of resources an object needs before it can activate.
type Demand struct {
	cache     *Cache
	resources []string
	loaded    bool
}

// New creates an unloaded demand. A demand with no resources counts as
// loaded.
func New(cache *Cache, resources []string) *Demand {
	return &Demand{cache: cache, resources: resources}
}

func (d *Demand) Loaded() bool {
	return d.loaded || len(d.resources) == 0
}

func (d *Demand) Resources() []string {
	return d.resources
}

// ImmediateLoad blocks until every resource is resident.
func (d *Demand) ImmediateLoad(ctx context.Context) error {
	if d.Loaded() {
		return nil
	}
	if d.cache == nil {
		return errNoCache
	}
	if err := d.cache.Load(ctx, d.resources); err != nil {
		return err
	}
	d.loaded = true
	return nil
}

// Release gives the resources back to the cache. Safe to call repeatedly.
func (d *Demand) Release() {
	if !d.loaded {
		return
	}
	d.cache.Release(d.resources)
	d.loaded = false
}
