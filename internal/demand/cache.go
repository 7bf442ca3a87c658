package demand

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrResourceMissing is returned when a resource file does not exist.
var ErrResourceMissing = errors.New("resource missing")

type entry struct {
	data  []byte
	users int
}

// Cache holds resource files read from an asset directory, counted by the
// number of loaded demands that use them.
// Owned by the game loop goroutine; Load fans reads out to worker
// goroutines and joins them before touching the cache.
type Cache struct {
	dir         string
	parallelism int
	entries     map[string]*entry
	log         *zap.Logger
}

func NewCache(dir string, parallelism int, log *zap.Logger) *Cache {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Cache{
		dir:         dir,
		parallelism: parallelism,
		entries:     make(map[string]*entry, 256),
		log:         log,
	}
}

// Load reads every resource not yet resident and adds one user to each
// name. Either all names are acquired or none are.
func (c *Cache) Load(ctx context.Context, names []string) error {
	var missing []string
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		if _, ok := c.entries[n]; !ok {
			missing = append(missing, n)
		}
	}

	data := make([][]byte, len(missing))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for i, name := range missing {
		i, name := i, name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := c.read(name)
			if err != nil {
				return err
			}
			data[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, name := range missing {
		c.entries[name] = &entry{data: data[i]}
		c.log.Debug("resource loaded", zap.String("resource", name), zap.Int("bytes", len(data[i])))
	}
	for _, n := range names {
		c.entries[n].users++
	}
	return nil
}

func (c *Cache) read(name string) ([]byte, error) {
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return nil, fmt.Errorf("resource %q escapes asset dir", name)
	}
	b, err := os.ReadFile(filepath.Join(c.dir, filepath.FromSlash(name)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrResourceMissing, name)
		}
		return nil, fmt.Errorf("read resource %s: %w", name, err)
	}
	return b, nil
}

// Release drops one user from each name and evicts unused resources.
func (c *Cache) Release(names []string) {
	for _, n := range names {
		e, ok := c.entries[n]
		if !ok {
			continue
		}
		e.users--
		if e.users <= 0 {
			delete(c.entries, n)
			c.log.Debug("resource unloaded", zap.String("resource", n))
		}
	}
}

// Resident reports whether a resource is currently held.
func (c *Cache) Resident(name string) bool {
	_, ok := c.entries[name]
	return ok
}

// Bytes returns a resident resource's content.
func (c *Cache) Bytes(name string) ([]byte, bool) {
	e, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	return e.data, true
}

// Len returns the number of resident resources.
func (c *Cache) Len() int {
	return len(c.entries)
}
