package texture

import (
	"image"
	"sync"

	"rig-solver/internal/constraint"
)

// Resolver returns the background plate of a frame, or nil.
type Resolver interface {
	ResolveFrame(frame int) *image.NRGBA
}

// Cache decodes plates on first use and shares them between workers.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*cacheEntry
	index *Index
}

type cacheEntry struct {
	img *image.NRGBA // nil when decoding failed
}

// NewCache creates a plate cache backed by index.
func NewCache(index *Index) *Cache {
	return &Cache{
		items: make(map[string]*cacheEntry),
		index: index,
	}
}

// Resolve loads a plate by name. It returns nil if the name is unknown or the
// file cannot be decoded.
func (c *Cache) Resolve(name string) *image.NRGBA {
	path, ok := c.index.ResolvePath(name)
	if !ok {
		return nil
	}
	return c.load(path)
}

// ResolveFrame loads the plate of frame.
func (c *Cache) ResolveFrame(frame int) *image.NRGBA {
	path, ok := c.index.ResolveFrame(frame)
	if !ok {
		return nil
	}
	return c.load(path)
}

func (c *Cache) load(path string) *image.NRGBA {
	c.mu.RLock()
	if entry, ok := c.items[path]; ok {
		c.mu.RUnlock()
		return entry.img
	}
	c.mu.RUnlock()

	img, err := LoadPlate(path)
	if err != nil {
		constraint.Logger().Warn("texture: plate unreadable", "path", path, "err", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.items[path]; ok {
		return entry.img
	}
	c.items[path] = &cacheEntry{img: img}
	return img
}

// Len returns the number of plates loaded or attempted.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
