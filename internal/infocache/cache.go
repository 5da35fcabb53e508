// Package infocache memoizes the descriptive per-prim reads (info,
// attributes, primvars) in front of a stage provider. The tree layer
// reads through the cache only, so repeated projections of the same
// hierarchy touch the provider once per path until an edit invalidates
// it. Variant set reads are deliberately never cached: selections must
// always reflect the live stage.
package infocache

import (
	"sync"

	"github.com/voidreamer/maya-usd-author/internal/scene"
)

// Cache implements scene.Reader over another Reader. Cached slices are
// shared between callers and must be treated as read-only.
type Cache struct {
	src scene.Reader

	mu       sync.RWMutex
	enabled  bool
	info     map[scene.Path]scene.NodeInfo
	attrs    map[scene.Path][]scene.AttributeInfo
	primvars map[scene.Path][]scene.PrimvarInfo
}

var _ scene.Reader = (*Cache)(nil)

func New(src scene.Reader) *Cache {
	c := &Cache{src: src, enabled: true}
	c.reset()
	return c
}

func (c *Cache) reset() {
	c.info = make(map[scene.Path]scene.NodeInfo)
	c.attrs = make(map[scene.Path][]scene.AttributeInfo)
	c.primvars = make(map[scene.Path][]scene.PrimvarInfo)
}

// SetEnabled turns memoization on or off. Disabling flushes, so a
// later enable starts from an empty cache.
func (c *Cache) SetEnabled(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = on
	if !on {
		c.reset()
	}
}

func (c *Cache) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

func (c *Cache) Root() (scene.Path, error) { return c.src.Root() }

func (c *Cache) Children(p scene.Path) ([]scene.Path, error) { return c.src.Children(p) }

func (c *Cache) HasChildren(p scene.Path) (bool, error) { return c.src.HasChildren(p) }

func (c *Cache) Info(p scene.Path) (scene.NodeInfo, error) {
	c.mu.RLock()
	if info, ok := c.info[p]; ok {
		c.mu.RUnlock()
		return info, nil
	}
	enabled := c.enabled
	c.mu.RUnlock()

	info, err := c.src.Info(p)
	if err != nil {
		return scene.NodeInfo{}, err
	}
	if enabled {
		c.mu.Lock()
		c.info[p] = info
		c.mu.Unlock()
	}
	return info, nil
}

func (c *Cache) Attributes(p scene.Path) ([]scene.AttributeInfo, error) {
	c.mu.RLock()
	if attrs, ok := c.attrs[p]; ok {
		c.mu.RUnlock()
		return attrs, nil
	}
	enabled := c.enabled
	c.mu.RUnlock()

	attrs, err := c.src.Attributes(p)
	if err != nil {
		return nil, err
	}
	if enabled {
		c.mu.Lock()
		c.attrs[p] = attrs
		c.mu.Unlock()
	}
	return attrs, nil
}

func (c *Cache) Primvars(p scene.Path) ([]scene.PrimvarInfo, error) {
	c.mu.RLock()
	if primvars, ok := c.primvars[p]; ok {
		c.mu.RUnlock()
		return primvars, nil
	}
	enabled := c.enabled
	c.mu.RUnlock()

	primvars, err := c.src.Primvars(p)
	if err != nil {
		return nil, err
	}
	if enabled {
		c.mu.Lock()
		c.primvars[p] = primvars
		c.mu.Unlock()
	}
	return primvars, nil
}

// VariantSets always reads through to the provider.
func (c *Cache) VariantSets(p scene.Path) ([]scene.VariantSetInfo, error) {
	return c.src.VariantSets(p)
}

// Invalidate drops the cached reads for exactly one path.
func (c *Cache) Invalidate(p scene.Path) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.info, p)
	delete(c.attrs, p)
	delete(c.primvars, p)
}

// InvalidatePrefix drops p and everything under it. Used for edits
// whose effect spans a subtree, like payload load state flips.
func (c *Cache) InvalidatePrefix(p scene.Path) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.info {
		if k == p || p.IsAncestorOf(k) {
			delete(c.info, k)
		}
	}
	for k := range c.attrs {
		if k == p || p.IsAncestorOf(k) {
			delete(c.attrs, k)
		}
	}
	for k := range c.primvars {
		if k == p || p.IsAncestorOf(k) {
			delete(c.primvars, k)
		}
	}
}

// InvalidateAll flushes everything, e.g. after a whole-stage replace.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// Len reports the number of cached info entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.info)
}
