package store

import (
	"sync"

	"github.com/jotapp/jot/internal/model"
)

// Cache is the in-memory read mirror of one durable collection. It is not
// itself durable; it is rebuilt from the durable store at open time and kept
// in step by every write. Values are cloned on the way in and out so callers
// cannot mutate cached state through shared pointers.
type Cache struct {
	mu    sync.RWMutex
	notes map[string]*model.Note
}

func NewCache() *Cache {
	return &Cache{notes: make(map[string]*model.Note)}
}

func (c *Cache) Get(id string) (*model.Note, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.notes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

func (c *Cache) Put(n *model.Note) {
	c.mu.Lock()
	c.notes[n.ID] = n.Clone()
	c.mu.Unlock()
}

func (c *Cache) Delete(id string) {
	c.mu.Lock()
	delete(c.notes, id)
	c.mu.Unlock()
}

func (c *Cache) All() []model.Note {
	c.mu.RLock()
	defer c.mu.RUnlock()
	notes := make([]model.Note, 0, len(c.notes))
	for _, n := range c.notes {
		notes = append(notes, *n.Clone())
	}
	return notes
}

// Replace swaps the entire cache contents, used when (re)building from the
// durable medium.
func (c *Cache) Replace(notes []model.Note) {
	fresh := make(map[string]*model.Note, len(notes))
	for i := range notes {
		fresh[notes[i].ID] = notes[i].Clone()
	}
	c.mu.Lock()
	c.notes = fresh
	c.mu.Unlock()
}

// Registry hands out one Cache per collection name, so independent note
// collections in the same process never cross-talk. It is owned by whichever
// component constructs the stores; there is no package-level instance.
type Registry struct {
	mu     sync.Mutex
	caches map[string]*Cache
}

func NewRegistry() *Registry {
	return &Registry{caches: make(map[string]*Cache)}
}

// Cache returns the cache for the named collection, creating it on first use.
func (r *Registry) Cache(name string) *Cache {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[name]
	if !ok {
		c = NewCache()
		r.caches[name] = c
	}
	return c
}
