package store

import (
	"fmt"

	"github.com/jotapp/jot/internal/model"
)

// LocalStore is the on-device replica: a durable NoteStore with a
// write-through read cache in front of it. Writes always land on the durable
// medium first and only then update the cache, so a read can never observe a
// write that did not persist. Reads are answered from the cache.
type LocalStore struct {
	durable *NoteStore
	cache   *Cache
}

// OpenLocal builds a LocalStore over db, registering its cache under name in
// reg. Passing a nil registry gives the store a private cache. The cache is
// seeded from the durable contents before the store is returned.
func OpenLocal(durable *NoteStore, name string, reg *Registry) (*LocalStore, error) {
	var cache *Cache
	if reg != nil {
		cache = reg.Cache(name)
	} else {
		cache = NewCache()
	}

	notes, err := durable.ListAll()
	if err != nil {
		return nil, fmt.Errorf("seed cache for %s: %w", name, err)
	}
	cache.Replace(notes)

	return &LocalStore{durable: durable, cache: cache}, nil
}

// Get answers from the read cache.
func (s *LocalStore) Get(id string) (*model.Note, error) {
	if n, ok := s.cache.Get(id); ok {
		return n, nil
	}
	return nil, nil
}

// Put writes through: durable first, then cache. The cache update happens
// before Put returns, so a subsequent read on the same goroutine sees it.
func (s *LocalStore) Put(n *model.Note) error {
	if err := s.durable.Put(n); err != nil {
		return err
	}
	s.cache.Put(n)
	return nil
}

// Delete physically removes a record from both layers. Used for storage reset
// and draft cleanup only; note deletion is a tombstone Put.
func (s *LocalStore) Delete(id string) error {
	if err := s.durable.Delete(id); err != nil {
		return err
	}
	s.cache.Delete(id)
	return nil
}

// ListAll returns every record, reserved ids and tombstones included, from
// the read cache. Order is unspecified.
func (s *LocalStore) ListAll() ([]model.Note, error) {
	return s.cache.All(), nil
}

// Reset clears the whole collection.
func (s *LocalStore) Reset() error {
	if err := s.durable.Reset(); err != nil {
		return err
	}
	s.cache.Replace(nil)
	return nil
}
