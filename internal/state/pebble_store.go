package state

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// PebbleStore implements Store using PebbleDB. Range visits ids in key
// order, not insertion order.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		MemTableSize:          64 << 20,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 8,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func (p *PebbleStore) Add(id string, doc []byte) (bool, error) {
	k := []byte(id)
	_, closer, err := p.db.Get(k)
	if err == nil {
		_ = closer.Close()
		return false, nil
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return false, fmt.Errorf("pebble get %s: %w", id, err)
	}
	if err := p.db.Set(k, doc, pebble.Sync); err != nil {
		return false, fmt.Errorf("pebble set %s: %w", id, err)
	}
	return true, nil
}

func (p *PebbleStore) Get(id string) ([]byte, bool) {
	v, closer, err := p.db.Get([]byte(id))
	if err != nil {
		return nil, false
	}
	defer closer.Close()
	return append([]byte(nil), v...), true
}

func (p *PebbleStore) Has(id string) bool {
	_, closer, err := p.db.Get([]byte(id))
	if err != nil {
		return false
	}
	_ = closer.Close()
	return true
}

func (p *PebbleStore) Len() int {
	n := 0
	_ = p.Range(func(string, []byte) error { n++; return nil })
	return n
}

func (p *PebbleStore) Range(fn func(id string, doc []byte) error) error {
	it, err := p.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		k := string(it.Key())
		v := append([]byte(nil), it.Value()...)
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return it.Error()
}
