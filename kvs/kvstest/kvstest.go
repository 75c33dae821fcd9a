// Package kvstest provides an in-memory kvs.Store fake for tests, in the
// spirit of the fake GCS bucket used throughout the teacher's test suite:
// exercise the real Index/Iterator contracts without a network round trip.
package kvstest

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/kvsfs/kvsfs-core/kvs"
)

// Store is an in-memory kvs.Store. Build one with NewStore; the zero
// value has no index map and is not usable.
type Store struct {
	mu      sync.Mutex
	indexes map[kvs.FID]*Index
}

func NewStore() *Store {
	return &Store{indexes: make(map[kvs.FID]*Index)}
}

func (s *Store) IndexCreate(ctx context.Context) (kvs.FID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fid kvs.FID
	copy(fid[:], uuid.New()[:])
	s.indexes[fid] = newIndex()
	return fid, nil
}

func (s *Store) IndexOpen(ctx context.Context, fid kvs.FID) (kvs.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[fid]
	if !ok {
		return nil, fmt.Errorf("kvstest: no such index %x", fid)
	}
	return idx, nil
}

func (s *Store) IndexClose(ctx context.Context, idx kvs.Index) error {
	return nil
}

func (s *Store) IndexDestroy(ctx context.Context, fid kvs.FID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[fid]; !ok {
		return fmt.Errorf("kvstest: no such index %x", fid)
	}
	delete(s.indexes, fid)
	return nil
}

// Index is an in-memory, sorted-map-backed kvs.Index. A single in-flight
// transaction is enforced per spec §5; EndTransaction/DiscardTransaction
// resolve it.
type Index struct {
	mu sync.Mutex

	data map[string][]byte

	inTxn   bool
	snap    map[string][]byte // shadow copy taken at BeginTransaction
	deleted map[string]bool
}

func newIndex() *Index {
	return &Index{data: make(map[string][]byte)}
}

func (idx *Index) Get(ctx context.Context, key kvs.Key) (kvs.Value, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	v, ok := idx.data[string(key)]
	if !ok {
		return nil, &kvs.NotFoundError{Key: key}
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (idx *Index) Set(ctx context.Context, key kvs.Key, value kvs.Value) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	idx.data[string(key)] = v
	return nil
}

func (idx *Index) Del(ctx context.Context, key kvs.Key) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.data[string(key)]; !ok {
		return &kvs.NotFoundError{Key: key}
	}
	delete(idx.data, string(key))
	return nil
}

func (idx *Index) IterFind(ctx context.Context, prefix kvs.Key) (kvs.Iterator, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var keys []string
	for k := range idx.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]kvPair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, kvPair{key: []byte(k), value: idx.data[k]})
	}
	return &iterator{pairs: pairs, pos: -1}, nil
}

func (idx *Index) BeginTransaction(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.inTxn {
		return fmt.Errorf("kvstest: transaction already in progress")
	}
	idx.inTxn = true
	idx.snap = make(map[string][]byte, len(idx.data))
	for k, v := range idx.data {
		idx.snap[k] = v
	}
	return nil
}

func (idx *Index) EndTransaction(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.inTxn {
		return fmt.Errorf("kvstest: no transaction in progress")
	}
	idx.inTxn = false
	idx.snap = nil
	return nil
}

func (idx *Index) DiscardTransaction(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.inTxn {
		return fmt.Errorf("kvstest: no transaction in progress")
	}
	idx.data = idx.snap
	idx.inTxn = false
	idx.snap = nil
	return nil
}

func (idx *Index) Close(ctx context.Context) error { return nil }

type kvPair struct {
	key, value []byte
}

type iterator struct {
	pairs []kvPair
	pos   int
}

func (it *iterator) Next(ctx context.Context) bool {
	it.pos++
	return it.pos < len(it.pairs)
}

func (it *iterator) Get() (kvs.Key, kvs.Value) {
	p := it.pairs[it.pos]
	return p.key, p.value
}

func (it *iterator) Err() error { return nil }

func (it *iterator) Close(ctx context.Context) error { return nil }
