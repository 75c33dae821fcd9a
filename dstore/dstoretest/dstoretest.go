// Package dstoretest provides an in-memory dstore.Store fake for tests.
package dstoretest

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/kvsfs/kvsfs-core/dstore"
	"github.com/kvsfs/kvsfs-core/encoding"
)

// Store is an in-memory dstore.Store. Build one with NewStore; the zero
// value has no object map and is not usable.
type Store struct {
	mu        sync.Mutex
	objects   map[encoding.ObjectID][]byte
	blockSize uint32
}

func NewStore() *Store {
	return &Store{
		objects:   make(map[encoding.ObjectID][]byte),
		blockSize: dstore.DefaultBlockSize,
	}
}

func (s *Store) NewObjectID(ctx context.Context) (encoding.ObjectID, error) {
	var id encoding.ObjectID
	copy(id[:], uuid.New()[:])
	return id, nil
}

func (s *Store) Create(ctx context.Context, id encoding.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[id]; ok {
		return nil
	}
	s.objects[id] = []byte{}
	return nil
}

func (s *Store) Delete(ctx context.Context, id encoding.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[id]; !ok {
		return &dstore.NotFoundError{ID: id}
	}
	delete(s.objects, id)
	return nil
}

func (s *Store) Open(ctx context.Context, id encoding.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; !ok {
		return &dstore.NotFoundError{ID: id}
	}
	return nil
}

func (s *Store) Close(ctx context.Context, id encoding.ObjectID) error { return nil }

func (s *Store) BlockSize(ctx context.Context) (uint32, error) {
	return s.blockSize, nil
}

func (s *Store) PRead(ctx context.Context, id encoding.ObjectID, offset uint64, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[id]
	if !ok {
		return 0, &dstore.NotFoundError{ID: id}
	}
	if offset >= uint64(len(data)) {
		return 0, nil
	}
	n := copy(p, data[offset:])
	return n, nil
}

func (s *Store) PWrite(ctx context.Context, id encoding.ObjectID, offset uint64, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[id]
	if !ok {
		return 0, &dstore.NotFoundError{ID: id}
	}
	end := offset + uint64(len(p))
	if end > uint64(len(data)) {
		grown := make([]byte, end)
		copy(grown, data)
		data = grown
	}
	n := copy(data[offset:end], p)
	s.objects[id] = data
	return n, nil
}

func (s *Store) Resize(ctx context.Context, id encoding.ObjectID, size uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[id]
	if !ok {
		return &dstore.NotFoundError{ID: id}
	}
	if size <= uint64(len(data)) {
		s.objects[id] = data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, data)
	s.objects[id] = grown
	return nil
}

func (s *Store) Size(ctx context.Context, id encoding.ObjectID) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[id]
	if !ok {
		return 0, &dstore.NotFoundError{ID: id}
	}
	return uint64(len(data)), nil
}
