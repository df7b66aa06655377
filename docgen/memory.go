package docgen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryStore keeps transient objects in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	Now     func() time.Time
}

type memoryObject struct {
	data []byte
	meta ObjectMeta
}

// NewMemoryStore creates an in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject), Now: time.Now}
}

// Put stores an object.
func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, meta ObjectMeta) (ObjectRef, error) {
	_ = ctx
	if key == "" {
		return ObjectRef{}, NewError(KindValidation, "object key is required", nil)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ObjectRef{}, err
	}
	meta.Size = int64(len(data))
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}

	s.mu.Lock()
	if s.objects == nil {
		s.objects = make(map[string]memoryObject)
	}
	s.objects[key] = memoryObject{data: data, meta: meta}
	s.mu.Unlock()

	return ObjectRef{Key: key, Meta: meta}, nil
}

// Open reads an object.
func (s *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, ObjectMeta, error) {
	_ = ctx
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ObjectMeta{}, NewError(KindNotFound, fmt.Sprintf("object %q not found", key), nil)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.meta, nil
}

// Delete removes an object.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func (s *MemoryStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
