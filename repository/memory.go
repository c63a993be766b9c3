package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lamvt/vaultstream/entity"
)

// MemoryObjectIndex keeps the index in process memory. It backs the "memory"
// storage profile and the test suite; semantics match ObjectRepository.
type MemoryObjectIndex struct {
	mu      sync.Mutex
	objects map[string]*entity.Object
	chunks  map[string][]entity.ChunkDescriptor
}

func NewMemoryObjectIndex() *MemoryObjectIndex {
	return &MemoryObjectIndex{
		objects: make(map[string]*entity.Object),
		chunks:  make(map[string][]entity.ChunkDescriptor),
	}
}

func (m *MemoryObjectIndex) CreateOrGetObject(_ context.Context, obj *entity.Object) (*entity.Object, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if stored, ok := m.objects[obj.ObjectID]; ok {
		cp := *stored
		return &cp, false, nil
	}
	if obj.ID == uuid.Nil {
		obj.ID = uuid.New()
	}
	if obj.UploadedAt.IsZero() {
		obj.UploadedAt = time.Now()
	}
	cp := *obj
	m.objects[obj.ObjectID] = &cp
	out := cp
	return &out, true, nil
}

func (m *MemoryObjectIndex) AppendChunk(_ context.Context, desc *entity.ChunkDescriptor) (*entity.ChunkDescriptor, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.chunks[desc.ObjectID] {
		if existing.ChunkIndex == desc.ChunkIndex {
			cp := existing
			return &cp, false, nil
		}
	}
	if desc.ID == uuid.Nil {
		desc.ID = uuid.New()
	}
	m.chunks[desc.ObjectID] = append(m.chunks[desc.ObjectID], *desc)
	cp := *desc
	return &cp, true, nil
}

func (m *MemoryObjectIndex) GetObject(_ context.Context, objectID string) (*entity.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.objects[objectID]
	if !ok {
		return nil, ErrObjectNotFound
	}
	obj := *stored
	obj.Chunks = append([]entity.ChunkDescriptor(nil), m.chunks[objectID]...)
	sort.Slice(obj.Chunks, func(i, j int) bool {
		return obj.Chunks[i].ChunkIndex < obj.Chunks[j].ChunkIndex
	})
	return &obj, nil
}

func (m *MemoryObjectIndex) ListObjects(_ context.Context, limit int) ([]entity.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	objects := make([]entity.Object, 0, len(m.objects))
	for _, obj := range m.objects {
		objects = append(objects, *obj)
	}
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].UploadedAt.After(objects[j].UploadedAt)
	})
	if limit > 0 && len(objects) > limit {
		objects = objects[:limit]
	}
	return objects, nil
}
