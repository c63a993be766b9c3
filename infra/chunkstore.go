package infra

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
)

var ErrChunkNotFound = errors.New("chunk not found in storage")

// ChunkStore persists opaque ciphertext blobs. PutChunk returns the storage
// key the Object Index records; GetChunk is addressed purely by that key.
// Writes are append-only: the key embeds a prefix of the chunk's auth tag, so
// a conflicting payload for the same index lands under a different key and
// never clobbers committed bytes.
type ChunkStore interface {
	PutChunk(ctx context.Context, objectID string, index int, tag, ciphertext []byte) (string, error)
	GetChunk(ctx context.Context, storageKey string) ([]byte, error)
}

// Zero-padded chunk index keeps keys listable in order (chunk_00000, ...).
func chunkStorageKey(objectID string, index int, tag []byte) string {
	suffix := ""
	if len(tag) >= 4 {
		suffix = "_" + hex.EncodeToString(tag[:4])
	}
	return fmt.Sprintf("%s/chunk_%05d%s.enc", objectID, index, suffix)
}

// MemoryChunkStore holds chunks in process memory, for tests and the
// "memory" storage profile.
type MemoryChunkStore struct {
	mu     sync.RWMutex
	chunks map[string][]byte
}

func NewMemoryChunkStore() *MemoryChunkStore {
	return &MemoryChunkStore{chunks: make(map[string][]byte)}
}

func (m *MemoryChunkStore) PutChunk(_ context.Context, objectID string, index int, tag, ciphertext []byte) (string, error) {
	key := chunkStorageKey(objectID, index, tag)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chunks[key]; !ok {
		m.chunks[key] = append([]byte(nil), ciphertext...)
	}
	return key, nil
}

func (m *MemoryChunkStore) GetChunk(_ context.Context, storageKey string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.chunks[storageKey]
	if !ok {
		return nil, ErrChunkNotFound
	}
	return append([]byte(nil), data...), nil
}

// Corrupt flips one bit of a stored chunk. Test hook.
func (m *MemoryChunkStore) Corrupt(storageKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.chunks[storageKey]
	if !ok || len(data) == 0 {
		return false
	}
	data[0] ^= 0x01
	return true
}
