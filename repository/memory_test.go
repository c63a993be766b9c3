package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamvt/vaultstream/entity"
)

func TestCreateOrGetObjectFirstWins(t *testing.T) {
	index := NewMemoryObjectIndex()
	ctx := context.Background()

	first := &entity.Object{
		ObjectID:      "obj-1",
		TotalChunks:   3,
		EncryptionKey: []byte("key-of-the-winner-0123456789abcd"),
		BaseIV:        []byte("winner-iv-12"),
	}
	stored, created, err := index.CreateOrGetObject(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, first.EncryptionKey, stored.EncryptionKey)

	// A second arrival with fresh candidate material gets the winner's back.
	second := &entity.Object{
		ObjectID:      "obj-1",
		TotalChunks:   3,
		EncryptionKey: []byte("key-of-the-loser-0123456789abcde"),
		BaseIV:        []byte("loser-iv-123"),
	}
	stored, created, err = index.CreateOrGetObject(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.EncryptionKey, stored.EncryptionKey)
	assert.Equal(t, first.BaseIV, stored.BaseIV)
}

func TestCreateOrGetObjectConcurrent(t *testing.T) {
	index := NewMemoryObjectIndex()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	var createdCount sync.Map
	keys := make([][]byte, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := make([]byte, 32)
			key[0] = byte(i)
			stored, created, err := index.CreateOrGetObject(ctx, &entity.Object{
				ObjectID:      "obj-race",
				TotalChunks:   workers,
				EncryptionKey: key,
				BaseIV:        make([]byte, 12),
			})
			if !assert.NoError(t, err) {
				return
			}
			if created {
				createdCount.Store(i, true)
			}
			keys[i] = stored.EncryptionKey
		}(i)
	}
	wg.Wait()

	winners := 0
	createdCount.Range(func(_, _ any) bool { winners++; return true })
	assert.Equal(t, 1, winners)

	for i := 1; i < workers; i++ {
		assert.Equal(t, keys[0], keys[i], "worker %d saw a different key", i)
	}
}

func TestAppendChunkNeverOverwrites(t *testing.T) {
	index := NewMemoryObjectIndex()
	ctx := context.Background()

	_, _, err := index.CreateOrGetObject(ctx, &entity.Object{ObjectID: "obj-1", TotalChunks: 2})
	require.NoError(t, err)

	first := &entity.ChunkDescriptor{
		ObjectID:     "obj-1",
		ChunkIndex:   0,
		StorageKey:   "obj-1/chunk_00000_aaaa.enc",
		CipherLength: 100,
		AuthTag:      []byte("tag-one-0123456"),
	}
	stored, appended, err := index.AppendChunk(ctx, first)
	require.NoError(t, err)
	assert.True(t, appended)
	assert.Equal(t, first.StorageKey, stored.StorageKey)

	conflicting := &entity.ChunkDescriptor{
		ObjectID:     "obj-1",
		ChunkIndex:   0,
		StorageKey:   "obj-1/chunk_00000_bbbb.enc",
		CipherLength: 200,
		AuthTag:      []byte("tag-two-0123456"),
	}
	stored, appended, err = index.AppendChunk(ctx, conflicting)
	require.NoError(t, err)
	assert.False(t, appended)
	// The original descriptor comes back untouched.
	assert.Equal(t, first.StorageKey, stored.StorageKey)
	assert.Equal(t, first.CipherLength, stored.CipherLength)
	assert.False(t, SameContent(conflicting, stored))
	assert.True(t, SameContent(first, stored))
}

func TestGetObjectOrdersChunks(t *testing.T) {
	index := NewMemoryObjectIndex()
	ctx := context.Background()

	_, _, err := index.CreateOrGetObject(ctx, &entity.Object{ObjectID: "obj-1", TotalChunks: 3})
	require.NoError(t, err)

	for _, i := range []int{2, 0, 1} {
		_, _, err := index.AppendChunk(ctx, &entity.ChunkDescriptor{
			ObjectID:   "obj-1",
			ChunkIndex: i,
			StorageKey: "k",
			AuthTag:    []byte("t"),
		})
		require.NoError(t, err)
	}

	obj, err := index.GetObject(ctx, "obj-1")
	require.NoError(t, err)
	require.Len(t, obj.Chunks, 3)
	for i, desc := range obj.Chunks {
		assert.Equal(t, i, desc.ChunkIndex)
	}
	assert.True(t, obj.Complete())
}

func TestGetObjectNotFound(t *testing.T) {
	index := NewMemoryObjectIndex()
	_, err := index.GetObject(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestListObjectsLimit(t *testing.T) {
	index := NewMemoryObjectIndex()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		_, _, err := index.CreateOrGetObject(ctx, &entity.Object{ObjectID: id, TotalChunks: 1})
		require.NoError(t, err)
	}

	objects, err := index.ListObjects(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, objects, 2)

	objects, err = index.ListObjects(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, objects, 4)
}
