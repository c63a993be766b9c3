package repository

import (
	"context"
	"errors"

	"github.com/lamvt/vaultstream/entity"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	// ErrChunkConflict means a descriptor already exists for the index with
	// different content. Byte-identical re-submissions are not conflicts.
	ErrChunkConflict = errors.New("chunk index already recorded with different content")
)

// ObjectIndex is the durable source of truth for objects and their ordered
// chunk descriptors.
type ObjectIndex interface {
	// CreateOrGetObject inserts the object if its ObjectID is unseen, or
	// returns the stored one. The insert is atomic: when two first chunks
	// race, exactly one key/IV pair wins and both callers see it.
	CreateOrGetObject(ctx context.Context, obj *entity.Object) (*entity.Object, bool, error)

	// AppendChunk records a descriptor. If the (object, index) pair already
	// exists the stored descriptor is returned with appended=false so the
	// caller can check byte identity; nothing is ever overwritten.
	AppendChunk(ctx context.Context, desc *entity.ChunkDescriptor) (stored *entity.ChunkDescriptor, appended bool, err error)

	// GetObject loads an object with its descriptors ordered by chunk index.
	GetObject(ctx context.Context, objectID string) (*entity.Object, error)

	// ListObjects returns object summaries, most recent first.
	ListObjects(ctx context.Context, limit int) ([]entity.Object, error)
}
