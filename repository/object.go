package repository

import (
	"bytes"
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lamvt/vaultstream/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ObjectRepository is the postgres-backed ObjectIndex.
type ObjectRepository struct {
	db *gorm.DB
}

func NewObjectRepository(db *gorm.DB) *ObjectRepository {
	return &ObjectRepository{db: db}
}

func (r *ObjectRepository) CreateOrGetObject(ctx context.Context, obj *entity.Object) (*entity.Object, bool, error) {
	if obj.ID == uuid.Nil {
		obj.ID = uuid.New()
	}

	// Unique-constraint insert resolves the concurrent-first-chunk race:
	// DO NOTHING on conflict, then re-read the winner's row so losers reuse
	// its key and IV instead of their own.
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "object_id"}},
			DoNothing: true,
		}).
		Create(obj)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return obj, true, nil
	}

	var stored entity.Object
	if err := r.db.WithContext(ctx).Where("object_id = ?", obj.ObjectID).First(&stored).Error; err != nil {
		return nil, false, err
	}
	return &stored, false, nil
}

func (r *ObjectRepository) AppendChunk(ctx context.Context, desc *entity.ChunkDescriptor) (*entity.ChunkDescriptor, bool, error) {
	if desc.ID == uuid.Nil {
		desc.ID = uuid.New()
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "object_id"}, {Name: "chunk_index"}},
			DoNothing: true,
		}).
		Create(desc)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return desc, true, nil
	}

	var stored entity.ChunkDescriptor
	err := r.db.WithContext(ctx).
		Where("object_id = ? AND chunk_index = ?", desc.ObjectID, desc.ChunkIndex).
		First(&stored).Error
	if err != nil {
		return nil, false, err
	}
	return &stored, false, nil
}

func (r *ObjectRepository) GetObject(ctx context.Context, objectID string) (*entity.Object, error) {
	var obj entity.Object
	err := r.db.WithContext(ctx).
		Preload("Chunks", func(db *gorm.DB) *gorm.DB {
			return db.Order("chunk_index ASC")
		}).
		Where("object_id = ?", objectID).
		First(&obj).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return &obj, nil
}

func (r *ObjectRepository) ListObjects(ctx context.Context, limit int) ([]entity.Object, error) {
	var objects []entity.Object
	err := r.db.WithContext(ctx).
		Order("uploaded_at DESC").
		Limit(limit).
		Find(&objects).Error
	if err != nil {
		return nil, err
	}
	return objects, nil
}

// SameContent reports whether a descriptor describes the same stored bytes.
// The nonce is deterministic per (key, index), so identical plaintext always
// re-encrypts to an identical ciphertext and tag.
func SameContent(a, b *entity.ChunkDescriptor) bool {
	return a.CipherLength == b.CipherLength && bytes.Equal(a.AuthTag, b.AuthTag)
}
