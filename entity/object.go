package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Object is one uploaded file. EncryptionKey and BaseIV are generated exactly
// once, when the first chunk of a new ObjectID arrives, and never change.
type Object struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	ObjectID      string         `json:"object_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	FileName      string         `json:"file_name" gorm:"type:varchar(1024);not null"`
	FileType      string         `json:"file_type" gorm:"type:varchar(255);not null"`
	FileSize      int64          `json:"file_size" gorm:"not null"` // as declared by the uploader, advisory
	TotalChunks   int            `json:"total_chunks" gorm:"not null"`
	EncryptionKey []byte         `json:"-" gorm:"type:bytea;not null"`
	BaseIV        []byte         `json:"-" gorm:"type:bytea;not null"`
	Extra         datatypes.JSON `json:"extra,omitempty" gorm:"type:jsonb"`
	UploadedAt    time.Time      `json:"uploaded_at" gorm:"not null;autoCreateTime;index"`

	Chunks []ChunkDescriptor `json:"chunks,omitempty" gorm:"foreignKey:ObjectID;references:ObjectID;constraint:OnDelete:CASCADE"`
}

// ChunkDescriptor records one stored ciphertext chunk. Rows are immutable
// once written; (object_id, chunk_index) is unique.
type ChunkDescriptor struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ObjectID     string    `json:"object_id" gorm:"type:varchar(255);not null;uniqueIndex:idx_object_chunk"`
	ChunkIndex   int       `json:"chunk_index" gorm:"not null;uniqueIndex:idx_object_chunk"`
	StorageKey   string    `json:"storage_key" gorm:"type:varchar(1024);not null"`
	CipherLength int64     `json:"cipher_length" gorm:"not null"`
	AuthTag      []byte    `json:"-" gorm:"type:bytea;not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"not null;autoCreateTime"`
}

// Complete reports whether descriptors exist for every index in
// [0, TotalChunks). Descriptors are unique per index, so counting suffices.
func (o *Object) Complete() bool {
	return o.TotalChunks > 0 && len(o.Chunks) == o.TotalChunks
}
