package controller

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/lamvt/vaultstream/crypto"
	"github.com/lamvt/vaultstream/entity"
	"github.com/lamvt/vaultstream/http/controller/dto"
	"github.com/lamvt/vaultstream/infra/produce"
	"github.com/lamvt/vaultstream/repository"
	"github.com/lamvt/vaultstream/utils"
)

const maxChunkBytes = 64 << 20

// IngestChunk accepts one encrypted-at-rest chunk of an object.
// POST /chunks, multipart fields: objectId, index, totalChunks, fileName,
// fileType, fileSize, meta (optional JSON), chunk (binary).
//
// Chunks may arrive in any order. Re-submitting an index with identical bytes
// is an idempotent success; different bytes for a committed index are
// rejected, nothing is overwritten.
func (ctrl *Controller) IngestChunk(c *gin.Context) {
	ctx := c.Request.Context()

	index, err := strconv.Atoi(c.PostForm("index"))
	if err != nil || index < 0 {
		utils.JSON400(c, "index is required and must be a non-negative integer")
		return
	}

	totalChunks, err := strconv.Atoi(c.PostForm("totalChunks"))
	if err != nil || totalChunks <= 0 {
		utils.JSON400(c, "totalChunks is required and must be a positive integer")
		return
	}

	if index >= totalChunks {
		utils.JSON400(c, fmt.Sprintf("index must be between 0 and %d", totalChunks-1))
		return
	}

	var fileSize int64
	if sizeStr := c.PostForm("fileSize"); sizeStr != "" {
		fileSize, err = strconv.ParseInt(sizeStr, 10, 64)
		if err != nil || fileSize < 0 {
			utils.JSON400(c, "fileSize must be a non-negative integer")
			return
		}
	}

	fileName := c.PostForm("fileName")
	fileType := c.PostForm("fileType")
	if fileType == "" {
		fileType = "application/octet-stream"
	}

	var extra datatypes.JSON
	if metaStr := c.PostForm("meta"); metaStr != "" {
		if !json.Valid([]byte(metaStr)) {
			utils.JSON400(c, "meta must be valid JSON")
			return
		}
		extra = datatypes.JSON(metaStr)
	}

	// The object id is caller-supplied; when absent the server mints one and
	// the caller must reuse the acknowledged id for the remaining chunks.
	objectID := strings.TrimSpace(c.PostForm("objectId"))
	if objectID == "" {
		objectID = uuid.New().String()
	}

	fileHeader, err := c.FormFile("chunk")
	if err != nil {
		utils.JSON400(c, "chunk is required")
		return
	}
	if fileHeader.Size > maxChunkBytes {
		utils.JSON400(c, fmt.Sprintf("chunk size %d exceeds maximum allowed %d", fileHeader.Size, maxChunkBytes))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Ingest] Failed to open chunk upload")
		utils.JSON400(c, "Failed to read chunk")
		return
	}
	defer file.Close()

	plaintext, err := io.ReadAll(file)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Ingest] Failed to read chunk upload")
		utils.JSON400(c, "Failed to read chunk")
		return
	}

	// Candidate key material for a brand-new object. If another chunk of the
	// same object won the creation race the index hands back the winner's
	// object and this material is discarded.
	key, err := crypto.GenerateKey()
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Ingest] Failed to generate encryption key")
		utils.JSON500(c, "Failed to initialize object")
		return
	}
	baseIV, err := crypto.GenerateBaseIV()
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Ingest] Failed to generate base IV")
		utils.JSON500(c, "Failed to initialize object")
		return
	}

	obj, created, err := ctrl.Repository.Objects.CreateOrGetObject(ctx, &entity.Object{
		ObjectID:      objectID,
		FileName:      fileName,
		FileType:      fileType,
		FileSize:      fileSize,
		TotalChunks:   totalChunks,
		EncryptionKey: key,
		BaseIV:        baseIV,
		Extra:         extra,
	})
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Ingest] Failed to resolve object %s", objectID)
		utils.JSON500(c, "Failed to resolve object")
		return
	}

	if !created {
		// Every chunk of one object must agree on the upload metadata.
		if obj.TotalChunks != totalChunks || obj.FileType != fileType || obj.FileSize != fileSize {
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[Ingest] Metadata mismatch for object %s: got totalChunks=%d type=%s size=%d, recorded totalChunks=%d type=%s size=%d",
				objectID, totalChunks, fileType, fileSize, obj.TotalChunks, obj.FileType, obj.FileSize)
			utils.JSON400(c, "Chunk metadata does not match the object's recorded metadata")
			return
		}
	}

	nonce := crypto.DeriveNonce(obj.BaseIV, index)
	ciphertext, tag, err := crypto.SealChunk(obj.EncryptionKey, nonce, plaintext)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Ingest] Failed to encrypt chunk %d of object %s", index, objectID)
		utils.JSON500(c, "Failed to encrypt chunk")
		return
	}

	// Durable write first, descriptor second: a crash in between leaves an
	// orphaned blob, never a descriptor pointing at missing bytes.
	storageKey, err := ctrl.Infra.ChunkStore.PutChunk(ctx, objectID, index, tag, ciphertext)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Ingest] Failed to store chunk %d of object %s", index, objectID)
		utils.JSON500(c, "Failed to store chunk")
		return
	}

	desc := &entity.ChunkDescriptor{
		ObjectID:     objectID,
		ChunkIndex:   index,
		StorageKey:   storageKey,
		CipherLength: int64(len(ciphertext)),
		AuthTag:      tag,
	}
	stored, appended, err := ctrl.Repository.Objects.AppendChunk(ctx, desc)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Ingest] Failed to record chunk %d of object %s", index, objectID)
		utils.JSON500(c, "Failed to record chunk")
		return
	}

	if !appended {
		if !repository.SameContent(desc, stored) {
			ctrl.Infra.Logger.ErrorWithContextf(ctx, repository.ErrChunkConflict, "[Ingest] Conflicting re-upload of chunk %d for object %s", index, objectID)
			utils.JSON400(c, fmt.Sprintf("Chunk %d was already uploaded with different content", index))
			return
		}
		ctrl.Infra.Logger.InfoWithContextf(ctx, "[Ingest] Chunk %d of object %s re-submitted unchanged, accepting retry", index, objectID)
	} else {
		ctrl.Infra.Logger.InfoWithContextf(ctx, "[Ingest] Chunk %d/%d stored for object %s (%d bytes)", index+1, totalChunks, objectID, len(plaintext))
		ctrl.publishIfComplete(c, objectID)
	}

	utils.JSON200(c, dto.IngestChunkResponse{
		Success:     true,
		Index:       index,
		TotalChunks: totalChunks,
		ObjectID:    objectID,
	})
}

func (ctrl *Controller) publishIfComplete(c *gin.Context, objectID string) {
	if ctrl.Infra.Produce == nil {
		return
	}
	ctx := c.Request.Context()

	obj, err := ctrl.Repository.Objects.GetObject(ctx, objectID)
	if err != nil || !obj.Complete() {
		return
	}

	err = ctrl.Infra.Produce.PublishObjectComplete(ctx, produce.ObjectCompleteMessage{
		ObjectID:    obj.ObjectID,
		FileType:    obj.FileType,
		TotalChunks: obj.TotalChunks,
	})
	if err != nil {
		// Prewarm is best effort; streaming assembles on demand anyway.
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Ingest] Failed to publish completion of object %s: %v", objectID, err)
		return
	}
	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Ingest] Object %s complete, published prewarm event", objectID)
}
