package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lamvt/vaultstream/crypto"
	"github.com/lamvt/vaultstream/entity"
	"github.com/lamvt/vaultstream/repository"
	"github.com/lamvt/vaultstream/utils"
)

// StreamObject reconstructs an object and serves a byte range of its
// plaintext. GET /stream?objectId=<id>, optional Range header.
//
// Media objects never get the whole body from one request: unranged and
// open-ended requests are answered with a bounded synthetic segment (206) so
// the player keeps issuing range requests, segment by segment.
func (ctrl *Controller) StreamObject(c *gin.Context) {
	ctx := c.Request.Context()

	// Weak anti-hotlinking gate, not a security boundary: direct links from
	// outside the trusted front ends are turned away.
	if !ctrl.originAllowed(c) {
		utils.JSON403(c, "Access denied - direct links are not allowed. Please access files through the application.")
		return
	}

	objectID := c.Query("objectId")
	if objectID == "" {
		utils.JSON400(c, "objectId is required")
		return
	}

	obj, err := ctrl.Repository.Objects.GetObject(ctx, objectID)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			utils.JSON404(c, "Object not found")
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Stream] Failed to load object %s", objectID)
		utils.JSON500(c, "Failed to load object")
		return
	}

	// A partially ingested object is indistinguishable from an absent one.
	if !obj.Complete() {
		ctrl.Infra.Logger.InfoWithContextf(ctx, "[Stream] Object %s incomplete (%d/%d chunks), refusing to serve",
			objectID, len(obj.Chunks), obj.TotalChunks)
		utils.JSON404(c, "Object not found")
		return
	}

	plaintext, err := ctrl.assemblePlaintext(ctx, obj)
	if err != nil {
		if errors.Is(err, crypto.ErrIntegrity) {
			ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Stream] Integrity failure while assembling object %s", objectID)
			utils.JSON500(c, "File integrity check failed")
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Stream] Failed to assemble object %s", objectID)
		utils.JSON500(c, "Failed to read object")
		return
	}

	total := int64(len(plaintext))
	class := entity.MediaClassOf(obj.FileType)

	rng, unsatisfiable := resolveRange(c.GetHeader("Range"), total, class)
	if unsatisfiable {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", total))
		utils.JSON416(c, "Requested range not satisfiable")
		return
	}

	c.Header("Accept-Ranges", "bytes")
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
	c.Header("X-Content-Type-Options", "nosniff")
	if rng.Status == 206 {
		c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End, total))
	}

	c.Data(rng.Status, obj.FileType, plaintext[rng.Start:rng.End+1])
}

// assemblePlaintext decrypts every chunk in index order and concatenates the
// results. Any integrity failure aborts the whole request; a corrupted or
// truncated body is never served. Complete objects are immutable, so the
// assembled buffer is cached by object id.
func (ctrl *Controller) assemblePlaintext(ctx context.Context, obj *entity.Object) ([]byte, error) {
	cacheKey := "plaintext:" + obj.ObjectID
	if ctrl.Infra.Redis != nil {
		if data, err := ctrl.Infra.Redis.GetBytes(ctx, cacheKey); err == nil {
			return data, nil
		}
	}

	var capacity int64
	for _, desc := range obj.Chunks {
		capacity += desc.CipherLength
	}
	plaintext := make([]byte, 0, capacity)

	for _, desc := range obj.Chunks {
		ciphertext, err := ctrl.Infra.ChunkStore.GetChunk(ctx, desc.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", desc.ChunkIndex, err)
		}
		nonce := crypto.DeriveNonce(obj.BaseIV, desc.ChunkIndex)
		plain, err := crypto.OpenChunk(obj.EncryptionKey, nonce, ciphertext, desc.AuthTag)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", desc.ChunkIndex, err)
		}
		plaintext = append(plaintext, plain...)
	}

	// The declared size is advisory; log drift, serve the real bytes.
	if obj.FileSize > 0 && int64(len(plaintext)) != obj.FileSize {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Stream] Object %s assembled to %d bytes, uploader declared %d",
			obj.ObjectID, len(plaintext), obj.FileSize)
	}

	if ctrl.Infra.Redis != nil && int64(len(plaintext)) <= ctrl.Config.EnvConfig.Stream.CacheMaxBytes {
		ttl := time.Duration(ctrl.Config.EnvConfig.Stream.CacheTTLSec) * time.Second
		if err := ctrl.Infra.Redis.SetBytes(ctx, cacheKey, plaintext, ttl); err != nil {
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[Stream] Failed to cache plaintext of object %s: %v", obj.ObjectID, err)
		}
	}

	return plaintext, nil
}

func (ctrl *Controller) originAllowed(c *gin.Context) bool {
	allowed := ctrl.Config.EnvConfig.Stream.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}

	origin := c.GetHeader("Origin")
	referer := c.GetHeader("Referer")
	for _, a := range allowed {
		if origin == a {
			return true
		}
		if referer != "" && strings.HasPrefix(referer, a) {
			return true
		}
	}
	return false
}
