package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lamvt/vaultstream/config"
	"github.com/lamvt/vaultstream/crypto"
	"github.com/lamvt/vaultstream/entity"
	"github.com/lamvt/vaultstream/infra"
	"github.com/lamvt/vaultstream/infra/produce"
	"github.com/lamvt/vaultstream/repository"
)

// PrewarmConsumer listens for completed objects and assembles their plaintext
// into the cache before the first playback request arrives.
type PrewarmConsumer struct {
	channel    *amqp.Channel
	config     *config.EnvConfig
	infra      *infra.Infra
	repository *repository.Repository
}

func NewPrewarmConsumer(channel *amqp.Channel, cfg *config.EnvConfig, infra *infra.Infra, repo *repository.Repository) *PrewarmConsumer {
	return &PrewarmConsumer{
		channel:    channel,
		config:     cfg,
		infra:      infra,
		repository: repo,
	}
}

func (c *PrewarmConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		produce.ObjectCompleteQueue,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register prewarm consumer: %w", err)
	}

	c.infra.Logger.InfoWithContextf(ctx, "[Prewarm Consumer] Started listening on queue: %s", produce.ObjectCompleteQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.infra.Logger.InfoWithContextf(ctx, "[Prewarm Consumer] Shutting down...")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.infra.Logger.WarningWithContextf(ctx, "[Prewarm Consumer] Channel closed")
					return
				}
				c.handleObjectComplete(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *PrewarmConsumer) handleObjectComplete(ctx context.Context, msg amqp.Delivery) {
	var payload produce.ObjectCompleteMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Prewarm Consumer] Failed to unmarshal message")
		_ = msg.Nack(false, false)
		return
	}

	c.infra.Logger.InfoWithContextf(ctx, "[Prewarm Consumer] Prewarming object %s", payload.ObjectID)

	// The publishing request is long gone, so decrypt under a fresh context.
	bgCtx := context.Background()

	obj, err := c.repository.Objects.GetObject(bgCtx, payload.ObjectID)
	if err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Prewarm Consumer] Failed to load object %s", payload.ObjectID)
		_ = msg.Nack(false, true) // Requeue
		return
	}

	if !obj.Complete() {
		// Stale or premature message; nothing to prewarm yet.
		c.infra.Logger.WarningWithContextf(ctx, "[Prewarm Consumer] Object %s incomplete (%d/%d chunks), dropping message",
			payload.ObjectID, len(obj.Chunks), obj.TotalChunks)
		_ = msg.Nack(false, false)
		return
	}

	if c.infra.Redis == nil {
		_ = msg.Ack(false)
		return
	}

	cacheKey := "plaintext:" + obj.ObjectID
	exists, err := c.infra.Redis.Exists(bgCtx, cacheKey)
	if err == nil && exists {
		_ = msg.Ack(false)
		return
	}

	plaintext, err := c.assemblePlaintext(bgCtx, obj)
	if err != nil {
		if isTransient(err) {
			c.infra.Logger.ErrorWithContextf(ctx, err, "[Prewarm Consumer] Transient failure assembling object %s", payload.ObjectID)
			_ = msg.Nack(false, true) // Requeue
			return
		}
		// Integrity failures will not heal on retry.
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Prewarm Consumer] Failed to assemble object %s", payload.ObjectID)
		_ = msg.Nack(false, false)
		return
	}

	if int64(len(plaintext)) > c.config.Stream.CacheMaxBytes {
		c.infra.Logger.InfoWithContextf(ctx, "[Prewarm Consumer] Object %s is %d bytes, over the cache cap, skipping",
			payload.ObjectID, len(plaintext))
		_ = msg.Ack(false)
		return
	}

	ttl := time.Duration(c.config.Stream.CacheTTLSec) * time.Second
	if err := c.infra.Redis.SetBytes(bgCtx, cacheKey, plaintext, ttl); err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Prewarm Consumer] Failed to cache object %s", payload.ObjectID)
		_ = msg.Nack(false, true)
		return
	}

	c.infra.Logger.InfoWithContextf(ctx, "[Prewarm Consumer] Cached %d bytes for object %s", len(plaintext), payload.ObjectID)
	_ = msg.Ack(false)
}

func (c *PrewarmConsumer) assemblePlaintext(ctx context.Context, obj *entity.Object) ([]byte, error) {
	var capacity int64
	for _, desc := range obj.Chunks {
		capacity += desc.CipherLength
	}
	plaintext := make([]byte, 0, capacity)

	for _, desc := range obj.Chunks {
		ciphertext, err := c.infra.ChunkStore.GetChunk(ctx, desc.StorageKey)
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
	return plaintext, nil
}

func isTransient(err error) bool {
	return !errors.Is(err, crypto.ErrIntegrity)
}
