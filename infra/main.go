package infra

import (
	"context"
	"fmt"
	"log"

	"github.com/lamvt/vaultstream/config"
	"github.com/lamvt/vaultstream/infra/produce"
)

type Infra struct {
	Redis                *RedisClient
	Postgres             *PostgresClient
	Logger               *LoggerClient
	RabbitMQ             *RabbitMQClient
	AuthorizationService *AuthorizationService
	Produce              *produce.Produce
	ChunkStore           ChunkStore
}

var infraInstance *Infra

func InitInfra(cfg *config.Config) *Infra {
	if infraInstance != nil {
		return infraInstance
	}

	env := cfg.EnvConfig

	logger := InitLoggerClient(env)
	if logger == nil {
		panic("Failed to initialize Logger service")
	}

	var chunkStore ChunkStore
	var postgres *PostgresClient

	switch env.Storage.Backend {
	case "minio":
		minio := InitMinioClient(env)
		if err := minio.EnsureBucket(context.Background()); err != nil {
			panic(fmt.Sprintf("Failed to ensure chunk bucket: %v", err))
		}
		if env.Storage.ServiceUser != "" {
			if err := minio.EnsureServiceAccount(context.Background(), env.Storage.ServiceUser, env.Storage.ServicePass); err != nil {
				log.Printf("Warning: failed to provision MinIO service account: %v", err)
			}
		}
		chunkStore = minio
		postgres = InitPostgresClient(env)
	case "s3":
		s3 := InitS3Client(env)
		if err := s3.EnsureBucket(context.Background()); err != nil {
			panic(fmt.Sprintf("Failed to ensure chunk bucket: %v", err))
		}
		chunkStore = s3
		postgres = InitPostgresClient(env)
	case "memory":
		// Single-process profile for local development: no Postgres, no blob
		// store, everything is lost on restart.
		chunkStore = NewMemoryChunkStore()
	default:
		panic(fmt.Sprintf("Unknown storage backend %q", env.Storage.Backend))
	}

	authorizationService := InitAuthorizationService(env)

	// Redis and RabbitMQ are optional: without Redis every stream request
	// reassembles from chunk storage, without RabbitMQ no prewarm events are
	// published.
	var redis *RedisClient
	if env.Redis.RedisHost != "" {
		redis = InitRedisClient(env)
	} else {
		log.Println("Redis not configured, plaintext cache disabled")
	}

	var rabbitMQ *RabbitMQClient
	var produceService *produce.Produce
	if env.Storage.Backend != "memory" {
		rabbitMQ = InitRabbitMQClient(env)
		produceService = produce.InitProduce(rabbitMQ.Channel)
	} else {
		log.Println("RabbitMQ skipped for memory profile, prewarm events disabled")
	}

	infraInstance = &Infra{
		Redis:                redis,
		Postgres:             postgres,
		Logger:               logger,
		RabbitMQ:             rabbitMQ,
		AuthorizationService: authorizationService,
		Produce:              produceService,
		ChunkStore:           chunkStore,
	}

	return infraInstance
}

func GetClient() *Infra {
	if infraInstance == nil {
		panic("Infra not initialized. Call InitInfra() first.")
	}
	return infraInstance
}
