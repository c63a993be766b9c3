package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	appConfig "github.com/lamvt/vaultstream/config"
)

// S3Client is the ChunkStore backend for S3-compatible storage (AWS, Garage,
// Ceph RGW). Selected with STORAGE_BACKEND=s3.
type S3Client struct {
	Client *s3.Client
	Bucket string
}

func InitS3Client(cfg *appConfig.EnvConfig) *S3Client {
	if cfg.S3.AccessKey == "" || cfg.S3.SecretKey == "" {
		panic("S3 credentials are not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.S3.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, "")),
	)
	if err != nil {
		panic(fmt.Sprintf("Failed to load S3 configuration: %v", err))
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Client{
		Client: client,
		Bucket: cfg.Storage.ChunkBucket,
	}
}

func (c *S3Client) EnsureBucket(ctx context.Context) error {
	_, err := c.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.Bucket)})
	if err == nil {
		return nil
	}
	_, err = c.Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(c.Bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (c *S3Client) PutChunk(ctx context.Context, objectID string, index int, tag, ciphertext []byte) (string, error) {
	key := chunkStorageKey(objectID, index, tag)
	_, err := c.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(ciphertext),
		ContentLength: aws.Int64(int64(len(ciphertext))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put chunk: %w", err)
	}
	return key, nil
}

func (c *S3Client) GetChunk(ctx context.Context, storageKey string) ([]byte, error) {
	out, err := c.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(storageKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrChunkNotFound
		}
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk: %w", err)
	}
	return data, nil
}
