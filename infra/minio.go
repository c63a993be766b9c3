package infra

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/lamvt/vaultstream/config"
	"github.com/minio/madmin-go/v3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient is the default ChunkStore backend.
type MinioClient struct {
	Admin    *madmin.AdminClient
	Client   *minio.Client
	Bucket   string
	Endpoint string
}

func InitMinioClient(cfg *config.EnvConfig) *MinioClient {
	endpoint := cfg.Minio.Endpoint
	if endpoint == "" {
		panic("MinIO endpoint is not configured")
	}

	rootUser := cfg.Minio.RootUser
	if rootUser == "" {
		panic("MinIO root user is not configured")
	}

	rootPassword := cfg.Minio.RootPassword
	if rootPassword == "" {
		panic("MinIO root password is not configured")
	}

	madminClient, err := madmin.New(endpoint, rootUser, rootPassword, cfg.Minio.UseSSL)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize MinIO admin client: %v", err))
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(rootUser, rootPassword, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize MinIO client: %v", err))
	}

	return &MinioClient{
		Admin:    madminClient,
		Client:   minioClient,
		Bucket:   cfg.Storage.ChunkBucket,
		Endpoint: endpoint,
	}
}

// EnsureBucket creates the chunk bucket if it doesn't exist.
func (m *MinioClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.Client.BucketExists(ctx, m.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := m.Client.MakeBucket(ctx, m.Bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

func (m *MinioClient) PutChunk(ctx context.Context, objectID string, index int, tag, ciphertext []byte) (string, error) {
	key := chunkStorageKey(objectID, index, tag)
	_, err := m.Client.PutObject(ctx, m.Bucket, key,
		bytes.NewReader(ciphertext), int64(len(ciphertext)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return "", fmt.Errorf("failed to put chunk: %w", err)
	}
	return key, nil
}

func (m *MinioClient) GetChunk(ctx context.Context, storageKey string) ([]byte, error) {
	obj, err := m.Client.GetObject(ctx, m.Bucket, storageKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, ErrChunkNotFound
		}
		return nil, fmt.Errorf("failed to read chunk: %w", err)
	}
	return data, nil
}

// EnsureServiceAccount provisions a MinIO user restricted to the chunk bucket
// and attaches a canned read/write policy. Optional; the root credentials
// keep working without it.
func (m *MinioClient) EnsureServiceAccount(ctx context.Context, accessKey, secretKey string) error {
	if accessKey == "" || secretKey == "" {
		return fmt.Errorf("accessKey and secretKey cannot be empty")
	}

	policyName := "vault-chunks-rw-" + m.Bucket
	policyJSON := []byte(strings.ReplaceAll(`{
	"Version": "2012-10-17",
	"Statement": [
		{
			"Effect": "Allow",
			"Action": ["s3:GetBucketLocation", "s3:ListBucket"],
			"Resource": ["arn:aws:s3:::BUCKET"]
		},
		{
			"Effect": "Allow",
			"Action": ["s3:GetObject", "s3:PutObject"],
			"Resource": ["arn:aws:s3:::BUCKET/*"]
		}
	]
}`, "BUCKET", m.Bucket))

	if err := m.Admin.AddCannedPolicy(ctx, policyName, policyJSON); err != nil {
		return fmt.Errorf("failed to add canned policy: %w", err)
	}

	if err := m.Admin.AddUser(ctx, accessKey, secretKey); err != nil {
		return fmt.Errorf("failed to create MinIO service user: %w", err)
	}

	if err := m.Admin.SetPolicy(ctx, policyName, accessKey, false); err != nil {
		// Rollback: delete user if policy attachment fails
		_ = m.Admin.RemoveUser(ctx, accessKey)
		return fmt.Errorf("failed to attach policy to MinIO user: %w", err)
	}

	return nil
}
