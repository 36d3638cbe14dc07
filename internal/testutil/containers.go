package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/docker/go-connections/nat"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	"github.com/testcontainers/testcontainers-go/wait"
)

const localstackPort nat.Port = "4566/tcp"

// LocalStackS3 is a running LocalStack container serving S3.
type LocalStackS3 struct {
	Endpoint string
	Region   string
}

// StartLocalStack starts LocalStack and registers its termination with t.Cleanup.
func StartLocalStack(t *testing.T) *LocalStackS3 {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := localstack.Run(ctx,
		"localstack/localstack:3.8",
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/_localstack/health").
				WithPort(localstackPort).
				WithStartupTimeout(2*time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("failed to start LocalStack container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate LocalStack container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, localstackPort)
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	return &LocalStackS3{
		Endpoint: fmt.Sprintf("http://%s:%s", host, port.Port()),
		Region:   "us-east-1",
	}
}

// CreateBucket creates bucket in LocalStack using the test credentials.
func (l *LocalStackS3) CreateBucket(ctx context.Context, bucket string) error {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(l.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(l.Endpoint)
	})
	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// MinIOServer is a running MinIO container.
type MinIOServer struct {
	Endpoint  string
	AccessKey string
	SecretKey string
}

// StartMinIO starts MinIO and registers its termination with t.Cleanup.
func StartMinIO(t *testing.T) *MinIOServer {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcminio.Run(ctx, "minio/minio:RELEASE.2024-01-16T16-07-38Z")
	if err != nil {
		t.Fatalf("failed to start MinIO container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate MinIO container: %v", err)
		}
	})

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get MinIO endpoint: %v", err)
	}

	return &MinIOServer{
		Endpoint:  endpoint,
		AccessKey: container.Username,
		SecretKey: container.Password,
	}
}

// CreateBucket creates bucket on the MinIO server.
func (m *MinIOServer) CreateBucket(ctx context.Context, bucket string) error {
	client, err := minio.New(m.Endpoint, &minio.Options{
		Creds: miniocreds.NewStaticV4(m.AccessKey, m.SecretKey, ""),
	})
	if err != nil {
		return fmt.Errorf("create minio client: %w", err)
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %q: %w", bucket, err)
	}
	return nil
}
