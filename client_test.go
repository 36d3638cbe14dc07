package blobstore

import (
	"context"
	"log/slog"
	"runtime"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/blobstore/blobtypes"
	bserrors "github.com/input-output-hk/catalyst-forge-libs/blobstore/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/transport"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/transport/miniotransport"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/transport/s3transport"
)

func TestNew(t *testing.T) {
	t.Run("s3 with static credentials", func(t *testing.T) {
		client, err := New(context.Background(), Config{
			Provider:        ProviderS3,
			Region:          "us-east-1",
			Endpoint:        "http://localhost:4566",
			AccessKeyID:     "test",
			SecretAccessKey: "test",
			UsePathStyle:    true,
		})
		require.NoError(t, err)
		assert.IsType(t, &s3transport.Transport{}, client.transport)
	})

	t.Run("minio", func(t *testing.T) {
		client, err := New(context.Background(), Config{
			Provider:        ProviderMinIO,
			Endpoint:        "localhost:9000",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
		})
		require.NoError(t, err)
		assert.IsType(t, &miniotransport.Transport{}, client.transport)
	})

	t.Run("missing identity is a configuration error", func(t *testing.T) {
		client, err := New(context.Background(), Config{Provider: ProviderS3, Region: "us-east-1"})
		require.Error(t, err)
		assert.Nil(t, client)
		assert.ErrorIs(t, err, bserrors.ErrConfiguration)
	})
}

func TestNewWithTransport(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		client, err := NewWithTransport(testutil.NewMemoryTransport())
		require.NoError(t, err)

		assert.Equal(t, blobtypes.DefaultThreshold, client.config.Threshold)
		assert.Equal(t, blobtypes.DefaultPartSize, client.config.PartSize)
		assert.Equal(t, blobtypes.DefaultInitialPartSize, client.config.InitialPartSize)
		assert.False(t, client.config.BatchedMetadata)
		assert.NotNil(t, client.logger)
		assert.NotNil(t, client.fs)
	})

	t.Run("options", func(t *testing.T) {
		logger := slog.New(slog.DiscardHandler)
		fs := memfs.New()

		client, err := NewWithTransport(testutil.NewMemoryTransport(),
			WithThreshold(10*blobtypes.MiB),
			WithPartSize(8*blobtypes.MiB),
			WithInitialPartSize(2*blobtypes.MiB),
			WithConcurrency(3),
			WithBatchedMetadata(true),
			WithLogger(logger),
			WithFilesystem(fs),
		)
		require.NoError(t, err)

		assert.Equal(t, 10*blobtypes.MiB, client.config.Threshold)
		assert.Equal(t, 8*blobtypes.MiB, client.config.PartSize)
		assert.Equal(t, 2*blobtypes.MiB, client.config.InitialPartSize)
		assert.Equal(t, 3, client.config.Concurrency)
		assert.True(t, client.config.BatchedMetadata)
		assert.Same(t, logger, client.logger)
		assert.Equal(t, fs, client.fs)
	})

	t.Run("non-positive sizes keep defaults", func(t *testing.T) {
		client, err := NewWithTransport(testutil.NewMemoryTransport(),
			WithThreshold(0), WithPartSize(-1), WithConcurrency(0))
		require.NoError(t, err)
		assert.Equal(t, blobtypes.DefaultThreshold, client.config.Threshold)
		assert.Equal(t, blobtypes.DefaultPartSize, client.config.PartSize)
		assert.Zero(t, client.config.Concurrency)
	})

	t.Run("nil transport", func(t *testing.T) {
		_, err := NewWithTransport(nil)
		assert.ErrorIs(t, err, bserrors.ErrConfiguration)
	})
}

func TestClient_Plan(t *testing.T) {
	client, err := NewWithTransport(testutil.NewMemoryTransport())
	require.NoError(t, err)

	t.Run("threshold boundary", func(t *testing.T) {
		assert.Equal(t, blobtypes.StrategySimple, client.Plan(100*blobtypes.MiB-1).Strategy)
		assert.Equal(t, blobtypes.StrategyChunked, client.Plan(100*blobtypes.MiB).Strategy)
	})

	t.Run("250 MiB in 4 MiB parts", func(t *testing.T) {
		p := client.Plan(250 * blobtypes.MiB)
		assert.Equal(t, 63, p.PartCount)
		assert.Equal(t, 4*blobtypes.MiB, p.PartSize)
		assert.Equal(t, min(runtime.NumCPU(), 63), p.MaxConcurrency)
	})

	t.Run("per-upload overrides", func(t *testing.T) {
		p := client.Plan(200*blobtypes.MiB, WithUploadPartSize(8*blobtypes.MiB), WithUploadConcurrency(2))
		assert.Equal(t, 8*blobtypes.MiB, p.PartSize)
		assert.Equal(t, 2, p.MaxConcurrency)
	})

	t.Run("transport limits", func(t *testing.T) {
		limited := testutil.LimitedMemoryTransport{
			MemoryTransport: testutil.NewMemoryTransport(),
			L:               transport.Limits{MinPartSize: 5 * blobtypes.MiB, MaxPartSize: 5 * blobtypes.GiB, MaxParts: 10000},
		}
		c, err := NewWithTransport(limited)
		require.NoError(t, err)

		p := c.Plan(250 * blobtypes.MiB)
		assert.Equal(t, 5*blobtypes.MiB, p.PartSize)
		assert.Equal(t, 50, p.PartCount)
	})
}
