package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/blobstore/blobtypes"
	bserrors "github.com/input-output-hk/catalyst-forge-libs/blobstore/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/internal/testutil"
)

const testContainer = "uploads"

// newTestClient returns a client over an in-memory transport holding
// testContainer, with chunking from 4 KiB in 1 KiB parts.
func newTestClient(t *testing.T, opts ...blobtypes.Option) (*Client, *testutil.MemoryTransport) {
	t.Helper()
	mt := testutil.NewMemoryTransport(testContainer)
	base := []blobtypes.Option{
		WithThreshold(4 * blobtypes.KiB),
		WithPartSize(blobtypes.KiB),
		WithInitialPartSize(blobtypes.KiB),
		WithConcurrency(4),
	}
	client, err := NewWithTransport(mt, append(base, opts...)...)
	require.NoError(t, err)
	return client, mt
}

func payload(n int) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(data)
	return data
}

func TestClient_Upload(t *testing.T) {
	t.Run("simple round trip", func(t *testing.T) {
		client, mt := newTestClient(t)
		data := []byte("hello, blobstore")

		res, err := client.Upload(context.Background(), testContainer, "greeting.txt", bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		assert.Equal(t, blobtypes.StrategySimple, res.Strategy)
		assert.Equal(t, int64(len(data)), res.Size)
		assert.Equal(t, testContainer, res.Container)
		assert.Equal(t, "greeting.txt", res.Key)

		stored, ok := mt.Object(testContainer, "greeting.txt")
		require.True(t, ok)
		assert.Equal(t, data, stored)
		assert.True(t, strings.HasPrefix(mt.ContentType(testContainer, "greeting.txt"), "text/plain"))
	})

	t.Run("chunked round trip", func(t *testing.T) {
		client, mt := newTestClient(t)
		data := payload(10*1024 + 17)
		progress := &testutil.ProgressRecorder{}

		res, err := client.Upload(context.Background(), testContainer, "big.bin", bytes.NewReader(data), int64(len(data)),
			WithProgress(progress))
		require.NoError(t, err)
		assert.Equal(t, blobtypes.StrategyChunked, res.Strategy)
		assert.Equal(t, 11, res.Parts)

		stored, ok := mt.Object(testContainer, "big.bin")
		require.True(t, ok)
		assert.Equal(t, data, stored)
		assert.True(t, progress.Completed())
		assert.Equal(t, int64(len(data)), progress.Last())
	})

	t.Run("detects content type without seeking", func(t *testing.T) {
		client, mt := newTestClient(t)
		png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 600)...)

		_, err := client.Upload(context.Background(), testContainer, "image", struct{ *bytes.Reader }{bytes.NewReader(png)},
			int64(len(png)))
		require.NoError(t, err)
		assert.Equal(t, "image/png", mt.ContentType(testContainer, "image"))

		stored, _ := mt.Object(testContainer, "image")
		assert.Equal(t, png, stored)
	})

	t.Run("explicit content type and metadata", func(t *testing.T) {
		client, mt := newTestClient(t)

		_, err := client.Upload(context.Background(), testContainer, "doc", strings.NewReader("{}"), 2,
			WithContentType("application/json"),
			WithMetadata(map[string]string{"team": "infra"}),
			WithMetadata(map[string]string{"env": "prod"}))
		require.NoError(t, err)
		assert.Equal(t, "application/json", mt.ContentType(testContainer, "doc"))
		assert.Equal(t, map[string]string{"team": "infra", "env": "prod"}, mt.Metadata(testContainer, "doc"))
	})

	t.Run("dot-dot segments are ordinary key characters", func(t *testing.T) {
		client, mt := newTestClient(t)
		ctx := context.Background()

		_, err := client.Upload(ctx, testContainer, "a/../b", strings.NewReader("x"), 1)
		require.NoError(t, err)
		_, ok := mt.Object(testContainer, "a/../b")
		assert.True(t, ok)

		exists, err := client.Exists(ctx, testContainer, "a/../b")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("invalid input never reaches the transport", func(t *testing.T) {
		client, mt := newTestClient(t)
		ctx := context.Background()

		cases := []func() error{
			func() error { _, err := client.Upload(ctx, "", "k", strings.NewReader("x"), 1); return err },
			func() error { _, err := client.Upload(ctx, "Bad_Name", "k", strings.NewReader("x"), 1); return err },
			func() error { _, err := client.Upload(ctx, testContainer, "", strings.NewReader("x"), 1); return err },
			func() error { _, err := client.Upload(ctx, testContainer, "k", nil, 1); return err },
			func() error { _, err := client.Upload(ctx, testContainer, "k", strings.NewReader("x"), -1); return err },
			func() error {
				_, err := client.Upload(ctx, testContainer, "k", strings.NewReader("x"), 1, WithContentType("nope"))
				return err
			},
			func() error {
				_, err := client.Upload(ctx, testContainer, "k", strings.NewReader("x"), 1,
					WithMetadata(map[string]string{"bad key": "v"}))
				return err
			},
		}
		for i, call := range cases {
			err := call()
			assert.ErrorIs(t, err, bserrors.ErrInvalidInput, "case %d", i)
		}
		assert.Zero(t, mt.PutCalls.Load())
		assert.Zero(t, mt.BeginCalls.Load())
	})

	t.Run("part fault is a transfer error", func(t *testing.T) {
		client, mt := newTestClient(t)
		mt.PartHook = func(_ context.Context, part blobtypes.PartDescriptor) error {
			if part.Index == 3 {
				return errors.New("503 slow down")
			}
			return nil
		}

		data := payload(8 * 1024)
		res, err := client.Upload(context.Background(), testContainer, "big.bin", bytes.NewReader(data), int64(len(data)))
		require.Error(t, err)
		assert.Nil(t, res)
		assert.Equal(t, bserrors.KindTransfer, bserrors.KindOf(err))
		assert.Equal(t, int64(1), mt.AbortCalls.Load())

		ok, err := client.Exists(context.Background(), testContainer, "big.bin")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("cancelled before start", func(t *testing.T) {
		client, mt := newTestClient(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		data := payload(8 * 1024)
		_, err := client.Upload(ctx, testContainer, "big.bin", bytes.NewReader(data), int64(len(data)))
		require.Error(t, err)
		assert.Equal(t, bserrors.KindCancelled, bserrors.KindOf(err))
		assert.Zero(t, mt.PartCalls.Load())
		assert.Zero(t, mt.BeginCalls.Load())
	})
}

func TestClient_UploadFile(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/data/report.csv", []byte("a,b\n1,2\n"), 0o644))
	require.NoError(t, fs.MkdirAll("/data/dir", 0o755))

	client, mt := newTestClient(t, WithFilesystem(fs))
	ctx := context.Background()

	t.Run("uploads the file", func(t *testing.T) {
		res, err := client.UploadFile(ctx, testContainer, "reports/report.csv", "/data/report.csv")
		require.NoError(t, err)
		assert.Equal(t, int64(8), res.Size)

		stored, ok := mt.Object(testContainer, "reports/report.csv")
		require.True(t, ok)
		assert.Equal(t, "a,b\n1,2\n", string(stored))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := client.UploadFile(ctx, testContainer, "k", "/data/absent.csv")
		assert.ErrorIs(t, err, bserrors.ErrInvalidInput)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := client.UploadFile(ctx, testContainer, "k", "/data/dir")
		assert.ErrorIs(t, err, bserrors.ErrInvalidInput)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := client.UploadFile(ctx, testContainer, "k", "")
		assert.ErrorIs(t, err, bserrors.ErrInvalidInput)
	})
}

func TestClient_ListObjects(t *testing.T) {
	t.Run("lists with metadata", func(t *testing.T) {
		client, mt := newTestClient(t)
		mt.Seed(testContainer, "one", []byte("1"))
		mt.Seed(testContainer, "two", []byte("22"))

		objects, err := client.ListObjects(context.Background(), testContainer)
		require.NoError(t, err)
		require.Len(t, objects, 2)
		assert.Equal(t, "one", objects[0].Name)
		assert.Equal(t, int64(2), objects[1].Size)
		assert.Equal(t, int64(2), mt.GetPropertiesCalls.Load())
	})

	t.Run("empty container", func(t *testing.T) {
		client, _ := newTestClient(t)

		objects, err := client.ListObjects(context.Background(), testContainer)
		require.NoError(t, err)
		assert.Empty(t, objects)
	})

	t.Run("missing container", func(t *testing.T) {
		client, _ := newTestClient(t)

		objects, err := client.ListObjects(context.Background(), "does-not-exist")
		require.Error(t, err)
		assert.Nil(t, objects)
		assert.Equal(t, bserrors.KindCatalog, bserrors.KindOf(err))
		assert.True(t, bserrors.IsContainerNotFound(err))
	})

	t.Run("batched metadata", func(t *testing.T) {
		mt := testutil.NewMemoryTransport(testContainer)
		mt.Seed(testContainer, "one", []byte("1"))
		client, err := NewWithTransport(testutil.DetailedMemoryTransport{MemoryTransport: mt}, WithBatchedMetadata(true))
		require.NoError(t, err)

		objects, err := client.ListObjects(context.Background(), testContainer)
		require.NoError(t, err)
		require.Len(t, objects, 1)
		assert.Zero(t, mt.GetPropertiesCalls.Load())

		_, err = client.ListObjects(context.Background(), testContainer, WithListBatchedMetadata(false))
		require.NoError(t, err)
		assert.Equal(t, int64(1), mt.GetPropertiesCalls.Load())
	})

	t.Run("invalid container name", func(t *testing.T) {
		client, _ := newTestClient(t)
		_, err := client.ListObjects(context.Background(), "x")
		assert.ErrorIs(t, err, bserrors.ErrInvalidInput)
	})
}

func TestClient_Objects(t *testing.T) {
	client, mt := newTestClient(t)
	mt.Seed(testContainer, "a", []byte("a"))
	mt.Seed(testContainer, "b", []byte("b"))

	var names []string
	for obj, err := range client.Objects(context.Background(), testContainer) {
		require.NoError(t, err)
		names = append(names, obj.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)

	var errs []error
	for _, err := range client.Objects(context.Background(), "NOT VALID") {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], bserrors.ErrInvalidInput)
}

func TestClient_Exists(t *testing.T) {
	client, mt := newTestClient(t)
	mt.Seed(testContainer, "present", []byte("x"))
	ctx := context.Background()

	ok, err := client.Exists(ctx, testContainer, "present")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Exists(ctx, testContainer, "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	mt.HeadErr = errors.New("network unreachable")
	ok, err = client.Exists(ctx, testContainer, "present")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, bserrors.KindTransport, bserrors.KindOf(err))
}

func TestClient_GetMetadata(t *testing.T) {
	client, mt := newTestClient(t)
	mt.Seed(testContainer, "obj", []byte("12345"))
	ctx := context.Background()

	meta, err := client.GetMetadata(ctx, testContainer, "obj")
	require.NoError(t, err)
	assert.Equal(t, "obj", meta.Name)
	assert.Equal(t, int64(5), meta.Size)
	assert.False(t, meta.LastModified.IsZero())

	_, err = client.GetMetadata(ctx, testContainer, "missing")
	require.Error(t, err)
	assert.True(t, bserrors.IsObjectNotFound(err))
	assert.Equal(t, bserrors.KindTransport, bserrors.KindOf(err))
}

func TestClient_Logging(t *testing.T) {
	decode := func(t *testing.T, buf *bytes.Buffer) []map[string]any {
		t.Helper()
		var records []map[string]any
		for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			if line == "" {
				continue
			}
			var rec map[string]any
			require.NoError(t, json.Unmarshal([]byte(line), &rec))
			records = append(records, rec)
		}
		return records
	}

	t.Run("uploads carry a correlation id", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		client, _ := newTestClient(t, WithLogger(logger))

		_, err := client.Upload(context.Background(), testContainer, "k", strings.NewReader("abc"), 3)
		require.NoError(t, err)

		records := decode(t, &buf)
		require.NotEmpty(t, records)
		id := records[0]["upload_id"]
		require.NotEmpty(t, id)
		for _, rec := range records {
			assert.Equal(t, id, rec["upload_id"])
		}
		assert.Equal(t, "upload completed", records[len(records)-1]["msg"])
	})

	t.Run("cancellation is not logged as an error", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		client, _ := newTestClient(t, WithLogger(logger))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := client.Upload(ctx, testContainer, "k", strings.NewReader("abc"), 3)
		require.Error(t, err)

		for _, rec := range decode(t, &buf) {
			assert.NotEqual(t, "ERROR", rec["level"])
		}
		assert.Contains(t, buf.String(), "operation cancelled")
	})

	t.Run("failures are logged as errors", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		client, mt := newTestClient(t, WithLogger(logger))
		mt.PutHook = func(context.Context, string) error { return errors.New("boom") }

		_, err := client.Upload(context.Background(), testContainer, "k", strings.NewReader("abc"), 3)
		require.Error(t, err)

		records := decode(t, &buf)
		last := records[len(records)-1]
		assert.Equal(t, "ERROR", last["level"])
		assert.Equal(t, "TRANSFER_ERROR", last["kind"])
	})
}
