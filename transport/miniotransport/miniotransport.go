// Package miniotransport implements the blobstore transport over MinIO and
// other S3-compatible stores using minio-go.
package miniotransport

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"slices"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/input-output-hk/catalyst-forge-libs/blobstore/blobtypes"
	bserrors "github.com/input-output-hk/catalyst-forge-libs/blobstore/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/transport"
)

var minioLimits = transport.Limits{
	MinPartSize: 5 * blobtypes.MiB,
	MaxPartSize: 5 * blobtypes.GiB,
	MaxParts:    10000,
}

// Config identifies the MinIO endpoint and credentials.
type Config struct {
	// Endpoint is host[:port]. An http:// or https:// prefix also selects Secure.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	Secure          bool
}

// Transport is a transport.Transport backed by minio-go.
type Transport struct {
	core *minio.Core
	// head serves Head with retries disabled.
	head *minio.Client
}

var (
	_ transport.Transport      = (*Transport)(nil)
	_ transport.Limiter        = (*Transport)(nil)
	_ transport.DetailedLister = (*Transport)(nil)
)

// New creates a MinIO client for cfg.
func New(cfg Config) (*Transport, error) {
	endpoint, secure := splitScheme(cfg.Endpoint, cfg.Secure)
	if endpoint == "" {
		return nil, bserrors.New(bserrors.KindConfiguration, "miniotransport.new", bserrors.ErrConfiguration).
			WithMessage("endpoint is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, bserrors.New(bserrors.KindConfiguration, "miniotransport.new", bserrors.ErrConfiguration).
			WithMessage("access key id and secret access key are required")
	}

	opts := func(maxRetries int) *minio.Options {
		return &minio.Options{
			Creds:      credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
			Secure:     secure,
			Region:     cfg.Region,
			MaxRetries: maxRetries,
		}
	}

	core, err := minio.NewCore(endpoint, opts(0))
	if err != nil {
		return nil, bserrors.New(bserrors.KindConfiguration, "miniotransport.new", err)
	}
	head, err := minio.New(endpoint, opts(1))
	if err != nil {
		return nil, bserrors.New(bserrors.KindConfiguration, "miniotransport.new", err)
	}
	return &Transport{core: core, head: head}, nil
}

// Limits reports the S3 multipart constraints MinIO enforces.
func (t *Transport) Limits() transport.Limits {
	return minioLimits
}

// Put writes the object with a single request.
func (t *Transport) Put(
	ctx context.Context,
	container, key string,
	body io.Reader,
	size int64,
	opts transport.PutOptions,
) (transport.PutResult, error) {
	info, err := t.core.Client.PutObject(ctx, container, key, body, size, minio.PutObjectOptions{
		ContentType:      opts.ContentType,
		UserMetadata:     opts.Metadata,
		DisableMultipart: true,
	})
	if err != nil {
		return transport.PutResult{}, mapError("put", container, key, err)
	}
	return transport.PutResult{ETag: info.ETag, VersionID: info.VersionID}, nil
}

// BeginMultipart starts a multipart upload through the low-level Core API.
func (t *Transport) BeginMultipart(
	ctx context.Context,
	container, key string,
	opts transport.PutOptions,
) (transport.MultipartSession, error) {
	uploadID, err := t.core.NewMultipartUpload(ctx, container, key, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	})
	if err != nil {
		return nil, mapError("beginMultipart", container, key, err)
	}
	return &session{core: t.core, bucket: container, key: key, uploadID: uploadID}, nil
}

// Head reports whether the object exists with a single request.
func (t *Transport) Head(ctx context.Context, container, key string) (bool, error) {
	_, err := t.head.StatObject(ctx, container, key, minio.StatObjectOptions{})
	if err != nil {
		switch classify(err) {
		case bserrors.ErrObjectNotFound, bserrors.ErrContainerNotFound:
			return false, nil
		}
		return false, mapError("head", container, key, err)
	}
	return true, nil
}

// GetProperties stats the object.
func (t *Transport) GetProperties(ctx context.Context, container, key string) (transport.Properties, error) {
	info, err := t.core.Client.StatObject(ctx, container, key, minio.StatObjectOptions{})
	if err != nil {
		return transport.Properties{}, mapError("getProperties", container, key, err)
	}
	return propertiesOf(info), nil
}

// ListObjects enumerates every key in container.
func (t *Transport) ListObjects(ctx context.Context, container string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for entry, err := range t.ListObjectsDetailed(ctx, container) {
			if err != nil {
				yield("", err)
				return
			}
			if !yield(entry.Key, nil) {
				return
			}
		}
	}
}

// ListObjectsDetailed enumerates every object in container with its listing
// properties.
func (t *Transport) ListObjectsDetailed(ctx context.Context, container string) iter.Seq2[transport.ObjectEntry, error] {
	return func(yield func(transport.ObjectEntry, error) bool) {
		// Cancelling stops the listing goroutine inside minio-go when we
		// return early.
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		for info := range t.core.Client.ListObjects(ctx, container, minio.ListObjectsOptions{Recursive: true}) {
			if info.Err != nil {
				yield(transport.ObjectEntry{}, mapError("list", container, "", info.Err))
				return
			}
			if !yield(transport.ObjectEntry{Key: info.Key, Properties: propertiesOf(info)}, nil) {
				return
			}
		}
		if err := ctx.Err(); err != nil {
			yield(transport.ObjectEntry{}, mapError("list", container, "", err))
		}
	}
}

type session struct {
	core     *minio.Core
	bucket   string
	key      string
	uploadID string
}

func (s *session) PutPart(
	ctx context.Context,
	part blobtypes.PartDescriptor,
	data io.Reader,
) (blobtypes.CompletedPart, error) {
	out, err := s.core.PutObjectPart(ctx, s.bucket, s.key, s.uploadID, part.Index+1, data, part.Length,
		minio.PutObjectPartOptions{})
	if err != nil {
		return blobtypes.CompletedPart{}, mapError("putPart", s.bucket, s.key, err)
	}
	return blobtypes.CompletedPart{Index: part.Index, ETag: out.ETag, Size: out.Size}, nil
}

func (s *session) Complete(ctx context.Context, parts []blobtypes.CompletedPart) (transport.PutResult, error) {
	ordered := slices.Clone(parts)
	slices.SortFunc(ordered, func(a, b blobtypes.CompletedPart) int { return a.Index - b.Index })

	completed := make([]minio.CompletePart, len(ordered))
	for i, p := range ordered {
		completed[i] = minio.CompletePart{PartNumber: p.Index + 1, ETag: p.ETag}
	}

	info, err := s.core.CompleteMultipartUpload(ctx, s.bucket, s.key, s.uploadID, completed, minio.PutObjectOptions{})
	if err != nil {
		return transport.PutResult{}, mapError("completeMultipart", s.bucket, s.key, err)
	}
	return transport.PutResult{ETag: info.ETag, VersionID: info.VersionID}, nil
}

func (s *session) Abort(ctx context.Context) error {
	if err := s.core.AbortMultipartUpload(ctx, s.bucket, s.key, s.uploadID); err != nil {
		return mapError("abortMultipart", s.bucket, s.key, err)
	}
	return nil
}

func propertiesOf(info minio.ObjectInfo) transport.Properties {
	return transport.Properties{
		Size:         info.Size,
		LastModified: info.LastModified,
		ETag:         info.ETag,
		ContentType:  info.ContentType,
	}
}

func splitScheme(endpoint string, secure bool) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false
	default:
		return strings.TrimSuffix(endpoint, "/"), secure
	}
}

// classify maps a minio-go error response onto a blobstore cause sentinel.
func classify(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NotFound":
		return bserrors.ErrObjectNotFound
	case "NoSuchBucket":
		return bserrors.ErrContainerNotFound
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return bserrors.ErrAccessDenied
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return bserrors.ErrObjectNotFound
	case http.StatusForbidden:
		return bserrors.ErrAccessDenied
	}
	return nil
}

func mapError(op, container, key string, err error) error {
	if cause := classify(err); cause != nil {
		err = fmt.Errorf("%w: %w", cause, err)
	}
	return bserrors.NewObjectError(bserrors.KindTransport, op, container, key, err)
}
