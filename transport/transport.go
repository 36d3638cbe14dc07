// Package transport defines the contract between blobstore and a remote
// object store. Implementations perform authenticated round-trips and own
// credential handling and per-request retries; blobstore never retries on
// top of them.
package transport

import (
	"context"
	"io"
	"iter"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/blobstore/blobtypes"
)

// PutOptions carries per-object attributes for writes.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// PutResult is returned by a committed write.
type PutResult struct {
	ETag      string
	VersionID string
}

// Properties is the per-object metadata returned by GetProperties.
type Properties struct {
	Size         int64
	LastModified time.Time
	ETag         string
	ContentType  string
}

// Transport performs authenticated operations against a named container and
// object. Implementations must be safe for concurrent use.
//
// Missing objects are reported by wrapping errors.ErrObjectNotFound and
// missing containers by wrapping errors.ErrContainerNotFound.
type Transport interface {
	// Put writes the whole object, overwriting any existing object of the same name.
	Put(ctx context.Context, container, key string, body io.Reader, size int64, opts PutOptions) (PutResult, error)

	// BeginMultipart opens a multipart session for key. Nothing becomes visible
	// until the session is completed.
	BeginMultipart(ctx context.Context, container, key string, opts PutOptions) (MultipartSession, error)

	// Head reports whether the object exists. Not-found is (false, nil).
	Head(ctx context.Context, container, key string) (bool, error)

	// ListObjects enumerates the keys in container. A failure is yielded once
	// as the final element.
	ListObjects(ctx context.Context, container string) iter.Seq2[string, error]

	// GetProperties fetches size and last-modified for one object.
	GetProperties(ctx context.Context, container, key string) (Properties, error)
}

// MultipartSession is one in-progress multipart upload. PutPart may be called
// concurrently; Complete and Abort are called once, after every PutPart has returned.
type MultipartSession interface {
	// PutPart uploads the bytes of one part.
	PutPart(ctx context.Context, part blobtypes.PartDescriptor, data io.Reader) (blobtypes.CompletedPart, error)

	// Complete commits the object from parts, which are ordered by Index.
	Complete(ctx context.Context, parts []blobtypes.CompletedPart) (PutResult, error)

	// Abort discards the uploaded parts.
	Abort(ctx context.Context) error
}

// Limits describes store-imposed multipart constraints.
type Limits struct {
	// MinPartSize applies to every part except the last
	MinPartSize int64
	MaxPartSize int64
	MaxParts    int
}

// Limiter is implemented by transports whose store constrains part sizing.
type Limiter interface {
	Limits() Limits
}

// ObjectEntry is a listing entry that already carries its properties.
type ObjectEntry struct {
	Key        string
	Properties Properties
}

// DetailedLister is implemented by transports whose listing call already
// returns per-object properties, allowing the catalog to skip the
// per-object GetProperties round-trip.
type DetailedLister interface {
	ListObjectsDetailed(ctx context.Context, container string) iter.Seq2[ObjectEntry, error]
}
