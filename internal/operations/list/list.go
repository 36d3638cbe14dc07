// Package list implements the object catalog reader.
package list

import (
	"context"
	"iter"

	"github.com/input-output-hk/catalyst-forge-libs/blobstore/blobtypes"
	bserrors "github.com/input-output-hk/catalyst-forge-libs/blobstore/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/transport"
)

// Lister enumerates a container and resolves per-object metadata.
type Lister struct {
	transport transport.Transport
}

// New creates a new Lister.
func New(t transport.Transport) *Lister {
	return &Lister{transport: t}
}

// Objects returns a lazy sequence of the objects in container. Every range
// over the sequence enumerates the store again. Unless batched metadata is
// requested and the transport can supply it, each key costs one extra
// GetProperties round-trip.
//
// A failure is yielded once, as the final element, with a zero ObjectMetadata.
func (l *Lister) Objects(
	ctx context.Context,
	container string,
	cfg blobtypes.ListOptionConfig,
) iter.Seq2[blobtypes.ObjectMetadata, error] {
	if detailed, ok := l.transport.(transport.DetailedLister); ok && cfg.BatchedMetadata {
		return l.batched(ctx, container, detailed)
	}

	return func(yield func(blobtypes.ObjectMetadata, error) bool) {
		for key, err := range l.transport.ListObjects(ctx, container) {
			if err != nil {
				yield(blobtypes.ObjectMetadata{}, catalogError(ctx, "list", container, "", err))
				return
			}

			props, err := l.transport.GetProperties(ctx, container, key)
			if err != nil {
				yield(blobtypes.ObjectMetadata{}, catalogError(ctx, "getProperties", container, key, err))
				return
			}

			if !yield(metadataOf(key, props), nil) {
				return
			}
		}
	}
}

// List enumerates container completely. It returns every object or an
// error, never a partial slice.
func (l *Lister) List(
	ctx context.Context,
	container string,
	cfg blobtypes.ListOptionConfig,
) ([]blobtypes.ObjectMetadata, error) {
	objects := make([]blobtypes.ObjectMetadata, 0)
	for obj, err := range l.Objects(ctx, container, cfg) {
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

func (l *Lister) batched(
	ctx context.Context,
	container string,
	detailed transport.DetailedLister,
) iter.Seq2[blobtypes.ObjectMetadata, error] {
	return func(yield func(blobtypes.ObjectMetadata, error) bool) {
		for entry, err := range detailed.ListObjectsDetailed(ctx, container) {
			if err != nil {
				yield(blobtypes.ObjectMetadata{}, catalogError(ctx, "list", container, "", err))
				return
			}
			if !yield(metadataOf(entry.Key, entry.Properties), nil) {
				return
			}
		}
	}
}

func metadataOf(key string, props transport.Properties) blobtypes.ObjectMetadata {
	return blobtypes.ObjectMetadata{
		Name:         key,
		Size:         props.Size,
		LastModified: props.LastModified,
		ETag:         props.ETag,
		ContentType:  props.ContentType,
	}
}

// catalogError classifies a listing failure. Cancellation of ctx wins over
// whatever the transport reported.
func catalogError(ctx context.Context, op, container, key string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return bserrors.NewObjectError(bserrors.KindCancelled, op, container, key, ctxErr)
	}
	return bserrors.NewObjectError(bserrors.KindCatalog, op, container, key, err)
}
