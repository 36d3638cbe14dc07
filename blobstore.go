package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/input-output-hk/catalyst-forge-libs/blobstore/blobtypes"
	bserrors "github.com/input-output-hk/catalyst-forge-libs/blobstore/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/internal/operations/upload"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/internal/plan"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/transport"
)

// sniffLen is how much of the source is inspected to detect a content type.
const sniffLen = 512

// Upload writes size bytes from source to key in container, replacing any
// existing object. The source is read once, in order, and never seeked.
//
// Errors:
//   - ErrInvalidInput: container, key, size or options are invalid
//   - ErrTransfer: the write, or any part of it, failed; nothing was committed
//     by a chunked upload
//   - ErrCancelled: ctx was cancelled or timed out
//
// Example:
//
//	result, err := client.Upload(ctx, "media", "videos/intro.mp4", f, info.Size(),
//	    blobstore.WithContentType("video/mp4"),
//	    blobstore.WithProgress(tracker),
//	)
func (c *Client) Upload(
	ctx context.Context,
	container, key string,
	source io.Reader,
	size int64,
	opts ...blobtypes.UploadOption,
) (*blobtypes.UploadResult, error) {
	if err := validateTarget(container, key); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, invalidInput("upload", container, key, "source cannot be nil")
	}
	if size < 0 {
		return nil, invalidInput("upload", container, key, "size cannot be negative")
	}

	cfg := blobtypes.UploadOptionConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validation.ValidateMetadata(cfg.Metadata); err != nil {
		return nil, err
	}
	if err := validation.ValidateContentType(cfg.ContentType); err != nil {
		return nil, err
	}

	logger := c.logger.With(
		"upload_id", uuid.NewString(),
		"container", container,
		"key", key,
	)

	body := source
	contentType := cfg.ContentType
	if contentType == "" {
		var err error
		contentType, body, err = detectContentType(source, size)
		if err != nil {
			return nil, bserrors.NewObjectError(bserrors.KindTransfer, "readSource", container, key, err)
		}
	}

	p := c.planFor(size, cfg)
	logger.InfoContext(ctx, "starting upload",
		"size", size,
		"strategy", p.Strategy.String(),
		"parts", p.PartCount,
		"concurrency", p.MaxConcurrency,
		"content_type", contentType)

	result, err := upload.New(c.transport, logger).Upload(ctx, upload.Request{
		Container: container,
		Key:       key,
		Source:    body,
		Size:      size,
		Plan:      p,
		Options: transport.PutOptions{
			ContentType: contentType,
			Metadata:    cfg.Metadata,
		},
		Progress: cfg.ProgressTracker,
	})
	if err != nil {
		logOutcome(ctx, logger, "upload", err)
		return nil, err
	}

	logger.InfoContext(ctx, "upload completed",
		"etag", result.ETag,
		"parts", result.Parts,
		"duration", result.Duration)
	return result, nil
}

// UploadFile uploads the file at path from the client's filesystem.
// The object size is taken from the file's metadata.
func (c *Client) UploadFile(
	ctx context.Context,
	container, key, path string,
	opts ...blobtypes.UploadOption,
) (*blobtypes.UploadResult, error) {
	if path == "" {
		return nil, invalidInput("uploadFile", container, key, "path cannot be empty")
	}

	info, err := c.fs.Stat(path)
	if err != nil {
		return nil, bserrors.NewObjectError(bserrors.KindInvalidInput, "uploadFile", container, key, err)
	}
	if info.IsDir() {
		return nil, invalidInput("uploadFile", container, key, "path is a directory")
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, bserrors.NewObjectError(bserrors.KindInvalidInput, "uploadFile", container, key, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			c.logger.WarnContext(ctx, "failed to close file", "path", path, "error", closeErr)
		}
	}()

	return c.Upload(ctx, container, key, f, info.Size(), opts...)
}

// ListObjects returns the metadata of every object in container. The result
// is complete or the call fails; a partial list is never returned.
//
// Errors:
//   - ErrCatalog: the container does not exist (IsContainerNotFound) or a
//     listing or metadata call failed
//   - ErrCancelled: ctx was cancelled or timed out
func (c *Client) ListObjects(
	ctx context.Context,
	container string,
	opts ...blobtypes.ListOption,
) ([]blobtypes.ObjectMetadata, error) {
	if err := validation.ValidateContainerName(container); err != nil {
		return nil, err
	}

	objects, err := c.lister.List(ctx, container, c.listConfig(opts))
	if err != nil {
		logOutcome(ctx, c.logger, "list", err, "container", container)
		return nil, err
	}

	c.logger.DebugContext(ctx, "listed container", "container", container, "objects", len(objects))
	return objects, nil
}

// Objects returns a lazy sequence over the objects in container. Each range
// enumerates the store again. A failure is yielded once as the final element.
func (c *Client) Objects(
	ctx context.Context,
	container string,
	opts ...blobtypes.ListOption,
) iter.Seq2[blobtypes.ObjectMetadata, error] {
	if err := validation.ValidateContainerName(container); err != nil {
		return func(yield func(blobtypes.ObjectMetadata, error) bool) {
			yield(blobtypes.ObjectMetadata{}, err)
		}
	}
	return c.lister.Objects(ctx, container, c.listConfig(opts))
}

// Exists reports whether key exists in container using a single round-trip.
// A missing object or container is (false, nil); any other fault is an
// error of kind Transport and is never reported as false.
func (c *Client) Exists(ctx context.Context, container, key string) (bool, error) {
	if err := validateTarget(container, key); err != nil {
		return false, err
	}

	ok, err := c.checker.Exists(ctx, container, key)
	if err != nil {
		logOutcome(ctx, c.logger, "exists", err, "container", container, "key", key)
		return false, err
	}
	return ok, nil
}

// GetMetadata fetches the metadata of one object without downloading it.
//
// Errors:
//   - ErrTransport: the call failed; IsObjectNotFound reports a missing object
//   - ErrCancelled: ctx was cancelled or timed out
func (c *Client) GetMetadata(ctx context.Context, container, key string) (*blobtypes.ObjectMetadata, error) {
	if err := validateTarget(container, key); err != nil {
		return nil, err
	}

	props, err := c.transport.GetProperties(ctx, container, key)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, bserrors.NewObjectError(bserrors.KindCancelled, "getMetadata", container, key, ctxErr)
		}
		return nil, bserrors.NewObjectError(bserrors.KindTransport, "getMetadata", container, key, err)
	}

	return &blobtypes.ObjectMetadata{
		Name:         key,
		Size:         props.Size,
		LastModified: props.LastModified,
		ETag:         props.ETag,
		ContentType:  props.ContentType,
	}, nil
}

// Plan returns the transfer plan an upload of size bytes would use.
func (c *Client) Plan(size int64, opts ...blobtypes.UploadOption) blobtypes.TransferPlan {
	cfg := blobtypes.UploadOptionConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return c.planFor(size, cfg)
}

func (c *Client) planFor(size int64, cfg blobtypes.UploadOptionConfig) blobtypes.TransferPlan {
	pc := plan.Config{
		Threshold:       c.config.Threshold,
		PartSize:        c.config.PartSize,
		InitialPartSize: c.config.InitialPartSize,
		Concurrency:     c.config.Concurrency,
	}
	if cfg.PartSize > 0 {
		pc.PartSize = cfg.PartSize
	}
	if cfg.Concurrency > 0 {
		pc.Concurrency = cfg.Concurrency
	}
	if limiter, ok := c.transport.(transport.Limiter); ok {
		limits := limiter.Limits()
		pc.Limits = &limits
	}
	return plan.Select(size, pc)
}

func (c *Client) listConfig(opts []blobtypes.ListOption) blobtypes.ListOptionConfig {
	cfg := blobtypes.ListOptionConfig{BatchedMetadata: c.config.BatchedMetadata}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func validateTarget(container, key string) error {
	if err := validation.ValidateContainerName(container); err != nil {
		return err
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return err
	}
	return nil
}

// detectContentType sniffs the first bytes of source and returns a reader
// that yields them again followed by the rest of source.
func detectContentType(source io.Reader, size int64) (string, io.Reader, error) {
	header := make([]byte, min(sniffLen, size))
	n, err := io.ReadFull(source, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, err
	}
	header = header[:n]

	return mimetype.Detect(header).String(), io.MultiReader(bytes.NewReader(header), source), nil
}

func invalidInput(op, container, key, msg string) error {
	return bserrors.NewObjectError(bserrors.KindInvalidInput, op, container, key, bserrors.ErrInvalidInput).
		WithMessage(msg)
}

// logOutcome logs a failed operation. Cancellation is a caller decision, not
// a fault, so it is logged at Info.
func logOutcome(ctx context.Context, logger *slog.Logger, op string, err error, attrs ...any) {
	attrs = append(attrs, "op", op, "kind", bserrors.KindOf(err).String(), "error", err)
	if bserrors.IsCancelled(err) {
		logger.InfoContext(ctx, "operation cancelled", attrs...)
		return
	}
	logger.ErrorContext(ctx, "operation failed", attrs...)
}
