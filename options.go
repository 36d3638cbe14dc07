// Package blobstore provides functional options for configuring client and
// per-call behavior.
package blobstore

import (
	"log/slog"

	"github.com/go-git/go-billy/v5"

	"github.com/input-output-hk/catalyst-forge-libs/blobstore/blobtypes"
)

// WithThreshold sets the payload size at or above which uploads use the
// chunked strategy. Default is 100 MiB.
func WithThreshold(threshold int64) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		if threshold > 0 {
			c.Threshold = threshold
		}
	}
}

// WithPartSize sets the steady-state part size for chunked uploads.
// Default is 4 MiB. Transports with part limits clamp it into range.
func WithPartSize(partSize int64) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

// WithInitialPartSize sets the size of the first part of a chunked upload.
// Default is 4 MiB.
func WithInitialPartSize(size int64) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		if size > 0 {
			c.InitialPartSize = size
		}
	}
}

// WithConcurrency sets the maximum number of parts in flight per upload.
// Default is the number of logical CPUs.
func WithConcurrency(concurrency int) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithBatchedMetadata makes listings use the sizes and timestamps returned by
// the listing call itself when the transport provides them, instead of one
// properties round-trip per object.
func WithBatchedMetadata(enabled bool) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		c.BatchedMetadata = enabled
	}
}

// WithLogger configures the client with a structured logger.
// If logger is nil, logging is disabled.
func WithLogger(logger *slog.Logger) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		c.Logger = logger
	}
}

// WithFilesystem sets the filesystem UploadFile reads from.
// Default is the local OS filesystem.
func WithFilesystem(filesystem billy.Filesystem) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		c.Filesystem = filesystem
	}
}

// WithContentType sets the Content-Type of the uploaded object. When unset,
// the type is detected from the first bytes of the source.
func WithContentType(contentType string) blobtypes.UploadOption {
	return func(c *blobtypes.UploadOptionConfig) {
		c.ContentType = contentType
	}
}

// WithMetadata adds user metadata to the uploaded object.
func WithMetadata(metadata map[string]string) blobtypes.UploadOption {
	return func(c *blobtypes.UploadOptionConfig) {
		if c.Metadata == nil {
			c.Metadata = make(map[string]string, len(metadata))
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
}

// WithProgress sets a progress tracker for the upload. The tracker is called
// from several goroutines during chunked uploads.
func WithProgress(tracker blobtypes.ProgressTracker) blobtypes.UploadOption {
	return func(c *blobtypes.UploadOptionConfig) {
		c.ProgressTracker = tracker
	}
}

// WithUploadPartSize overrides the client part size for one upload.
func WithUploadPartSize(partSize int64) blobtypes.UploadOption {
	return func(c *blobtypes.UploadOptionConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

// WithUploadConcurrency overrides the client concurrency for one upload.
func WithUploadConcurrency(concurrency int) blobtypes.UploadOption {
	return func(c *blobtypes.UploadOptionConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithListBatchedMetadata overrides the client's batched metadata setting
// for one listing.
func WithListBatchedMetadata(enabled bool) blobtypes.ListOption {
	return func(c *blobtypes.ListOptionConfig) {
		c.BatchedMetadata = enabled
	}
}
