// Package blobtypes provides shared type definitions for the blobstore module.
package blobtypes

import (
	"log/slog"
	"time"

	"github.com/go-git/go-billy/v5"
)

const (
	// KiB is one kibibyte.
	KiB int64 = 1024
	// MiB is one mebibyte.
	MiB = 1024 * KiB
	// GiB is one gibibyte.
	GiB = 1024 * MiB

	// DefaultThreshold is the payload size at or above which uploads switch
	// to the chunked strategy.
	DefaultThreshold = 100 * MiB

	// DefaultPartSize is the steady-state part size for chunked uploads.
	DefaultPartSize = 4 * MiB

	// DefaultInitialPartSize is the size of the first part of a chunked upload.
	DefaultInitialPartSize = 4 * MiB
)

// Strategy is the upload algorithm chosen for a single transfer.
type Strategy int

const (
	// StrategySimple writes the whole object in one request.
	StrategySimple Strategy = iota
	// StrategyChunked splits the object into parts uploaded concurrently.
	StrategyChunked
)

// String returns a human readable strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategySimple:
		return "simple"
	case StrategyChunked:
		return "chunked"
	default:
		return "unknown"
	}
}

// TransferPlan is derived once per upload from the source length. Part
// fields are only meaningful for StrategyChunked.
type TransferPlan struct {
	Strategy        Strategy
	Size            int64
	PartSize        int64
	InitialPartSize int64
	PartCount       int
	MaxConcurrency  int
}

// PartDescriptor identifies one contiguous byte range of a chunked upload.
// Index is zero-based; Index, not completion order, determines placement.
type PartDescriptor struct {
	Index  int
	Offset int64
	Length int64
}

// End returns the exclusive end offset of the part.
func (p PartDescriptor) End() int64 {
	return p.Offset + p.Length
}

// CompletedPart is the transport's acknowledgement of one uploaded part.
type CompletedPart struct {
	Index int
	ETag  string
	Size  int64
}

// ObjectMetadata describes one remote object. It is always fetched fresh.
type ObjectMetadata struct {
	// Name is the object key
	Name string

	// Size is the object size in bytes
	Size int64

	// LastModified is when the object was last modified
	LastModified time.Time

	// ETag is the entity tag, when the store reports one
	ETag string

	// ContentType is the MIME type, when the store reports one
	ContentType string
}

// UploadResult contains the result of an upload operation.
type UploadResult struct {
	// Container is the destination container
	Container string

	// Key is the object key that was written
	Key string

	// Size is the number of bytes written
	Size int64

	// ETag is the entity tag of the committed object
	ETag string

	// VersionID is the version ID if versioning is enabled
	VersionID string

	// Strategy is the strategy that was used
	Strategy Strategy

	// Parts is the number of parts written (1 for simple uploads)
	Parts int

	// Duration is how long the upload took
	Duration time.Duration
}

// ProgressTracker defines the interface for tracking upload progress.
// Update may be called from several goroutines during a chunked upload, but
// calls never overlap and the cumulative count never decreases.
// Implementations must be safe for concurrent use.
type ProgressTracker interface {
	// Update is called with the cumulative bytes acknowledged so far
	Update(bytesTransferred, totalBytes int64)

	// Complete is called when the upload is committed
	Complete()

	// Error is called when the upload fails or is cancelled
	Error(err error)
}

// Configuration types for functional options

// ClientConfig holds configuration for the blobstore client.
type ClientConfig struct {
	Threshold       int64
	PartSize        int64
	InitialPartSize int64
	Concurrency     int
	BatchedMetadata bool
	Logger          *slog.Logger
	Filesystem      billy.Filesystem
}

// UploadOptionConfig holds configuration for upload operations via functional options.
type UploadOptionConfig struct {
	ContentType     string
	Metadata        map[string]string
	ProgressTracker ProgressTracker
	PartSize        int64
	Concurrency     int
}

// ListOptionConfig holds configuration for list operations via functional options.
type ListOptionConfig struct {
	BatchedMetadata bool
}

type (
	// Option is a functional option for configuring the client.
	Option func(*ClientConfig)
	// UploadOption is a functional option for configuring upload operations.
	UploadOption func(*UploadOptionConfig)
	// ListOption is a functional option for configuring list operations.
	ListOption func(*ListOptionConfig)
)
