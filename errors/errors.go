package errors

import (
	"context"
	"errors"
	"fmt"
)

// Error represents a blobstore operation error with context about the
// operation that failed.
type Error struct {
	// Kind classifies the failure
	Kind Kind

	// Op is the operation that failed (e.g., "upload", "list", "exists")
	Op string

	// Container is the container name (if applicable)
	Container string

	// Key is the object key (if applicable)
	Key string

	// Err is the underlying cause
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Container != "" && e.Key != "" {
		return fmt.Sprintf("blobstore.%s %s/%s: %v", e.Op, e.Container, e.Key, e.Err)
	}
	if e.Container != "" {
		return fmt.Sprintf("blobstore.%s container %s: %v", e.Op, e.Container, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("blobstore.%s object %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("blobstore.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind, so that
// errors.Is(err, ErrTransfer) works without unwrapping by hand.
func (e *Error) Is(target error) bool {
	k, ok := kindSentinels[target]
	return ok && k == e.Kind
}

// WithContainer adds container context to an existing error.
func (e *Error) WithContainer(container string) *Error {
	e.Container = container
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	if e.Err == nil {
		e.Err = errors.New(message)
		return e
	}
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// New creates a new Error with the given kind, operation and underlying error.
func New(kind Kind, op string, err error) *Error {
	return &Error{
		Kind: kind,
		Op:   op,
		Err:  err,
	}
}

// NewContainerError creates a new Error with container context.
func NewContainerError(kind Kind, op, container string, err error) *Error {
	return &Error{
		Kind:      kind,
		Op:        op,
		Container: container,
		Err:       err,
	}
}

// NewObjectError creates a new Error with container and key context.
func NewObjectError(kind Kind, op, container, key string, err error) *Error {
	return &Error{
		Kind:      kind,
		Op:        op,
		Container: container,
		Key:       key,
		Err:       err,
	}
}

// Kind sentinels. errors.Is(err, ErrTransfer) is true for any *Error of
// KindTransfer anywhere in the chain.
var (
	ErrConfiguration = errors.New("blobstore: configuration error")
	ErrInvalidInput  = errors.New("blobstore: invalid input")
	ErrTransport     = errors.New("blobstore: transport error")
	ErrTransfer      = errors.New("blobstore: transfer error")
	ErrCatalog       = errors.New("blobstore: catalog error")
	ErrCancelled     = errors.New("blobstore: cancelled")
)

var kindSentinels = map[error]Kind{
	ErrConfiguration: KindConfiguration,
	ErrInvalidInput:  KindInvalidInput,
	ErrTransport:     KindTransport,
	ErrTransfer:      KindTransfer,
	ErrCatalog:       KindCatalog,
	ErrCancelled:     KindCancelled,
}

// Cause sentinels reported by transports.
var (
	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("blobstore: object not found")

	// ErrContainerNotFound indicates that the requested container does not exist
	ErrContainerNotFound = errors.New("blobstore: container not found")

	// ErrAccessDenied indicates that the credentials lack permission for the operation
	ErrAccessDenied = errors.New("blobstore: access denied")

	// ErrSourceTooShort indicates the upload source ended before the declared length
	ErrSourceTooShort = errors.New("blobstore: source shorter than declared length")
)

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindUnknown if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsCancelled checks if an error represents a caller-requested abort.
// Bare context cancellation errors are treated the same way.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsObjectNotFound checks if an error indicates that an object was not found.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}

// IsContainerNotFound checks if an error indicates that a container was not found.
func IsContainerNotFound(err error) bool {
	return errors.Is(err, ErrContainerNotFound)
}

// IsAccessDenied checks if an error indicates access was denied.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}
