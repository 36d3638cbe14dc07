// Package errors provides the error taxonomy for blobstore operations.
// Every fault surfaced by the client carries a Kind, the operation that failed,
// and the container/key it was working on, so callers can render a meaningful
// message without string matching.
package errors

// Kind classifies a failure. Kinds are string-based for debuggability and
// natural log serialization.
type Kind string

const (
	// KindConfiguration indicates missing or invalid identity/configuration.
	// It is surfaced at construction time and is never retried.
	KindConfiguration Kind = "CONFIGURATION_ERROR"

	// KindInvalidInput indicates an argument failed validation before any
	// remote call was made.
	KindInvalidInput Kind = "INVALID_INPUT"

	// KindTransport indicates a network, auth, or remote-store fault on a
	// single round-trip.
	KindTransport Kind = "TRANSPORT_ERROR"

	// KindTransfer indicates that a whole-object write or one or more part
	// writes failed during an upload. The object is left uncommitted.
	KindTransfer Kind = "TRANSFER_ERROR"

	// KindCatalog indicates that enumerating a container failed. No partial
	// result is returned alongside it.
	KindCatalog Kind = "CATALOG_ERROR"

	// KindCancelled indicates the caller aborted the operation through its
	// context. It is not a failure of the store and should not be reported as one.
	KindCancelled Kind = "CANCELLED"

	// KindUnknown is returned by KindOf for errors that did not originate here.
	KindUnknown Kind = "UNKNOWN"
)

// String returns the kind as a string.
func (k Kind) String() string {
	return string(k)
}
