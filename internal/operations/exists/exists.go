// Package exists implements the existence checker.
package exists

import (
	"context"

	bserrors "github.com/input-output-hk/catalyst-forge-libs/blobstore/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/transport"
)

// Checker answers whether a named object exists.
type Checker struct {
	transport transport.Transport
}

// New creates a new Checker.
func New(t transport.Transport) *Checker {
	return &Checker{transport: t}
}

// Exists issues a single Head. A missing object is (false, nil); any other
// fault is returned as a transport error and never reported as false.
func (c *Checker) Exists(ctx context.Context, container, key string) (bool, error) {
	ok, err := c.transport.Head(ctx, container, key)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, bserrors.NewObjectError(bserrors.KindCancelled, "exists", container, key, ctxErr)
		}
		return false, bserrors.NewObjectError(bserrors.KindTransport, "exists", container, key, err)
	}
	return ok, nil
}
