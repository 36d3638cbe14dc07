package s3transport

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	bserrors "github.com/input-output-hk/catalyst-forge-libs/blobstore/errors"
)

// classify maps an S3 error onto one of the blobstore cause sentinels, or
// nil when the error carries no recognizable cause.
func classify(err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return bserrors.ErrObjectNotFound
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return bserrors.ErrObjectNotFound
	}
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return bserrors.ErrContainerNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return bserrors.ErrObjectNotFound
		case "NoSuchBucket":
			return bserrors.ErrContainerNotFound
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return bserrors.ErrAccessDenied
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return bserrors.ErrObjectNotFound
		case http.StatusForbidden:
			return bserrors.ErrAccessDenied
		}
	}
	return nil
}

// mapError wraps an S3 SDK error as a transport error, attaching the
// matching cause sentinel so callers can test it with errors.Is.
func mapError(op, container, key string, err error) error {
	if err == nil {
		return nil
	}
	if cause := classify(err); cause != nil {
		err = fmt.Errorf("%w: %w", cause, err)
	}
	return bserrors.NewObjectError(bserrors.KindTransport, op, container, key, err)
}
