package s3transport

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 100 * time.Millisecond
	defaultMaxDelay    = 20 * time.Second
)

// Retryer implements aws.Retryer with exponential backoff and jitter. It
// retries only throttling and transient server faults; permanent client
// errors and context cancellation are returned immediately.
//
// All fields are fixed at construction, so a Retryer is safe for concurrent use.
type Retryer struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

var _ aws.Retryer = (*Retryer)(nil)

// NewRetryer returns a Retryer allowing maxAttempts attempts in total.
// A non-positive value selects the default of 5.
func NewRetryer(maxAttempts int) *Retryer {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Retryer{
		maxAttempts: maxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
	}
}

// MaxAttempts returns the maximum number of attempts, including the first.
func (r *Retryer) MaxAttempts() int {
	return r.maxAttempts
}

// RetryDelay returns baseDelay * 2^(attempt-1) with ±25% jitter, capped at maxDelay.
func (r *Retryer) RetryDelay(attempt int, _ error) (time.Duration, error) {
	delay := time.Duration(math.Pow(2, float64(attempt-1))) * r.baseDelay

	jitterRange := int64(float64(delay) * 0.25)
	if jitterRange > 0 {
		delay += time.Duration(rand.Int63n(2*jitterRange) - jitterRange)
	}

	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	if delay < 0 {
		delay = 0
	}
	return delay, nil
}

// IsErrorRetryable reports whether err is a transient store fault.
func (r *Retryer) IsErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "SlowDown",
			"ThrottlingException",
			"RequestLimitExceeded",
			"TooManyRequestsException",
			"RequestTimeout",
			"InternalError",
			"ServiceUnavailable":
			return true
		case "AccessDenied",
			"InvalidAccessKeyId",
			"SignatureDoesNotMatch",
			"NoSuchBucket",
			"NoSuchKey",
			"NoSuchUpload",
			"EntityTooSmall",
			"InvalidPart",
			"InvalidPartOrder":
			return false
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	}

	var sendErr *smithyhttp.RequestSendError
	return errors.As(err, &sendErr)
}

// GetRetryToken always grants a retry.
func (r *Retryer) GetRetryToken(context.Context, error) (func(error) error, error) {
	return func(error) error { return nil }, nil
}

// GetInitialToken returns a no-op release function.
func (r *Retryer) GetInitialToken() func(error) error {
	return func(error) error { return nil }
}
