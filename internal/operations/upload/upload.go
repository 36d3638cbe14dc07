// Package upload implements the adaptive upload engine. A Simple plan is a
// single Put; a Chunked plan streams the source into parts that a bounded
// pool of workers uploads through one multipart session.
package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/blobstore/blobtypes"
	bserrors "github.com/input-output-hk/catalyst-forge-libs/blobstore/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/transport"
)

// abortTimeout bounds the cleanup call issued after a failed or cancelled
// chunked upload, which runs detached from the caller's context.
const abortTimeout = 30 * time.Second

// Request describes one upload. Plan must come from plan.Select for Size.
type Request struct {
	Container string
	Key       string
	Source    io.Reader
	Size      int64
	Plan      blobtypes.TransferPlan
	Options   transport.PutOptions
	Progress  blobtypes.ProgressTracker
}

// Uploader executes transfer plans against a transport. It holds no
// per-upload state and is safe for concurrent use.
type Uploader struct {
	transport transport.Transport
	logger    *slog.Logger
}

// New creates an Uploader. A nil logger discards output.
func New(t transport.Transport, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Uploader{transport: t, logger: logger}
}

// Upload executes req.Plan. The result is non-nil only when the object has
// been committed. Cancellation of ctx at any point yields an error of kind
// Cancelled; any other failure yields kind Transfer.
func (u *Uploader) Upload(ctx context.Context, req Request) (*blobtypes.UploadResult, error) {
	start := time.Now()

	var (
		result *blobtypes.UploadResult
		err    error
	)
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = cancelled("upload", req, ctxErr)
	} else {
		switch req.Plan.Strategy {
		case blobtypes.StrategySimple:
			result, err = u.uploadSimple(ctx, req)
		case blobtypes.StrategyChunked:
			result, err = u.uploadChunked(ctx, req)
		default:
			err = bserrors.NewObjectError(bserrors.KindInvalidInput, "upload", req.Container, req.Key,
				bserrors.ErrInvalidInput).WithMessage("unknown upload strategy")
		}
	}

	if err != nil {
		if req.Progress != nil {
			req.Progress.Error(err)
		}
		return nil, err
	}

	result.Duration = time.Since(start)
	if req.Progress != nil {
		req.Progress.Update(req.Size, req.Size)
		req.Progress.Complete()
	}
	return result, nil
}

func (u *Uploader) uploadSimple(ctx context.Context, req Request) (*blobtypes.UploadResult, error) {
	body := &exactReader{r: req.Source, remaining: req.Size}

	res, err := u.transport.Put(ctx, req.Container, req.Key, body, req.Size, req.Options)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, cancelled("put", req, ctx.Err())
		case body.short.Load():
			return nil, transferError("put", req, bserrors.ErrSourceTooShort)
		default:
			return nil, transferError("put", req, err)
		}
	}

	u.logger.DebugContext(ctx, "simple upload committed",
		"container", req.Container,
		"key", req.Key,
		"size", req.Size)

	return &blobtypes.UploadResult{
		Container: req.Container,
		Key:       req.Key,
		Size:      req.Size,
		ETag:      res.ETag,
		VersionID: res.VersionID,
		Strategy:  blobtypes.StrategySimple,
		Parts:     1,
	}, nil
}

// exactReader yields exactly remaining bytes of r and records whether r
// ended early. The flag is atomic because transports may read the body on
// another goroutine.
type exactReader struct {
	r         io.Reader
	remaining int64
	short     atomic.Bool
}

func (e *exactReader) Read(p []byte) (int, error) {
	if e.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > e.remaining {
		p = p[:e.remaining]
	}
	n, err := e.r.Read(p)
	e.remaining -= int64(n)
	if errors.Is(err, io.EOF) && e.remaining > 0 {
		e.short.Store(true)
		return n, bserrors.ErrSourceTooShort
	}
	return n, err
}

func transferError(op string, req Request, err error) error {
	return bserrors.NewObjectError(bserrors.KindTransfer, op, req.Container, req.Key, err)
}

func cancelled(op string, req Request, err error) error {
	return bserrors.NewObjectError(bserrors.KindCancelled, op, req.Container, req.Key, err)
}
