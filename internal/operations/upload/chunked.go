package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/blobstore/blobtypes"
	bserrors "github.com/input-output-hk/catalyst-forge-libs/blobstore/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/internal/plan"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/transport"
)

type job struct {
	part blobtypes.PartDescriptor
	buf  []byte
}

func (u *Uploader) uploadChunked(ctx context.Context, req Request) (*blobtypes.UploadResult, error) {
	parts := plan.Partition(req.Plan)

	session, err := u.transport.BeginMultipart(ctx, req.Container, req.Key, req.Options)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled("beginMultipart", req, ctx.Err())
		}
		return nil, transferError("beginMultipart", req, err)
	}

	u.logger.DebugContext(ctx, "multipart session started",
		"container", req.Container,
		"key", req.Key,
		"parts", len(parts),
		"part_size", req.Plan.PartSize,
		"concurrency", req.Plan.MaxConcurrency)

	completed, err := u.transferParts(ctx, req, session, parts)
	if err != nil {
		u.abort(ctx, req, session)
		return nil, err
	}

	res, err := session.Complete(ctx, completed)
	if err != nil {
		u.abort(ctx, req, session)
		if ctx.Err() != nil {
			return nil, cancelled("completeMultipart", req, ctx.Err())
		}
		return nil, transferError("completeMultipart", req, err)
	}

	return &blobtypes.UploadResult{
		Container: req.Container,
		Key:       req.Key,
		Size:      req.Size,
		ETag:      res.ETag,
		VersionID: res.VersionID,
		Strategy:  blobtypes.StrategyChunked,
		Parts:     len(completed),
	}, nil
}

// transferParts reads the source sequentially on the calling goroutine and
// hands each part to one of MaxConcurrency workers. It returns only after
// every dispatched part has finished. The first failure cancels the
// remaining work.
func (u *Uploader) transferParts(
	ctx context.Context,
	req Request,
	session transport.MultipartSession,
	parts []blobtypes.PartDescriptor,
) ([]blobtypes.CompletedPart, error) {
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		firstErr error
		failOnce sync.Once
		wg       sync.WaitGroup

		// progressMu orders updates so reported totals never decrease.
		progressMu  sync.Mutex
		transferred int64
	)
	fail := func(err error) {
		failOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	completed := make([]blobtypes.CompletedPart, len(parts))
	jobs := make(chan job)

	workers := req.Plan.MaxConcurrency
	if workers < 1 {
		workers = 1
	}
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					pool.PutBuffer(j.buf)
					continue
				}
				cp, err := session.PutPart(ctx, j.part, bytes.NewReader(j.buf[:j.part.Length]))
				pool.PutBuffer(j.buf)
				if err != nil {
					fail(transferError("putPart", req, fmt.Errorf("part %d: %w", j.part.Index, err)))
					continue
				}
				cp.Index = j.part.Index
				completed[j.part.Index] = cp
				if req.Progress != nil {
					progressMu.Lock()
					transferred += j.part.Length
					req.Progress.Update(transferred, req.Size)
					progressMu.Unlock()
				}
			}
		}()
	}

	if err := dispatch(ctx, req.Source, parts, bufferSize(req.Plan), jobs); err != nil {
		fail(transferError("readSource", req, err))
	}
	close(jobs)
	wg.Wait()

	if parent.Err() != nil {
		return nil, cancelled("putPart", req, parent.Err())
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return completed, nil
}

// dispatch reads each part from source into a pooled buffer and sends it on
// jobs. It stops without error when ctx is done.
func dispatch(
	ctx context.Context,
	source io.Reader,
	parts []blobtypes.PartDescriptor,
	size int,
	jobs chan<- job,
) error {
	for _, part := range parts {
		if ctx.Err() != nil {
			return nil
		}

		buf := pool.GetBuffer(size)
		if _, err := io.ReadFull(source, buf[:part.Length]); err != nil {
			pool.PutBuffer(buf)
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("part %d: %w", part.Index, bserrors.ErrSourceTooShort)
			}
			return fmt.Errorf("part %d: %w", part.Index, err)
		}

		select {
		case jobs <- job{part: part, buf: buf}:
		case <-ctx.Done():
			pool.PutBuffer(buf)
			return nil
		}
	}
	return nil
}

// abort discards the session's parts. It runs even after ctx is cancelled.
func (u *Uploader) abort(ctx context.Context, req Request, session transport.MultipartSession) {
	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	if err := session.Abort(abortCtx); err != nil {
		u.logger.WarnContext(ctx, "failed to abort multipart upload",
			"container", req.Container,
			"key", req.Key,
			"error", err)
		return
	}
	u.logger.DebugContext(ctx, "multipart session aborted",
		"container", req.Container,
		"key", req.Key)
}

func bufferSize(p blobtypes.TransferPlan) int {
	return int(max(p.PartSize, p.InitialPartSize))
}
