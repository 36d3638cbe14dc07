// Package testutil provides fakes and fixtures shared by the blobstore tests.
package testutil

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/input-output-hk/catalyst-forge-libs/blobstore/internal/s3api"
)

// MockS3Client is a scriptable S3API. Each On* hook replaces one SDK call;
// a nil hook answers with an empty output. Every call is recorded by name.
type MockS3Client struct {
	OnPut      func(context.Context, *s3.PutObjectInput) (*s3.PutObjectOutput, error)
	OnHead     func(context.Context, *s3.HeadObjectInput) (*s3.HeadObjectOutput, error)
	OnList     func(context.Context, *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error)
	OnCreate   func(context.Context, *s3.CreateMultipartUploadInput) (*s3.CreateMultipartUploadOutput, error)
	OnPart     func(context.Context, *s3.UploadPartInput) (*s3.UploadPartOutput, error)
	OnComplete func(context.Context, *s3.CompleteMultipartUploadInput) (*s3.CompleteMultipartUploadOutput, error)
	OnAbort    func(context.Context, *s3.AbortMultipartUploadInput) (*s3.AbortMultipartUploadOutput, error)

	mu    sync.Mutex
	calls map[string]int
}

var _ s3api.S3API = (*MockS3Client)(nil)

// Calls returns how many times the named SDK operation was invoked.
func (m *MockS3Client) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockS3Client) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[op]++
}

// invoke records op and runs hook, or returns zero when hook is nil.
func invoke[In, Out any](
	ctx context.Context,
	m *MockS3Client,
	op string,
	hook func(context.Context, *In) (*Out, error),
	in *In,
) (*Out, error) {
	m.record(op)
	if hook == nil {
		return new(Out), nil
	}
	return hook(ctx, in)
}

func (m *MockS3Client) PutObject(
	ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	return invoke(ctx, m, "PutObject", m.OnPut, in)
}

func (m *MockS3Client) HeadObject(
	ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options),
) (*s3.HeadObjectOutput, error) {
	return invoke(ctx, m, "HeadObject", m.OnHead, in)
}

func (m *MockS3Client) ListObjectsV2(
	ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options),
) (*s3.ListObjectsV2Output, error) {
	return invoke(ctx, m, "ListObjectsV2", m.OnList, in)
}

func (m *MockS3Client) CreateMultipartUpload(
	ctx context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	return invoke(ctx, m, "CreateMultipartUpload", m.OnCreate, in)
}

func (m *MockS3Client) UploadPart(
	ctx context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options),
) (*s3.UploadPartOutput, error) {
	return invoke(ctx, m, "UploadPart", m.OnPart, in)
}

func (m *MockS3Client) CompleteMultipartUpload(
	ctx context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	return invoke(ctx, m, "CompleteMultipartUpload", m.OnComplete, in)
}

func (m *MockS3Client) AbortMultipartUpload(
	ctx context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	return invoke(ctx, m, "AbortMultipartUpload", m.OnAbort, in)
}
