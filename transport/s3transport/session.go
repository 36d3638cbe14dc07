package s3transport

import (
	"context"
	"io"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/input-output-hk/catalyst-forge-libs/blobstore/blobtypes"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/transport"
)

// session is one S3 multipart upload. S3 part numbers are one-based, so a
// part with Index i is uploaded as part number i+1.
type session struct {
	api      s3api.S3API
	bucket   string
	key      string
	uploadID string
}

func (s *session) PutPart(
	ctx context.Context,
	part blobtypes.PartDescriptor,
	data io.Reader,
) (blobtypes.CompletedPart, error) {
	body, err := asSeekable(data, part.Length)
	if err != nil {
		return blobtypes.CompletedPart{}, mapError("putPart", s.bucket, s.key, err)
	}

	out, err := s.api.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		UploadId:      aws.String(s.uploadID),
		PartNumber:    aws.Int32(int32(part.Index + 1)),
		Body:          body,
		ContentLength: aws.Int64(part.Length),
	})
	if err != nil {
		return blobtypes.CompletedPart{}, mapError("putPart", s.bucket, s.key, err)
	}

	return blobtypes.CompletedPart{
		Index: part.Index,
		ETag:  aws.ToString(out.ETag),
		Size:  part.Length,
	}, nil
}

func (s *session) Complete(ctx context.Context, parts []blobtypes.CompletedPart) (transport.PutResult, error) {
	ordered := slices.Clone(parts)
	slices.SortFunc(ordered, func(a, b blobtypes.CompletedPart) int { return a.Index - b.Index })

	completed := make([]types.CompletedPart, len(ordered))
	for i, p := range ordered {
		completed[i] = types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(int32(p.Index + 1)),
		}
	}

	out, err := s.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(s.key),
		UploadId:        aws.String(s.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return transport.PutResult{}, mapError("completeMultipart", s.bucket, s.key, err)
	}

	return transport.PutResult{
		ETag:      trimETag(aws.ToString(out.ETag)),
		VersionID: aws.ToString(out.VersionId),
	}, nil
}

func (s *session) Abort(ctx context.Context) error {
	_, err := s.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(s.key),
		UploadId: aws.String(s.uploadID),
	})
	return mapError("abortMultipart", s.bucket, s.key, err)
}
