// Package s3transport implements the blobstore transport over Amazon S3 and
// S3-compatible stores using the AWS SDK for Go v2.
//
// Credentials come from the SDK's default chain unless a profile or a static
// key pair is configured. Per-request retries are handled by the SDK using
// Retryer; blobstore never retries on top of them. Head is the exception: it
// makes a single attempt.
package s3transport

import (
	"bytes"
	"context"
	"io"
	"iter"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/input-output-hk/catalyst-forge-libs/blobstore/blobtypes"
	bserrors "github.com/input-output-hk/catalyst-forge-libs/blobstore/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/transport"
)

const defaultRegion = "us-east-1"

// Multipart limits documented for Amazon S3.
var s3Limits = transport.Limits{
	MinPartSize: 5 * blobtypes.MiB,
	MaxPartSize: 5 * blobtypes.GiB,
	MaxParts:    10000,
}

// Config identifies the account and endpoint to talk to.
type Config struct {
	// Region defaults to us-east-1 when neither set here nor in the environment
	Region string

	// Endpoint overrides the service endpoint (LocalStack, MinIO, R2)
	Endpoint string

	// Profile selects a shared config profile
	Profile string

	// AccessKeyID and SecretAccessKey select static credentials when both are set
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// UsePathStyle addresses buckets as path segments instead of subdomains
	UsePathStyle bool

	// MaxAttempts bounds SDK attempts per request, including the first
	MaxAttempts int
}

// Transport is a transport.Transport backed by S3.
type Transport struct {
	api s3api.S3API
}

var (
	_ transport.Transport      = (*Transport)(nil)
	_ transport.Limiter        = (*Transport)(nil)
	_ transport.DetailedLister = (*Transport)(nil)
)

// New loads AWS configuration and returns a Transport.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, bserrors.New(bserrors.KindConfiguration, "s3transport.new", bserrors.ErrConfiguration).
			WithMessage("access key id and secret access key must be set together")
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRetryer(func() aws.Retryer { return NewRetryer(cfg.MaxAttempts) }),
	}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, bserrors.New(bserrors.KindConfiguration, "s3transport.new", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = defaultRegion
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewFromAPI(client), nil
}

// singleAttempt disables SDK retries for one operation.
func singleAttempt(o *s3.Options) {
	o.Retryer = aws.NopRetryer{}
}

// NewFromAPI wraps an existing S3 client.
func NewFromAPI(api s3api.S3API) *Transport {
	return &Transport{api: api}
}

// Limits reports the S3 multipart constraints.
func (t *Transport) Limits() transport.Limits {
	return s3Limits
}

// Put writes the whole object with a single PutObject call.
func (t *Transport) Put(
	ctx context.Context,
	container, key string,
	body io.Reader,
	size int64,
	opts transport.PutOptions,
) (transport.PutResult, error) {
	seekable, err := asSeekable(body, size)
	if err != nil {
		return transport.PutResult{}, bserrors.NewObjectError(bserrors.KindTransport, "put", container, key, err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(container),
		Key:           aws.String(key),
		Body:          seekable,
		ContentLength: aws.Int64(size),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}

	out, err := t.api.PutObject(ctx, input)
	if err != nil {
		return transport.PutResult{}, mapError("put", container, key, err)
	}

	return transport.PutResult{
		ETag:      trimETag(aws.ToString(out.ETag)),
		VersionID: aws.ToString(out.VersionId),
	}, nil
}

// BeginMultipart creates an S3 multipart upload.
func (t *Transport) BeginMultipart(
	ctx context.Context,
	container, key string,
	opts transport.PutOptions,
) (transport.MultipartSession, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(container),
		Key:    aws.String(key),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}

	out, err := t.api.CreateMultipartUpload(ctx, input)
	if err != nil {
		return nil, mapError("beginMultipart", container, key, err)
	}
	if aws.ToString(out.UploadId) == "" {
		return nil, bserrors.NewObjectError(bserrors.KindTransport, "beginMultipart", container, key, nil).
			WithMessage("store returned an empty upload id")
	}

	return &session{
		api:      t.api,
		bucket:   container,
		key:      key,
		uploadID: aws.ToString(out.UploadId),
	}, nil
}

// Head reports whether the object exists with exactly one request; the
// client retryer is bypassed. A missing bucket reads as a missing object.
func (t *Transport) Head(ctx context.Context, container, key string) (bool, error) {
	_, err := t.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(key),
	}, singleAttempt)
	if err != nil {
		switch classify(err) {
		case bserrors.ErrObjectNotFound, bserrors.ErrContainerNotFound:
			return false, nil
		}
		return false, mapError("head", container, key, err)
	}
	return true, nil
}

// GetProperties fetches the object's size and last-modified time with HeadObject.
func (t *Transport) GetProperties(ctx context.Context, container, key string) (transport.Properties, error) {
	out, err := t.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(key),
	})
	if err != nil {
		return transport.Properties{}, mapError("getProperties", container, key, err)
	}

	return transport.Properties{
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		ETag:         trimETag(aws.ToString(out.ETag)),
		ContentType:  aws.ToString(out.ContentType),
	}, nil
}

// ListObjects enumerates the keys in container, following continuation tokens.
func (t *Transport) ListObjects(ctx context.Context, container string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for entry, err := range t.ListObjectsDetailed(ctx, container) {
			if err != nil {
				yield("", err)
				return
			}
			if !yield(entry.Key, nil) {
				return
			}
		}
	}
}

// ListObjectsDetailed enumerates the objects in container together with the
// size and last-modified time carried by each ListObjectsV2 page.
func (t *Transport) ListObjectsDetailed(ctx context.Context, container string) iter.Seq2[transport.ObjectEntry, error] {
	return func(yield func(transport.ObjectEntry, error) bool) {
		paginator := s3.NewListObjectsV2Paginator(t.api, &s3.ListObjectsV2Input{
			Bucket: aws.String(container),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(transport.ObjectEntry{}, mapError("list", container, "", err))
				return
			}

			for _, obj := range page.Contents {
				entry := transport.ObjectEntry{
					Key: aws.ToString(obj.Key),
					Properties: transport.Properties{
						Size:         aws.ToInt64(obj.Size),
						LastModified: aws.ToTime(obj.LastModified),
						ETag:         trimETag(aws.ToString(obj.ETag)),
					},
				}
				if !yield(entry, nil) {
					return
				}
			}
		}
	}
}

// asSeekable returns body as an io.ReadSeeker, buffering it when needed.
// The SDK must be able to rewind the payload to sign and retry it.
func asSeekable(body io.Reader, size int64) (io.ReadSeeker, error) {
	if rs, ok := body.(io.ReadSeeker); ok {
		return rs, nil
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(body, buf); err != nil {
		return nil, err
	}
	return bytes.NewReader(buf), nil
}

func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}
