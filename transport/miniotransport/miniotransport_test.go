package miniotransport

import (
	"errors"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bserrors "github.com/input-output-hk/catalyst-forge-libs/blobstore/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  Config{Endpoint: "localhost:9000", AccessKeyID: "minioadmin", SecretAccessKey: "minioadmin"},
		},
		{
			name: "scheme prefix",
			cfg:  Config{Endpoint: "https://play.min.io/", AccessKeyID: "a", SecretAccessKey: "b"},
		},
		{
			name:    "missing endpoint",
			cfg:     Config{AccessKeyID: "a", SecretAccessKey: "b"},
			wantErr: true,
		},
		{
			name:    "missing secret",
			cfg:     Config{Endpoint: "localhost:9000", AccessKeyID: "a"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, bserrors.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, tr)
			assert.Equal(t, 10000, tr.Limits().MaxParts)
		})
	}
}

func TestSplitScheme(t *testing.T) {
	host, secure := splitScheme("https://s3.example.com/", false)
	assert.Equal(t, "s3.example.com", host)
	assert.True(t, secure)

	host, secure = splitScheme("http://localhost:9000", true)
	assert.Equal(t, "localhost:9000", host)
	assert.False(t, secure)

	host, secure = splitScheme("localhost:9000", true)
	assert.Equal(t, "localhost:9000", host)
	assert.True(t, secure)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{name: "no such key", err: minio.ErrorResponse{Code: "NoSuchKey"}, target: bserrors.ErrObjectNotFound},
		{name: "no such bucket", err: minio.ErrorResponse{Code: "NoSuchBucket"}, target: bserrors.ErrContainerNotFound},
		{name: "access denied", err: minio.ErrorResponse{Code: "AccessDenied"}, target: bserrors.ErrAccessDenied},
		{name: "bare 404", err: minio.ErrorResponse{StatusCode: http.StatusNotFound}, target: bserrors.ErrObjectNotFound},
		{name: "unclassified", err: errors.New("dial tcp: refused"), target: bserrors.ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError("head", "uploads", "a.txt", tt.err)
			assert.ErrorIs(t, err, tt.target)
			assert.ErrorIs(t, err, bserrors.ErrTransport)
			assert.Equal(t, bserrors.KindTransport, bserrors.KindOf(err))
		})
	}
}
