package miniotransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bserrors "github.com/input-output-hk/catalyst-forge-libs/blobstore/errors"
)

func TestTransport_HeadSingleRequest(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		want    bool
		wantErr bool
	}{
		{name: "unavailable is not retried", status: http.StatusServiceUnavailable, wantErr: true},
		{name: "not found", status: http.StatusNotFound, want: false},
		{name: "found", status: http.StatusOK, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var heads atomic.Int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodHead {
					heads.Add(1)
				}
				if tt.status == http.StatusOK {
					w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
					w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
					w.Header().Set("Content-Length", "0")
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			// A fixed region keeps minio-go from looking up the bucket location first.
			tr, err := New(Config{
				Endpoint:        strings.TrimPrefix(srv.URL, "http://"),
				AccessKeyID:     "minioadmin",
				SecretAccessKey: "minioadmin",
				Region:          "us-east-1",
			})
			require.NoError(t, err)

			ok, err := tr.Head(context.Background(), "uploads", "a.txt")
			assert.Equal(t, int64(1), heads.Load())
			assert.Equal(t, tt.want, ok)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, bserrors.KindTransport, bserrors.KindOf(err))
				return
			}
			require.NoError(t, err)
		})
	}
}
