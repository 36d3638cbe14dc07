// Package blobstore provides client initialization and configuration.
//
// The Client uploads, lists and checks objects in a remote object store.
// Uploads pick a strategy from the payload size: small payloads are written
// with one request, large ones are split into parts uploaded concurrently
// through a multipart session.
package blobstore

import (
	"context"
	"log/slog"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/input-output-hk/catalyst-forge-libs/blobstore/blobtypes"
	bserrors "github.com/input-output-hk/catalyst-forge-libs/blobstore/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/internal/operations/exists"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/internal/operations/list"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/transport"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/transport/miniotransport"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/transport/s3transport"
)

// Client is safe for concurrent use by multiple goroutines. It keeps no
// state between calls beyond its immutable configuration.
type Client struct {
	transport transport.Transport
	config    blobtypes.ClientConfig
	logger    *slog.Logger
	fs        billy.Filesystem

	lister  *list.Lister
	checker *exists.Checker
}

// New validates cfg, builds the transport it names and returns a Client.
// Missing identity or account settings fail here with a configuration error.
//
// Example:
//
//	cfg, err := blobstore.LoadConfig(".env")
//	if err != nil {
//	    return err
//	}
//	client, err := blobstore.New(ctx, cfg, blobstore.WithLogger(logger))
func New(ctx context.Context, cfg Config, opts ...blobtypes.Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		t   transport.Transport
		err error
	)
	switch cfg.Provider {
	case ProviderMinIO:
		t, err = miniotransport.New(cfg.minioConfig())
	default:
		t, err = s3transport.New(ctx, cfg.s3Config())
	}
	if err != nil {
		return nil, err
	}

	return NewWithTransport(t, opts...)
}

// NewWithTransport returns a Client over an existing transport.
func NewWithTransport(t transport.Transport, opts ...blobtypes.Option) (*Client, error) {
	if t == nil {
		return nil, bserrors.New(bserrors.KindConfiguration, "new", bserrors.ErrConfiguration).
			WithMessage("transport cannot be nil")
	}

	cfg := blobtypes.ClientConfig{
		Threshold:       blobtypes.DefaultThreshold,
		PartSize:        blobtypes.DefaultPartSize,
		InitialPartSize: blobtypes.DefaultInitialPartSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fsys := cfg.Filesystem
	if fsys == nil {
		fsys = &localFS{}
	}

	return &Client{
		transport: t,
		config:    cfg,
		logger:    logger,
		fs:        fsys,
		lister:    list.New(t),
		checker:   exists.New(t),
	}, nil
}

// localFS is the native filesystem with paths used as given.
type localFS struct {
	osfs.ChrootOS
}

//nolint:ireturn // billy.Filesystem is an interface; signature is dictated by upstream.
func (l *localFS) Chroot(path string) (billy.Filesystem, error) {
	return osfs.New(path), nil
}

func (l *localFS) Root() string {
	return "/"
}
