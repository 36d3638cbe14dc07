package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/blobstore/blobtypes"
	bserrors "github.com/input-output-hk/catalyst-forge-libs/blobstore/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/transport"
)

// MemoryTransport is an in-memory transport.Transport with instrumentation
// and fault injection hooks. Containers must be created before use.
type MemoryTransport struct {
	mu         sync.Mutex
	containers map[string]map[string]memObject

	// PutHook, when set, runs before a Put stores anything; an error fails the Put.
	PutHook func(ctx context.Context, key string) error

	// PartHook, when set, runs inside PutPart while the part counts as in
	// flight; an error fails the part.
	PartHook func(ctx context.Context, part blobtypes.PartDescriptor) error

	// PartDelay holds each part in flight for the given duration, or until
	// its context is cancelled.
	PartDelay time.Duration

	// CompleteErr, when set, fails every Complete call.
	CompleteErr error

	// HeadErr, when set, fails every Head call.
	HeadErr error

	// PropertiesHook, when set, runs before GetProperties looks up key.
	PropertiesHook func(key string) error

	// ListErrAfter, when ListErr is set, yields ListErr after that many keys.
	ListErrAfter int
	ListErr      error

	inFlight    atomic.Int64
	maxInFlight atomic.Int64

	PutCalls           atomic.Int64
	BeginCalls         atomic.Int64
	PartCalls          atomic.Int64
	CompleteCalls      atomic.Int64
	AbortCalls         atomic.Int64
	HeadCalls          atomic.Int64
	ListCalls          atomic.Int64
	GetPropertiesCalls atomic.Int64
}

type memObject struct {
	data         []byte
	contentType  string
	metadata     map[string]string
	lastModified time.Time
	etag         string
}

var _ transport.Transport = (*MemoryTransport)(nil)

// NewMemoryTransport returns an empty MemoryTransport holding the given containers.
func NewMemoryTransport(containers ...string) *MemoryTransport {
	m := &MemoryTransport{containers: make(map[string]map[string]memObject)}
	for _, c := range containers {
		m.CreateContainer(c)
	}
	return m
}

// CreateContainer adds an empty container if it does not exist yet.
func (m *MemoryTransport) CreateContainer(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.containers[name]; !ok {
		m.containers[name] = make(map[string]memObject)
	}
}

// Seed stores an object directly, bypassing hooks and counters.
func (m *MemoryTransport) Seed(container, key string, data []byte) {
	m.CreateContainer(container)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers[container][key] = memObject{
		data:         slices.Clone(data),
		lastModified: time.Now().UTC(),
		etag:         fmt.Sprintf("seed-%d", len(data)),
	}
}

// Object returns a copy of the stored bytes.
func (m *MemoryTransport) Object(container, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.containers[container][key]
	if !ok {
		return nil, false
	}
	return slices.Clone(obj.data), true
}

// ContentType returns the stored content type of an object.
func (m *MemoryTransport) ContentType(container, key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.containers[container][key].contentType
}

// Metadata returns the stored user metadata of an object.
func (m *MemoryTransport) Metadata(container, key string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.containers[container][key].metadata
}

// MaxInFlight is the highest number of concurrent PutPart calls observed.
func (m *MemoryTransport) MaxInFlight() int64 {
	return m.maxInFlight.Load()
}

// Put stores the whole body.
func (m *MemoryTransport) Put(
	ctx context.Context,
	container, key string,
	body io.Reader,
	size int64,
	opts transport.PutOptions,
) (transport.PutResult, error) {
	m.PutCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return transport.PutResult{}, err
	}
	if m.PutHook != nil {
		if err := m.PutHook(ctx, key); err != nil {
			return transport.PutResult{}, bserrors.NewObjectError(bserrors.KindTransport, "put", container, key, err)
		}
	}
	if !m.hasContainer(container) {
		return transport.PutResult{}, m.containerMissing("put", container)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return transport.PutResult{}, bserrors.NewObjectError(bserrors.KindTransport, "put", container, key, err)
	}
	if int64(len(data)) != size {
		return transport.PutResult{}, bserrors.NewObjectError(bserrors.KindTransport, "put", container, key,
			fmt.Errorf("body length %d does not match declared size %d", len(data), size))
	}

	etag := m.store(container, key, data, opts)
	return transport.PutResult{ETag: etag}, nil
}

// BeginMultipart opens an in-memory multipart session.
func (m *MemoryTransport) BeginMultipart(
	ctx context.Context,
	container, key string,
	opts transport.PutOptions,
) (transport.MultipartSession, error) {
	m.BeginCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !m.hasContainer(container) {
		return nil, m.containerMissing("beginMultipart", container)
	}
	return &memSession{t: m, container: container, key: key, opts: opts, parts: make(map[int][]byte)}, nil
}

// Head reports whether the object exists.
func (m *MemoryTransport) Head(ctx context.Context, container, key string) (bool, error) {
	m.HeadCalls.Add(1)
	if m.HeadErr != nil {
		return false, bserrors.NewObjectError(bserrors.KindTransport, "head", container, key, m.HeadErr)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.containers[container][key]
	return ok, nil
}

// ListObjects yields keys in lexical order.
func (m *MemoryTransport) ListObjects(ctx context.Context, container string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for entry, err := range m.listEntries(ctx, container) {
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

// GetProperties returns the stored object's properties.
func (m *MemoryTransport) GetProperties(ctx context.Context, container, key string) (transport.Properties, error) {
	m.GetPropertiesCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return transport.Properties{}, err
	}
	if m.PropertiesHook != nil {
		if err := m.PropertiesHook(key); err != nil {
			return transport.Properties{}, bserrors.NewObjectError(bserrors.KindTransport, "getProperties", container, key, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	objects, ok := m.containers[container]
	if !ok {
		return transport.Properties{}, bserrors.NewContainerError(bserrors.KindTransport, "getProperties", container,
			bserrors.ErrContainerNotFound)
	}
	obj, ok := objects[key]
	if !ok {
		return transport.Properties{}, bserrors.NewObjectError(bserrors.KindTransport, "getProperties", container, key,
			bserrors.ErrObjectNotFound)
	}
	return obj.properties(), nil
}

func (m *MemoryTransport) listEntries(ctx context.Context, container string) iter.Seq2[transport.ObjectEntry, error] {
	return func(yield func(transport.ObjectEntry, error) bool) {
		m.ListCalls.Add(1)
		if err := ctx.Err(); err != nil {
			yield(transport.ObjectEntry{}, err)
			return
		}

		m.mu.Lock()
		objects, ok := m.containers[container]
		if !ok {
			m.mu.Unlock()
			yield(transport.ObjectEntry{}, m.containerMissing("list", container))
			return
		}
		entries := make([]transport.ObjectEntry, 0, len(objects))
		for key, obj := range objects {
			entries = append(entries, transport.ObjectEntry{Key: key, Properties: obj.properties()})
		}
		m.mu.Unlock()

		slices.SortFunc(entries, func(a, b transport.ObjectEntry) int {
			switch {
			case a.Key < b.Key:
				return -1
			case a.Key > b.Key:
				return 1
			}
			return 0
		})

		for i, entry := range entries {
			if m.ListErr != nil && i == m.ListErrAfter {
				yield(transport.ObjectEntry{}, bserrors.NewContainerError(bserrors.KindTransport, "list", container, m.ListErr))
				return
			}
			if !yield(entry, nil) {
				return
			}
		}
		if m.ListErr != nil && m.ListErrAfter >= len(entries) {
			yield(transport.ObjectEntry{}, bserrors.NewContainerError(bserrors.KindTransport, "list", container, m.ListErr))
		}
	}
}

func (m *MemoryTransport) hasContainer(container string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.containers[container]
	return ok
}

func (m *MemoryTransport) containerMissing(op, container string) error {
	return bserrors.NewContainerError(bserrors.KindTransport, op, container, bserrors.ErrContainerNotFound)
}

func (m *MemoryTransport) store(container, key string, data []byte, opts transport.PutOptions) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	etag := fmt.Sprintf("etag-%s-%d", key, len(data))
	m.containers[container][key] = memObject{
		data:         data,
		contentType:  opts.ContentType,
		metadata:     opts.Metadata,
		lastModified: time.Now().UTC(),
		etag:         etag,
	}
	return etag
}

func (o memObject) properties() transport.Properties {
	return transport.Properties{
		Size:         int64(len(o.data)),
		LastModified: o.lastModified,
		ETag:         o.etag,
		ContentType:  o.contentType,
	}
}

type memSession struct {
	t         *MemoryTransport
	container string
	key       string
	opts      transport.PutOptions

	mu      sync.Mutex
	parts   map[int][]byte
	done    bool
	aborted bool
}

func (s *memSession) PutPart(
	ctx context.Context,
	part blobtypes.PartDescriptor,
	data io.Reader,
) (blobtypes.CompletedPart, error) {
	s.t.PartCalls.Add(1)
	cur := s.t.inFlight.Add(1)
	defer s.t.inFlight.Add(-1)
	for {
		prev := s.t.maxInFlight.Load()
		if cur <= prev || s.t.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}

	if s.t.PartDelay > 0 {
		select {
		case <-time.After(s.t.PartDelay):
		case <-ctx.Done():
			return blobtypes.CompletedPart{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return blobtypes.CompletedPart{}, err
	}
	if s.t.PartHook != nil {
		if err := s.t.PartHook(ctx, part); err != nil {
			return blobtypes.CompletedPart{}, bserrors.NewObjectError(bserrors.KindTransport, "putPart", s.container, s.key, err)
		}
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, data)
	if err != nil {
		return blobtypes.CompletedPart{}, bserrors.NewObjectError(bserrors.KindTransport, "putPart", s.container, s.key, err)
	}
	if n != part.Length {
		return blobtypes.CompletedPart{}, bserrors.NewObjectError(bserrors.KindTransport, "putPart", s.container, s.key,
			fmt.Errorf("part %d: got %d bytes, want %d", part.Index, n, part.Length))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done || s.aborted {
		return blobtypes.CompletedPart{}, bserrors.NewObjectError(bserrors.KindTransport, "putPart", s.container, s.key,
			fmt.Errorf("session is closed"))
	}
	s.parts[part.Index] = buf.Bytes()
	return blobtypes.CompletedPart{Index: part.Index, ETag: fmt.Sprintf("part-%d", part.Index), Size: n}, nil
}

func (s *memSession) Complete(ctx context.Context, parts []blobtypes.CompletedPart) (transport.PutResult, error) {
	s.t.CompleteCalls.Add(1)
	if s.t.CompleteErr != nil {
		return transport.PutResult{}, bserrors.NewObjectError(bserrors.KindTransport, "completeMultipart", s.container, s.key,
			s.t.CompleteErr)
	}
	if err := ctx.Err(); err != nil {
		return transport.PutResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return transport.PutResult{}, bserrors.NewObjectError(bserrors.KindTransport, "completeMultipart", s.container, s.key,
			fmt.Errorf("session was aborted"))
	}

	ordered := slices.Clone(parts)
	slices.SortFunc(ordered, func(a, b blobtypes.CompletedPart) int { return a.Index - b.Index })

	var assembled []byte
	for i, p := range ordered {
		data, ok := s.parts[p.Index]
		if !ok || p.Index != i {
			return transport.PutResult{}, bserrors.NewObjectError(bserrors.KindTransport, "completeMultipart", s.container,
				s.key, fmt.Errorf("part %d missing", i))
		}
		assembled = append(assembled, data...)
	}
	s.done = true

	etag := s.t.store(s.container, s.key, assembled, s.opts)
	return transport.PutResult{ETag: etag}, nil
}

func (s *memSession) Abort(context.Context) error {
	s.t.AbortCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
	s.parts = nil
	return nil
}

// DetailedMemoryTransport is a MemoryTransport that also implements
// transport.DetailedLister.
type DetailedMemoryTransport struct {
	*MemoryTransport
}

var _ transport.DetailedLister = DetailedMemoryTransport{}

// ListObjectsDetailed yields entries with their properties in lexical key order.
func (d DetailedMemoryTransport) ListObjectsDetailed(
	ctx context.Context,
	container string,
) iter.Seq2[transport.ObjectEntry, error] {
	return d.listEntries(ctx, container)
}

// LimitedMemoryTransport is a MemoryTransport that reports multipart limits.
type LimitedMemoryTransport struct {
	*MemoryTransport
	L transport.Limits
}

var _ transport.Limiter = LimitedMemoryTransport{}

// Limits returns L.
func (l LimitedMemoryTransport) Limits() transport.Limits {
	return l.L
}
