// Package pool provides memory management for part transfers.
//
// Chunked uploads read each part into a pooled buffer. Reusing those buffers
// keeps steady-state allocation at roughly concurrency+1 part buffers per
// upload regardless of object size. Requested sizes are rounded up to a size
// class so the number of pools stays bounded however part sizes vary.
package pool

import (
	"math/bits"
	"sync"
)

const (
	minClass = 512
	mib      = 1 << 20
)

// classSize rounds n up to a power of two up to 1 MiB, and to a whole number
// of MiB above that.
func classSize(n int) int {
	switch {
	case n <= minClass:
		return minClass
	case n <= mib:
		return 1 << bits.Len(uint(n-1))
	default:
		return (n + mib - 1) / mib * mib
	}
}

// BufferPool manages reusable buffers of a single fixed size.
type BufferPool struct {
	size int
	pool sync.Pool
}

// NewBufferPool creates a pool handing out buffers of size bytes.
func NewBufferPool(size int) *BufferPool {
	bp := &BufferPool{size: size}
	bp.pool.New = func() interface{} {
		buf := make([]byte, size)
		return &buf
	}
	return bp
}

// Size returns the length of buffers handed out by the pool.
func (bp *BufferPool) Size() int {
	return bp.size
}

// Get returns a buffer of length Size().
// The caller is responsible for calling Put to return the buffer to the pool.
func (bp *BufferPool) Get() []byte {
	bufPtr := bp.pool.Get().(*[]byte)
	return (*bufPtr)[:bp.size]
}

// Put returns a buffer to the pool. Buffers of a foreign capacity are dropped.
// The buffer should not be used after calling Put.
func (bp *BufferPool) Put(buf []byte) {
	if cap(buf) != bp.size {
		return
	}
	buf = buf[:bp.size]
	bp.pool.Put(&buf)
}

// Registry hands out one BufferPool per buffer size.
type Registry struct {
	mu    sync.Mutex
	pools map[int]*BufferPool
}

// Len returns the number of pools the registry holds.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pools)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pools: make(map[int]*BufferPool)}
}

// For returns the pool for buffers of size bytes, creating it on first use.
func (r *Registry) For(size int) *BufferPool {
	r.mu.Lock()
	defer r.mu.Unlock()

	bp, ok := r.pools[size]
	if !ok {
		bp = NewBufferPool(size)
		r.pools[size] = bp
	}
	return bp
}

// Global registry instance for use throughout the module.
var globalRegistry = NewRegistry()

// GetBuffer returns a buffer of length size from the global registry. Its
// capacity is the size class of size.
func GetBuffer(size int) []byte {
	return globalRegistry.For(classSize(size)).Get()[:size]
}

// PutBuffer returns a buffer obtained from GetBuffer to the global registry.
// Buffers whose capacity is not a size class are dropped.
func PutBuffer(buf []byte) {
	class := classSize(cap(buf))
	if class != cap(buf) {
		return
	}
	globalRegistry.For(class).Put(buf)
}
