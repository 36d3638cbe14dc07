package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferPool_GetPut(t *testing.T) {
	bp := NewBufferPool(1024)

	buf := bp.Get()
	assert.Len(t, buf, 1024)
	assert.Equal(t, 1024, cap(buf))

	buf[0] = 0xff
	bp.Put(buf[:10])

	again := bp.Get()
	assert.Len(t, again, 1024, "length is restored on reuse")
}

func TestBufferPool_ForeignBufferDropped(t *testing.T) {
	bp := NewBufferPool(64)
	bp.Put(make([]byte, 32))

	buf := bp.Get()
	assert.Len(t, buf, 64)
}

func TestRegistry_SizesAreIndependent(t *testing.T) {
	r := NewRegistry()

	small := r.For(16)
	large := r.For(4096)

	assert.Same(t, small, r.For(16))
	assert.NotSame(t, small, large)
	assert.Len(t, small.Get(), 16)
	assert.Len(t, large.Get(), 4096)
}

func TestGlobalBuffers_Concurrent(t *testing.T) {
	const goroutines = 16

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(size int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf := GetBuffer(size)
				assert.Len(t, buf, size)
				PutBuffer(buf)
			}
		}(512 * (i%4 + 1))
	}
	wg.Wait()
}

func TestClassSize(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{n: 1, want: 512},
		{n: 512, want: 512},
		{n: 513, want: 1024},
		{n: 64 * 1024, want: 64 * 1024},
		{n: 1<<20 - 1, want: 1 << 20},
		{n: 1 << 20, want: 1 << 20},
		{n: 1<<20 + 1, want: 2 << 20},
		{n: 5 << 20, want: 5 << 20},
		{n: 5<<20 + 12345, want: 6 << 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classSize(tt.n), "classSize(%d)", tt.n)
	}
}

func TestGlobalBuffers_SizeClassesBoundPools(t *testing.T) {
	// Part sizes derived from object sizes differ by a few bytes; they must
	// share one pool instead of adding an entry each.
	before := globalRegistry.Len()
	for i := 1; i <= 200; i++ {
		size := 5<<20 + i*97
		buf := GetBuffer(size)
		assert.Len(t, buf, size)
		assert.Equal(t, 6<<20, cap(buf))
		PutBuffer(buf)
	}
	assert.LessOrEqual(t, globalRegistry.Len()-before, 1)
}

func TestPutBuffer_ForeignCapacityDropped(t *testing.T) {
	before := globalRegistry.Len()
	PutBuffer(make([]byte, 1000))
	assert.Equal(t, before, globalRegistry.Len())
}
