// Package plan derives the transfer plan for an upload: which strategy to
// use, how to size parts, and how many parts may be in flight at once.
// Everything here is a pure function of its inputs.
package plan

import (
	"runtime"

	"github.com/input-output-hk/catalyst-forge-libs/blobstore/blobtypes"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/transport"
)

// Config holds the tunables that shape a plan. Zero values select defaults.
type Config struct {
	Threshold       int64
	PartSize        int64
	InitialPartSize int64
	Concurrency     int

	// Limits, when set, constrains part sizing to what the store accepts.
	Limits *transport.Limits
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = blobtypes.DefaultThreshold
	}
	if c.PartSize <= 0 {
		c.PartSize = blobtypes.DefaultPartSize
	}
	if c.InitialPartSize <= 0 {
		c.InitialPartSize = blobtypes.DefaultInitialPartSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = runtime.NumCPU()
	}
	return c
}

// Select returns the plan for a source of the given size.
func Select(size int64, cfg Config) blobtypes.TransferPlan {
	cfg = cfg.withDefaults()

	if size < cfg.Threshold {
		return blobtypes.TransferPlan{
			Strategy:       blobtypes.StrategySimple,
			Size:           size,
			PartCount:      1,
			MaxConcurrency: 1,
		}
	}

	initial, partSize := cfg.InitialPartSize, cfg.PartSize
	if cfg.Limits != nil {
		initial, partSize = applyLimits(size, initial, partSize, *cfg.Limits)
	}

	count := PartCount(size, initial, partSize)
	concurrency := cfg.Concurrency
	if concurrency > count {
		concurrency = count
	}
	if concurrency < 1 {
		concurrency = 1
	}

	return blobtypes.TransferPlan{
		Strategy:        blobtypes.StrategyChunked,
		Size:            size,
		PartSize:        partSize,
		InitialPartSize: initial,
		PartCount:       count,
		MaxConcurrency:  concurrency,
	}
}

// PartCount returns the number of parts needed to cover size bytes when the
// first part holds initial bytes and every later part holds partSize bytes.
// An empty source still produces one (empty) part.
func PartCount(size, initial, partSize int64) int {
	if size <= initial {
		return 1
	}
	return 1 + int(ceilDiv(size-initial, partSize))
}

// Partition splits a chunked plan into contiguous part descriptors covering
// [0, plan.Size) with no gaps or overlaps.
func Partition(p blobtypes.TransferPlan) []blobtypes.PartDescriptor {
	parts := make([]blobtypes.PartDescriptor, 0, p.PartCount)
	var offset int64
	for i := 0; i < p.PartCount; i++ {
		length := p.PartSize
		if i == 0 {
			length = p.InitialPartSize
		}
		if offset+length > p.Size {
			length = p.Size - offset
		}
		parts = append(parts, blobtypes.PartDescriptor{
			Index:  i,
			Offset: offset,
			Length: length,
		})
		offset += length
	}
	return parts
}

func applyLimits(size, initial, partSize int64, l transport.Limits) (int64, int64) {
	clamp := func(v int64) int64 {
		if l.MinPartSize > 0 && v < l.MinPartSize {
			v = l.MinPartSize
		}
		if l.MaxPartSize > 0 && v > l.MaxPartSize {
			v = l.MaxPartSize
		}
		return v
	}
	initial, partSize = clamp(initial), clamp(partSize)

	if l.MaxParts > 1 && PartCount(size, initial, partSize) > l.MaxParts {
		partSize = clamp(ceilDiv(size-initial, int64(l.MaxParts-1)))
	}
	return initial, partSize
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
