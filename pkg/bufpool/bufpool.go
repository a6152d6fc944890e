// Package bufpool provides a tiered buffer pool for message I/O.
//
// The serve loop reads one length-prefixed envelope per request and
// builds one or more response frames per read; pooling those buffers
// keeps the per-request allocation count flat under sustained polling
// from the host.
//
// Three size tiers balance memory use against reuse:
//   - Small buffers (default 4KB): headers, pings, error frames
//   - Medium buffers (default 64KB): typical request envelopes
//   - Large buffers (default 1MB): oversized envelopes near the
//     transport message limit
//
// Buffers larger than the large tier are allocated directly and never
// pooled, so a single multi-megabyte chunk frame does not pin memory
// for the life of the process.
//
// All operations are safe for concurrent use via sync.Pool.
package bufpool

import (
	"sync"
)

// Default buffer size classes.
// These can be overridden when creating a custom pool with NewPool.
const (
	// DefaultSmallSize covers header-only frames and error frames (4KB)
	DefaultSmallSize = 4 << 10

	// DefaultMediumSize covers request envelopes with long paths (64KB)
	DefaultMediumSize = 64 << 10

	// DefaultLargeSize matches the default transport message limit (1MB)
	DefaultLargeSize = 1 << 20
)

// Pool manages byte slice pools organized by size class. It selects the
// pool from the requested size and falls back to direct allocation for
// oversized requests.
type Pool struct {
	small      sync.Pool
	medium     sync.Pool
	large      sync.Pool
	smallSize  int
	mediumSize int
	largeSize  int
}

// Config holds configuration for creating a custom buffer pool.
type Config struct {
	// SmallSize is the size of small buffers (default: 4KB)
	SmallSize int

	// MediumSize is the size of medium buffers (default: 64KB)
	MediumSize int

	// LargeSize is the size of large buffers (default: 1MB)
	LargeSize int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		SmallSize:  DefaultSmallSize,
		MediumSize: DefaultMediumSize,
		LargeSize:  DefaultLargeSize,
	}
}

// NewPool creates a new buffer pool with the given configuration.
// If config is nil, default values are used.
func NewPool(cfg *Config) *Pool {
	if cfg == nil {
		defaultCfg := DefaultConfig()
		cfg = &defaultCfg
	}

	if cfg.SmallSize <= 0 {
		cfg.SmallSize = DefaultSmallSize
	}
	if cfg.MediumSize <= 0 {
		cfg.MediumSize = DefaultMediumSize
	}
	if cfg.LargeSize <= 0 {
		cfg.LargeSize = DefaultLargeSize
	}

	p := &Pool{
		smallSize:  cfg.SmallSize,
		mediumSize: cfg.MediumSize,
		largeSize:  cfg.LargeSize,
	}

	p.small = sync.Pool{
		New: func() any {
			buf := make([]byte, p.smallSize)
			return &buf
		},
	}
	p.medium = sync.Pool{
		New: func() any {
			buf := make([]byte, p.mediumSize)
			return &buf
		},
	}
	p.large = sync.Pool{
		New: func() any {
			buf := make([]byte, p.largeSize)
			return &buf
		},
	}

	return p
}

// Get returns a byte slice of at least the requested size. The slice
// capacity may exceed size to align with pool size classes.
//
// The caller must call Put when finished with the buffer. Sizes larger
// than the large tier are allocated directly and will not be pooled.
func (p *Pool) Get(size int) []byte {
	var bufPtr *[]byte

	switch {
	case size <= p.smallSize:
		bufPtr = p.small.Get().(*[]byte)
	case size <= p.mediumSize:
		bufPtr = p.medium.Get().(*[]byte)
	case size <= p.largeSize:
		bufPtr = p.large.Get().(*[]byte)
	default:
		buf := make([]byte, size)
		return buf
	}

	buf := *bufPtr
	return buf[:size]
}

// Put returns a buffer to the pool for reuse. The buffer must have been
// obtained from Get and must not be used after Put.
//
// Buffers whose capacity does not match a pool tier are dropped and
// garbage collected normally.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}

	switch cap(buf) {
	case p.smallSize:
		fullBuf := buf[:cap(buf)]
		p.small.Put(&fullBuf)
	case p.mediumSize:
		fullBuf := buf[:cap(buf)]
		p.medium.Put(&fullBuf)
	case p.largeSize:
		fullBuf := buf[:cap(buf)]
		p.large.Put(&fullBuf)
	}
}

// =============================================================================
// Global Pool
// =============================================================================

// globalPool is the package-level buffer pool with default configuration.
var globalPool = NewPool(nil)

// Get returns a byte slice of at least the requested size from the global pool.
//
// Usage:
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns a buffer to the global pool.
// Always pair this with Get using defer to ensure buffers are returned.
func Put(buf []byte) {
	globalPool.Put(buf)
}

// GetUint32 is a convenience wrapper that accepts uint32 size, matching
// the length-prefix type of the transport envelope.
func GetUint32(size uint32) []byte {
	return globalPool.Get(int(size))
}
