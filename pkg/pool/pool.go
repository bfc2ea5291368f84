// Package pool provides typed object pooling for the record data path.
//
// The pools reduce allocations where every record passes through the same
// temporary buffer, most notably serialization. A Pool wraps sync.Pool with
// a reset hook and usage statistics. The pool is safe for concurrent use.
//
// Example usage:
//
//	buf := pool.Buffers.Get()
//	defer pool.Buffers.Put(buf)
//	buf.WriteString("a,b")
package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Pool is a generic object pool with type safety.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated atomic.Int64
		inUse     atomic.Int64
		gets      atomic.Int64
	}
}

// New creates a pool. newFn allocates when the pool is empty; reset, when
// not nil, runs before an object goes back into the pool.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() any {
		p.stats.allocated.Add(1)
		return newFn()
	}
	return p
}

// Get takes an object from the pool, allocating when it is empty
func (p *Pool[T]) Get() T {
	p.stats.gets.Add(1)
	p.stats.inUse.Add(1)
	return p.pool.Get().(T)
}

// Put resets obj and returns it to the pool
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	p.stats.inUse.Add(-1)
	p.pool.Put(obj)
}

// Stats returns the number of allocations, objects currently checked out,
// and Get calls served from the pool without allocating.
func (p *Pool[T]) Stats() (allocated, inUse, hits int64) {
	allocated = p.stats.allocated.Load()
	gets := p.stats.gets.Load()
	hits = gets - allocated
	if hits < 0 {
		hits = 0
	}
	return allocated, p.stats.inUse.Load(), hits
}

// maxRetained keeps buffers grown by a huge record out of the pool
const maxRetained = 64 << 10

// Buffers pools scratch buffers for building serialized lines
var Buffers = New(
	func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, 256)) },
	func(b *bytes.Buffer) {
		if b.Cap() > maxRetained {
			*b = bytes.Buffer{}
			return
		}
		b.Reset()
	},
)
