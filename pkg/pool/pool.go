// Package pool provides a typed object pool used to recycle the scratch
// buffers of the hot paths: encode buffers and the flattening work stack.
//
// Example usage:
//
//	bufs := pool.New(
//	    func() *bytes.Buffer { return new(bytes.Buffer) },
//	    func(b *bytes.Buffer) { b.Reset() },
//	)
//	buf := bufs.Get()
//	defer bufs.Put(buf)
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool is a type-safe wrapper around sync.Pool that resets objects on Put
// and tracks how often it had to allocate. It is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	keep  func(T) bool
	stats struct {
		allocated int64
		inUse     int64
		gets      int64
		dropped   int64
	}
}

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithKeep installs a predicate consulted on Put. Objects it rejects are
// left to the garbage collector, which keeps oversized buffers out of the
// pool.
func WithKeep[T any](keep func(T) bool) Option[T] {
	return func(p *Pool[T]) { p.keep = keep }
}

// New creates a pool. newFn allocates when the pool is empty; reset, if not
// nil, is applied before an object goes back into the pool.
func New[T any](newFn func() T, reset func(T), opts ...Option[T]) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get takes an object from the pool, allocating one if needed.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.gets, 1)
	return p.pool.Get().(T)
}

// Put returns obj to the pool.
func (p *Pool[T]) Put(obj T) {
	atomic.AddInt64(&p.stats.inUse, -1)
	if p.keep != nil && !p.keep(obj) {
		atomic.AddInt64(&p.stats.dropped, 1)
		return
	}
	if p.reset != nil {
		p.reset(obj)
	}
	p.pool.Put(obj)
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Allocated int64
	InUse     int64
	Gets      int64
	Dropped   int64
}

// HitRate is the share of Gets served without allocating.
func (s Stats) HitRate() float64 {
	if s.Gets == 0 {
		return 0
	}
	hits := s.Gets - s.Allocated
	if hits < 0 {
		hits = 0
	}
	return float64(hits) / float64(s.Gets)
}

// Stats returns the current counters.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Allocated: atomic.LoadInt64(&p.stats.allocated),
		InUse:     atomic.LoadInt64(&p.stats.inUse),
		Gets:      atomic.LoadInt64(&p.stats.gets),
		Dropped:   atomic.LoadInt64(&p.stats.dropped),
	}
}
