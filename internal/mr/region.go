// Package mr implements the memory-region gateway: registered windows of
// process memory, keyed lookup, and (addr,len,access) validation against a
// window before an RMA operation touches it.
//
// Region is adapted from the teacher's backend/mem.go sharded in-memory
// backend: a flat byte slice protected by a striped set of RWMutexes so
// concurrent RMA fragments touching disjoint offsets don't serialize on a
// single lock.
package mr

import "sync"

// shardSize mirrors the teacher's 64KB shard granularity.
const shardSize = 64 * 1024

// Region is a registered window of local memory. Reads and writes lock only
// the shards their byte range overlaps.
type Region struct {
	buf    []byte
	shards []sync.RWMutex
}

// NewRegion allocates a Region backed by a fresh zeroed buffer of size n.
func NewRegion(n int) *Region {
	return &Region{
		buf:    make([]byte, n),
		shards: make([]sync.RWMutex, shardCount(n)),
	}
}

// WrapRegion builds a Region over caller-provided memory without copying.
// The caller must not otherwise mutate buf concurrently outside Region's
// locking.
func WrapRegion(buf []byte) *Region {
	return &Region{
		buf:    buf,
		shards: make([]sync.RWMutex, shardCount(len(buf))),
	}
}

func shardCount(n int) int {
	if n == 0 {
		return 1
	}
	return (n + shardSize - 1) / shardSize
}

func (r *Region) shardRange(off, length int) (lo, hi int) {
	lo = off / shardSize
	if length == 0 {
		return lo, lo
	}
	hi = (off + length - 1) / shardSize
	return lo, hi
}

// Len returns the region's total size.
func (r *Region) Len() int { return len(r.buf) }

// ReadAt copies length bytes starting at off into dst, locking only the
// overlapping shards for reading.
func (r *Region) ReadAt(dst []byte, off, length int) {
	lo, hi := r.shardRange(off, length)
	for s := lo; s <= hi; s++ {
		r.shards[s].RLock()
	}
	copy(dst[:length], r.buf[off:off+length])
	for s := lo; s <= hi; s++ {
		r.shards[s].RUnlock()
	}
}

// WriteAt copies src into the region starting at off, locking only the
// overlapping shards for writing.
func (r *Region) WriteAt(src []byte, off int) {
	length := len(src)
	lo, hi := r.shardRange(off, length)
	for s := lo; s <= hi; s++ {
		r.shards[s].Lock()
	}
	copy(r.buf[off:off+length], src)
	for s := lo; s <= hi; s++ {
		r.shards[s].Unlock()
	}
}

// Bytes returns the backing slice directly, without any shard locking. The
// deferred pump hands slices of it to the transport as long-protocol MQ
// send and receive buffers.
func (r *Region) Bytes() []byte { return r.buf }
