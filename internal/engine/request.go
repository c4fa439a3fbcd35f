package engine

import (
	"sync"
	"time"

	"github.com/spud93/rma/internal/cq"
	"github.com/spud93/rma/internal/transport"
	"github.com/spud93/rma/internal/wire"
)

// Kind discriminates the two RMA operation shapes. Request is a tagged
// union over Write/Read rather than a type hierarchy, per design note §9.
type Kind uint8

const (
	KindWrite Kind = iota
	KindRead
)

// WriteVariant holds the fields meaningful only to a write request.
type WriteVariant struct {
	Buf     []byte // source buffer, local to the initiator
	HasData bool
	Data    uint64 // immediate data delivered to the target's CQ
}

// ReadVariant holds the fields meaningful only to a read request.
type ReadVariant struct {
	Buf []byte   // destination buffer; nil when IOV is used
	IOV [][]byte // destination scatter list for Readv
}

// Request is one in-flight RMA operation, initiator-owned, tracked in the
// domain's Arena for the lifetime of its wire round trip(s).
type Request struct {
	Token Token
	Kind  Kind
	Write WriteVariant
	Read  ReadVariant

	Addr uint64 // target-relative virtual address
	Key  uint64 // target MR key
	Peer transport.PeerAddr
	VL   wire.VL

	Context interface{}
	Cntr    cq.Counter
	CQ      cq.CQ

	startedAt time.Time

	mu        sync.Mutex
	err       error
	remaining int // outstanding fragments/long-protocol legs
	done      bool
}

func newRequest(kind Kind, peer transport.PeerAddr, addr, key uint64) *Request {
	return &Request{
		Kind:      kind,
		Peer:      peer,
		Addr:      addr,
		Key:       key,
		startedAt: time.Now(),
	}
}

// SetError records err as the request's terminal error if none has been
// recorded yet. Per spec.md §5/§7, the first non-zero error wins; later
// fragment errors on the same request are dropped.
func (r *Request) SetError(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

// Error returns the request's sticky error, or nil if none was recorded.
func (r *Request) Error() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// addFragments increments the outstanding-fragment counter, used when a
// request fans out into multiple short-path fragments or a long-protocol
// control+data pair.
func (r *Request) addFragments(n int) {
	r.mu.Lock()
	r.remaining += n
	r.mu.Unlock()
}

// fragmentDone decrements the outstanding counter and reports whether this
// was the last outstanding fragment (the request is now complete).
func (r *Request) fragmentDone() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remaining--
	if r.remaining <= 0 && !r.done {
		r.done = true
		return true
	}
	return false
}

func (r *Request) elapsed() time.Duration {
	return time.Since(r.startedAt)
}
