package engine

import (
	"sync/atomic"

	"github.com/spud93/rma/internal/cq"
	"github.com/spud93/rma/internal/wire"
)

// Endpoint is one virtual lane of a Domain: its own completion queues and
// per-lane counters, the way the teacher scopes a Metrics snapshot per
// queue. RMA requests are addressed to a (Domain, VL) pair on the remote
// side.
type Endpoint struct {
	VL     wire.VL
	Domain *Domain

	SendCQ cq.CQ
	RecvCQ cq.CQ

	// Selective mirrors FI_SELECTIVE_COMPLETION: when true, a write posts a
	// send-side completion only when the caller set FlagForceAck or bound
	// immediate data; otherwise the initiator gets silent fire-and-forget
	// writes the way fi_write behaves without FI_COMPLETION.
	Selective bool

	writesOut uint64
	readsOut  uint64
	writesIn  uint64
	readsIn   uint64
}

func newEndpoint(vl wire.VL, d *Domain) *Endpoint {
	return &Endpoint{VL: vl, Domain: d, SendCQ: cq.NewChanCQ(64), RecvCQ: cq.NewChanCQ(64)}
}

func (e *Endpoint) incWritesOut() { atomic.AddUint64(&e.writesOut, 1) }
func (e *Endpoint) incReadsOut()  { atomic.AddUint64(&e.readsOut, 1) }
func (e *Endpoint) incWritesIn()  { atomic.AddUint64(&e.writesIn, 1) }
func (e *Endpoint) incReadsIn()   { atomic.AddUint64(&e.readsIn, 1) }

// Counters is a point-in-time snapshot of an endpoint's operation counts.
type Counters struct {
	WritesOut, ReadsOut uint64
	WritesIn, ReadsIn   uint64
}

// Snapshot returns the endpoint's current counters.
func (e *Endpoint) Snapshot() Counters {
	return Counters{
		WritesOut: atomic.LoadUint64(&e.writesOut),
		ReadsOut:  atomic.LoadUint64(&e.readsOut),
		WritesIn:  atomic.LoadUint64(&e.writesIn),
		ReadsIn:   atomic.LoadUint64(&e.readsIn),
	}
}
