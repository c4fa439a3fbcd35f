package engine

import (
	"sync"

	"github.com/spud93/rma/internal/constants"
	"github.com/spud93/rma/internal/logging"
	"github.com/spud93/rma/internal/mr"
	"github.com/spud93/rma/internal/transport"
	"github.com/spud93/rma/internal/wire"
)

// DomainParams configures a Domain at construction, following the
// teacher's DeviceParams/DefaultParams struct-literal convention: no
// file or flag parsing inside the library, only at the cmd/ boundary.
type DomainParams struct {
	Name           string
	VirtualLanes   int
	ShortChunkSize int
	InjectMax      int
	DeferredBatch  int
	Observer       Observer

	// TaggedRMA mirrors PSM2's tagged_rma toggle: when true, a write/read
	// whose payload exceeds ShortChunkSize is promoted to the long
	// tagged-MQ rendezvous protocol instead of being fragmented over
	// multiple short AM messages.
	TaggedRMA bool
}

// DefaultDomainParams returns the teacher-style zero-config defaults.
func DefaultDomainParams(name string) DomainParams {
	return DomainParams{
		Name:           name,
		VirtualLanes:   constants.DefaultVirtualLanes,
		ShortChunkSize: constants.MaxRequestShort,
		InjectMax:      constants.InjectMax,
		DeferredBatch:  constants.DefaultDeferredBatch,
		Observer:       NoOpObserver{},
		TaggedRMA:      true,
	}
}

// Domain is one RMA protocol-engine instance: an MR table, a request
// arena, a deferred-pump FIFO, and the endpoints (virtual lanes) bound to
// it. It owns no goroutines; all three of spec.md's concurrency contexts
// (initiator entry, AM upcall, progress poll) run on whatever goroutine the
// caller drives them from.
type Domain struct {
	Params DomainParams
	log    logging.Logger
	obs    Observer

	cap  transport.Capability
	self transport.PeerAddr

	mrt   *mr.Table
	arena *Arena
	pump  *Pump
	bufs  *bufPool

	mu  sync.RWMutex
	eps map[wire.VL]*Endpoint
}

// NewDomain constructs a Domain bound to cap. It does not register its AM
// handler; the caller binds Handler() on the transport (for the loopback
// fabric, via (*transport.Fabric).Bind) before driving any progress.
func NewDomain(params DomainParams, cap transport.Capability) *Domain {
	if params.VirtualLanes <= 0 {
		params.VirtualLanes = constants.DefaultVirtualLanes
	}
	if params.Observer == nil {
		params.Observer = NoOpObserver{}
	}
	d := &Domain{
		Params: params,
		log:    logging.Scoped(params.Name),
		obs:    params.Observer,
		cap:    cap,
		self:   cap.EPAddrContext(),
		mrt:    mr.NewTable(),
		arena:  NewArena(),
		bufs:   newBufPool(),
		eps:    make(map[wire.VL]*Endpoint),
	}
	d.pump = newPump(d, params.DeferredBatch)
	for i := 0; i < params.VirtualLanes; i++ {
		d.eps[wire.VL(i)] = newEndpoint(wire.VL(i), d)
	}
	return d
}

// Handler returns the AM handler this domain must be bound under, routing
// every inbound opcode (both REQ_* target-role and REP_* initiator-role
// messages) through one dispatch point, mirroring psmx2_am_rma_handler's
// single switch over all RMA opcodes.
func (d *Domain) Handler() transport.AMHandler {
	return d.onAM
}

// Name returns the domain's configured name.
func (d *Domain) Name() string { return d.Params.Name }

// Address returns this domain's transport-level address.
func (d *Domain) Address() transport.PeerAddr { return d.self }

// Endpoint returns the endpoint bound to virtual lane vl, creating it with
// defaults if it does not already exist (a VL count beyond the configured
// default is still addressable, matching PSM2's lazily-expanding VL set).
func (d *Domain) Endpoint(vl wire.VL) *Endpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	ep, ok := d.eps[vl]
	if !ok {
		ep = newEndpoint(vl, d)
		d.eps[vl] = ep
	}
	return ep
}

// RegisterMR registers a memory region under key with the given access
// rights, backed by a freshly allocated Region of size n.
func (d *Domain) RegisterMR(key uint64, access mr.Access, n int) *mr.MR {
	m := &mr.MR{Key: key, Access: access, Len: uint64(n), Region: mr.NewRegion(n)}
	d.mrt.Register(m)
	return m
}

// DeregisterMR removes the MR registered under key.
func (d *Domain) DeregisterMR(key uint64) { d.mrt.Deregister(key) }

// LookupMR returns the MR registered under key, or an error if none is.
func (d *Domain) LookupMR(key uint64) (*mr.MR, error) {
	return d.mrt.Lookup(key)
}

// PumpProgress drains the deferred-pump FIFO and matches outstanding MQ
// completions for the long protocol. Callers must invoke this periodically
// alongside Fabric.Progress for long-protocol requests to make headway.
func (d *Domain) PumpProgress() int {
	return d.pump.drive()
}

// onAM is the single per-domain AM dispatch point, invoked synchronously by
// the transport's Progress call.
func (d *Domain) onAM(from transport.PeerAddr, args wire.Args, payload []byte) {
	op := args.Op()
	switch {
	case op.IsReply():
		d.handleReply(from, args, payload)
	case op.IsRequest():
		d.handleRequest(from, args, payload)
	default:
		d.log.Warnf("rma: unknown opcode %d from %s", op, from)
	}
}
