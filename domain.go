// Package rma implements a dual-protocol one-sided RMA engine: short-path
// active-message fragmentation for small transfers, long-path tagged-MQ
// rendezvous for large ones, MR-gateway validation at the target, and a
// same-domain self path that bypasses the wire entirely.
//
// The package re-exports the core types built in internal/engine,
// internal/mr, internal/transport and internal/wire so callers never need
// to import internal packages directly, the way the teacher's root package
// re-exports internal/constants and wraps internal/queue.
package rma

import (
	"github.com/spud93/rma/internal/engine"
	"github.com/spud93/rma/internal/mr"
	"github.com/spud93/rma/internal/transport"
	"github.com/spud93/rma/internal/wire"
)

// Domain is one RMA protocol-engine instance bound to a transport
// Capability: an MR table, a request arena, a deferred pump, and its
// virtual-lane endpoints.
type Domain = engine.Domain

// DomainParams configures a Domain at construction.
type DomainParams = engine.DomainParams

// DefaultDomainParams returns the zero-config defaults for a domain named
// name: four virtual lanes, the default short-path chunk size and inject
// cap, and tagged RMA enabled.
func DefaultDomainParams(name string) DomainParams {
	return engine.DefaultDomainParams(name)
}

// NewDomain constructs a Domain bound to cap. Bind cap's owning Fabric (or
// other Capability implementation) to the returned Domain's Handler before
// driving any transport progress.
func NewDomain(params DomainParams, capability transport.Capability) *Domain {
	return engine.NewDomain(params, capability)
}

// Endpoint is one virtual lane of a Domain.
type Endpoint = engine.Endpoint

// VL is a virtual-lane index.
type VL = wire.VL

// Access is a memory-region permission bitmask.
type Access = mr.Access

const (
	AccessRead  = mr.AccessRead
	AccessWrite = mr.AccessWrite
)

// MR is a registered memory region.
type MR = mr.MR

// WriteOpts carries the optional fields of a full RMA write: immediate
// data, a completion counter, forced acknowledgement, and the trigger
// marker (carried on the wire; the write is not deferred).
type WriteOpts = engine.WriteOpts

// Counters is a point-in-time snapshot of an endpoint's operation counts.
type Counters = engine.Counters
