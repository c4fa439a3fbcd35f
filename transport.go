package rma

import "github.com/spud93/rma/internal/transport"

// PeerAddr identifies a domain reachable over a Capability.
type PeerAddr = transport.PeerAddr

// Capability is the abstract transport surface an engine Domain requires:
// active-message short request/reply plus tagged matched-queue send/recv
// for the long protocol's rendezvous payload. Domains never assume a
// concrete transport; the Fabric below is the one in-memory implementation
// this module ships.
type Capability = transport.Capability

// Fabric is an in-memory loopback transport connecting any number of
// domains in one process.
type Fabric = transport.Fabric

// NewFabric constructs an empty loopback fabric. maxPending <= 0 uses
// transport.DefaultMaxPending.
func NewFabric(maxPending int) *Fabric {
	return transport.NewFabric(maxPending)
}

// ErrBusy is returned by a Capability when its pending-operation queue is
// at capacity. It models local backpressure, not a wire-level condition.
var ErrBusy = transport.ErrBusy
