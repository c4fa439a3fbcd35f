// Package transport defines the abstract AM/MQ capability the engine drives
// RMA traffic through (design note §9's "small capability interface"), and
// ships one concrete implementation: an in-memory loopback Fabric, standing
// in for the kernel io_uring ring the teacher drives ublk command traffic
// through.
package transport

import (
	"errors"

	"github.com/spud93/rma/internal/wire"
)

// ErrBusy is returned when a loopback node's pending-operation queue is at
// capacity. It models local backpressure, not a wire-level reliability
// condition — spec.md explicitly carries no reliability layer.
var ErrBusy = errors.New("transport: busy")

// PeerAddr identifies a domain reachable over a Capability.
type PeerAddr string

// Tag is an MQ matching tag. The engine uses the initiator request's arena
// token as the tag value.
type Tag uint64

// AMHandler is invoked synchronously by Progress for each inbound AM
// message, playing the role of the "transport-driven AM handler upcall"
// context from spec.md §5.
type AMHandler func(from PeerAddr, args wire.Args, payload []byte)

// MQCompletion reports a completed tagged send or receive.
type MQCompletion struct {
	Tag Tag
	Len int
	Err error
	Ctx interface{}
}

// Capability is the transport surface the engine requires: active-message
// short request/reply, and tagged matched-queue send/receive for the long
// protocol's rendezvous payload.
type Capability interface {
	// AMRequestShort sends an AM request to peer, carrying args and an
	// optional short-protocol payload fragment.
	AMRequestShort(peer PeerAddr, args wire.Args, payload []byte) error

	// AMReplyShort sends an AM reply back to peer.
	AMReplyShort(peer PeerAddr, args wire.Args, payload []byte) error

	// MQISend posts a tagged send of buf to peer, matched by tag against a
	// previously or subsequently posted MQIRecv.
	MQISend(peer PeerAddr, tag Tag, buf []byte, ctx interface{}) error

	// MQIRecv posts a tagged receive into buf, matched by tag against a
	// previously or subsequently posted MQISend.
	MQIRecv(tag Tag, buf []byte, ctx interface{}) error

	// EPAddrContext returns this endpoint's own address as seen by peers,
	// used by the engine to detect the self-path (initiator and target
	// share an endpoint in the same process).
	EPAddrContext() PeerAddr

	// Poll drains completed MQ operations without blocking.
	Poll() []MQCompletion
}
