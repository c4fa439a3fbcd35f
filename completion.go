package rma

import (
	"github.com/spud93/rma/internal/cq"
	"github.com/spud93/rma/internal/engine"
)

// CQ is a completion-queue sink an endpoint posts events to.
type CQ = cq.CQ

// Event is a single completion record posted to a CQ.
type Event = cq.Event

// EventFlags marks which kind of completion an Event represents.
type EventFlags = cq.EventFlags

const (
	EventWrite       = cq.EventWrite
	EventRead        = cq.EventRead
	EventRMA         = cq.EventRMA
	EventRemoteWrite = cq.EventRemoteWrite
	EventRemoteRead  = cq.EventRemoteRead
)

// Counter is a completion counter bound to a write or a memory region.
type Counter = cq.Counter

// NewChanCQ constructs a channel-backed CQ with the given buffer depth,
// suitable for tests and the demo harness.
func NewChanCQ(depth int) *cq.ChanCQ {
	return cq.NewChanCQ(depth)
}

// Observer receives engine lifecycle notifications: per-fragment,
// per-completion, and self-path events, independent of CQ delivery.
type Observer = engine.Observer

// CompletionKind tags what kind of RMA event an Observer is notified about.
type CompletionKind = engine.CompletionKind

const (
	CompletionWrite       = engine.CompletionWrite
	CompletionRead        = engine.CompletionRead
	CompletionRemoteWrite = engine.CompletionRemoteWrite
)

// NoOpObserver discards every notification; it is the Domain default.
type NoOpObserver = engine.NoOpObserver
