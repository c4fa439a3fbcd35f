package rma

import "github.com/spud93/rma/internal/engine"

// MsgFlags is the per-call flag bitmask accepted by WriteMsg and ReadMsg.
type MsgFlags = engine.MsgFlags

const (
	FlagInjectMsg        = engine.FlagInjectMsg
	FlagRemoteCQData     = engine.FlagRemoteCQData
	FlagDeliveryComplete = engine.FlagDeliveryComplete
	FlagCompletionMsg    = engine.FlagCompletionMsg
	FlagTriggerMsg       = engine.FlagTriggerMsg
)

// WriteMsg is the fully general gather-write request shape.
type WriteMsg = engine.WriteMsg

// ReadMsg is the fully general scatter-read request shape.
type ReadMsg = engine.ReadMsg
