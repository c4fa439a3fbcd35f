package rma

import "github.com/spud93/rma/internal/constants"

// Protocol-wide sizing defaults, re-exported from internal/constants the
// way the teacher re-exports its internal/constants package at the root.
const (
	MaxRequestShort      = constants.MaxRequestShort
	InjectMax            = constants.InjectMax
	DefaultDeferredBatch = constants.DefaultDeferredBatch
	DefaultVirtualLanes  = constants.DefaultVirtualLanes
	DefaultMRTableShards = constants.DefaultMRTableShards
)
