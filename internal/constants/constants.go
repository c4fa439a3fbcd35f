// Package constants holds protocol-wide sizing defaults for the RMA engine.
package constants

const (
	// MaxRequestShort is the default chunk size C used to fragment short-path
	// AM write/read requests. Payload above this threshold either spans
	// multiple short fragments or, when tagged_rma is enabled, travels the
	// long (tagged MQ) protocol instead.
	MaxRequestShort = 16 * 1024

	// InjectMax is the default upper bound on INJECT-mode payload size. An
	// inject request above this size fails with MSGSIZE rather than
	// co-allocating an oversized buffer.
	InjectMax = 4 * 1024

	// DefaultDeferredBatch bounds how many deferred long-protocol requests a
	// single Domain.PumpProgress call drains from the FIFO.
	DefaultDeferredBatch = 32

	// DefaultVirtualLanes is the default number of endpoints (VLs) a newly
	// constructed Domain reserves slots for.
	DefaultVirtualLanes = 4

	// DefaultMRTableShards is the number of lock shards in the MR lookup
	// table, mirroring the teacher's sharded memory-backend locking.
	DefaultMRTableShards = 16
)
