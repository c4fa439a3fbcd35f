package engine

// CompletionKind tags what kind of RMA event an Observer is being notified
// about, mirroring the teacher's Metrics op-kind breakdown (ReadOps vs
// WriteOps) generalized with a remote-write variant for immediate-data
// delivery.
type CompletionKind uint8

const (
	CompletionWrite CompletionKind = iota
	CompletionRead
	CompletionRemoteWrite
)

func (k CompletionKind) String() string {
	switch k {
	case CompletionWrite:
		return "write"
	case CompletionRead:
		return "read"
	case CompletionRemoteWrite:
		return "remote_write"
	default:
		return "unknown"
	}
}

// Observer receives engine lifecycle notifications, the same role the
// teacher's Observer interface plays for queue/backend events: a hook
// point for metrics, tracing, or test assertions without coupling the
// engine to any one implementation.
type Observer interface {
	// OnFragment fires once per wire fragment sent or received.
	OnFragment(kind CompletionKind, bytes int)

	// OnComplete fires once per Request when it reaches a terminal state.
	OnComplete(kind CompletionKind, bytes int, latencyNanos int64, err error)

	// OnSelfPath fires when a request is satisfied via the in-process
	// self-path shortcut instead of the wire.
	OnSelfPath(kind CompletionKind, bytes int)
}

// NoOpObserver discards every notification. It is the Domain default.
type NoOpObserver struct{}

func (NoOpObserver) OnFragment(CompletionKind, int)               {}
func (NoOpObserver) OnComplete(CompletionKind, int, int64, error) {}
func (NoOpObserver) OnSelfPath(CompletionKind, int)               {}
