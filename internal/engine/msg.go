package engine

import (
	"github.com/spud93/rma/internal/cq"
	"github.com/spud93/rma/internal/rmaerr"
	"github.com/spud93/rma/internal/transport"
	"github.com/spud93/rma/internal/wire"
)

// MsgFlags mirrors the per-call flag bitmask WriteMsg/ReadMsg accept,
// matching spec.md §4.1's recognized-flags set.
type MsgFlags uint32

const (
	// FlagInjectMsg requests inject-mode submission: bounded size, buffer
	// reusable immediately on return.
	FlagInjectMsg MsgFlags = 1 << iota
	// FlagRemoteCQData carries a 64-bit immediate to the peer's receive CQ.
	FlagRemoteCQData
	// FlagDeliveryComplete requires an explicit target-side ack for a long
	// write. On a short write it only makes the write tracked, since every
	// tracked short write is acknowledged on its terminal fragment anyway.
	FlagDeliveryComplete
	// FlagCompletionMsg requests a send CQ event on a Selective endpoint
	// that would otherwise suppress it.
	FlagCompletionMsg
	// FlagTriggerMsg marks a triggered write. It is accepted and carried
	// to the target as wire.FlagTrigger; the write is submitted
	// immediately and is not deferred until any counter threshold.
	FlagTriggerMsg
)

func (f MsgFlags) has(bit MsgFlags) bool { return f&bit != 0 }

// WriteMsg is the fully general gather-write entry point: one or more
// source segments written contiguously starting at addr, with explicit
// flags in place of a fixed WriteOpts shape, per spec.md §4.1's writemsg.
type WriteMsg struct {
	Peer  transport.PeerAddr
	DstVL wire.VL
	IOV   [][]byte
	Addr  uint64
	Key   uint64
	Data  uint64
	Cntr  cq.Counter
	Ctx   interface{}
}

// WriteMsg submits msg honoring flags, gathering msg.IOV into one
// contiguous buffer before handing off to WriteWith — libfabric's fi_writev
// likewise gathers local segments into a single contiguous remote write.
func (e *Endpoint) WriteMsg(msg WriteMsg, flags MsgFlags) error {
	buf := gather(msg.IOV)

	if flags.has(FlagInjectMsg) {
		if flags.has(FlagRemoteCQData) {
			return e.InjectData(msg.Peer, msg.DstVL, buf, msg.Addr, msg.Key, msg.Data)
		}
		return e.Inject(msg.Peer, msg.DstVL, buf, msg.Addr, msg.Key)
	}

	opts := WriteOpts{
		Data:     msg.Data,
		HasData:  flags.has(FlagRemoteCQData),
		Cntr:     msg.Cntr,
		ForceAck: flags.has(FlagDeliveryComplete) || flags.has(FlagCompletionMsg),
		Trigger:  flags.has(FlagTriggerMsg),
	}
	return e.WriteWith(msg.Peer, msg.DstVL, buf, msg.Addr, msg.Key, msg.Ctx, opts)
}

// Writev is WriteMsg's fixed-flag convenience form: a gather write with a
// tracked completion and no special delivery semantics, matching spec.md
// §4.1's writev.
func (e *Endpoint) Writev(peer transport.PeerAddr, dstVL wire.VL, iov [][]byte, addr, key uint64, userCtx interface{}) error {
	return e.WriteMsg(WriteMsg{Peer: peer, DstVL: dstVL, IOV: iov, Addr: addr, Key: key, Ctx: userCtx}, 0)
}

// ReadMsg is the fully general scatter-read entry point, mirroring
// spec.md §4.1's readmsg.
type ReadMsg struct {
	Peer  transport.PeerAddr
	DstVL wire.VL
	IOV   [][]byte
	Addr  uint64
	Key   uint64
	Ctx   interface{}
}

// ReadMsg submits msg honoring flags. Reads have no inject mode (the
// target, not the initiator, owns the source buffer), so FlagInjectMsg is
// rejected rather than silently ignored.
func (e *Endpoint) ReadMsg(msg ReadMsg, flags MsgFlags) error {
	if flags.has(FlagInjectMsg) {
		return rmaerr.NewVL("rma.readmsg", e.Domain.Name(), int(e.VL), rmaerr.CodeInval, "inject flag is not valid on a read")
	}
	return e.Readv(msg.Peer, msg.DstVL, msg.IOV, msg.Addr, msg.Key, msg.Ctx)
}

func gather(iov [][]byte) []byte {
	if len(iov) == 1 {
		return iov[0]
	}
	total := 0
	for _, seg := range iov {
		total += len(seg)
	}
	buf := make([]byte, 0, total)
	for _, seg := range iov {
		buf = append(buf, seg...)
	}
	return buf
}
