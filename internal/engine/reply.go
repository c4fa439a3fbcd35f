package engine

import (
	"github.com/spud93/rma/internal/rmaerr"
	"github.com/spud93/rma/internal/transport"
	"github.com/spud93/rma/internal/wire"
)

// handleReply is the initiator-role half of the single per-domain AM
// dispatch point: REP_WRITE and REP_READ land here, resolved back to the
// originating Request through its arena token.
func (d *Domain) handleReply(from transport.PeerAddr, args wire.Args, payload []byte) {
	tok := Token(args.ReqToken())
	req, ok := d.arena.Get(tok)
	if !ok {
		d.log.Warnf("rma: reply for stale/unknown token from %s", from)
		return
	}

	if args.Aux() != 0 {
		req.SetError(rmaerr.NewVL("rma.reply", d.Name(), int(req.VL), rmaerr.CodeInval, "remote error"))
	}

	switch args.Op() {
	case wire.OpRepWrite:
		// nothing further to copy; the write payload already landed.
	case wire.OpRepRead:
		d.scatterReadReply(req, args, payload)
	}

	if req.fragmentDone() {
		d.completeRequest(req)
	}
}

// scatterReadReply copies one short-protocol read reply's payload into the
// request's destination buffer (or the matching IOV segment), using the
// reply's echoed address, relative to the request's base address, to find
// the right offset.
func (d *Domain) scatterReadReply(req *Request, args wire.Args, payload []byte) {
	if args.Aux() != 0 {
		return
	}
	offset := args.Addr() - req.Addr
	if req.Read.Buf != nil {
		n := copy(req.Read.Buf[offset:], payload)
		d.obs.OnFragment(CompletionRead, n)
		return
	}
	remaining := payload
	skip := offset
	for _, seg := range req.Read.IOV {
		if skip >= uint64(len(seg)) {
			skip -= uint64(len(seg))
			continue
		}
		n := copy(seg[skip:], remaining)
		remaining = remaining[n:]
		skip = 0
		if len(remaining) == 0 {
			break
		}
	}
	d.obs.OnFragment(CompletionRead, len(payload))
}
