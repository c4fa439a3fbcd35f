package engine

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/spud93/rma/internal/cq"
	"github.com/spud93/rma/internal/mr"
	"github.com/spud93/rma/internal/rmaerr"
	"github.com/spud93/rma/internal/transport"
	"github.com/spud93/rma/internal/wire"
)

// TargetRequest is a target-owned long-protocol leg: a validated
// REQ_WRITE_LONG or REQ_READ_LONG waiting for its matching MQ operation to
// be posted by the deferred pump. It needs no arena token of its own — the
// only wire-visible identity it carries is the initiator's original token,
// echoed back unchanged in any eventual reply.
type TargetRequest struct {
	op    wire.Op
	peer  transport.PeerAddr
	token uint64
	mrKey uint64
	m     *mr.MR
	off   uint64
	len   uint64
	data  uint64
	flags wire.Flags
	dstVL wire.VL
}

// Pump is the per-domain deferred-RMA FIFO from spec.md §4.7: long-protocol
// requests that are target-owned are queued here instead of posting their
// MQ operation inline from the AM upcall, and drained by a separate
// progress call so the upcall itself never blocks on a full transport
// queue.
type Pump struct {
	d     *Domain
	batch int
	fifo  []*TargetRequest
}

func newPump(d *Domain, batch int) *Pump {
	if batch <= 0 {
		batch = 1
	}
	return &Pump{d: d, batch: batch}
}

func (p *Pump) enqueue(tr *TargetRequest) {
	p.fifo = append(p.fifo, tr)
}

// drive posts MQ operations for up to batch queued TargetRequests, retrying
// a busy transport with bounded exponential backoff, and then drains and
// dispatches any completed MQ operations reported by the transport. It
// returns the number of TargetRequests it posted this call.
func (p *Pump) drive() int {
	posted := 0
	for posted < p.batch && len(p.fifo) > 0 {
		tr := p.fifo[0]
		p.fifo = p.fifo[1:]
		if err := p.postDeferred(tr); err != nil {
			p.d.log.Errorf("rma: deferred pump: %v", err)
			continue
		}
		posted++
	}

	for _, comp := range p.d.cap.Poll() {
		p.dispatchCompletion(comp)
	}
	return posted
}

func (p *Pump) postDeferred(tr *TargetRequest) error {
	op := func() error {
		tag := transport.Tag(tr.token)
		switch tr.op {
		case wire.OpReqWriteLong:
			buf := tr.m.Region.Bytes()[tr.off : tr.off+tr.len]
			return p.d.cap.MQIRecv(tag, buf, tr)
		case wire.OpReqReadLong:
			buf := tr.m.Region.Bytes()[tr.off : tr.off+tr.len]
			return p.d.cap.MQISend(tr.peer, tag, buf, tr)
		default:
			return rmaerr.New("pump.post", rmaerr.CodeInval, "unsupported deferred op")
		}
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	return backoff.Retry(func() error {
		err := op()
		if err == transport.ErrBusy {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, bo)
}

// dispatchCompletion routes one MQ completion to either an initiator-owned
// Request (the local leg of a long write/read the caller issued) or a
// target-owned TargetRequest (the remote leg the pump posted), based on the
// completion's context value.
func (p *Pump) dispatchCompletion(comp transport.MQCompletion) {
	switch ctx := comp.Ctx.(type) {
	case *Request:
		p.finishInitiatorLeg(ctx, comp)
	case *TargetRequest:
		p.finishTargetLeg(ctx, comp)
	}
}

func (p *Pump) finishInitiatorLeg(req *Request, comp transport.MQCompletion) {
	req.SetError(comp.Err)
	if req.fragmentDone() {
		p.d.completeRequest(req)
	}
}

func (p *Pump) finishTargetLeg(tr *TargetRequest, comp transport.MQCompletion) {
	kind := CompletionWrite
	if tr.op == wire.OpReqReadLong {
		kind = CompletionRead
	}
	// The long protocol's single MQ completion is always the whole
	// transfer's EOM, so the remote counter bumps once here on success.
	if comp.Err == nil && tr.m.Cntr != nil {
		tr.m.Cntr.Inc()
	}
	p.d.obs.OnFragment(kind, comp.Len)

	needsAck := tr.flags.Has(wire.FlagForceAck) || tr.flags.Has(wire.FlagData)
	if tr.op == wire.OpReqWriteLong {
		ev := cq.Event{Flags: cq.EventRemoteWrite, Len: uint64(comp.Len), Err: comp.Err}
		if tr.flags.Has(wire.FlagData) {
			ev.Data = tr.data
		}
		if ep := p.d.Endpoint(tr.dstVL); ep.RecvCQ != nil {
			_ = ep.RecvCQ.Post(ev)
		}
		if needsAck {
			p.d.sendAck(tr.peer, wire.OpRepWrite, tr.token, comp.Err)
		}
	}
}

// completeRequest is invoked once a Request has no outstanding fragments
// left: it posts the terminal completion to the endpoint's CQ, notifies the
// Observer, and releases the arena token.
func (d *Domain) completeRequest(req *Request) {
	kind := CompletionWrite
	if req.Kind == KindRead {
		kind = CompletionRead
	}
	err := req.Error()
	if req.CQ != nil {
		_ = req.CQ.Post(cq.Event{
			Flags:   flagsFor(kind),
			Len:     uint64(len(req.Write.Buf) + len(req.Read.Buf)),
			Context: req.Context,
			Err:     err,
		})
	}
	if req.Cntr != nil && err == nil {
		req.Cntr.Inc()
	}
	d.obs.OnComplete(kind, payloadLen(req), int64(req.elapsed()/time.Nanosecond), err)
	d.arena.Free(req.Token)
}

func flagsFor(kind CompletionKind) cq.EventFlags {
	switch kind {
	case CompletionWrite:
		return cq.EventWrite
	case CompletionRead:
		return cq.EventRead
	default:
		return cq.EventRMA
	}
}

func payloadLen(req *Request) int {
	if req.Kind == KindWrite {
		return len(req.Write.Buf)
	}
	if req.Read.Buf != nil {
		return len(req.Read.Buf)
	}
	n := 0
	for _, v := range req.Read.IOV {
		n += len(v)
	}
	return n
}

// sendAck sends a reply AM message echoing tok back to peer, encoding err
// (if any) into the Aux word as a status code.
func (d *Domain) sendAck(peer transport.PeerAddr, op wire.Op, tok uint64, err error) {
	var args wire.Args
	args[0] = wire.PackWord0(op, 0, 0, 0, 0)
	args.SetReqToken(tok)
	if err != nil {
		args.SetAux(1)
	}
	if sendErr := d.cap.AMReplyShort(peer, args, nil); sendErr != nil {
		d.log.Errorf("rma: ack to %s: %v", peer, sendErr)
	}
}
