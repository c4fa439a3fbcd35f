package engine

import (
	"github.com/spud93/rma/internal/cq"
	"github.com/spud93/rma/internal/rmaerr"
	"github.com/spud93/rma/internal/transport"
	"github.com/spud93/rma/internal/wire"
)

// WriteOpts carries the optional fields a plain Write doesn't need: bound
// immediate data, a completion counter, forced acknowledgement, and the
// trigger marker.
type WriteOpts struct {
	Data     uint64
	HasData  bool
	Cntr     cq.Counter
	ForceAck bool
	Trigger  bool
}

// Write issues a one-sided RMA write of buf to (peer, dstVL)'s region
// identified by key at target-relative address addr, completing userCtx on
// ep's SendCQ. It is the initiator short/long entry point from spec.md
// §4.2/§4.3: same-domain peers take the self path (§4.6); everyone else is
// fragmented over the short AM path, or promoted to the long tagged-MQ
// rendezvous when the domain has tagged RMA enabled and the payload exceeds
// the configured chunk size.
func (e *Endpoint) Write(peer transport.PeerAddr, dstVL wire.VL, buf []byte, addr, key uint64, userCtx interface{}) error {
	return e.WriteWith(peer, dstVL, buf, addr, key, userCtx, WriteOpts{})
}

// WriteData is Write with bound immediate data delivered to the target's
// receive CQ.
func (e *Endpoint) WriteData(peer transport.PeerAddr, dstVL wire.VL, buf []byte, addr, key uint64, data uint64, userCtx interface{}) error {
	return e.WriteWith(peer, dstVL, buf, addr, key, userCtx, WriteOpts{Data: data, HasData: true})
}

// Inject is a Write with no completion tracked on the initiator side
// (fire-and-forget), capped at the domain's configured inject_max.
func (e *Endpoint) Inject(peer transport.PeerAddr, dstVL wire.VL, buf []byte, addr, key uint64) error {
	if len(buf) > e.Domain.Params.InjectMax {
		return rmaerr.NewVL("rma.inject", e.Domain.Name(), int(e.VL), rmaerr.CodeMsgSize, "payload exceeds inject_max")
	}
	return e.WriteWith(peer, dstVL, buf, addr, key, nil, WriteOpts{})
}

// InjectData is Inject with bound immediate data. Unlike Inject, the write
// is tracked to completion on ep's SendCQ, because a write carrying
// immediate data always takes the tracked path.
func (e *Endpoint) InjectData(peer transport.PeerAddr, dstVL wire.VL, buf []byte, addr, key, data uint64) error {
	if len(buf) > e.Domain.Params.InjectMax {
		return rmaerr.NewVL("rma.inject", e.Domain.Name(), int(e.VL), rmaerr.CodeMsgSize, "payload exceeds inject_max")
	}
	return e.WriteWith(peer, dstVL, buf, addr, key, nil, WriteOpts{Data: data, HasData: true})
}

// WriteWith is the fully general write entry point underlying Write,
// WriteData, Inject and InjectData.
func (e *Endpoint) WriteWith(peer transport.PeerAddr, dstVL wire.VL, buf []byte, addr, key uint64, userCtx interface{}, opts WriteOpts) error {
	d := e.Domain
	e.incWritesOut()
	if peer == d.self {
		return d.selfWrite(e.VL, dstVL, buf, addr, key, opts)
	}

	req := newRequest(KindWrite, peer, addr, key)
	req.Write = WriteVariant{Buf: buf, HasData: opts.HasData, Data: opts.Data}
	req.VL = e.VL
	req.Context = userCtx
	req.Cntr = opts.Cntr
	req.CQ = e.SendCQ

	flags := wire.Flags(0)
	if opts.ForceAck {
		flags |= wire.FlagForceAck
	}
	if opts.Trigger {
		flags |= wire.FlagTrigger
	}

	needsCompletion := opts.ForceAck || opts.HasData
	if !e.Selective {
		needsCompletion = needsCompletion || userCtx != nil
	}
	long := d.Params.TaggedRMA && len(buf) > d.Params.ShortChunkSize
	if !needsCompletion {
		if e.Selective {
			req.CQ = nil
		}
		if !long {
			return e.writeFireAndForget(d, peer, dstVL, req, flags)
		}
	}

	req.Token = d.arena.Alloc(req)

	if long {
		// A long write always waits for its MQISend's local completion;
		// it additionally waits for the target's REP_WRITE ack when one
		// will actually be sent (ForceAck or bound immediate data),
		// mirroring finishTargetLeg's own needsAck condition exactly.
		legs := 1
		if opts.ForceAck || opts.HasData {
			legs = 2
		}
		req.addFragments(legs)
		return d.sendWriteLong(e.VL, dstVL, peer, req, flags)
	}
	req.addFragments(1)
	return d.sendWriteShortFragments(e.VL, dstVL, peer, req, flags)
}

func (e *Endpoint) writeFireAndForget(d *Domain, peer transport.PeerAddr, dstVL wire.VL, req *Request, flags wire.Flags) error {
	return d.sendWriteShortFragments(e.VL, dstVL, peer, req, flags)
}

func (d *Domain) sendWriteShortFragments(srcVL, dstVL wire.VL, peer transport.PeerAddr, req *Request, flags wire.Flags) error {
	buf := req.Write.Buf
	chunk := d.Params.ShortChunkSize
	if chunk <= 0 {
		chunk = len(buf)
	}
	// DATA belongs only on the terminal fragment (spec.md §4.2 step 5), so
	// the FlagData bit and its Aux word are added per-fragment below, not
	// baked into the flags every fragment shares.
	if len(buf) == 0 {
		f := flags | wire.FlagEOM
		if req.Write.HasData {
			f |= wire.FlagData
		}
		return d.sendOneShortFragment(srcVL, dstVL, peer, req, f, 0, nil)
	}
	for off := 0; off < len(buf); off += chunk {
		end := off + chunk
		if end > len(buf) {
			end = len(buf)
		}
		f := flags
		if end == len(buf) {
			f |= wire.FlagEOM
			if req.Write.HasData {
				f |= wire.FlagData
			}
		}
		if err := d.sendOneShortFragment(srcVL, dstVL, peer, req, f, off, buf[off:end]); err != nil {
			req.SetError(err)
			break
		}
	}
	if req.Token != 0 || req.remaining > 0 {
		// completion, if any, arrives via a REP_WRITE reply handled in reply.go
	} else if req.CQ != nil {
		_ = req.CQ.Post(cq.Event{Flags: cq.EventWrite, Len: uint64(len(buf)), Context: req.Context, Err: req.Error()})
	}
	return req.Error()
}

func (d *Domain) sendOneShortFragment(srcVL, dstVL wire.VL, peer transport.PeerAddr, req *Request, flags wire.Flags, off int, frag []byte) error {
	var args wire.Args
	args[0] = wire.PackWord0(wire.OpReqWrite, srcVL, dstVL, flags, uint32(len(frag)))
	args.SetReqToken(uint64(req.Token))
	args.SetAddr(req.Addr + uint64(off))
	args.SetKey(req.Key)
	if flags.Has(wire.FlagData) {
		args.SetAux(req.Write.Data)
	}
	d.obs.OnFragment(CompletionWrite, len(frag))
	return d.cap.AMRequestShort(peer, args, frag)
}

func (d *Domain) sendWriteLong(srcVL, dstVL wire.VL, peer transport.PeerAddr, req *Request, flags wire.Flags) error {
	flags |= wire.FlagEOM
	if req.Write.HasData {
		flags |= wire.FlagData
	}
	var args wire.Args
	args[0] = wire.PackWord0(wire.OpReqWriteLong, srcVL, dstVL, flags, uint32(len(req.Write.Buf)))
	args.SetReqToken(uint64(req.Token))
	args.SetAddr(req.Addr)
	args.SetKey(req.Key)
	if req.Write.HasData {
		args.SetAux(req.Write.Data)
	}
	if err := d.cap.AMRequestShort(peer, args, nil); err != nil {
		req.SetError(err)
		d.completeRequest(req)
		return err
	}
	return d.cap.MQISend(peer, transport.Tag(req.Token), req.Write.Buf, req)
}

// Read issues a one-sided RMA read of length bytes from (peer, dstVL)'s
// region identified by key at target-relative address addr into dst.
func (e *Endpoint) Read(peer transport.PeerAddr, dstVL wire.VL, dst []byte, addr, key uint64, userCtx interface{}) error {
	d := e.Domain
	e.incReadsOut()
	if peer == d.self {
		return d.selfRead(e.VL, dstVL, dst, addr, key)
	}

	req := newRequest(KindRead, peer, addr, key)
	req.Read = ReadVariant{Buf: dst}
	req.VL = e.VL
	req.Context = userCtx
	req.CQ = e.SendCQ
	req.Token = d.arena.Alloc(req)

	if d.Params.TaggedRMA && len(dst) > d.Params.ShortChunkSize {
		req.addFragments(1)
		return d.sendReadLong(e.VL, dstVL, peer, req)
	}
	return d.sendReadShortFragments(e.VL, dstVL, peer, req, len(dst), true)
}

// Readv issues a scatter read across multiple destination segments. A
// single-segment readv, of any length, degenerates directly to Read
// instead of running the (pointless, for count==1) tail-selection scan
// below.
func (e *Endpoint) Readv(peer transport.PeerAddr, dstVL wire.VL, iov [][]byte, addr, key uint64, userCtx interface{}) error {
	if len(iov) == 1 {
		return e.Read(peer, dstVL, iov[0], addr, key, userCtx)
	}

	d := e.Domain
	e.incReadsOut()
	if peer == d.self {
		return d.selfReadv(e.VL, dstVL, iov, addr, key)
	}

	req := newRequest(KindRead, peer, addr, key)
	req.Read = ReadVariant{IOV: iov}
	req.VL = e.VL
	req.Context = userCtx
	req.CQ = e.SendCQ
	req.Token = d.arena.Alloc(req)

	return d.sendReadv(e.VL, dstVL, peer, req)
}

// selectLongSegment implements psmx2_readv_generic's tail scan: walking the
// iov list from the end backward, skip trailing empty segments, then
// promote the first non-empty segment found to the long protocol only if
// it exceeds chunk. A non-empty segment at or under chunk stops the scan
// with no promotion at all — the algorithm never looks further back than
// that first non-empty segment.
func selectLongSegment(iov [][]byte, chunk int) []byte {
	for i := len(iov) - 1; i >= 0; i-- {
		switch {
		case len(iov[i]) > chunk:
			return iov[i]
		case len(iov[i]) > 0:
			return nil
		}
	}
	return nil
}

// sendReadv implements spec.md §4.4 / SPEC_FULL §6.9's readv tail
// selection: under tagged RMA, the segment selectLongSegment picks goes
// over the long tagged-MQ path; every other segment is addressed as one
// contiguous short-protocol range ahead of it and fragmented normally,
// with EOM withheld from that range whenever a long leg follows.
func (d *Domain) sendReadv(srcVL, dstVL wire.VL, peer transport.PeerAddr, req *Request) error {
	total := payloadLen(req)

	var longBuf []byte
	if d.Params.TaggedRMA {
		longBuf = selectLongSegment(req.Read.IOV, d.Params.ShortChunkSize)
	}
	if longBuf == nil {
		return d.sendReadShortFragments(srcVL, dstVL, peer, req, total, true)
	}

	shortLen := total - len(longBuf)
	req.addFragments(1)
	d.sendReadShortFragments(srcVL, dstVL, peer, req, shortLen, false)
	return d.sendReadLongSegment(srcVL, dstVL, peer, req, longBuf, shortLen)
}

func (d *Domain) sendReadShortFragments(srcVL, dstVL wire.VL, peer transport.PeerAddr, req *Request, total int, finalEOM bool) error {
	chunk := d.Params.ShortChunkSize
	if chunk <= 0 || chunk > total {
		chunk = total
	}
	n := 1
	if chunk > 0 {
		n = (total + chunk - 1) / chunk
		if n == 0 {
			n = 1
		}
	}
	req.addFragments(n)

	for off := 0; off < total || (total == 0 && off == 0); off += chunk {
		end := off + chunk
		if end > total {
			end = total
		}
		flags := wire.Flags(0)
		if end == total && finalEOM {
			flags |= wire.FlagEOM
		}
		if err := d.sendOneReadFragment(srcVL, dstVL, peer, req, flags, off, end-off); err != nil {
			req.SetError(err)
		}
		if total == 0 {
			break
		}
	}
	return nil
}

func (d *Domain) sendOneReadFragment(srcVL, dstVL wire.VL, peer transport.PeerAddr, req *Request, flags wire.Flags, off, length int) error {
	var args wire.Args
	args[0] = wire.PackWord0(wire.OpReqRead, srcVL, dstVL, flags, uint32(length))
	args.SetReqToken(uint64(req.Token))
	args.SetAddr(req.Addr + uint64(off))
	args.SetKey(req.Key)
	return d.cap.AMRequestShort(peer, args, nil)
}

func (d *Domain) sendReadLong(srcVL, dstVL wire.VL, peer transport.PeerAddr, req *Request) error {
	return d.sendReadLongSegment(srcVL, dstVL, peer, req, req.Read.Buf, 0)
}

// sendReadLongSegment posts the long-protocol leg of a read into buf, a
// target-relative range starting at req.Addr+off. It is the shared tail
// end for both a plain long Read (off==0, buf spanning the whole request)
// and a Readv segment promoted by sendReadv's tail selection.
func (d *Domain) sendReadLongSegment(srcVL, dstVL wire.VL, peer transport.PeerAddr, req *Request, buf []byte, off int) error {
	if err := d.cap.MQIRecv(transport.Tag(req.Token), buf, req); err != nil {
		req.SetError(err)
		if req.fragmentDone() {
			d.completeRequest(req)
		}
		return err
	}
	var args wire.Args
	args[0] = wire.PackWord0(wire.OpReqReadLong, srcVL, dstVL, wire.FlagEOM, uint32(len(buf)))
	args.SetReqToken(uint64(req.Token))
	args.SetAddr(req.Addr + uint64(off))
	args.SetKey(req.Key)
	return d.cap.AMRequestShort(peer, args, nil)
}
