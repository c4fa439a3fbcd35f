package engine

import (
	"github.com/spud93/rma/internal/cq"
	"github.com/spud93/rma/internal/mr"
	"github.com/spud93/rma/internal/transport"
	"github.com/spud93/rma/internal/wire"
)

// handleRequest is the target-role half of the single per-domain AM
// dispatch point, handling every REQ_* opcode per spec.md §4.5's dispatch
// table.
func (d *Domain) handleRequest(from transport.PeerAddr, args wire.Args, payload []byte) {
	switch args.Op() {
	case wire.OpReqWrite, wire.OpReqWritev:
		d.targetWriteShort(from, args, payload)
	case wire.OpReqRead, wire.OpReqReadv:
		d.targetReadShort(from, args)
	case wire.OpReqWriteLong:
		d.targetWriteLong(from, args)
	case wire.OpReqReadLong:
		d.targetReadLong(from, args)
	default:
		d.log.Warnf("rma: target: unexpected opcode %s from %s", args.Op(), from)
	}
}

func (d *Domain) lookupAndValidate(key, addr, length uint64, access mr.Access) (*mr.MR, uint64, error) {
	m, err := d.mrt.Lookup(key)
	if err != nil {
		return nil, 0, err
	}
	off, err := m.Validate(addr, length, access)
	if err != nil {
		return nil, 0, err
	}
	return m, off, nil
}

// targetWriteShort handles one short-protocol write fragment: the payload
// travels inline with the control packet, so the target can apply it
// directly with no deferred step.
func (d *Domain) targetWriteShort(from transport.PeerAddr, args wire.Args, payload []byte) {
	d.Endpoint(args.DstVL()).incWritesIn()
	flags := args.ControlFlags()
	eom := flags.Has(wire.FlagEOM)
	m, off, err := d.lookupAndValidate(args.Key(), args.Addr(), uint64(len(payload)), mr.AccessWrite)
	if err == nil {
		m.Region.WriteAt(payload, int(off))
		if eom && m.Cntr != nil {
			m.Cntr.Inc()
		}
	}
	d.obs.OnFragment(CompletionWrite, len(payload))

	if eom && flags.Has(wire.FlagData) {
		d.postRemoteWrite(args.DstVL(), uint64(len(payload)), args.Aux(), err)
	}
	// Every tracked write is acknowledged on its terminal fragment. An
	// untracked write carries token 0 and expects no reply.
	if eom && args.ReqToken() != 0 {
		d.sendAck(from, wire.OpRepWrite, args.ReqToken(), err)
	}
}

// targetReadShort handles one short-protocol read fragment: validate, then
// reply with the payload inline.
func (d *Domain) targetReadShort(from transport.PeerAddr, args wire.Args) {
	d.Endpoint(args.DstVL()).incReadsIn()
	length := uint64(args.FragLen())
	m, off, err := d.lookupAndValidate(args.Key(), args.Addr(), length, mr.AccessRead)

	var reply wire.Args
	reply[0] = wire.PackWord0(wire.OpRepRead, args.DstVL(), args.SrcVL(), args.ControlFlags(), uint32(length))
	reply.SetReqToken(args.ReqToken())
	reply.SetAddr(args.Addr())

	var payload []byte
	if err != nil {
		reply.SetAux(1)
	} else {
		payload = d.bufs.Get(int(length))
		defer d.bufs.Put(payload)
		m.Region.ReadAt(payload, int(off), int(length))
		if args.ControlFlags().Has(wire.FlagEOM) && m.Cntr != nil {
			m.Cntr.Inc()
		}
	}
	d.obs.OnFragment(CompletionRead, len(payload))

	// AMReplyShort's loopback delivery copies payload into the peer's
	// inbox synchronously before returning, so it is safe to return the
	// buffer to the pool as soon as the call completes.
	if sendErr := d.cap.AMReplyShort(from, reply, payload); sendErr != nil {
		d.log.Errorf("rma: read reply to %s: %v", from, sendErr)
	}
}

// targetWriteLong validates the announced write and hands it to the
// deferred pump, which posts the matching MQIRecv on its own schedule
// rather than blocking this AM upcall on a potentially full transport.
func (d *Domain) targetWriteLong(from transport.PeerAddr, args wire.Args) {
	d.Endpoint(args.DstVL()).incWritesIn()
	length := uint64(args.FragLen())
	m, off, err := d.lookupAndValidate(args.Key(), args.Addr(), length, mr.AccessWrite)
	if err != nil {
		d.sendAck(from, wire.OpRepWrite, args.ReqToken(), err)
		return
	}
	d.pump.enqueue(&TargetRequest{
		op:    wire.OpReqWriteLong,
		peer:  from,
		token: args.ReqToken(),
		mrKey: args.Key(),
		m:     m,
		off:   off,
		len:   length,
		data:  args.Aux(),
		flags: args.ControlFlags(),
		dstVL: args.DstVL(),
	})
}

// targetReadLong validates the announced read and hands it to the deferred
// pump, which posts the matching MQISend once scheduled.
func (d *Domain) targetReadLong(from transport.PeerAddr, args wire.Args) {
	d.Endpoint(args.DstVL()).incReadsIn()
	length := uint64(args.FragLen())
	m, off, err := d.lookupAndValidate(args.Key(), args.Addr(), length, mr.AccessRead)
	if err != nil {
		d.sendAck(from, wire.OpRepRead, args.ReqToken(), err)
		return
	}
	d.pump.enqueue(&TargetRequest{
		op:    wire.OpReqReadLong,
		peer:  from,
		token: args.ReqToken(),
		mrKey: args.Key(),
		m:     m,
		off:   off,
		len:   length,
		flags: args.ControlFlags(),
		dstVL: args.DstVL(),
	})
}

func (d *Domain) postRemoteWrite(vl wire.VL, length, data uint64, err error) {
	ev := cq.Event{Flags: cq.EventRemoteWrite, Len: length, Data: data, Err: err}
	if ep := d.Endpoint(vl); ep.RecvCQ != nil {
		_ = ep.RecvCQ.Post(ev)
	}
}
