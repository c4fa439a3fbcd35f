package engine

import (
	"github.com/spud93/rma/internal/mr"
	"github.com/spud93/rma/internal/wire"
)

// selfWrite handles the case where initiator and target share a domain
// (spec.md §4.6): the transfer bypasses the wire entirely via a direct
// memcpy into the target MR, with the same MR validation any remote write
// would get. It bumps the MR's counter and opts.Cntr and, with immediate
// data, posts a remote-write event on the target endpoint's RecvCQ; it
// posts no event to the initiator's SendCQ.
func (d *Domain) selfWrite(srcVL, dstVL wire.VL, buf []byte, addr, key uint64, opts WriteOpts) error {
	m, off, err := d.lookupAndValidate(key, addr, uint64(len(buf)), mr.AccessWrite)
	if err != nil {
		return err
	}
	m.Region.WriteAt(buf, int(off))
	if m.Cntr != nil {
		m.Cntr.Inc()
	}
	if opts.Cntr != nil {
		opts.Cntr.Inc()
	}
	d.obs.OnSelfPath(CompletionWrite, len(buf))

	if opts.HasData {
		d.postRemoteWrite(dstVL, uint64(len(buf)), opts.Data, nil)
	}
	return nil
}

// selfRead handles a same-domain read via direct memcpy out of the source
// MR, bypassing both AM and MQ.
func (d *Domain) selfRead(srcVL, dstVL wire.VL, dst []byte, addr, key uint64) error {
	m, off, err := d.lookupAndValidate(key, addr, uint64(len(dst)), mr.AccessRead)
	if err != nil {
		return err
	}
	m.Region.ReadAt(dst, int(off), len(dst))
	d.obs.OnSelfPath(CompletionRead, len(dst))
	return nil
}

// selfReadv handles a same-domain scatter read via direct memcpy into each
// destination segment in turn.
func (d *Domain) selfReadv(srcVL, dstVL wire.VL, iov [][]byte, addr, key uint64) error {
	total := 0
	for _, seg := range iov {
		total += len(seg)
	}
	m, off, err := d.lookupAndValidate(key, addr, uint64(total), mr.AccessRead)
	if err != nil {
		return err
	}
	pos := int(off)
	for _, seg := range iov {
		m.Region.ReadAt(seg, pos, len(seg))
		pos += len(seg)
	}
	d.obs.OnSelfPath(CompletionRead, total)
	return nil
}
