package mr

import "github.com/spud93/rma/internal/rmaerr"

// Access is a bitmask of the operations a registered memory region permits,
// mirroring the teacher's named bit constants for per-operation flags.
type Access uint32

const (
	AccessRead Access = 1 << iota
	AccessWrite
)

func (a Access) permits(op Access) bool { return a&op != 0 }

// MR is a registered memory window: a Region plus the (key, access, offset)
// metadata spec.md §4.1 validates incoming RMA requests against.
type MR struct {
	Key    uint64
	Access Access
	Offset uint64 // added to a validated wire address to get a Region-local offset
	Len    uint64
	Region *Region
	Cntr   Counter // optional remote-completion counter, nil if unbound
}

// Counter is incremented on a successful remote access against this MR,
// satisfied by cq.Counter without importing internal/cq here.
type Counter interface {
	Inc()
}

// Validate checks that [addr, addr+length) lies within the window and that
// op is permitted, per spec.md §4.1's "lookup by key, then validate
// (addr,len,access)" gateway. On success it returns the Region-local byte
// offset to apply.
func (m *MR) Validate(addr, length uint64, op Access) (localOff uint64, err error) {
	if !m.Access.permits(op) {
		return 0, rmaerr.New("mr.validate", rmaerr.CodeInval, "access violation")
	}
	if length == 0 {
		return m.Offset + addr, nil
	}
	end := addr + length
	if end < addr || end > m.Len {
		return 0, rmaerr.New("mr.validate", rmaerr.CodeInval, "out of bounds")
	}
	return m.Offset + addr, nil
}
