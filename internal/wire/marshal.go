package wire

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// WireSize is the fixed on-wire size of an Args vector: 8 words of 8 bytes.
const WireSize = 64

var _ [WireSize]byte = [unsafe.Sizeof(Args{})]byte{}

// MarshalError reports a buffer-size mismatch during Marshal/Unmarshal.
type MarshalError struct {
	Op   string
	Want int
	Got  int
}

func (e *MarshalError) Error() string {
	return fmt.Sprintf("wire: %s: want %d bytes, got %d", e.Op, e.Want, e.Got)
}

// Marshal encodes args into a little-endian 64-byte wire buffer.
func Marshal(args *Args, dst []byte) error {
	if len(dst) < WireSize {
		return &MarshalError{Op: "marshal", Want: WireSize, Got: len(dst)}
	}
	for i, w := range args {
		off := i * 8
		binary.LittleEndian.PutUint32(dst[off:], w.W0)
		binary.LittleEndian.PutUint32(dst[off+4:], w.W1)
	}
	return nil
}

// Unmarshal decodes a little-endian 64-byte wire buffer into args.
func Unmarshal(src []byte, args *Args) error {
	if len(src) < WireSize {
		return &MarshalError{Op: "unmarshal", Want: WireSize, Got: len(src)}
	}
	for i := range args {
		off := i * 8
		args[i].W0 = binary.LittleEndian.Uint32(src[off:])
		args[i].W1 = binary.LittleEndian.Uint32(src[off+4:])
	}
	return nil
}

// Bytes allocates a fresh wire-format buffer for args.
func (a *Args) Bytes() []byte {
	buf := make([]byte, WireSize)
	_ = Marshal(a, buf)
	return buf
}
