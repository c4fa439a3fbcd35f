package mr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegionReadWriteRoundTrip(t *testing.T) {
	r := NewRegion(256 * 1024) // spans multiple 64KB shards
	payload := []byte("hello rma world")
	r.WriteAt(payload, 65530) // crosses a shard boundary

	got := make([]byte, len(payload))
	r.ReadAt(got, 65530, len(payload))
	require.Equal(t, payload, got)
}

func TestMRValidateBounds(t *testing.T) {
	r := NewRegion(4096)
	m := &MR{Key: 1, Access: AccessRead | AccessWrite, Offset: 0, Len: 4096, Region: r}

	off, err := m.Validate(100, 200, AccessWrite)
	require.NoError(t, err)
	require.EqualValues(t, 100, off)

	_, err = m.Validate(4000, 200, AccessWrite)
	require.Error(t, err)

	_, err = m.Validate(0, 10, AccessRead)
	require.NoError(t, err)
}

func TestMRValidateAccessViolation(t *testing.T) {
	r := NewRegion(4096)
	m := &MR{Key: 1, Access: AccessRead, Offset: 0, Len: 4096, Region: r}

	_, err := m.Validate(0, 10, AccessWrite)
	require.Error(t, err)
}

func TestTableRegisterLookupDeregister(t *testing.T) {
	tbl := NewTable()
	r := NewRegion(1024)
	m := &MR{Key: 42, Access: AccessRead | AccessWrite, Len: 1024, Region: r}
	tbl.Register(m)

	got, err := tbl.Lookup(42)
	require.NoError(t, err)
	require.Same(t, m, got)

	tbl.Deregister(42)
	_, err = tbl.Lookup(42)
	require.Error(t, err)
}
