package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spud93/rma/internal/cq"
	"github.com/spud93/rma/internal/engine"
	"github.com/spud93/rma/internal/mr"
	"github.com/spud93/rma/internal/transport"
)

// TestWritevGathersSegmentsContiguously covers spec scenario: a gather
// write lands its source segments as one contiguous target region.
func TestWritevGathersSegmentsContiguously(t *testing.T) {
	fab, initiator, target := newPair(t)
	const key = 20
	tm := target.RegisterMR(key, mr.AccessWrite, 4096)

	seg1 := []byte("hello, ")
	seg2 := []byte("rma world")
	ep := initiator.Endpoint(0)
	require.NoError(t, ep.Writev("target", 0, [][]byte{seg1, seg2}, 0, key, "ctx"))

	drainUntilIdle(fab, initiator, target, 4)

	got := make([]byte, len(seg1)+len(seg2))
	tm.Region.ReadAt(got, 0, len(got))
	require.Equal(t, "hello, rma world", string(got))
}

// TestWriteMsgInjectFlagUsesInjectPath covers scenario: WriteMsg with
// FlagInjectMsg routes through Inject's size cap rather than the tracked
// write path.
func TestWriteMsgInjectFlagUsesInjectPath(t *testing.T) {
	_, initiator, _ := newPair(t)
	ep := initiator.Endpoint(0)
	oversized := make([]byte, engine.DefaultDomainParams("x").InjectMax+1)

	err := ep.WriteMsg(engine.WriteMsg{
		Peer: "target",
		IOV:  [][]byte{oversized},
		Key:  1,
	}, engine.FlagInjectMsg)
	require.Error(t, err)
}

// TestWriteMsgRemoteCQDataFlagDeliversImmediate covers scenario: the
// REMOTE_CQ_DATA flag posts a remote-write CQ event carrying the bound
// immediate on the target's receive queue.
func TestWriteMsgRemoteCQDataFlagDeliversImmediate(t *testing.T) {
	fab, initiator, target := newPair(t)
	const key = 21
	target.RegisterMR(key, mr.AccessWrite, 64)

	ep := initiator.Endpoint(0)
	require.NoError(t, ep.WriteMsg(engine.WriteMsg{
		Peer: "target",
		IOV:  [][]byte{[]byte("immediate")},
		Key:  key,
		Data: 0xBEEF,
	}, engine.FlagRemoteCQData))

	drainUntilIdle(fab, initiator, target, 4)

	snap := target.Endpoint(0).Snapshot()
	require.Equal(t, uint64(1), snap.WritesIn)

	ev, ok := target.Endpoint(0).RecvCQ.(*cq.ChanCQ).TryRead()
	require.True(t, ok)
	require.Equal(t, uint64(0xBEEF), ev.Data)
}

// TestWriteDataFragmentsOnlyCarryDataOnTerminalFragment covers spec
// scenario: a WriteData payload spanning several short fragments still
// posts exactly one remote-write CQ event and bumps the target MR's
// counter exactly once, with the immediate delivered on the terminal
// fragment rather than every fragment.
func TestWriteDataFragmentsOnlyCarryDataOnTerminalFragment(t *testing.T) {
	fab := transport.NewFabric(0)
	ic := fab.Bind("initiator", nil)
	tc := fab.Bind("target", nil)

	ip := engine.DefaultDomainParams("initiator")
	ip.ShortChunkSize = 8
	ip.TaggedRMA = false
	tp := engine.DefaultDomainParams("target")
	tp.ShortChunkSize = 8
	tp.TaggedRMA = false

	initiator := engine.NewDomain(ip, ic)
	target := engine.NewDomain(tp, tc)
	fab.Bind("initiator", initiator.Handler())
	fab.Bind("target", target.Handler())

	const key = 23
	tm := target.RegisterMR(key, mr.AccessWrite, 64)
	cntr := &countingCounter{}
	tm.Cntr = cntr

	payload := []byte("0123456789ABCDEFGHIJ") // 20 bytes: short fragments of 8, 8 and 4 bytes
	ep := initiator.Endpoint(0)
	require.NoError(t, ep.WriteData("target", 0, payload, 0, key, 0xFEED, "ctx"))

	drainUntilIdle(fab, initiator, target, 6)

	got := make([]byte, len(payload))
	tm.Region.ReadAt(got, 0, len(payload))
	require.Equal(t, payload, got)
	require.Equal(t, 1, cntr.n, "remote counter must bump once for the whole write, not once per fragment")

	recvCQ := target.Endpoint(0).RecvCQ.(*cq.ChanCQ)
	events := 0
	var lastData uint64
	for {
		ev, ok := recvCQ.TryRead()
		if !ok {
			break
		}
		events++
		lastData = ev.Data
	}
	require.Equal(t, 1, events, "remote-write CQ must post once, on the terminal fragment")
	require.Equal(t, uint64(0xFEED), lastData)
}

// TestReadMsgRejectsInjectFlag covers scenario: a read has no source
// buffer to reuse, so inject mode on ReadMsg is a usage error, not a
// silently ignored flag.
func TestReadMsgRejectsInjectFlag(t *testing.T) {
	_, initiator, _ := newPair(t)
	ep := initiator.Endpoint(0)
	err := ep.ReadMsg(engine.ReadMsg{
		Peer: "target",
		IOV:  [][]byte{make([]byte, 8)},
		Key:  1,
	}, engine.FlagInjectMsg)
	require.Error(t, err)
}

// TestSelectiveEndpointSuppressesPlainContextCompletion covers scenario: a
// Selective endpoint does not promote a write to tracked-completion status
// on a bare context alone, matching FI_SELECTIVE_COMPLETION semantics.
func TestSelectiveEndpointSuppressesPlainContextCompletion(t *testing.T) {
	fab, initiator, target := newPair(t)
	const key = 22
	tm := target.RegisterMR(key, mr.AccessWrite, 64)

	ep := initiator.Endpoint(0)
	ep.Selective = true

	require.NoError(t, ep.WriteWith("target", 0, []byte("quiet"), 0, key, "ctx-not-enough", engine.WriteOpts{}))
	drainUntilIdle(fab, initiator, target, 4)

	got := make([]byte, 5)
	tm.Region.ReadAt(got, 0, 5)
	require.Equal(t, "quiet", string(got))

	_, ok := ep.SendCQ.(*cq.ChanCQ).TryRead()
	require.False(t, ok, "a bare context on a Selective endpoint must post no send CQ event")
}
