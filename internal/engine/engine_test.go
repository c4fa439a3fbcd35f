package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spud93/rma/internal/cq"
	"github.com/spud93/rma/internal/engine"
	"github.com/spud93/rma/internal/mr"
	"github.com/spud93/rma/internal/transport"
)

func newPair(t *testing.T) (fab *transport.Fabric, initiator, target *engine.Domain) {
	t.Helper()
	fab = transport.NewFabric(0)

	ic := fab.Bind("initiator", nil)
	tc := fab.Bind("target", nil)

	initiator = engine.NewDomain(engine.DefaultDomainParams("initiator"), ic)
	target = engine.NewDomain(engine.DefaultDomainParams("target"), tc)

	fab.Bind("initiator", initiator.Handler())
	fab.Bind("target", target.Handler())

	return fab, initiator, target
}

func drainUntilIdle(fab *transport.Fabric, a, b *engine.Domain, rounds int) {
	for i := 0; i < rounds; i++ {
		fab.Progress("initiator")
		fab.Progress("target")
		a.PumpProgress()
		b.PumpProgress()
	}
}

// countingCounter is a cq.Counter test double that records how many times
// Inc was called, used to assert remote-completion counters fire exactly
// once per logical operation rather than once per wire fragment.
type countingCounter struct{ n int }

func (c *countingCounter) Inc() { c.n++ }

// TestShortWriteRoundTrip covers spec scenario: a short-protocol write
// lands byte-for-byte at the target's registered window.
func TestShortWriteRoundTrip(t *testing.T) {
	fab, initiator, target := newPair(t)
	const key = 1
	target.RegisterMR(key, mr.AccessWrite|mr.AccessRead, 4096)

	src := []byte("the quick brown fox jumps over the lazy dog")
	ep := initiator.Endpoint(0)
	require.NoError(t, ep.WriteWith("target", 0, src, 100, key, "ctx", engine.WriteOpts{ForceAck: true}))

	drainUntilIdle(fab, initiator, target, 4)

	tm, err := target.LookupMR(key)
	require.NoError(t, err)
	got := make([]byte, len(src))
	tm.Region.ReadAt(got, 100, len(src))
	require.Equal(t, src, got)
}

// TestLongWriteRendezvous covers scenario: a payload above the short chunk
// threshold is promoted to the tagged-MQ long protocol and still lands
// intact via the deferred pump.
func TestLongWriteRendezvous(t *testing.T) {
	fab, initiator, target := newPair(t)
	const key = 2
	target.RegisterMR(key, mr.AccessWrite, 1<<20)

	src := make([]byte, 64*1024)
	for i := range src {
		src[i] = byte(i)
	}
	ep := initiator.Endpoint(0)
	require.NoError(t, ep.WriteWith("target", 0, src, 0, key, "ctx", engine.WriteOpts{ForceAck: true}))

	drainUntilIdle(fab, initiator, target, 6)

	tm, err := target.LookupMR(key)
	require.NoError(t, err)
	got := make([]byte, len(src))
	tm.Region.ReadAt(got, 0, len(src))
	require.Equal(t, src, got)
}

// TestShortReadRoundTrip covers scenario: a short-protocol read scatters
// the target's window back into the initiator's destination buffer.
func TestShortReadRoundTrip(t *testing.T) {
	fab, initiator, target := newPair(t)
	const key = 3
	tm := target.RegisterMR(key, mr.AccessRead, 4096)
	payload := []byte("read me back please")
	tm.Region.WriteAt(payload, 10)

	dst := make([]byte, len(payload))
	ep := initiator.Endpoint(0)
	require.NoError(t, ep.Read("target", 0, dst, 10, key, "ctx"))

	drainUntilIdle(fab, initiator, target, 4)
	require.Equal(t, payload, dst)
}

// TestLongReadRendezvous covers scenario: a large read is promoted to the
// tagged-MQ long protocol.
func TestLongReadRendezvous(t *testing.T) {
	fab, initiator, target := newPair(t)
	const key = 4
	tm := target.RegisterMR(key, mr.AccessRead, 1<<20)
	payload := make([]byte, 100*1024)
	for i := range payload {
		payload[i] = byte(i * 3)
	}
	tm.Region.WriteAt(payload, 0)

	dst := make([]byte, len(payload))
	ep := initiator.Endpoint(0)
	require.NoError(t, ep.Read("target", 0, dst, 0, key, "ctx"))

	drainUntilIdle(fab, initiator, target, 6)
	require.Equal(t, payload, dst)
}

// TestReadvScatterAcrossSegments covers scenario: a vectored read spreads
// the source window across multiple destination segments in order.
func TestReadvScatterAcrossSegments(t *testing.T) {
	fab, initiator, target := newPair(t)
	const key = 8
	tm := target.RegisterMR(key, mr.AccessRead, 4096)
	payload := []byte("0123456789ABCDEF")
	tm.Region.WriteAt(payload, 0)

	seg1 := make([]byte, 6)
	seg2 := make([]byte, 10)
	ep := initiator.Endpoint(0)
	require.NoError(t, ep.Readv("target", 0, [][]byte{seg1, seg2}, 0, key, "ctx"))

	drainUntilIdle(fab, initiator, target, 4)
	require.Equal(t, payload[:6], seg1)
	require.Equal(t, payload[6:16], seg2)
}

// TestReadvPromotesTrailingLongSegmentUnderTaggedRMA covers spec scenario:
// Readv{256,256,32768} with tagged RMA on promotes only the last segment
// (which exceeds ShortChunkSize) to the long tagged-MQ path, while the two
// short segments travel together over a single short AM fragment.
func TestReadvPromotesTrailingLongSegmentUnderTaggedRMA(t *testing.T) {
	fab, initiator, target := newPair(t)
	const key = 9
	const total = 256 + 256 + 32768
	tm := target.RegisterMR(key, mr.AccessRead, total)
	payload := make([]byte, total)
	for i := range payload {
		payload[i] = byte(i)
	}
	tm.Region.WriteAt(payload, 0)

	seg1 := make([]byte, 256)
	seg2 := make([]byte, 256)
	seg3 := make([]byte, 32768)
	ep := initiator.Endpoint(0)
	require.NoError(t, ep.Readv("target", 0, [][]byte{seg1, seg2, seg3}, 0, key, "ctx"))

	drainUntilIdle(fab, initiator, target, 8)

	require.Equal(t, payload[:256], seg1)
	require.Equal(t, payload[256:512], seg2)
	require.Equal(t, payload[512:], seg3, "the trailing segment must arrive via the long protocol")
}

// TestReadvLeavesShortSegmentsUnpromotedWhenTailIsSmall covers the other
// half of the tail-selection invariant: when the last non-empty segment
// does not exceed ShortChunkSize, nothing is promoted, even though an
// earlier segment would have qualified on its own.
func TestReadvLeavesShortSegmentsUnpromotedWhenTailIsSmall(t *testing.T) {
	fab, initiator, target := newPair(t)
	const key = 10
	big := make([]byte, 32768)
	small := make([]byte, 64)
	total := len(big) + len(small)
	tm := target.RegisterMR(key, mr.AccessRead, total)
	payload := make([]byte, total)
	for i := range payload {
		payload[i] = byte(i)
	}
	tm.Region.WriteAt(payload, 0)

	seg1 := make([]byte, len(big))
	seg2 := make([]byte, len(small))
	ep := initiator.Endpoint(0)
	require.NoError(t, ep.Readv("target", 0, [][]byte{seg1, seg2}, 0, key, "ctx"))

	drainUntilIdle(fab, initiator, target, 8)

	require.Equal(t, payload[:len(big)], seg1)
	require.Equal(t, payload[len(big):], seg2)
}

// TestShortReadIncrementsRemoteCounterOnEOM covers spec scenario: a
// short-protocol read's completion bumps the target MR's bound counter
// exactly once, on the EOM fragment.
func TestShortReadIncrementsRemoteCounterOnEOM(t *testing.T) {
	fab, initiator, target := newPair(t)
	const key = 11
	tm := target.RegisterMR(key, mr.AccessRead, 64)
	cntr := &countingCounter{}
	tm.Cntr = cntr
	tm.Region.WriteAt([]byte("counted"), 0)

	dst := make([]byte, 7)
	ep := initiator.Endpoint(0)
	require.NoError(t, ep.Read("target", 0, dst, 0, key, "ctx"))

	drainUntilIdle(fab, initiator, target, 4)
	require.Equal(t, 1, cntr.n)
}

// TestLongReadIncrementsRemoteCounterOnCompletion covers spec scenario: a
// long-protocol read's single MQ transfer also bumps the target MR's
// bound counter exactly once.
func TestLongReadIncrementsRemoteCounterOnCompletion(t *testing.T) {
	fab, initiator, target := newPair(t)
	const key = 12
	tm := target.RegisterMR(key, mr.AccessRead, 1<<20)
	cntr := &countingCounter{}
	tm.Cntr = cntr
	payload := make([]byte, 100*1024)
	tm.Region.WriteAt(payload, 0)

	dst := make([]byte, len(payload))
	ep := initiator.Endpoint(0)
	require.NoError(t, ep.Read("target", 0, dst, 0, key, "ctx"))

	drainUntilIdle(fab, initiator, target, 6)
	require.Equal(t, 1, cntr.n)
}

// TestSelfPathBypassesWire covers scenario: initiator and target sharing a
// domain resolve over the self path with no AM/MQ traffic at all.
func TestSelfPathBypassesWire(t *testing.T) {
	fab := transport.NewFabric(0)
	conn := fab.Bind("solo", nil)
	d := engine.NewDomain(engine.DefaultDomainParams("solo"), conn)
	fab.Bind("solo", d.Handler())

	const key = 5
	d.RegisterMR(key, mr.AccessWrite|mr.AccessRead, 4096)

	src := []byte("self path data")
	ep := d.Endpoint(0)
	require.NoError(t, ep.Write("solo", 0, src, 0, key, nil))

	dst := make([]byte, len(src))
	require.NoError(t, ep.Read("solo", 0, dst, 0, key, nil))
	require.Equal(t, src, dst)
	require.Zero(t, fab.Progress("solo"), "the self path must put no AM traffic on the fabric")
}

// TestOutOfBoundsWriteRejectedAtTarget covers scenario: the MR gateway
// rejects an out-of-bounds write without touching the region, and the
// initiator observes the failure via its forced-ack reply.
func TestOutOfBoundsWriteRejectedAtTarget(t *testing.T) {
	fab, initiator, target := newPair(t)
	const key = 6
	tm := target.RegisterMR(key, mr.AccessWrite, 16)

	ep := initiator.Endpoint(0)
	require.NoError(t, ep.WriteWith("target", 0, make([]byte, 32), 0, key, "ctx", engine.WriteOpts{ForceAck: true}))
	drainUntilIdle(fab, initiator, target, 4)

	untouched := make([]byte, 16)
	got := make([]byte, 16)
	tm.Region.ReadAt(got, 0, 16)
	require.Equal(t, untouched, got)

	ev, ok := ep.SendCQ.(*cq.ChanCQ).TryRead()
	require.True(t, ok)
	require.Error(t, ev.Err)
}

// TestUnknownMRKeyIsRejectedAsynchronously covers the invariant that send
// itself never fails synchronously on a bad key: the error surfaces only
// once the target's reply is processed.
func TestUnknownMRKeyIsRejectedAsynchronously(t *testing.T) {
	fab, initiator, target := newPair(t)
	ep := initiator.Endpoint(0)
	err := ep.WriteWith("target", 0, []byte("x"), 0, 9999, "ctx", engine.WriteOpts{ForceAck: true})
	require.NoError(t, err)
	drainUntilIdle(fab, initiator, target, 4)

	ev, ok := ep.SendCQ.(*cq.ChanCQ).TryRead()
	require.True(t, ok)
	require.Error(t, ev.Err)
}

// TestInjectRejectsOversizedPayload covers the inject_max edge case from
// spec.md: inject mode fails fast rather than allocating an oversized
// scratch buffer.
func TestInjectRejectsOversizedPayload(t *testing.T) {
	_, initiator, _ := newPair(t)
	ep := initiator.Endpoint(0)
	big := make([]byte, engine.DefaultDomainParams("x").InjectMax+1)
	err := ep.Inject("target", 0, big, 0, 1)
	require.Error(t, err)
}

func TestArenaRejectsStaleToken(t *testing.T) {
	a := engine.NewArena()
	req := &engine.Request{}
	tok := a.Alloc(req)

	got, ok := a.Get(tok)
	require.True(t, ok)
	require.Same(t, req, got)

	a.Free(tok)
	_, ok = a.Get(tok)
	require.False(t, ok)

	reused := a.Alloc(&engine.Request{})
	require.Equal(t, tok.Slot(), reused.Slot())
	require.NotEqual(t, tok.Gen(), reused.Gen())

	_, ok = a.Get(tok)
	require.False(t, ok, "a token from before Free must never resolve after reuse")
}
