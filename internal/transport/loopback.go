package transport

import (
	"sync"

	"github.com/spud93/rma/internal/wire"
)

// DefaultMaxPending bounds how many undelivered AM messages a node's inbox
// may hold before AMRequestShort/AMReplyShort return ErrBusy.
const DefaultMaxPending = 256

type amMsg struct {
	from    PeerAddr
	args    wire.Args
	payload []byte
	reply   bool
}

type mqWaiter struct {
	buf []byte
	ctx interface{}
}

type mqPosted struct {
	peer PeerAddr
	buf  []byte
	ctx  interface{}
}

// node is one domain's mailbox: an inbound AM queue plus this domain's share
// of the fabric-wide tagged-MQ matching lists.
type node struct {
	addr    PeerAddr
	handler AMHandler

	mu    sync.Mutex
	inbox []amMsg
	done  []MQCompletion
}

// Fabric is an in-memory loopback transport connecting any number of
// domains in one process, replacing the teacher's io_uring kernel ring the
// way a unit test replaces a kernel-backed uring.Ring with
// uring.NewMinimalRing.
type Fabric struct {
	maxPending int

	mu    sync.Mutex
	nodes map[PeerAddr]*node

	// recvWait/sendWait implement two-sided tagged matching: an MQIRecv
	// posted before its matching MQISend (the long-read case, receive
	// posted first) waits here; an MQISend posted before its matching
	// MQIRecv (the long-write case: the initiator sends at once, the
	// target's receive follows when its deferred pump drains) waits in
	// sendWait instead. Whichever arrives second
	// completes both sides immediately.
	recvWait map[Tag]mqWaiter
	sendWait map[Tag]mqPosted
}

// NewFabric constructs an empty loopback fabric. maxPending <= 0 uses
// DefaultMaxPending.
func NewFabric(maxPending int) *Fabric {
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	return &Fabric{
		maxPending: maxPending,
		nodes:      make(map[PeerAddr]*node),
		recvWait:   make(map[Tag]mqWaiter),
		sendWait:   make(map[Tag]mqPosted),
	}
}

// Bind registers a domain's AM handler and returns its Capability handle.
// Binding an address that is already bound replaces its handler on the
// existing node, so a Conn returned by an earlier Bind stays valid.
func (f *Fabric) Bind(addr PeerAddr, handler AMHandler) *Conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.nodes[addr]; ok {
		n.mu.Lock()
		n.handler = handler
		n.mu.Unlock()
		return &Conn{fabric: f, self: n}
	}
	n := &node{addr: addr, handler: handler}
	f.nodes[addr] = n
	return &Conn{fabric: f, self: n}
}

func (f *Fabric) nodeFor(addr PeerAddr) *node {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nodes[addr]
}

// Progress drains one domain's inbound AM queue, invoking its registered
// handler synchronously for each message. This is the transport-driven AM
// handler upcall context from spec.md §5.
func (f *Fabric) Progress(addr PeerAddr) int {
	n := f.nodeFor(addr)
	if n == nil {
		return 0
	}
	n.mu.Lock()
	msgs := n.inbox
	n.inbox = nil
	n.mu.Unlock()

	for _, m := range msgs {
		n.handler(m.from, m.args, m.payload)
	}
	return len(msgs)
}

// Conn is one domain's bound handle onto a Fabric, implementing Capability.
type Conn struct {
	fabric *Fabric
	self   *node
}

func (c *Conn) EPAddrContext() PeerAddr { return c.self.addr }

func (c *Conn) AMRequestShort(peer PeerAddr, args wire.Args, payload []byte) error {
	return c.fabric.deliver(c.self.addr, peer, args, payload, false)
}

func (c *Conn) AMReplyShort(peer PeerAddr, args wire.Args, payload []byte) error {
	return c.fabric.deliver(c.self.addr, peer, args, payload, true)
}

func (f *Fabric) deliver(from, to PeerAddr, args wire.Args, payload []byte, reply bool) error {
	n := f.nodeFor(to)
	if n == nil {
		return ErrBusy
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.inbox) >= f.maxPending {
		return ErrBusy
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	n.inbox = append(n.inbox, amMsg{from: from, args: args, payload: cp, reply: reply})
	return nil
}

func (c *Conn) MQISend(peer PeerAddr, tag Tag, buf []byte, ctx interface{}) error {
	f := c.fabric
	f.mu.Lock()
	defer f.mu.Unlock()

	if w, ok := f.recvWait[tag]; ok {
		delete(f.recvWait, tag)
		n := copy(w.buf, buf)
		// peer is the receiver's address as seen by this sender; it gets
		// its own (earlier-posted) ctx back, not the sender's ctx.
		f.completeLocked(peer, MQCompletion{Tag: tag, Len: n, Ctx: w.ctx})
		f.completeLocked(c.self.addr, MQCompletion{Tag: tag, Len: n, Ctx: ctx})
		return nil
	}
	f.sendWait[tag] = mqPosted{peer: c.self.addr, buf: buf, ctx: ctx}
	return nil
}

func (c *Conn) MQIRecv(tag Tag, buf []byte, ctx interface{}) error {
	f := c.fabric
	f.mu.Lock()
	defer f.mu.Unlock()

	if s, ok := f.sendWait[tag]; ok {
		delete(f.sendWait, tag)
		n := copy(buf, s.buf)
		f.completeLocked(c.self.addr, MQCompletion{Tag: tag, Len: n, Ctx: ctx})
		f.completeLocked(s.peer, MQCompletion{Tag: tag, Len: n, Ctx: s.ctx})
		return nil
	}
	f.recvWait[tag] = mqWaiter{buf: buf, ctx: ctx}
	return nil
}

// completeLocked appends a completion to addr's node. Caller holds f.mu.
func (f *Fabric) completeLocked(addr PeerAddr, ev MQCompletion) {
	n := f.nodes[addr]
	if n == nil {
		return
	}
	n.mu.Lock()
	n.done = append(n.done, ev)
	n.mu.Unlock()
}

// Poll drains this connection's completed MQ operations without blocking.
func (c *Conn) Poll() []MQCompletion {
	n := c.self
	n.mu.Lock()
	defer n.mu.Unlock()
	done := n.done
	n.done = nil
	return done
}
