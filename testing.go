package rma

import (
	"sync"

	"github.com/spud93/rma/internal/transport"
	"github.com/spud93/rma/internal/wire"
)

// MockCapability is a Capability implementation for tests that records
// every call instead of performing any transport work, following the
// teacher's MockBackend call-count-tracking pattern.
type MockCapability struct {
	Self PeerAddr

	mu             sync.Mutex
	amRequestCalls int
	amReplyCalls   int
	mqSendCalls    int
	mqRecvCalls    int
	LastAMRequest  []wire.Args
	LastAMReply    []wire.Args
	FailAMRequest  error
	FailMQISend    error
	FailMQIRecv    error
}

// NewMockCapability constructs a MockCapability bound to self.
func NewMockCapability(self PeerAddr) *MockCapability {
	return &MockCapability{Self: self}
}

func (m *MockCapability) EPAddrContext() PeerAddr { return m.Self }

func (m *MockCapability) AMRequestShort(peer PeerAddr, args wire.Args, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.amRequestCalls++
	m.LastAMRequest = append(m.LastAMRequest, args)
	return m.FailAMRequest
}

func (m *MockCapability) AMReplyShort(peer PeerAddr, args wire.Args, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.amReplyCalls++
	m.LastAMReply = append(m.LastAMReply, args)
	return nil
}

func (m *MockCapability) MQISend(peer PeerAddr, tag transport.Tag, buf []byte, ctx interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mqSendCalls++
	return m.FailMQISend
}

func (m *MockCapability) MQIRecv(tag transport.Tag, buf []byte, ctx interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mqRecvCalls++
	return m.FailMQIRecv
}

func (m *MockCapability) Poll() []transport.MQCompletion { return nil }

// CallCounts reports how many times each Capability method has been
// invoked, for test assertions.
func (m *MockCapability) CallCounts() (amRequest, amReply, mqSend, mqRecv int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.amRequestCalls, m.amReplyCalls, m.mqSendCalls, m.mqRecvCalls
}

var _ Capability = (*MockCapability)(nil)
