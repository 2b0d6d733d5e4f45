package transport

import (
	"context"
	"net"
	"sync"
)

// MockTransport is a test double for Transport interface.
//
// This mock records all Send() calls for verification in tests,
// enabling unit testing of querier without real network sockets.
//
// T025: For testing, make T012 and T017 pass
type MockTransport struct {
	mu        sync.Mutex
	sendCalls []SendCall
	closed    bool
	queue     []queuedReceive
}

// SendCall records a single Send() invocation.
type SendCall struct {
	Packet []byte
	Dest   net.Addr
}

type queuedReceive struct {
	data []byte
	src  net.Addr
	err  error
}

// NewMockTransport creates a new mock transport for testing.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		sendCalls: make([]SendCall, 0),
	}
}

// QueueReceive arranges for the next Receive() call to return (data, src, err).
func (m *MockTransport) QueueReceive(data []byte, src net.Addr, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, queuedReceive{data: data, src: src, err: err})
}

// Send records the call for verification.
//
// T017: MockTransport.Send() records calls for verification
func (m *MockTransport) Send(_ context.Context, packet []byte, dest net.Addr) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Record the call
	m.sendCalls = append(m.sendCalls, SendCall{
		Packet: append([]byte(nil), packet...), // Copy to avoid aliasing
		Dest:   dest,
	})

	return nil
}

// Receive returns the next datagram queued via QueueReceive, if any;
// otherwise it blocks until ctx is done, mirroring a real transport's
// behavior of not returning data that hasn't arrived.
func (m *MockTransport) Receive(ctx context.Context) ([]byte, net.Addr, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return next.data, next.src, next.err
	}
	m.mu.Unlock()

	<-ctx.Done()
	return nil, nil, ctx.Err()
}

// Close marks the transport as closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// SendCalls returns all recorded Send() calls.
//
// This allows tests to verify:
// - Number of Send() calls
// - Packet contents
// - Destination addresses
//
// T017: Verification helper for tests
func (m *MockTransport) SendCalls() []SendCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Return a copy to avoid race conditions
	calls := make([]SendCall, len(m.sendCalls))
	copy(calls, m.sendCalls)
	return calls
}
