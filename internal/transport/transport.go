// Package transport implements the UDP multicast socket layer mDNS runs
// over, independent of IPv4/IPv6 and of platform.
package transport

import (
	"context"
	"net"

	"github.com/joshuafuller/beacon/internal/network"
)

// Transport sends and receives raw DNS wire-format packets over an mDNS
// multicast group. Implementations: UDPv4Transport, UDPv6Transport (real
// traffic), MockTransport (tests).
//
// The var _ Transport assertions below (and in transport_test.go) check at
// compile time that all three implementations satisfy it.
type Transport interface {
	// Send transmits packet to dest, respecting ctx cancellation.
	Send(ctx context.Context, packet []byte, dest net.Addr) error
	// Receive waits for the next inbound packet, respecting ctx
	// cancellation/deadline, and returns it along with its source address.
	Receive(ctx context.Context) ([]byte, net.Addr, error)
	// Close releases the underlying socket.
	Close() error
}

var (
	_ Transport = (*UDPv4Transport)(nil)
	_ Transport = (*UDPv6Transport)(nil)
	_ Transport = (*MockTransport)(nil)
)

// DefaultInterfaces returns the multicast-capable interfaces a transport
// should join by default, excluding loopback, down, VPN, and container
// interfaces. Callers that need interface selection (e.g. for
// NewUDPv4Transport) use this instead of importing internal/network
// directly, keeping socket-selection policy behind the transport layer.
func DefaultInterfaces() ([]net.Interface, error) {
	return network.DefaultInterfaces()
}
