// Package network provides network interface filtering and management.
package network

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/joshuafuller/beacon/internal/errors"
	"github.com/joshuafuller/beacon/internal/protocol"
)

// CreateIPv4Socket creates a UDP multicast socket bound to mDNS port 5353
// and joins 224.0.0.251 on each of ifaces, per RFC 6762 §5, §11.
//
// Previously two parallel implementations of this existed: this function
// (originally CreateSocket, always joining every system interface) and
// internal/transport.UDPv4Transport (a simpler net.ListenMulticastUDP bind
// with no interface selection). This version replaces both: it keeps this
// package's richer ListenConfig + per-interface join behavior but accepts
// the caller's interface list instead of enumerating every interface
// itself, so the responder/querier's per-interface enable/disable lifecycle
// (spec.md §6) can control multicast group membership directly.
func CreateIPv4Socket(ifaces []net.Interface) (net.PacketConn, error) {
	lc := net.ListenConfig{Control: PlatformControl}

	conn, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("0.0.0.0:%d", protocol.Port))
	if err != nil {
		return nil, &errors.NetworkError{
			Operation: "create socket",
			Err:       err,
			Details:   fmt.Sprintf("failed to bind to port %d (is Avahi/Bonjour running without SO_REUSEPORT?)", protocol.Port),
		}
	}

	p := ipv4.NewPacketConn(conn)
	group := net.IPv4(224, 0, 0, 251)

	joined := 0
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		ifaceCopy := iface
		if err := p.JoinGroup(&ifaceCopy, &net.UDPAddr{IP: group}); err != nil {
			continue
		}
		joined++
	}
	if joined == 0 {
		_ = conn.Close()
		return nil, &errors.NetworkError{
			Operation: "join multicast group",
			Err:       fmt.Errorf("no usable interfaces"),
			Details:   "failed to join 224.0.0.251 on any requested interface",
		}
	}

	if err := p.SetMulticastTTL(255); err != nil {
		_ = conn.Close()
		return nil, &errors.NetworkError{Operation: "set multicast TTL", Err: err, Details: "failed to set TTL=255"}
	}
	if err := p.SetMulticastLoopback(true); err != nil {
		_ = conn.Close()
		return nil, &errors.NetworkError{Operation: "set multicast loopback", Err: err, Details: "failed to enable loopback"}
	}
	if udpConn, ok := conn.(*net.UDPConn); ok {
		if err := udpConn.SetReadBuffer(65536); err != nil {
			_ = conn.Close()
			return nil, &errors.NetworkError{Operation: "configure socket", Err: err, Details: "failed to set read buffer size"}
		}
	}

	return conn, nil
}

// CreateIPv6Socket creates a UDP multicast socket bound to mDNS port 5353
// and joins ff02::fb on each of ifaces, the IPv6 counterpart of
// CreateIPv4Socket.
func CreateIPv6Socket(ifaces []net.Interface) (net.PacketConn, error) {
	lc := net.ListenConfig{Control: PlatformControl}

	conn, err := lc.ListenPacket(context.Background(), "udp6", fmt.Sprintf("[::]:%d", protocol.Port))
	if err != nil {
		return nil, &errors.NetworkError{
			Operation: "create socket",
			Err:       err,
			Details:   fmt.Sprintf("failed to bind to [::]:%d", protocol.Port),
		}
	}

	p := ipv6.NewPacketConn(conn)
	group := net.ParseIP(protocol.MulticastAddrIPv6)

	joined := 0
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		ifaceCopy := iface
		if err := p.JoinGroup(&ifaceCopy, &net.UDPAddr{IP: group}); err != nil {
			continue
		}
		joined++
	}
	if joined == 0 {
		_ = conn.Close()
		return nil, &errors.NetworkError{
			Operation: "join multicast group",
			Err:       fmt.Errorf("no usable interfaces"),
			Details:   "failed to join ff02::fb on any requested interface",
		}
	}

	if err := p.SetMulticastHopLimit(255); err != nil {
		_ = conn.Close()
		return nil, &errors.NetworkError{Operation: "set multicast hop limit", Err: err, Details: "failed to set hop limit=255"}
	}
	if err := p.SetMulticastLoopback(true); err != nil {
		_ = conn.Close()
		return nil, &errors.NetworkError{Operation: "set multicast loopback", Err: err, Details: "failed to enable loopback"}
	}

	return conn, nil
}
