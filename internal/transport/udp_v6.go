package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/joshuafuller/beacon/internal/errors"
	"github.com/joshuafuller/beacon/internal/network"
	"github.com/joshuafuller/beacon/internal/protocol"
)

// UDPv6Transport implements Transport for IPv6 mDNS multicast (ff02::fb),
// the IPv6 counterpart of UDPv4Transport. Per RFC 6762 §5, an IPv6-capable
// host joins this link-local group in addition to, not instead of,
// 224.0.0.251.
//
// This replaces an earlier no-op stub kept only to prove the Transport
// interface could be implemented a second way; it now carries real traffic
// through internal/network's per-interface multicast join.
type UDPv6Transport struct {
	conn net.PacketConn
}

// NewUDPv6Transport creates a UDP IPv6 multicast transport bound to mDNS
// port 5353, joined on ifaces.
func NewUDPv6Transport(ifaces []net.Interface) (*UDPv6Transport, error) {
	conn, err := network.CreateIPv6Socket(ifaces)
	if err != nil {
		return nil, err
	}
	return &UDPv6Transport{conn: conn}, nil
}

// Send transmits a packet to the specified destination address.
func (t *UDPv6Transport) Send(ctx context.Context, packet []byte, dest net.Addr) error {
	select {
	case <-ctx.Done():
		return &errors.NetworkError{Operation: "send query", Err: ctx.Err(), Details: "context canceled before send"}
	default:
	}

	n, err := t.conn.WriteTo(packet, dest)
	if err != nil {
		return &errors.NetworkError{
			Operation: "send query",
			Err:       err,
			Details:   fmt.Sprintf("failed to send %d bytes to %s", len(packet), dest),
		}
	}
	if n != len(packet) {
		return &errors.NetworkError{
			Operation: "send query",
			Err:       fmt.Errorf("partial write: %d/%d bytes", n, len(packet)),
			Details:   "incomplete transmission",
		}
	}
	return nil
}

// Receive waits for an incoming packet, respecting context cancellation/deadline.
func (t *UDPv6Transport) Receive(ctx context.Context) ([]byte, net.Addr, error) {
	select {
	case <-ctx.Done():
		return nil, nil, &errors.NetworkError{Operation: "receive response", Err: ctx.Err(), Details: "context canceled before receive"}
	default:
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetReadDeadline(deadline); err != nil {
			return nil, nil, &errors.NetworkError{Operation: "set read timeout", Err: err, Details: fmt.Sprintf("failed to set deadline %v", deadline)}
		}
	}

	bufPtr := GetBuffer()
	defer PutBuffer(bufPtr)
	buffer := *bufPtr

	n, srcAddr, err := t.conn.ReadFrom(buffer)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, nil, &errors.NetworkError{Operation: "receive response", Err: err, Details: "timeout"}
		}
		return nil, nil, &errors.NetworkError{Operation: "receive response", Err: err, Details: "failed to read from socket"}
	}

	result := make([]byte, n)
	copy(result, buffer[:n])
	return result, srcAddr, nil
}

// Close releases network resources.
func (t *UDPv6Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	if err := t.conn.Close(); err != nil {
		return &errors.NetworkError{Operation: "close socket", Err: err, Details: "failed to close UDP connection"}
	}
	return nil
}

// MulticastGroupIPv6 returns the mDNS IPv6 multicast destination address.
func MulticastGroupIPv6() *net.UDPAddr {
	return &net.UDPAddr{
		IP:   net.ParseIP(protocol.MulticastAddrIPv6),
		Port: protocol.Port,
	}
}
