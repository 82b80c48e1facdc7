// Package mcast wires a UDP socket into an IPv4 multicast group. It is
// the "multicast collaborator" spec.md S6 describes alongside the core
// socket/stream runtime: set_multicast_group(handle, addr,
// allow_loopback) needs a join-group and an optional loopback
// suppression, both of which golang.org/x/net/ipv4 exposes directly on
// top of a net.PacketConn rather than requiring raw setsockopt calls.
package mcast

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

// DefaultTTL matches the original's fixed multicast TTL of 1 (link
// local only); original_source/network/socket.c never exposes a TTL
// knob at the socket layer, so this package keeps it fixed rather than
// inventing a new public parameter spec.md never calls for.
const DefaultTTL = 1

// Group joins conn to the multicast group at groupAddr on the given
// network interface (nil for the default), and sets whether locally
// transmitted packets loop back to local listeners.
func Group(conn *net.UDPConn, groupAddr *net.UDPAddr, iface *net.Interface, allowLoopback bool) error {
	if groupAddr == nil || groupAddr.IP == nil {
		return fmt.Errorf("mcast: group address required")
	}
	if ip4 := groupAddr.IP.To4(); ip4 == nil {
		return fmt.Errorf("mcast: only IPv4 groups are supported, got %v", groupAddr.IP)
	}

	p := ipv4.NewPacketConn(conn)
	if err := p.JoinGroup(iface, &net.UDPAddr{IP: groupAddr.IP}); err != nil {
		return fmt.Errorf("mcast: join group: %w", err)
	}
	if err := p.SetMulticastTTL(DefaultTTL); err != nil {
		return fmt.Errorf("mcast: set ttl: %w", err)
	}
	if err := p.SetMulticastLoopback(allowLoopback); err != nil {
		return fmt.Errorf("mcast: set loopback: %w", err)
	}
	return nil
}

// Leave departs the multicast group previously joined with Group.
func Leave(conn *net.UDPConn, groupAddr *net.UDPAddr, iface *net.Interface) error {
	p := ipv4.NewPacketConn(conn)
	if err := p.LeaveGroup(iface, &net.UDPAddr{IP: groupAddr.IP}); err != nil {
		return fmt.Errorf("mcast: leave group: %w", err)
	}
	return nil
}
