package sockring

import (
	"fmt"
	"net"
	"strconv"
	"syscall"
)

// resolveTCPAddr turns a "host:port" string into a *net.TCPAddr,
// inferring the address family the way _socket_store_address_local
// infers it from the sockaddr the OS hands back: prefer whatever the
// string itself specifies, falling back to the wildcard address for
// the given family when host is empty.
func resolveTCPAddr(family int, hostport string) (*net.TCPAddr, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	if host == "" {
		if family == familyInet6 {
			host = "::"
		} else {
			host = "0.0.0.0"
		}
	}
	ip := net.ParseIP(host)
	if ip == nil {
		resolved, err := net.ResolveIPAddr("ip", host)
		if err != nil {
			return nil, err
		}
		ip = resolved.IP
	}
	return &net.TCPAddr{IP: ip, Port: port}, nil
}

func resolveUDPAddr(family int, hostport string) (*net.UDPAddr, error) {
	tcp, err := resolveTCPAddr(family, hostport)
	if err != nil {
		return nil, err
	}
	return &net.UDPAddr{IP: tcp.IP, Port: tcp.Port}, nil
}

// sockaddrFromNetAddr converts a *net.TCPAddr/*net.UDPAddr into the
// syscall.Sockaddr shape the raw connect()/bind() calls need, the Go
// equivalent of _socket_store_address_local's struct sockaddr_storage
// population.
func sockaddrFromNetAddr(a net.Addr) (syscall.Sockaddr, error) {
	var ip net.IP
	var port int
	switch v := a.(type) {
	case *net.TCPAddr:
		ip, port = v.IP, v.Port
	case *net.UDPAddr:
		ip, port = v.IP, v.Port
	default:
		return nil, fmt.Errorf("sockring: unsupported address type %T", a)
	}

	if ip4 := ip.To4(); ip4 != nil {
		var sa syscall.SockaddrInet4
		sa.Port = port
		copy(sa.Addr[:], ip4)
		return &sa, nil
	}
	ip6 := ip.To16()
	if ip6 == nil {
		return nil, fmt.Errorf("sockring: invalid IP %v", ip)
	}
	var sa syscall.SockaddrInet6
	sa.Port = port
	copy(sa.Addr[:], ip6)
	return &sa, nil
}

// netAddrFromSockaddr is sockaddrFromNetAddr's inverse, used to turn
// the sockaddr accept() hands back into a *net.TCPAddr.
func netAddrFromSockaddr(sa syscall.Sockaddr) net.Addr {
	switch v := sa.(type) {
	case *syscall.SockaddrInet4:
		ip := make(net.IP, 4)
		copy(ip, v.Addr[:])
		return &net.TCPAddr{IP: ip, Port: v.Port}
	case *syscall.SockaddrInet6:
		ip := make(net.IP, 16)
		copy(ip, v.Addr[:])
		return &net.TCPAddr{IP: ip, Port: v.Port}
	default:
		return nil
	}
}
