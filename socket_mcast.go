package sockring

import (
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/go-sockring/sockring/mcast"
)

// SetMulticastGroup joins a UDP socket to the multicast group at
// hostport, honoring allowLoopback the way spec.md S6's
// set_multicast_group(handle, addr, allow_loopback) contract requires.
// It only accepts IPv4 groups (spec.md S9 Open Question (c)).
func (rt *Runtime) SetMulticastGroup(h Handle, hostport string, allowLoopback bool) bool {
	rec := rt.table.acquire(h)
	if rec == nil {
		return false
	}
	defer rt.table.release(h, rt.onRecordFreed)

	slot := rt.pool.get(int(rec.slot))
	if slot == nil || slot.fd <= 0 {
		return false
	}

	groupAddr, err := resolveUDPAddr(rec.family, hostport)
	if err != nil {
		logWarn(rec.log, "multicast: bad group address", "handle", h.String(), "err", err)
		return false
	}

	conn, err := udpConnFromFd(slot.fd)
	if err != nil {
		logWarn(rec.log, "multicast: fd adoption failed", "handle", h.String(), "err", err)
		return false
	}
	defer conn.Close()

	if err := mcast.Group(conn, groupAddr, nil, allowLoopback); err != nil {
		logWarn(rec.log, "multicast: join failed", "handle", h.String(), "err", err)
		return false
	}
	return true
}

// udpConnFromFd adopts a raw fd (already owned by the slot pool) as a
// *net.UDPConn without taking ownership of the fd's lifetime: the
// os.File this goes through wraps a duplicate of fd and is closed
// immediately, and net.FileConn keeps its own duplicate, so neither
// closing the os.File nor closing the returned conn closes the
// original fd.
func udpConnFromFd(fd int) (*net.UDPConn, error) {
	dfd, err := syscall.Dup(fd)
	if err != nil {
		return nil, err
	}
	f := os.NewFile(uintptr(dfd), "sockring-udp")
	defer f.Close()

	c, err := net.FileConn(f)
	if err != nil {
		return nil, err
	}
	udpConn, ok := c.(*net.UDPConn)
	if !ok {
		c.Close()
		return nil, fmt.Errorf("sockring: fd %d is not a UDP socket", fd)
	}
	return udpConn, nil
}
