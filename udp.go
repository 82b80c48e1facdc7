package sockring

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// udpHooks is the thin UDP protocolHooks vtable (spec.md S9 design
// note): unlike TCP there is no accept/connect pivot, and read and
// write move one datagram at a time. udpRead replaces the contents of
// rec.inBuf with the datagram it received; udpWrite sends whatever the
// caller hands it, which for a Stream is the drained out-buffer.
var udpHooks = protocolHooks{
	open:  udpOpen,
	read:  udpRead,
	write: udpWrite,
}

func udpOpen(rec *socketRecord, slot *baseSlot, family int) error {
	fd, err := syscall.Socket(family, syscall.SOCK_DGRAM, syscall.IPPROTO_UDP)
	if err != nil {
		return err
	}
	if err := syscall.SetNonblock(fd, !slot.flags.has(flagBlocking)); err != nil {
		_ = syscall.Close(fd)
		return err
	}
	if slot.flags.has(flagReuseAddr) {
		_ = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
	}
	if slot.flags.has(flagReusePort) {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	}
	slot.fd = fd
	rec.family = family
	return nil
}

// udpRead performs a single recvfrom and reports the sender, storing
// it as the record's remote address the way a connected UDP socket
// would track its peer for subsequent writes.
func udpRead(rec *socketRecord, slot *baseSlot, wanted int) (int, *Error) {
	buf := make([]byte, wanted)
	n, from, err := syscall.Recvfrom(slot.fd, buf, 0)
	if err != nil {
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
			return 0, nil
		}
		return 0, newError(KindTransportFatal, rec.id, err)
	}
	if from != nil {
		rec.setRemoteAddr(netAddrFromSockaddr(from))
	}
	rec.inBuf.reset()
	copy(rec.inBuf.buf, buf[:n])
	rec.inBuf.appendFromOS(n)
	rec.bumpRead(n)
	return n, nil
}

func udpWrite(rec *socketRecord, slot *baseSlot, p []byte) (int, *Error) {
	remote := rec.getRemoteAddr()
	if remote == nil {
		n, err := syscall.Write(slot.fd, p)
		if err != nil {
			return 0, newError(KindTransportFatal, rec.id, err)
		}
		rec.bumpWritten(n)
		return n, nil
	}
	sa, err := sockaddrFromNetAddr(remote)
	if err != nil {
		return 0, newError(KindTransportFatal, rec.id, err)
	}
	if err := syscall.Sendto(slot.fd, p, 0, sa); err != nil {
		return 0, newError(KindTransportFatal, rec.id, err)
	}
	rec.bumpWritten(len(p))
	return len(p), nil
}
