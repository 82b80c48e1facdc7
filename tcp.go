package sockring

import (
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// tcpHooks is the TCP protocolHooks vtable, grounded directly on
// original_source/network/tcp.c's _tcp_socket_allocate wiring
// (open_fn=_tcp_socket_open, connect_fn=_tcp_socket_connect,
// read_fn=_tcp_socket_buffer_read, write_fn=_tcp_socket_buffer_write).
var tcpHooks = protocolHooks{
	open:    tcpOpen,
	connect: tcpConnect,
	accept:  tcpAccept,
	read:    tcpRead,
	write:   tcpWrite,
}

func tcpOpen(rec *socketRecord, slot *baseSlot, family int) error {
	fd, err := syscall.Socket(family, syscall.SOCK_STREAM, syscall.IPPROTO_TCP)
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
	if slot.flags.has(flagTCPNoDelay) {
		_ = syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1)
	}
	slot.fd = fd
	rec.family = family
	return nil
}

// tcpConnect is the blocking-mode pivot original_source/network/tcp.c
// uses in _tcp_socket_connect: flip to non-blocking, issue connect(),
// select() with the caller's timeout, inspect SO_ERROR, then restore
// the socket's original blocking mode before returning. This lets a
// caller configured for blocking sockets still get a bounded connect
// instead of hanging on a dead peer forever.
func tcpConnect(rec *socketRecord, slot *baseSlot, addr net.Addr, timeoutMS int) *Error {
	wasBlocking := slot.flags.has(flagBlocking)
	if wasBlocking {
		if err := syscall.SetNonblock(slot.fd, true); err != nil {
			return newConnectError(ConnectSubKindOther, rec.id, err)
		}
		defer func() {
			_ = syscall.SetNonblock(slot.fd, false)
		}()
	}

	sa, err := sockaddrFromNetAddr(addr)
	if err != nil {
		return newConnectError(ConnectSubKindOther, rec.id, err)
	}

	connErr := syscall.Connect(slot.fd, sa)
	if connErr == nil {
		slot.state = Connected
		rec.setRemoteAddr(addr)
		if lsa, err := syscall.Getsockname(slot.fd); err == nil {
			rec.setLocalAddr(netAddrFromSockaddr(lsa))
		}
		return nil
	}
	if connErr != syscall.EINPROGRESS && connErr != syscall.EALREADY {
		return classifyConnectErr(rec.id, connErr)
	}

	ok, serr := waitWritable(slot.fd, timeoutMS)
	if serr != nil {
		return newConnectError(ConnectSubKindSelectError, rec.id, serr)
	}
	if !ok {
		// spec.md:82: CONNECTING + poll observes an error -> (close) ->
		// NotConnected, mirroring _socket_close in
		// original_source/network/socket.c:776-782 rather than merely
		// staging the state.
		closeAndDetach(rec, slot)
		return newConnectError(ConnectSubKindTimeout, rec.id, nil)
	}

	soerr, gerr := unix.GetsockoptInt(slot.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if gerr != nil {
		return newConnectError(ConnectSubKindSelectError, rec.id, gerr)
	}
	if soerr != 0 {
		closeAndDetach(rec, slot)
		return classifyConnectErr(rec.id, syscall.Errno(soerr))
	}

	slot.state = Connected
	rec.setRemoteAddr(addr)
	if lsa, err := syscall.Getsockname(slot.fd); err == nil {
		rec.setLocalAddr(netAddrFromSockaddr(lsa))
	}
	return nil
}

func classifyConnectErr(h Handle, errno error) *Error {
	if errno == syscall.ECONNREFUSED {
		return newConnectError(ConnectSubKindRefused, h, errno)
	}
	return newConnectError(ConnectSubKindOther, h, errno)
}

// tcpAccept mirrors tcp_socket_accept's select-then-accept pattern and
// its unconditional clearing of SOCKETFLAG_CONNECTION_PENDING once the
// attempt resolves, whether it resolved to a new connection or not.
func tcpAccept(rec *socketRecord, slot *baseSlot, timeoutMS int) (int, net.Addr, *Error) {
	defer func() { slot.flags &^= flagConnectionPending }()

	ok, serr := waitReadable(slot.fd, timeoutMS)
	if serr != nil {
		return -1, nil, newError(KindAcceptFailed, rec.id, serr)
	}
	if !ok {
		return -1, nil, newConnectError(ConnectSubKindTimeout, rec.id, nil)
	}

	nfd, sa, err := syscall.Accept(slot.fd)
	if err != nil {
		return -1, nil, newError(KindAcceptFailed, rec.id, err)
	}
	_ = syscall.SetNonblock(nfd, !slot.flags.has(flagBlocking))
	if slot.flags.has(flagTCPNoDelay) {
		_ = syscall.SetsockoptInt(nfd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1)
	}
	return nfd, netAddrFromSockaddr(sa), nil
}

// tcpRead fills rec.inBuf from the OS up to the ring's available free
// space and returns how many bytes the ring now holds; copying them out
// to the caller is left to Stream.Read. It mirrors
// _tcp_socket_buffer_read's wrap-then-retry-once behavior, but as a
// bounded two-iteration loop rather than a recursive call, since the
// wrap can only ever produce one additional contiguous run.
func tcpRead(rec *socketRecord, slot *baseSlot, wanted int) (int, *Error) {
	for iter := 0; iter < 2; iter++ {
		if rec.inBuf.buffered() >= wanted {
			break
		}
		free := rec.inBuf.freeForWrite()
		if free <= 0 {
			break
		}
		n, err := syscall.Read(slot.fd, rec.inBuf.writeSlot(free))
		if err != nil {
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				break
			}
			if isFatalTransportErrno(err) {
				// spec.md:84: a fatal recv errno closes the socket
				// outright (-> NotConnected on the next poll), distinct
				// from the graceful n==0 case below which only stages
				// it through Disconnected.
				slot.flags |= flagHangupFatal
				return 0, newError(KindTransportFatal, rec.id, err)
			}
			return 0, newError(KindTransportFatal, rec.id, err)
		}
		if n == 0 {
			// Orderly remote close: original_source/network/tcp.c posts
			// NETWORKEVENT_HANGUP on a zero-length read rather than
			// surfacing it as a call-site error (spec.md S7). spec.md:83
			// stages this through Disconnected rather than closing the
			// fd immediately, unlike the fatal-errno case above.
			slot.flags |= flagHangupPending
			return 0, newError(KindRemoteClosed, rec.id, nil)
		}
		rec.inBuf.appendFromOS(n)
		rec.bumpRead(n)
	}
	return rec.inBuf.buffered(), nil
}

// tcpWrite drains rec.outBuf to the OS, setting flagReflush on a
// partial send the way _tcp_socket_buffer_write sets
// SOCKETFLAG_REFLUSH so the caller knows to retry the remaining bytes
// on the next Flush.
func tcpWrite(rec *socketRecord, slot *baseSlot, p []byte) (int, *Error) {
	total := 0
	for total < len(p) {
		n, err := syscall.Write(slot.fd, p[total:])
		if err != nil {
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				slot.flags |= flagReflush
				break
			}
			if isFatalTransportErrno(err) {
				// Same fatal-errno -> (close) -> NotConnected outcome as
				// tcpRead's fatal branch (spec.md:84).
				slot.flags |= flagHangupFatal
				return total, newError(KindTransportFatal, rec.id, err)
			}
			return total, newError(KindTransportFatal, rec.id, err)
		}
		total += n
		if n == 0 {
			break
		}
	}
	if total < len(p) {
		slot.flags |= flagReflush
	} else {
		slot.flags &^= flagReflush
	}
	rec.bumpWritten(total)
	return total, nil
}

func waitReadable(fd int, timeoutMS int) (bool, error) {
	return waitFor(fd, timeoutMS, true)
}

func waitWritable(fd int, timeoutMS int) (bool, error) {
	return waitFor(fd, timeoutMS, false)
}

func waitFor(fd int, timeoutMS int, read bool) (bool, error) {
	var fds unix.FdSet
	fds.Set(fd)

	var tv *unix.Timeval
	if timeoutMS >= 0 {
		t := unix.NsecToTimeval((time.Duration(timeoutMS) * time.Millisecond).Nanoseconds())
		tv = &t
	}

	var n int
	var err error
	if read {
		n, err = unix.Select(fd+1, &fds, nil, nil, tv)
	} else {
		n, err = unix.Select(fd+1, nil, &fds, nil, tv)
	}
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, err
	}
	return n > 0, nil
}
