package sockring

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func bindFd(fd int, sa syscall.Sockaddr) error {
	return syscall.Bind(fd, sa)
}

func listenFd(fd int) error {
	return syscall.Listen(fd, syscall.SOMAXCONN)
}

func closeFd(fd int) {
	if fd > 0 {
		_ = syscall.Close(fd)
	}
}

func setNonblocking(fd int, nonblocking bool) error {
	if fd <= 0 {
		return nil
	}
	return syscall.SetNonblock(fd, nonblocking)
}

func setTCPNoDelay(fd int, on bool) error {
	if fd <= 0 {
		return nil
	}
	v := 0
	if on {
		v = 1
	}
	return syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, v)
}

// closeAndDetach releases slot.fd and lands the socket in the fully
// detached NotConnected state, mirroring _socket_close
// (original_source/network/socket.c:565-595): close the fd, free both
// addresses, and set SOCKETSTATE_NOTCONNECTED unconditionally. Every
// "(close)" transition in spec.md S4.4 resolves through this, not a bare
// state assignment.
func closeAndDetach(rec *socketRecord, slot *baseSlot) {
	if slot.fd > 0 {
		closeFd(slot.fd)
		slot.fd = -1
	}
	slot.state = NotConnected
	if rec != nil {
		rec.clearAddrs()
	}
}

// kernelReadable reports how many bytes the kernel currently has
// buffered for fd, via the same FIONREAD ioctl
// original_source/network/socket.c uses to size available_read's
// OS-side contribution.
func kernelReadable(fd int) int {
	n, err := unix.IoctlGetInt(fd, unix.FIONREAD)
	if err != nil {
		return 0
	}
	return n
}
