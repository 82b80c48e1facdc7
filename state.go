package sockring

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// State is a socket's position in the connection state machine
// (spec.md S4.4).
type State uint8

const (
	NotConnected State = iota
	Connecting
	Connected
	Listening
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Listening:
		return "listening"
	case Disconnected:
		return "disconnected"
	default:
		return "not-connected"
	}
}

// pollState is the only legitimate way to observe an OS-driven state
// transition. It mirrors _socket_poll_state in
// original_source/network/socket.c. The one explicit fallthrough runs
// from Connecting into Connected: a connect that completes and a hangup
// flag that is already set are both observed in the same call. A
// Connected socket found to have hung up gracefully lands in
// Disconnected; the Disconnected drain check runs on a later call.
func pollState(rec *socketRecord, slot *baseSlot) (State, bool) {
	hangup := false

	switch slot.state {
	case Connecting:
		done, ok, err := pollConnectComplete(slot.fd)
		if !done {
			return Connecting, false
		}
		if err != nil || !ok {
			// spec.md:82: a CONNECTING socket whose poll observes an
			// error lands (close) -> NotConnected, exactly as
			// _socket_poll_state's CONNECTING-error case calls
			// _socket_close directly (original_source/network/socket.c
			// :776-782) rather than merely flipping a state field.
			closeAndDetach(rec, slot)
			hangup = true
			return slot.state, hangup
		}
		slot.state = Connected
		fallthrough

	case Connected:
		switch {
		case slot.flags.has(flagHangupFatal):
			// spec.md:84: recv/send errors (reset, broken pipe, timeout)
			// close the socket outright -> NotConnected, matching
			// _tcp_socket_buffer_read's immediate _socket_close call on
			// a fatal errno (original_source/network/tcp.c:522).
			closeAndDetach(rec, slot)
			hangup = true
		case slot.flags.has(flagHangupPending):
			// spec.md:83: an orderly remote close (recv returns 0) only
			// stages the socket through Disconnected; the fd is not
			// released until the in-buffer has been drained (see the
			// Disconnected case below).
			slot.state = Disconnected
			hangup = true
		}

	case Disconnected:
		// spec.md:85: once the in-buffer has been fully drained, a
		// Disconnected socket completes its close and lands
		// NotConnected. A record with nothing left to say it has
		// unread data (nil inBuf) is treated as already drained.
		drained := rec == nil || rec.inBuf == nil || rec.inBuf.buffered() == 0
		if drained {
			closeAndDetach(rec, slot)
		}

	case Listening, NotConnected:
		// No OS-driven transition originates from these states; a
		// Listening socket only ever leaves via explicit Destroy, and
		// NotConnected has nothing left to poll.
	}

	return slot.state, hangup
}

// pollConnectComplete drains the non-blocking connect started on fd,
// inspecting SO_ERROR exactly as _tcp_socket_connect does after its
// select() returns writable. done is false if the connect is still in
// flight (select would still block).
func pollConnectComplete(fd int) (done bool, ok bool, err error) {
	soerr, gerr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if gerr != nil {
		return true, false, gerr
	}
	if soerr != 0 {
		return true, false, errors.New(syscall.Errno(soerr).Error())
	}
	writable, serr := waitWritable(fd, 0)
	if serr != nil {
		return true, false, serr
	}
	if !writable {
		return false, false, nil
	}
	return true, true, nil
}
