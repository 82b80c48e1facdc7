package sockring

import (
	"net"
	"testing"
)

func TestStateStrings(t *testing.T) {
	cases := map[State]string{
		NotConnected: "not-connected",
		Connecting:   "connecting",
		Connected:    "connected",
		Listening:    "listening",
		Disconnected: "disconnected",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}

// TestPollStateIdempotentOnNotConnected covers spec.md S8's round-trip
// property: poll_state is idempotent on the NotConnected terminal
// state. Disconnected is NOT terminal (spec.md:85 drains it to
// NotConnected once the in-buffer empties) so it is covered separately
// below.
func TestPollStateIdempotentOnNotConnected(t *testing.T) {
	rec := &socketRecord{}
	slot := &baseSlot{state: NotConnected, fd: -1}

	got1, hangup1 := pollState(rec, slot)
	got2, hangup2 := pollState(rec, slot)

	if got1 != NotConnected || got2 != NotConnected {
		t.Errorf("pollState on NotConnected mutated to %v/%v", got1, got2)
	}
	if hangup1 || hangup2 {
		t.Error("pollState on NotConnected should never report hangup")
	}
}

// TestPollStateDisconnectedDrainsToNotConnectedOnceBufferEmpty covers
// spec.md:85: "Disconnected | in-buffer fully drained | (close) ->
// NotConnected". Once drained, closeAndDetach fires: the fd is
// released and both addresses are cleared.
func TestPollStateDisconnectedDrainsToNotConnectedOnceBufferEmpty(t *testing.T) {
	rec := &socketRecord{inBuf: newRingBuffer(16)}
	rec.setLocalAddr(&net.TCPAddr{})
	slot := &baseSlot{state: Disconnected, fd: -1}

	state, hangup := pollState(rec, slot)

	if state != NotConnected {
		t.Fatalf("state = %v, want NotConnected", state)
	}
	if hangup {
		t.Error("draining to NotConnected is not itself a hangup event")
	}
	if rec.getLocalAddr() != nil {
		t.Error("closeAndDetach should clear the local address")
	}

	// The new terminal state is itself idempotent.
	state2, hangup2 := pollState(rec, slot)
	if state2 != NotConnected || hangup2 {
		t.Fatalf("state,hangup = %v,%v, want NotConnected,false", state2, hangup2)
	}
}

// TestPollStateDisconnectedStaysUntilBufferDrains covers the other half
// of spec.md:85: a Disconnected socket with unread buffered data must
// not be closed out from under a caller still draining it.
func TestPollStateDisconnectedStaysUntilBufferDrains(t *testing.T) {
	rec := &socketRecord{inBuf: newRingBuffer(16)}
	copy(rec.inBuf.writeSlot(4), []byte("data"))
	rec.inBuf.appendFromOS(4)
	slot := &baseSlot{state: Disconnected, fd: -1}

	state, hangup := pollState(rec, slot)

	if state != Disconnected || hangup {
		t.Fatalf("state,hangup = %v,%v, want Disconnected,false while buffer is unread", state, hangup)
	}
}

// TestPollStateConnectedHangupFallsThroughToDisconnected guards the
// deliberate switch-fallthrough original_source/network/socket.c's
// _socket_poll_state performs: a Connected socket whose hangup flag is
// already set transitions straight to Disconnected within this single
// call, not a subsequent one.
func TestPollStateConnectedHangupFallsThroughToDisconnected(t *testing.T) {
	rec := &socketRecord{}
	slot := &baseSlot{state: Connected, flags: flagHangupPending, fd: -1}

	state, hangup := pollState(rec, slot)

	if state != Disconnected {
		t.Fatalf("state = %v, want Disconnected", state)
	}
	if !hangup {
		t.Fatal("expected hangup to be reported in the same call")
	}
}

func TestPollStateConnectedWithoutHangupStaysConnected(t *testing.T) {
	rec := &socketRecord{}
	slot := &baseSlot{state: Connected, fd: -1}

	state, hangup := pollState(rec, slot)

	if state != Connected || hangup {
		t.Fatalf("state,hangup = %v,%v, want Connected,false", state, hangup)
	}
}

// TestPollStateConnectedFatalHangupClosesToNotConnected covers spec.md:84:
// a fatal recv/send errno (as opposed to a graceful zero-length read)
// closes the socket outright instead of merely staging it through
// Disconnected.
func TestPollStateConnectedFatalHangupClosesToNotConnected(t *testing.T) {
	rec := &socketRecord{inBuf: newRingBuffer(16)}
	rec.setRemoteAddr(&net.TCPAddr{})
	slot := &baseSlot{state: Connected, flags: flagHangupFatal, fd: -1}

	state, hangup := pollState(rec, slot)

	if state != NotConnected {
		t.Fatalf("state = %v, want NotConnected", state)
	}
	if !hangup {
		t.Error("expected hangup to be reported")
	}
	if rec.getRemoteAddr() != nil {
		t.Error("closeAndDetach should clear the remote address")
	}
}

// TestPollStateConnectingErrorClosesToNotConnected covers spec.md:82:
// CONNECTING + poll observes an error -> (close) -> NotConnected, not a
// bare Disconnected state flip.
func TestPollStateConnectingErrorClosesToNotConnected(t *testing.T) {
	rec := &socketRecord{}
	rec.setLocalAddr(&net.TCPAddr{})
	// An invalid fd makes pollConnectComplete's getsockopt fail, which
	// pollState treats as a connect error.
	slot := &baseSlot{state: Connecting, fd: -1}

	state, hangup := pollState(rec, slot)

	if state != NotConnected {
		t.Fatalf("state = %v, want NotConnected", state)
	}
	if !hangup {
		t.Error("expected hangup to be reported")
	}
	if rec.getLocalAddr() != nil {
		t.Error("closeAndDetach should clear the local address")
	}
}
