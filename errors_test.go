package sockring

import (
	"errors"
	"testing"
)

func TestKindErrorMatchesByKindOnly(t *testing.T) {
	e1 := newError(KindRemoteClosed, newHandle(1, 1), nil)
	e2 := newError(KindRemoteClosed, newHandle(2, 9), nil)

	if !errors.Is(e1, KindError(KindRemoteClosed)) {
		t.Error("errors.Is should match on Kind regardless of handle")
	}
	if errors.Is(e2, KindError(KindTransportFatal)) {
		t.Error("errors.Is should not match a different Kind")
	}
}

func TestIsFatalTransportErrno(t *testing.T) {
	cases := map[string]bool{
		"read tcp 127.0.0.1:1234: connection reset by peer": true,
		"write tcp 127.0.0.1:1234: broken pipe":              true,
		"read tcp 127.0.0.1:1234: i/o timeout":                true,
		"dial tcp 127.0.0.1:1234: connection refused":        true,
		"some unrelated error":                                false,
	}
	for msg, want := range cases {
		if got := isFatalTransportErrno(errors.New(msg)); got != want {
			t.Errorf("isFatalTransportErrno(%q) = %v, want %v", msg, got, want)
		}
	}
	if isFatalTransportErrno(nil) {
		t.Error("nil error should never classify as fatal")
	}
}
