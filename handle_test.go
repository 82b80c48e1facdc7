package sockring

import "testing"

func TestHandlePacking(t *testing.T) {
	cases := []struct {
		index, gen uint32
	}{
		{0, 1},
		{1, 1},
		{42, 7},
		{0xffffffff, 0xffffffff},
	}
	for _, c := range cases {
		h := newHandle(c.index, c.gen)
		if got := h.index(); got != c.index {
			t.Errorf("index(%d,%d) = %d, want %d", c.index, c.gen, got, c.index)
		}
		if got := h.generation(); got != c.gen {
			t.Errorf("generation(%d,%d) = %d, want %d", c.index, c.gen, got, c.gen)
		}
	}
}

func TestHandleZeroIsInvalid(t *testing.T) {
	var h Handle
	if h.Valid() {
		t.Error("zero Handle should not be Valid")
	}
	if newHandle(0, 1).index() != 0 {
		t.Error("newHandle(0, 1) should keep index 0")
	}
	nonZero := newHandle(0, 1)
	if !nonZero.Valid() {
		t.Error("handle with non-zero generation should be Valid even at index 0")
	}
}

func TestHandleStringDoesNotPanic(t *testing.T) {
	var zero Handle
	if got := zero.String(); got != "handle(nil)" {
		t.Errorf("zero.String() = %q, want handle(nil)", got)
	}
	h := newHandle(3, 5)
	if got := h.String(); got == "" {
		t.Error("String() should not be empty for a valid handle")
	}
}
