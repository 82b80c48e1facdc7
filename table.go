package sockring

import (
	"sync"
)

// tableEntry is one handle slot: a socketRecord pointer plus the
// generation that must match the requesting handle's generation bits,
// and a reference count that implements the retain/release discipline
// original_source/network/socket.c splits across _socket_lookup
// (retain, used internally by every operation) and socket_destroy
// (release, using a raw lookup that does NOT retain).
type tableEntry struct {
	generation uint32
	record     *socketRecord
	refs       int32
}

// handleTable is the package's analogue of the C objectmap: a
// fixed-capacity array of slots, all guarded by a single mutex, reused
// by generation once freed.
type handleTable struct {
	mu      sync.Mutex
	entries []tableEntry
	free    []uint32 // indices currently unused, LIFO
}

func newHandleTable(capacity int) *handleTable {
	t := &handleTable{
		entries: make([]tableEntry, capacity),
		free:    make([]uint32, capacity),
	}
	for i := range t.free {
		t.free[i] = uint32(capacity - 1 - i)
	}
	return t
}

func (t *handleTable) capacity() int {
	return len(t.entries)
}

// reserve claims a free index, stores rec with an initial refcount of
// 1 (the caller's own reference), and returns the new Handle. It
// returns the zero Handle if the table is full.
func (t *handleTable) reserve(rec *socketRecord) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.free) == 0 {
		return 0
	}
	idx := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]

	e := &t.entries[idx]
	e.generation++
	if e.generation == 0 {
		e.generation = 1
	}
	e.record = rec
	e.refs = 1
	return newHandle(idx, e.generation)
}

// acquire looks h up and, if it resolves to a live record, increments
// its refcount before returning it. This is the Go analogue of
// _socket_lookup: every operation that touches a socket must call
// acquire, do its work, then call release exactly once.
func (t *handleTable) acquire(h Handle) *socketRecord {
	if t == nil || !h.Valid() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := h.index()
	if int(idx) >= len(t.entries) {
		return nil
	}
	e := &t.entries[idx]
	if e.generation != h.generation() || e.record == nil || e.refs <= 0 {
		return nil
	}
	e.refs++
	return e.record
}

// peek looks h up without retaining a reference. It exists for the
// public Destroy/IsSocket entry points, which in the C source call
// objectmap_lookup directly rather than _socket_lookup so that
// destroying a socket does not first take out a reference that would
// then need an extra release.
func (t *handleTable) peek(h Handle) *socketRecord {
	if t == nil || !h.Valid() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := h.index()
	if int(idx) >= len(t.entries) {
		return nil
	}
	e := &t.entries[idx]
	if e.generation != h.generation() || e.record == nil || e.refs <= 0 {
		return nil
	}
	return e.record
}

// release decrements h's refcount, freeing the slot for reuse (and
// invoking onFree, if non-nil, with the record being freed) once it
// reaches zero. Every acquire and every reserve must be matched by
// exactly one release.
func (t *handleTable) release(h Handle, onFree func(*socketRecord)) {
	if t == nil || !h.Valid() {
		return
	}
	t.mu.Lock()
	idx := h.index()
	if int(idx) >= len(t.entries) {
		t.mu.Unlock()
		return
	}
	e := &t.entries[idx]
	if e.generation != h.generation() || e.record == nil {
		t.mu.Unlock()
		return
	}
	e.refs--
	var freed *socketRecord
	if e.refs <= 0 {
		freed = e.record
		e.record = nil
		e.refs = 0
		t.free = append(t.free, idx)
	}
	t.mu.Unlock()

	if freed != nil && onFree != nil {
		onFree(freed)
	}
}

// destroy is the release-without-a-prior-acquire path used by the
// public Destroy operation: a raw peek followed by a single release,
// mirroring socket_destroy's refcount decrement in the C source (which
// does not call _socket_lookup first).
func (t *handleTable) destroy(h Handle, onFree func(*socketRecord)) bool {
	if t.peek(h) == nil {
		return false
	}
	t.release(h, onFree)
	return true
}

// liveCount reports how many handles are currently allocated.
func (t *handleTable) liveCount() int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int32(len(t.entries) - len(t.free))
}
