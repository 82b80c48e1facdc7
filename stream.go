package sockring

import (
	"encoding/binary"
	"io"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
)

// Stream is the sequential, binary, little-endian byte-stream façade
// over a socket handle (spec.md S4.5). The record keeps no pointer to
// its Streams; a Stream references its record only by handle id, so
// the two never form a strong reference cycle (spec.md S9 design
// note) — lifetime is always resolved through the handle table.
type Stream struct {
	rt  *Runtime
	id  Handle
	log log.Logger
}

func newStream(rt *Runtime, id Handle) *Stream {
	return &Stream{rt: rt, id: id, log: rt.cfg.Logger}
}

// Order is the byte order every multi-byte Stream helper uses.
var Order = binary.LittleEndian

// Read drains up to len(dst) bytes from the in-buffer, requesting more
// from the OS via the protocol's read hook when the buffer falls
// short — unless the socket is polled and non-blocking, in which case
// filling the buffer is the external poller's job. It loops at most
// twice past the initial in-buffer drain, bounding how long a stalled
// peer can hold the caller (spec.md S4.5).
func (s *Stream) Read(dst []byte) (int, error) {
	rec := s.rt.table.acquire(s.id)
	if rec == nil {
		return 0, newError(KindInvalidHandle, s.id, nil)
	}
	defer s.rt.table.release(s.id, s.rt.onRecordFreed)

	slot := s.rt.pool.get(int(rec.slot))
	if slot == nil {
		return 0, newError(KindInvalidHandle, s.id, nil)
	}

	got := rec.inBuf.read(dst)
	if got >= len(dst) {
		return got, nil
	}
	if slot.flags.has(flagPolled) && !slot.flags.has(flagBlocking) {
		return got, nil
	}

	for iter := 0; iter < 2 && got < len(dst); iter++ {
		if _, err := rec.proto.read(rec, slot, len(dst)-got); err != nil {
			if got > 0 {
				break
			}
			return got, err
		}
		n := rec.inBuf.read(dst[got:])
		got += n
		if n == 0 {
			break
		}
	}

	if got < len(dst) {
		logWarn(s.log, "short read", "handle", s.id.String(), "want", len(dst), "got", got)
		pollState(rec, slot)
	}
	return got, nil
}

// Write copies src into the out-buffer, flushing synchronously
// whenever the out-buffer would overflow, and stops early if a flush
// observes the socket has left Connected (spec.md S4.5).
func (s *Stream) Write(src []byte) (int, error) {
	rec := s.rt.table.acquire(s.id)
	if rec == nil {
		return 0, newError(KindInvalidHandle, s.id, nil)
	}
	defer s.rt.table.release(s.id, s.rt.onRecordFreed)

	slot := s.rt.pool.get(int(rec.slot))
	if slot == nil {
		return 0, newError(KindInvalidHandle, s.id, nil)
	}

	written := 0
	for written < len(src) {
		free := rec.outBuf.freeForWrite()
		if free == 0 {
			if err := s.flushLocked(rec, slot); err != nil {
				return written, err
			}
			if slot.state != Connected {
				break
			}
			free = rec.outBuf.freeForWrite()
			if free == 0 {
				break
			}
		}
		chunk := len(src) - written
		if chunk > free {
			chunk = free
		}
		copy(rec.outBuf.writeSlot(chunk), src[written:written+chunk])
		rec.outBuf.appendFromOS(chunk)
		written += chunk
	}

	if err := s.flushLocked(rec, slot); err != nil && written == 0 {
		return 0, err
	}
	return written, nil
}

// Flush synchronously drains the out-buffer to the OS. A partial send
// leaves flagReflush set on the slot so the next Flush resumes it.
func (s *Stream) Flush() error {
	rec := s.rt.table.acquire(s.id)
	if rec == nil {
		return newError(KindInvalidHandle, s.id, nil)
	}
	defer s.rt.table.release(s.id, s.rt.onRecordFreed)

	slot := s.rt.pool.get(int(rec.slot))
	if slot == nil {
		return newError(KindInvalidHandle, s.id, nil)
	}
	return s.flushLocked(rec, slot)
}

func (s *Stream) flushLocked(rec *socketRecord, slot *baseSlot) error {
	pending := rec.outBuf.buffered()
	if pending == 0 {
		return nil
	}
	tmp := make([]byte, pending)
	rec.outBuf.read(tmp)
	n, err := rec.proto.write(rec, slot, tmp)
	if n < len(tmp) {
		// Partial send: put the undelivered tail back at the front of
		// the out-buffer so the next Flush resumes it.
		rec.outBuf.reset()
		leftover := tmp[n:]
		copy(rec.outBuf.writeSlot(len(leftover)), leftover)
		rec.outBuf.appendFromOS(len(leftover))
	}
	if err != nil {
		return err
	}
	return nil
}

// Eos reports end-of-stream: the state is neither Connected nor has an
// available fd, and both the in-buffer and any kernel-buffered bytes
// are empty (spec.md S4.5).
func (s *Stream) Eos() bool {
	rec := s.rt.table.acquire(s.id)
	if rec == nil {
		return true
	}
	defer s.rt.table.release(s.id, s.rt.onRecordFreed)

	slot := s.rt.pool.get(int(rec.slot))
	if slot == nil {
		return true
	}

	// _socket_eos in original_source/network/socket.c polls state
	// before deciding: a pending hangup the caller hasn't observed yet
	// must still count as end-of-stream once nothing is left to read.
	state, hangup := pollState(rec, slot)
	if hangup && s.rt.bus != nil {
		s.rt.cfg.Metrics.HangupPosted()
		s.rt.bus.Post(EventHangup, s.id)
	}

	disconnected := state != Connected || slot.fd <= 0
	if !disconnected {
		return false
	}
	if rec.inBuf.buffered() > 0 {
		return false
	}
	return kernelReadable(slot.fd) == 0
}

// AvailableRead returns in-buffer bytes plus anything the OS reports
// available on the fd right now.
func (s *Stream) AvailableRead() int {
	rec := s.rt.table.acquire(s.id)
	if rec == nil {
		return 0
	}
	defer s.rt.table.release(s.id, s.rt.onRecordFreed)

	slot := s.rt.pool.get(int(rec.slot))
	total := rec.inBuf.buffered()
	if slot != nil && slot.fd > 0 {
		total += kernelReadable(slot.fd)
	}
	return total
}

// BufferRead opportunistically refills the in-buffer. It is a no-op if
// polled, disconnected, or the buffer is already full.
func (s *Stream) BufferRead() {
	rec := s.rt.table.acquire(s.id)
	if rec == nil {
		return
	}
	defer s.rt.table.release(s.id, s.rt.onRecordFreed)

	slot := s.rt.pool.get(int(rec.slot))
	if slot == nil {
		return
	}
	if slot.flags.has(flagPolled) || slot.state != Connected {
		return
	}
	if rec.inBuf.freeForWrite() == 0 {
		return
	}
	_, _ = rec.proto.read(rec, slot, rec.inBuf.freeForWrite())
}

// Seek only supports forward discard from the current position
// (io.SeekCurrent with a non-negative delta); every other form fails,
// since sockets are not randomly seekable (spec.md S4.5).
func (s *Stream) Seek(delta int64, whence int) (int64, error) {
	if whence != io.SeekCurrent || delta < 0 {
		return 0, newError(KindUnsupported, s.id, nil)
	}
	discard := make([]byte, delta)
	n, err := s.Read(discard)
	return int64(n), err
}

// Truncate is a no-op: sockets have no size to shrink.
func (s *Stream) Truncate(int64) error { return nil }

// Size is always zero: sockets have no size.
func (s *Stream) Size() int64 { return 0 }

// Tell returns cumulative bytes read, monotonically nondecreasing over
// the stream's life.
func (s *Stream) Tell() int64 {
	rec := s.rt.table.acquire(s.id)
	if rec == nil {
		return 0
	}
	defer s.rt.table.release(s.id, s.rt.onRecordFreed)
	return atomic.LoadInt64(&rec.bytesRead)
}

// LastModified returns "now", used only by generic stream consumers
// that expect every stream-like type to report one.
func (s *Stream) LastModified() time.Time {
	return timeNow()
}

// timeNow is a seam over time.Now so tests can override it without
// reaching for a build tag.
var timeNow = time.Now
