package sockring

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/go-kit/log"
)

// socketRecord is the handle-table payload: everything about a socket
// that is not part of the fixed-capacity base slot (which instead
// lives in baseSlot, indexed separately). Split this way because the
// original C keeps an object_t/socket_t pair for the same reason: the
// base slot array is fixed-size and reused, while the record carries
// variable-size state (buffers, addresses) best left to the allocator.
type socketRecord struct {
	id    Handle
	rt    *Runtime
	slot  int32 // index into rt.pool.slots, -1 once released
	proto protocolHooks

	family int // syscall.AF_INET or syscall.AF_INET6

	mu         sync.Mutex
	localAddr  net.Addr
	remoteAddr net.Addr

	inBuf  *ringBuffer
	outBuf *ringBuffer

	bytesRead    int64
	bytesWritten int64

	log log.Logger
}

func (r *socketRecord) bumpRead(n int) {
	atomic.AddInt64(&r.bytesRead, int64(n))
	if r.rt != nil {
		r.rt.cfg.Metrics.BytesRead(n)
	}
}

func (r *socketRecord) bumpWritten(n int) {
	atomic.AddInt64(&r.bytesWritten, int64(n))
	if r.rt != nil {
		r.rt.cfg.Metrics.BytesWritten(n)
	}
}

func (r *socketRecord) setLocalAddr(a net.Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.localAddr == nil {
		r.localAddr = a
	}
}

func (r *socketRecord) setRemoteAddr(a net.Addr) {
	r.mu.Lock()
	r.remoteAddr = a
	r.mu.Unlock()
}

// clearAddrs unconditionally drops both addresses, unlike setLocalAddr's
// infer-once guard. _socket_close frees both addresses outright
// (original_source/network/socket.c:565-595), so close paths must call
// this instead of setLocalAddr(nil).
func (r *socketRecord) clearAddrs() {
	r.mu.Lock()
	r.localAddr = nil
	r.remoteAddr = nil
	r.mu.Unlock()
}

func (r *socketRecord) getLocalAddr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.localAddr
}

func (r *socketRecord) getRemoteAddr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remoteAddr
}
