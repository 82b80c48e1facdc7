package sockring

import (
	"net"
)

// CreateTCP allocates a new TCP socket in the given family and returns
// its handle, or the zero Handle on failure (spec.md S6). The socket
// starts blocking, without TCP_NODELAY, in NotConnected state.
func (rt *Runtime) CreateTCP(family Family) Handle {
	return rt.create(int(family), tcpHooks)
}

// CreateUDP allocates a new UDP socket in the given family.
func (rt *Runtime) CreateUDP(family Family) Handle {
	return rt.create(int(family), udpHooks)
}

func (rt *Runtime) create(family int, hooks protocolHooks) Handle {
	rt.mu.Lock()
	table, pool, cfg := rt.table, rt.pool, rt.cfg
	rt.mu.Unlock()
	if table == nil || pool == nil {
		return 0
	}

	rec := &socketRecord{
		proto:  hooks,
		log:    cfg.Logger,
		inBuf:  newRingBuffer(cfg.ReadBufferSize),
		outBuf: newRingBuffer(cfg.WriteBufferSize),
	}
	rec.rt = rt

	h := table.reserve(rec)
	if !h.Valid() {
		return 0
	}
	rec.id = h

	slotIdx, aerr := pool.allocate(uint64(h))
	if aerr != nil {
		table.release(h, nil)
		return 0
	}
	rec.slot = int32(slotIdx)

	slot := pool.get(slotIdx)
	slot.flags |= flagBlocking
	slot.state = NotConnected

	if err := hooks.open(rec, slot, family); err != nil {
		pool.release(slotIdx)
		table.release(h, nil)
		return 0
	}

	cfg.Metrics.SocketCreated()
	logDebug(withHandle(cfg.Logger, h), "socket created", "family", Family(family).String())
	return h
}

// Destroy releases h without requiring the caller to have acquired it
// first: a raw lookup (peek) followed by a single release, mirroring
// socket_destroy's refcount decrement in
// original_source/network/socket.c (which does not call
// _socket_lookup before decrementing).
func (rt *Runtime) Destroy(h Handle) bool {
	return rt.table.destroy(h, rt.onRecordFreed)
}

// IsSocket reports whether h currently resolves to a live socket,
// without taking out a reference.
func (rt *Runtime) IsSocket(h Handle) bool {
	return rt.table.peek(h) != nil
}

// Bind binds the socket to a local "host:port" address.
func (rt *Runtime) Bind(h Handle, hostport string) bool {
	rec := rt.table.acquire(h)
	if rec == nil {
		return false
	}
	defer rt.table.release(h, rt.onRecordFreed)

	slot := rt.pool.get(int(rec.slot))
	if slot == nil {
		return false
	}

	addr, err := resolveTCPAddr(rec.family, hostport)
	if err != nil {
		logWarn(rec.log, "bind: address resolution failed", "handle", h.String(), "err", err)
		return false
	}
	sa, err := sockaddrFromNetAddr(addr)
	if err != nil {
		return false
	}
	if err := bindFd(slot.fd, sa); err != nil {
		logWarn(rec.log, "bind failed", "handle", h.String(), "err", err)
		return false
	}
	rec.setLocalAddr(addr)
	return true
}

// Connect attempts to connect the socket to a remote "host:port"
// address within timeoutMS milliseconds (spec.md S4.6, S6). A
// negative timeoutMS blocks indefinitely.
func (rt *Runtime) Connect(h Handle, hostport string, timeoutMS int) bool {
	rec := rt.table.acquire(h)
	if rec == nil {
		return false
	}
	defer rt.table.release(h, rt.onRecordFreed)

	slot := rt.pool.get(int(rec.slot))
	if slot == nil {
		return false
	}
	if slot.state == Connected {
		logWarn(rec.log, "connect: already connected", "handle", h.String())
		return false
	}
	if rec.proto.connect == nil {
		return false
	}

	addr, err := resolveTCPAddr(rec.family, hostport)
	if err != nil {
		return false
	}

	slot.state = Connecting
	cerr := rec.proto.connect(rec, slot, addr, timeoutMS)
	if cerr != nil {
		logWarn(rec.log, "connect failed", "handle", h.String(), "sub", cerr.Sub.String(), "err", cerr.Error())
		return false
	}
	return true
}

// Listen transitions a bound socket into Listening state.
func (rt *Runtime) Listen(h Handle) bool {
	rec := rt.table.acquire(h)
	if rec == nil {
		return false
	}
	defer rt.table.release(h, rt.onRecordFreed)

	slot := rt.pool.get(int(rec.slot))
	if slot == nil {
		return false
	}
	if err := listenFd(slot.fd); err != nil {
		logWarn(rec.log, "listen failed", "handle", h.String(), "err", err)
		return false
	}
	slot.state = Listening
	return true
}

// Accept waits up to timeoutMS milliseconds for an incoming connection
// on a listening socket and returns a new handle for it, or the zero
// Handle on timeout/failure.
func (rt *Runtime) Accept(h Handle, timeoutMS int) Handle {
	rec := rt.table.acquire(h)
	if rec == nil {
		return 0
	}
	defer rt.table.release(h, rt.onRecordFreed)

	slot := rt.pool.get(int(rec.slot))
	if slot == nil || rec.proto.accept == nil {
		return 0
	}

	slot.flags |= flagConnectionPending
	nfd, remote, aerr := rec.proto.accept(rec, slot, timeoutMS)
	if aerr != nil {
		return 0
	}

	child := &socketRecord{
		proto:  rec.proto,
		log:    rec.log,
		rt:     rt,
		family: rec.family,
		inBuf:  newRingBuffer(rt.cfg.ReadBufferSize),
		outBuf: newRingBuffer(rt.cfg.WriteBufferSize),
	}
	ch := rt.table.reserve(child)
	if !ch.Valid() {
		closeFd(nfd)
		return 0
	}
	child.id = ch

	slotIdx, aerr2 := rt.pool.allocate(uint64(ch))
	if aerr2 != nil {
		rt.table.release(ch, nil)
		closeFd(nfd)
		return 0
	}
	child.slot = int32(slotIdx)

	childSlot := rt.pool.get(slotIdx)
	childSlot.fd = nfd
	childSlot.flags = slot.flags &^ (flagConnectionPending | flagReflush)
	childSlot.state = Connected
	child.setRemoteAddr(remote)

	rt.cfg.Metrics.SocketCreated()
	return ch
}

// Close releases the fd, frees both addresses and lands the socket in
// NotConnected, leaving the handle itself valid until Destroy is called
// (spec.md S4.7 "Resource release"). The base slot is not returned to
// the pool: it stays assigned to the handle, with no fd, until Destroy.
func (rt *Runtime) Close(h Handle) {
	rec := rt.table.acquire(h)
	if rec == nil {
		return
	}
	defer rt.table.release(h, rt.onRecordFreed)

	slot := rt.pool.get(int(rec.slot))
	if slot == nil {
		return
	}
	closeAndDetach(rec, slot)
}

// State polls the socket's state machine (pollState), posting a Hangup
// event if that poll observes one, and returns the resulting state.
func (rt *Runtime) State(h Handle) State {
	rec := rt.table.acquire(h)
	if rec == nil {
		return Disconnected
	}
	defer rt.table.release(h, rt.onRecordFreed)

	slot := rt.pool.get(int(rec.slot))
	if slot == nil {
		return Disconnected
	}
	state, hangup := pollState(rec, slot)
	if hangup {
		rt.cfg.Metrics.HangupPosted()
		if rt.bus != nil {
			rt.bus.Post(EventHangup, h)
		}
	}
	return state
}

func (rt *Runtime) AddressLocal(h Handle) net.Addr {
	rec := rt.table.acquire(h)
	if rec == nil {
		return nil
	}
	defer rt.table.release(h, rt.onRecordFreed)
	return rec.getLocalAddr()
}

func (rt *Runtime) AddressRemote(h Handle) net.Addr {
	rec := rt.table.acquire(h)
	if rec == nil {
		return nil
	}
	defer rt.table.release(h, rt.onRecordFreed)
	return rec.getRemoteAddr()
}

func (rt *Runtime) setFlag(h Handle, bit socketFlag, on bool) bool {
	rec := rt.table.acquire(h)
	if rec == nil {
		return false
	}
	defer rt.table.release(h, rt.onRecordFreed)
	slot := rt.pool.get(int(rec.slot))
	if slot == nil {
		return false
	}
	if on {
		slot.flags |= bit
	} else {
		slot.flags &^= bit
	}
	switch bit {
	case flagBlocking:
		_ = setNonblocking(slot.fd, !on)
	case flagTCPNoDelay:
		_ = setTCPNoDelay(slot.fd, on)
	}
	return true
}

func (rt *Runtime) getFlag(h Handle, bit socketFlag) bool {
	rec := rt.table.acquire(h)
	if rec == nil {
		return false
	}
	defer rt.table.release(h, rt.onRecordFreed)
	slot := rt.pool.get(int(rec.slot))
	if slot == nil {
		return false
	}
	return slot.flags.has(bit)
}

func (rt *Runtime) SetBlocking(h Handle, on bool) bool      { return rt.setFlag(h, flagBlocking, on) }
func (rt *Runtime) Blocking(h Handle) bool                  { return rt.getFlag(h, flagBlocking) }
func (rt *Runtime) SetReuseAddress(h Handle, on bool) bool  { return rt.setFlag(h, flagReuseAddr, on) }
func (rt *Runtime) ReuseAddress(h Handle) bool               { return rt.getFlag(h, flagReuseAddr) }
func (rt *Runtime) SetReusePort(h Handle, on bool) bool     { return rt.setFlag(h, flagReusePort, on) }
func (rt *Runtime) ReusePort(h Handle) bool                  { return rt.getFlag(h, flagReusePort) }
func (rt *Runtime) SetTCPDelay(h Handle, on bool) bool {
	// SetTCPDelay(true) means "allow Nagle's algorithm" i.e. NOT
	// no-delay, matching tcp_socket_set_delay's naming in
	// original_source/network/tcp.c (delay=true keeps Nagle enabled).
	return rt.setFlag(h, flagTCPNoDelay, !on)
}
func (rt *Runtime) TCPDelay(h Handle) bool { return !rt.getFlag(h, flagTCPNoDelay) }

func (rt *Runtime) SetPolled(h Handle, on bool) bool { return rt.setFlag(h, flagPolled, on) }
func (rt *Runtime) Polled(h Handle) bool              { return rt.getFlag(h, flagPolled) }

// Stream returns a byte-stream façade for h, constructing a new Stream
// value on every call; the record keeps no reference to it. A Stream
// holds only the runtime and the handle, so any two Streams for the
// same handle share the same buffers and state. It returns nil for an
// invalid handle.
func (rt *Runtime) Stream(h Handle) *Stream {
	if !rt.IsSocket(h) {
		return nil
	}
	return newStream(rt, h)
}

// --- package-level wrappers over the default Runtime ---

func CreateTCP(family Family) Handle                { return defaultRuntime().CreateTCP(family) }
func CreateUDP(family Family) Handle                { return defaultRuntime().CreateUDP(family) }
func Destroy(h Handle) bool                          { return defaultRuntime().Destroy(h) }
func IsSocket(h Handle) bool                         { return defaultRuntime().IsSocket(h) }
func Bind(h Handle, hostport string) bool            { return defaultRuntime().Bind(h, hostport) }
func Connect(h Handle, hostport string, timeoutMS int) bool {
	return defaultRuntime().Connect(h, hostport, timeoutMS)
}
func Listen(h Handle) bool                   { return defaultRuntime().Listen(h) }
func Accept(h Handle, timeoutMS int) Handle  { return defaultRuntime().Accept(h, timeoutMS) }
func Close(h Handle)                         { defaultRuntime().Close(h) }
func StateOf(h Handle) State                 { return defaultRuntime().State(h) }
func AddressLocal(h Handle) net.Addr         { return defaultRuntime().AddressLocal(h) }
func AddressRemote(h Handle) net.Addr        { return defaultRuntime().AddressRemote(h) }
func StreamOf(h Handle) *Stream              { return defaultRuntime().Stream(h) }
