package sockring

import "net"

// protocolHooks is the per-transport vtable original_source/network/tcp.c
// installs into socket_base_t (open_fn/connect_fn/read_fn/write_fn).
// TCP wires all five hooks (the four above plus accept); UDP only wires
// open/read/write, with no connect or accept. Both run through the
// record's ring buffers when driven by a Stream.
type protocolHooks struct {
	open    func(rec *socketRecord, slot *baseSlot, family int) error
	connect func(rec *socketRecord, slot *baseSlot, addr net.Addr, timeoutMS int) *Error
	accept  func(rec *socketRecord, slot *baseSlot, timeoutMS int) (int, net.Addr, *Error)
	read    func(rec *socketRecord, slot *baseSlot, wanted int) (int, *Error)
	write   func(rec *socketRecord, slot *baseSlot, p []byte) (int, *Error)
}
