package sockring

import (
	"errors"
	"sync"
	"syscall"

	libatm "github.com/nabbar/golib/atomic"
)

// Runtime bundles a handle table, a base slot pool and the capability
// probe behind a single value, matching spec.md S4.8's module lifecycle
// (Init/Finalize/IsInitialized/SupportsIPv4/SupportsIPv6/Config).
// Re-Init on an already-initialized Runtime is idempotent: it tears
// down the previous table/pool and builds fresh ones rather than
// erroring, mirroring network_initialize's own re-entrancy in
// original_source/network/network.c.
type Runtime struct {
	mu   sync.Mutex
	cfg  Config
	init bool

	table *handleTable
	pool  *slotPool
	bus   *channelBus

	supportsIPv4 bool
	supportsIPv6 bool
}

// NewRuntime constructs an independent Runtime. Most callers use the
// package-level Init/Finalize wrappers over a shared default instance
// instead; NewRuntime exists for tests and for callers who want more
// than one independently-sized pool in the same process.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// Init allocates the handle table and base slot pool and probes local
// address-family support. It is idempotent: calling it again replaces
// the previous state after implicitly finalizing it.
func (rt *Runtime) Init(cfg Config) error {
	cfg = cfg.withDefaults()
	if cfg.MaxSockets <= 0 {
		return newError(KindOutOfMemory, 0, errNonPositiveMaxSockets)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.init {
		rt.finalizeLocked()
	}

	rt.cfg = cfg
	rt.table = newHandleTable(cfg.MaxSockets)
	rt.pool = newSlotPool(cfg.MaxSockets)
	rt.bus = newChannelBus(cfg.EventQueueSize)
	rt.supportsIPv4 = probeFamily(syscall.AF_INET)
	rt.supportsIPv6 = probeFamily(syscall.AF_INET6)
	rt.init = true

	logInfo(cfg.Logger, "runtime initialized",
		"max_sockets", cfg.MaxSockets,
		"ipv4", rt.supportsIPv4,
		"ipv6", rt.supportsIPv6,
	)
	return nil
}

// Finalize closes every fd still held by a base slot, then releases
// the handle table and base slot pool. Records still live at Finalize
// time are dropped without running their per-record destruction.
func (rt *Runtime) Finalize() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.finalizeLocked()
}

func (rt *Runtime) finalizeLocked() {
	if !rt.init {
		return
	}
	for idx := range rt.pool.slots {
		if fd := rt.pool.slots[idx].fd; fd > 0 {
			_ = syscall.Close(fd)
		}
	}
	rt.table = nil
	rt.pool = nil
	rt.bus = nil
	rt.init = false
}

func (rt *Runtime) IsInitialized() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.init
}

func (rt *Runtime) SupportsIPv4() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.supportsIPv4
}

func (rt *Runtime) SupportsIPv6() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.supportsIPv6
}

func (rt *Runtime) Config() Config {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.cfg
}

// Events returns the channel the default event bus posts Hangup
// events to. Reading it is optional: Post never blocks on a reader.
func (rt *Runtime) Events() <-chan Event {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.bus == nil {
		return nil
	}
	return rt.bus.Events()
}

// onRecordFreed is the handleTable release callback: it closes the
// fd, returns the base slot to the pool, and reports the destruction
// to the configured Metrics, mirroring socket_destroy's teardown order
// in original_source/network/socket.c (close fd, deallocate base,
// then free the object itself).
func (rt *Runtime) onRecordFreed(rec *socketRecord) {
	idx := int(rec.slot)
	if slot := rt.pool.get(idx); slot != nil && slot.fd > 0 {
		_ = syscall.Close(slot.fd)
	}
	rt.pool.release(idx)
	rec.slot = -1
	rt.cfg.Metrics.SocketDestroyed()
}

// probeFamily mirrors network_initialize's capability probe in
// original_source/network/network.c: open and immediately close a
// datagram socket in the given family, treating success as support.
func probeFamily(family int) bool {
	fd, err := syscall.Socket(family, syscall.SOCK_DGRAM, 0)
	if err != nil {
		return false
	}
	_ = syscall.Close(fd)
	return true
}

var errNonPositiveMaxSockets = errors.New("sockring: MaxSockets must be positive")

// defaultRuntime is the package-level Runtime the free functions
// (Init, Finalize, IsInitialized, ...) operate on. The pointer is held
// behind the generic atomic.Value from nabbar-golib/atomic and stored
// once, at package initialization; Init and Finalize mutate that same
// Runtime in place under its own mutex.
var defaultRuntimeHolder = func() libatm.Value[*Runtime] {
	v := libatm.NewValue[*Runtime]()
	v.Store(NewRuntime())
	return v
}()

func defaultRuntime() *Runtime {
	return defaultRuntimeHolder.Load()
}

// Init initializes the package-level default Runtime (spec.md S4.8).
func Init(cfg Config) error {
	return defaultRuntime().Init(cfg)
}

// Finalize tears down the package-level default Runtime.
func Finalize() {
	defaultRuntime().Finalize()
}

// IsInitialized reports whether the package-level default Runtime is
// initialized.
func IsInitialized() bool {
	return defaultRuntime().IsInitialized()
}

// SupportsIPv4 reports whether the default Runtime's capability probe
// found local IPv4 support.
func SupportsIPv4() bool {
	return defaultRuntime().SupportsIPv4()
}

// SupportsIPv6 reports whether the default Runtime's capability probe
// found local IPv6 support.
func SupportsIPv6() bool {
	return defaultRuntime().SupportsIPv6()
}

// GetConfig returns the configuration the default Runtime was last
// initialized with.
func GetConfig() Config {
	return defaultRuntime().Config()
}
