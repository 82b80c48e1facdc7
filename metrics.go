package sockring

// Metrics is the ambient instrumentation seam: the core calls these
// hooks at the same points original_source/network/socket.c would log
// a counter increment, but never depends on any particular backend.
// The sockring/metrics subpackage provides a Prometheus-backed
// implementation; NoopMetrics is the default when none is configured.
type Metrics interface {
	SocketCreated()
	SocketDestroyed()
	BytesRead(n int)
	BytesWritten(n int)
	HangupPosted()
}

// NoopMetrics discards every observation. It is the default Metrics
// implementation so callers who don't care about instrumentation pay
// nothing for it beyond an interface call.
type NoopMetrics struct{}

func (NoopMetrics) SocketCreated()     {}
func (NoopMetrics) SocketDestroyed()   {}
func (NoopMetrics) BytesRead(int)      {}
func (NoopMetrics) BytesWritten(int)   {}
func (NoopMetrics) HangupPosted()      {}
