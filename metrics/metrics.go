// Package metrics provides a Prometheus-backed implementation of the
// sockring.Metrics seam, the way nabbar-golib's own monitor/prometheus
// packages expose client_golang collectors behind a small interface
// rather than having callers reach for the registry directly.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector implements sockring.Metrics by registering five counters
// against the given prometheus.Registerer. Callers wire it in via
// sockring.Config{Metrics: collector}.
type Collector struct {
	socketsCreated   prometheus.Counter
	socketsDestroyed prometheus.Counter
	bytesRead        prometheus.Counter
	bytesWritten     prometheus.Counter
	hangups          prometheus.Counter
}

// New constructs and registers a Collector under the "sockring"
// namespace. reg may be nil, in which case prometheus.DefaultRegisterer
// is used.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		socketsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sockring", Name: "sockets_created_total",
			Help: "Total sockets created.",
		}),
		socketsDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sockring", Name: "sockets_destroyed_total",
			Help: "Total sockets destroyed.",
		}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sockring", Name: "bytes_read_total",
			Help: "Total bytes read across all sockets.",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sockring", Name: "bytes_written_total",
			Help: "Total bytes written across all sockets.",
		}),
		hangups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sockring", Name: "hangups_total",
			Help: "Total Hangup events posted.",
		}),
	}
	reg.MustRegister(c.socketsCreated, c.socketsDestroyed, c.bytesRead, c.bytesWritten, c.hangups)
	return c
}

func (c *Collector) SocketCreated()   { c.socketsCreated.Inc() }
func (c *Collector) SocketDestroyed() { c.socketsDestroyed.Inc() }
func (c *Collector) BytesRead(n int)  { c.bytesRead.Add(float64(n)) }
func (c *Collector) BytesWritten(n int) {
	c.bytesWritten.Add(float64(n))
}
func (c *Collector) HangupPosted() { c.hangups.Inc() }
