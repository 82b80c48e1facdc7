package sockring

import (
	"github.com/go-kit/log"
	"gopkg.in/yaml.v3"
)

// Config bundles the knobs Init accepts. There is no persistent config
// file (spec.md S5: "Persistent state: none") — Config is constructed
// in-process and optionally dumped to YAML for diagnostics only, the
// way nabbar-golib's config packages marshal their structs for a debug
// endpoint without ever reading them back from disk.
type Config struct {
	// MaxSockets bounds both the handle table and the base slot pool
	// (spec.md S4.1/S4.2). Required; Init rejects a zero or negative
	// value.
	MaxSockets int `yaml:"max_sockets"`

	// ReadBufferSize/WriteBufferSize size each socket's ring buffers
	// (spec.md S4.3), for TCP and UDP sockets alike.
	ReadBufferSize  int `yaml:"read_buffer_size"`
	WriteBufferSize int `yaml:"write_buffer_size"`

	// EventQueueSize bounds the default EventBus's channel.
	EventQueueSize int `yaml:"event_queue_size"`

	// Logger receives structured log lines at Debug..Error. Defaults
	// to log.NewNopLogger() when nil.
	Logger log.Logger `yaml:"-"`

	// Metrics receives instrumentation callbacks. Defaults to
	// NoopMetrics{} when nil.
	Metrics Metrics `yaml:"-"`
}

const (
	defaultReadBufferSize  = 32 * 1024
	defaultWriteBufferSize = 32 * 1024
	defaultEventQueueSize  = 64
)

func (c Config) withDefaults() Config {
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = defaultReadBufferSize
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = defaultWriteBufferSize
	}
	if c.EventQueueSize <= 0 {
		c.EventQueueSize = defaultEventQueueSize
	}
	if c.Logger == nil {
		c.Logger = log.NewNopLogger()
	}
	if c.Metrics == nil {
		c.Metrics = NoopMetrics{}
	}
	return c
}

// String renders the diagnostic (non-secret) fields as YAML, the way
// nabbar-golib's config types implement String for log-on-startup
// dumps. Logger and Metrics are unexported from the marshalled view
// since they aren't serializable.
func (c Config) String() string {
	type diag struct {
		MaxSockets      int `yaml:"max_sockets"`
		ReadBufferSize  int `yaml:"read_buffer_size"`
		WriteBufferSize int `yaml:"write_buffer_size"`
		EventQueueSize  int `yaml:"event_queue_size"`
	}
	b, err := yaml.Marshal(diag{
		MaxSockets:      c.MaxSockets,
		ReadBufferSize:  c.ReadBufferSize,
		WriteBufferSize: c.WriteBufferSize,
		EventQueueSize:  c.EventQueueSize,
	})
	if err != nil {
		return "<config: marshal error>"
	}
	return string(b)
}
