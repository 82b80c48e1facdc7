package sockring

import (
	"strings"
	"testing"
)

func TestConfigWithDefaults(t *testing.T) {
	c := Config{MaxSockets: 10}.withDefaults()

	if c.ReadBufferSize != defaultReadBufferSize {
		t.Errorf("ReadBufferSize = %d, want default %d", c.ReadBufferSize, defaultReadBufferSize)
	}
	if c.WriteBufferSize != defaultWriteBufferSize {
		t.Errorf("WriteBufferSize = %d, want default %d", c.WriteBufferSize, defaultWriteBufferSize)
	}
	if c.Logger == nil {
		t.Error("Logger should default to a non-nil no-op logger")
	}
	if c.Metrics == nil {
		t.Error("Metrics should default to NoopMetrics")
	}
}

func TestConfigStringOmitsNonSerializableFields(t *testing.T) {
	c := Config{MaxSockets: 5}.withDefaults()
	out := c.String()

	if !strings.Contains(out, "max_sockets: 5") {
		t.Errorf("String() = %q, want it to contain max_sockets: 5", out)
	}
	if strings.Contains(out, "Logger") || strings.Contains(out, "Metrics") {
		t.Errorf("String() = %q, should not mention the unserializable Logger/Metrics fields", out)
	}
}
