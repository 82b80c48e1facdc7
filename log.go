package sockring

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// withHandle returns a logger with the handle bound as a field, the Go
// equivalent of the "0x%llx (%p : %d)" prefix every log line in
// original_source/network/socket.c carries.
func withHandle(l log.Logger, h Handle) log.Logger {
	return log.With(l, "handle", h.String())
}

func logDebug(l log.Logger, msg string, kv ...interface{}) {
	_ = level.Debug(l).Log(append([]interface{}{"msg", msg}, kv...)...)
}

func logInfo(l log.Logger, msg string, kv ...interface{}) {
	_ = level.Info(l).Log(append([]interface{}{"msg", msg}, kv...)...)
}

func logWarn(l log.Logger, msg string, kv ...interface{}) {
	_ = level.Warn(l).Log(append([]interface{}{"msg", msg}, kv...)...)
}

func logError(l log.Logger, msg string, kv ...interface{}) {
	_ = level.Error(l).Log(append([]interface{}{"msg", msg}, kv...)...)
}
