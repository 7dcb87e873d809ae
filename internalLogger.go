package mongolog

import (
	"log"
	"os"
	"sync/atomic"
)

var internalLogger atomic.Value

func init() {
	internalLogger.Store(log.New(os.Stderr, "[mongolog] ", log.LstdFlags))
}

// InternalLogger returns the Logger used to write out internal logs, where logs
// get written when something goes wrong in the logging stack itself. Nothing
// written here is routed back through a mongolog Sink.
func InternalLogger() *log.Logger { return internalLogger.Load().(*log.Logger) }

// SetInternalLogger makes l the internal logger.
func SetInternalLogger(l *log.Logger) {
	internalLogger.Store(l)
}
