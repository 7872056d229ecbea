package lines

import (
	"io"
	"log"
)

var diagLogger *log.Logger

// SetLogWriters configures the diagnostic stream for the builder. Redundant
// and dummy addresses are reported there. Pass nil to disable it.
func SetLogWriters(diag io.Writer) {
	if diag == nil {
		diagLogger = nil
		return
	}
	diagLogger = log.New(diag, "[lines] ", log.LstdFlags|log.Lmicroseconds)
}

func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}
