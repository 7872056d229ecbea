package eventsource

import (
	"io"
)

// Porter is the minimal interface a line source needs. Serial ports and open
// files both satisfy it, which lets tests run without hardware.
type Porter interface {
	io.Reader
	io.Closer
}
