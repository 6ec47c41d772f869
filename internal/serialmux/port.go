package serialmux

import "io"

// SerialPorter is the minimal interface needed for a serial port, so the
// multiplexer can run over in-memory ports in tests and dev mode.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}
