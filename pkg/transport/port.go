package transport

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// Port is the byte channel the transport drives. It is satisfied by a
// real serial port and, in tests, by an in-memory pipe.
type Port interface {
	io.Reader
	io.Writer
	io.Closer
}

// OpenSerialPort opens device as an 8-N-1 serial port at the given baud
// rate. The returned Port's Read blocks until data arrives or the port
// is closed.
func OpenSerialPort(device string, baudRate int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}
	return port, nil
}
