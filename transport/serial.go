// Package transport provides byte channels to a mount: a local serial port
// or a TCP serial bridge.
package transport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// pollInterval is the serial read timeout. tarm/serial rounds it to
// deciseconds.
const pollInterval = 100 * time.Millisecond

// Serial is an RS-232 port running 8N1.
type Serial struct {
	name string
	port *serial.Port
}

func OpenSerial(name string, baud int) (*Serial, error) {
	c := &serial.Config{
		Name:        name,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: pollInterval,
	}
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", name, err)
	}
	return &Serial{name: name, port: port}, nil
}

func (s *Serial) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// ReadExact reads until p is full or timeout elapses.
func (s *Serial) ReadExact(p []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	n := 0
	for n < len(p) {
		m, err := s.port.Read(p[n:])
		n += m
		// An expired read timeout surfaces as io.EOF.
		if err != nil && !errors.Is(err, io.EOF) {
			return n, fmt.Errorf("reading %q: %w", s.name, err)
		}
		if n < len(p) && !time.Now().Before(deadline) {
			break
		}
	}
	return n, nil
}

// Flush is a no-op; writes to the port are not buffered in user space.
func (s *Serial) Flush() error {
	return nil
}

// Purge discards both the receive and transmit queues.
func (s *Serial) Purge() error {
	return s.port.Flush()
}

func (s *Serial) Close() error {
	return s.port.Close()
}
