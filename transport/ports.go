package transport

import (
	"fmt"

	"go.bug.st/serial"
)

// Ports lists the serial devices present on this machine.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}
