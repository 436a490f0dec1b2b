package transmit

import (
	"fmt"

	"go.bug.st/serial"
)

// SerialConfig holds the serial port parameters for a session. The core
// opens the port with these settings and otherwise leaves configuration
// alone.
type SerialConfig struct {
	// Port is the device path, e.g. /dev/ttyUSB0.
	Port string
	// Baud is the line rate. The Zephyr link runs at 115200.
	Baud int
}

// DefaultBaud is the Zephyr link rate.
const DefaultBaud = 115200

// OpenSerial opens a serial port as a Transport.
func OpenSerial(cfg SerialConfig) (Transport, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("serial port not configured")
	}
	baud := cfg.Baud
	if baud == 0 {
		baud = DefaultBaud
	}

	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("reset input buffer: %w", err)
	}
	return port, nil
}

// ListPorts returns the serial ports visible on this host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
