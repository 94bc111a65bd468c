package console

import (
	"fmt"

	"go.bug.st/serial"
)

type Config struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// OpenSerial opens the console UART in 8N1.
func OpenSerial(cfg Config) (serial.Port, error) {
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}
	return port, nil
}
