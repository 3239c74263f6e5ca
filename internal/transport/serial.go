package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Config describes the serial link to the modem diag port.
type Config struct {
	Port        string        // device path, e.g. /dev/ttyUSB0
	BaudRate    int           // line speed, 115200 for USB diag ports
	ReadTimeout time.Duration // poll read timeout; expired reads return 0 bytes
}

// Port is one open diag link. Reads time out per Config.ReadTimeout and
// return 0 bytes with no error, so the capture loop can poll without
// blocking forever. Writes block until the command is on the wire.
type Port struct {
	port serial.Port
	path string
}

// OpenSerial opens the diag port in 8N1 framing and clears any stale bytes
// buffered by the OS or the adapter.
func OpenSerial(cfg Config) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", cfg.Port, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("reset input buffer on %s: %w", cfg.Port, err)
	}
	return &Port{port: port, path: cfg.Port}, nil
}

// Name returns the device path the port was opened on.
func (p *Port) Name() string { return p.path }

func (p *Port) Read(buf []byte) (int, error)  { return p.port.Read(buf) }
func (p *Port) Write(buf []byte) (int, error) { return p.port.Write(buf) }
func (p *Port) Close() error                  { return p.port.Close() }
