package pmu

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.bug.st/serial"
)

//go:generate go tool mockgen -destination=mock.go -package=pmu -source=transport.go

// Transport represents an established byte stream to the PMU firmware shell.
//
// A Transport is assumed to be already connected and ready for use. Typical
// implementations are serial ports; tests use in-memory fakes or mocks.
type Transport interface {
	io.Writer

	// ReadChunk returns whatever bytes arrive within maxWait. It never
	// blocks past maxWait, and an empty result is a valid non-error
	// outcome meaning nothing arrived yet.
	ReadChunk(maxWait time.Duration) ([]byte, error)

	Close() error
}

// Dialer opens a Transport to the PMU.
//
// Dialer abstracts how the link is created (serial port, emulator, or test
// double) and is only used when the Client connects. Once a Transport is
// obtained, the Dialer is no longer needed.
type Dialer interface {
	Dial() (Transport, error)
}

// SerialDialer opens the PMU's UART through go.bug.st/serial using 8N1
// framing. The device path is checked for existence before the OS-level open,
// so a missing device is distinguishable from a busy or misconfigured one.
type SerialDialer struct {
	DevicePath string
	BaudRate   int
}

func (d SerialDialer) Dial() (Transport, error) {
	if d.DevicePath == "" {
		return nil, errors.New("pmu: device path is required")
	}
	if _, err := os.Stat(d.DevicePath); err != nil {
		return nil, &DeviceNotFoundError{Device: d.DevicePath}
	}

	baud := d.BaudRate
	if baud == 0 {
		baud = 115200
	}
	port, err := serial.Open(d.DevicePath, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.DevicePath, err)
	}
	return &serialTransport{port: port}, nil
}

type serialTransport struct {
	port serial.Port
}

func (t *serialTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t *serialTransport) ReadChunk(maxWait time.Duration) ([]byte, error) {
	if err := t.port.SetReadTimeout(maxWait); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	buf := make([]byte, 1024)
	// Read returns n == 0 with no error when the timeout expires.
	n, err := t.port.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (t *serialTransport) Close() error {
	return t.port.Close()
}
