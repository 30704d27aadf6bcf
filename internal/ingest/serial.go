package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/banshee-data/netfdm/internal/fdm"
	"github.com/banshee-data/netfdm/internal/monitoring"
)

// SerialPorter defines the minimal interface needed for a serial port
type SerialPorter interface {
	io.Reader
	io.Closer
}

// OpenSerial opens a serial device in 8N1 mode at the given baud rate.
func OpenSerial(path string, baud int) (SerialPorter, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	return port, nil
}

// SerialReader reads back-to-back FGNetFDM frames from a serial stream, as
// written by FlightGear's --native-fdm=serial output. The stream has no
// framing, so the reader assumes it starts on a frame boundary.
type SerialReader struct {
	port    SerialPorter
	name    string
	handler *Handler
}

// NewSerialReader wraps an open port. name is used as the packet source.
func NewSerialReader(port SerialPorter, name string, h *Handler) *SerialReader {
	if h == nil {
		h = NewHandler(HandlerConfig{})
	}
	return &SerialReader{port: port, name: name, handler: h}
}

// Start reads frames until the port reaches EOF, ctx is cancelled, or a
// frame reveals a layout invariant violation. Cancellation closes the port
// to unblock the pending read.
func (s *SerialReader) Start(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.port.Close()
	})
	defer stop()

	monitoring.Logf("Reading FDM frames from serial port %s", s.name)

	frame := make([]byte, fdm.WireSize)
	for {
		if _, err := io.ReadFull(s.port, frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				monitoring.Logf("Serial port %s closed mid-frame", s.name)
				return nil
			}
			return fmt.Errorf("failed to read from serial port %s: %w", s.name, err)
		}

		if err := s.handler.HandlePacket(frame, s.name); err != nil {
			return err
		}
	}
}

// Close closes the underlying port.
func (s *SerialReader) Close() error {
	return s.port.Close()
}
