package main

import (
	"fmt"

	"go.bug.st/serial"
)

// SerialSink drives a strip microcontroller over a serial port, one Frame
// per flush.
type SerialSink struct {
	port serial.Port
	seq  byte
}

// OpenSerialSink opens the named serial device at the given baud rate.
func OpenSerialSink(name string, baud int) (*SerialSink, error) {
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	logger.Info("serial: port opened", "device", name, "baud", baud)
	return &SerialSink{port: p}, nil
}

// Flush encodes and writes the pixel buffer. Write errors are logged and
// dropped; the next frame supersedes this one anyway.
func (s *SerialSink) Flush(pixels []RGB) {
	f := Frame{Pixels: pixels, Seq: s.seq}
	s.seq++
	if _, err := s.port.Write(f.Encode()); err != nil {
		logger.Error("serial: write error", "err", err)
	}
}

// Close closes the underlying serial port.
func (s *SerialSink) Close() {
	logger.Info("serial: closing port")
	_ = s.port.Close()
}
