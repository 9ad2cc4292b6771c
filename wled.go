package main

import (
	"fmt"
	"net"
)

// WLED realtime protocol identifiers.
const (
	wledDRGB = 2 // 3 bytes per pixel, full-strip update
	// Seconds WLED stays in realtime mode after the last packet before
	// falling back to its own effects.
	wledHoldSecs = 15
)

// WLEDSink streams the pixel buffer to a WLED controller using the UDP
// realtime protocol (DRGB).
type WLEDSink struct {
	addr string
	conn net.Conn
	buf  []byte
}

// OpenWLEDSink dials the controller's UDP realtime port (typically :21324).
func OpenWLEDSink(addr string) (*WLEDSink, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	logger.Info("wled: connected", "addr", addr)
	return &WLEDSink{addr: addr, conn: conn}, nil
}

// Flush sends one DRGB packet. On a write error it redials once and retries;
// a second failure drops the frame.
func (w *WLEDSink) Flush(pixels []RGB) {
	need := 2 + len(pixels)*3
	if cap(w.buf) < need {
		w.buf = make([]byte, 0, need)
	}
	w.buf = w.buf[:0]
	w.buf = append(w.buf, wledDRGB, wledHoldSecs)
	for _, p := range pixels {
		w.buf = append(w.buf, p.R, p.G, p.B)
	}

	if _, err := w.conn.Write(w.buf); err != nil {
		conn, derr := net.Dial("udp", w.addr)
		if derr != nil {
			logger.Warn("wled: no udp connection, frame dropped", "err", derr)
			return
		}
		_ = w.conn.Close()
		w.conn = conn
		if _, err := w.conn.Write(w.buf); err != nil {
			logger.Warn("wled: resend failed, frame dropped", "err", err)
		}
	}
}

// Close closes the UDP socket.
func (w *WLEDSink) Close() {
	logger.Info("wled: closing connection")
	_ = w.conn.Close()
}
