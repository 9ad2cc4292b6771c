package main

// Sink receives the rendered pixel buffer once per control-loop iteration.
// Implementations must not block the loop for longer than a write takes;
// write failures are theirs to log and swallow.
type Sink interface {
	Flush(pixels []RGB)
	Close()
}

// logSink is the fallback when no transport is configured. It keeps the
// control loop exercisable on a machine with no strip attached.
type logSink struct {
	lastLit int
}

func (l *logSink) Flush(pixels []RGB) {
	lit := 0
	for _, p := range pixels {
		if p != (RGB{}) {
			lit++
		}
	}
	if lit != l.lastLit {
		logger.Debug("sink: frame", "lit_pixels", lit, "total", len(pixels))
		l.lastLit = lit
	}
}

func (l *logSink) Close() {}
