package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"
)

// -------------------- Logger --------------------

// logger is the package-wide structured logger. Safe to use before initLogger
// is called; defaults to slog.Default().
var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault so
// the stdlib log package also routes through the same handler.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug, // include file:line in debug mode
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

// -------------------- Main --------------------

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (adds source location)")
	configPath := flag.String("config", "", "path to config file (JSON)")
	genConfig := flag.String("genconfig", "", "write default config file to path and exit")
	listOnly := flag.Bool("list", false, "list available MIDI input ports and exit")
	serialDev := flag.String("serial", "", "serial port device of the strip controller (e.g. /dev/ttyACM0)")
	baud := flag.Int("baud", 500000, "serial baud rate")
	wledAddr := flag.String("wled", "", "WLED controller UDP address (e.g. 192.168.1.42:21324)")
	tick := flag.Duration("tick", 2*time.Millisecond, "control loop tick interval")
	flag.Parse()

	initLogger(*debug)

	if *genConfig != "" {
		if err := saveConfig(*genConfig, defaultConfig()); err != nil {
			logger.Error("failed to write config", "path", *genConfig, "err", err)
			os.Exit(1)
		}
		logger.Info("default config written", "path", *genConfig)
		return
	}

	if *listOnly {
		listMidiPorts()
		return
	}

	cfg := defaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = loadConfig(*configPath)
		if err != nil {
			logger.Error("failed to load config", "path", *configPath, "err", err)
			os.Exit(1)
		}
		logger.Info("config loaded", "path", *configPath)
	}

	logger.Info("piano-led-bridge starting",
		"num_keys", cfg.Keyboard.NumKeys,
		"num_leds", cfg.Strip.NumLEDs,
		"min_note", cfg.Keyboard.MinNote,
		"max_note", cfg.Keyboard.MaxNote,
		"tick", *tick,
		"debug", *debug,
	)

	var sink Sink
	switch {
	case *serialDev != "":
		s, err := OpenSerialSink(*serialDev, *baud)
		if err != nil {
			logger.Error("serial sink init failed", "err", err)
			os.Exit(1)
		}
		sink = s
	case *wledAddr != "":
		s, err := OpenWLEDSink(*wledAddr)
		if err != nil {
			logger.Error("wled sink init failed", "err", err)
			os.Exit(1)
		}
		sink = s
	default:
		logger.Warn("no -serial or -wled given, frames go to the log only")
		sink = &logSink{}
	}
	defer sink.Close()

	engine := NewLightEngine(cfg, nil)

	// The disconnect callback runs on a watcher goroutine; it only raises a
	// flag so all engine mutation stays on the control loop.
	var lostDevice atomic.Bool
	watcher, err := NewMIDIWatcher(cfg.MIDI.PreferredPatterns, cfg.MIDI.ExcludedPatterns, func() {
		lostDevice.Store(true)
	})
	if err != nil {
		logger.Error("midi watcher init failed", "err", err)
		os.Exit(1)
	}
	defer watcher.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("running - waiting for MIDI device")

	ticker := time.NewTicker(*tick)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			logger.Info("shutting down")
			engine.ClearAll()
			sink.Flush(engine.Pixels())
			return
		case <-ticker.C:
			// Housekeeping: hot-plug scan, reconnects.
			watcher.Tick()

			if lostDevice.Swap(false) {
				logger.Warn("midi device lost - clearing strip")
				engine.ClearAll()
			}

			// Drain everything that arrived since last iteration before
			// rendering, so the frame reflects a complete event batch.
		drain:
			for {
				select {
				case ev := <-watcher.Events():
					engine.HandleEvent(ev)
				default:
					break drain
				}
			}

			engine.Tick()
			engine.Render()
			sink.Flush(engine.Pixels())
		}
	}
}
