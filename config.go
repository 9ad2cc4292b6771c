package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds everything that was a compile-time constant in the strip
// firmware. Defaults match a 76-key piano feeding a 64-pixel SK9822 strip.
type Config struct {
	Strip struct {
		NumLEDs          int `json:"num_leds"`          // physical strip length
		StartLED         int `json:"start_led"`         // first pixel the keyboard occupies
		LastLED          int `json:"last_led"`          // last pixel the keyboard occupies
		Saturation       int `json:"saturation"`        // fixed, never varied at runtime
		MasterBrightness int `json:"master_brightness"` // global limiter, applied at flush
	} `json:"strip"`

	Keyboard struct {
		NumKeys           int `json:"num_keys"`
		MinNote           int `json:"min_note"`           // MIDI note of the lowest key
		MaxNote           int `json:"max_note"`           // MIDI note of the highest key
		SustainController int `json:"sustain_controller"` // damper pedal CC number
	} `json:"keyboard"`

	Decay struct {
		SustainBlurMs     int `json:"sustain_blur_ms"`     // slow/wide pass while pedal held
		SustainBlurAmount int `json:"sustain_blur_amount"`
		ReleaseBlurMs     int `json:"release_blur_ms"` // fast/tight pass otherwise
		ReleaseBlurAmount int `json:"release_blur_amount"`
		HueDriftMs        int `json:"hue_drift_ms"` // hue-shift advance while sustained
		BrightnessFloor   int `json:"brightness_floor"`
		BrightnessCeiling int `json:"brightness_ceiling"`
	} `json:"decay"`

	MIDI struct {
		PreferredPatterns []string `json:"preferred_patterns"`
		ExcludedPatterns  []string `json:"excluded_patterns"`
	} `json:"midi"`
}

func defaultConfig() Config {
	var cfg Config

	cfg.Strip.NumLEDs = 64
	cfg.Strip.StartLED = 0
	cfg.Strip.LastLED = 63
	cfg.Strip.Saturation = 255
	cfg.Strip.MasterBrightness = 180

	cfg.Keyboard.NumKeys = 76
	cfg.Keyboard.MinNote = 28  // lowest key of a 76-key piano
	cfg.Keyboard.MaxNote = 116 // highest playable note the firmware accepted
	cfg.Keyboard.SustainController = 64

	cfg.Decay.SustainBlurMs = 100
	cfg.Decay.SustainBlurAmount = 85
	cfg.Decay.ReleaseBlurMs = 6
	cfg.Decay.ReleaseBlurAmount = 25
	cfg.Decay.HueDriftMs = 500
	cfg.Decay.BrightnessFloor = 40
	cfg.Decay.BrightnessCeiling = 255

	cfg.MIDI.ExcludedPatterns = []string{"Midi Through", "Through Port", "Dummy"}

	return cfg
}

func loadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := defaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func saveConfig(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c Config) validate() error {
	if c.Keyboard.NumKeys < 2 {
		return fmt.Errorf("num_keys must be at least 2, got %d", c.Keyboard.NumKeys)
	}
	if c.Strip.NumLEDs < 1 {
		return fmt.Errorf("num_leds must be positive, got %d", c.Strip.NumLEDs)
	}
	if c.Strip.StartLED < 0 || c.Strip.LastLED >= c.Strip.NumLEDs || c.Strip.StartLED > c.Strip.LastLED {
		return fmt.Errorf("led range [%d, %d] does not fit a %d-pixel strip",
			c.Strip.StartLED, c.Strip.LastLED, c.Strip.NumLEDs)
	}
	if c.Keyboard.MinNote < 0 || c.Keyboard.MaxNote > 127 || c.Keyboard.MinNote > c.Keyboard.MaxNote {
		return fmt.Errorf("note range [%d, %d] is not valid MIDI", c.Keyboard.MinNote, c.Keyboard.MaxNote)
	}
	if c.Decay.BrightnessFloor < 1 || c.Decay.BrightnessCeiling > 255 ||
		c.Decay.BrightnessFloor >= c.Decay.BrightnessCeiling {
		return fmt.Errorf("brightness range [%d, %d] is not valid",
			c.Decay.BrightnessFloor, c.Decay.BrightnessCeiling)
	}
	if c.Decay.SustainBlurMs < 1 || c.Decay.ReleaseBlurMs < 1 || c.Decay.HueDriftMs < 1 {
		return fmt.Errorf("decay cadences must be positive")
	}
	return nil
}
