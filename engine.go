package main

import (
	"math"
	"time"
)

// -------------------- Rounding interpolation --------------------

// divRoundClosest is integer division rounding to nearest instead of
// truncating. Inputs are always non-negative here.
func divRoundClosest(dividend, divisor int) int {
	return (dividend + divisor/2) / divisor
}

// mapRound remaps x from [inMin, inMax] to [outMin, outMax] linearly,
// rounding the result to the nearest integer.
func mapRound(x, inMin, inMax, outMin, outMax int) int {
	return divRoundClosest((x-inMin)*(outMax-outMin), inMax-inMin) + outMin
}

// -------------------- Cadence --------------------

// cadence fires at most once per interval, measured against whatever clock
// the caller passes in. A fresh cadence arms on its first check and fires
// once per elapsed interval thereafter.
type cadence struct {
	every time.Duration
	last  time.Time
}

func (c *cadence) due(now time.Time) bool {
	if c.last.IsZero() {
		c.last = now
		return false
	}
	if now.Sub(c.last) >= c.every {
		c.last = now
		return true
	}
	return false
}

// -------------------- LightEngine --------------------

// LightEngine owns all light state: the per-key pressed/velocity table, the
// sustain pedal, the hue-shift counter and the pixel buffer. It is mutated
// only from the control loop goroutine, so it carries no locking.
type LightEngine struct {
	cfg Config
	now func() time.Time

	pressed  []bool
	velocity []uint8
	sustain  bool
	hueShift int

	leds []RGB
	out  []RGB

	sustainBlur cadence
	releaseBlur cadence
	hueDrift    cadence
}

// NewLightEngine builds an engine from cfg. clock may be nil, in which case
// time.Now is used; tests inject a fake clock to step the decay cadences.
func NewLightEngine(cfg Config, clock func() time.Time) *LightEngine {
	if clock == nil {
		clock = time.Now
	}
	return &LightEngine{
		cfg:         cfg,
		now:         clock,
		pressed:     make([]bool, cfg.Keyboard.NumKeys),
		velocity:    make([]uint8, cfg.Keyboard.NumKeys),
		leds:        make([]RGB, cfg.Strip.NumLEDs),
		out:         make([]RGB, cfg.Strip.NumLEDs),
		sustainBlur: cadence{every: time.Duration(cfg.Decay.SustainBlurMs) * time.Millisecond},
		releaseBlur: cadence{every: time.Duration(cfg.Decay.ReleaseBlurMs) * time.Millisecond},
		hueDrift:    cadence{every: time.Duration(cfg.Decay.HueDriftMs) * time.Millisecond},
	}
}

// keyIndex maps a MIDI note to a key-table index, or ok=false when the note
// falls outside the physical keyboard. Note-on and note-off are both checked
// against the same bounds.
func (e *LightEngine) keyIndex(note uint8) (int, bool) {
	n := int(note)
	if n < e.cfg.Keyboard.MinNote || n > e.cfg.Keyboard.MaxNote {
		return 0, false
	}
	i := n - e.cfg.Keyboard.MinNote
	if i >= len(e.pressed) {
		return 0, false
	}
	return i, true
}

// OnNoteOn marks the key pressed and records its velocity. Notes outside the
// keyboard range are ignored.
func (e *LightEngine) OnNoteOn(channel, note, velocity uint8) {
	i, ok := e.keyIndex(note)
	if !ok {
		logger.Debug("engine: note on outside keyboard, ignored", "note", note)
		return
	}
	e.pressed[i] = true
	e.velocity[i] = velocity
}

// OnNoteOff marks the key released. Notes outside the keyboard range are
// ignored; releasing an already-released key is a no-op.
func (e *LightEngine) OnNoteOff(channel, note, velocity uint8) {
	i, ok := e.keyIndex(note)
	if !ok {
		logger.Debug("engine: note off outside keyboard, ignored", "note", note)
		return
	}
	e.pressed[i] = false
}

// OnControlChange tracks the sustain pedal (damper, CC 64 by convention).
// Other controllers are ignored.
func (e *LightEngine) OnControlChange(channel, controller, value uint8) {
	if int(controller) != e.cfg.Keyboard.SustainController {
		return
	}
	on := value >= 64
	if on != e.sustain {
		logger.Debug("engine: sustain changed", "on", on)
	}
	e.sustain = on
}

// HandleEvent dispatches one decoded MIDI event to the state tables.
func (e *LightEngine) HandleEvent(ev Event) {
	switch ev.Kind {
	case EventNoteOn:
		e.OnNoteOn(ev.Channel, ev.Note, ev.Velocity)
	case EventNoteOff:
		e.OnNoteOff(ev.Channel, ev.Note, ev.Velocity)
	case EventControlChange:
		e.OnControlChange(ev.Channel, ev.Controller, ev.Value)
	}
}

// Pressed reports whether key i is currently down.
func (e *LightEngine) Pressed(i int) bool {
	return i >= 0 && i < len(e.pressed) && e.pressed[i]
}

// VelocityOf returns the last recorded velocity of key i. Only meaningful
// while the key is pressed.
func (e *LightEngine) VelocityOf(i int) uint8 {
	if i < 0 || i >= len(e.velocity) {
		return 0
	}
	return e.velocity[i]
}

// Sustained reports the sustain pedal state.
func (e *LightEngine) Sustained() bool { return e.sustain }

// HueShift returns the current hue drift offset (0-255).
func (e *LightEngine) HueShift() int { return e.hueShift }

// Tick runs whichever decay passes are due. While sustained the blur is slow
// and wide and the hue shift drifts; otherwise the blur is fast and tight.
// The blur both spreads lit pixels into their neighbors and attenuates the
// whole strip, so released keys fade to black with no explicit clear.
func (e *LightEngine) Tick() {
	now := e.now()
	if e.sustain {
		if e.sustainBlur.due(now) {
			blur1d(e.leds, uint8(e.cfg.Decay.SustainBlurAmount))
		}
		if e.hueDrift.due(now) {
			e.hueShift = (e.hueShift + 1) % 256
		}
	} else {
		if e.releaseBlur.due(now) {
			blur1d(e.leds, uint8(e.cfg.Decay.ReleaseBlurAmount))
		}
	}
}

// ledFor maps key index i onto its strip position.
func (e *LightEngine) ledFor(i int) int {
	return mapRound(i, 0, e.cfg.Keyboard.NumKeys-1, e.cfg.Strip.StartLED, e.cfg.Strip.LastLED)
}

// hueFor maps key index i onto the hue wheel and applies the drift offset.
func (e *LightEngine) hueFor(i int) int {
	hue := mapRound(i, 0, e.cfg.Keyboard.NumKeys-1, 0, 255)
	return (hue + e.hueShift) % 256
}

// brightnessFor converts a key velocity to pixel brightness on an
// exponential curve, clamped to [floor, ceiling]. The floor keeps the
// softest press visible; the ceiling is the channel maximum.
func (e *LightEngine) brightnessFor(velocity uint8) uint8 {
	floor := float64(e.cfg.Decay.BrightnessFloor)
	ceil := float64(e.cfg.Decay.BrightnessCeiling)
	b := floor * math.Exp(float64(velocity)/127*math.Log(ceil/floor))
	b = math.Round(b)
	if b < floor {
		b = floor
	}
	if b > ceil {
		b = ceil
	}
	return uint8(b)
}

// Render lights the pixel of every currently pressed key. Pixels of released
// keys are untouched here; the decay pass in Tick is what fades them.
func (e *LightEngine) Render() {
	for i := range e.pressed {
		if !e.pressed[i] {
			continue
		}
		hue := e.hueFor(i)
		bri := e.brightnessFor(e.velocity[i])
		e.leds[e.ledFor(i)] = hsvToRGB(uint8(hue), uint8(e.cfg.Strip.Saturation), bri)
	}
}

// Pixels returns the buffer to hand to the sink, with the master brightness
// limiter applied. The working buffer is left unscaled so decay math is not
// distorted.
func (e *LightEngine) Pixels() []RGB {
	master := uint8(e.cfg.Strip.MasterBrightness)
	for i, c := range e.leds {
		e.out[i] = c.scaleVideo(master)
	}
	return e.out
}

// ClearAll releases every key and blacks the strip. Used when the MIDI
// device disappears mid-performance.
func (e *LightEngine) ClearAll() {
	for i := range e.pressed {
		e.pressed[i] = false
	}
	for i := range e.leds {
		e.leds[i] = RGB{}
	}
}
