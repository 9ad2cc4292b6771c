package main

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestEngine(t *testing.T) (*LightEngine, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	return NewLightEngine(defaultConfig(), clk.now), clk
}

func TestPositionAndHueMappingMonotonic(t *testing.T) {
	e, _ := newTestEngine(t)
	cfg := defaultConfig()

	prevPos, prevHue := -1, -1
	for i := 0; i < cfg.Keyboard.NumKeys; i++ {
		pos := e.ledFor(i)
		hue := e.hueFor(i)
		if pos < cfg.Strip.StartLED || pos > cfg.Strip.LastLED {
			t.Fatalf("key %d maps to led %d, outside [%d, %d]", i, pos, cfg.Strip.StartLED, cfg.Strip.LastLED)
		}
		if hue < 0 || hue > 255 {
			t.Fatalf("key %d maps to hue %d, outside [0, 255]", i, hue)
		}
		if pos < prevPos {
			t.Fatalf("led position not monotonic at key %d: %d < %d", i, pos, prevPos)
		}
		if hue < prevHue {
			t.Fatalf("hue not monotonic at key %d: %d < %d", i, hue, prevHue)
		}
		prevPos, prevHue = pos, hue
	}
}

func TestBrightnessCurve(t *testing.T) {
	e, _ := newTestEngine(t)

	if got := e.brightnessFor(0); got != 40 {
		t.Errorf("brightness(0) = %d, want 40", got)
	}
	if got := e.brightnessFor(127); got != 255 {
		t.Errorf("brightness(127) = %d, want 255", got)
	}

	prev := uint8(0)
	for v := 0; v <= 127; v++ {
		b := e.brightnessFor(uint8(v))
		if b < prev {
			t.Fatalf("brightness not monotonic at velocity %d: %d < %d", v, b, prev)
		}
		prev = b
	}
	if e.brightnessFor(127) <= e.brightnessFor(0) {
		t.Error("brightness curve is flat")
	}
}

func TestNoteRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	cfg := defaultConfig()
	note := uint8(cfg.Keyboard.MinNote + 10)

	e.OnNoteOn(0, note, 90)
	if !e.Pressed(10) {
		t.Fatal("key 10 not pressed after note on")
	}
	if got := e.VelocityOf(10); got != 90 {
		t.Fatalf("velocity = %d, want 90", got)
	}

	e.OnNoteOff(0, note, 0)
	if e.Pressed(10) {
		t.Fatal("key 10 still pressed after note off")
	}
}

func TestDoubleNoteOffIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	note := uint8(defaultConfig().Keyboard.MinNote + 5)

	e.OnNoteOn(0, note, 64)
	e.OnNoteOff(0, note, 0)
	e.OnNoteOff(0, note, 0)
	if e.Pressed(5) {
		t.Fatal("key pressed after double release")
	}
}

func TestOutOfRangeNotesIgnored(t *testing.T) {
	e, _ := newTestEngine(t)
	cfg := defaultConfig()

	e.OnNoteOn(0, uint8(cfg.Keyboard.MinNote-1), 100)
	e.OnNoteOn(0, uint8(cfg.Keyboard.MaxNote+1), 100)
	e.OnNoteOff(0, 127, 0)
	for i := 0; i < cfg.Keyboard.NumKeys; i++ {
		if e.Pressed(i) {
			t.Fatalf("key %d pressed by out-of-range note", i)
		}
	}
}

func TestSustainToggle(t *testing.T) {
	e, _ := newTestEngine(t)

	e.OnControlChange(0, 64, 127)
	if !e.Sustained() {
		t.Fatal("sustain not set by CC 64 value 127")
	}
	e.OnControlChange(0, 1, 127) // mod wheel, not the damper
	if !e.Sustained() {
		t.Fatal("unrelated controller cleared sustain")
	}
	e.OnControlChange(0, 64, 0)
	if e.Sustained() {
		t.Fatal("sustain not cleared by CC 64 value 0")
	}
	e.OnControlChange(0, 64, 64) // threshold is inclusive
	if !e.Sustained() {
		t.Fatal("sustain not set by CC 64 value 64")
	}
}

func TestHueShiftOnlyAdvancesWhileSustained(t *testing.T) {
	e, clk := newTestEngine(t)

	// Not sustained: the drift cadence never runs.
	for i := 0; i < 10; i++ {
		clk.advance(500 * time.Millisecond)
		e.Tick()
	}
	if got := e.HueShift(); got != 0 {
		t.Fatalf("hue shift advanced without sustain: %d", got)
	}

	e.OnControlChange(0, 64, 127)
	e.Tick() // arms the sustained cadences
	for i := 0; i < 3; i++ {
		clk.advance(500 * time.Millisecond)
		e.Tick()
	}
	if got := e.HueShift(); got != 3 {
		t.Fatalf("hue shift = %d after 3 drift intervals, want 3", got)
	}
}

func TestHueShiftWrapsAt256(t *testing.T) {
	e, clk := newTestEngine(t)
	e.OnControlChange(0, 64, 127)
	e.Tick() // arm
	for i := 0; i < 256; i++ {
		clk.advance(500 * time.Millisecond)
		e.Tick()
	}
	if got := e.HueShift(); got != 0 {
		t.Fatalf("hue shift = %d after 256 drift intervals, want 0 (wrap)", got)
	}
}

// litEnergy sums every channel of the working buffer.
func litEnergy(e *LightEngine) int {
	total := 0
	for _, p := range e.leds {
		total += int(p.R) + int(p.G) + int(p.B)
	}
	return total
}

func TestDecayCadenceSelection(t *testing.T) {
	t.Run("released path fires every 6ms", func(t *testing.T) {
		e, clk := newTestEngine(t)
		e.OnNoteOn(0, 60, 100)
		e.Render()
		e.OnNoteOff(0, 60, 0)
		e.Tick() // arm

		before := litEnergy(e)
		clk.advance(6 * time.Millisecond)
		e.Tick()
		if after := litEnergy(e); after >= before {
			t.Fatalf("fast blur did not fire after 6ms: energy %d -> %d", before, after)
		}
	})

	t.Run("sustained path waits 100ms", func(t *testing.T) {
		e, clk := newTestEngine(t)
		e.OnControlChange(0, 64, 127)
		e.OnNoteOn(0, 60, 100)
		e.Render()
		e.OnNoteOff(0, 60, 0)
		e.Tick() // arm

		before := litEnergy(e)
		clk.advance(6 * time.Millisecond)
		e.Tick()
		if after := litEnergy(e); after != before {
			t.Fatalf("sustained blur fired after only 6ms: energy %d -> %d", before, after)
		}

		clk.advance(94 * time.Millisecond)
		e.Tick()
		if after := litEnergy(e); after >= before {
			t.Fatalf("sustained blur did not fire after 100ms: energy %d -> %d", before, after)
		}
	})
}

func TestEndToEndMiddleC(t *testing.T) {
	cfg := defaultConfig()
	cfg.Strip.NumLEDs = 76
	cfg.Strip.StartLED = 0
	cfg.Strip.LastLED = 75
	clk := newFakeClock()
	e := NewLightEngine(cfg, clk.now)

	e.OnNoteOn(1, 60, 100)

	if !e.Pressed(32) {
		t.Fatal("middle C (note 60) should press key index 32")
	}
	if got := e.VelocityOf(32); got != 100 {
		t.Fatalf("velocity = %d, want 100", got)
	}
	if got := e.ledFor(32); got != 32 {
		t.Fatalf("led position = %d, want 32", got)
	}
	if got := e.hueFor(32); got != 109 {
		t.Fatalf("hue = %d, want 109", got)
	}
	if got := e.brightnessFor(100); got != 172 {
		t.Fatalf("brightness = %d, want 172", got)
	}

	e.Render()
	if e.leds[32] == (RGB{}) {
		t.Fatal("pixel 32 not lit after render")
	}
}

func TestHueShiftAppliesToRenderedHue(t *testing.T) {
	e, clk := newTestEngine(t)
	base := e.hueFor(10)

	e.OnControlChange(0, 64, 127)
	e.Tick() // arm
	clk.advance(500 * time.Millisecond)
	e.Tick()

	if got, want := e.hueFor(10), (base+1)%256; got != want {
		t.Fatalf("hue with shift = %d, want %d", got, want)
	}
}

func TestClearAll(t *testing.T) {
	e, _ := newTestEngine(t)
	e.OnNoteOn(0, 60, 100)
	e.Render()
	e.ClearAll()

	if e.Pressed(32) {
		t.Fatal("key still pressed after clear")
	}
	for i, p := range e.Pixels() {
		if p != (RGB{}) {
			t.Fatalf("pixel %d not black after clear: %+v", i, p)
		}
	}
}

func TestMasterBrightnessKeepsLitPixels(t *testing.T) {
	e, _ := newTestEngine(t)
	e.OnNoteOn(0, 60, 1) // softest press still gets the brightness floor
	e.Render()

	lit := false
	for _, p := range e.Pixels() {
		if p != (RGB{}) {
			lit = true
		}
	}
	if !lit {
		t.Fatal("master brightness limiter extinguished a lit pixel")
	}
}

func TestHandleEventDispatch(t *testing.T) {
	e, _ := newTestEngine(t)

	e.HandleEvent(Event{Kind: EventNoteOn, Note: 60, Velocity: 80})
	if !e.Pressed(32) {
		t.Fatal("note-on event not dispatched")
	}
	e.HandleEvent(Event{Kind: EventControlChange, Controller: 64, Value: 127})
	if !e.Sustained() {
		t.Fatal("control-change event not dispatched")
	}
	e.HandleEvent(Event{Kind: EventNoteOff, Note: 60})
	if e.Pressed(32) {
		t.Fatal("note-off event not dispatched")
	}
}
