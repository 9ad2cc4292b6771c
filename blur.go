package main

// 8-bit LED math matching FastLED's lib8tion, so the decay looks identical
// to a strip driven by FastLED directly. All operations are per color
// channel on RGB pixels.

// RGB is one pixel of the strip buffer.
type RGB struct {
	R, G, B uint8
}

// scale8 scales i by scale/256, with the "fixed" adjustment so that
// scale8(x, 255) == x.
func scale8(i, scale uint8) uint8 {
	return uint8((uint16(i) * (uint16(scale) + 1)) >> 8)
}

// scale8video is like scale8 but never drops a nonzero channel to zero,
// used for the master brightness limiter so dim pixels stay visible.
func scale8video(i, scale uint8) uint8 {
	if i == 0 {
		return 0
	}
	v := uint8((uint16(i) * uint16(scale)) >> 8)
	if scale != 0 {
		v++
	}
	return v
}

// qadd8 adds two channel values, saturating at 255.
func qadd8(a, b uint8) uint8 {
	s := uint16(a) + uint16(b)
	if s > 255 {
		return 255
	}
	return uint8(s)
}

func (c RGB) scale(s uint8) RGB {
	return RGB{scale8(c.R, s), scale8(c.G, s), scale8(c.B, s)}
}

func (c RGB) scaleVideo(s uint8) RGB {
	return RGB{scale8video(c.R, s), scale8video(c.G, s), scale8video(c.B, s)}
}

func (c RGB) add(o RGB) RGB {
	return RGB{qadd8(c.R, o.R), qadd8(c.G, o.G), qadd8(c.B, o.B)}
}

// blur1d smears each pixel's energy into its neighbors and attenuates the
// whole buffer. keep + 2*seep < 256, so repeated passes fade every pixel to
// black; this is the only decay mechanism the engine has.
//
// amount is the blur strength: higher spreads wider and fades slower per
// pass relative to the spread.
func blur1d(leds []RGB, amount uint8) {
	keep := 255 - amount
	seep := amount >> 1
	var carryover RGB
	for i := range leds {
		cur := leds[i]
		part := cur.scale(seep)
		cur = cur.scale(keep)
		cur = cur.add(carryover)
		if i > 0 {
			leds[i-1] = leds[i-1].add(part)
		}
		leds[i] = cur
		carryover = part
	}
}
