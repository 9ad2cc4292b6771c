package main

// hsvToRGB converts a (hue, saturation, value) triple with all components in
// 0-255 (FastLED-style hue wheel, not degrees) to an RGB pixel.
func hsvToRGB(hue, sat, val uint8) RGB {
	if sat == 0 {
		return RGB{val, val, val}
	}

	// Six 42.5-wide sectors around the wheel.
	h := float64(hue) * 6 / 256
	sector := int(h)
	f := h - float64(sector)

	v := float64(val)
	s := float64(sat) / 255
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	switch sector % 6 {
	case 0:
		return RGB{uint8(v), uint8(t), uint8(p)}
	case 1:
		return RGB{uint8(q), uint8(v), uint8(p)}
	case 2:
		return RGB{uint8(p), uint8(v), uint8(t)}
	case 3:
		return RGB{uint8(p), uint8(q), uint8(v)}
	case 4:
		return RGB{uint8(t), uint8(p), uint8(v)}
	default:
		return RGB{uint8(v), uint8(p), uint8(q)}
	}
}
