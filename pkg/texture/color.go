package texture

// ColorModel tags the active half of a Color.
type ColorModel uint8

const (
	ModelRGBA ColorModel = iota
	ModelLuminance
)

// Color is one texel in either RGBA or luminance form. Channels are 0-255.
type Color struct {
	Model      ColorModel
	R, G, B, A uint8
	L          uint8
}

// RGBAColor returns an RGBA-model color.
func RGBAColor(r, g, b, a uint8) Color {
	return Color{Model: ModelRGBA, R: r, G: g, B: b, A: a}
}

// LuminanceColor returns a luminance-model color.
func LuminanceColor(l, a uint8) Color {
	return Color{Model: ModelLuminance, L: l, A: a}
}

// RGBA returns c as RGBA, spreading luminance over the color channels.
func (c Color) RGBA() (r, g, b, a uint8) {
	if c.Model == ModelLuminance {
		return c.L, c.L, c.L, c.A
	}
	return c.R, c.G, c.B, c.A
}

// Luminance returns c as luminance plus alpha.
func (c Color) Luminance() (l, a uint8) {
	if c.Model == ModelLuminance {
		return c.L, c.A
	}
	return Luma(c.R, c.G, c.B), c.A
}

// Luma computes the Rec. 601 luma of an RGB triple.
func Luma(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000)
}

// Scale converts v, an unsigned value whose maximum is from, to the range
// [0, to] rounding to nearest.
func Scale(v, from, to uint64) uint64 {
	if from == to {
		return v
	}
	if from == 0 {
		return 0
	}
	if v > from {
		v = from
	}
	return (v*to + from/2) / from
}
