package pvr

import (
	"math"

	"github.com/x448/float16"

	"github.com/EchoTools/pvrtools/pkg/endian"
	"github.com/EchoTools/pvrtools/pkg/texture"
)

type numKind uint8

const (
	kindUnorm numKind = iota
	kindHalf
	kindFloat
)

// channel indexes
const (
	chR = iota
	chG
	chB
	chA
	chL
	numChannels
)

type sampleField struct {
	ch   int
	lane int
	f    endian.Field
}

// sampleLayout describes one texel as lanes of laneBytes each, stored in the
// container's byte order. Packed formats use a single lane holding every
// bit-field; wide formats store one channel per lane. A non-zero bits value
// marks a sub-byte layout addressed MSB first.
type sampleLayout struct {
	laneBytes int
	lanes     int
	kind      numKind
	bits      int
	fields    []sampleField
}

func bf(ch int, shift, width uint8) sampleField {
	return sampleField{ch: ch, f: endian.Field{Shift: shift, Width: width}}
}

func packed(size int, fields ...sampleField) *sampleLayout {
	return &sampleLayout{laneBytes: size, lanes: 1, fields: fields}
}

func laned(laneBytes int, kind numKind, channels ...int) *sampleLayout {
	l := &sampleLayout{laneBytes: laneBytes, lanes: len(channels), kind: kind}
	for i, ch := range channels {
		l.fields = append(l.fields, sampleField{ch: ch, lane: i, f: endian.Field{Width: uint8(laneBytes * 8)}})
	}
	return l
}

var (
	layoutARGB4444 = packed(2, bf(chA, 0, 4), bf(chB, 4, 4), bf(chG, 8, 4), bf(chR, 12, 4))
	layoutARGB1555 = packed(2, bf(chA, 0, 1), bf(chB, 1, 5), bf(chG, 6, 5), bf(chR, 11, 5))
	layoutRGB565   = packed(2, bf(chB, 0, 5), bf(chG, 5, 6), bf(chR, 11, 5))
	layoutRGB555   = packed(2, bf(chB, 1, 5), bf(chG, 6, 5), bf(chR, 11, 5))
	layoutRGB888   = packed(3, bf(chB, 0, 8), bf(chG, 8, 8), bf(chR, 16, 8))
	layoutARGB8888 = packed(4, bf(chR, 0, 8), bf(chG, 8, 8), bf(chB, 16, 8), bf(chA, 24, 8))
	layoutI8       = packed(1, bf(chL, 0, 8))
	layoutAI88     = packed(2, bf(chL, 0, 8), bf(chA, 8, 8))
)

var sampleLayouts = map[PixelFormat]*sampleLayout{
	ARGB4444:    layoutARGB4444,
	ARGB4444Sec: layoutARGB4444,
	ARGB1555:    layoutARGB1555,
	ARGB1555Sec: layoutARGB1555,
	RGB565:      layoutRGB565,
	RGB565Sec:   layoutRGB565,
	RGB555:      layoutRGB555,
	RGB555Sec:   layoutRGB555,
	RGB888:      layoutRGB888,
	RGB888Sec:   layoutRGB888,
	ARGB8888:    layoutARGB8888,
	ARGB8888Sec: layoutARGB8888,
	ARGB8332:    packed(2, bf(chA, 0, 8), bf(chR, 8, 3), bf(chG, 11, 3), bf(chB, 14, 2)),
	BGRA8888:    packed(4, bf(chB, 0, 8), bf(chG, 8, 8), bf(chR, 16, 8), bf(chA, 24, 8)),
	RGB332:      packed(1, bf(chR, 0, 3), bf(chG, 3, 3), bf(chB, 6, 2)),
	ABGR2101010: packed(4, bf(chA, 0, 2), bf(chR, 2, 10), bf(chG, 12, 10), bf(chB, 22, 10)),
	ARGB2101010: packed(4, bf(chA, 0, 2), bf(chB, 2, 10), bf(chG, 12, 10), bf(chR, 22, 10)),
	A8:          packed(1, bf(chA, 0, 8)),

	GR1616:       laned(2, kindUnorm, chG, chR),
	ABGR16161616: laned(2, kindUnorm, chA, chB, chG, chR),

	R16F:          laned(2, kindHalf, chR),
	GR1616F:       laned(2, kindHalf, chG, chR),
	ABGR16161616F: laned(2, kindHalf, chA, chB, chG, chR),
	R32F:          laned(4, kindFloat, chR),
	GR3232F:       laned(4, kindFloat, chG, chR),
	ABGR32323232F: laned(4, kindFloat, chA, chB, chG, chR),

	I8:      layoutI8,
	I8Sec:   layoutI8,
	L8:      layoutI8,
	AI88:    layoutAI88,
	AI88Sec: layoutAI88,
	AL88:    layoutAI88,
	AL44:    packed(1, bf(chL, 0, 4), bf(chA, 4, 4)),
	L16:     packed(2, bf(chL, 0, 16)),
	Mono:    {laneBytes: 1, lanes: 1, bits: 1, fields: []sampleField{bf(chL, 0, 1)}},
}

// Dispatcher reads and writes single texels of one pixel format in one byte
// order. Texels are addressed by index within a row buffer.
type Dispatcher struct {
	format PixelFormat
	class  Class
	order  endian.Order
	layout *sampleLayout
}

// NewDispatcher returns the sample codec for f stored in order.
func NewDispatcher(f PixelFormat, order endian.Order) *Dispatcher {
	d := &Dispatcher{format: f, class: Classify(f), order: order, layout: sampleLayouts[f]}
	if d.layout == nil && (d.class == ClassRGBA || d.class == ClassLuminance) {
		d.class = ClassUnknown
	}
	return d
}

// Format returns the pixel format handled by d.
func (d *Dispatcher) Format() PixelFormat {
	return d.format
}

func (d *Dispatcher) invalid(op string) error {
	return texture.Errorf(op, texture.CodeInvalidUsage, "%s has no sample codec (%s)", d.format, d.class)
}

func (d *Dispatcher) read(row []byte, x int) (vals [numChannels]uint8, has [numChannels]bool) {
	l := d.layout
	var lanes [4]uint64
	if l.bits != 0 {
		bit := x * l.bits
		lanes[0] = uint64(row[bit/8]>>(8-l.bits-bit%8)) & (1<<l.bits - 1)
	} else {
		base := x * l.laneBytes * l.lanes
		for i := 0; i < l.lanes; i++ {
			lanes[i] = d.order.Uint(row[base+i*l.laneBytes:], l.laneBytes)
		}
	}

	for _, f := range l.fields {
		raw := f.f.Get(lanes[f.lane])
		var v uint8
		switch l.kind {
		case kindUnorm:
			v = uint8(texture.Scale(raw, f.f.Max(), 255))
		case kindHalf:
			v = floatToByte(float16.Frombits(uint16(raw)).Float32())
		case kindFloat:
			v = floatToByte(math.Float32frombits(uint32(raw)))
		}
		vals[f.ch] = v
		has[f.ch] = true
	}
	return vals, has
}

func (d *Dispatcher) write(row []byte, x int, vals [numChannels]uint8) {
	l := d.layout
	var lanes [4]uint64
	for _, f := range l.fields {
		v := vals[f.ch]
		var raw uint64
		switch l.kind {
		case kindUnorm:
			raw = texture.Scale(uint64(v), 255, f.f.Max())
		case kindHalf:
			raw = uint64(float16.Fromfloat32(float32(v) / 255).Bits())
		case kindFloat:
			raw = uint64(math.Float32bits(float32(v) / 255))
		}
		lanes[f.lane] = f.f.Set(lanes[f.lane], raw)
	}

	if l.bits != 0 {
		bit := x * l.bits
		shift := uint(8 - l.bits - bit%8)
		mask := byte(1<<l.bits-1) << shift
		row[bit/8] = row[bit/8]&^mask | byte(lanes[0]<<shift)&mask
		return
	}
	base := x * l.laneBytes * l.lanes
	for i := 0; i < l.lanes; i++ {
		d.order.PutUint(row[base+i*l.laneBytes:], l.laneBytes, lanes[i])
	}
}

// RGBA reads texel x. Luminance formats report r=g=b=luminance. Missing
// color channels read as 0 and a missing alpha as 255.
func (d *Dispatcher) RGBA(row []byte, x int) (r, g, b, a uint8, err error) {
	switch d.class {
	case ClassRGBA:
		vals, has := d.read(row, x)
		a = 255
		if has[chA] {
			a = vals[chA]
		}
		return vals[chR], vals[chG], vals[chB], a, nil
	case ClassLuminance:
		l, a, _ := d.Luminance(row, x)
		return l, l, l, a, nil
	}
	return 0, 0, 0, 0, d.invalid("get rgba")
}

// SetRGBA writes texel x. Luminance formats store the luma of r, g and b.
func (d *Dispatcher) SetRGBA(row []byte, x int, r, g, b, a uint8) error {
	switch d.class {
	case ClassRGBA:
		d.write(row, x, [numChannels]uint8{chR: r, chG: g, chB: b, chA: a})
		return nil
	case ClassLuminance:
		return d.SetLuminance(row, x, texture.Luma(r, g, b), a)
	}
	return d.invalid("set rgba")
}

// Luminance reads texel x as luminance plus alpha. RGBA formats report the
// luma of their color channels.
func (d *Dispatcher) Luminance(row []byte, x int) (l, a uint8, err error) {
	switch d.class {
	case ClassLuminance:
		vals, has := d.read(row, x)
		a = 255
		if has[chA] {
			a = vals[chA]
		}
		return vals[chL], a, nil
	case ClassRGBA:
		r, g, b, a, _ := d.RGBA(row, x)
		return texture.Luma(r, g, b), a, nil
	}
	return 0, 0, d.invalid("get luminance")
}

// SetLuminance writes texel x. RGBA formats store (l, l, l, a).
func (d *Dispatcher) SetLuminance(row []byte, x int, l, a uint8) error {
	switch d.class {
	case ClassLuminance:
		d.write(row, x, [numChannels]uint8{chL: l, chA: a})
		return nil
	case ClassRGBA:
		return d.SetRGBA(row, x, l, l, l, a)
	}
	return d.invalid("set luminance")
}

// Color implements texture.ColorCodec.
func (d *Dispatcher) Color(row []byte, x int) (texture.Color, error) {
	switch d.class {
	case ClassRGBA:
		r, g, b, a, err := d.RGBA(row, x)
		return texture.RGBAColor(r, g, b, a), err
	case ClassLuminance:
		l, a, err := d.Luminance(row, x)
		return texture.LuminanceColor(l, a), err
	}
	return texture.Color{}, d.invalid("get color")
}

// SetColor implements texture.ColorCodec.
func (d *Dispatcher) SetColor(row []byte, x int, c texture.Color) error {
	if c.Model == texture.ModelLuminance {
		return d.SetLuminance(row, x, c.L, c.A)
	}
	return d.SetRGBA(row, x, c.R, c.G, c.B, c.A)
}

func floatToByte(f float32) uint8 {
	if !(f > 0) {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return uint8(math.Round(float64(f) * 255))
}
