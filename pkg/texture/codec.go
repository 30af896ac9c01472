package texture

import (
	"github.com/EchoTools/pvrtools/pkg/endian"
)

// ColorCodec reads and writes single texels of one pixel layout. x indexes
// texels within row.
type ColorCodec interface {
	Color(row []byte, x int) (Color, error)
	SetColor(row []byte, x int, c Color) error
}

// RowSize returns the pitch of a row of width texels at depth bits per texel,
// rounded up to a multiple of align bytes.
func RowSize(width, depth, align uint32) uint32 {
	size := (width*depth + 7) / 8
	if align > 1 {
		size = (size + align - 1) / align * align
	}
	return size
}

// NeedsRowAdjustment reports whether any layer would change pitch when moved
// from (srcDepth, srcAlign) to (dstDepth, dstAlign).
func NeedsRowAdjustment(layers []Layer, srcDepth, srcAlign, dstDepth, dstAlign uint32) bool {
	for _, l := range layers {
		if RowSize(l.Width, srcDepth, srcAlign) != RowSize(l.Width, dstDepth, dstAlign) {
			return true
		}
	}
	return false
}

// CopyTexels converts a width×height block of texels from src to dst,
// one texel at a time.
func CopyTexels(dst []byte, dstCodec ColorCodec, dstPitch uint32, src []byte, srcCodec ColorCodec, srcPitch uint32, width, height uint32) error {
	for y := uint32(0); y < height; y++ {
		srcRow := src[y*srcPitch:]
		dstRow := dst[y*dstPitch:]
		for x := 0; x < int(width); x++ {
			c, err := srcCodec.Color(srcRow, x)
			if err != nil {
				return err
			}
			if err := dstCodec.SetColor(dstRow, x, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// HasTransparency reports whether any texel in the block has alpha below 255.
func HasTransparency(codec ColorCodec, data []byte, pitch, width, height uint32) (bool, error) {
	for y := uint32(0); y < height; y++ {
		row := data[y*pitch:]
		for x := 0; x < int(width); x++ {
			c, err := codec.Color(row, x)
			if err != nil {
				return false, err
			}
			if c.A != 255 {
				return true, nil
			}
		}
	}
	return false, nil
}

// RasterLayout selects a raster pixel layout.
type RasterLayout struct {
	Format      RasterFormat
	Depth       uint32
	Order       ColorOrder
	PaletteType PaletteType
	Palette     []byte
	PaletteSize uint32
}

type channelField struct {
	ch byte
	f  endian.Field
}

// RasterCodec reads and writes texels of generic raster layouts. Raster words
// are always little-endian. Indexed layouts are read-only.
type RasterCodec struct {
	layout     RasterLayout
	texelBytes int
	entryBytes int
	fields     []channelField
	luminance  bool
}

var orderChannels = map[ColorOrder][4]byte{
	OrderRGBA: {'R', 'G', 'B', 'A'},
	OrderBGRA: {'B', 'G', 'R', 'A'},
	OrderABGR: {'A', 'B', 'G', 'R'},
}

// NewRasterCodec builds the codec for l.
func NewRasterCodec(l RasterLayout) (*RasterCodec, error) {
	const op = "raster codec"

	c := &RasterCodec{layout: l}

	var widths map[byte]uint8
	switch l.Format {
	case Raster1555:
		widths = map[byte]uint8{'R': 5, 'G': 5, 'B': 5, 'A': 1}
	case Raster565:
		widths = map[byte]uint8{'R': 5, 'G': 6, 'B': 5}
	case Raster4444:
		widths = map[byte]uint8{'R': 4, 'G': 4, 'B': 4, 'A': 4}
	case Raster555:
		widths = map[byte]uint8{'R': 5, 'G': 5, 'B': 5}
	case Raster8888:
		widths = map[byte]uint8{'R': 8, 'G': 8, 'B': 8, 'A': 8}
	case Raster888:
		widths = map[byte]uint8{'R': 8, 'G': 8, 'B': 8}
	case RasterLum:
		c.luminance = true
		c.fields = []channelField{{'L', endian.Field{Shift: 0, Width: 8}}}
	case RasterLumAlpha:
		c.luminance = true
		w := uint8(8)
		if l.Depth == 8 && l.PaletteType == PaletteNone {
			w = 4
		}
		c.fields = []channelField{
			{'L', endian.Field{Shift: 0, Width: w}},
			{'A', endian.Field{Shift: w, Width: w}},
		}
	default:
		return nil, Errorf(op, CodeUnsupported, "raster format %s", l.Format)
	}

	if widths != nil {
		seq, ok := orderChannels[l.Order]
		if !ok {
			return nil, Errorf(op, CodeUnsupported, "color order %s", l.Order)
		}
		var shift uint8
		for _, ch := range seq {
			w, ok := widths[ch]
			if !ok {
				continue
			}
			c.fields = append(c.fields, channelField{ch, endian.Field{Shift: shift, Width: w}})
			shift += w
		}
	}

	var used uint32
	for _, f := range c.fields {
		used += uint32(f.f.Width)
	}
	wordBits := used
	if l.Format == Raster555 {
		wordBits = 16
	}
	wordBytes := int((wordBits + 7) / 8)

	if l.PaletteType != PaletteNone {
		if l.Depth != l.PaletteType.IndexDepth() {
			return nil, Errorf(op, CodeCorruptFile, "palette index depth %d for %d-bit raster", l.PaletteType.IndexDepth(), l.Depth)
		}
		c.entryBytes = wordBytes
		if l.Format == Raster888 {
			c.entryBytes = 4
		}
		if uint32(len(l.Palette)) < l.PaletteSize*uint32(c.entryBytes) {
			return nil, Errorf(op, CodeCorruptFile, "palette holds %d bytes, need %d entries", len(l.Palette), l.PaletteSize)
		}
		return c, nil
	}

	if l.Depth%8 != 0 || l.Depth == 0 || l.Depth > 32 || uint32(wordBytes*8) > l.Depth {
		return nil, Errorf(op, CodeUnsupported, "%d-bit %s raster", l.Depth, l.Format)
	}
	c.texelBytes = int(l.Depth / 8)
	return c, nil
}

// Layout returns the layout the codec was built for.
func (c *RasterCodec) Layout() RasterLayout {
	return c.layout
}

func (c *RasterCodec) word(row []byte, x int) (uint64, error) {
	switch c.layout.PaletteType {
	case PaletteNone:
		return endian.Little.Uint(row[x*c.texelBytes:], c.texelBytes), nil
	case Palette4:
		idx := uint32(row[x/2]>>(4*uint(x&1))) & 0x0F
		return c.entry(idx)
	default:
		return c.entry(uint32(row[x]))
	}
}

func (c *RasterCodec) entry(idx uint32) (uint64, error) {
	if idx >= c.layout.PaletteSize {
		return 0, Errorf("raster codec", CodeCorruptFile, "palette index %d out of %d entries", idx, c.layout.PaletteSize)
	}
	off := int(idx) * c.entryBytes
	return endian.Little.Uint(c.layout.Palette[off:], c.entryBytes), nil
}

// Color implements ColorCodec.
func (c *RasterCodec) Color(row []byte, x int) (Color, error) {
	word, err := c.word(row, x)
	if err != nil {
		return Color{}, err
	}

	var r, g, b, l uint8
	a := uint8(255)
	for _, f := range c.fields {
		v := uint8(Scale(f.f.Get(word), f.f.Max(), 255))
		switch f.ch {
		case 'R':
			r = v
		case 'G':
			g = v
		case 'B':
			b = v
		case 'A':
			a = v
		case 'L':
			l = v
		}
	}
	if c.luminance {
		return LuminanceColor(l, a), nil
	}
	return RGBAColor(r, g, b, a), nil
}

// SetColor implements ColorCodec.
func (c *RasterCodec) SetColor(row []byte, x int, col Color) error {
	if c.layout.PaletteType != PaletteNone {
		return NewError("raster codec", CodeInvalidUsage, "cannot write indexed texels")
	}

	r, g, b, a := col.RGBA()
	var l uint8
	if c.luminance {
		l, a = col.Luminance()
	}

	var word uint64
	for _, f := range c.fields {
		var v uint8
		switch f.ch {
		case 'R':
			v = r
		case 'G':
			v = g
		case 'B':
			v = b
		case 'A':
			v = a
		case 'L':
			v = l
		}
		word = f.f.Set(word, Scale(uint64(v), 255, f.f.Max()))
	}
	endian.Little.PutUint(row[x*c.texelBytes:], c.texelBytes, word)
	return nil
}
