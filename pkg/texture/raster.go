package texture

import "fmt"

// RasterFormat is the pixel layout family of a generic raster texture.
type RasterFormat uint8

const (
	RasterDefault RasterFormat = iota
	Raster1555
	Raster565
	Raster4444
	RasterLum
	Raster8888
	Raster888
	Raster555
	RasterLumAlpha
)

var rasterFormatNames = map[RasterFormat]string{
	RasterDefault:  "DEFAULT",
	Raster1555:     "1555",
	Raster565:      "565",
	Raster4444:     "4444",
	RasterLum:      "LUM",
	Raster8888:     "8888",
	Raster888:      "888",
	Raster555:      "555",
	RasterLumAlpha: "LUM_ALPHA",
}

func (f RasterFormat) String() string {
	if n, ok := rasterFormatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("RasterFormat(%d)", uint8(f))
}

// Depth returns the natural bit depth of f, or 0 for RasterDefault.
func (f RasterFormat) Depth() uint32 {
	switch f {
	case Raster1555, Raster565, Raster4444, Raster555, RasterLumAlpha:
		return 16
	case RasterLum:
		return 8
	case Raster8888:
		return 32
	case Raster888:
		return 24
	}
	return 0
}

// HasAlpha reports whether f carries an alpha channel.
func (f RasterFormat) HasAlpha() bool {
	switch f {
	case Raster1555, Raster4444, Raster8888, RasterLumAlpha:
		return true
	}
	return false
}

// ColorOrder lists the channels of a raster texel from the least significant
// bits (or the first byte) upward.
type ColorOrder uint8

const (
	OrderRGBA ColorOrder = iota
	OrderBGRA
	OrderABGR
)

func (o ColorOrder) String() string {
	switch o {
	case OrderRGBA:
		return "RGBA"
	case OrderBGRA:
		return "BGRA"
	case OrderABGR:
		return "ABGR"
	}
	return fmt.Sprintf("ColorOrder(%d)", uint8(o))
}

// PaletteType selects indexed storage.
type PaletteType uint8

const (
	PaletteNone PaletteType = iota
	Palette4
	Palette8
)

// IndexDepth returns the bits per palette index.
func (p PaletteType) IndexDepth() uint32 {
	switch p {
	case Palette4:
		return 4
	case Palette8:
		return 8
	}
	return 0
}

// Compression identifies block compression on a raster.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionDXT1
	CompressionDXT2
	CompressionDXT3
	CompressionDXT4
	CompressionDXT5
)

// DXTVariant returns 1-5 for DXT compression and 0 otherwise.
func (c Compression) DXTVariant() int {
	if c >= CompressionDXT1 && c <= CompressionDXT5 {
		return int(c-CompressionDXT1) + 1
	}
	return 0
}

// CompressionForDXT returns the compression value for a DXT variant number.
func CompressionForDXT(variant int) Compression {
	if variant < 1 || variant > 5 {
		return CompressionNone
	}
	return CompressionDXT1 + Compression(variant-1)
}

func (c Compression) String() string {
	if v := c.DXTVariant(); v != 0 {
		return fmt.Sprintf("DXT%d", v)
	}
	if c == CompressionNone {
		return "none"
	}
	return fmt.Sprintf("Compression(%d)", uint8(c))
}

// PixelData is a raster texture's pixels plus the format description needed
// to interpret them. It travels between a native texture and the converter.
//
// NewlyAllocated reports that the layers were produced for this transfer; the
// receiver may free them. Otherwise they still belong to the texture they
// were fetched from.
type PixelData struct {
	RasterFormat RasterFormat
	Depth        uint32
	RowAlignment uint32
	ColorOrder   ColorOrder

	PaletteType PaletteType
	Palette     []byte
	PaletteSize uint32

	Compression Compression
	HasAlpha    bool
	CubeTexture bool
	AutoMipmaps bool
	RasterType  uint8

	Layers         []Layer
	NewlyAllocated bool
}

// Codec returns the sample codec for d's raw layout.
func (d *PixelData) Codec() (*RasterCodec, error) {
	return NewRasterCodec(RasterLayout{
		Format:      d.RasterFormat,
		Depth:       d.Depth,
		Order:       d.ColorOrder,
		PaletteType: d.PaletteType,
		Palette:     d.Palette,
		PaletteSize: d.PaletteSize,
	})
}

// Free returns d's layers and palette to alloc when d owns them.
func (d *PixelData) Free(alloc Allocator) {
	if !d.NewlyAllocated {
		return
	}
	FreeLayers(alloc, d.Layers)
	if d.Palette != nil {
		alloc.Free(d.Palette)
		d.Palette = nil
	}
}

// NativeKind is the closed set of native texture containers the converter
// knows how to exchange pixels with.
type NativeKind uint8

const (
	KindDirect3D8 NativeKind = iota + 1
	KindDirect3D9
	KindPowerVR
)

func (k NativeKind) String() string {
	switch k {
	case KindDirect3D8:
		return "Direct3D8"
	case KindDirect3D9:
		return "Direct3D9"
	case KindPowerVR:
		return "PowerVR"
	}
	return fmt.Sprintf("NativeKind(%d)", uint8(k))
}

// NativeTexture is implemented by every native texture container.
type NativeTexture interface {
	Kind() NativeKind
}

// RasterTexture is a native texture exchanging pixels as PixelData.
type RasterTexture interface {
	NativeTexture
	// FetchPixelData exposes the texture's pixels.
	FetchPixelData() (*PixelData, error)
	// AcquirePixelData stores pd in the texture. It reports whether pd's
	// layers were adopted by reference; when false the texture copied them.
	AcquirePixelData(pd *PixelData) (bool, error)
}
