// Package d3d holds Direct3D 8 and Direct3D 9 raster textures. Rows are
// stored little-endian with a 4-byte pitch granularity.
package d3d

import (
	"io"

	"github.com/EchoTools/pvrtools/pkg/texture"
)

// RowAlignment is the row pitch granularity of Direct3D rasters.
const RowAlignment = 4

// Texture is a Direct3D raster texture.
type Texture struct {
	kind  texture.NativeKind
	alloc texture.Allocator

	RasterFormat texture.RasterFormat
	Depth        uint32
	ColorOrder   texture.ColorOrder

	PaletteType texture.PaletteType
	Palette     []byte
	PaletteSize uint32

	Compression texture.Compression
	HasAlpha    bool
	CubeTexture bool
	AutoMipmaps bool
	RasterType  uint8

	Layers []texture.Layer
}

// New returns an empty texture of kind, which must be KindDirect3D8 or
// KindDirect3D9. Buffers the texture allocates come from alloc.
func New(kind texture.NativeKind, alloc texture.Allocator) (*Texture, error) {
	if kind != texture.KindDirect3D8 && kind != texture.KindDirect3D9 {
		return nil, texture.Errorf("d3d texture", texture.CodeInvalidUsage, "%s is not a Direct3D kind", kind)
	}
	if alloc == nil {
		alloc = texture.DefaultAllocator
	}
	return &Texture{kind: kind, alloc: alloc, ColorOrder: texture.OrderBGRA}, nil
}

// Kind implements texture.NativeTexture.
func (t *Texture) Kind() texture.NativeKind {
	return t.kind
}

// Layout returns the raw pixel layout of t.
func (t *Texture) Layout() texture.RasterLayout {
	return texture.RasterLayout{
		Format:      t.RasterFormat,
		Depth:       t.Depth,
		Order:       t.ColorOrder,
		PaletteType: t.PaletteType,
		Palette:     t.Palette,
		PaletteSize: t.PaletteSize,
	}
}

// FetchPixelData implements texture.RasterTexture. The returned layers and
// palette are t's own buffers.
func (t *Texture) FetchPixelData() (*texture.PixelData, error) {
	if len(t.Layers) == 0 {
		return nil, texture.NewError("d3d fetch", texture.CodeInvalidUsage, "texture has no levels")
	}
	return &texture.PixelData{
		RasterFormat: t.RasterFormat,
		Depth:        t.Depth,
		RowAlignment: RowAlignment,
		ColorOrder:   t.ColorOrder,
		PaletteType:  t.PaletteType,
		Palette:      t.Palette,
		PaletteSize:  t.PaletteSize,
		Compression:  t.Compression,
		HasAlpha:     t.HasAlpha,
		CubeTexture:  t.CubeTexture,
		AutoMipmaps:  t.AutoMipmaps,
		RasterType:   t.RasterType,
		Layers:       t.Layers,
	}, nil
}

// AcquirePixelData implements texture.RasterTexture. Compressed layers and
// raw layers whose pitch already matches RowAlignment are adopted; anything
// else is copied row by row into freshly allocated buffers. On error t is
// left unchanged.
func (t *Texture) AcquirePixelData(pd *texture.PixelData) (bool, error) {
	const op = "d3d acquire"

	if len(pd.Layers) == 0 {
		return false, texture.NewError(op, texture.CodeInvalidUsage, "pixel data has no levels")
	}
	if pd.CubeTexture && t.kind == texture.KindDirect3D8 {
		return false, texture.NewError(op, texture.CodeUnsupported, "Direct3D8 cube textures")
	}
	if pd.Compression != texture.CompressionNone && pd.Compression.DXTVariant() == 0 {
		return false, texture.Errorf(op, texture.CodeUnsupported, "compression %s", pd.Compression)
	}

	layers, palette := pd.Layers, pd.Palette
	adopted := true
	guard := texture.NewGuard(t.alloc)
	defer guard.Release()

	align := pd.RowAlignment
	if align == 0 {
		align = 1
	}
	if pd.Compression == texture.CompressionNone &&
		texture.NeedsRowAdjustment(pd.Layers, pd.Depth, align, pd.Depth, RowAlignment) {
		var err error
		if layers, err = repitch(guard, pd.Layers, pd.Depth, align); err != nil {
			return false, err
		}
		if pd.Palette != nil {
			if palette, err = guard.Allocate(uint32(len(pd.Palette))); err != nil {
				return false, err
			}
			copy(palette, pd.Palette)
		}
		adopted = false
	}

	if len(t.Layers) == 0 || &t.Layers[0] != &layers[0] {
		t.Clear()
	}
	t.RasterFormat = pd.RasterFormat
	t.Depth = pd.Depth
	t.ColorOrder = pd.ColorOrder
	t.PaletteType = pd.PaletteType
	t.Palette = palette
	t.PaletteSize = pd.PaletteSize
	t.Compression = pd.Compression
	t.HasAlpha = pd.HasAlpha
	t.CubeTexture = pd.CubeTexture
	t.AutoMipmaps = pd.AutoMipmaps
	t.RasterType = pd.RasterType
	t.Layers = layers

	guard.Commit()
	return adopted, nil
}

// repitch copies layers from srcAlign-aligned rows to RowAlignment rows.
func repitch(guard *texture.Guard, src []texture.Layer, depth, srcAlign uint32) ([]texture.Layer, error) {
	out := make([]texture.Layer, len(src))
	for i, l := range src {
		srcPitch := texture.RowSize(l.Width, depth, srcAlign)
		dstPitch := texture.RowSize(l.Width, depth, RowAlignment)
		size := dstPitch * l.Height
		if uint32(len(l.Texels)) < srcPitch*l.Height {
			return nil, texture.Errorf("d3d acquire", texture.CodeInvalidUsage, "level %d holds %d bytes, need %d", i, len(l.Texels), srcPitch*l.Height)
		}

		buf, err := guard.Allocate(size)
		if err != nil {
			return nil, err
		}
		rowBytes := texture.RowSize(l.Width, depth, 1)
		for y := uint32(0); y < l.Height; y++ {
			copy(buf[y*dstPitch:y*dstPitch+rowBytes], l.Texels[y*srcPitch:])
		}

		out[i] = l
		out[i].Texels = buf
		out[i].DataSize = size
	}
	return out, nil
}

// Clear returns t's layers and palette to its allocator.
func (t *Texture) Clear() {
	texture.FreeLayers(t.alloc, t.Layers)
	t.Layers = nil
	if t.Palette != nil {
		t.alloc.Free(t.Palette)
		t.Palette = nil
	}
	t.PaletteSize = 0
}

// Pitch returns the row pitch of level i.
func (t *Texture) Pitch(i int) uint32 {
	return texture.RowSize(t.Layers[i].Width, t.Depth, RowAlignment)
}

// WriteDDS writes t as a DDS file.
func (t *Texture) WriteDDS(w io.Writer) error {
	if len(t.Layers) == 0 {
		return texture.NewError("d3d dds", texture.CodeInvalidUsage, "texture has no levels")
	}
	base := t.Layers[0]
	return texture.WriteDDS(w, texture.DDSInfo{
		Width:       base.LayerWidth,
		Height:      base.LayerHeight,
		MipLevels:   uint32(len(t.Layers)),
		Compression: t.Compression,
		Layout:      t.Layout(),
		Cube:        t.CubeTexture,
	}, t.Layers)
}
