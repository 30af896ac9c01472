// Package texture holds the pieces shared by every texture container in this
// module: mipmap layers and the allocator that backs them, raster pixel
// layouts and their sample codec, the error taxonomy, and a DDS writer for
// raster data.
package texture

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DDS header constants
const (
	DDS_MAGIC                    = 0x20534444 // "DDS "
	DDS_HEADER_SIZE              = 124
	DDS_HEADER_FLAGS_CAPS        = 0x1
	DDS_HEADER_FLAGS_HEIGHT      = 0x2
	DDS_HEADER_FLAGS_WIDTH       = 0x4
	DDS_HEADER_FLAGS_PITCH       = 0x8
	DDS_HEADER_FLAGS_PIXELFORMAT = 0x1000
	DDS_HEADER_FLAGS_MIPMAPCOUNT = 0x20000
	DDS_HEADER_FLAGS_LINEARSIZE  = 0x80000

	DDS_SURFACE_FLAGS_TEXTURE = 0x1000
	DDS_SURFACE_FLAGS_MIPMAP  = 0x400000
	DDS_SURFACE_FLAGS_COMPLEX = 0x8

	DDS_CUBEMAP_ALLFACES = 0xFE00

	DDS_PIXELFORMAT_SIZE = 32
	DDPF_ALPHAPIXELS     = 0x1
	DDPF_FOURCC          = 0x4
	DDPF_RGB             = 0x40
	DDPF_LUMINANCE       = 0x20000

	// DDSFileHeaderSize covers the magic and the header.
	DDSFileHeaderSize = 4 + DDS_HEADER_SIZE
)

// DDSInfo describes the surface written by WriteDDS.
type DDSInfo struct {
	Width, Height uint32
	MipLevels     uint32
	Compression   Compression
	Layout        RasterLayout
	Cube          bool
}

// DDSHeader builds the 128-byte DDS preamble (magic plus header).
func DDSHeader(info DDSInfo) ([]byte, error) {
	header := make([]byte, DDSFileHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], DDS_MAGIC)

	offset := 4
	put := func(v uint32) {
		binary.LittleEndian.PutUint32(header[offset:offset+4], v)
		offset += 4
	}

	flags := uint32(DDS_HEADER_FLAGS_CAPS | DDS_HEADER_FLAGS_HEIGHT | DDS_HEADER_FLAGS_WIDTH |
		DDS_HEADER_FLAGS_PIXELFORMAT)
	if info.MipLevels > 1 {
		flags |= DDS_HEADER_FLAGS_MIPMAPCOUNT
	}

	var pitch uint32
	var pfFlags, fourCC, bitCount, rMask, gMask, bMask, aMask uint32
	if v := info.Compression.DXTVariant(); v != 0 {
		flags |= DDS_HEADER_FLAGS_LINEARSIZE
		pitch = calculateLinearSize(info.Width, info.Height, v)
		pfFlags = DDPF_FOURCC
		fourCC = binary.LittleEndian.Uint32([]byte(fmt.Sprintf("DXT%d", v)))
	} else {
		if info.Layout.PaletteType != PaletteNone {
			return nil, NewError("dds header", CodeUnsupported, "indexed rasters")
		}
		codec, err := NewRasterCodec(info.Layout)
		if err != nil {
			return nil, err
		}
		flags |= DDS_HEADER_FLAGS_PITCH
		pitch = RowSize(info.Width, info.Layout.Depth, 4)
		bitCount = info.Layout.Depth
		rMask, gMask, bMask, aMask = codec.Masks()
		pfFlags = DDPF_RGB
		if codec.luminance {
			pfFlags = DDPF_LUMINANCE
		}
		if aMask != 0 {
			pfFlags |= DDPF_ALPHAPIXELS
		}
	}

	put(DDS_HEADER_SIZE)
	put(flags)
	put(info.Height)
	put(info.Width)
	put(pitch)
	put(0) // depth
	put(info.MipLevels)
	offset += 44 // reserved

	put(DDS_PIXELFORMAT_SIZE)
	put(pfFlags)
	put(fourCC)
	put(bitCount)
	put(rMask)
	put(gMask)
	put(bMask)
	put(aMask)

	caps := uint32(DDS_SURFACE_FLAGS_TEXTURE)
	var caps2 uint32
	if info.MipLevels > 1 {
		caps |= DDS_SURFACE_FLAGS_MIPMAP | DDS_SURFACE_FLAGS_COMPLEX
	}
	if info.Cube {
		caps |= DDS_SURFACE_FLAGS_COMPLEX
		caps2 = DDS_CUBEMAP_ALLFACES
	}
	put(caps)
	put(caps2)

	return header, nil
}

// WriteDDS writes a DDS file holding layers.
func WriteDDS(w io.Writer, info DDSInfo, layers []Layer) error {
	header, err := DDSHeader(info)
	if err != nil {
		return err
	}
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, l := range layers {
		if _, err := w.Write(l.Texels[:l.DataSize]); err != nil {
			return fmt.Errorf("write level %d: %w", i, err)
		}
	}
	return nil
}

// calculateLinearSize calculates the linear size of a DXT compressed surface.
func calculateLinearSize(width, height uint32, variant int) uint32 {
	blockSize := uint32(16)
	if variant == 1 {
		blockSize = 8
	}

	blocksWide := (width + 3) / 4
	blocksHigh := (height + 3) / 4

	return blocksWide * blocksHigh * blockSize
}

// Masks returns the per-channel bit masks of a raw layout. Luminance layouts
// report their luminance mask as red.
func (c *RasterCodec) Masks() (r, g, b, a uint32) {
	for _, f := range c.fields {
		m := uint32(f.f.Max() << f.f.Shift)
		switch f.ch {
		case 'R', 'L':
			r = m
		case 'G':
			g = m
		case 'B':
			b = m
		case 'A':
			a = m
		}
	}
	return r, g, b, a
}
