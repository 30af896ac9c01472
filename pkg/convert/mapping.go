package convert

import (
	"github.com/EchoTools/pvrtools/pkg/pvr"
	"github.com/EchoTools/pvrtools/pkg/texture"
)

// importLink picks the legacy format raster pixels are stored as. direct
// reports that the raster bytes already are that format.
func importLink(f texture.RasterFormat, depth uint32, order texture.ColorOrder) (pvr.PixelFormat, bool) {
	switch f {
	case texture.Raster1555:
		return pvr.ARGB1555Sec, false
	case texture.Raster565:
		return pvr.RGB565Sec, depth == 16 && order == texture.OrderBGRA
	case texture.Raster4444:
		return pvr.ARGB4444Sec, depth == 16 && order == texture.OrderABGR
	case texture.RasterLum:
		return pvr.I8Sec, depth == 8
	case texture.Raster8888:
		if order == texture.OrderRGBA {
			return pvr.ARGB8888Sec, depth == 32
		}
		if order == texture.OrderBGRA {
			return pvr.BGRA8888, depth == 32
		}
	case texture.Raster888:
		return pvr.RGB888Sec, depth == 24 && order == texture.OrderBGRA
	case texture.Raster555:
		return pvr.RGB555Sec, false
	case texture.RasterLumAlpha:
		switch depth {
		case 8:
			return pvr.AL44, true
		case 16:
			return pvr.AL88, true
		}
		return pvr.AL88, false
	}
	return pvr.BGRA8888, false
}

// rasterLink describes how a legacy format is presented to a raster texture.
type rasterLink struct {
	format      texture.RasterFormat
	depth       uint32
	order       texture.ColorOrder
	compression texture.Compression
	direct      bool
}

// exportLink maps f to its raster equivalent. direct is only ever set for
// little-endian sources.
func exportLink(f pvr.PixelFormat, littleEndian bool) rasterLink {
	link := rasterLink{format: texture.Raster8888, depth: 32, order: texture.OrderBGRA}
	switch f {
	case pvr.ARGB4444, pvr.ARGB4444Sec:
		link = rasterLink{format: texture.Raster4444, depth: 16, order: texture.OrderABGR, direct: true}
	case pvr.ARGB1555, pvr.ARGB1555Sec:
		link = rasterLink{format: texture.Raster1555, depth: 16, order: texture.OrderBGRA}
	case pvr.RGB555, pvr.RGB555Sec:
		link = rasterLink{format: texture.Raster555, depth: 16, order: texture.OrderBGRA}
	case pvr.RGB565, pvr.RGB565Sec:
		link = rasterLink{format: texture.Raster565, depth: 16, order: texture.OrderBGRA, direct: true}
	case pvr.ARGB8888, pvr.ARGB8888Sec:
		link = rasterLink{format: texture.Raster8888, depth: 32, order: texture.OrderRGBA, direct: true}
	case pvr.RGB888, pvr.RGB888Sec:
		link = rasterLink{format: texture.Raster888, depth: 24, order: texture.OrderBGRA, direct: true}
	case pvr.I8, pvr.I8Sec, pvr.L8:
		link = rasterLink{format: texture.RasterLum, depth: 8, direct: true}
	case pvr.AI88, pvr.AI88Sec, pvr.AL88:
		link = rasterLink{format: texture.RasterLumAlpha, depth: 16, direct: true}
	case pvr.AL44:
		link = rasterLink{format: texture.RasterLumAlpha, depth: 8, direct: true}
	case pvr.BGRA8888:
		link.direct = true
	case pvr.DXT1, pvr.DXT2, pvr.DXT3, pvr.DXT4, pvr.DXT5:
		link = rasterLink{
			format:      texture.RasterDefault,
			depth:       pvr.Depth(f),
			compression: texture.CompressionForDXT(pvr.DXTVariant(f)),
			direct:      true,
		}
	}
	link.direct = link.direct && littleEndian
	return link
}
