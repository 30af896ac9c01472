// Package dxt converts between S3TC (DXT1-5) surfaces and packed RGBA8.
//
// Decoding is delegated to github.com/mauserzjeh/dxt; the premultiplied
// variants DXT2 and DXT4 are decoded through their straight-alpha twins and
// divided back out. Compression uses libsquish cluster fit through cgo; builds
// without cgo, or with the nosquish tag, fall back to a bounding-box range fit.
package dxt

import (
	"fmt"

	"github.com/mauserzjeh/dxt"

	"github.com/EchoTools/pvrtools/pkg/texture"
)

// BlockSize returns the bytes per 4×4 block of variant.
func BlockSize(variant int) int {
	if variant == 1 {
		return 8
	}
	return 16
}

// SurfaceSize returns the encoded size of a width×height surface. Dimensions
// are rounded up to whole blocks.
func SurfaceSize(variant int, width, height uint32) uint32 {
	return (width + 3) / 4 * ((height + 3) / 4) * uint32(BlockSize(variant))
}

func checkVariant(op string, variant int) error {
	if variant < 1 || variant > 5 {
		return texture.Errorf(op, texture.CodeInvalidUsage, "no DXT variant %d", variant)
	}
	return nil
}

// Decode expands a DXT surface into width×height RGBA8 texels. width and
// height must be multiples of four.
func Decode(variant int, data []byte, width, height uint32) ([]byte, error) {
	const op = "dxt decode"
	if err := checkVariant(op, variant); err != nil {
		return nil, err
	}
	if width%4 != 0 || height%4 != 0 {
		return nil, texture.Errorf(op, texture.CodeInvalidUsage, "surface %dx%d is not block aligned", width, height)
	}
	if need := SurfaceSize(variant, width, height); uint32(len(data)) < need {
		return nil, texture.Errorf(op, texture.CodeCorruptFile, "DXT%d surface %dx%d needs %d bytes, have %d", variant, width, height, need, len(data))
	}

	var (
		rgba []byte
		err  error
	)
	switch variant {
	case 1:
		rgba, err = dxt.DecodeDXT1(data, uint(width), uint(height))
	case 2, 3:
		rgba, err = dxt.DecodeDXT3(data, uint(width), uint(height))
	case 4, 5:
		rgba, err = dxt.DecodeDXT5(data, uint(width), uint(height))
	}
	if err != nil {
		return nil, texture.WrapError(op, texture.CodeCorruptFile, fmt.Sprintf("DXT%d", variant), err)
	}
	if len(rgba) != int(width*height*4) {
		return nil, texture.Errorf(op, texture.CodeCorruptFile, "decoder returned %d bytes, want %d", len(rgba), width*height*4)
	}

	if variant == 2 || variant == 4 {
		unpremultiply(rgba)
	}
	return rgba, nil
}

func unpremultiply(rgba []byte) {
	for i := 0; i+3 < len(rgba); i += 4 {
		a := uint32(rgba[i+3])
		if a == 0 || a == 255 {
			continue
		}
		for c := 0; c < 3; c++ {
			v := (uint32(rgba[i+c])*255 + a/2) / a
			if v > 255 {
				v = 255
			}
			rgba[i+c] = byte(v)
		}
	}
}

// Compress encodes width×height RGBA8 texels as a DXT surface. The result
// covers the dimensions rounded up to whole blocks; texels past the edge
// replicate the last row and column.
func Compress(variant int, rgba []byte, width, height uint32) ([]byte, error) {
	const op = "dxt compress"
	if err := checkVariant(op, variant); err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		return nil, texture.NewError(op, texture.CodeInvalidUsage, "empty image")
	}
	if uint32(len(rgba)) < width*height*4 {
		return nil, texture.Errorf(op, texture.CodeInvalidUsage, "%dx%d image needs %d bytes, have %d", width, height, width*height*4, len(rgba))
	}

	src, w, h := alignSurface(rgba, width, height, variant == 2 || variant == 4)
	return compressSurface(variant, src, w, h), nil
}

// alignSurface copies rgba into a buffer padded to whole blocks, optionally
// premultiplying color by alpha.
func alignSurface(rgba []byte, width, height uint32, premultiply bool) ([]byte, uint32, uint32) {
	w, h := (width+3)&^3, (height+3)&^3
	out := make([]byte, w*h*4)
	for y := uint32(0); y < h; y++ {
		sy := min(y, height-1)
		for x := uint32(0); x < w; x++ {
			sx := min(x, width-1)
			d, s := out[(y*w+x)*4:][:4], rgba[(sy*width+sx)*4:][:4]
			copy(d, s)
			if premultiply {
				a := uint32(d[3])
				for c := 0; c < 3; c++ {
					d[c] = uint8((uint32(d[c])*a + 127) / 255)
				}
			}
		}
	}
	return out, w, h
}
