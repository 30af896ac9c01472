// Package pvrtc holds PowerVR native textures and the PVRTC 2bpp/4bpp codec
// used to move pixels in and out of them.
package pvrtc

import (
	"fmt"
	"math/bits"

	"github.com/EchoTools/pvrtools/pkg/texture"
)

// InternalFormat is the GL internal format of a PVRTC texture.
type InternalFormat uint32

const (
	RGB4  InternalFormat = 0x8C00 // GL_COMPRESSED_RGB_PVRTC_4BPPV1_IMG
	RGB2  InternalFormat = 0x8C01 // GL_COMPRESSED_RGB_PVRTC_2BPPV1_IMG
	RGBA4 InternalFormat = 0x8C02 // GL_COMPRESSED_RGBA_PVRTC_4BPPV1_IMG
	RGBA2 InternalFormat = 0x8C03 // GL_COMPRESSED_RGBA_PVRTC_2BPPV1_IMG
)

// Valid reports whether f is one of the four PVRTC formats.
func (f InternalFormat) Valid() bool {
	return f >= RGB4 && f <= RGBA2
}

// Depth returns the bits per texel, 2 or 4.
func (f InternalFormat) Depth() uint32 {
	if f == RGB2 || f == RGBA2 {
		return 2
	}
	return 4
}

// HasAlpha reports whether f carries alpha.
func (f InternalFormat) HasAlpha() bool {
	return f == RGBA4 || f == RGBA2
}

// BlockDimensions returns the smallest surface f can encode.
func (f InternalFormat) BlockDimensions() (uint32, uint32) {
	return BlockDimensions(f.Depth())
}

func (f InternalFormat) String() string {
	switch f {
	case RGB4:
		return "PVRTC_RGB_4BPP"
	case RGB2:
		return "PVRTC_RGB_2BPP"
	case RGBA4:
		return "PVRTC_RGBA_4BPP"
	case RGBA2:
		return "PVRTC_RGBA_2BPP"
	}
	return fmt.Sprintf("InternalFormat(%#04x)", uint32(f))
}

// FormatFor returns the internal format of the given depth and alpha.
func FormatFor(depth uint32, alpha bool) InternalFormat {
	switch {
	case depth == 2 && alpha:
		return RGBA2
	case depth == 2:
		return RGB2
	case alpha:
		return RGBA4
	}
	return RGB4
}

// BlockDimensions returns the minimum surface of a PVRTC depth.
func BlockDimensions(depth uint32) (uint32, uint32) {
	if depth == 2 {
		return 16, 8
	}
	return 8, 8
}

// SurfaceDimensions rounds layer dimensions up to the minimum surface.
func SurfaceDimensions(depth, layerWidth, layerHeight uint32) (uint32, uint32) {
	bw, bh := BlockDimensions(depth)
	return max(layerWidth, bw), max(layerHeight, bh)
}

// DataSize returns the byte size of a surfWidth×surfHeight surface.
func DataSize(depth, surfWidth, surfHeight uint32) uint32 {
	return surfWidth * surfHeight * depth / 8
}

// IsPowerOfTwo reports whether v is a non-zero power of two.
func IsPowerOfTwo(v uint32) bool {
	return v != 0 && bits.OnesCount32(v) == 1
}

// Texture is a PowerVR native texture. Layers hold PVRTC blocks; Width and
// Height of each layer are the encoded surface dimensions.
type Texture struct {
	Format   InternalFormat
	HasAlpha bool
	Layers   []texture.Layer
}

// Kind implements texture.NativeTexture.
func (t *Texture) Kind() texture.NativeKind {
	return texture.KindPowerVR
}

// Clear returns the layers to alloc.
func (t *Texture) Clear(alloc texture.Allocator) {
	if alloc == nil {
		alloc = texture.DefaultAllocator
	}
	texture.FreeLayers(alloc, t.Layers)
	t.Layers = nil
}

// Codec converts single PVRTC surfaces to and from RGBA8.
type Codec interface {
	// Decode expands a surface into layerWidth×layerHeight RGBA8 texels.
	Decode(f InternalFormat, surfWidth, surfHeight, layerWidth, layerHeight uint32, data []byte) ([]byte, error)
	// Compress encodes layerWidth×layerHeight RGBA8 texels and returns the
	// surface dimensions it produced.
	Compress(f InternalFormat, layerWidth, layerHeight uint32, rgba []byte) (surfWidth, surfHeight uint32, data []byte, err error)
	// Recommend picks a format for an image of the given dimensions.
	Recommend(width, height uint32, hasAlpha bool) InternalFormat
}

// SoftwareCodec is the pure-Go PVRTC codec.
type SoftwareCodec struct{}

// DefaultCodec is used when no codec is configured.
var DefaultCodec Codec = SoftwareCodec{}

// Recommend returns 4bpp, with alpha when hasAlpha is set.
func (SoftwareCodec) Recommend(width, height uint32, hasAlpha bool) InternalFormat {
	return FormatFor(4, hasAlpha)
}

func checkSurface(op string, f InternalFormat, w, h uint32) error {
	if !f.Valid() {
		return texture.Errorf(op, texture.CodeInvalidUsage, "not a PVRTC format: %s", f)
	}
	if !IsPowerOfTwo(w) || !IsPowerOfTwo(h) {
		return texture.Errorf(op, texture.CodeInvalidUsage, "surface %dx%d is not a power of two", w, h)
	}
	if bw, bh := f.BlockDimensions(); w < bw || h < bh {
		return texture.Errorf(op, texture.CodeInvalidUsage, "surface %dx%d is below the %dx%d minimum", w, h, bw, bh)
	}
	return nil
}

// twiddle returns the Morton index of block (x, y) in a w×h grid of blocks.
// Both dimensions must be powers of two; the excess bits of the longer side
// are appended above the interleaved ones.
func twiddle(h, w, y, x uint32) uint32 {
	minDim, rest := w, y
	if h < w {
		minDim, rest = h, x
	}

	var out, shift uint32
	for bit := uint32(1); bit < minDim; bit <<= 1 {
		if y&bit != 0 {
			out |= 1 << (2 * shift)
		}
		if x&bit != 0 {
			out |= 2 << (2 * shift)
		}
		shift++
	}
	return out | (rest>>shift)<<(2*shift)
}
