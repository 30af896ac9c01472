package pvr

import (
	"fmt"

	"github.com/EchoTools/pvrtools/pkg/endian"
)

// dxtFields lists the byte widths of the fields of one block, in storage
// order. Every variant ends with color0, color1 and the 2-bit index map;
// DXT2/3 prefix an explicit 64-bit alpha map, DXT4/5 two alpha endpoints and
// 48 bits of alpha indices.
var dxtFields = [...][]int{
	1: {2, 2, 4},
	2: {8, 2, 2, 4},
	3: {8, 2, 2, 4},
	4: {1, 1, 6, 2, 2, 4},
	5: {1, 1, 6, 2, 2, 4},
}

// DXTBlockSize returns the bytes per 4×4 block of a DXT variant.
func DXTBlockSize(variant int) int {
	if variant == 1 {
		return 8
	}
	return 16
}

// CopyDXTBlock copies block number block of a DXT surface from src to dst,
// translating each multi-byte field from srcOrder to dstOrder. f must be one
// of the DXT formats.
func CopyDXTBlock(f PixelFormat, dst []byte, dstOrder endian.Order, src []byte, srcOrder endian.Order, block int) {
	v := DXTVariant(f)
	if v == 0 {
		panic(fmt.Sprintf("pvr: CopyDXTBlock called with non-DXT format %s", f))
	}

	off := block * DXTBlockSize(v)
	for _, size := range dxtFields[v] {
		endian.Transcode(srcOrder, dstOrder, dst[off:], src[off:], size)
		off += size
	}
}

// TranscodeDXT copies a whole DXT surface of surfWidth×surfHeight texels
// between byte orders. Surface dimensions must already be multiples of four.
func TranscodeDXT(f PixelFormat, dst []byte, dstOrder endian.Order, src []byte, srcOrder endian.Order, surfWidth, surfHeight uint32) {
	blocks := int(surfWidth/4) * int(surfHeight/4)
	for i := 0; i < blocks; i++ {
		CopyDXTBlock(f, dst, dstOrder, src, srcOrder, i)
	}
}
