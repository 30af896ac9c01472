package pvrtc

import (
	"encoding/binary"

	"github.com/EchoTools/pvrtools/pkg/texture"
)

func quantize(v int32, top uint64) uint32 {
	return uint32(texture.Scale(uint64(v), 255, top))
}

// packColor encodes one block colour. Colour A drops the low bit of blue to
// make room for the modulation mode flag.
func packColor(c [4]int32, opaque, isA bool) uint32 {
	if opaque {
		v := 0x8000 | quantize(c[0], 31)<<10 | quantize(c[1], 31)<<5
		if isA {
			return v | quantize(c[2], 15)<<1
		}
		return v | quantize(c[2], 31)
	}
	v := quantize(c[3], 7)<<12 | quantize(c[0], 15)<<8 | quantize(c[1], 15)<<4
	if isA {
		return v | quantize(c[2], 7)<<1
	}
	return v | quantize(c[2], 15)
}

func (s *surface) encodeBlock(rgba []byte, width, height, bx, by uint32, alpha bool) {
	var px [32][4]int32
	lo := [4]int32{255, 255, 255, 255}
	var hi [4]int32

	n := 0
	for y := uint32(0); y < 4; y++ {
		sy := min(by*4+y, height-1)
		for x := uint32(0); x < s.blockWidth; x++ {
			sx := min(bx*s.blockWidth+x, width-1)
			off := (sy*width + sx) * 4
			for k := 0; k < 4; k++ {
				v := int32(rgba[off+uint32(k)])
				if k == 3 && !alpha {
					v = 255
				}
				px[n][k] = v
				lo[k] = min(lo[k], v)
				hi[k] = max(hi[k], v)
			}
			n++
		}
	}

	opaque := lo[3] >= 0xF8
	colors := packColor(lo, opaque, true) | packColor(hi, opaque, false)<<16

	var span [4]int32
	var length int32
	for k := range span {
		span[k] = hi[k] - lo[k]
		length += span[k] * span[k]
	}

	var mod uint32
	for i, p := range px[:n] {
		var w int32
		if length > 0 {
			var dot int32
			for k := range span {
				dot += (p[k] - lo[k]) * span[k]
			}
			w = (dot*8 + length/2) / length
		}

		if s.twoBit {
			if w >= 4 {
				mod |= 1 << i
			}
			continue
		}
		idx, best := 0, int32(1<<30)
		for j, ref := range weightsStandard {
			d := w - ref
			if d < 0 {
				d = -d
			}
			if d < best {
				idx, best = j, d
			}
		}
		mod |= uint32(idx) << (2 * i)
	}

	off := twiddle(s.blocksY, s.blocksX, by, bx) * 8
	binary.LittleEndian.PutUint32(s.data[off:], mod)
	binary.LittleEndian.PutUint32(s.data[off+4:], colors)
}

// Compress implements Codec. Every block is written in modulation mode 0
// with colours A and B at the corners of the block's bounding box. Layers
// smaller than the minimum surface are padded by repeating the last row and
// column.
func (SoftwareCodec) Compress(f InternalFormat, layerWidth, layerHeight uint32, rgba []byte) (uint32, uint32, []byte, error) {
	const op = "pvrtc compress"
	if !f.Valid() {
		return 0, 0, nil, texture.Errorf(op, texture.CodeInvalidUsage, "not a PVRTC format: %s", f)
	}
	if !IsPowerOfTwo(layerWidth) || !IsPowerOfTwo(layerHeight) {
		return 0, 0, nil, texture.Errorf(op, texture.CodeInvalidUsage, "layer %dx%d is not a power of two", layerWidth, layerHeight)
	}
	if uint32(len(rgba)) < layerWidth*layerHeight*4 {
		return 0, 0, nil, texture.Errorf(op, texture.CodeInvalidUsage, "%dx%d layer needs %d bytes, have %d", layerWidth, layerHeight, layerWidth*layerHeight*4, len(rgba))
	}

	depth := f.Depth()
	sw, sh := SurfaceDimensions(depth, layerWidth, layerHeight)
	s := newSurface(depth, sw, sh, make([]byte, DataSize(depth, sw, sh)))
	for by := uint32(0); by < s.blocksY; by++ {
		for bx := uint32(0); bx < s.blocksX; bx++ {
			s.encodeBlock(rgba, layerWidth, layerHeight, bx, by, f.HasAlpha())
		}
	}
	return sw, sh, s.data, nil
}
