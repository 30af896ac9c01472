//go:build !cgo || nosquish

package dxt

import (
	"encoding/binary"

	"github.com/EchoTools/pvrtools/pkg/texture"
)

// block holds the 16 RGBA texels of one 4×4 block in row-major order.
type block [16][4]uint8

func (b *block) load(rgba []byte, width, bx, by uint32) {
	i := 0
	for dy := uint32(0); dy < 4; dy++ {
		for dx := uint32(0); dx < 4; dx++ {
			off := ((by+dy)*width + bx + dx) * 4
			copy(b[i][:], rgba[off:off+4])
			i++
		}
	}
}

// compressSurface range-fits every block of a block aligned surface.
func compressSurface(variant int, rgba []byte, width, height uint32) []byte {
	out := make([]byte, SurfaceSize(variant, width, height))
	size := BlockSize(variant)

	off := 0
	var px block
	for by := uint32(0); by < height; by += 4 {
		for bx := uint32(0); bx < width; bx += 4 {
			px.load(rgba, width, bx, by)
			dst := out[off : off+size]
			switch variant {
			case 1:
				encodeColor(dst, &px, true)
			case 2, 3:
				encodeExplicitAlpha(dst[:8], &px)
				encodeColor(dst[8:], &px, false)
			case 4, 5:
				encodeInterpolatedAlpha(dst[:8], &px)
				encodeColor(dst[8:], &px, false)
			}
			off += size
		}
	}
	return out
}

func pack565(r, g, b uint8) uint16 {
	return uint16(texture.Scale(uint64(r), 255, 31))<<11 |
		uint16(texture.Scale(uint64(g), 255, 63))<<5 |
		uint16(texture.Scale(uint64(b), 255, 31))
}

func unpack565(c uint16) [3]int {
	r := int(c>>11) & 31
	g := int(c>>5) & 63
	b := int(c) & 31
	return [3]int{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2}
}

func distance(a [3]int, p [4]uint8) int {
	d := 0
	for c := 0; c < 3; c++ {
		v := a[c] - int(p[c])
		d += v * v
	}
	return d
}

// encodeColor writes the 8-byte color part of a block. With punchThrough set
// (DXT1 only) texels whose alpha is below 128 select the transparent entry of
// the three-color palette.
func encodeColor(dst []byte, px *block, punchThrough bool) {
	transparent := false
	if punchThrough {
		for _, p := range px {
			if p[3] < 128 {
				transparent = true
				break
			}
		}
	}

	lo := [3]uint8{255, 255, 255}
	hi := [3]uint8{}
	opaque := 0
	for _, p := range px {
		if transparent && p[3] < 128 {
			continue
		}
		opaque++
		for c := 0; c < 3; c++ {
			lo[c] = min(lo[c], p[c])
			hi[c] = max(hi[c], p[c])
		}
	}

	if opaque == 0 {
		binary.LittleEndian.PutUint16(dst[0:], 0)
		binary.LittleEndian.PutUint16(dst[2:], 0)
		binary.LittleEndian.PutUint32(dst[4:], 0xFFFFFFFF)
		return
	}

	c0 := pack565(hi[0], hi[1], hi[2])
	c1 := pack565(lo[0], lo[1], lo[2])

	var palette [4][3]int
	entries := 4
	if transparent {
		if c0 > c1 {
			c0, c1 = c1, c0
		}
		entries = 3
	} else if c0 < c1 {
		c0, c1 = c1, c0
	}
	palette[0], palette[1] = unpack565(c0), unpack565(c1)
	for c := 0; c < 3; c++ {
		p0, p1 := palette[0][c], palette[1][c]
		if entries == 3 {
			palette[2][c] = (p0 + p1) / 2
		} else {
			palette[2][c] = (2*p0 + p1) / 3
			palette[3][c] = (p0 + 2*p1) / 3
		}
	}
	if c0 == c1 && !transparent {
		entries = 1
	}

	var indices uint32
	for i, p := range px {
		idx := uint32(3)
		if !transparent || p[3] >= 128 {
			idx = 0
			best := distance(palette[0], p)
			for j := 1; j < entries; j++ {
				if d := distance(palette[j], p); d < best {
					best, idx = d, uint32(j)
				}
			}
		}
		indices |= idx << (2 * i)
	}

	binary.LittleEndian.PutUint16(dst[0:], c0)
	binary.LittleEndian.PutUint16(dst[2:], c1)
	binary.LittleEndian.PutUint32(dst[4:], indices)
}

// encodeExplicitAlpha writes the 4-bit alpha map of DXT2/3.
func encodeExplicitAlpha(dst []byte, px *block) {
	var bits uint64
	for i, p := range px {
		bits |= texture.Scale(uint64(p[3]), 255, 15) << (4 * i)
	}
	binary.LittleEndian.PutUint64(dst, bits)
}

// encodeInterpolatedAlpha writes the endpoint pair and 3-bit index map of
// DXT4/5 using the eight-value palette.
func encodeInterpolatedAlpha(dst []byte, px *block) {
	a0, a1 := uint8(0), uint8(255)
	for _, p := range px {
		a0 = max(a0, p[3])
		a1 = min(a1, p[3])
	}
	dst[0], dst[1] = a0, a1

	var palette [8]int
	palette[0], palette[1] = int(a0), int(a1)
	for i := 1; i < 7; i++ {
		palette[i+1] = ((7-i)*int(a0) + i*int(a1)) / 7
	}

	var bits uint64
	if a0 != a1 {
		for i, p := range px {
			best, idx := 1<<30, 0
			for j, v := range palette {
				d := v - int(p[3])
				if d < 0 {
					d = -d
				}
				if d < best {
					best, idx = d, j
				}
			}
			bits |= uint64(idx) << (3 * i)
		}
	}
	for i := 0; i < 6; i++ {
		dst[2+i] = byte(bits >> (8 * i))
	}
}
