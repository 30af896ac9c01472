package pvrtc

import (
	"encoding/binary"

	"github.com/EchoTools/pvrtools/pkg/texture"
)

// modulation weights in eighths
var (
	weightsStandard     = [4]int32{0, 3, 5, 8}
	weightsPunchThrough = [4]int32{0, 4, 4, 8}
)

const punchThroughIndex = 2

// surface addresses the Morton-ordered 8-byte blocks of one PVRTC level.
// Each block stores its modulation word first and its colour word second,
// both little-endian.
type surface struct {
	data             []byte
	twoBit           bool
	blockWidth       uint32
	blocksX, blocksY uint32
}

func newSurface(depth, width, height uint32, data []byte) *surface {
	s := &surface{data: data, twoBit: depth == 2, blockWidth: 4}
	if s.twoBit {
		s.blockWidth = 8
	}
	s.blocksX = width / s.blockWidth
	s.blocksY = height / 4
	return s
}

func (s *surface) block(bx, by uint32) (mod, col uint32) {
	off := twiddle(s.blocksY, s.blocksX, by, bx) * 8
	return binary.LittleEndian.Uint32(s.data[off:]), binary.LittleEndian.Uint32(s.data[off+4:])
}

// unpackColors expands colours A and B of a block to ARGB 5554.
func unpackColors(col uint32) (ab [2][4]int32) {
	raw := [2]uint32{col & 0xFFFE, col >> 16}
	for i, r := range raw {
		c := &ab[i]
		if r&0x8000 != 0 {
			c[0] = int32(r>>10) & 0x1F
			c[1] = int32(r>>5) & 0x1F
			c[2] = int32(r) & 0x1F
			if i == 0 {
				c[2] |= c[2] >> 4
			}
			c[3] = 0xF
			continue
		}
		c[0] = int32(r>>7) & 0x1E
		c[1] = int32(r>>3) & 0x1E
		c[0] |= c[0] >> 4
		c[1] |= c[1] >> 4
		c[2] = int32(r&0xF) << 1
		if i == 0 {
			c[2] |= c[2] >> 3
		} else {
			c[2] |= c[2] >> 4
		}
		c[3] = int32(r>>11) & 0xE
	}
	return ab
}

// neighbourhood caches the 2×2 blocks surrounding the texel being decoded.
type neighbourhood struct {
	bx, by uint32
	valid  bool
	colors [2][2][2][4]int32
	values [8][16]int32
	modes  [8][16]uint32
}

func (n *neighbourhood) load(s *surface, bx0, by0 uint32) {
	if n.valid && n.bx == bx0 && n.by == by0 {
		return
	}
	n.bx, n.by, n.valid = bx0, by0, true

	bx1 := (bx0 + 1) & (s.blocksX - 1)
	by1 := (by0 + 1) & (s.blocksY - 1)
	for i, by := range [2]uint32{by0, by1} {
		for j, bx := range [2]uint32{bx0, bx1} {
			mod, col := s.block(bx, by)
			n.colors[i][j] = unpackColors(col)
			n.unpackModulation(s, mod, col&1, uint32(j)*s.blockWidth, uint32(i)*4)
		}
	}
}

func (n *neighbourhood) unpackModulation(s *surface, bitsIn, mode, startX, startY uint32) {
	bits := bitsIn
	for y := uint32(0); y < 4; y++ {
		for x := uint32(0); x < s.blockWidth; x++ {
			n.modes[y+startY][x+startX] = mode
			switch {
			case s.twoBit && mode != 0:
				if (x^y)&1 == 0 {
					n.values[y+startY][x+startX] = int32(bits & 3)
					bits >>= 2
				}
			case s.twoBit:
				n.values[y+startY][x+startX] = int32(bits&1) * 3
				bits >>= 1
			default:
				n.values[y+startY][x+startX] = int32(bits & 3)
				bits >>= 2
			}
		}
	}
}

// local maps surface coordinates into the 2×2 neighbourhood grid.
func (s *surface) local(x, y uint32) (lx, ly uint32) {
	ly = (y & 3) | ((^y & 2) << 1)
	if s.twoBit {
		lx = (x & 7) | ((^x & 4) << 1)
	} else {
		lx = (x & 3) | ((^x & 2) << 1)
	}
	return lx, ly
}

// interpolate bilinearly blends one colour of the neighbourhood and
// expands it to 8 bits per channel.
func (n *neighbourhood) interpolate(s *surface, which int, lx, ly uint32) (out [4]int32) {
	p, q := n.colors[0][0][which], n.colors[0][1][which]
	r, t := n.colors[1][0][which], n.colors[1][1][which]

	v := int32(ly) - 2
	u, uscale := int32(lx)-2, int32(4)
	if s.twoBit {
		u, uscale = int32(lx)-4, 8
	}

	for k := 0; k < 4; k++ {
		top := p[k]*uscale + u*(q[k]-p[k])
		bottom := r[k]*uscale + u*(t[k]-r[k])
		out[k] = top*4 + v*(bottom-top)
	}

	if s.twoBit {
		for k := 0; k < 3; k++ {
			out[k] >>= 2
		}
		out[3] >>= 1
	} else {
		for k := 0; k < 3; k++ {
			out[k] >>= 1
		}
	}
	for k := 0; k < 3; k++ {
		out[k] += out[k] >> 5
	}
	out[3] += out[3] >> 4
	return out
}

// modulation returns the blend weight in eighths and whether the texel is
// punched through.
func (n *neighbourhood) modulation(s *surface, lx, ly uint32) (int32, bool) {
	mode := n.modes[ly][lx]
	val := n.values[ly][lx]
	switch {
	case mode == 0:
		return weightsStandard[val], false
	case s.twoBit:
		if (lx^ly)&1 == 0 {
			return weightsStandard[val], false
		}
		sum := weightsStandard[n.values[ly-1][lx]] + weightsStandard[n.values[ly+1][lx]] +
			weightsStandard[n.values[ly][lx-1]] + weightsStandard[n.values[ly][lx+1]]
		return (sum + 2) / 4, false
	}
	return weightsPunchThrough[val], val == punchThroughIndex
}

// Decode implements Codec.
func (SoftwareCodec) Decode(f InternalFormat, surfWidth, surfHeight, layerWidth, layerHeight uint32, data []byte) ([]byte, error) {
	const op = "pvrtc decode"
	if err := checkSurface(op, f, surfWidth, surfHeight); err != nil {
		return nil, err
	}
	if layerWidth > surfWidth || layerHeight > surfHeight {
		return nil, texture.Errorf(op, texture.CodeInvalidUsage, "layer %dx%d exceeds surface %dx%d", layerWidth, layerHeight, surfWidth, surfHeight)
	}
	if need := DataSize(f.Depth(), surfWidth, surfHeight); uint32(len(data)) < need {
		return nil, texture.Errorf(op, texture.CodeCorruptFile, "surface %dx%d needs %d bytes, have %d", surfWidth, surfHeight, need, len(data))
	}

	s := newSurface(f.Depth(), surfWidth, surfHeight, data)
	out := make([]byte, layerWidth*layerHeight*4)

	var n neighbourhood
	halfW := s.blockWidth / 2
	for y := uint32(0); y < layerHeight; y++ {
		by0 := ((y + surfHeight - 2) & (surfHeight - 1)) / 4
		for x := uint32(0); x < layerWidth; x++ {
			bx0 := ((x + surfWidth - halfW) & (surfWidth - 1)) / s.blockWidth
			n.load(s, bx0, by0)

			lx, ly := s.local(x, y)
			a := n.interpolate(s, 0, lx, ly)
			b := n.interpolate(s, 1, lx, ly)
			w, punch := n.modulation(s, lx, ly)

			px := out[(y*layerWidth+x)*4:]
			for k := 0; k < 4; k++ {
				px[k] = byte((a[k]*8 + w*(b[k]-a[k])) >> 3)
			}
			if punch {
				px[3] = 0
			}
			if !f.HasAlpha() {
				px[3] = 255
			}
		}
	}
	return out, nil
}
