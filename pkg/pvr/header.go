package pvr

import (
	"fmt"
	"io"
	"math/bits"

	"github.com/EchoTools/pvrtools/pkg/endian"
	"github.com/EchoTools/pvrtools/pkg/texture"
)

const (
	// HeaderSizeV1 is the size of a version 1 header, size field included.
	HeaderSizeV1 = 44
	// HeaderSizeV2 is the size of a version 2 header.
	HeaderSizeV2 = 52
	// Identifier is the version 2 tag "PVR!".
	Identifier = 0x21525650
)

// Version is the header revision.
type Version uint8

const (
	Version1 Version = 1
	Version2 Version = 2
)

// flag bits above the pixel format byte
const (
	flagMipmaps uint32 = 1 << (8 + iota)
	flagTwiddled
	flagNormalData
	flagBorder
	flagCubeMap
	flagDebugMipColoring
	flagVolume
	flagAlphaPVRTC
	flagVerticalFlip
)

var formatField = endian.Field{Shift: 0, Width: 8}

// Flags is the decoded header flag word.
type Flags struct {
	Format           PixelFormat
	Mipmaps          bool
	Twiddled         bool
	NormalData       bool
	Border           bool
	CubeMap          bool
	DebugMipColoring bool
	Volume           bool
	AlphaPVRTC       bool
	VerticalFlip     bool
}

// Pack encodes the flags. Reserved bits are zero.
func (f Flags) Pack() uint32 {
	v := uint32(formatField.Set(0, uint64(f.Format)))
	set := func(on bool, bit uint32) {
		if on {
			v |= bit
		}
	}
	set(f.Mipmaps, flagMipmaps)
	set(f.Twiddled, flagTwiddled)
	set(f.NormalData, flagNormalData)
	set(f.Border, flagBorder)
	set(f.CubeMap, flagCubeMap)
	set(f.DebugMipColoring, flagDebugMipColoring)
	set(f.Volume, flagVolume)
	set(f.AlphaPVRTC, flagAlphaPVRTC)
	set(f.VerticalFlip, flagVerticalFlip)
	return v
}

// UnpackFlags decodes a header flag word.
func UnpackFlags(v uint32) Flags {
	return Flags{
		Format:           PixelFormat(formatField.Get(uint64(v))),
		Mipmaps:          v&flagMipmaps != 0,
		Twiddled:         v&flagTwiddled != 0,
		NormalData:       v&flagNormalData != 0,
		Border:           v&flagBorder != 0,
		CubeMap:          v&flagCubeMap != 0,
		DebugMipColoring: v&flagDebugMipColoring != 0,
		Volume:           v&flagVolume != 0,
		AlphaPVRTC:       v&flagAlphaPVRTC != 0,
		VerticalFlip:     v&flagVerticalFlip != 0,
	}
}

// Header is a PVR legacy file header. MipmapCount is the number of levels;
// the file stores it minus one.
type Header struct {
	Version      Version
	Order        endian.Order
	Height       uint32
	Width        uint32
	MipmapCount  uint32
	Flags        Flags
	SurfaceSize  uint32
	BitsPerPixel uint32
	RedMask      uint32
	GreenMask    uint32
	BlueMask     uint32
	AlphaMask    uint32
	NumSurfaces  uint32
}

// Size returns the encoded size of h.
func (h *Header) Size() int {
	if h.Version == Version1 {
		return HeaderSizeV1
	}
	return HeaderSizeV2
}

// MarshalBinary encodes h in h.Order.
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, h.Size())
	h.EncodeTo(buf)
	return buf, nil
}

// EncodeTo writes h to buf, which must hold at least h.Size() bytes.
func (h *Header) EncodeTo(buf []byte) {
	o := h.Order
	fields := []uint32{
		uint32(h.Size()),
		h.Height,
		h.Width,
		h.MipmapCount - 1,
		h.Flags.Pack(),
		h.SurfaceSize,
		h.BitsPerPixel,
		h.RedMask,
		h.GreenMask,
		h.BlueMask,
		h.AlphaMask,
	}
	if h.Version != Version1 {
		fields = append(fields, Identifier, h.NumSurfaces)
	}
	for i, v := range fields {
		o.PutUint32(buf[i*4:], v)
	}
}

// UnmarshalBinary decodes and validates a header.
func (h *Header) UnmarshalBinary(data []byte) error {
	if err := h.DecodeFrom(data); err != nil {
		return err
	}
	return h.Validate()
}

// DecodeFrom detects the version and byte order of data and decodes the
// header fields. It does not validate them.
func (h *Header) DecodeFrom(data []byte) error {
	const op = "pvr header"

	size, order, ok := endian.Detect(data, func(v uint32) bool {
		return v == HeaderSizeV1 || v == HeaderSizeV2
	})
	if !ok {
		return texture.NewError(op, texture.CodeFormatMismatch, "header size is neither 44 nor 52 bytes")
	}
	if len(data) < int(size) {
		return texture.Errorf(op, texture.CodeFormatMismatch, "header truncated: need %d bytes, got %d", size, len(data))
	}

	field := func(i int) uint32 { return order.Uint32(data[i*4:]) }

	*h = Header{
		Version:      Version1,
		Order:        order,
		Height:       field(1),
		Width:        field(2),
		MipmapCount:  field(3) + 1,
		Flags:        UnpackFlags(field(4)),
		SurfaceSize:  field(5),
		BitsPerPixel: field(6),
		RedMask:      field(7),
		GreenMask:    field(8),
		BlueMask:     field(9),
		AlphaMask:    field(10),
	}
	if size == HeaderSizeV2 {
		if id := field(11); id != Identifier {
			return texture.Errorf(op, texture.CodeFormatMismatch, "bad identifier %#08x", id)
		}
		h.Version = Version2
		h.NumSurfaces = field(12)
	}
	return nil
}

// ReadHeader reads and decodes a header from r without validating it.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSizeV2)
	if _, err := io.ReadFull(r, buf[:4]); err != nil {
		return nil, texture.WrapError("pvr header", texture.CodeFormatMismatch, "read size", err)
	}
	size, _, ok := endian.Detect(buf, func(v uint32) bool {
		return v == HeaderSizeV1 || v == HeaderSizeV2
	})
	if !ok {
		return nil, texture.NewError("pvr header", texture.CodeFormatMismatch, "header size is neither 44 nor 52 bytes")
	}
	if _, err := io.ReadFull(r, buf[4:size]); err != nil {
		return nil, texture.WrapError("pvr header", texture.CodeFormatMismatch, "read fields", err)
	}

	h := &Header{}
	if err := h.DecodeFrom(buf[:size]); err != nil {
		return nil, err
	}
	return h, nil
}

func isPowerOfTwo(v uint32) bool {
	return v != 0 && bits.OnesCount32(v) == 1
}

// Validate rejects headers this package cannot load.
func (h *Header) Validate() error {
	const op = "pvr header"
	f := h.Flags

	if !IsValid(f.Format) {
		return texture.Errorf(op, texture.CodeCorruptFile, "invalid pixel format %#02x", uint8(f.Format))
	}
	if h.Width == 0 || h.Height == 0 {
		return texture.Errorf(op, texture.CodeCorruptFile, "empty surface %dx%d", h.Width, h.Height)
	}
	if h.MipmapCount == 0 {
		return texture.NewError(op, texture.CodeCorruptFile, "mipmap count overflows")
	}
	if f.CubeMap {
		return texture.NewError(op, texture.CodeUnsupported, "cube maps")
	}
	if f.Volume {
		return texture.NewError(op, texture.CodeUnsupported, "volume textures")
	}
	if f.VerticalFlip {
		return texture.NewError(op, texture.CodeUnsupported, "vertically flipped data")
	}
	if f.Twiddled {
		if h.Width != h.Height || !isPowerOfTwo(h.Width) {
			return texture.Errorf(op, texture.CodeCorruptFile, "twiddled surface must be a power-of-two square, got %dx%d", h.Width, h.Height)
		}
		if Classify(f.Format) != ClassCompressed {
			return texture.Errorf(op, texture.CodeCorruptFile, "twiddled %s data", f.Format)
		}
	}
	return nil
}

// String summarises h.
func (h *Header) String() string {
	return fmt.Sprintf("PVR v%d %s-endian: %dx%d, %d levels, format=%s, surface=%d bytes, bpp=%d",
		h.Version, h.Order, h.Width, h.Height, h.MipmapCount, h.Flags.Format, h.SurfaceSize, h.BitsPerPixel)
}
