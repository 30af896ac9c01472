// Package archive packs PVR images into zstd compressed "ZPVR" archives.
//
// The header repeats the base level geometry and pixel format of the packed
// image so listings do not need to decompress the payload.
package archive

import (
	"encoding/binary"
	"fmt"

	"github.com/DataDog/zstd"

	"github.com/EchoTools/pvrtools/pkg/pvr"
	"github.com/EchoTools/pvrtools/pkg/texture"
)

// Magic bytes identifying a ZPVR archive header.
var Magic = [4]byte{0x5a, 0x50, 0x56, 0x52} // "ZPVR"

// HeaderSize is the fixed binary size of an archive header.
const HeaderSize = 40 // 4 + 4 + 4*4 + 8 + 8 bytes

// headerLength is the number of header bytes following the length field.
const headerLength = HeaderSize - 8

// maxLength bounds the uncompressed payload an archive may declare.
const maxLength = 1 << 30

// Header represents the header of a ZPVR archive.
type Header struct {
	Magic            [4]byte
	HeaderLength     uint32
	Width            uint32
	Height           uint32
	PixelFormat      pvr.PixelFormat
	Levels           uint32
	Length           uint64 // Uncompressed size
	CompressedLength uint64 // Compressed size

	formatHigh uint32 // bits 8-31 of the on-disk format field
}

// NewHeader describes img once its PVR encoding is length bytes long.
func NewHeader(img *pvr.Image, length uint64) *Header {
	return &Header{
		Magic:        Magic,
		HeaderLength: headerLength,
		Width:        img.Width(),
		Height:       img.Height(),
		PixelFormat:  img.Format,
		Levels:       uint32(len(img.Layers)),
		Length:       length,
	}
}

// Size returns the binary size of the header.
func (h *Header) Size() int {
	return HeaderSize
}

// Validate checks the header for validity.
func (h *Header) Validate() error {
	const op = "zpvr header"
	if h.Magic != Magic {
		return texture.Errorf(op, texture.CodeFormatMismatch, "invalid magic: expected %x, got %x", Magic, h.Magic)
	}
	if h.HeaderLength != headerLength {
		return texture.Errorf(op, texture.CodeCorruptFile, "invalid header length: expected %d, got %d", headerLength, h.HeaderLength)
	}
	if h.formatHigh != 0 {
		return texture.Errorf(op, texture.CodeCorruptFile, "invalid pixel format %#x", h.formatHigh<<8|uint32(h.PixelFormat))
	}
	if !pvr.IsValid(h.PixelFormat) {
		return texture.Errorf(op, texture.CodeCorruptFile, "invalid pixel format %#02x", uint8(h.PixelFormat))
	}
	if h.Width == 0 || h.Height == 0 || h.Levels == 0 {
		return texture.Errorf(op, texture.CodeCorruptFile, "empty image %dx%d with %d levels", h.Width, h.Height, h.Levels)
	}
	if h.Length == 0 {
		return texture.NewError(op, texture.CodeCorruptFile, "uncompressed size is zero")
	}
	if h.Length > maxLength {
		return texture.Errorf(op, texture.CodeCorruptFile, "uncompressed size %d exceeds %d", h.Length, maxLength)
	}
	if h.CompressedLength == 0 {
		return texture.NewError(op, texture.CodeCorruptFile, "compressed size is zero")
	}
	if bound := uint64(zstd.CompressBound(int(h.Length))); h.CompressedLength > bound {
		return texture.Errorf(op, texture.CodeCorruptFile, "compressed size %d exceeds %d", h.CompressedLength, bound)
	}
	return nil
}

// MarshalBinary encodes the header to binary format.
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	h.EncodeTo(buf)
	return buf, nil
}

// EncodeTo writes the header to the given buffer.
// The buffer must be at least HeaderSize bytes.
func (h *Header) EncodeTo(buf []byte) {
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.HeaderLength)
	binary.LittleEndian.PutUint32(buf[8:12], h.Width)
	binary.LittleEndian.PutUint32(buf[12:16], h.Height)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(h.PixelFormat))
	binary.LittleEndian.PutUint32(buf[20:24], h.Levels)
	binary.LittleEndian.PutUint64(buf[24:32], h.Length)
	binary.LittleEndian.PutUint64(buf[32:40], h.CompressedLength)
}

// UnmarshalBinary decodes and validates the header.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("header data too short: need %d, got %d", HeaderSize, len(data))
	}
	h.DecodeFrom(data)
	return h.Validate()
}

// DecodeFrom reads the header from the given buffer.
// Does not validate - use UnmarshalBinary for validation.
func (h *Header) DecodeFrom(data []byte) {
	copy(h.Magic[:], data[0:4])
	h.HeaderLength = binary.LittleEndian.Uint32(data[4:8])
	h.Width = binary.LittleEndian.Uint32(data[8:12])
	h.Height = binary.LittleEndian.Uint32(data[12:16])
	format := binary.LittleEndian.Uint32(data[16:20])
	h.PixelFormat = pvr.PixelFormat(format & 0xFF)
	h.formatHigh = format >> 8
	h.Levels = binary.LittleEndian.Uint32(data[20:24])
	h.Length = binary.LittleEndian.Uint64(data[24:32])
	h.CompressedLength = binary.LittleEndian.Uint64(data[32:40])
}

func (h *Header) String() string {
	return fmt.Sprintf("ZPVR %dx%d %s, %d levels, %d bytes packed into %d",
		h.Width, h.Height, h.PixelFormat, h.Levels, h.Length, h.CompressedLength)
}
