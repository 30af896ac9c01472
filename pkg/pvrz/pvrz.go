// Package pvrz reads and writes PVRZ files: a PVR container deflated with
// zlib behind a 4-byte little-endian length of the uncompressed data.
package pvrz

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/sirupsen/logrus"

	"github.com/EchoTools/pvrtools/pkg/pvr"
	"github.com/EchoTools/pvrtools/pkg/texture"
)

// prefixSize is the size of the uncompressed length in front of the zlib stream.
const prefixSize = 4

// maxLength bounds the declared uncompressed length.
const maxLength = 1 << 30

// DefaultCompressionLevel matches the level PVRZ files are usually written with.
const DefaultCompressionLevel = zlib.BestCompression

type options struct {
	level int
	alloc texture.Allocator
	log   logrus.FieldLogger
}

// Option configures Encode and Decode.
type Option func(*options)

// WithCompressionLevel sets the zlib level used by Encode.
func WithCompressionLevel(level int) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithAllocator sets the allocator for the level buffers of decoded images.
func WithAllocator(a texture.Allocator) Option {
	return func(o *options) {
		o.alloc = a
	}
}

// WithLogger sets the sink for warnings raised while decoding the payload.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = l
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		level: DefaultCompressionLevel,
		alloc: texture.DefaultAllocator,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Compress wraps data in the PVRZ framing.
func Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	var prefix [prefixSize]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(data)))
	buf.Write(prefix[:])

	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("create compressor: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close compressor: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reads one PVRZ payload from r and returns the data it wraps.
func Decompress(r io.Reader) ([]byte, error) {
	const op = "pvrz decompress"

	var prefix [prefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, texture.WrapError(op, texture.CodeFormatMismatch, "read length", err)
	}
	length := binary.LittleEndian.Uint32(prefix[:])
	if length == 0 || length > maxLength {
		return nil, texture.Errorf(op, texture.CodeCorruptFile, "declared length %d", length)
	}

	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, texture.WrapError(op, texture.CodeFormatMismatch, "open zlib stream", err)
	}
	defer zr.Close()

	data := make([]byte, length)
	if _, err := io.ReadFull(zr, data); err != nil {
		return nil, texture.WrapError(op, texture.CodeCorruptFile, fmt.Sprintf("inflate %d bytes", length), err)
	}
	return data, nil
}

// Encode writes img to w as PVRZ.
func Encode(w io.Writer, img *pvr.Image, opts ...Option) error {
	o := newOptions(opts)

	var raw bytes.Buffer
	if err := img.Write(&raw, pvr.WithLogger(o.log)); err != nil {
		return err
	}
	data, err := Compress(raw.Bytes(), o.level)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write pvrz: %w", err)
	}
	return nil
}

// Decode reads a PVRZ file from r.
func Decode(r io.Reader, opts ...Option) (*pvr.Image, error) {
	o := newOptions(opts)

	data, err := Decompress(r)
	if err != nil {
		return nil, err
	}
	return pvr.Read(bytes.NewReader(data), pvr.WithAllocator(o.alloc), pvr.WithLogger(o.log))
}

// IsPVRZ reports whether r starts with a length prefix followed by a zlib
// stream header. The stream position is restored.
func IsPVRZ(r io.ReadSeeker) bool {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return false
	}
	defer r.Seek(pos, io.SeekStart)

	var head [prefixSize + 2]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return false
	}
	length := binary.LittleEndian.Uint32(head[:prefixSize])
	if length == 0 || length > maxLength {
		return false
	}
	cmf, flg := head[prefixSize], head[prefixSize+1]
	// Deflate with a window of at most 32K, and a valid header check.
	return cmf&0x0F == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}
