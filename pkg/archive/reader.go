package archive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/DataDog/zstd"
	"github.com/sirupsen/logrus"

	"github.com/EchoTools/pvrtools/pkg/pvr"
	"github.com/EchoTools/pvrtools/pkg/texture"
)

const (
	// DefaultCompressionLevel is the default compression level for encoding.
	DefaultCompressionLevel = zstd.BestSpeed
)

// Reader decompresses the PVR stream of an archive.
type Reader struct {
	header    *Header
	zReader   io.ReadCloser
	headerBuf [HeaderSize]byte
}

// NewReader reads and validates the header, then returns a reader for the
// decompressed PVR stream.
func NewReader(r io.Reader) (*Reader, error) {
	reader := &Reader{
		header: &Header{},
	}

	if _, err := io.ReadFull(r, reader.headerBuf[:]); err != nil {
		return nil, texture.WrapError("zpvr read", texture.CodeFormatMismatch, "read header", err)
	}

	if err := reader.header.UnmarshalBinary(reader.headerBuf[:]); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	reader.zReader = zstd.NewReader(io.LimitReader(r, int64(reader.header.CompressedLength)))
	return reader, nil
}

// Header returns the archive header.
func (r *Reader) Header() *Header {
	return r.header
}

// Read reads decompressed data into p.
func (r *Reader) Read(p []byte) (n int, err error) {
	return r.zReader.Read(p)
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.zReader.Close()
}

// Length returns the uncompressed data length.
func (r *Reader) Length() int {
	return int(r.header.Length)
}

// CompressedLength returns the compressed data length.
func (r *Reader) CompressedLength() int {
	return int(r.header.CompressedLength)
}

// ReadInfo reads the header of the archive at r without decompressing it.
// The stream position is restored.
func ReadInfo(r io.ReadSeeker) (*Header, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}
	defer r.Seek(pos, io.SeekStart)

	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, texture.WrapError("zpvr info", texture.CodeFormatMismatch, "read header", err)
	}
	h := &Header{}
	if err := h.UnmarshalBinary(buf[:]); err != nil {
		return nil, err
	}
	return h, nil
}

// Probe reports whether r starts with a valid archive header. The stream
// position is restored.
func Probe(r io.ReadSeeker) bool {
	_, err := ReadInfo(r)
	return err == nil
}

type readOptions struct {
	alloc texture.Allocator
	log   logrus.FieldLogger
}

// ReadOption configures Unpack.
type ReadOption func(*readOptions)

// WithAllocator sets the allocator for the level buffers of unpacked images.
func WithAllocator(a texture.Allocator) ReadOption {
	return func(o *readOptions) {
		o.alloc = a
	}
}

// WithLogger sets the sink for warnings raised while decoding the payload.
func WithLogger(l logrus.FieldLogger) ReadOption {
	return func(o *readOptions) {
		o.log = l
	}
}

// Unpack decompresses the archive at r and decodes the PVR image it holds.
// The image must match the geometry recorded in the header.
func Unpack(r io.Reader, opts ...ReadOption) (*pvr.Image, error) {
	const op = "zpvr unpack"
	o := &readOptions{alloc: texture.DefaultAllocator, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(o)
	}

	reader, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data := make([]byte, reader.Length())
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, texture.WrapError(op, texture.CodeCorruptFile, "read content", err)
	}

	img, err := pvr.Read(bytes.NewReader(data), pvr.WithAllocator(o.alloc), pvr.WithLogger(o.log))
	if err != nil {
		return nil, err
	}

	h := reader.Header()
	if img.Width() != h.Width || img.Height() != h.Height || img.Format != h.PixelFormat || uint32(len(img.Layers)) != h.Levels {
		err := texture.Errorf(op, texture.CodeCorruptFile,
			"payload is %dx%d %s with %d levels, header says %dx%d %s with %d",
			img.Width(), img.Height(), img.Format, len(img.Layers), h.Width, h.Height, h.PixelFormat, h.Levels)
		img.Clear(o.alloc)
		return nil, err
	}
	return img, nil
}
