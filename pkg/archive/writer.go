package archive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/DataDog/zstd"

	"github.com/EchoTools/pvrtools/pkg/pvr"
	"github.com/EchoTools/pvrtools/pkg/texture"
)

// Writer compresses a PVR stream into an archive.
type Writer struct {
	dst     io.WriteSeeker
	zWriter *zstd.Writer
	header  *Header
	level   int
	start   int64
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCompressionLevel sets the compression level for the writer.
func WithCompressionLevel(level int) WriterOption {
	return func(w *Writer) {
		w.level = level
	}
}

// NewWriter writes a placeholder for header to dst and returns a writer for
// the uncompressed PVR stream. header.Length must already be set.
func NewWriter(dst io.WriteSeeker, header *Header, opts ...WriterOption) (*Writer, error) {
	if header.Length > maxLength {
		return nil, texture.Errorf("zpvr pack", texture.CodeInvalidUsage, "payload of %d bytes exceeds %d", header.Length, maxLength)
	}

	w := &Writer{
		dst:    dst,
		level:  DefaultCompressionLevel,
		header: header,
	}
	w.header.CompressedLength = 0

	for _, opt := range opts {
		opt(w)
	}

	start, err := dst.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}
	w.start = start

	headerBytes, err := w.header.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	if _, err := dst.Write(headerBytes); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	w.zWriter = zstd.NewWriterLevel(dst, w.level)
	return w, nil
}

// Header returns the archive header. CompressedLength is set by Close.
func (w *Writer) Header() *Header {
	return w.header
}

// Write writes compressed data.
func (w *Writer) Write(p []byte) (n int, err error) {
	return w.zWriter.Write(p)
}

// Close finalizes the archive by updating the header with the compressed size.
func (w *Writer) Close() error {
	if err := w.zWriter.Close(); err != nil {
		return fmt.Errorf("close compressor: %w", err)
	}

	pos, err := w.dst.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("get position: %w", err)
	}

	w.header.CompressedLength = uint64(pos - w.start - int64(w.header.Size()))

	if _, err := w.dst.Seek(w.start, io.SeekStart); err != nil {
		return fmt.Errorf("seek to header: %w", err)
	}

	headerBytes, err := w.header.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	if _, err := w.dst.Write(headerBytes); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if _, err := w.dst.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}

	return nil
}

// Pack encodes img as PVR and writes it to dst as a compressed archive.
func Pack(dst io.WriteSeeker, img *pvr.Image, opts ...WriterOption) (*Header, error) {
	var buf bytes.Buffer
	if err := img.Write(&buf); err != nil {
		return nil, err
	}

	w, err := NewWriter(dst, NewHeader(img, uint64(buf.Len())), opts...)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return w.Header(), nil
}
