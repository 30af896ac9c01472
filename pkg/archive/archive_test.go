package archive

import (
	"bytes"
	"errors"
	"testing"

	"github.com/EchoTools/pvrtools/pkg/endian"
	"github.com/EchoTools/pvrtools/pkg/pvr"
	"github.com/EchoTools/pvrtools/pkg/texture"
)

// testImage returns a two-level ARGB_8888 image with a byte ramp as texels.
func testImage() *pvr.Image {
	img := &pvr.Image{Format: pvr.ARGB8888, Order: endian.Little, BitDepth: 32}
	for _, size := range []uint32{4, 2} {
		n := size * size * 4
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = byte(i)
		}
		img.Layers = append(img.Layers, texture.Layer{
			Width: size, Height: size, LayerWidth: size, LayerHeight: size,
			Texels: buf, DataSize: n,
		})
	}
	return img
}

func TestHeader(t *testing.T) {
	t.Run("MarshalUnmarshal", func(t *testing.T) {
		original := NewHeader(testImage(), 1024)
		original.CompressedLength = 512

		data, err := original.MarshalBinary()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if len(data) != HeaderSize {
			t.Fatalf("size: got %d, want %d", len(data), HeaderSize)
		}

		decoded := &Header{}
		if err := decoded.UnmarshalBinary(data); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}

		if *decoded != *original {
			t.Errorf("mismatch: got %+v, want %+v", decoded, original)
		}
	})

	tests := []struct {
		name   string
		modify func(h *Header)
		want   error
	}{
		{"InvalidMagic", func(h *Header) { h.Magic = [4]byte{} }, texture.ErrFormatMismatch},
		{"HeaderLength", func(h *Header) { h.HeaderLength = 16 }, texture.ErrCorruptFile},
		{"PixelFormat", func(h *Header) { h.PixelFormat = 0xFF }, texture.ErrCorruptFile},
		{"NoLevels", func(h *Header) { h.Levels = 0 }, texture.ErrCorruptFile},
		{"ZeroLength", func(h *Header) { h.Length = 0 }, texture.ErrCorruptFile},
		{"ZeroCompressedLength", func(h *Header) { h.CompressedLength = 0 }, texture.ErrCorruptFile},
		{"LengthTooLarge", func(h *Header) { h.Length = maxLength + 1 }, texture.ErrCorruptFile},
		{"HugeLength", func(h *Header) { h.Length = 1 << 63 }, texture.ErrCorruptFile},
		{"CompressedLengthTooLarge", func(h *Header) { h.CompressedLength = 1 << 63 }, texture.ErrCorruptFile},
	}

	t.Run("PixelFormatHighBits", func(t *testing.T) {
		h := NewHeader(testImage(), 1024)
		h.CompressedLength = 512
		data, _ := h.MarshalBinary()
		data[17] = 0x01 // 0x105 aliases ARGB_8888 when truncated

		if err := (&Header{}).UnmarshalBinary(data); !errors.Is(err, texture.ErrCorruptFile) {
			t.Errorf("got %v, want corrupt file", err)
		}
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHeader(testImage(), 1024)
			h.CompressedLength = 512
			tt.modify(h)
			if err := h.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPackUnpack(t *testing.T) {
	img := testImage()

	var buf bytes.Buffer
	ws := &seekableBuffer{Buffer: &buf}
	h, err := Pack(ws, img)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if h.Width != 4 || h.Height != 4 || h.Levels != 2 || h.PixelFormat != pvr.ARGB8888 {
		t.Errorf("header: got %v", h)
	}
	if want := uint64(buf.Len() - HeaderSize); h.CompressedLength != want {
		t.Errorf("compressed length: got %d, want %d", h.CompressedLength, want)
	}

	rs := bytes.NewReader(buf.Bytes())
	info, err := ReadInfo(rs)
	if err != nil {
		t.Fatalf("read info: %v", err)
	}
	if *info != *h {
		t.Errorf("info: got %+v, want %+v", info, h)
	}
	if pos, _ := rs.Seek(0, 1); pos != 0 {
		t.Errorf("read info moved the stream to %d", pos)
	}

	decoded, err := Unpack(rs)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if len(decoded.Layers) != len(img.Layers) {
		t.Fatalf("levels: got %d, want %d", len(decoded.Layers), len(img.Layers))
	}
	for i := range img.Layers {
		if !bytes.Equal(decoded.Layers[i].Texels, img.Layers[i].Texels) {
			t.Errorf("level %d texels differ", i)
		}
	}
}

func TestPackAtOffset(t *testing.T) {
	var buf bytes.Buffer
	ws := &seekableBuffer{Buffer: &buf}
	ws.Write([]byte("prefix"))

	if _, err := Pack(ws, testImage(), WithCompressionLevel(DefaultCompressionLevel)); err != nil {
		t.Fatalf("pack: %v", err)
	}
	if _, err := Unpack(bytes.NewReader(buf.Bytes()[6:])); err != nil {
		t.Fatalf("unpack: %v", err)
	}
}

func TestUnpackMismatch(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Pack(&seekableBuffer{Buffer: &buf}, testImage()); err != nil {
		t.Fatalf("pack: %v", err)
	}
	data := buf.Bytes()
	data[8] = 8 // width

	alloc := &countingAllocator{}
	if _, err := Unpack(bytes.NewReader(data), WithAllocator(alloc)); !errors.Is(err, texture.ErrCorruptFile) {
		t.Fatalf("got %v, want corrupt file", err)
	}
	if alloc.allocated != alloc.freed {
		t.Errorf("leaked: allocated %d, freed %d", alloc.allocated, alloc.freed)
	}
}

func TestUnpackOversizedLength(t *testing.T) {
	h := NewHeader(testImage(), 1<<63)
	h.CompressedLength = 16
	data := make([]byte, HeaderSize+16)
	h.EncodeTo(data)

	if _, err := Unpack(bytes.NewReader(data)); !errors.Is(err, texture.ErrCorruptFile) {
		t.Fatalf("got %v, want corrupt file", err)
	}
}

func TestNewWriterOversized(t *testing.T) {
	var buf bytes.Buffer
	h := NewHeader(testImage(), maxLength+1)
	if _, err := NewWriter(&seekableBuffer{Buffer: &buf}, h); !errors.Is(err, texture.ErrInvalidUsage) {
		t.Fatalf("got %v, want invalid usage", err)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes before rejecting the header", buf.Len())
	}
}

func TestProbe(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Pack(&seekableBuffer{Buffer: &buf}, testImage()); err != nil {
		t.Fatalf("pack: %v", err)
	}
	if !Probe(bytes.NewReader(buf.Bytes())) {
		t.Error("packed archive not recognised")
	}
	if Probe(bytes.NewReader([]byte("PVRT not an archive at all, just padding bytes"))) {
		t.Error("plain data recognised as archive")
	}
	if Probe(bytes.NewReader([]byte("ZPVR"))) {
		t.Error("truncated header recognised as archive")
	}
}

type countingAllocator struct {
	allocated, freed int
}

func (a *countingAllocator) Allocate(size uint32) ([]byte, error) {
	a.allocated++
	return make([]byte, size), nil
}

func (a *countingAllocator) Free([]byte) { a.freed++ }

type seekableBuffer struct {
	*bytes.Buffer
	pos int64
}

func (s *seekableBuffer) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case 0:
		newPos = offset
	case 1:
		newPos = s.pos + offset
	case 2:
		newPos = int64(s.Buffer.Len()) + offset
	}
	s.pos = newPos
	return newPos, nil
}

func (s *seekableBuffer) Write(p []byte) (n int, err error) {
	for int64(s.Buffer.Len()) < s.pos {
		s.Buffer.WriteByte(0)
	}
	if s.pos < int64(s.Buffer.Len()) {
		data := s.Buffer.Bytes()
		n = copy(data[s.pos:], p)
		if n < len(p) {
			m, err := s.Buffer.Write(p[n:])
			n += m
			if err != nil {
				return n, err
			}
		}
	} else {
		n, err = s.Buffer.Write(p)
	}
	s.pos += int64(n)
	return n, err
}
