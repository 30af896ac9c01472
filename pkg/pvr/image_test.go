package pvr

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/EchoTools/pvrtools/pkg/endian"
	"github.com/EchoTools/pvrtools/pkg/texture"
)

type countingAllocator struct {
	failAfter int
	allocated int
	freed     int
}

func (a *countingAllocator) Allocate(size uint32) ([]byte, error) {
	if a.failAfter >= 0 && a.allocated >= a.failAfter {
		return nil, errors.New("out of memory")
	}
	a.allocated++
	return make([]byte, size), nil
}

func (a *countingAllocator) Free([]byte) { a.freed++ }

// makeImage builds an image of f with count levels filled with a
// deterministic byte pattern.
func makeImage(f PixelFormat, width, height uint32, count int) *Image {
	img := NewImage()
	img.Format = f
	img.BitDepth = Depth(f)
	img.Order = endian.Little
	seed := byte(1)
	for _, lvl := range Layout(f, width, height, count) {
		buf := make([]byte, lvl.DataSize)
		for i := range buf {
			buf[i] = seed
			seed = seed*31 + 7
		}
		img.Layers = append(img.Layers, texture.Layer{
			Width: lvl.Width, Height: lvl.Height,
			LayerWidth: lvl.LayerWidth, LayerHeight: lvl.LayerHeight,
			Texels: buf, DataSize: lvl.DataSize,
		})
	}
	return img
}

func encode(t *testing.T, img *Image, opts ...Option) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := img.Write(&buf, opts...); err != nil {
		t.Fatalf("write: %v", err)
	}
	return buf.Bytes()
}

func quietLogger() logrus.FieldLogger {
	l, _ := logtest.NewNullLogger()
	return l
}

func TestImageRoundTrip(t *testing.T) {
	for _, f := range Formats() {
		t.Run(f.String(), func(t *testing.T) {
			img := makeImage(f, 20, 12, 3)
			data := encode(t, img)

			got, err := Read(bytes.NewReader(data), WithLogger(quietLogger()))
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if got.Format != f || got.Order != endian.Little {
				t.Errorf("format: got %s/%s, want %s/little", got.Format, got.Order, f)
			}
			if got.Width() != 20 || got.Height() != 12 {
				t.Errorf("dimensions: got %dx%d, want 20x12", got.Width(), got.Height())
			}
			if len(got.Layers) != len(img.Layers) {
				t.Fatalf("levels: got %d, want %d", len(got.Layers), len(img.Layers))
			}
			for i := range img.Layers {
				want, have := img.Layers[i], got.Layers[i]
				if have.Width != want.Width || have.Height != want.Height || have.DataSize != want.DataSize {
					t.Errorf("level %d geometry: got %+v", i, have)
				}
				if !bytes.Equal(have.Texels, want.Texels) {
					t.Errorf("level %d texels differ", i)
				}
			}
		})
	}
}

func TestImageByteOrder(t *testing.T) {
	for _, f := range []PixelFormat{ARGB4444, RGB888, ABGR16161616F, DXT5, L16, PVRTC2} {
		t.Run(f.String(), func(t *testing.T) {
			img := makeImage(f, 16, 16, 2)
			little := encode(t, img)
			big := encode(t, img, WithByteOrder(endian.Big))

			if endian.Big.Uint32(big) != HeaderSizeV2 {
				t.Fatalf("big-endian header size field: % x", big[:4])
			}

			decoded, err := Read(bytes.NewReader(big))
			if err != nil {
				t.Fatal(err)
			}
			if decoded.Order != endian.Big {
				t.Fatalf("order: got %s, want big", decoded.Order)
			}
			if again := encode(t, decoded, WithByteOrder(endian.Little)); !bytes.Equal(again, little) {
				t.Error("big-endian copy does not convert back to the little-endian file")
			}
			if again := encode(t, decoded); !bytes.Equal(again, big) {
				t.Error("big-endian image does not re-encode identically")
			}
		})
	}
}

func TestImageVersion1(t *testing.T) {
	img := makeImage(RGB565, 8, 8, 1)
	h := img.Header(endian.Little)
	h.Version = Version1
	hdr, _ := h.MarshalBinary()
	data := append(hdr, img.Layers[0].Texels...)

	got, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	out := encode(t, got)
	if len(out) != HeaderSizeV2+128 {
		t.Fatalf("output size: got %d, want %d", len(out), HeaderSizeV2+128)
	}
	if id := endian.Little.Uint32(out[44:]); id != Identifier {
		t.Errorf("identifier: got %#08x", id)
	}
}

func TestImageCorrupt(t *testing.T) {
	t.Run("SurfaceSizeTooSmall", func(t *testing.T) {
		img := makeImage(ARGB8888, 8, 8, 1)
		h := img.Header(endian.Little)
		h.SurfaceSize = 100
		hdr, _ := h.MarshalBinary()
		data := append(hdr, img.Layers[0].Texels...)

		alloc := &countingAllocator{failAfter: -1}
		_, err := Read(bytes.NewReader(data), WithAllocator(alloc))
		if !errors.Is(err, texture.ErrCorruptFile) {
			t.Fatalf("got %v, want corrupt file", err)
		}
		if alloc.allocated != 0 {
			t.Errorf("allocations: got %d, want 0", alloc.allocated)
		}
	})

	t.Run("StreamTooShort", func(t *testing.T) {
		img := makeImage(ARGB8888, 8, 8, 2)
		data := encode(t, img)
		data = data[:len(data)-10]

		alloc := &countingAllocator{failAfter: -1}
		_, err := Read(bytes.NewReader(data), WithAllocator(alloc))
		if !errors.Is(err, texture.ErrCorruptFile) {
			t.Fatalf("got %v, want corrupt file", err)
		}
		if alloc.allocated != alloc.freed {
			t.Errorf("leaked buffers: allocated %d, freed %d", alloc.allocated, alloc.freed)
		}
	})

	t.Run("StreamTooShortUnsized", func(t *testing.T) {
		img := makeImage(ARGB8888, 8, 8, 1)
		data := encode(t, img)
		r := io.MultiReader(bytes.NewReader(data[:len(data)-10]))

		if _, err := Read(r); !errors.Is(err, texture.ErrCorruptFile) {
			t.Fatalf("got %v, want corrupt file", err)
		}
	})

	t.Run("AllocationFailure", func(t *testing.T) {
		img := makeImage(ARGB4444, 16, 16, 3)
		data := encode(t, img)

		alloc := &countingAllocator{failAfter: 2}
		_, err := Read(bytes.NewReader(data), WithAllocator(alloc))
		if !errors.Is(err, texture.ErrAllocation) {
			t.Fatalf("got %v, want allocation failure", err)
		}
		if alloc.allocated != 2 || alloc.freed != 2 {
			t.Errorf("got %d allocated, %d freed, want 2 and 2", alloc.allocated, alloc.freed)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		img := makeImage(ARGB4444, 16, 16, 1)
		img.CubeMap = true
		data := encode(t, img)
		if _, err := Read(bytes.NewReader(data)); !errors.Is(err, texture.ErrUnsupported) {
			t.Errorf("got %v, want unsupported", err)
		}
	})
}

func TestImageWarnings(t *testing.T) {
	t.Run("BitsPerPixel", func(t *testing.T) {
		img := makeImage(RGB565, 4, 4, 1)
		h := img.Header(endian.Little)
		h.BitsPerPixel = 24
		hdr, _ := h.MarshalBinary()
		data := append(hdr, img.Layers[0].Texels...)

		logger, hook := logtest.NewNullLogger()
		if _, err := Read(bytes.NewReader(data), WithLogger(logger)); err != nil {
			t.Fatal(err)
		}
		if len(hook.Entries) != 1 {
			t.Fatalf("warnings: got %d, want 1", len(hook.Entries))
		}
		entry := hook.LastEntry()
		if entry.Level != logrus.WarnLevel || entry.Data["kind"] != "soft-anomaly" {
			t.Errorf("entry: got %v %v", entry.Level, entry.Data)
		}
	})

	t.Run("FewerLevels", func(t *testing.T) {
		img := makeImage(ARGB8888, 4, 4, 10)
		if len(img.Layers) != 3 {
			t.Fatalf("levels: got %d, want 3", len(img.Layers))
		}
		h := img.Header(endian.Little)
		h.MipmapCount = 10
		hdr, _ := h.MarshalBinary()
		var data []byte
		data = append(data, hdr...)
		for _, l := range img.Layers {
			data = append(data, l.Texels...)
		}

		logger, hook := logtest.NewNullLogger()
		got, err := Read(bytes.NewReader(data), WithLogger(logger))
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Layers) != 3 {
			t.Errorf("levels: got %d, want 3", len(got.Layers))
		}
		if len(hook.Entries) != 1 {
			t.Errorf("warnings: got %d, want 1", len(hook.Entries))
		}
	})

	t.Run("LeftoverBytes", func(t *testing.T) {
		img := makeImage(ARGB8888, 4, 4, 1)
		h := img.Header(endian.Little)
		h.SurfaceSize += 8
		hdr, _ := h.MarshalBinary()
		var data []byte
		data = append(data, hdr...)
		data = append(data, img.Layers[0].Texels...)
		data = append(data, make([]byte, 8)...)
		data = append(data, 0xEE)

		logger, hook := logtest.NewNullLogger()
		r := bytes.NewReader(data)
		if _, err := Read(r, WithLogger(logger)); err != nil {
			t.Fatal(err)
		}
		if len(hook.Entries) != 1 {
			t.Errorf("warnings: got %d, want 1", len(hook.Entries))
		}
		if b, err := r.ReadByte(); err != nil || b != 0xEE {
			t.Errorf("stream not positioned after the surface data: %v %#02x", err, b)
		}
	})
}

func TestProbe(t *testing.T) {
	data := encode(t, makeImage(DXT1, 8, 8, 1))
	r := bytes.NewReader(data)
	if !Probe(r) {
		t.Fatal("valid file not recognised")
	}
	if pos, _ := r.Seek(0, io.SeekCurrent); pos != 0 {
		t.Errorf("position after probe: got %d, want 0", pos)
	}

	if Probe(bytes.NewReader([]byte("not a texture at all, just some text bytes here......"))) {
		t.Error("text recognised as a PVR file")
	}
}

func TestImageWriteInvalid(t *testing.T) {
	var buf bytes.Buffer
	if err := NewImage().Write(&buf); !errors.Is(err, texture.ErrInvalidUsage) {
		t.Errorf("empty image: got %v", err)
	}

	img := makeImage(ARGB8888, 4, 4, 1)
	img.Layers[0].DataSize = 10
	if err := img.Write(&buf); !errors.Is(err, texture.ErrInvalidUsage) {
		t.Errorf("bad layer size: got %v", err)
	}
}

func TestImageClear(t *testing.T) {
	img := makeImage(ARGB8888, 8, 8, 3)
	alloc := &countingAllocator{failAfter: -1}
	img.Clear(alloc)
	if alloc.freed != 3 || img.Layers != nil {
		t.Errorf("got %d freed, layers %v", alloc.freed, img.Layers)
	}
}
