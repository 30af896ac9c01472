package dxt

import (
	"errors"
	"testing"

	"github.com/EchoTools/pvrtools/pkg/texture"
)

func fill(width, height uint32, at func(x, y uint32) [4]uint8) []byte {
	buf := make([]byte, width*height*4)
	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			c := at(x, y)
			copy(buf[(y*width+x)*4:], c[:])
		}
	}
	return buf
}

func pixel(rgba []byte, width, x, y uint32) [4]uint8 {
	off := (y*width + x) * 4
	return [4]uint8{rgba[off], rgba[off+1], rgba[off+2], rgba[off+3]}
}

func near(a, b [4]uint8, tol int) bool {
	for i := range a {
		d := int(a[i]) - int(b[i])
		if d < -tol || d > tol {
			return false
		}
	}
	return true
}

func TestSurfaceSize(t *testing.T) {
	tests := []struct {
		variant int
		w, h    uint32
		want    uint32
	}{
		{1, 4, 4, 8},
		{1, 5, 3, 16},
		{3, 8, 8, 64},
		{5, 1, 1, 16},
	}
	for _, tt := range tests {
		if got := SurfaceSize(tt.variant, tt.w, tt.h); got != tt.want {
			t.Errorf("DXT%d %dx%d: got %d, want %d", tt.variant, tt.w, tt.h, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	halves := func(left, right [4]uint8) func(x, y uint32) [4]uint8 {
		return func(x, y uint32) [4]uint8 {
			if x%4 < 2 {
				return left
			}
			return right
		}
	}
	white := [4]uint8{255, 255, 255, 255}
	black := [4]uint8{0, 0, 0, 255}
	red := [4]uint8{255, 0, 0, 255}

	tests := []struct {
		name    string
		variant int
		at      func(x, y uint32) [4]uint8
		tol     int
	}{
		{"DXT1Solid", 1, func(x, y uint32) [4]uint8 { return red }, 0},
		{"DXT1TwoColors", 1, halves(white, black), 0},
		{"DXT1PunchThrough", 1, halves([4]uint8{0, 0, 0, 0}, red), 0},
		{"DXT3Alpha", 3, halves([4]uint8{255, 0, 0, 0x88}, [4]uint8{255, 0, 0, 0x11}), 0},
		{"DXT5Alpha", 5, halves([4]uint8{0, 0, 255, 0}, [4]uint8{0, 0, 255, 255}), 0},
		{"DXT2Premultiplied", 2, halves([4]uint8{200, 100, 48, 128}, white), 24},
		{"DXT4Premultiplied", 4, halves([4]uint8{200, 100, 48, 128}, white), 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const w, h = 8, 8
			src := fill(w, h, tt.at)
			data, err := Compress(tt.variant, src, w, h)
			if err != nil {
				t.Fatal(err)
			}
			if len(data) != int(SurfaceSize(tt.variant, w, h)) {
				t.Fatalf("size: got %d, want %d", len(data), SurfaceSize(tt.variant, w, h))
			}
			got, err := Decode(tt.variant, data, w, h)
			if err != nil {
				t.Fatal(err)
			}
			for y := uint32(0); y < h; y++ {
				for x := uint32(0); x < w; x++ {
					want, have := tt.at(x, y), pixel(got, w, x, y)
					if !near(have, want, tt.tol) {
						t.Fatalf("(%d,%d): got %v, want %v", x, y, have, want)
					}
				}
			}
		})
	}
}

func TestCompressEdges(t *testing.T) {
	src := fill(5, 3, func(x, y uint32) [4]uint8 {
		if x == 4 {
			return [4]uint8{0, 255, 0, 255}
		}
		return [4]uint8{0, 0, 0, 255}
	})
	data, err := Compress(1, src, 5, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 16 {
		t.Fatalf("size: got %d, want 16", len(data))
	}
	got, err := Decode(1, data, 8, 4)
	if err != nil {
		t.Fatal(err)
	}
	if p := pixel(got, 8, 7, 3); p != [4]uint8{0, 255, 0, 255} {
		t.Errorf("replicated edge: got %v", p)
	}
}

func TestErrors(t *testing.T) {
	if _, err := Decode(6, nil, 4, 4); !errors.Is(err, texture.ErrInvalidUsage) {
		t.Errorf("bad variant: got %v", err)
	}
	if _, err := Decode(1, make([]byte, 8), 6, 4); !errors.Is(err, texture.ErrInvalidUsage) {
		t.Errorf("unaligned: got %v", err)
	}
	if _, err := Decode(5, make([]byte, 8), 4, 4); !errors.Is(err, texture.ErrCorruptFile) {
		t.Errorf("short data: got %v", err)
	}
	if _, err := Compress(1, make([]byte, 10), 4, 4); !errors.Is(err, texture.ErrInvalidUsage) {
		t.Errorf("short image: got %v", err)
	}
	if _, err := Compress(3, nil, 0, 4); !errors.Is(err, texture.ErrInvalidUsage) {
		t.Errorf("empty image: got %v", err)
	}
}

func TestAlignSurface(t *testing.T) {
	src := fill(3, 2, func(x, y uint32) [4]uint8 {
		return [4]uint8{200, uint8(x * 10), uint8(y * 10), 128}
	})

	out, w, h := alignSurface(src, 3, 2, false)
	if w != 4 || h != 4 || len(out) != 64 {
		t.Fatalf("got %dx%d with %d bytes, want 4x4 with 64", w, h, len(out))
	}
	if got, want := pixel(out, w, 3, 3), pixel(src, 3, 2, 1); got != want {
		t.Errorf("padding: got %v, want %v", got, want)
	}

	out, _, _ = alignSurface(src, 3, 2, true)
	if got, want := pixel(out, w, 0, 0), [4]uint8{100, 0, 0, 128}; got != want {
		t.Errorf("premultiplied: got %v, want %v", got, want)
	}
}
