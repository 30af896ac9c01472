package convert

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/EchoTools/pvrtools/pkg/endian"
	"github.com/EchoTools/pvrtools/pkg/pvr"
	"github.com/EchoTools/pvrtools/pkg/texture"
)

// checker returns a w×h image alternating opaque white and a translucent
// red of the given alpha in 2×2 squares.
func checker(w, h int, alpha uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			if (x/2+y/2)%2 == 1 {
				c = color.NRGBA{R: 255, A: alpha}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestGenerateMipmaps(t *testing.T) {
	chain := GenerateMipmaps(solid(8, 4, color.NRGBA{A: 255}), 0)
	want := [][2]int{{8, 4}, {4, 2}, {2, 1}, {1, 1}}
	if len(chain) != len(want) {
		t.Fatalf("levels: got %d, want %d", len(chain), len(want))
	}
	for i, img := range chain {
		if b := img.Bounds(); b.Dx() != want[i][0] || b.Dy() != want[i][1] {
			t.Errorf("level %d: got %dx%d, want %dx%d", i, b.Dx(), b.Dy(), want[i][0], want[i][1])
		}
	}

	if got := len(GenerateMipmaps(solid(8, 8, color.NRGBA{}), 2)); got != 2 {
		t.Errorf("limited chain: got %d levels, want 2", got)
	}

	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	src.SetNRGBA(1, 1, color.NRGBA{R: 255, A: 255})
	got := GenerateMipmaps(src, 0)[1].At(0, 0).(color.NRGBA)
	if got.R != 128 || got.A != 128 {
		t.Errorf("box filter: got %v, want R=128 A=128", got)
	}
}

func TestImageRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		format pvr.PixelFormat
		order  endian.Order
		src    *image.NRGBA
		tol    int
	}{
		{"ARGB8888", pvr.ARGB8888, endian.Little, checker(8, 8, 0x40), 0},
		{"BGRA8888BigEndian", pvr.BGRA8888, endian.Big, checker(6, 5, 0x80), 0},
		{"ARGB4444", pvr.ARGB4444Sec, endian.Big, solid(4, 4, color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x44}), 0},
		{"I8", pvr.I8, endian.Little, solid(3, 3, color.NRGBA{R: 90, G: 90, B: 90, A: 255}), 0},
		{"DXT1", pvr.DXT1, endian.Little, solid(8, 8, color.NRGBA{R: 255, A: 255}), 8},
		{"DXT5BigEndian", pvr.DXT5, endian.Big, checker(8, 8, 0), 8},
		{"PVRTC4", pvr.PVRTC4, endian.Little, solid(16, 16, color.NRGBA{R: 255, A: 255}), 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := FromImage(Env{}, tt.src, tt.format, tt.order, 3)
			if err != nil {
				t.Fatal(err)
			}
			if len(img.Layers) != 3 {
				t.Errorf("levels: got %d, want 3", len(img.Layers))
			}
			if err := img.Validate(); err != nil {
				t.Fatalf("encoded image invalid: %v", err)
			}

			out, err := ToImage(Env{}, img, 0)
			if err != nil {
				t.Fatal(err)
			}
			b := tt.src.Bounds()
			if out.Bounds() != b {
				t.Fatalf("bounds: got %v, want %v", out.Bounds(), b)
			}
			for y := 0; y < b.Dy(); y++ {
				for x := 0; x < b.Dx(); x++ {
					want := tt.src.NRGBAAt(x, y)
					got := out.NRGBAAt(x, y)
					if !closeTo(got, want, tt.tol) {
						t.Fatalf("(%d,%d): got %v, want %v", x, y, got, want)
					}
				}
			}
		})
	}
}

func closeTo(a, b color.NRGBA, tol int) bool {
	for _, d := range []int{
		int(a.R) - int(b.R), int(a.G) - int(b.G), int(a.B) - int(b.B), int(a.A) - int(b.A),
	} {
		if d < -tol || d > tol {
			return false
		}
	}
	return true
}

func TestImageErrors(t *testing.T) {
	if _, err := FromImage(Env{}, solid(6, 4, color.NRGBA{}), pvr.PVRTC2, endian.Little, 1); !errors.Is(err, texture.ErrInvalidUsage) {
		t.Errorf("PVRTC non power of two: got %v", err)
	}
	if _, err := FromImage(Env{}, solid(4, 4, color.NRGBA{}), pvr.YUY2, endian.Little, 1); !errors.Is(err, texture.ErrUnsupported) {
		t.Errorf("YUV: got %v", err)
	}
	if _, err := FromImage(Env{}, solid(4, 4, color.NRGBA{}), pvr.PixelFormat(0xFF), endian.Little, 1); !errors.Is(err, texture.ErrInvalidUsage) {
		t.Errorf("invalid format: got %v", err)
	}

	img, err := FromImage(Env{}, solid(2, 2, color.NRGBA{A: 255}), pvr.RGB565, endian.Little, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ToImage(Env{}, img, 1); !errors.Is(err, texture.ErrInvalidUsage) {
		t.Errorf("missing level: got %v", err)
	}
}

func TestFromImageAllocationFailure(t *testing.T) {
	alloc := &countingAllocator{failAfter: 2}
	if _, err := FromImage(Env{Alloc: alloc}, solid(8, 8, color.NRGBA{A: 255}), pvr.ARGB8888, endian.Little, 0); !errors.Is(err, texture.ErrAllocation) {
		t.Fatalf("got %v, want allocation failure", err)
	}
	if alloc.allocated != 2 || alloc.freed != 2 {
		t.Errorf("allocated %d, freed %d; want 2 and 2", alloc.allocated, alloc.freed)
	}
}
