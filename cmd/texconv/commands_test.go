package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/image/bmp"

	"github.com/EchoTools/pvrtools/pkg/endian"
	"github.com/EchoTools/pvrtools/pkg/engine"
	"github.com/EchoTools/pvrtools/pkg/pvr"
)

func newApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	ctx := engine.New(engine.WithLogger(logger))
	if err := ctx.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ctx.Shutdown)

	var out bytes.Buffer
	return &app{ctx: ctx, out: &out, format: pvr.ARGB8888, order: endian.Little}, &out
}

func writePNG(t *testing.T, path string, w, h int) *image.NRGBA {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 30), G: uint8(y * 30), B: 0x80, A: 0xFF})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return img
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestEncodeDecode(t *testing.T) {
	dir := t.TempDir()
	a, out := newApp(t)

	src := writePNG(t, filepath.Join(dir, "in.png"), 8, 4)
	for _, name := range []string{"out.pvr", "out.pvrz", "out.zpvr"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := a.run("encode", []string{filepath.Join(dir, "in.png"), path}); err != nil {
				t.Fatalf("encode: %v", err)
			}
			back := filepath.Join(dir, name+".png")
			if err := a.run("decode", []string{path, back}); err != nil {
				t.Fatalf("decode: %v", err)
			}

			got := readPNG(t, back)
			for y := 0; y < 4; y++ {
				for x := 0; x < 8; x++ {
					want := src.NRGBAAt(x, y)
					if c := color.NRGBAModel.Convert(got.At(x, y)).(color.NRGBA); c != want {
						t.Fatalf("(%d,%d): got %v, want %v", x, y, c, want)
					}
				}
			}
		})
	}

	out.Reset()
	if err := a.run("info", []string{filepath.Join(dir, "out.zpvr")}); err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{"Container: ZPVR", "Dimensions: 8x4", "Format: ARGB_8888", "Mip levels: 4", "Archive: ZPVR 8x4"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("info output lacks %q:\n%s", want, out.String())
		}
	}
}

func TestPackUnpack(t *testing.T) {
	dir := t.TempDir()
	a, out := newApp(t)
	writePNG(t, filepath.Join(dir, "in.png"), 4, 4)

	steps := [][]string{
		{"encode", filepath.Join(dir, "in.png"), filepath.Join(dir, "a.pvr")},
		{"pack", filepath.Join(dir, "a.pvr"), filepath.Join(dir, "a.zpvr")},
		{"unpack", filepath.Join(dir, "a.zpvr"), filepath.Join(dir, "b.pvr")},
	}
	for _, s := range steps {
		if err := a.run(s[0], s[1:]); err != nil {
			t.Fatalf("%s: %v", s[0], err)
		}
	}

	original, err := os.ReadFile(filepath.Join(dir, "a.pvr"))
	if err != nil {
		t.Fatal(err)
	}
	unpacked, err := os.ReadFile(filepath.Join(dir, "b.pvr"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(original, unpacked) {
		t.Error("unpacked file differs from the original")
	}

	out.Reset()
	if err := a.run("info", []string{filepath.Join(dir, "b.pvr")}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Container: PVR\n") {
		t.Errorf("unpacked file not plain PVR:\n%s", out.String())
	}
}

func TestExportDDS(t *testing.T) {
	dir := t.TempDir()
	a, _ := newApp(t)
	a.format = pvr.DXT1
	writePNG(t, filepath.Join(dir, "in.png"), 8, 8)

	if err := a.run("encode", []string{filepath.Join(dir, "in.png"), filepath.Join(dir, "in.pvr")}); err != nil {
		t.Fatal(err)
	}
	if err := a.run("dds", []string{filepath.Join(dir, "in.pvr"), filepath.Join(dir, "out.dds")}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out.dds"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 128 || string(data[:4]) != "DDS " || string(data[84:88]) != "DXT1" {
		t.Errorf("not a DXT1 DDS file: % x", data[:min(len(data), 128)])
	}
}

func TestReencodePVRTC(t *testing.T) {
	dir := t.TempDir()
	a, _ := newApp(t)
	writePNG(t, filepath.Join(dir, "in.png"), 16, 16)

	if err := a.run("encode", []string{filepath.Join(dir, "in.png"), filepath.Join(dir, "in.pvr")}); err != nil {
		t.Fatal(err)
	}
	if err := a.run("pvrtc", []string{filepath.Join(dir, "in.pvr"), filepath.Join(dir, "out.pvr")}); err != nil {
		t.Fatal(err)
	}

	img, _, err := a.load(filepath.Join(dir, "out.pvr"))
	if err != nil {
		t.Fatal(err)
	}
	if !pvr.IsPVRTC(img.Format) || img.Width() != 16 || len(img.Layers) != 5 {
		t.Errorf("got %s %dx%d with %d levels", img.Format, img.Width(), img.Height(), len(img.Layers))
	}
}

func TestBatchConvert(t *testing.T) {
	dir := t.TempDir()
	a, out := newApp(t)

	in := filepath.Join(dir, "in")
	if err := os.MkdirAll(filepath.Join(in, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(in, "one.png"), 4, 4)
	writePNG(t, filepath.Join(in, "sub", "two.png"), 2, 2)
	if err := os.WriteFile(filepath.Join(in, "notes.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(filepath.Join(in, "three.BMP"))
	if err != nil {
		t.Fatal(err)
	}
	if err := bmp.Encode(f, image.NewNRGBA(image.Rect(0, 0, 3, 2))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	pvrDir := filepath.Join(dir, "pvr")
	if err := a.run("batch", []string{"encode", in, pvrDir}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "3 files converted, 0 errors") {
		t.Errorf("encode summary: %s", out.String())
	}
	if _, err := os.Stat(filepath.Join(pvrDir, "sub", "two.pvr")); err != nil {
		t.Errorf("nested output: %v", err)
	}

	out.Reset()
	if err := a.run("batch", []string{"decode", pvrDir, filepath.Join(dir, "png")}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "3 files converted, 0 errors") {
		t.Errorf("decode summary: %s", out.String())
	}

	if err := a.run("batch", []string{"shuffle", in, pvrDir}); err == nil {
		t.Error("unknown batch mode accepted")
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	a, _ := newApp(t)

	path := filepath.Join(dir, "junk.pvr")
	if err := os.WriteFile(path, []byte("this is not a texture of any kind"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := a.run("info", []string{path}); err == nil {
		t.Error("junk file accepted")
	}
	if err := a.run("info", []string{filepath.Join(dir, "missing.pvr")}); err == nil {
		t.Error("missing file accepted")
	}
}
