package main

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Luzifer/go_helpers/v2/str"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"  // register BMP for encode
	_ "golang.org/x/image/tiff" // register TIFF for encode
	_ "golang.org/x/image/webp" // register WebP for encode

	"github.com/EchoTools/pvrtools/pkg/archive"
	"github.com/EchoTools/pvrtools/pkg/d3d"
	"github.com/EchoTools/pvrtools/pkg/endian"
	"github.com/EchoTools/pvrtools/pkg/engine"
	"github.com/EchoTools/pvrtools/pkg/pvr"
	"github.com/EchoTools/pvrtools/pkg/texture"
)

const dirPermissions = 0o750

// imageExtensions lists the source image types encode accepts in batch mode.
var imageExtensions = []string{".png", ".bmp", ".tif", ".tiff", ".webp"}

// app runs commands against one engine context.
type app struct {
	ctx *engine.Context
	out io.Writer

	format  pvr.PixelFormat
	order   endian.Order
	mipmaps int
	level   int
}

func (a *app) run(command string, args []string) error {
	switch command {
	case "info":
		return a.showInfo(args[0])
	case "decode":
		return a.decode(args[0], args[1])
	case "encode":
		return a.encode(args[0], args[1])
	case "dds":
		return a.exportDDS(args[0], args[1])
	case "pvrtc":
		return a.reencodePVRTC(args[0], args[1])
	case "pack":
		return a.convert(args[0], args[1], "ZPVR")
	case "unpack":
		return a.convert(args[0], args[1], "PVR")
	case "batch":
		return a.batchConvert(args[0], args[1], args[2])
	}
	return fmt.Errorf("unknown command %q", command)
}

// load reads any registered container type from path.
func (a *app) load(path string) (*pvr.Image, *engine.Type, error) {
	f, err := os.Open(path) //#nosec:G304 // Intended to open arbitrary files
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	img, t, err := a.ctx.Read(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return img, t, nil
}

// save writes img to path as typeName, or as the type matching the
// extension of path when typeName is empty. Unknown extensions get PVR.
func (a *app) save(path, typeName string, img *pvr.Image) error {
	if typeName == "" {
		typeName = "PVR"
		if t := a.ctx.TypeByExtension(path); t != nil {
			typeName = t.Name
		}
	}

	f, err := os.Create(path) //#nosec:G304 // Intended to create files at given location
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := a.ctx.Write(f, typeName, img); err != nil {
		f.Close() //nolint:errcheck,gosec // already failing
		return fmt.Errorf("write %s: %w", typeName, err)
	}
	return f.Close()
}

func (a *app) showInfo(path string) error {
	img, t, err := a.load(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "File: %s\n", path)
	fmt.Fprintf(a.out, "Container: %s\n", t.Name)
	fmt.Fprintf(a.out, "Dimensions: %dx%d\n", img.Width(), img.Height())
	fmt.Fprintf(a.out, "Format: %s (%s, %d bpp)\n", img.Format, pvr.Classify(img.Format), pvr.Depth(img.Format))
	fmt.Fprintf(a.out, "Byte order: %s\n", img.Order)
	fmt.Fprintf(a.out, "Mip levels: %d\n", len(img.Layers))

	var total uint32
	for i, l := range img.Layers {
		fmt.Fprintf(a.out, "  Level %d: %dx%d (surface %dx%d), %d bytes\n", i, l.LayerWidth, l.LayerHeight, l.Width, l.Height, l.DataSize)
		total += l.DataSize
	}
	fmt.Fprintf(a.out, "Data size: %d bytes (%.2f KB)\n", total, float64(total)/1024)

	if flags := flagNames(img); len(flags) > 0 {
		fmt.Fprintf(a.out, "Flags: %s\n", strings.Join(flags, ", "))
	}

	if t.Name == "ZPVR" {
		f, err := os.Open(path) //#nosec:G304 // Intended to open arbitrary files
		if err != nil {
			return fmt.Errorf("open: %w", err)
		}
		defer f.Close() //nolint:errcheck // read-only
		h, err := archive.ReadInfo(f)
		if err != nil {
			return fmt.Errorf("read archive header: %w", err)
		}
		fmt.Fprintf(a.out, "Archive: %s\n", h)
	}
	return nil
}

func flagNames(img *pvr.Image) []string {
	var names []string
	for _, f := range []struct {
		set  bool
		name string
	}{
		{img.Twiddled, "twiddled"},
		{img.NormalData, "normal data"},
		{img.Border, "border"},
		{img.DebugMipColoring, "debug mip coloring"},
		{img.AlphaPVRTC, "PVRTC alpha"},
	} {
		if f.set {
			names = append(names, f.name)
		}
	}
	return names
}

func (a *app) decode(inputPath, outputPath string) error {
	img, _, err := a.load(inputPath)
	if err != nil {
		return err
	}

	out, err := a.ctx.ToImage(img, a.level)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	outFile, err := os.Create(outputPath) //#nosec:G304 // Intended to create files at given location
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer outFile.Close() //nolint:errcheck // closed on success below

	if err := png.Encode(outFile, out); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return outFile.Close()
}

func (a *app) encode(inputPath, outputPath string) error {
	inFile, err := os.Open(inputPath) //#nosec:G304 // Intended to open arbitrary files
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer inFile.Close() //nolint:errcheck // read-only

	src, _, err := image.Decode(inFile)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	img, err := a.ctx.FromImage(src, a.format, a.order, a.mipmaps)
	if err != nil {
		return fmt.Errorf("encode %s: %w", a.format, err)
	}

	logrus.WithFields(logrus.Fields{
		"format": img.Format,
		"order":  img.Order,
		"levels": len(img.Layers),
	}).Debug("encoded image")

	return a.save(outputPath, "", img)
}

func (a *app) exportDDS(inputPath, outputPath string) error {
	img, _, err := a.load(inputPath)
	if err != nil {
		return err
	}

	native, err := a.ctx.NewNativeTexture(texture.KindDirect3D9)
	if err != nil {
		return err
	}
	fb, err := a.ctx.WriteToNative(img, native)
	if err != nil {
		return fmt.Errorf("convert to Direct3D: %w", err)
	}
	tex := native.(*d3d.Texture)

	logrus.WithFields(logrus.Fields{
		"raster":      tex.RasterFormat,
		"compression": tex.Compression,
		"direct":      fb.DirectlyAcquired,
	}).Debug("converted to Direct3D texture")

	outFile, err := os.Create(outputPath) //#nosec:G304 // Intended to create files at given location
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer outFile.Close() //nolint:errcheck // closed on success below

	if err := tex.WriteDDS(outFile); err != nil {
		return fmt.Errorf("write dds: %w", err)
	}
	return outFile.Close()
}

func (a *app) reencodePVRTC(inputPath, outputPath string) error {
	img, _, err := a.load(inputPath)
	if err != nil {
		return err
	}

	native, err := a.ctx.NewNativeTexture(texture.KindPowerVR)
	if err != nil {
		return err
	}
	if _, err := a.ctx.WriteToNative(img, native); err != nil {
		return fmt.Errorf("compress to PVRTC: %w", err)
	}

	out := pvr.NewImage()
	if _, err := a.ctx.ReadFromNative(out, native); err != nil {
		return fmt.Errorf("read PVRTC texture: %w", err)
	}
	return a.save(outputPath, "", out)
}

func (a *app) convert(inputPath, outputPath, typeName string) error {
	img, _, err := a.load(inputPath)
	if err != nil {
		return err
	}
	return a.save(outputPath, typeName, img)
}

func (a *app) batchConvert(mode, inputDir, outputDir string) error {
	if mode != "decode" && mode != "encode" {
		return fmt.Errorf("batch mode must be decode or encode, got %q", mode)
	}
	if err := os.MkdirAll(outputDir, dirPermissions); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	count, failed := 0, 0

	err := filepath.Walk(inputDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if mode == "decode" && a.ctx.TypeByExtension(path) == nil {
			return nil
		}
		if mode == "encode" && !str.StringInSlice(strings.ToLower(ext), imageExtensions) {
			return nil
		}

		relPath, _ := filepath.Rel(inputDir, path)
		outPath := filepath.Join(outputDir, strings.TrimSuffix(relPath, ext))
		if mode == "decode" {
			outPath += ".png"
		} else {
			outPath += ".pvr"
		}

		if err := os.MkdirAll(filepath.Dir(outPath), dirPermissions); err != nil {
			logrus.WithError(err).WithField("dir", filepath.Dir(outPath)).Error("creating output directory")
			failed++
			return nil
		}

		var convErr error
		if mode == "decode" {
			convErr = a.decode(path, outPath)
		} else {
			convErr = a.encode(path, outPath)
		}

		if convErr != nil {
			logrus.WithError(convErr).WithField("file", path).Error("converting file")
			failed++
			return nil
		}

		count++
		if count%100 == 0 {
			logrus.WithField("count", count).Info("processed files")
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Completed: %d files converted, %d errors\n", count, failed)
	return nil
}
