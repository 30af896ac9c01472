// Package convert moves pixels between PVR images and native textures,
// adopting buffers where the layouts already agree and transcoding
// otherwise.
package convert

import (
	"github.com/sirupsen/logrus"

	"github.com/EchoTools/pvrtools/pkg/d3d"
	"github.com/EchoTools/pvrtools/pkg/dxt"
	"github.com/EchoTools/pvrtools/pkg/endian"
	"github.com/EchoTools/pvrtools/pkg/pvr"
	"github.com/EchoTools/pvrtools/pkg/pvrtc"
	"github.com/EchoTools/pvrtools/pkg/texture"
)

// rasterType is the texture raster type every conversion reports.
const rasterType = 4

// Env carries the collaborators of a conversion. Zero fields fall back to
// texture.DefaultAllocator, the standard logrus logger and pvrtc.DefaultCodec.
type Env struct {
	Alloc texture.Allocator
	Log   logrus.FieldLogger
	PVRTC pvrtc.Codec
}

func (e Env) withDefaults() Env {
	if e.Alloc == nil {
		e.Alloc = texture.DefaultAllocator
	}
	if e.Log == nil {
		e.Log = logrus.StandardLogger()
	}
	if e.PVRTC == nil {
		e.PVRTC = pvrtc.DefaultCodec
	}
	return e
}

// Feedback reports what a conversion did with the source's buffers.
type Feedback struct {
	// DirectlyAcquired means the destination now references the source's
	// layer buffers. Exactly one of the two must release them.
	DirectlyAcquired bool
}

// ReadFromNative replaces dst's pixels with those of tex. dst is left
// unchanged on error.
func ReadFromNative(env Env, dst *pvr.Image, tex texture.NativeTexture) (Feedback, error) {
	env = env.withDefaults()
	switch tex.Kind() {
	case texture.KindDirect3D8, texture.KindDirect3D9:
		rt, ok := tex.(texture.RasterTexture)
		if !ok {
			return Feedback{}, texture.Errorf("convert import", texture.CodeInvalidUsage, "%s texture does not expose raster pixels", tex.Kind())
		}
		return importRaster(env, dst, rt)
	case texture.KindPowerVR:
		pt, ok := tex.(*pvrtc.Texture)
		if !ok {
			return Feedback{}, texture.NewError("convert import", texture.CodeInvalidUsage, "PowerVR texture of unexpected type")
		}
		return importPVRTC(env, dst, pt)
	}
	return Feedback{}, texture.Errorf("convert import", texture.CodeUnsupported, "native texture %s", tex.Kind())
}

func importRaster(env Env, dst *pvr.Image, rt texture.RasterTexture) (Feedback, error) {
	const op = "convert import"

	pd, err := rt.FetchPixelData()
	if err != nil {
		return Feedback{}, err
	}
	if len(pd.Layers) == 0 {
		return Feedback{}, texture.NewError(op, texture.CodeInvalidUsage, "texture has no levels")
	}
	cube := pd.CubeTexture && rt.Kind() != texture.KindDirect3D8

	guard := texture.NewGuard(env.Alloc)
	defer guard.Release()
	if pd.NewlyAllocated {
		for _, l := range pd.Layers {
			guard.Adopt(l.Texels)
		}
		guard.Adopt(pd.Palette)
	}

	layers := pd.Layers
	newlyAllocated := pd.NewlyAllocated
	var format pvr.PixelFormat

	switch {
	case pd.Compression == texture.CompressionNone:
		var direct bool
		format, direct = importLink(pd.RasterFormat, pd.Depth, pd.ColorOrder)
		depth := pvr.Depth(format)

		direct = direct && pd.PaletteType == texture.PaletteNone &&
			!texture.NeedsRowAdjustment(pd.Layers, pd.Depth, pd.RowAlignment, depth, pvr.RowAlignment)
		if !direct {
			env.Log.WithFields(logrus.Fields{
				"raster": pd.RasterFormat,
				"depth":  pd.Depth,
				"order":  pd.ColorOrder,
				"format": format,
			}).Debug("transcoding raster layers")

			if layers, err = transcodeToPVR(guard, pd, format); err != nil {
				return Feedback{}, err
			}
			if pd.NewlyAllocated {
				for _, l := range pd.Layers {
					guard.Free(l.Texels)
				}
			}
			newlyAllocated = true
		}

	case pd.Compression.DXTVariant() != 0:
		format, _ = pvr.FormatForDXT(pd.Compression.DXTVariant())

	default:
		return Feedback{}, texture.Errorf(op, texture.CodeUnsupported, "raster compression %s", pd.Compression)
	}

	// the palette is never carried over
	if pd.NewlyAllocated && pd.Palette != nil {
		guard.Free(pd.Palette)
	}

	dst.Clear(env.Alloc)
	*dst = pvr.Image{
		Format:   format,
		Order:    endian.Little,
		CubeMap:  cube,
		BitDepth: pvr.Depth(format),
		Layers:   layers,
	}
	guard.Commit()

	return Feedback{DirectlyAcquired: !newlyAllocated}, nil
}

// transcodeToPVR converts raw raster layers to format, one texel at a time.
func transcodeToPVR(guard *texture.Guard, pd *texture.PixelData, format pvr.PixelFormat) ([]texture.Layer, error) {
	src, err := pd.Codec()
	if err != nil {
		return nil, err
	}
	dst := pvr.NewDispatcher(format, endian.Little)
	depth := pvr.Depth(format)

	out := make([]texture.Layer, len(pd.Layers))
	for i, l := range pd.Layers {
		w, h := l.LayerWidth, l.LayerHeight
		srcPitch := texture.RowSize(w, pd.Depth, pd.RowAlignment)
		dstPitch := pvr.RowSize(w, depth)

		buf, err := guard.Allocate(dstPitch * h)
		if err != nil {
			return nil, err
		}
		if err := texture.CopyTexels(buf, dst, dstPitch, l.Texels, src, srcPitch, w, h); err != nil {
			return nil, err
		}
		out[i] = texture.Layer{Width: w, Height: h, LayerWidth: w, LayerHeight: h, Texels: buf, DataSize: dstPitch * h}
	}
	return out, nil
}

func importPVRTC(env Env, dst *pvr.Image, pt *pvrtc.Texture) (Feedback, error) {
	const op = "convert import"
	if !pt.Format.Valid() {
		return Feedback{}, texture.Errorf(op, texture.CodeInvalidUsage, "PowerVR texture format %s", pt.Format)
	}
	if len(pt.Layers) == 0 {
		return Feedback{}, texture.NewError(op, texture.CodeInvalidUsage, "texture has no levels")
	}

	format := pvr.PVRTC4Sec
	if pt.Format.Depth() == 2 {
		format = pvr.PVRTC2Sec
	}

	layers := make([]texture.Layer, len(pt.Layers))
	copy(layers, pt.Layers)

	dst.Clear(env.Alloc)
	*dst = pvr.Image{
		Format:     format,
		Order:      endian.Little,
		AlphaPVRTC: pt.Format.HasAlpha(),
		BitDepth:   pvr.Depth(format),
		Layers:     layers,
	}
	return Feedback{DirectlyAcquired: true}, nil
}

// WriteToNative stores src's pixels in tex. An image without levels is a
// no-op. tex is left unchanged on error.
func WriteToNative(env Env, src *pvr.Image, tex texture.NativeTexture) (Feedback, error) {
	const op = "convert export"
	env = env.withDefaults()

	if len(src.Layers) == 0 {
		return Feedback{}, nil
	}
	if pvr.Classify(src.Format) == pvr.ClassUnknown {
		return Feedback{}, texture.Errorf(op, texture.CodeUnsupported, "pixel format %s has no color model", src.Format)
	}

	switch tex.Kind() {
	case texture.KindDirect3D8, texture.KindDirect3D9:
		rt, ok := tex.(texture.RasterTexture)
		if !ok {
			return Feedback{}, texture.Errorf(op, texture.CodeInvalidUsage, "%s texture does not accept raster pixels", tex.Kind())
		}
		return exportRaster(env, src, rt)
	case texture.KindPowerVR:
		pt, ok := tex.(*pvrtc.Texture)
		if !ok {
			return Feedback{}, texture.NewError(op, texture.CodeInvalidUsage, "PowerVR texture of unexpected type")
		}
		return exportPVRTC(env, src, pt)
	}
	return Feedback{}, texture.Errorf(op, texture.CodeUnsupported, "native texture %s", tex.Kind())
}

func exportRaster(env Env, src *pvr.Image, rt texture.RasterTexture) (Feedback, error) {
	const op = "convert export"

	link := exportLink(src.Format, src.Order == endian.Little)
	pd := &texture.PixelData{
		RasterFormat: link.format,
		Depth:        link.depth,
		RowAlignment: pvr.RowAlignment,
		ColorOrder:   link.order,
		Compression:  link.compression,
		CubeTexture:  src.CubeMap,
		RasterType:   rasterType,
		Layers:       src.Layers,
	}

	guard := texture.NewGuard(env.Alloc)
	defer guard.Release()

	if !link.direct {
		pd.RowAlignment = d3d.RowAlignment
		pd.NewlyAllocated = true

		var err error
		switch {
		case pvr.IsPVRTC(src.Format):
			pd.Layers, err = decodePVRTCLayers(env, guard, src, pd)
		case pvr.DXTVariant(src.Format) != 0:
			pd.Layers, err = swapDXTLayers(guard, src, endian.Little)
		case pvr.Classify(src.Format) == pvr.ClassRGBA, pvr.Classify(src.Format) == pvr.ClassLuminance:
			pd.Layers, err = transcodeToRaster(guard, src, pd)
		default:
			err = texture.Errorf(op, texture.CodeUnsupported, "exporting %s to a raster texture", src.Format)
		}
		if err != nil {
			return Feedback{}, err
		}
	}

	hasAlpha, err := rasterHasAlpha(pd)
	if err != nil {
		return Feedback{}, err
	}
	pd.HasAlpha = hasAlpha

	adopted, err := rt.AcquirePixelData(pd)
	if err != nil {
		return Feedback{}, err
	}
	if adopted {
		guard.Commit()
	}

	env.Log.WithFields(logrus.Fields{
		"format":  src.Format,
		"texture": rt.Kind(),
		"direct":  link.direct,
		"adopted": adopted,
	}).Debug("exported image")

	return Feedback{DirectlyAcquired: link.direct && adopted}, nil
}

// transcodeToRaster converts RGBA or luminance layers to pd's raw layout.
func transcodeToRaster(guard *texture.Guard, src *pvr.Image, pd *texture.PixelData) ([]texture.Layer, error) {
	dst, err := pd.Codec()
	if err != nil {
		return nil, err
	}
	from := pvr.NewDispatcher(src.Format, src.Order)
	srcDepth := pvr.Depth(src.Format)

	out := make([]texture.Layer, len(src.Layers))
	for i, l := range src.Layers {
		w, h := l.LayerWidth, l.LayerHeight
		srcPitch := pvr.RowSize(l.Width, srcDepth)
		dstPitch := texture.RowSize(w, pd.Depth, pd.RowAlignment)

		buf, err := guard.Allocate(dstPitch * h)
		if err != nil {
			return nil, err
		}
		if err := texture.CopyTexels(buf, dst, dstPitch, l.Texels, from, srcPitch, w, h); err != nil {
			return nil, err
		}
		out[i] = texture.Layer{Width: w, Height: h, LayerWidth: w, LayerHeight: h, Texels: buf, DataSize: dstPitch * h}
	}
	return out, nil
}

// decodePVRTCLayers expands PVRTC layers into pd's raw layout.
func decodePVRTCLayers(env Env, guard *texture.Guard, src *pvr.Image, pd *texture.PixelData) ([]texture.Layer, error) {
	dst, err := pd.Codec()
	if err != nil {
		return nil, err
	}
	rgba, err := texture.NewRasterCodec(texture.RasterLayout{Format: texture.Raster8888, Depth: 32, Order: texture.OrderRGBA})
	if err != nil {
		return nil, err
	}
	format := pvrtc.FormatFor(pvr.Depth(src.Format), src.AlphaPVRTC)

	out := make([]texture.Layer, len(src.Layers))
	for i, l := range src.Layers {
		w, h := l.LayerWidth, l.LayerHeight
		decoded, err := env.PVRTC.Decode(format, l.Width, l.Height, w, h, l.Texels[:l.DataSize])
		if err != nil {
			return nil, err
		}

		dstPitch := texture.RowSize(w, pd.Depth, pd.RowAlignment)
		buf, err := guard.Allocate(dstPitch * h)
		if err != nil {
			return nil, err
		}
		if err := texture.CopyTexels(buf, dst, dstPitch, decoded, rgba, w*4, w, h); err != nil {
			return nil, err
		}
		out[i] = texture.Layer{Width: w, Height: h, LayerWidth: w, LayerHeight: h, Texels: buf, DataSize: dstPitch * h}
	}
	return out, nil
}

// swapDXTLayers copies DXT layers into order.
func swapDXTLayers(guard *texture.Guard, src *pvr.Image, order endian.Order) ([]texture.Layer, error) {
	out := make([]texture.Layer, len(src.Layers))
	for i, l := range src.Layers {
		buf, err := guard.Allocate(l.DataSize)
		if err != nil {
			return nil, err
		}
		pvr.TranscodeDXT(src.Format, buf, order, l.Texels, src.Order, l.Width, l.Height)
		out[i] = l
		out[i].Texels = buf
	}
	return out, nil
}

// rasterHasAlpha scans the base level of pd for translucent texels.
func rasterHasAlpha(pd *texture.PixelData) (bool, error) {
	base := pd.Layers[0]
	if v := pd.Compression.DXTVariant(); v != 0 {
		rgba, err := dxt.Decode(v, base.Texels[:base.DataSize], base.Width, base.Height)
		if err != nil {
			return false, err
		}
		return rgbaHasAlpha(rgba), nil
	}
	if !pd.RasterFormat.HasAlpha() {
		return false, nil
	}
	codec, err := pd.Codec()
	if err != nil {
		return false, err
	}
	pitch := texture.RowSize(base.Width, pd.Depth, pd.RowAlignment)
	return texture.HasTransparency(codec, base.Texels, pitch, base.LayerWidth, base.LayerHeight)
}

func rgbaHasAlpha(rgba []byte) bool {
	for i := 3; i < len(rgba); i += 4 {
		if rgba[i] != 255 {
			return true
		}
	}
	return false
}

func exportPVRTC(env Env, src *pvr.Image, pt *pvrtc.Texture) (Feedback, error) {
	const op = "convert export"

	if pvr.IsPVRTC(src.Format) {
		format := pvrtc.FormatFor(pvr.Depth(src.Format), src.AlphaPVRTC)
		layers := make([]texture.Layer, len(src.Layers))
		copy(layers, src.Layers)

		pt.Clear(env.Alloc)
		pt.Format = format
		pt.HasAlpha = src.AlphaPVRTC
		pt.Layers = layers
		return Feedback{DirectlyAcquired: true}, nil
	}

	for i, l := range src.Layers {
		if !pvrtc.IsPowerOfTwo(l.LayerWidth) || !pvrtc.IsPowerOfTwo(l.LayerHeight) {
			return Feedback{}, texture.Errorf(op, texture.CodeInvalidUsage, "level %d is %dx%d, PVRTC needs power-of-two dimensions", i, l.LayerWidth, l.LayerHeight)
		}
	}

	guard := texture.NewGuard(env.Alloc)
	defer guard.Release()

	staged, stagingFormat, err := stageRGBA(guard, src)
	if err != nil {
		return Feedback{}, err
	}

	alpha := false
	if pvr.HasAlpha(stagingFormat) {
		alpha = rgbaHasAlpha(staged[0])
	}
	base := src.Layers[0]
	format := env.PVRTC.Recommend(base.LayerWidth, base.LayerHeight, alpha)

	env.Log.WithFields(logrus.Fields{
		"source": src.Format,
		"target": format,
		"alpha":  alpha,
		"levels": len(src.Layers),
	}).Debug("compressing to PVRTC")

	layers := make([]texture.Layer, len(src.Layers))
	for i, l := range src.Layers {
		sw, sh, data, err := env.PVRTC.Compress(format, l.LayerWidth, l.LayerHeight, staged[i])
		if err != nil {
			return Feedback{}, err
		}
		buf, err := guard.Allocate(uint32(len(data)))
		if err != nil {
			return Feedback{}, err
		}
		copy(buf, data)
		guard.Free(staged[i])

		layers[i] = texture.Layer{
			Width: sw, Height: sh,
			LayerWidth: l.LayerWidth, LayerHeight: l.LayerHeight,
			Texels: buf, DataSize: uint32(len(data)),
		}
	}

	pt.Clear(env.Alloc)
	pt.Format = format
	pt.HasAlpha = alpha
	pt.Layers = layers
	guard.Commit()

	return Feedback{}, nil
}

// stageRGBA expands every level of src into tightly packed RGBA8 buffers
// and returns the legacy format the staged pixels represent.
func stageRGBA(guard *texture.Guard, src *pvr.Image) ([][]byte, pvr.PixelFormat, error) {
	const op = "convert export"

	rgba, err := texture.NewRasterCodec(texture.RasterLayout{Format: texture.Raster8888, Depth: 32, Order: texture.OrderRGBA})
	if err != nil {
		return nil, 0, err
	}

	staged := make([][]byte, len(src.Layers))
	stagingFormat := src.Format
	v := pvr.DXTVariant(src.Format)

	switch {
	case v != 0:
		stagingFormat = pvr.BGRA8888
		var scratch []byte
		for i, l := range src.Layers {
			data := l.Texels[:l.DataSize]
			if src.Order != endian.Little {
				scratch = append(scratch[:0], data...)
				pvr.TranscodeDXT(src.Format, scratch, endian.Little, data, src.Order, l.Width, l.Height)
				data = scratch
			}
			decoded, err := dxt.Decode(v, data, l.Width, l.Height)
			if err != nil {
				return nil, 0, err
			}
			if staged[i], err = guard.Allocate(l.LayerWidth * l.LayerHeight * 4); err != nil {
				return nil, 0, err
			}
			if err := texture.CopyTexels(staged[i], rgba, l.LayerWidth*4, decoded, rgba, l.Width*4, l.LayerWidth, l.LayerHeight); err != nil {
				return nil, 0, err
			}
		}

	case pvr.Classify(src.Format) == pvr.ClassRGBA, pvr.Classify(src.Format) == pvr.ClassLuminance:
		from := pvr.NewDispatcher(src.Format, src.Order)
		depth := pvr.Depth(src.Format)
		for i, l := range src.Layers {
			if staged[i], err = guard.Allocate(l.LayerWidth * l.LayerHeight * 4); err != nil {
				return nil, 0, err
			}
			if err := texture.CopyTexels(staged[i], rgba, l.LayerWidth*4, l.Texels, from, pvr.RowSize(l.Width, depth), l.LayerWidth, l.LayerHeight); err != nil {
				return nil, 0, err
			}
		}

	default:
		return nil, 0, texture.Errorf(op, texture.CodeUnsupported, "compressing %s to PVRTC", src.Format)
	}
	return staged, stagingFormat, nil
}
