package convert

import (
	"image"
	"image/color"

	"github.com/EchoTools/pvrtools/pkg/dxt"
	"github.com/EchoTools/pvrtools/pkg/endian"
	"github.com/EchoTools/pvrtools/pkg/pvr"
	"github.com/EchoTools/pvrtools/pkg/pvrtc"
	"github.com/EchoTools/pvrtools/pkg/texture"
)

// ToImage decodes one level of img.
func ToImage(env Env, img *pvr.Image, level int) (*image.NRGBA, error) {
	const op = "convert to image"
	env = env.withDefaults()

	if level < 0 || level >= len(img.Layers) {
		return nil, texture.Errorf(op, texture.CodeInvalidUsage, "level %d of %d", level, len(img.Layers))
	}
	l := img.Layers[level]
	w, h := int(l.LayerWidth), int(l.LayerHeight)
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	var (
		rgba  []byte
		pitch uint32
		err   error
	)
	switch {
	case pvr.IsPVRTC(img.Format):
		format := pvrtc.FormatFor(pvr.Depth(img.Format), img.AlphaPVRTC)
		rgba, err = env.PVRTC.Decode(format, l.Width, l.Height, l.LayerWidth, l.LayerHeight, l.Texels[:l.DataSize])
		pitch = l.LayerWidth * 4

	case pvr.DXTVariant(img.Format) != 0:
		data := l.Texels[:l.DataSize]
		if img.Order != endian.Little {
			data = make([]byte, l.DataSize)
			pvr.TranscodeDXT(img.Format, data, endian.Little, l.Texels, img.Order, l.Width, l.Height)
		}
		rgba, err = dxt.Decode(pvr.DXTVariant(img.Format), data, l.Width, l.Height)
		pitch = l.Width * 4

	case pvr.Classify(img.Format) == pvr.ClassRGBA, pvr.Classify(img.Format) == pvr.ClassLuminance:
		d := pvr.NewDispatcher(img.Format, img.Order)
		rowSize := pvr.RowSize(l.Width, pvr.Depth(img.Format))
		for y := 0; y < h; y++ {
			row := l.Texels[uint32(y)*rowSize:]
			for x := 0; x < w; x++ {
				c, err := d.Color(row, x)
				if err != nil {
					return nil, err
				}
				r, g, b, a := c.RGBA()
				out.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: a})
			}
		}
		return out, nil

	default:
		return nil, texture.Errorf(op, texture.CodeUnsupported, "decoding %s", img.Format)
	}
	if err != nil {
		return nil, err
	}

	for y := 0; y < h; y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+w*4], rgba[uint32(y)*pitch:])
	}
	return out, nil
}

// FromImage encodes src as a PVR image of format stored in order. levels
// limits the mipmap chain; zero builds the full chain down to 1×1.
func FromImage(env Env, src image.Image, format pvr.PixelFormat, order endian.Order, levels int) (*pvr.Image, error) {
	const op = "convert from image"
	env = env.withDefaults()

	if !pvr.IsValid(format) {
		return nil, texture.Errorf(op, texture.CodeInvalidUsage, "invalid pixel format %#02x", uint8(format))
	}
	if src.Bounds().Empty() {
		return nil, texture.NewError(op, texture.CodeInvalidUsage, "empty image")
	}

	var encode func(guard *texture.Guard, img image.Image) (texture.Layer, error)
	alphaPVRTC := false

	switch {
	case pvr.IsPVRTC(format):
		b := src.Bounds()
		if !pvrtc.IsPowerOfTwo(uint32(b.Dx())) || !pvrtc.IsPowerOfTwo(uint32(b.Dy())) {
			return nil, texture.Errorf(op, texture.CodeInvalidUsage, "%dx%d image, PVRTC needs power-of-two dimensions", b.Dx(), b.Dy())
		}
		alphaPVRTC = !isOpaque(src)
		pf := pvrtc.FormatFor(pvr.Depth(format), alphaPVRTC)
		encode = func(guard *texture.Guard, img image.Image) (texture.Layer, error) {
			w, h := dims(img)
			sw, sh, data, err := env.PVRTC.Compress(pf, w, h, toRGBA(img))
			if err != nil {
				return texture.Layer{}, err
			}
			return storeLayer(guard, sw, sh, w, h, data)
		}

	case pvr.DXTVariant(format) != 0:
		v := pvr.DXTVariant(format)
		encode = func(guard *texture.Guard, img image.Image) (texture.Layer, error) {
			w, h := dims(img)
			data, err := dxt.Compress(v, toRGBA(img), w, h)
			if err != nil {
				return texture.Layer{}, err
			}
			sw, sh := pvr.SurfaceDimensions(format, w, h)
			if order != endian.Little {
				pvr.TranscodeDXT(format, data, order, append([]byte(nil), data...), endian.Little, sw, sh)
			}
			return storeLayer(guard, sw, sh, w, h, data)
		}

	case pvr.Classify(format) == pvr.ClassRGBA, pvr.Classify(format) == pvr.ClassLuminance:
		d := pvr.NewDispatcher(format, order)
		depth := pvr.Depth(format)
		encode = func(guard *texture.Guard, img image.Image) (texture.Layer, error) {
			w, h := dims(img)
			pitch := pvr.RowSize(w, depth)
			buf, err := guard.Allocate(pitch * h)
			if err != nil {
				return texture.Layer{}, err
			}
			b := img.Bounds()
			for y := 0; y < int(h); y++ {
				row := buf[uint32(y)*pitch:]
				for x := 0; x < int(w); x++ {
					c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
					if err := d.SetColor(row, x, texture.RGBAColor(c.R, c.G, c.B, c.A)); err != nil {
						return texture.Layer{}, err
					}
				}
			}
			return texture.Layer{Width: w, Height: h, LayerWidth: w, LayerHeight: h, Texels: buf, DataSize: pitch * h}, nil
		}

	default:
		return nil, texture.Errorf(op, texture.CodeUnsupported, "encoding %s", format)
	}

	guard := texture.NewGuard(env.Alloc)
	defer guard.Release()

	chain := GenerateMipmaps(src, levels)
	layers := make([]texture.Layer, len(chain))
	for i, img := range chain {
		l, err := encode(guard, img)
		if err != nil {
			return nil, err
		}
		layers[i] = l
	}
	guard.Commit()

	return &pvr.Image{
		Format:     format,
		Order:      order,
		AlphaPVRTC: alphaPVRTC,
		BitDepth:   pvr.Depth(format),
		Layers:     layers,
	}, nil
}

func storeLayer(guard *texture.Guard, sw, sh, w, h uint32, data []byte) (texture.Layer, error) {
	buf, err := guard.Allocate(uint32(len(data)))
	if err != nil {
		return texture.Layer{}, err
	}
	copy(buf, data)
	return texture.Layer{Width: sw, Height: sh, LayerWidth: w, LayerHeight: h, Texels: buf, DataSize: uint32(len(data))}, nil
}

func dims(img image.Image) (uint32, uint32) {
	b := img.Bounds()
	return uint32(b.Dx()), uint32(b.Dy())
}

// toRGBA flattens img into r,g,b,a bytes with straight alpha.
func toRGBA(img image.Image) []byte {
	b := img.Bounds()
	rgba := make([]byte, b.Dx()*b.Dy()*4)
	idx := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			rgba[idx+0] = c.R
			rgba[idx+1] = c.G
			rgba[idx+2] = c.B
			rgba[idx+3] = c.A
			idx += 4
		}
	}
	return rgba
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return !rgbaHasAlpha(toRGBA(img))
}

// GenerateMipmaps returns img followed by successively halved copies. The
// chain stops at 1×1 or after limit levels when limit is positive.
func GenerateMipmaps(img image.Image, limit int) []image.Image {
	mipmaps := []image.Image{img}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	for (width > 1 || height > 1) && (limit <= 0 || len(mipmaps) < limit) {
		if width > 1 {
			width = width / 2
		}
		if height > 1 {
			height = height / 2
		}

		mip := resizeImage(mipmaps[len(mipmaps)-1], width, height)
		mipmaps = append(mipmaps, mip)
	}

	return mipmaps
}

// resizeImage downsamples an image to the target dimensions using box filtering
func resizeImage(img image.Image, targetWidth, targetHeight int) image.Image {
	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()

	result := image.NewNRGBA(image.Rect(0, 0, targetWidth, targetHeight))

	scaleX := srcWidth / targetWidth
	scaleY := srcHeight / targetHeight

	for dy := 0; dy < targetHeight; dy++ {
		for dx := 0; dx < targetWidth; dx++ {
			sx := dx * scaleX
			sy := dy * scaleY

			var rSum, gSum, bSum, aSum, n uint32
			for ssy := sy; ssy < sy+scaleY && ssy < srcHeight; ssy++ {
				for ssx := sx; ssx < sx+scaleX && ssx < srcWidth; ssx++ {
					c := color.NRGBAModel.Convert(img.At(bounds.Min.X+ssx, bounds.Min.Y+ssy)).(color.NRGBA)
					rSum += uint32(c.R)
					gSum += uint32(c.G)
					bSum += uint32(c.B)
					aSum += uint32(c.A)
					n++
				}
			}

			result.SetNRGBA(dx, dy, color.NRGBA{
				R: uint8((rSum + n/2) / n),
				G: uint8((gSum + n/2) / n),
				B: uint8((bSum + n/2) / n),
				A: uint8((aSum + n/2) / n),
			})
		}
	}

	return result
}
