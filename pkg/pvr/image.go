package pvr

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/EchoTools/pvrtools/pkg/endian"
	"github.com/EchoTools/pvrtools/pkg/texture"
)

// maxLevels bounds the mipmap chain of any 32-bit surface.
const maxLevels = 33

// Image is a decoded PVR legacy container. Layers[0] is the base level and
// every layer's texels are stored in Order.
type Image struct {
	Format PixelFormat
	Order  endian.Order

	Twiddled         bool
	NormalData       bool
	Border           bool
	CubeMap          bool
	DebugMipColoring bool
	Volume           bool
	AlphaPVRTC       bool
	VerticalFlip     bool

	BitDepth uint32
	Layers   []texture.Layer
}

// NewImage returns an empty little-endian ARGB_4444 image.
func NewImage() *Image {
	return &Image{
		Format:   ARGB4444,
		Order:    endian.Little,
		BitDepth: Depth(ARGB4444),
	}
}

// Width returns the logical width of the base level.
func (img *Image) Width() uint32 {
	if len(img.Layers) == 0 {
		return 0
	}
	return img.Layers[0].LayerWidth
}

// Height returns the logical height of the base level.
func (img *Image) Height() uint32 {
	if len(img.Layers) == 0 {
		return 0
	}
	return img.Layers[0].LayerHeight
}

// Flags returns the header flags describing img.
func (img *Image) Flags() Flags {
	return Flags{
		Format:           img.Format,
		Mipmaps:          len(img.Layers) > 1,
		Twiddled:         img.Twiddled,
		NormalData:       img.NormalData,
		Border:           img.Border,
		CubeMap:          img.CubeMap,
		DebugMipColoring: img.DebugMipColoring,
		Volume:           img.Volume,
		AlphaPVRTC:       img.AlphaPVRTC,
		VerticalFlip:     img.VerticalFlip,
	}
}

func (img *Image) setFlags(f Flags) {
	img.Format = f.Format
	img.Twiddled = f.Twiddled
	img.NormalData = f.NormalData
	img.Border = f.Border
	img.CubeMap = f.CubeMap
	img.DebugMipColoring = f.DebugMipColoring
	img.Volume = f.Volume
	img.AlphaPVRTC = f.AlphaPVRTC
	img.VerticalFlip = f.VerticalFlip
}

// Clear returns every layer buffer to alloc and empties the image.
func (img *Image) Clear(alloc texture.Allocator) {
	if alloc == nil {
		alloc = texture.DefaultAllocator
	}
	texture.FreeLayers(alloc, img.Layers)
	img.Layers = nil
}

// Validate checks that every layer matches the geometry of img.Format.
func (img *Image) Validate() error {
	const op = "pvr image"
	if !IsValid(img.Format) {
		return texture.Errorf(op, texture.CodeInvalidUsage, "invalid pixel format %#02x", uint8(img.Format))
	}
	depth := Depth(img.Format)
	for i, l := range img.Layers {
		sw, sh := SurfaceDimensions(img.Format, l.LayerWidth, l.LayerHeight)
		if l.Width != sw || l.Height != sh {
			return texture.Errorf(op, texture.CodeInvalidUsage, "level %d surface %dx%d, want %dx%d", i, l.Width, l.Height, sw, sh)
		}
		if size := LayerDataSize(sw, sh, depth); l.DataSize != size || uint32(len(l.Texels)) < size {
			return texture.Errorf(op, texture.CodeInvalidUsage, "level %d holds %d bytes (declared %d), want %d", i, len(l.Texels), l.DataSize, size)
		}
	}
	return nil
}

// Header returns the version 2 header Write emits for img in order.
func (img *Image) Header(order endian.Order) *Header {
	h := &Header{
		Version:      Version2,
		Order:        order,
		Height:       img.Height(),
		Width:        img.Width(),
		MipmapCount:  uint32(len(img.Layers)),
		Flags:        img.Flags(),
		BitsPerPixel: Depth(img.Format),
		NumSurfaces:  1,
	}
	for _, l := range img.Layers {
		h.SurfaceSize += l.DataSize
	}
	return h
}

type options struct {
	alloc texture.Allocator
	log   logrus.FieldLogger
	order *endian.Order
}

// Option configures Read, Write and Probe.
type Option func(*options)

// WithAllocator sets the allocator for level buffers.
func WithAllocator(a texture.Allocator) Option {
	return func(o *options) {
		o.alloc = a
	}
}

// WithLogger sets the sink for soft-anomaly warnings.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithByteOrder makes Write emit order instead of the image's own order.
func WithByteOrder(order endian.Order) Option {
	return func(o *options) {
		o.order = &order
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		alloc: texture.DefaultAllocator,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Probe reports whether r starts with a loadable PVR header. The stream
// position is restored.
func Probe(r io.ReadSeeker) bool {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return false
	}
	defer r.Seek(pos, io.SeekStart)

	h, err := ReadHeader(r)
	if err != nil {
		return false
	}
	return h.Validate() == nil
}

// Read decodes a PVR legacy container from r.
func Read(r io.Reader, opts ...Option) (*Image, error) {
	const op = "pvr read"
	o := newOptions(opts)

	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}

	format := h.Flags.Format
	depth := Depth(format)
	if h.BitsPerPixel != depth {
		texture.Warn(o.log, op, "header declares %d bits per pixel, %s uses %d", h.BitsPerPixel, format, depth)
	}

	count := int(h.MipmapCount)
	levels := Layout(format, h.Width, h.Height, min(count, maxLevels))

	guard := texture.NewGuard(o.alloc)
	defer guard.Release()

	remaining := h.SurfaceSize
	layers := make([]texture.Layer, 0, len(levels))
	for i, lvl := range levels {
		if remaining < lvl.DataSize {
			return nil, texture.Errorf(op, texture.CodeCorruptFile,
				"level %d needs %d bytes but only %d of the declared surface size remain", i, lvl.DataSize, remaining)
		}
		if avail, ok := available(r); ok && avail < int64(lvl.DataSize) {
			return nil, texture.Errorf(op, texture.CodeCorruptFile,
				"level %d needs %d bytes but the stream holds %d", i, lvl.DataSize, avail)
		}

		buf, err := guard.Allocate(lvl.DataSize)
		if err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, texture.WrapError(op, texture.CodeCorruptFile, fmt.Sprintf("read level %d", i), err)
		}

		layers = append(layers, texture.Layer{
			Width:       lvl.Width,
			Height:      lvl.Height,
			LayerWidth:  lvl.LayerWidth,
			LayerHeight: lvl.LayerHeight,
			Texels:      buf,
			DataSize:    lvl.DataSize,
		})
		remaining -= lvl.DataSize
	}

	if len(layers) < count {
		texture.Warn(o.log, op, "header declares %d levels, only %d could be established", count, len(layers))
	}
	if remaining > 0 {
		texture.Warn(o.log, op, "%d bytes of declared surface data left over, skipping", remaining)
		skip(r, int64(remaining))
	}

	guard.Commit()

	img := &Image{Order: h.Order, BitDepth: depth, Layers: layers}
	img.setFlags(h.Flags)
	return img, nil
}

// Write encodes img as a version 2 container.
func (img *Image) Write(w io.Writer, opts ...Option) error {
	const op = "pvr write"
	o := newOptions(opts)

	if len(img.Layers) == 0 {
		return texture.NewError(op, texture.CodeInvalidUsage, "image has no levels")
	}
	if err := img.Validate(); err != nil {
		return err
	}

	order := img.Order
	if o.order != nil {
		order = *o.order
	}

	header, err := img.Header(order).MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	var scratch []byte
	for i, l := range img.Layers {
		data := l.Texels[:l.DataSize]
		if order != img.Order {
			if cap(scratch) < len(data) {
				scratch = make([]byte, len(data))
			}
			scratch = scratch[:len(data)]
			ReorderTexels(img.Format, scratch, order, data, img.Order, l.Width, l.Height)
			data = scratch
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write level %d: %w", i, err)
		}
	}
	return nil
}

// ReorderTexels copies one surface of format f from src (stored in from) to
// dst (stored in to), swapping every multi-byte word. Formats without
// multi-byte words are copied unchanged.
func ReorderTexels(f PixelFormat, dst []byte, to endian.Order, src []byte, from endian.Order, surfWidth, surfHeight uint32) {
	if from == to {
		copy(dst, src)
		return
	}
	if DXTVariant(f) != 0 {
		TranscodeDXT(f, dst, to, src, from, surfWidth, surfHeight)
		return
	}

	laneBytes, texelBytes := 0, 0
	if l := sampleLayouts[f]; l != nil && l.bits == 0 {
		laneBytes, texelBytes = l.laneBytes, l.laneBytes*l.lanes
	} else if Classify(f) == ClassUnknown {
		if d := Depth(f); d == 16 || d == 32 {
			laneBytes, texelBytes = int(d/8), int(d/8)
		}
	}
	if laneBytes <= 1 {
		copy(dst, src)
		return
	}

	n := len(src) / texelBytes * texelBytes
	for off := 0; off < n; off += laneBytes {
		endian.Transcode(from, to, dst[off:], src[off:], laneBytes)
	}
	copy(dst[n:], src[n:])
}

// available returns the number of unread bytes in r when r can report it.
func available(r io.Reader) (int64, bool) {
	switch v := r.(type) {
	case interface{ Len() int }:
		return int64(v.Len()), true
	case io.Seeker:
		cur, err := v.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, false
		}
		end, err := v.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, false
		}
		if _, err := v.Seek(cur, io.SeekStart); err != nil {
			return 0, false
		}
		return end - cur, true
	}
	return 0, false
}

// skip discards up to n bytes of r.
func skip(r io.Reader, n int64) {
	if s, ok := r.(io.Seeker); ok {
		if avail, ok := available(r); ok && avail < n {
			n = avail
		}
		s.Seek(n, io.SeekCurrent)
		return
	}
	io.CopyN(io.Discard, r, n)
}
