// Package engine ties the texture codecs together behind a context that owns
// the allocator, the warning sink and the registry of container types.
package engine

import (
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/Luzifer/go_helpers/v2/str"
	"github.com/sirupsen/logrus"

	"github.com/EchoTools/pvrtools/pkg/convert"
	"github.com/EchoTools/pvrtools/pkg/d3d"
	"github.com/EchoTools/pvrtools/pkg/endian"
	"github.com/EchoTools/pvrtools/pkg/pvr"
	"github.com/EchoTools/pvrtools/pkg/pvrtc"
	"github.com/EchoTools/pvrtools/pkg/texture"
)

// Context is an engine instance. It is not safe for concurrent mutation.
type Context struct {
	alloc       texture.Allocator
	log         logrus.FieldLogger
	pvrtc       pvrtc.Codec
	types       []*Type
	initialized bool
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the sink for warnings and debug output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Context) {
		c.log = l
	}
}

// WithAllocator sets the allocator for every pixel buffer the context creates.
func WithAllocator(a texture.Allocator) Option {
	return func(c *Context) {
		c.alloc = a
	}
}

// WithPVRTCCodec replaces the PVRTC codec.
func WithPVRTCCodec(codec pvrtc.Codec) Option {
	return func(c *Context) {
		c.pvrtc = codec
	}
}

// New creates an uninitialised context.
func New(opts ...Option) *Context {
	c := &Context{
		alloc: texture.DefaultAllocator,
		log:   logrus.StandardLogger(),
		pvrtc: pvrtc.DefaultCodec,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init registers the built-in container types. Calling it again is a no-op.
func (c *Context) Init() error {
	if c.initialized {
		return nil
	}
	c.initialized = true
	for _, t := range builtinTypes() {
		if err := c.Register(t); err != nil {
			c.Shutdown()
			return err
		}
	}
	return nil
}

// Shutdown unregisters every type. Calling it again is a no-op.
func (c *Context) Shutdown() {
	if !c.initialized {
		return
	}
	c.types = nil
	c.initialized = false
	c.log.Debug("engine shut down")
}

// Register adds a container type. Names are case-insensitive and unique.
func (c *Context) Register(t *Type) error {
	const op = "engine register"
	if !c.initialized {
		return texture.NewError(op, texture.CodeInvalidUsage, "context not initialised")
	}
	if t == nil || t.Name == "" || t.Probe == nil || t.Read == nil {
		return texture.NewError(op, texture.CodeInvalidUsage, "type needs a name, a probe and a reader")
	}
	if c.Type(t.Name) != nil {
		return texture.Errorf(op, texture.CodeInvalidUsage, "type %q already registered", t.Name)
	}
	c.types = append(c.types, t)
	c.log.WithFields(logrus.Fields{"type": t.Name, "extensions": t.Extensions}).Debug("registered container type")
	return nil
}

// Types returns the registered types in probe order.
func (c *Context) Types() []*Type {
	return append([]*Type(nil), c.types...)
}

// Type looks a registered type up by name.
func (c *Context) Type(name string) *Type {
	for _, t := range c.types {
		if strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return nil
}

// TypeByExtension returns the type registered for the extension of path.
func (c *Context) TypeByExtension(path string) *Type {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil
	}
	for _, t := range c.types {
		if str.StringInSlice(ext, t.Extensions) {
			return t
		}
	}
	return nil
}

// Probe returns the first registered type recognising r. The stream
// position is restored.
func (c *Context) Probe(r io.ReadSeeker) (*Type, error) {
	const op = "engine probe"
	if !c.initialized {
		return nil, texture.NewError(op, texture.CodeInvalidUsage, "context not initialised")
	}
	for _, t := range c.types {
		if t.Probe(r) {
			return t, nil
		}
	}
	return nil, texture.NewError(op, texture.CodeFormatMismatch, "no registered type recognises the data")
}

// Read probes r and decodes it with the matching type.
func (c *Context) Read(r io.ReadSeeker) (*pvr.Image, *Type, error) {
	t, err := c.Probe(r)
	if err != nil {
		return nil, nil, err
	}
	img, err := t.Read(c, r)
	if err != nil {
		return nil, t, err
	}
	c.log.WithFields(logrus.Fields{
		"type":   t.Name,
		"format": img.Format,
		"width":  img.Width(),
		"height": img.Height(),
		"levels": len(img.Layers),
	}).Debug("read image")
	return img, t, nil
}

// Write encodes img as the type called name.
func (c *Context) Write(w io.Writer, name string, img *pvr.Image) error {
	const op = "engine write"
	t := c.Type(name)
	if t == nil {
		return texture.Errorf(op, texture.CodeInvalidUsage, "unknown type %q", name)
	}
	if t.Write == nil {
		return texture.Errorf(op, texture.CodeUnsupported, "%s is read-only", t.Name)
	}
	return t.Write(c, w, img)
}

// NewImage returns a handle to an empty image. Its layers are returned to
// the context's allocator when the last reference is released.
func (c *Context) NewImage() *Handle[*pvr.Image] {
	alloc := c.alloc
	return NewHandle(pvr.NewImage(), func(img *pvr.Image) {
		img.Clear(alloc)
	})
}

// NewNativeTexture creates an empty native texture of kind.
func (c *Context) NewNativeTexture(kind texture.NativeKind) (texture.NativeTexture, error) {
	switch kind {
	case texture.KindDirect3D8, texture.KindDirect3D9:
		t, err := d3d.New(kind, c.alloc)
		if err != nil {
			return nil, err
		}
		return t, nil
	case texture.KindPowerVR:
		return &pvrtc.Texture{}, nil
	}
	return nil, texture.Errorf("engine native texture", texture.CodeUnsupported, "native kind %s", kind)
}

func (c *Context) env() convert.Env {
	return convert.Env{Alloc: c.alloc, Log: c.log, PVRTC: c.pvrtc}
}

// ReadFromNative replaces dst with the pixels of tex.
func (c *Context) ReadFromNative(dst *pvr.Image, tex texture.NativeTexture) (convert.Feedback, error) {
	return convert.ReadFromNative(c.env(), dst, tex)
}

// WriteToNative replaces the pixels of tex with src.
func (c *Context) WriteToNative(src *pvr.Image, tex texture.NativeTexture) (convert.Feedback, error) {
	return convert.WriteToNative(c.env(), src, tex)
}

// ToImage decodes one level of img.
func (c *Context) ToImage(img *pvr.Image, level int) (*image.NRGBA, error) {
	return convert.ToImage(c.env(), img, level)
}

// FromImage encodes src with the context's allocator and PVRTC codec.
func (c *Context) FromImage(src image.Image, format pvr.PixelFormat, order endian.Order, levels int) (*pvr.Image, error) {
	return convert.FromImage(c.env(), src, format, order, levels)
}
