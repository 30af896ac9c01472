package engine

import (
	"errors"
	"io"

	"github.com/EchoTools/pvrtools/pkg/archive"
	"github.com/EchoTools/pvrtools/pkg/pvr"
	"github.com/EchoTools/pvrtools/pkg/pvrz"
	"github.com/EchoTools/pvrtools/pkg/texture"
)

// Type is a registered container family.
type Type struct {
	Name       string
	Extensions []string
	Probe      func(r io.ReadSeeker) bool
	Read       func(c *Context, r io.Reader) (*pvr.Image, error)
	Write      func(c *Context, w io.Writer, img *pvr.Image) error
}

var errNotSeekable = errors.New("destination is not seekable")

func builtinTypes() []*Type {
	return []*Type{
		{
			Name:       "PVR",
			Extensions: []string{".pvr"},
			Probe:      pvr.Probe,
			Read: func(c *Context, r io.Reader) (*pvr.Image, error) {
				return pvr.Read(r, pvr.WithAllocator(c.alloc), pvr.WithLogger(c.log))
			},
			Write: func(c *Context, w io.Writer, img *pvr.Image) error {
				return img.Write(w, pvr.WithLogger(c.log))
			},
		},
		{
			Name:       "PVRZ",
			Extensions: []string{".pvrz"},
			Probe:      pvrz.IsPVRZ,
			Read: func(c *Context, r io.Reader) (*pvr.Image, error) {
				return pvrz.Decode(r, pvrz.WithAllocator(c.alloc), pvrz.WithLogger(c.log))
			},
			Write: func(c *Context, w io.Writer, img *pvr.Image) error {
				return pvrz.Encode(w, img, pvrz.WithLogger(c.log))
			},
		},
		{
			Name:       "ZPVR",
			Extensions: []string{".zpvr"},
			Probe:      archive.Probe,
			Read: func(c *Context, r io.Reader) (*pvr.Image, error) {
				return archive.Unpack(r, archive.WithAllocator(c.alloc), archive.WithLogger(c.log))
			},
			Write: func(c *Context, w io.Writer, img *pvr.Image) error {
				ws, ok := w.(io.WriteSeeker)
				if !ok {
					return texture.WrapError("zpvr write", texture.CodeInvalidUsage, "pack archive", errNotSeekable)
				}
				_, err := archive.Pack(ws, img)
				return err
			},
		},
	}
}
