package pvr

import "fmt"

// PixelFormat is a legacy PVR pixel format id, stored in the low byte of the
// header flags.
type PixelFormat uint8

const (
	ARGB4444 PixelFormat = 0x00
	ARGB1555 PixelFormat = 0x01
	RGB565   PixelFormat = 0x02
	RGB555   PixelFormat = 0x03
	RGB888   PixelFormat = 0x04
	ARGB8888 PixelFormat = 0x05
	ARGB8332 PixelFormat = 0x06
	I8       PixelFormat = 0x07
	AI88     PixelFormat = 0x08
	Mono     PixelFormat = 0x09
	VY1UY0   PixelFormat = 0x0A
	Y1VY0U   PixelFormat = 0x0B
	PVRTC2   PixelFormat = 0x0C
	PVRTC4   PixelFormat = 0x0D

	ARGB4444Sec PixelFormat = 0x10
	ARGB1555Sec PixelFormat = 0x11
	ARGB8888Sec PixelFormat = 0x12
	RGB565Sec   PixelFormat = 0x13
	RGB555Sec   PixelFormat = 0x14
	RGB888Sec   PixelFormat = 0x15
	I8Sec       PixelFormat = 0x16
	AI88Sec     PixelFormat = 0x17
	PVRTC2Sec   PixelFormat = 0x18
	PVRTC4Sec   PixelFormat = 0x19
	BGRA8888    PixelFormat = 0x1A

	DXT1          PixelFormat = 0x20
	DXT2          PixelFormat = 0x21
	DXT3          PixelFormat = 0x22
	DXT4          PixelFormat = 0x23
	DXT5          PixelFormat = 0x24
	RGB332        PixelFormat = 0x25
	AL44          PixelFormat = 0x26
	LVU655        PixelFormat = 0x27
	XLVU8888      PixelFormat = 0x28
	QWVU8888      PixelFormat = 0x29
	ABGR2101010   PixelFormat = 0x2A
	ARGB2101010   PixelFormat = 0x2B
	AWVU2101010   PixelFormat = 0x2C
	GR1616        PixelFormat = 0x2D
	VU1616        PixelFormat = 0x2E
	ABGR16161616  PixelFormat = 0x2F
	R16F          PixelFormat = 0x30
	GR1616F       PixelFormat = 0x31
	ABGR16161616F PixelFormat = 0x32
	R32F          PixelFormat = 0x33
	GR3232F       PixelFormat = 0x34
	ABGR32323232F PixelFormat = 0x35
	ETC           PixelFormat = 0x36

	A8   PixelFormat = 0x40
	VU88 PixelFormat = 0x41
	L16  PixelFormat = 0x42
	L8   PixelFormat = 0x43
	AL88 PixelFormat = 0x44
	UYVY PixelFormat = 0x45
	YUY2 PixelFormat = 0x46
)

// Class is the sample classification of a pixel format.
type Class uint8

const (
	ClassUnknown Class = iota
	ClassRGBA
	ClassLuminance
	ClassCompressed
)

func (c Class) String() string {
	switch c {
	case ClassRGBA:
		return "RGBA"
	case ClassLuminance:
		return "luminance"
	case ClassCompressed:
		return "compressed"
	}
	return "unknown"
}

// Descriptor is the static metadata of one pixel format.
type Descriptor struct {
	Name        string
	Class       Class
	Depth       uint32
	Alpha       bool
	BlockWidth  uint32
	BlockHeight uint32
	// DXT is the DXT variant number, or 0.
	DXT int
}

type flag uint8

const (
	fAlpha flag = 1 << iota
	fYUV        // 2x2 macro-pixel formats
	fBlock4     // 4x4 block formats
	fPVRTC
)

func desc(name string, class Class, depth uint32, flags flag) Descriptor {
	d := Descriptor{Name: name, Class: class, Depth: depth, Alpha: flags&fAlpha != 0, BlockWidth: 1, BlockHeight: 1}
	switch {
	case flags&fYUV != 0:
		d.BlockWidth, d.BlockHeight = 2, 2
	case flags&fBlock4 != 0:
		d.BlockWidth, d.BlockHeight = 4, 4
	case flags&fPVRTC != 0:
		d.BlockWidth, d.BlockHeight = pvrtcBlockDimensions(depth)
	}
	return d
}

var formats = map[PixelFormat]Descriptor{
	ARGB4444: desc("ARGB_4444", ClassRGBA, 16, fAlpha),
	ARGB1555: desc("ARGB_1555", ClassRGBA, 16, fAlpha),
	RGB565:   desc("RGB_565", ClassRGBA, 16, 0),
	RGB555:   desc("RGB_555", ClassRGBA, 16, 0),
	RGB888:   desc("RGB_888", ClassRGBA, 24, 0),
	ARGB8888: desc("ARGB_8888", ClassRGBA, 32, fAlpha),
	ARGB8332: desc("ARGB_8332", ClassRGBA, 16, fAlpha),
	I8:       desc("I8", ClassLuminance, 8, 0),
	AI88:     desc("AI88", ClassLuminance, 16, fAlpha),
	Mono:     desc("MONOCHROME", ClassLuminance, 1, 0),
	VY1UY0:   desc("V_Y1_U_Y0", ClassCompressed, 8, fYUV),
	Y1VY0U:   desc("Y1_V_Y0_U", ClassCompressed, 8, fYUV),
	PVRTC2:   desc("PVRTC2", ClassCompressed, 2, fAlpha|fPVRTC),
	PVRTC4:   desc("PVRTC4", ClassCompressed, 4, fAlpha|fPVRTC),

	ARGB4444Sec: desc("ARGB_4444_SEC", ClassRGBA, 16, fAlpha),
	ARGB1555Sec: desc("ARGB_1555_SEC", ClassRGBA, 16, fAlpha),
	ARGB8888Sec: desc("ARGB_8888_SEC", ClassRGBA, 32, fAlpha),
	RGB565Sec:   desc("RGB_565_SEC", ClassRGBA, 16, 0),
	RGB555Sec:   desc("RGB_555_SEC", ClassRGBA, 16, 0),
	RGB888Sec:   desc("RGB_888_SEC", ClassRGBA, 24, 0),
	I8Sec:       desc("I8_SEC", ClassLuminance, 8, 0),
	AI88Sec:     desc("AI88_SEC", ClassLuminance, 16, fAlpha),
	PVRTC2Sec:   desc("PVRTC2_SEC", ClassCompressed, 2, fAlpha|fPVRTC),
	PVRTC4Sec:   desc("PVRTC4_SEC", ClassCompressed, 4, fAlpha|fPVRTC),
	BGRA8888:    desc("BGRA_8888", ClassRGBA, 32, fAlpha),

	DXT1:          desc("DXT1", ClassCompressed, 4, fBlock4),
	DXT2:          desc("DXT2", ClassCompressed, 8, fBlock4),
	DXT3:          desc("DXT3", ClassCompressed, 8, fBlock4),
	DXT4:          desc("DXT4", ClassCompressed, 8, fBlock4),
	DXT5:          desc("DXT5", ClassCompressed, 8, fBlock4),
	RGB332:        desc("RGB332", ClassRGBA, 8, 0),
	AL44:          desc("AL_44", ClassLuminance, 8, fAlpha),
	LVU655:        desc("LVU_655", ClassUnknown, 16, 0),
	XLVU8888:      desc("XLVU_8888", ClassUnknown, 32, 0),
	QWVU8888:      desc("QWVU_8888", ClassUnknown, 32, 0),
	ABGR2101010:   desc("ABGR_2101010", ClassRGBA, 32, fAlpha),
	ARGB2101010:   desc("ARGB_2101010", ClassRGBA, 32, fAlpha),
	AWVU2101010:   desc("AWVU_2101010", ClassUnknown, 32, fAlpha),
	GR1616:        desc("GR_1616", ClassRGBA, 32, 0),
	VU1616:        desc("VU_1616", ClassUnknown, 32, 0),
	ABGR16161616:  desc("ABGR_16161616", ClassRGBA, 64, fAlpha),
	R16F:          desc("R_16F", ClassRGBA, 16, 0),
	GR1616F:       desc("GR_1616F", ClassRGBA, 32, 0),
	ABGR16161616F: desc("ABGR_16161616F", ClassRGBA, 64, fAlpha),
	R32F:          desc("R_32F", ClassRGBA, 32, 0),
	GR3232F:       desc("GR_3232F", ClassRGBA, 64, 0),
	ABGR32323232F: desc("ABGR_32323232F", ClassRGBA, 128, fAlpha),
	ETC:           desc("ETC", ClassCompressed, 4, fBlock4),

	A8:   desc("A8", ClassRGBA, 8, fAlpha),
	VU88: desc("VU_88", ClassUnknown, 16, 0),
	L16:  desc("L16", ClassLuminance, 16, 0),
	L8:   desc("L8", ClassLuminance, 8, 0),
	AL88: desc("AL_88", ClassLuminance, 16, fAlpha),
	UYVY: desc("UYVY", ClassCompressed, 8, fYUV),
	YUY2: desc("YUY2", ClassCompressed, 8, fYUV),
}

func init() {
	for _, f := range []PixelFormat{DXT1, DXT2, DXT3, DXT4, DXT5} {
		d := formats[f]
		d.DXT = int(f-DXT1) + 1
		formats[f] = d
	}
}

// pvrtcBlockDimensions returns the minimum surface granularity of PVRTC data
// at the given depth: 16×8 for 2bpp and 8×8 for 4bpp.
func pvrtcBlockDimensions(depth uint32) (uint32, uint32) {
	if depth == 2 {
		return 16, 8
	}
	return 8, 8
}

// Describe returns the descriptor of f. Unknown ids yield a zero descriptor
// with ClassUnknown.
func Describe(f PixelFormat) Descriptor {
	return formats[f]
}

// IsValid reports whether f is one of the legacy format ids.
func IsValid(f PixelFormat) bool {
	_, ok := formats[f]
	return ok
}

// Classify returns the sample classification of f.
func Classify(f PixelFormat) Class {
	return formats[f].Class
}

// HasAlpha reports whether f stores an alpha channel.
func HasAlpha(f PixelFormat) bool {
	return formats[f].Alpha
}

// Depth returns the bits per texel of f, or 0 for unknown ids.
func Depth(f PixelFormat) uint32 {
	return formats[f].Depth
}

// IsPVRTC reports whether f holds PVRTC blocks.
func IsPVRTC(f PixelFormat) bool {
	switch f {
	case PVRTC2, PVRTC4, PVRTC2Sec, PVRTC4Sec:
		return true
	}
	return false
}

// DXTVariant returns 1-5 for the DXT formats and 0 otherwise.
func DXTVariant(f PixelFormat) int {
	return formats[f].DXT
}

// FormatForDXT returns the pixel format of a DXT variant number.
func FormatForDXT(variant int) (PixelFormat, bool) {
	if variant < 1 || variant > 5 {
		return 0, false
	}
	return DXT1 + PixelFormat(variant-1), true
}

func (f PixelFormat) String() string {
	if d, ok := formats[f]; ok {
		return d.Name
	}
	return fmt.Sprintf("PixelFormat(%#02x)", uint8(f))
}

// ParsePixelFormat looks a format up by its name as returned by String.
func ParsePixelFormat(name string) (PixelFormat, error) {
	for f, d := range formats {
		if d.Name == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown pixel format %q", name)
}

// Formats returns every valid pixel format in id order.
func Formats() []PixelFormat {
	out := make([]PixelFormat, 0, len(formats))
	for i := 0; i < 256; i++ {
		if f := PixelFormat(i); IsValid(f) {
			out = append(out, f)
		}
	}
	return out
}
