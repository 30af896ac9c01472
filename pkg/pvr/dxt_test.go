package pvr

import (
	"bytes"
	"testing"

	"github.com/EchoTools/pvrtools/pkg/endian"
)

func sequence(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestCopyDXTBlock(t *testing.T) {
	tests := []struct {
		format PixelFormat
		want   []byte
	}{
		{DXT1, []byte{1, 0, 3, 2, 7, 6, 5, 4}},
		{DXT3, []byte{7, 6, 5, 4, 3, 2, 1, 0, 9, 8, 11, 10, 15, 14, 13, 12}},
		{DXT5, []byte{0, 1, 7, 6, 5, 4, 3, 2, 9, 8, 11, 10, 15, 14, 13, 12}},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			src := sequence(len(tt.want))
			dst := make([]byte, len(src))
			CopyDXTBlock(tt.format, dst, endian.Big, src, endian.Little, 0)
			if !bytes.Equal(dst, tt.want) {
				t.Errorf("got % x, want % x", dst, tt.want)
			}

			back := make([]byte, len(src))
			CopyDXTBlock(tt.format, back, endian.Little, dst, endian.Big, 0)
			if !bytes.Equal(back, src) {
				t.Errorf("reverse: got % x, want % x", back, src)
			}
		})
	}

	t.Run("SameOrder", func(t *testing.T) {
		src := sequence(16)
		dst := make([]byte, 16)
		CopyDXTBlock(DXT2, dst, endian.Big, src, endian.Big, 0)
		if !bytes.Equal(dst, src) {
			t.Errorf("got % x, want % x", dst, src)
		}
	})

	t.Run("NonDXTPanics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		CopyDXTBlock(ARGB8888, make([]byte, 16), endian.Big, make([]byte, 16), endian.Little, 0)
	})
}

func TestReorderTexels(t *testing.T) {
	tests := []struct {
		name   string
		format PixelFormat
		src    []byte
		want   []byte
	}{
		{"ARGB8888", ARGB8888, sequence(8), []byte{3, 2, 1, 0, 7, 6, 5, 4}},
		{"RGB565", RGB565, sequence(4), []byte{1, 0, 3, 2}},
		{"RGB888", RGB888, sequence(6), []byte{2, 1, 0, 5, 4, 3}},
		{"ABGR16161616", ABGR16161616, sequence(8), []byte{1, 0, 3, 2, 5, 4, 7, 6}},
		{"R32F", R32F, sequence(8), []byte{3, 2, 1, 0, 7, 6, 5, 4}},
		{"I8", I8, sequence(4), sequence(4)},
		{"Mono", Mono, sequence(2), sequence(2)},
		{"LVU655", LVU655, sequence(4), []byte{1, 0, 3, 2}},
		{"QWVU8888", QWVU8888, sequence(4), []byte{3, 2, 1, 0}},
		{"PVRTC4", PVRTC4, sequence(8), sequence(8)},
		{"DXT1", DXT1, sequence(8), []byte{1, 0, 3, 2, 7, 6, 5, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, len(tt.src))
			ReorderTexels(tt.format, dst, endian.Big, tt.src, endian.Little, 4, 4)
			if !bytes.Equal(dst, tt.want) {
				t.Errorf("got % x, want % x", dst, tt.want)
			}
		})
	}
}
