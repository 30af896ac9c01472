package pvrz

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/EchoTools/pvrtools/pkg/endian"
	"github.com/EchoTools/pvrtools/pkg/pvr"
	"github.com/EchoTools/pvrtools/pkg/texture"
)

func testImage() *pvr.Image {
	buf := make([]byte, 4*4*2)
	for i := range buf {
		buf[i] = byte(i * 7)
	}
	return &pvr.Image{
		Format:   pvr.RGB565,
		Order:    endian.Little,
		BitDepth: 16,
		Layers: []texture.Layer{{
			Width: 4, Height: 4, LayerWidth: 4, LayerHeight: 4,
			Texels: buf, DataSize: uint32(len(buf)),
		}},
	}
}

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		name  string
		level int
	}{
		{"Default", DefaultCompressionLevel},
		{"BestSpeed", 1},
		{"Stored", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := testImage()

			var buf bytes.Buffer
			if err := Encode(&buf, img, WithCompressionLevel(tt.level)); err != nil {
				t.Fatalf("encode: %v", err)
			}

			var raw bytes.Buffer
			if err := img.Write(&raw); err != nil {
				t.Fatal(err)
			}
			if got := binary.LittleEndian.Uint32(buf.Bytes()); got != uint32(raw.Len()) {
				t.Errorf("length prefix: got %d, want %d", got, raw.Len())
			}

			decoded, err := Decode(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if decoded.Format != img.Format || decoded.Width() != 4 || decoded.Height() != 4 {
				t.Errorf("got %s %dx%d, want %s 4x4", decoded.Format, decoded.Width(), decoded.Height(), img.Format)
			}
			if !bytes.Equal(decoded.Layers[0].Texels, img.Layers[0].Texels) {
				t.Error("texels differ")
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	valid, err := Compress([]byte("not a pvr header but long enough to be read as one, padded out to be sure"), DefaultCompressionLevel)
	if err != nil {
		t.Fatal(err)
	}

	truncated := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint32(truncated, 4096)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"Empty", nil, texture.ErrFormatMismatch},
		{"ZeroLength", []byte{0, 0, 0, 0, 0x78, 0x9c}, texture.ErrCorruptFile},
		{"NotZlib", []byte{16, 0, 0, 0, 'P', 'V', 'R', '!'}, texture.ErrFormatMismatch},
		{"ShortStream", truncated, texture.ErrCorruptFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(bytes.NewReader(tt.data)); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Decode(bytes.NewReader(valid)); err == nil {
		t.Error("payload without a PVR header decoded")
	}
}

func TestIsPVRZ(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, testImage()); err != nil {
		t.Fatal(err)
	}
	r := bytes.NewReader(buf.Bytes())
	if !IsPVRZ(r) {
		t.Error("encoded file not recognised")
	}
	if pos, _ := r.Seek(0, 1); pos != 0 {
		t.Errorf("stream left at %d", pos)
	}

	var raw bytes.Buffer
	if err := testImage().Write(&raw); err != nil {
		t.Fatal(err)
	}
	if IsPVRZ(bytes.NewReader(raw.Bytes())) {
		t.Error("plain PVR recognised as PVRZ")
	}
	if IsPVRZ(bytes.NewReader([]byte{1, 0})) {
		t.Error("short input recognised as PVRZ")
	}
}
