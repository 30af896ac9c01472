//go:build cgo && !nosquish

package dxt

/*
#cgo LDFLAGS: -lsquish -lstdc++
#cgo CXXFLAGS: -std=c++11
#include "squish_wrapper.h"
*/
import "C"
import "unsafe"

// compressSurface encodes a block aligned surface with libsquish.
func compressSurface(variant int, rgba []byte, width, height uint32) []byte {
	size := C.squish_storage_requirements(C.int(width), C.int(height), C.int(variant))
	out := make([]byte, int(size))

	C.squish_compress_image(
		(*C.uchar)(unsafe.Pointer(&rgba[0])),
		C.int(width),
		C.int(height),
		unsafe.Pointer(&out[0]),
		C.int(variant),
	)
	return out
}
