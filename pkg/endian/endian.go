// Package endian reads and writes fixed-width values in a byte order chosen at
// run time.
//
// PVR legacy files declare their own byte order through the header size
// field, so every multi-byte field in the file is accessed through an Order
// picked once per stream instead of a hard-coded binary.LittleEndian.
package endian

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Order is a byte order selected at run time.
type Order uint8

const (
	Little Order = iota
	Big
)

// String returns "little" or "big".
func (o Order) String() string {
	switch o {
	case Little:
		return "little"
	case Big:
		return "big"
	default:
		return fmt.Sprintf("Order(%d)", uint8(o))
	}
}

// Swapped returns the opposite byte order.
func (o Order) Swapped() Order {
	if o == Big {
		return Little
	}
	return Big
}

// ByteOrder returns the encoding/binary implementation of o.
func (o Order) ByteOrder() binary.ByteOrder {
	if o == Big {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (o Order) Uint16(b []byte) uint16 { return o.ByteOrder().Uint16(b) }
func (o Order) Uint32(b []byte) uint32 { return o.ByteOrder().Uint32(b) }
func (o Order) Uint64(b []byte) uint64 { return o.ByteOrder().Uint64(b) }

func (o Order) PutUint16(b []byte, v uint16) { o.ByteOrder().PutUint16(b, v) }
func (o Order) PutUint32(b []byte, v uint32) { o.ByteOrder().PutUint32(b, v) }
func (o Order) PutUint64(b []byte, v uint64) { o.ByteOrder().PutUint64(b, v) }

// Uint reads an unsigned word of size bytes (1 to 8).
func (o Order) Uint(b []byte, size int) uint64 {
	_ = b[size-1]
	var v uint64
	if o == Big {
		for i := 0; i < size; i++ {
			v = v<<8 | uint64(b[i])
		}
		return v
	}
	for i := size - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// PutUint writes the low size bytes of v.
func (o Order) PutUint(b []byte, size int, v uint64) {
	_ = b[size-1]
	if o == Big {
		for i := size - 1; i >= 0; i-- {
			b[i] = byte(v)
			v >>= 8
		}
		return
	}
	for i := 0; i < size; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}

func (o Order) Float32(b []byte) float32 {
	return math.Float32frombits(o.Uint32(b))
}

func (o Order) PutFloat32(b []byte, v float32) {
	o.PutUint32(b, math.Float32bits(v))
}

// Word is the set of fixed-width unsigned types handled by Get and Put.
type Word interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

func sizeOf[T Word]() int {
	n := 0
	for m := ^T(0); m != 0; m >>= 8 {
		n++
	}
	return n
}

// Get decodes a T stored in order o at the start of b.
func Get[T Word](o Order, b []byte) T {
	return T(o.Uint(b, sizeOf[T]()))
}

// Put encodes v in order o at the start of b.
func Put[T Word](o Order, b []byte, v T) {
	o.PutUint(b, sizeOf[T](), uint64(v))
}

// Swap reverses the byte order of v.
func Swap[T Word](v T) T {
	n := sizeOf[T]()
	var buf [8]byte
	Little.PutUint(buf[:n], n, uint64(v))
	return T(Big.Uint(buf[:n], n))
}

// Transcode copies one size-byte field from src (stored in order from) to dst
// (stored in order to). src and dst may alias.
func Transcode(from, to Order, dst, src []byte, size int) {
	v := from.Uint(src, size)
	to.PutUint(dst, size, v)
}

// Detect reads the first four bytes of b as a little-endian and then a
// big-endian uint32 and returns the first interpretation accepted by accept.
func Detect(b []byte, accept func(uint32) bool) (uint32, Order, bool) {
	if len(b) < 4 {
		return 0, Little, false
	}
	for _, o := range [...]Order{Little, Big} {
		if v := o.Uint32(b); accept(v) {
			return v, o, true
		}
	}
	return 0, Little, false
}

// Field is a bit-field of Width bits starting Shift bits above the least
// significant bit of its containing word.
type Field struct {
	Shift uint8
	Width uint8
}

// Max returns the largest value the field can hold.
func (f Field) Max() uint64 {
	if f.Width >= 64 {
		return math.MaxUint64
	}
	return 1<<f.Width - 1
}

// Get extracts the field from word.
func (f Field) Get(word uint64) uint64 {
	return (word >> f.Shift) & f.Max()
}

// Set returns word with the field replaced by v (truncated to Width bits).
func (f Field) Set(word, v uint64) uint64 {
	mask := f.Max() << f.Shift
	return (word &^ mask) | ((v << f.Shift) & mask)
}
