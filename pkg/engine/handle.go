package engine

import "sync/atomic"

// Handle is a reference-counted value. The destroy function runs once, when
// the last reference is released.
type Handle[T any] struct {
	value   T
	refs    atomic.Int32
	destroy func(T)
}

// NewHandle returns a handle holding one reference to v.
func NewHandle[T any](v T, destroy func(T)) *Handle[T] {
	h := &Handle[T]{value: v, destroy: destroy}
	h.refs.Store(1)
	return h
}

// Value returns the held value. It must not be used after the last Release.
func (h *Handle[T]) Value() T {
	return h.value
}

// AddRef takes another reference and returns h.
func (h *Handle[T]) AddRef() *Handle[T] {
	h.refs.Add(1)
	return h
}

// Release drops one reference and reports whether it was the last one.
// Releasing a destroyed handle does nothing.
func (h *Handle[T]) Release() bool {
	for {
		n := h.refs.Load()
		if n <= 0 {
			return false
		}
		if !h.refs.CompareAndSwap(n, n-1) {
			continue
		}
		if n != 1 {
			return false
		}
		if h.destroy != nil {
			h.destroy(h.value)
		}
		var zero T
		h.value = zero
		return true
	}
}

// Refs returns the current reference count.
func (h *Handle[T]) Refs() int {
	return int(h.refs.Load())
}
