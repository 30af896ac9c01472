package texture

// Layer is one mipmap level. Width and Height are the stored surface
// dimensions after block rounding; LayerWidth and LayerHeight are the logical
// dimensions the level represents.
type Layer struct {
	Width, Height           uint32
	LayerWidth, LayerHeight uint32
	Texels                  []byte
	DataSize                uint32
}

// Allocator hands out pixel buffers. Free is only ever called with buffers
// returned by Allocate on the same allocator.
type Allocator interface {
	Allocate(size uint32) ([]byte, error)
	Free(buf []byte)
}

// HeapAllocator allocates from the Go heap. Free is a no-op.
type HeapAllocator struct{}

func (HeapAllocator) Allocate(size uint32) ([]byte, error) {
	return make([]byte, size), nil
}

func (HeapAllocator) Free([]byte) {}

// DefaultAllocator is used when no allocator is configured.
var DefaultAllocator Allocator = HeapAllocator{}

// FreeLayers returns every layer buffer to alloc and clears the references.
func FreeLayers(alloc Allocator, layers []Layer) {
	for i := range layers {
		if layers[i].Texels != nil {
			alloc.Free(layers[i].Texels)
			layers[i].Texels = nil
		}
	}
}

// Guard tracks buffers allocated during a multi-step operation. Release frees
// every tracked buffer unless Commit was called first, so
//
//	g := texture.NewGuard(alloc)
//	defer g.Release()
//
// rolls back partial work on any early return.
type Guard struct {
	alloc     Allocator
	owned     [][]byte
	committed bool
}

// NewGuard returns a guard allocating from alloc.
func NewGuard(alloc Allocator) *Guard {
	if alloc == nil {
		alloc = DefaultAllocator
	}
	return &Guard{alloc: alloc}
}

// Allocate allocates and tracks a buffer.
func (g *Guard) Allocate(size uint32) ([]byte, error) {
	buf, err := g.alloc.Allocate(size)
	if err != nil {
		return nil, WrapError("allocate", CodeAllocation, "pixel buffer", err)
	}
	if buf == nil {
		return nil, Errorf("allocate", CodeAllocation, "allocator returned no buffer for %d bytes", size)
	}
	g.owned = append(g.owned, buf)
	return buf, nil
}

// Adopt tracks a buffer produced elsewhere as if the guard had allocated it.
func (g *Guard) Adopt(buf []byte) []byte {
	if len(buf) > 0 {
		g.owned = append(g.owned, buf)
	}
	return buf
}

// Free releases one tracked buffer ahead of the rest.
func (g *Guard) Free(buf []byte) {
	for i, b := range g.owned {
		if sameBuffer(b, buf) {
			g.alloc.Free(b)
			g.owned = append(g.owned[:i], g.owned[i+1:]...)
			return
		}
	}
}

// Len returns the number of buffers currently tracked.
func (g *Guard) Len() int {
	return len(g.owned)
}

// Commit hands every tracked buffer over to the caller.
func (g *Guard) Commit() {
	g.committed = true
	g.owned = nil
}

// Release frees every tracked buffer unless the guard was committed.
func (g *Guard) Release() {
	if g.committed {
		return
	}
	for _, b := range g.owned {
		g.alloc.Free(b)
	}
	g.owned = nil
}

func sameBuffer(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return &a[0] == &b[0]
}
