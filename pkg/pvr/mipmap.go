package pvr

import "github.com/EchoTools/pvrtools/pkg/texture"

// RowAlignment is the row pitch granularity of PVR surfaces.
const RowAlignment = 1

func alignUp(v, n uint32) uint32 {
	if n <= 1 {
		return v
	}
	return (v + n - 1) / n * n
}

// SurfaceDimensions rounds logical layer dimensions up to the storage
// granularity of f.
func SurfaceDimensions(f PixelFormat, layerWidth, layerHeight uint32) (uint32, uint32) {
	d := Describe(f)
	return alignUp(layerWidth, d.BlockWidth), alignUp(layerHeight, d.BlockHeight)
}

// RowSize returns the byte pitch of a surface row.
func RowSize(surfWidth, depth uint32) uint32 {
	return texture.RowSize(surfWidth, depth, RowAlignment)
}

// LayerDataSize returns the byte size of one stored surface.
func LayerDataSize(surfWidth, surfHeight, depth uint32) uint32 {
	return RowSize(surfWidth, depth) * surfHeight
}

// LevelGenerator walks the dimensions of a mipmap chain, halving each side
// with a floor of one.
type LevelGenerator struct {
	width, height uint32
	level         int
}

// NewLevelGenerator starts a chain at the base dimensions.
func NewLevelGenerator(width, height uint32) *LevelGenerator {
	return &LevelGenerator{width: width, height: height}
}

// Valid reports whether the base dimensions describe a non-empty surface.
func (g *LevelGenerator) Valid() bool {
	return g.width > 0 && g.height > 0
}

// Dimensions returns the dimensions of the current level.
func (g *LevelGenerator) Dimensions() (uint32, uint32) {
	return g.width, g.height
}

// Level returns the index of the current level.
func (g *LevelGenerator) Level() int {
	return g.level
}

// Next advances to the following level. It returns false once the chain has
// reached 1×1.
func (g *LevelGenerator) Next() bool {
	if g.width <= 1 && g.height <= 1 {
		return false
	}
	if g.width > 1 {
		g.width /= 2
	}
	if g.height > 1 {
		g.height /= 2
	}
	g.level++
	return true
}

// LevelLayout is the derived geometry of one mipmap level.
type LevelLayout struct {
	LayerWidth, LayerHeight uint32
	Width, Height           uint32
	RowSize                 uint32
	DataSize                uint32
}

// Layout returns the geometry of up to count levels of an f surface whose
// base level is width×height. Fewer levels are returned when the chain
// reaches 1×1 first.
func Layout(f PixelFormat, width, height uint32, count int) []LevelLayout {
	gen := NewLevelGenerator(width, height)
	if !gen.Valid() || count <= 0 {
		return nil
	}
	depth := Depth(f)

	levels := make([]LevelLayout, 0, count)
	for {
		lw, lh := gen.Dimensions()
		sw, sh := SurfaceDimensions(f, lw, lh)
		row := RowSize(sw, depth)
		levels = append(levels, LevelLayout{
			LayerWidth: lw, LayerHeight: lh,
			Width: sw, Height: sh,
			RowSize:  row,
			DataSize: row * sh,
		})
		if len(levels) == count || !gen.Next() {
			return levels
		}
	}
}
