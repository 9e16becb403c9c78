package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// TilesInBound lists the web mercator tiles covering b at zoom z, row by row
// from the north-west corner.
func TilesInBound(b orb.Bound, z maptile.Zoom) []maptile.Tile {
	topLeft := maptile.At(orb.Point{b.Min[0], b.Max[1]}, z)
	bottomRight := maptile.At(orb.Point{b.Max[0], b.Min[1]}, z)

	maxIndex := uint32(1)<<uint32(z) - 1
	minX, maxX := clampTile(topLeft.X, maxIndex), clampTile(bottomRight.X, maxIndex)
	minY, maxY := clampTile(topLeft.Y, maxIndex), clampTile(bottomRight.Y, maxIndex)

	tiles := make([]maptile.Tile, 0, int(maxX-minX+1)*int(maxY-minY+1))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			tiles = append(tiles, maptile.New(x, y, z))
		}
	}

	return tiles
}

// BoundAround returns the area covered by the tile under center at zoom z and
// radius tiles on each side of it.
func BoundAround(center orb.Point, z maptile.Zoom, radius int) orb.Bound {
	t := maptile.At(center, z)
	maxIndex := int64(1)<<uint32(z) - 1

	lo := func(v uint32) uint32 { return uint32(max(int64(v)-int64(radius), 0)) }
	hi := func(v uint32) uint32 { return uint32(min(int64(v)+int64(radius), maxIndex)) }

	nw := maptile.New(lo(t.X), lo(t.Y), z)
	se := maptile.New(hi(t.X), hi(t.Y), z)

	return nw.Bound().Union(se.Bound())
}

// TMSY flips a XYZ row index to the TMS scheme.
func TMSY(t maptile.Tile) uint32 {
	return uint32(1)<<uint32(t.Z) - 1 - t.Y
}

func clampTile(v, maxIndex uint32) uint32 {
	if v > maxIndex {
		return maxIndex
	}
	return v
}
