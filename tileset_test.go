package sfcpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// markerSmallTile returns an 8x8 tile whose only non-zero pixel sits in the
// top left corner, so every flipped variant is distinct.
func markerSmallTile(marker byte) SmallTileData {
	tile := make(SmallTileData, 64)
	tile[0] = marker
	return tile
}

func markerLargeTile(marker byte) LargeTileData {
	tile := make(LargeTileData, 256)
	tile[0] = marker
	return tile
}

func TestNewTileset(t *testing.T) {
	t.Parallel()
	ts, err := NewTileset(0x20, 0x3f)
	assert.Nil(t, err)
	assert.Equal(t, 0x20, ts.FirstTile())

	_, err = NewTileset(0x21, 0x3f)
	assert.ErrorContains(t, err, "not a multiple of 16")
	_, err = NewTileset(0x20, 0x20)
	assert.ErrorContains(t, err, "invalid tile range")
	_, err = NewTileset(0x20, 0x10)
	assert.ErrorContains(t, err, "invalid tile range")
}

func TestSmallTileIDOrder(t *testing.T) {
	t.Parallel()
	ts, err := NewTileset(0, 0xff)
	require.Nil(t, err)

	// Small tiles fill a 2x2 cell before a new cell is allocated.
	wantIDs := []uint16{0x00, 0x01, 0x10, 0x11, 0x02, 0x03, 0x12, 0x13}
	for i, want := range wantIDs {
		id, hflip, vflip := ts.AddOrGetSmallTile(markerSmallTile(byte(i + 1)))
		assert.Equal(t, want, id)
		assert.False(t, hflip)
		assert.False(t, vflip)
	}

	// Re-adding an interned tile returns its existing id.
	id, _, _ := ts.AddOrGetSmallTile(markerSmallTile(3))
	assert.Equal(t, uint16(0x10), id)
}

func TestLargeTileIDOrder(t *testing.T) {
	t.Parallel()
	ts, err := NewTileset(0, 0x1ff)
	require.Nil(t, err)

	// Large tiles advance two slots at a time and skip a row when the 2x2
	// cell would straddle a row boundary.
	wantIDs := []uint16{0x00, 0x02, 0x04, 0x06, 0x08, 0x0a, 0x0c, 0x0e, 0x20}
	for i, want := range wantIDs {
		id, hflip, vflip := ts.AddOrGetLargeTile(markerLargeTile(byte(i + 1)))
		assert.Equal(t, want, id)
		assert.False(t, hflip)
		assert.False(t, vflip)
	}
}

func TestMixedTileIDOrder(t *testing.T) {
	t.Parallel()
	ts, err := NewTileset(0, 0xff)
	require.Nil(t, err)

	id, _, _ := ts.AddOrGetLargeTile(markerLargeTile(1))
	assert.Equal(t, uint16(0), id)
	id, _, _ = ts.AddOrGetSmallTile(markerSmallTile(2))
	assert.Equal(t, uint16(2), id)
	id, _, _ = ts.AddOrGetSmallTile(markerSmallTile(3))
	assert.Equal(t, uint16(3), id)
	id, _, _ = ts.AddOrGetLargeTile(markerLargeTile(4))
	assert.Equal(t, uint16(4), id)
}

func TestSmallTileVariants(t *testing.T) {
	t.Parallel()
	ts, err := NewTileset(0, 0xff)
	require.Nil(t, err)

	tile := markerSmallTile(1)
	id, hflip, vflip := ts.AddOrGetSmallTile(tile)
	assert.Equal(t, uint16(0), id)
	assert.False(t, hflip)
	assert.False(t, vflip)

	id, hflip, vflip = ts.AddOrGetSmallTile(hflipTile(tile, 8))
	assert.Equal(t, uint16(0), id)
	assert.True(t, hflip)
	assert.False(t, vflip)

	id, hflip, vflip = ts.AddOrGetSmallTile(vflipTile(tile, 8))
	assert.Equal(t, uint16(0), id)
	assert.False(t, hflip)
	assert.True(t, vflip)

	id, hflip, vflip = ts.AddOrGetSmallTile(vflipTile(hflipTile(tile, 8), 8))
	assert.Equal(t, uint16(0), id)
	assert.True(t, hflip)
	assert.True(t, vflip)

	// The variants never claimed a slot of their own.
	tiles, err := ts.Tiles()
	assert.Nil(t, err)
	assert.Len(t, tiles, 1)
}

func TestLargeTileVariants(t *testing.T) {
	t.Parallel()
	ts, err := NewTileset(0, 0xff)
	require.Nil(t, err)

	tile := markerLargeTile(1)
	id, _, _ := ts.AddOrGetLargeTile(tile)
	assert.Equal(t, uint16(0), id)

	id, hflip, vflip := ts.AddOrGetLargeTile(hflipTile(tile, 16))
	assert.Equal(t, uint16(0), id)
	assert.True(t, hflip)
	assert.False(t, vflip)

	id, hflip, vflip = ts.AddOrGetLargeTile(vflipTile(tile, 16))
	assert.Equal(t, uint16(0), id)
	assert.False(t, hflip)
	assert.True(t, vflip)
}

func TestSymmetricTileVariants(t *testing.T) {
	t.Parallel()
	ts, err := NewTileset(0, 0xff)
	require.Nil(t, err)

	// Each row holds a constant value, so the tile equals its own hflip but
	// not its vflip.
	tile := make(SmallTileData, 64)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			tile[y*8+x] = byte(y)
		}
	}
	id, hflip, vflip := ts.AddOrGetSmallTile(tile)
	assert.Equal(t, uint16(0), id)
	assert.False(t, hflip)
	assert.False(t, vflip)

	// The canonical entry wins over the variant claim.
	id, hflip, vflip = ts.AddOrGetSmallTile(hflipTile(tile, 8))
	assert.Equal(t, uint16(0), id)
	assert.False(t, hflip)
	assert.False(t, vflip)

	id, _, vflip = ts.AddOrGetSmallTile(vflipTile(tile, 8))
	assert.Equal(t, uint16(0), id)
	assert.True(t, vflip)
}

func TestTilesBlanksUnusedSlots(t *testing.T) {
	t.Parallel()
	ts, err := NewTileset(0, 0xff)
	require.Nil(t, err)

	ts.AddOrGetLargeTile(markerLargeTile(1))
	tiles, err := ts.Tiles()
	assert.Nil(t, err)
	// The large tile's bottom quadrants sit at 0x10 and 0x11; everything
	// between is blanked.
	require.Len(t, tiles, 0x12)
	assert.Equal(t, byte(1), tiles[0][0])
	blank := make(SmallTileData, 64)
	for i := 2; i < 0x10; i++ {
		assert.Equal(t, blank, tiles[i])
	}
}

func TestTilesTooManyTiles(t *testing.T) {
	t.Parallel()
	ts, err := NewTileset(0, 0x10)
	require.Nil(t, err)

	ts.AddOrGetLargeTile(markerLargeTile(1))
	_, err = ts.Tiles()
	assert.ErrorContains(t, err, "too many tiles: 18, max 17")
}

func TestLargeTileQuadrants(t *testing.T) {
	t.Parallel()
	tile := make(LargeTileData, 256)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			q := byte(y/8*2 + x/8)
			tile[y*16+x] = q
		}
	}
	q := largeTileQuadrants(tile)
	for i := 0; i < 4; i++ {
		require.Len(t, q[i], 64)
		for _, px := range q[i] {
			assert.Equal(t, byte(i), px)
		}
	}
}

func TestFlipTile(t *testing.T) {
	t.Parallel()
	// Markers in the top left, top right and bottom left corners.
	tile := make(SmallTileData, 64)
	tile[0] = 1
	tile[7] = 2
	tile[56] = 3

	h := hflipTile(tile, 8)
	assert.Equal(t, byte(1), h[7])
	assert.Equal(t, byte(2), h[0])
	assert.Equal(t, byte(3), h[63])

	v := vflipTile(tile, 8)
	assert.Equal(t, byte(1), v[56])
	assert.Equal(t, byte(2), v[63])
	assert.Equal(t, byte(3), v[0])
}
