package sfcpack

import (
	"fmt"
)

// SmallTileData is an 8x8 tile of palette indexes, row major, 64 bytes.
type SmallTileData []byte

// LargeTileData is a 16x16 tile of palette indexes, row major, 256 bytes.
type LargeTileData []byte

type tileMatch struct {
	id    uint16
	hflip bool
	vflip bool
}

// Tileset interns deduplicated tiles for one spritesheet. Small tiles pack
// four to a large tile cell; large tiles occupy a 2x2 quadrant of slots. Tile
// ids are slot positions relative to the sheet's first tile.
type Tileset struct {
	firstTile int
	maxTiles  int

	// tiles holds one 8x8 tile per slot, 16 slots per row. nil slots are
	// blanked at flush.
	tiles []SmallTileData

	largeTilePos  int
	smallTilePos  int
	smallTileCell int

	smallTiles map[string]tileMatch
	largeTiles map[string]tileMatch
}

// NewTileset returns an empty tileset for the tile range firstTile..endTile.
func NewTileset(firstTile, endTile int) (*Tileset, error) {
	if firstTile%0x10 != 0 {
		return nil, fmt.Errorf("first tile 0x%03x is not a multiple of 16", firstTile)
	}
	if endTile <= firstTile {
		return nil, fmt.Errorf("invalid tile range 0x%03x..0x%03x", firstTile, endTile)
	}
	return &Tileset{
		firstTile:    firstTile,
		maxTiles:     endTile - firstTile + 1,
		tiles:        make([]SmallTileData, 0x20),
		smallTilePos: 4,
		smallTiles:   make(map[string]tileMatch),
		largeTiles:   make(map[string]tileMatch),
	}, nil
}

// allocateLargeTile reserves a 2x2 cell and returns its top left slot.
// Crossing a row boundary grows the store by two rows.
func (t *Tileset) allocateLargeTile() int {
	pos := t.largeTilePos
	t.largeTilePos += 2
	if t.largeTilePos&0x0f == 0 {
		t.largeTilePos += 0x10
		t.tiles = append(t.tiles, make([]SmallTileData, 0x20)...)
	}
	return pos
}

var smallTileOffsets = [4]int{0x00, 0x01, 0x10, 0x11}

func (t *Tileset) allocateSmallTile() int {
	if t.smallTilePos >= len(smallTileOffsets) {
		t.smallTilePos = 0
		t.smallTileCell = t.allocateLargeTile()
	}
	pos := t.smallTileCell + smallTileOffsets[t.smallTilePos]
	t.smallTilePos++
	return pos
}

// AddOrGetSmallTile interns an 8x8 tile and returns its id and orientation.
// The first interning of a tile also claims its three flipped variants,
// mapping them to the same id, unless an earlier tile already claimed them.
func (t *Tileset) AddOrGetSmallTile(data SmallTileData) (uint16, bool, bool) {
	if m, ok := t.smallTiles[string(data)]; ok {
		return m.id, m.hflip, m.vflip
	}
	pos := t.allocateSmallTile()
	t.tiles[pos] = data
	id := uint16(pos)
	t.smallTiles[string(data)] = tileMatch{id: id}

	h := hflipTile(data, 8)
	v := vflipTile(data, 8)
	hv := vflipTile(h, 8)
	t.claimSmallVariant(h, tileMatch{id: id, hflip: true})
	t.claimSmallVariant(v, tileMatch{id: id, vflip: true})
	t.claimSmallVariant(hv, tileMatch{id: id, hflip: true, vflip: true})

	return id, false, false
}

// AddOrGetLargeTile interns a 16x16 tile, storing its four 8x8 quadrants in
// a 2x2 cell of slots.
func (t *Tileset) AddOrGetLargeTile(data LargeTileData) (uint16, bool, bool) {
	if m, ok := t.largeTiles[string(data)]; ok {
		return m.id, m.hflip, m.vflip
	}
	pos := t.allocateLargeTile()
	q := largeTileQuadrants(data)
	t.tiles[pos] = q[0]
	t.tiles[pos+1] = q[1]
	t.tiles[pos+0x10] = q[2]
	t.tiles[pos+0x11] = q[3]
	id := uint16(pos)
	t.largeTiles[string(data)] = tileMatch{id: id}

	h := hflipTile(data, 16)
	v := vflipTile(data, 16)
	hv := vflipTile(h, 16)
	t.claimLargeVariant(h, tileMatch{id: id, hflip: true})
	t.claimLargeVariant(v, tileMatch{id: id, vflip: true})
	t.claimLargeVariant(hv, tileMatch{id: id, hflip: true, vflip: true})

	return id, false, false
}

// claimSmallVariant registers a flipped variant, first writer wins.
func (t *Tileset) claimSmallVariant(data SmallTileData, m tileMatch) {
	if _, ok := t.smallTiles[string(data)]; !ok {
		t.smallTiles[string(data)] = m
	}
}

func (t *Tileset) claimLargeVariant(data LargeTileData, m tileMatch) {
	if _, ok := t.largeTiles[string(data)]; !ok {
		t.largeTiles[string(data)] = m
	}
}

// Tiles flushes the store: unused slots become blank tiles and the store is
// trimmed to the last used slot. Exceeding the declared tile range is only
// detected here, so a whole sheet is processed before the error surfaces.
func (t *Tileset) Tiles() ([]SmallTileData, error) {
	last := -1
	for i, tile := range t.tiles {
		if tile != nil {
			last = i
		}
	}
	blank := make(SmallTileData, 64)
	out := make([]SmallTileData, last+1)
	for i := range out {
		if t.tiles[i] != nil {
			out[i] = t.tiles[i]
		} else {
			out[i] = blank
		}
	}
	if len(out) > t.maxTiles {
		return nil, fmt.Errorf("too many tiles: %d, max %d", len(out), t.maxTiles)
	}
	return out, nil
}

// FirstTile returns the hardware tile number of slot 0.
func (t *Tileset) FirstTile() int {
	return t.firstTile
}

func hflipTile(data []byte, size int) []byte {
	out := make([]byte, len(data))
	for y := 0; y < size; y++ {
		row := data[y*size : y*size+size]
		for x, px := range row {
			out[y*size+size-1-x] = px
		}
	}
	return out
}

func vflipTile(data []byte, size int) []byte {
	out := make([]byte, len(data))
	for y := 0; y < size; y++ {
		copy(out[(size-1-y)*size:(size-y)*size], data[y*size:y*size+size])
	}
	return out
}

func largeTileQuadrants(data LargeTileData) [4]SmallTileData {
	var q [4]SmallTileData
	for i := range q {
		q[i] = make(SmallTileData, 0, 64)
	}
	for y := 0; y < 16; y++ {
		qi := y / 8 * 2
		q[qi] = append(q[qi], data[y*16:y*16+8]...)
		q[qi+1] = append(q[qi+1], data[y*16+8:y*16+16]...)
	}
	return q
}
