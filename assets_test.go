package sfcpack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSpritesheetFile = "testdata/project/metasprites/common.json"

func writeTestJSON(t *testing.T, s string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "input.json")
	require.Nil(t, os.WriteFile(filename, []byte(s), 0o644))
	return filename
}

func TestIsName(t *testing.T) {
	t.Parallel()
	assert.True(t, isName("walk_2"))
	assert.True(t, isName("Player"))
	assert.False(t, isName(""))
	assert.False(t, isName("bad name"))
	assert.False(t, isName("bad-name"))

	assert.True(t, isScopedName("common.Player"))
	assert.False(t, isScopedName("common"))
	assert.False(t, isScopedName("common."))
	assert.False(t, isScopedName("a.b.c"))
}

func TestParseIntList(t *testing.T) {
	t.Parallel()
	v, err := parseIntList("0 8 -16 16", 4, "Aabb")
	require.Nil(t, err)
	assert.Equal(t, []int{0, 8, -16, 16}, v)

	_, err = parseIntList("0 8", 4, "Aabb")
	assert.ErrorContains(t, err, `expected a string containing 4 integers (Aabb), got "0 8"`)
	_, err = parseIntList("a b", 2, "vision")
	assert.ErrorContains(t, err, "expected a string containing 2 integers (vision)")

	box, err := parseAabb("4 4 8 8")
	require.Nil(t, err)
	assert.Equal(t, &Aabb{X: 4, Y: 4, Width: 8, Height: 8}, box)

	box, err = parseOptionalAabb("")
	require.Nil(t, err)
	assert.Nil(t, box)
}

func TestLoadMappings(t *testing.T) {
	t.Parallel()
	m := testMappings(t)
	assert.Equal(t, "SFCPACK TEST", m.GameTitle)
	assert.Equal(t, MapModeLoRom, m.MemoryMap.Mode)
	assert.Equal(t, 2, m.MemoryMap.FirstResourceBank)
	assert.Equal(t, 2, m.MemoryMap.NResourceBanks)
	assert.Equal(t, []string{"dungeon"}, m.MtTilesets)
	assert.Equal(t, []string{"common"}, m.MsSpritesheets)
	assert.Equal(t, []string{"bg"}, m.Tiles)
	assert.Equal(t, []string{"theme"}, m.Audio)
}

func TestLoadMappingsErrors(t *testing.T) {
	t.Parallel()
	type tc struct {
		json    string
		wantErr string
	}
	testCases := []tc{
		{`{"bogus": 1}`, `unknown field "bogus"`},
		{`{"memory_map": {"mode": "exhirom"}}`, `memory_map: unknown memory map mode "exhirom"`},
		{`{"memory_map": {"mode": "lorom"}}`, "invalid first_resource_bank 0x00"},
		{`{"memory_map": {"mode": "lorom", "first_resource_bank": 2}}`, "invalid n_resource_banks 0"},
		{
			`{"memory_map": {"mode": "lorom", "first_resource_bank": 2, "n_resource_banks": 1}, "tiles": ["bad name"]}`,
			`invalid resource name "bad name"`,
		},
	}
	for _, testcase := range testCases {
		_, err := LoadMappings(writeTestJSON(t, testcase.json))
		assert.ErrorContains(t, err, testcase.wantErr)
	}

	_, err := LoadMappings("testdata/missing.json")
	assert.NotNil(t, err)
}

func TestLoadResources(t *testing.T) {
	t.Parallel()
	res, err := LoadResources("testdata/project/resources.json")
	require.Nil(t, err)
	require.Len(t, res.Tiles, 1)
	assert.Equal(t, &TilesInput{Name: "bg", Format: "2bpp", Source: "bg.png"}, res.Tiles["bg"])

	type tc struct {
		json    string
		wantErr string
	}
	testCases := []tc{
		{`{"tiles": {"bad name": {"format": "2bpp", "source": "x.png"}}}`, `invalid tiles name "bad name"`},
		{`{"tiles": {"bg": {"format": "3bpp", "source": "x.png"}}}`, `tiles.bg: unknown format "3bpp"`},
		{`{"tiles": {"bg": {"format": "2bpp"}}}`, "tiles.bg: missing source"},
	}
	for _, testcase := range testCases {
		_, err := LoadResources(writeTestJSON(t, testcase.json))
		assert.ErrorContains(t, err, testcase.wantErr)
	}
}

func TestLoadMsExportOrder(t *testing.T) {
	t.Parallel()
	eo, err := LoadMsExportOrder(testExportOrderFile)
	require.Nil(t, err)

	require.Len(t, eo.Patterns, 3)
	square := eo.Patterns["square"]
	require.NotNil(t, square)
	assert.Equal(t, byte(0), square.ID)
	assert.Equal(t, []MsPatternObject{{XPos: 0, YPos: 0, Size: 8}}, square.Objects)
	assert.Equal(t, byte(2), eo.Patterns["two_squares"].ID)
	assert.Equal(t, byte(4), eo.Patterns["big_square"].ID)

	assert.Len(t, eo.ShadowSizes, 4)
	_, ok := eo.ShadowSizes["MEDIUM"]
	assert.True(t, ok)

	require.Len(t, eo.AnimationLists, 1)
	assert.Equal(t, []string{"stand", "walk"}, eo.AnimationLists["player"].Animations)
}

func TestLoadMsExportOrderErrors(t *testing.T) {
	t.Parallel()
	type tc struct {
		json    string
		wantErr string
	}
	testCases := []tc{
		{
			`{"patterns": [{"name": "p", "objects": [{"size": 8}]}, {"name": "p", "objects": [{"size": 8}]}]}`,
			`duplicate pattern "p"`,
		},
		{`{"patterns": [{"name": "p"}]}`, `pattern "p" has no objects`},
		{`{"patterns": [{"name": "p", "objects": [{"size": 12}]}]}`, `pattern "p" object 0: invalid size 12`},
		{`{"patterns": [{"name": "p", "objects": [{"x": 4, "size": 8}]}]}`, "object 0: invalid position 4,0"},
		{`{"shadow_sizes": ["bad name"]}`, `invalid shadow size name "bad name"`},
		{`{"animation_lists": {"player": ["bad name"]}}`, `animation_lists.player: invalid animation name "bad name"`},
	}
	for _, testcase := range testCases {
		_, err := LoadMsExportOrder(writeTestJSON(t, testcase.json))
		assert.ErrorContains(t, err, testcase.wantErr)
	}
}

func TestLoadMsSpritesheet(t *testing.T) {
	t.Parallel()
	sheet, err := LoadMsSpritesheet(testSpritesheetFile)
	require.Nil(t, err)

	assert.Equal(t, "common", sheet.Name)
	assert.Equal(t, "palette.png", sheet.Palette)
	assert.Equal(t, 32, sheet.FirstTile)
	assert.Equal(t, 63, sheet.EndTile)
	require.Len(t, sheet.Framesets, 1)

	fs := sheet.Framesets[0]
	assert.Equal(t, "Player", fs.Name)
	assert.Equal(t, "common.png", fs.Source)
	assert.Equal(t, 16, fs.FrameWidth)
	assert.Equal(t, 16, fs.FrameHeight)
	assert.Equal(t, 8, fs.XOrigin)
	assert.Equal(t, 8, fs.YOrigin)
	assert.Equal(t, "SMALL", fs.ShadowSize)
	assert.Equal(t, TileHitbox{HalfWidth: 4, HalfHeight: 4}, fs.TileHitbox)
	assert.Equal(t, &Aabb{X: 4, Y: 4, Width: 8, Height: 8}, fs.DefaultHitbox)
	assert.Equal(t, &Aabb{X: 2, Y: 2, Width: 12, Height: 12}, fs.DefaultHurtbox)
	assert.Equal(t, "", fs.Pattern)
	assert.Equal(t, "player", fs.MsExportOrder)
	assert.Equal(t, 2, fs.Order)

	require.Len(t, fs.Blocks, 1)
	block := fs.Blocks[0]
	assert.Equal(t, "", block.Pattern)
	assert.Equal(t, 0, block.Start)
	assert.Equal(t, []string{"stand", "walk"}, block.Frames)
	// Blocks inherit the frameset's default boxes.
	assert.Equal(t, fs.DefaultHitbox, block.DefaultHitbox)
	assert.Equal(t, fs.DefaultHurtbox, block.DefaultHurtbox)

	assert.Equal(t, map[string]Aabb{"walk": {X: 6, Y: 6, Width: 4, Height: 4}}, fs.HitboxOverrides)
	assert.Empty(t, fs.HurtboxOverrides)

	// Animations come back in name order.
	require.Len(t, fs.Animations, 2)
	stand, walk := fs.Animations[0], fs.Animations[1]
	assert.Equal(t, "stand", stand.Name)
	assert.True(t, stand.Loop)
	assert.Equal(t, "none", stand.DelayType)
	assert.Equal(t, []string{"stand"}, stand.Frames)
	assert.Equal(t, "walk", walk.Name)
	assert.Equal(t, "frame", walk.DelayType)
	assert.Equal(t, 4.0, walk.FixedDelay)
	assert.Equal(t, []string{"stand", "walk"}, walk.Frames)
}

func TestLoadMsSpritesheetErrors(t *testing.T) {
	t.Parallel()
	fsJSON := func(fields string) string {
		return `{"name": "common", "palette": "p.png", "firstTile": 32, "endTile": 63, "framesets": [` +
			`{"name": "A", "source": "a.png", "shadowSize": "NONE", "tilehitbox": "4 4", "ms-export-order": "player"` +
			fields + `}]}`
	}
	type tc struct {
		json    string
		wantErr string
	}
	testCases := []tc{
		{`{}`, `invalid spritesheet name ""`},
		{`{"name": "common"}`, "missing palette"},
		{`{"name": "common", "palette": "p.png", "firstTile": 32, "endTile": 16}`, "invalid tile range 0x020..0x010"},
		{`{"name": "common", "palette": "p.png", "firstTile": 8, "endTile": 63}`, "firstTile must be a multiple of 16"},
		{
			fsJSON(`, "pattern": "square", "blocks": [{"start": 0, "frames": ["f"]}]`),
			"frameset A: blocks[0]: blocks with a pattern require",
		},
		{
			fsJSON(`, "blocks": [{"start": 0, "x": 0, "frames": ["f"]}]`),
			"frameset A: blocks[0]: blocks with no pattern must not have",
		},
		{
			fsJSON(`, "blocks": [{"start": 0, "flip": "diag", "frames": ["f"]}]`),
			`blocks[0]: unknown flip "diag"`,
		},
		{
			fsJSON(`, "blocks": [{"start": 0}]`),
			"blocks[0]: block has no frames",
		},
		{
			fsJSON(`, "animations": {"a": {"delay-type": "bogus", "fixed-delay": 1, "frames": ["f"]}}`),
			`animation a: unknown delay-type "bogus"`,
		},
		{
			fsJSON(`, "animations": {"a": {"delay-type": "frame", "frames": ["f"]}}`),
			"animation a: expected a list of",
		},
		{`{"name": "common", "palette": "p.png", "endTile": 63, "framesets": [{"name": "A"}, {"name": "A"}]}`,
			"frameset A: missing source"},
	}
	for _, testcase := range testCases {
		_, err := LoadMsSpritesheet(writeTestJSON(t, testcase.json))
		assert.ErrorContains(t, err, testcase.wantErr)
	}
}

func TestLoadEntitiesErrors(t *testing.T) {
	t.Parallel()
	entityJSON := func(entity string) string {
		return `{"entity_functions": [{"name": "player", "ms-export-order": "player"}], "entities": [` + entity + `]}`
	}
	type tc struct {
		json    string
		wantErr string
	}
	testCases := []tc{
		{
			`{"entity_functions": [{"name": "player", "ms-export-order": "player"}, {"name": "player", "ms-export-order": "x"}]}`,
			`duplicate entity function "player"`,
		},
		{entityJSON(`{"name": "p", "function": "nope", "metasprites": "common.P"}`), `entity p: unknown function "nope"`},
		{entityJSON(`{"name": "p", "function": "player", "metasprites": "common"}`), `entity p: invalid metasprites "common"`},
		{
			entityJSON(`{"name": "p", "function": "player", "metasprites": "common.P", "health": 300}`),
			"entity p: byte field out of range",
		},
		{
			entityJSON(`{"name": "p", "function": "player", "metasprites": "common.P", "vision": "1 2 3"}`),
			"expected a string containing 2 integers (vision)",
		},
		{
			entityJSON(`{"name": "p", "function": "player", "metasprites": "common.P", "vision": "300 0"}`),
			"entity p: vision out of range",
		},
	}
	for _, testcase := range testCases {
		_, err := LoadEntities(writeTestJSON(t, testcase.json))
		assert.ErrorContains(t, err, testcase.wantErr)
	}
}
