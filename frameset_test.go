package sfcpack

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testSpritesheet(t *testing.T) *MsSpritesheet {
	t.Helper()
	sheet, err := LoadMsSpritesheet(testSpritesheetFile)
	require.Nil(t, err)
	return sheet
}

func testExportOrder(t *testing.T) *MsExportOrder {
	t.Helper()
	eo, err := LoadMsExportOrder(testExportOrderFile)
	require.Nil(t, err)
	return eo
}

func TestConvertSpritesheet(t *testing.T) {
	t.Parallel()
	sheet := testSpritesheet(t)
	eo := testExportOrder(t)
	grids := GeneratePatternGrids(eo)
	log := zap.NewNop().Sugar()

	ppuData, entries, err := ConvertSpritesheet(sheet, eo, grids, testMetaspritesDir, log)
	require.Nil(t, err)

	// First tile number, 8 palette rows, one deduplicated 4bpp tile.
	require.Len(t, ppuData, 2+256+32)
	assert.Equal(t, []byte{0x20, 0x00}, ppuData[:2])
	assert.Equal(t, []byte{0x00, 0x00, 0xff, 0x7f, 0x1f, 0x00, 0xe0, 0x03, 0x00, 0x7c}, ppuData[2:12])
	wantTile := make([]byte, 0, 32)
	for i := 0; i < 8; i++ {
		wantTile = append(wantTile, 0x0f, 0xf0)
	}
	wantTile = append(wantTile, make([]byte, 16)...)
	assert.Equal(t, wantTile, ppuData[258:])

	require.Len(t, entries, 1)
	want := &MsFsEntry{
		Fullname:      "common.Player",
		MsExportOrder: "player",
		Header:        []byte{1, 4, 4},
		Pattern:       "dynamic_pattern",
		Frames: [][]byte{
			// stand: default boxes, tile 0 unflipped.
			{0xfc, 0x04, 0xfc, 0x04, 0xfa, 0x06, 0xfa, 0x06, 0x00, 0x08, 0x08, 0x00, 0x20},
			// walk: hitbox override, its mirrored tile dedupes to tile 0
			// with hflip set.
			{0xfe, 0x02, 0xfe, 0x02, 0xfa, 0x06, 0xfa, 0x06, 0x00, 0x08, 0x08, 0x00, 0x60},
		},
		Animations: [][]byte{
			{0x00, 0x00, 0x00, 0xff},
			{0x02, 0x00, 0x04, 0x01, 0x04, 0xff},
		},
	}
	if diff := cmp.Diff(want, entries[0]); diff != "" {
		t.Fatalf("unexpected frameset entry (-want +got):\n%s", diff)
	}
}

func TestConvertSpritesheetFixedPattern(t *testing.T) {
	t.Parallel()
	sheet := testSpritesheet(t)
	eo := testExportOrder(t)
	grids := GeneratePatternGrids(eo)

	// With a frameset wide pattern the same frames encode with the named
	// pattern instead of per frame pattern matching.
	sheet.Framesets[0].Pattern = "square"
	ppuData, entries, err := ConvertSpritesheet(sheet, eo, grids, testMetaspritesDir, zap.NewNop().Sugar())
	require.Nil(t, err)
	assert.Len(t, ppuData, 2+256+32)

	require.Len(t, entries, 1)
	assert.Equal(t, "square", entries[0].Pattern)
	assert.Equal(t,
		[]byte{0xfc, 0x04, 0xfc, 0x04, 0xfa, 0x06, 0xfa, 0x06, 0x00, 0x08, 0x08, 0x00, 0x20},
		entries[0].Frames[0])
}

func TestConvertSpritesheetErrors(t *testing.T) {
	t.Parallel()
	eo := testExportOrder(t)
	grids := GeneratePatternGrids(eo)
	log := zap.NewNop().Sugar()

	sheet := testSpritesheet(t)
	sheet.Framesets[0].ShadowSize = "HUGE"
	sheet.Framesets[0].MsExportOrder = "missing"
	_, _, err := ConvertSpritesheet(sheet, eo, grids, testMetaspritesDir, log)
	require.NotNil(t, err)
	assert.ErrorContains(t, err, "frameset Player:")
	assert.ErrorContains(t, err, "unknown shadow size: HUGE")
	assert.ErrorContains(t, err, "unknown export order: missing")

	sheet = testSpritesheet(t)
	sheet.Framesets[0].Pattern = "circle"
	_, _, err = ConvertSpritesheet(sheet, eo, grids, testMetaspritesDir, log)
	assert.ErrorContains(t, err, "unknown pattern: circle")

	sheet = testSpritesheet(t)
	sheet.Palette = "missing.png"
	_, _, err = ConvertSpritesheet(sheet, eo, grids, testMetaspritesDir, log)
	assert.NotNil(t, err)
}

func BenchmarkConvertSpritesheet(b *testing.B) {
	sheet, err := LoadMsSpritesheet(testSpritesheetFile)
	if err != nil {
		b.Fatalf("%v", err)
	}
	eo, err := LoadMsExportOrder(testExportOrderFile)
	if err != nil {
		b.Fatalf("%v", err)
	}
	grids := GeneratePatternGrids(eo)
	log := zap.NewNop().Sugar()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := ConvertSpritesheet(sheet, eo, grids, testMetaspritesDir, log); err != nil {
			b.Fatalf("%v", err)
		}
	}
}
