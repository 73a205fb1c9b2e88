package sfcpack

import (
	"go.uber.org/zap"
)

// generatePpuData packs the spritesheet's PPU upload block: the first tile
// number, the palette data, then the 4bpp tile data.
func generatePpuData(ms *MsSpritesheet, tiles []SmallTileData, paletteData []byte) ([]byte, error) {
	tileData, err := ConvertSnesTileset(tiles, tileDataBpp)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, 2+len(paletteData)+len(tileData))
	data = append(data, byte(ms.FirstTile&0xff), byte(ms.FirstTile>>8))
	data = append(data, paletteData...)
	data = append(data, tileData...)
	return data, nil
}

// ConvertSpritesheet compiles every frameset of a spritesheet. It returns
// the PPU data blob and the frameset entries destined for the MsFs data
// block. Frameset errors are aggregated into a SpritesheetError so one run
// reports every broken frameset.
func ConvertSpritesheet(ms *MsSpritesheet, eo *MsExportOrder, patternGrids []PatternGrid, msDir string, log *zap.SugaredLogger) ([]byte, []*MsFsEntry, error) {
	palettes, paletteData, err := LoadPalette(msDir, ms.Palette)
	if err != nil {
		return nil, nil, err
	}
	transparent := TransparentColor(paletteData)

	tileset, err := NewTileset(ms.FirstTile, ms.EndTile)
	if err != nil {
		return nil, nil, err
	}

	entries := make([]*MsFsEntry, 0, len(ms.Framesets))
	var errs []error
	for _, fs := range ms.Framesets {
		entry, err := buildFrameset(fs, eo, msDir, tileset, palettes, transparent, patternGrids, ms.Name, log)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, entry)
	}
	if len(errs) > 0 {
		return nil, nil, &SpritesheetError{Errs: errs}
	}

	tiles, err := tileset.Tiles()
	if err != nil {
		return nil, nil, err
	}
	ppuData, err := generatePpuData(ms, tiles, paletteData)
	if err != nil {
		return nil, nil, err
	}
	return ppuData, entries, nil
}
