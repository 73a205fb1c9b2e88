package sfcpack

import (
	"fmt"

	"go.uber.org/multierr"
)

const (
	entityRomDataLabel = "entities.__EntityRomData"

	// Record stride baked into the engine's entity spawning code.
	entityRomDataSize = 8
)

// ExpectedBlankEntityRomData returns the pre-link state of the entity ROM
// data block: all 0xff, one record per entity.
func ExpectedBlankEntityRomData(nEntities int) []byte {
	b := make([]byte, nEntities*entityRomDataSize)
	for i := range b {
		b[i] = 0xff
	}
	return b
}

// ValidateEntityRomDataSymbols confirms the image was built with room for
// the entity records about to be patched in.
func ValidateEntityRomDataSymbols(symbols SymbolMap, nEntities int) error {
	if nEntities == 0 {
		return nil
	}
	if _, ok := symbols[entityRomDataLabel]; !ok {
		return fmt.Errorf("cannot find symbol %q", entityRomDataLabel)
	}
	return nil
}

// BuildEntityRomData packs one record per entity, in id order. Each entity's
// frameset must exist in the MsFs map and carry the export order its
// function was compiled against.
func BuildEntityRomData(entities *Entities, fsMap map[string]MsFsLocation) ([]byte, error) {
	var errs error
	data := make([]byte, 0, len(entities.Entities)*entityRomDataSize)

	for _, e := range entities.Entities {
		fn, ok := entities.Functions[e.Function]
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("entity %s: unknown entity function: %s", e.Name, e.Function))
			continue
		}
		loc, ok := fsMap[e.Metasprites]
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("entity %s: cannot find frameset: %s", e.Name, e.Metasprites))
			continue
		}
		if loc.ExportOrder != fn.MsExportOrder {
			errs = multierr.Append(errs, fmt.Errorf("entity %s: frameset %s export order is not %s",
				e.Name, e.Metasprites, fn.MsExportOrder))
			continue
		}

		visionA, visionB := byte(0xff), byte(0xff)
		if e.Vision != nil {
			visionA = byte(e.Vision.A)
			visionB = byte(e.Vision.B)
		}
		data = append(data,
			loc.Addr.Low(), loc.Addr.High(),
			byte(e.ZPos),
			visionA, visionB,
			byte(e.Health),
			byte(e.Attack),
			0,
		)
	}
	if errs != nil {
		return nil, errs
	}
	return data, nil
}
