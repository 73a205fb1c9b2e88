package sfcpack

import (
	"fmt"
	"image"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/gift"
	"go.uber.org/zap"
)

// flipImage returns a flipped copy of the image, or the image itself for an
// empty flip name.
func flipImage(img image.Image, flip string) image.Image {
	var f gift.Filter
	switch flip {
	case "hflip":
		f = gift.FlipHorizontal()
	case "vflip":
		f = gift.FlipVertical()
	case "hvflip":
		f = gift.Rotate180()
	default:
		return img
	}
	dst := image.NewRGBA(f.Bounds(img.Bounds()))
	f.Draw(dst, img, nil)
	return dst
}

// buildFrameset compiles one frameset: every block frame is encoded and its
// tiles interned, every animation is encoded, and the export order selects
// and orders the emitted animations. All defects are aggregated into a
// single FramesetError.
func buildFrameset(fs *MsFrameset, eo *MsExportOrder, msDir string, tiles *Tileset, palettes []PaletteMap, transparent SnesColor, patternGrids []PatternGrid, sheetName string, log *zap.SugaredLogger) (*MsFsEntry, error) {
	var errs []error
	addErrorf := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}
	fail := func() (*MsFsEntry, error) {
		return nil, &FramesetError{Frameset: fs.Name, Errs: errs}
	}

	var basePattern *MsPattern
	if fs.Pattern != "" {
		if basePattern = eo.Patterns[fs.Pattern]; basePattern == nil {
			addErrorf("unknown pattern: %s", fs.Pattern)
		}
	}

	if _, ok := eo.ShadowSizes[fs.ShadowSize]; !ok {
		addErrorf("unknown shadow size: %s", fs.ShadowSize)
	} else if _, ok := shadowSizeIDs[fs.ShadowSize]; !ok {
		addErrorf("shadow size not supported by the engine: %s", fs.ShadowSize)
	}

	if fs.TileHitbox.HalfWidth >= maxTileHitboxHalfWidth || fs.TileHitbox.HalfHeight >= maxTileHitboxHalfWidth {
		addErrorf("tile hitbox is too large: %d, %d", fs.TileHitbox.HalfWidth, fs.TileHitbox.HalfHeight)
	}

	exportOrder := eo.AnimationLists[fs.MsExportOrder]
	if exportOrder == nil {
		addErrorf("unknown export order: %s", fs.MsExportOrder)
	}

	if fs.FrameWidth <= 0 || fs.FrameHeight <= 0 {
		addErrorf("invalid frame size: %d x %d", fs.FrameWidth, fs.FrameHeight)
	} else if fs.FrameWidth >= maxFrameDimension || fs.FrameHeight >= maxFrameDimension {
		addErrorf("frame size is too large: %d x %d", fs.FrameWidth, fs.FrameHeight)
	}

	img, err := loadImage(filepath.Join(msDir, fs.Source))
	if err != nil {
		errs = append(errs, err)
	} else if fs.FrameWidth > 0 && fs.FrameHeight > 0 {
		if img.Bounds().Dx()%fs.FrameWidth != 0 || img.Bounds().Dy()%fs.FrameHeight != 0 {
			addErrorf("source image is not a multiple of frame size")
		}
	}

	if len(errs) > 0 {
		return fail()
	}

	imageWidth := img.Bounds().Dx()
	imageHeight := img.Bounds().Dy()
	framesPerRow := imageWidth / fs.FrameWidth

	allBlocksUseSamePattern := basePattern != nil
	frames := make(map[string][]byte)
	flipped := make(map[string]image.Image, 3)

	for blockID, block := range fs.Blocks {
		blockPattern := basePattern
		if block.Pattern != "" {
			if blockPattern = eo.Patterns[block.Pattern]; blockPattern == nil {
				addErrorf("blocks[%d]: unknown pattern: %s", blockID, block.Pattern)
				continue
			}
			if block.Pattern != fs.Pattern {
				allBlocksUseSamePattern = false
			}
		}

		blockImage := img
		if block.Flip != "" {
			if blockImage = flipped[block.Flip]; blockImage == nil {
				blockImage = flipImage(img, block.Flip)
				flipped[block.Flip] = blockImage
			}
		}

		// Offset errors for fixed pattern blocks are reported once per block,
		// not once per frame.
		var blockXOffset, blockYOffset int
		if blockPattern != nil {
			blockXOffset = fs.XOrigin - block.X
			blockYOffset = fs.YOrigin - block.Y
			if blockXOffset < 0 || blockXOffset >= fs.FrameWidth || blockYOffset < 0 || blockYOffset >= fs.FrameHeight {
				addErrorf("blocks[%d]: offset is outside frame: %d, %d", blockID, blockXOffset, blockYOffset)
				continue
			}
		}

		for i, frameName := range block.Frames {
			if _, dup := frames[frameName]; dup {
				errs = []error{fmt.Errorf("duplicate frame: %s", frameName)}
				return fail()
			}

			frameNumber := block.Start + i
			x := frameNumber % framesPerRow * fs.FrameWidth
			y := frameNumber / framesPerRow * fs.FrameHeight

			switch block.Flip {
			case "hflip":
				x = imageWidth - x - fs.FrameWidth
			case "vflip":
				y = imageHeight - y - fs.FrameHeight
			case "hvflip":
				x = imageWidth - x - fs.FrameWidth
				y = imageHeight - y - fs.FrameHeight
			}

			var pattern *MsPattern
			var xOffset, yOffset int
			if blockPattern == nil {
				grid := frameGrid(blockImage, x, y, fs.FrameWidth, fs.FrameHeight, transparent)
				p, px, py, err := findBestPattern(grid, patternGrids)
				if err != nil {
					errs = append(errs, frameErrorf(frameName, "%v", err))
					continue
				}
				pattern = p
				x += px
				y += py
				xOffset = fs.XOrigin - px
				yOffset = fs.YOrigin - py
			} else {
				pattern = blockPattern
				x += block.X
				y += block.Y
				xOffset = blockXOffset
				yOffset = blockYOffset
			}

			hitbox := block.DefaultHitbox
			if hb, ok := fs.HitboxOverrides[frameName]; ok {
				hitbox = &hb
			}
			hurtbox := block.DefaultHurtbox
			if hb, ok := fs.HurtboxOverrides[frameName]; ok {
				hurtbox = &hb
			}

			frameData, err := extractFrame(blockImage, pattern, palettes, tiles, fs, frameName, x, y, xOffset, yOffset, hitbox, hurtbox)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			frames[frameName] = frameData
		}
	}

	if len(errs) > 0 {
		return fail()
	}

	declared := make(map[string]*MsAnimation, len(fs.Animations))
	for _, a := range fs.Animations {
		declared[a.Name] = a
	}

	// Animations are encoded in export order so frame ids depend only on the
	// export order, never on declaration order.
	alloc := newFrameIDAllocator(frames)
	animations := make(map[string][]byte, len(fs.Animations))
	eoAnimations := make([][]byte, 0, len(exportOrder.Animations))
	for _, name := range exportOrder.Animations {
		ani := declared[name]
		if ani == nil {
			addErrorf("cannot find animation: %s", name)
			continue
		}
		data, err := buildAnimationData(ani, alloc)
		if err != nil {
			errs = append(errs, animationErrorf(name, "%v", err))
			continue
		}
		animations[name] = data
		eoAnimations = append(eoAnimations, data)
	}

	// Animations outside the export order are never emitted but still have
	// to encode cleanly. A scratch allocator keeps them from claiming ids.
	scratch := newFrameIDAllocator(frames)
	for _, ani := range fs.Animations {
		if _, done := animations[ani.Name]; done {
			continue
		}
		if _, err := buildAnimationData(ani, scratch); err != nil {
			errs = append(errs, animationErrorf(ani.Name, "%v", err))
		}
	}

	if alloc.overflow {
		addErrorf("too many frames (%d, max %d)", len(alloc.ids), maxNFrames)
	}
	if len(eoAnimations) > maxNAnimations {
		addErrorf("too many animations (%d, max %d)", len(eoAnimations), maxNAnimations)
	}

	if len(errs) > 0 {
		return fail()
	}

	var unusedFrames, unusedAnimations []string
	for name := range frames {
		if !alloc.used(name) {
			unusedFrames = append(unusedFrames, name)
		}
	}
	for name := range declared {
		if _, ok := animations[name]; !ok {
			unusedAnimations = append(unusedAnimations, name)
		}
	}
	sort.Strings(unusedFrames)
	sort.Strings(unusedAnimations)
	if len(unusedFrames) > 0 {
		log.Warnf("unused frames in %s: %s", fs.Name, strings.Join(unusedFrames, ", "))
	}
	if len(unusedAnimations) > 0 {
		log.Warnf("unused animations in %s: %s", fs.Name, strings.Join(unusedAnimations, ", "))
	}

	patternName := dynamicPatternName
	if allBlocksUseSamePattern {
		patternName = fs.Pattern
	}

	return buildMsFsEntry(sheetName, fs, patternName, alloc.exportedFrames(), eoAnimations)
}
