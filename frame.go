package sfcpack

import (
	"fmt"
	"image"
)

// noAabbValue marks an absent collision box. A real x1 offset may never
// encode to it.
const noAabbValue = 0x80

func (b Aabb) String() string {
	return fmt.Sprintf("%d %d %d %d", b.X, b.Y, b.Width, b.Height)
}

// i8cast converts a signed pixel offset to its two's complement byte.
func i8cast(i int) byte {
	return byte(i)
}

// appendI8Aabb encodes a box as four signed byte offsets from the frameset
// origin (x1, x2, y1, y2), or four sentinel bytes when the box is absent.
func appendI8Aabb(data []byte, box *Aabb, fs *MsFrameset) ([]byte, error) {
	if box == nil {
		return append(data, noAabbValue, noAabbValue, noAabbValue, noAabbValue), nil
	}
	if box.X < 0 || box.Y < 0 || box.Width <= 0 || box.Height <= 0 {
		return data, fmt.Errorf("AABB box is invalid: %s", box)
	}
	if box.X+box.Width > fs.FrameWidth || box.Y+box.Height > fs.FrameHeight {
		return data, fmt.Errorf("AABB box out of bounds: %s", box)
	}
	x1 := i8cast(box.X - fs.XOrigin)
	x2 := i8cast(box.X + box.Width - fs.XOrigin)
	y1 := i8cast(box.Y - fs.YOrigin)
	y2 := i8cast(box.Y + box.Height - fs.YOrigin)
	if x1 == noAabbValue {
		return data, fmt.Errorf("invalid AABB (x1 cannot be %d): %s", noAabbValue, box)
	}
	return append(data, x1, x2, y1, y2), nil
}

// extractFrame encodes one frame record and interns its tiles. The caller
// has already resolved the pattern placement: frameX/frameY point at the
// pattern's top left corner in the source image and xOffset/yOffset are the
// origin's position inside the placed pattern.
func extractFrame(img image.Image, pattern *MsPattern, palettes []PaletteMap, tiles *Tileset, fs *MsFrameset, frameName string, frameX, frameY, xOffset, yOffset int, hitbox, hurtbox *Aabb) ([]byte, error) {
	if xOffset < 0 || xOffset >= fs.FrameWidth || yOffset < 0 || yOffset >= fs.FrameHeight {
		return nil, frameErrorf(frameName, "offset is outside frame: %d, %d", xOffset, yOffset)
	}

	data := make([]byte, 0, 11+len(pattern.Objects)*2)
	var err error
	if data, err = appendI8Aabb(data, hitbox, fs); err != nil {
		return nil, frameErrorf(frameName, "%v", err)
	}
	if data, err = appendI8Aabb(data, hurtbox, fs); err != nil {
		return nil, frameErrorf(frameName, "%v", err)
	}

	data = append(data, pattern.ID, byte(xOffset), byte(yOffset))

	var outsideFrame, noPalette []TileError
	for _, o := range pattern.Objects {
		x := frameX + o.XPos
		y := frameY + o.YPos

		if o.XPos > fs.FrameWidth || o.YPos > fs.FrameHeight {
			outsideFrame = append(outsideFrame, TileError{X: x, Y: y, Size: o.Size})
			continue
		}

		var tileID uint16
		var hflip, vflip bool
		paletteID := 0

		tile := extractTile(img, x, y, o.Size)
		if id, pm := getPaletteID(tile, palettes); pm != nil {
			paletteID = id
			if o.Size == 8 {
				tileID, hflip, vflip = tiles.AddOrGetSmallTile(mapTile(tile, pm))
			} else {
				tileID, hflip, vflip = tiles.AddOrGetLargeTile(mapTile(tile, pm))
			}
		} else {
			noPalette = append(noPalette, TileError{X: x, Y: y, Size: o.Size})
		}

		attr := byte(tileID>>8) | byte(paletteID&7)<<1 | byte(fs.Order&3)<<4
		if hflip {
			attr |= 1 << 6
		}
		if vflip {
			attr |= 1 << 7
		}
		data = append(data, byte(tileID&0xff), attr)
	}

	if len(outsideFrame) > 0 {
		return nil, &FrameError{Frame: frameName, Msg: "objects outside frame", Tiles: outsideFrame}
	}
	if len(noPalette) > 0 {
		return nil, &FrameError{Frame: frameName, Msg: "cannot find palette for object tiles", Tiles: noPalette}
	}
	return data, nil
}
