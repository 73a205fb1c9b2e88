package sfcpack

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"os"
	"path/filepath"
)

// SnesColor is a 15-bit BGR color as stored in CGRAM.
type SnesColor uint16

func ToSnesColor(c color.Color) SnesColor {
	r, g, b, _ := c.RGBA()
	return SnesColor((b>>11)<<10 | (g>>11)<<5 | r>>11)
}

func (c SnesColor) Bytes() []byte {
	return []byte{byte(c), byte(c >> 8)}
}

// PaletteMap maps source colors to color indexes within one palette row.
type PaletteMap map[SnesColor]byte

const (
	tileDataBpp = 4

	paletteImageWidth  = 16
	paletteImageHeight = 8
)

func loadImage(filename string) (image.Image, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %q failed: %w", filename, err)
	}
	return img, nil
}

// LoadPalette reads a palette image and returns per-row color maps plus the
// CGRAM palette data. The image must be exactly 16x8 px: one palette per row.
func LoadPalette(dir, filename string) ([]PaletteMap, []byte, error) {
	img, err := loadImage(filepath.Join(dir, filename))
	if err != nil {
		return nil, nil, err
	}
	b := img.Bounds()
	if b.Dx() != paletteImageWidth || b.Dy() != paletteImageHeight {
		return nil, nil, fmt.Errorf("palette image must be %dx%d px in size", paletteImageWidth, paletteImageHeight)
	}
	return createPalettesMap(img, tileDataBpp), convertPaletteImage(img), nil
}

func createPalettesMap(img image.Image, bpp int) []PaletteMap {
	colorsPerPalette := 1 << bpp
	b := img.Bounds()
	out := make([]PaletteMap, 0, paletteImageHeight)
	for y := 0; y < paletteImageHeight; y++ {
		pm := make(PaletteMap, colorsPerPalette)
		for x := 0; x < colorsPerPalette; x++ {
			c := ToSnesColor(img.At(b.Min.X+x, b.Min.Y+y))
			if _, ok := pm[c]; !ok {
				pm[c] = byte(x)
			}
		}
		out = append(out, pm)
	}
	return out
}

func convertPaletteImage(img image.Image) []byte {
	b := img.Bounds()
	data := make([]byte, 0, paletteImageWidth*paletteImageHeight*2)
	for y := 0; y < paletteImageHeight; y++ {
		for x := 0; x < paletteImageWidth; x++ {
			c := ToSnesColor(img.At(b.Min.X+x, b.Min.Y+y))
			data = append(data, c.Bytes()...)
		}
	}
	return data
}

// TransparentColor returns the transparency key: palette slot 0.
func TransparentColor(paletteData []byte) SnesColor {
	return SnesColor(paletteData[0]) | SnesColor(paletteData[1])<<8
}

// extractTile reads a size x size block of colors at (x, y). Pixels outside
// the image read as the zero color.
func extractTile(img image.Image, x, y, size int) []SnesColor {
	b := img.Bounds()
	out := make([]SnesColor, 0, size*size)
	for ty := 0; ty < size; ty++ {
		for tx := 0; tx < size; tx++ {
			px, py := b.Min.X+x+tx, b.Min.Y+y+ty
			if !image.Pt(px, py).In(b) {
				out = append(out, 0)
				continue
			}
			out = append(out, ToSnesColor(img.At(px, py)))
		}
	}
	return out
}

// getPaletteID returns the first palette row containing every color of the
// tile, or -1 when no row fits.
func getPaletteID(tile []SnesColor, maps []PaletteMap) (int, PaletteMap) {
search:
	for id, pm := range maps {
		for _, c := range tile {
			if _, ok := pm[c]; !ok {
				continue search
			}
		}
		return id, pm
	}
	return -1, nil
}

func mapTile(tile []SnesColor, pm PaletteMap) []byte {
	out := make([]byte, len(tile))
	for i, c := range tile {
		out[i] = pm[c]
	}
	return out
}

// ConvertSnesTileset packs 8x8 index tiles into planar tile data in the
// given bit depth.
func ConvertSnesTileset(tiles []SmallTileData, bpp int) ([]byte, error) {
	switch bpp {
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("invalid tile bit depth %d", bpp)
	}
	out := make([]byte, 0, len(tiles)*8*bpp)
	for ti, tile := range tiles {
		if len(tile) != 64 {
			return nil, fmt.Errorf("tile %d: invalid tile data length %d", ti, len(tile))
		}
		for _, px := range tile {
			if int(px) >= 1<<bpp {
				return nil, fmt.Errorf("tile %d: color index %d out of range for %dbpp", ti, px, bpp)
			}
		}
		if bpp == 1 {
			for y := 0; y < 8; y++ {
				out = append(out, tileRowPlane(tile, y, 0))
			}
			continue
		}
		// Planes are stored in interleaved pairs, a row at a time.
		for p := 0; p < bpp; p += 2 {
			for y := 0; y < 8; y++ {
				out = append(out, tileRowPlane(tile, y, p), tileRowPlane(tile, y, p+1))
			}
		}
	}
	return out, nil
}

// tileRowPlane extracts one bitplane of one tile row, leftmost pixel in the
// high bit.
func tileRowPlane(tile SmallTileData, y, plane int) byte {
	var b byte
	for x := 0; x < 8; x++ {
		b |= (tile[y*8+x] >> plane & 1) << (7 - x)
	}
	return b
}

// ConvertTilesImage converts an indexed tile sheet, row major, into planar
// tile data.
func ConvertTilesImage(img image.Image, bpp int) ([]byte, error) {
	p, ok := img.(*image.Paletted)
	if !ok {
		return nil, fmt.Errorf("tiles source must be an indexed image")
	}
	b := p.Bounds()
	if b.Dx()%8 != 0 || b.Dy()%8 != 0 {
		return nil, fmt.Errorf("tiles image size %dx%d is not a multiple of 8", b.Dx(), b.Dy())
	}
	tiles := make([]SmallTileData, 0, b.Dx()/8*b.Dy()/8)
	for ty := 0; ty < b.Dy(); ty += 8 {
		for tx := 0; tx < b.Dx(); tx += 8 {
			tile := make(SmallTileData, 0, 64)
			for y := 0; y < 8; y++ {
				for x := 0; x < 8; x++ {
					tile = append(tile, p.ColorIndexAt(b.Min.X+tx+x, b.Min.Y+ty+y))
				}
			}
			tiles = append(tiles, tile)
		}
	}
	return ConvertSnesTileset(tiles, bpp)
}
