package sfcpack

import (
	"errors"
	"image"
	"sort"
)

// PatternGrid is a tile occupancy bitmap in 8px cells. Grids built from an
// export order pattern carry the pattern, grids built from frame pixels
// leave it nil.
type PatternGrid struct {
	tileCount int
	width     int
	height    int
	data      []bool
	pattern   *MsPattern
}

// GeneratePatternGrids builds one occupancy grid per pattern, sorted by
// ascending object count so the placement search prefers cheaper patterns.
func GeneratePatternGrids(eo *MsExportOrder) []PatternGrid {
	grids := make([]PatternGrid, 0, len(eo.Patterns))
	for _, name := range sortedKeys(eo.Patterns) {
		p := eo.Patterns[name]
		width, height := 0, 0
		for _, o := range p.Objects {
			if w := (o.XPos + o.Size) / 8; w > width {
				width = w
			}
			if h := (o.YPos + o.Size) / 8; h > height {
				height = h
			}
		}
		data := make([]bool, width*height)
		for _, o := range p.Objects {
			n := o.Size / 8
			for y := 0; y < n; y++ {
				for x := 0; x < n; x++ {
					data[(o.YPos/8+y)*width+o.XPos/8+x] = true
				}
			}
		}
		grids = append(grids, PatternGrid{
			tileCount: len(p.Objects),
			width:     width,
			height:    height,
			data:      data,
			pattern:   p,
		})
	}
	sort.SliceStable(grids, func(i, j int) bool {
		return grids[i].tileCount < grids[j].tileCount
	})
	return grids
}

// frameGrid marks which 8px cells of a frame box contain non-transparent
// pixels.
func frameGrid(img image.Image, frameX, frameY, frameWidth, frameHeight int, transparent SnesColor) PatternGrid {
	width := frameWidth / 8
	height := frameHeight / 8
	data := make([]bool, 0, width*height)
	count := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			tile := extractTile(img, frameX+x*8, frameY+y*8, 8)
			used := false
			for _, c := range tile {
				if c != transparent {
					used = true
					break
				}
			}
			if used {
				count++
			}
			data = append(data, used)
		}
	}
	return PatternGrid{tileCount: count, width: width, height: height, data: data}
}

var errNoPattern = errors.New("no pattern covers the frame image")

// findBestPattern slides every pattern grid across the frame grid and
// returns the placement wasting the fewest tiles, as a pattern and a pixel
// offset into the frame box. The strict less-than keeps the first and
// therefore smallest pattern on ties.
func findBestPattern(frame PatternGrid, patterns []PatternGrid) (*MsPattern, int, int, error) {
	var bestPattern *MsPattern
	bestX, bestY, bestWaste := 0, 0, 0
	for i := range patterns {
		pg := &patterns[i]
		if pg.width > frame.width || pg.height > frame.height {
			continue
		}
		for yo := 0; yo <= frame.height-pg.height; yo++ {
			for xo := 0; xo <= frame.width-pg.width; xo++ {
				waste, ok := testPatternAt(frame, pg, xo, yo)
				if !ok {
					continue
				}
				if bestPattern == nil || waste < bestWaste {
					bestPattern = pg.pattern
					bestX, bestY, bestWaste = xo, yo, waste
				}
			}
		}
	}
	if bestPattern == nil {
		return nil, 0, 0, errNoPattern
	}
	return bestPattern, bestX * 8, bestY * 8, nil
}

// testPatternAt counts the pattern cells covering no frame content. A
// placement is invalid when any occupied frame cell falls outside the
// pattern's footprint.
func testPatternAt(frame PatternGrid, pg *PatternGrid, xOffset, yOffset int) (int, bool) {
	waste := 0
	for fy := 0; fy < frame.height; fy++ {
		for fx := 0; fx < frame.width; fx++ {
			f := frame.data[fy*frame.width+fx]
			p := false
			if px, py := fx-xOffset, fy-yOffset; px >= 0 && px < pg.width && py >= 0 && py < pg.height {
				p = pg.data[py*pg.width+px]
			}
			switch {
			case f && !p:
				return 0, false
			case p && !f:
				waste++
			}
		}
	}
	return waste, true
}
