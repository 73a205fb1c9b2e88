package sfcpack

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MsFsEntry is one compiled frameset: the engine header, the drawing
// function pattern name, and the encoded frame and animation tables.
type MsFsEntry struct {
	Fullname      string // spritesheet.frameset
	MsExportOrder string
	Header        []byte
	Pattern       string
	Frames        [][]byte
	Animations    [][]byte
}

// Shadow size ids. MUST match the ShadowSize enum in the engine.
var shadowSizeIDs = map[string]byte{
	"NONE":   0,
	"SMALL":  1,
	"MEDIUM": 2,
	"LARGE":  3,
}

// dynamicPatternName selects the engine's dynamic drawing function for
// framesets whose blocks use differing patterns.
const dynamicPatternName = "dynamic_pattern"

const msFramesetFormatSize = 9

const playerFramesetName = "common.Player"

func buildMsFsEntry(sheetName string, fs *MsFrameset, patternName string, frames, animations [][]byte) (*MsFsEntry, error) {
	sid, ok := shadowSizeIDs[fs.ShadowSize]
	if !ok {
		return nil, fmt.Errorf("unknown shadow size: %s", fs.ShadowSize)
	}
	return &MsFsEntry{
		Fullname:      sheetName + "." + fs.Name,
		MsExportOrder: fs.MsExportOrder,
		Header:        []byte{sid, byte(fs.TileHitbox.HalfWidth), byte(fs.TileHitbox.HalfHeight)},
		Pattern:       patternName,
		Frames:        frames,
		Animations:    animations,
	}, nil
}

// WriteMsFsEntries writes entries in the intermediate text format: one
// frameset per line, six space separated fields, frame and animation tables
// as comma separated hex.
func WriteMsFsEntries(w io.Writer, entries []*MsFsEntry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		frames := make([]string, len(e.Frames))
		for i, f := range e.Frames {
			frames[i] = hex.EncodeToString(f)
		}
		animations := make([]string, len(e.Animations))
		for i, a := range e.Animations {
			animations[i] = hex.EncodeToString(a)
		}
		fmt.Fprintf(bw, "%s %s %s %s %s %s\n",
			e.Fullname, e.MsExportOrder, hex.EncodeToString(e.Header),
			e.Pattern, strings.Join(frames, ","), strings.Join(animations, ","))
	}
	return bw.Flush()
}

// ReadMsFsEntries parses the intermediate text format written by
// WriteMsFsEntries.
func ReadMsFsEntries(r io.Reader) ([]*MsFsEntry, error) {
	var out []*MsFsEntry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), " ")
		if len(fields) != 6 {
			return nil, errors.New("invalid MsFsEntry text format")
		}
		header, err := hex.DecodeString(fields[2])
		if err != nil || len(header) != 3 {
			return nil, fmt.Errorf("invalid MsFsEntry header %q", fields[2])
		}
		frames, err := decodeHexList(fields[4])
		if err != nil {
			return nil, fmt.Errorf("invalid MsFsEntry frames: %w", err)
		}
		animations, err := decodeHexList(fields[5])
		if err != nil {
			return nil, fmt.Errorf("invalid MsFsEntry animations: %w", err)
		}
		out = append(out, &MsFsEntry{
			Fullname:      fields[0],
			MsExportOrder: fields[1],
			Header:        header,
			Pattern:       fields[3],
			Frames:        frames,
			Animations:    animations,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeHexList(s string) ([][]byte, error) {
	parts := strings.Split(s, ",")
	out := make([][]byte, len(parts))
	for i, p := range parts {
		b, err := hex.DecodeString(p)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// MsFsLocation is a frameset's position inside the MsFs data block, as a
// bank offset address, plus the export order the engine selects animations
// with.
type MsFsLocation struct {
	Addr        Word
	ExportOrder string
}

// BuildMsFsData lays out the frameset table and every frameset's frame and
// animation tables in one bank sized block. The drawing function address of
// each pattern comes from the engine's symbol map. The player frameset must
// land first so the engine can find it at the start of the bank.
func BuildMsFsData(spritesheets [][]*MsFsEntry, symbols SymbolMap, mode MemoryMapMode) (*RomData, map[string]MsFsLocation, error) {
	rom := NewRomData(mode.BankStart(), mode.BankSize())

	nFramesets := 0
	for _, entries := range spritesheets {
		nFramesets += len(entries)
	}
	if nFramesets == 0 {
		return nil, nil, errors.New("no framesets to insert")
	}

	fsTable, fsTableAddr, err := rom.Allocate(nFramesets * msFramesetFormatSize)
	if err != nil {
		return nil, nil, err
	}

	fsMap := make(map[string]MsFsLocation, nFramesets)
	pos := 0
	for _, entries := range spritesheets {
		for _, fs := range entries {
			fsAddr := fsTableAddr + Word(pos)

			frameTableAddr, err := rom.InsertDataAddrTable(fs.Frames)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: frame table: %w", fs.Fullname, err)
			}
			animationTableAddr, err := rom.InsertDataAddrTable(fs.Animations)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: animation table: %w", fs.Fullname, err)
			}

			symbol := "metasprites.drawing_functions." + fs.Pattern
			addr, ok := symbols[symbol]
			if !ok {
				return nil, nil, fmt.Errorf("%s: cannot find symbol %q", fs.Fullname, symbol)
			}
			drawingFunction := Word(addr & 0xffff)

			copy(fsTable[pos:pos+3], fs.Header)
			fsTable[pos+3] = drawingFunction.Low()
			fsTable[pos+4] = drawingFunction.High()
			fsTable[pos+5] = frameTableAddr.Low()
			fsTable[pos+6] = frameTableAddr.High()
			fsTable[pos+7] = animationTableAddr.Low()
			fsTable[pos+8] = animationTableAddr.High()

			pos += msFramesetFormatSize
			fsMap[fs.Fullname] = MsFsLocation{Addr: fsAddr, ExportOrder: fs.MsExportOrder}
		}
	}

	player, ok := fsMap[playerFramesetName]
	if !ok || player.Addr != mode.BankStart() {
		return nil, nil, fmt.Errorf("the first frameset must be %s", playerFramesetName)
	}

	return rom, fsMap, nil
}
