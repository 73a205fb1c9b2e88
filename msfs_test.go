package sfcpack

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadMsFsEntries(t *testing.T) {
	t.Parallel()
	entries := []*MsFsEntry{
		{
			Fullname:      "common.Player",
			MsExportOrder: "player",
			Header:        []byte{1, 4, 4},
			Pattern:       "square",
			Frames:        [][]byte{{0xaa, 0xbb}, {0xcc}},
			Animations:    [][]byte{{0xdd}},
		},
		{
			Fullname:      "common.Gem",
			MsExportOrder: "gems",
			Header:        []byte{0, 2, 3},
			Pattern:       "dynamic_pattern",
			Frames:        [][]byte{{0x01}},
			Animations:    [][]byte{{0x02, 0x03}, {0x04}},
		},
	}

	var buf bytes.Buffer
	err := WriteMsFsEntries(&buf, entries)
	require.Nil(t, err)
	lines := strings.Split(buf.String(), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "common.Player player 010404 square aabb,cc dd", lines[0])
	assert.Equal(t, "common.Gem gems 000203 dynamic_pattern 01 0203,04", lines[1])
	assert.Equal(t, "", lines[2])

	got, err := ReadMsFsEntries(&buf)
	require.Nil(t, err)
	assert.Empty(t, cmp.Diff(entries, got))
}

func TestReadMsFsEntriesErrors(t *testing.T) {
	t.Parallel()
	type tc struct {
		line    string
		wantErr string
	}
	testCases := []tc{
		{"common.Player player 010404 square aabb", "invalid MsFsEntry text format"},
		{"common.Player player zz0404 square aa bb", "invalid MsFsEntry header"},
		{"common.Player player 01040405 square aa bb", "invalid MsFsEntry header"},
		{"common.Player player 010404 square zz bb", "invalid MsFsEntry frames"},
		{"common.Player player 010404 square aa zz", "invalid MsFsEntry animations"},
	}
	for _, testcase := range testCases {
		_, err := ReadMsFsEntries(strings.NewReader(testcase.line + "\n"))
		assert.ErrorContains(t, err, testcase.wantErr)
	}
}

func testMsFsSymbols() SymbolMap {
	return SymbolMap{
		"metasprites.drawing_functions.square":          0x0080f0,
		"metasprites.drawing_functions.dynamic_pattern": 0x0080f6,
	}
}

func TestBuildMsFsData(t *testing.T) {
	t.Parallel()
	spritesheets := [][]*MsFsEntry{
		{
			{
				Fullname:      "common.Player",
				MsExportOrder: "player",
				Header:        []byte{1, 4, 4},
				Pattern:       "dynamic_pattern",
				Frames:        [][]byte{{0x11}, {0x22, 0x33}},
				Animations:    [][]byte{{0x44}, {0x55}},
			},
			{
				Fullname:      "common.Gem",
				MsExportOrder: "gems",
				Header:        []byte{0, 2, 3},
				Pattern:       "square",
				Frames:        [][]byte{{0x66}},
				Animations:    [][]byte{{0x77}},
			},
		},
	}

	rom, fsMap, err := BuildMsFsData(spritesheets, testMsFsSymbols(), MapModeLoRom)
	require.Nil(t, err)
	assert.Equal(t, Word(0x8000), rom.Origin())

	want := []byte{
		// frameset table, 9 bytes per frameset
		1, 4, 4, 0xf6, 0x80, 0x15, 0x80, 0x1b, 0x80,
		0, 2, 3, 0xf0, 0x80, 0x20, 0x80, 0x23, 0x80,
		// Player frames and frame address table
		0x11,
		0x22, 0x33,
		0x12, 0x80, 0x13, 0x80,
		// Player animations and animation address table
		0x44,
		0x55,
		0x19, 0x80, 0x1a, 0x80,
		// Gem frames, frame table, animations, animation table
		0x66,
		0x1f, 0x80,
		0x77,
		0x22, 0x80,
	}
	assert.Equal(t, want, rom.Data())

	assert.Equal(t, MsFsLocation{Addr: 0x8000, ExportOrder: "player"}, fsMap["common.Player"])
	assert.Equal(t, MsFsLocation{Addr: 0x8009, ExportOrder: "gems"}, fsMap["common.Gem"])
}

func TestBuildMsFsDataPlayerFirst(t *testing.T) {
	t.Parallel()
	gem := &MsFsEntry{
		Fullname:      "common.Gem",
		MsExportOrder: "gems",
		Header:        []byte{0, 2, 3},
		Pattern:       "square",
		Frames:        [][]byte{{0x66}},
		Animations:    [][]byte{{0x77}},
	}
	player := &MsFsEntry{
		Fullname:      "common.Player",
		MsExportOrder: "player",
		Header:        []byte{1, 4, 4},
		Pattern:       "square",
		Frames:        [][]byte{{0x11}},
		Animations:    [][]byte{{0x44}},
	}

	_, _, err := BuildMsFsData([][]*MsFsEntry{{gem, player}}, testMsFsSymbols(), MapModeLoRom)
	assert.ErrorContains(t, err, "the first frameset must be common.Player")

	_, _, err = BuildMsFsData([][]*MsFsEntry{{gem}}, testMsFsSymbols(), MapModeLoRom)
	assert.ErrorContains(t, err, "the first frameset must be common.Player")

	_, _, err = BuildMsFsData(nil, testMsFsSymbols(), MapModeLoRom)
	assert.ErrorContains(t, err, "no framesets to insert")
}

func TestBuildMsFsDataMissingSymbol(t *testing.T) {
	t.Parallel()
	player := &MsFsEntry{
		Fullname:      "common.Player",
		MsExportOrder: "player",
		Header:        []byte{1, 4, 4},
		Pattern:       "circle",
		Frames:        [][]byte{{0x11}},
		Animations:    [][]byte{{0x44}},
	}
	_, _, err := BuildMsFsData([][]*MsFsEntry{{player}}, testMsFsSymbols(), MapModeLoRom)
	assert.ErrorContains(t, err, `cannot find symbol "metasprites.drawing_functions.circle"`)
}
