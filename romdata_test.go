package sfcpack

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWord(t *testing.T) {
	t.Parallel()
	w := NewWord(0x12, 0x34)
	assert.Equal(t, Word(0x1234), w)
	assert.Equal(t, byte(0x34), w.Low())
	assert.Equal(t, byte(0x12), w.High())
	assert.Equal(t, []byte{0x34, 0x12}, w.Bytes())
	assert.Equal(t, "0x1234", w.String())
	assert.Equal(t, Word(0x1234), BytesToWord(0x34, 0x12))
}

func TestRomDataAllocate(t *testing.T) {
	t.Parallel()
	rom := NewRomData(0x8000, 16)
	assert.Equal(t, Word(0x8000), rom.Origin())
	assert.Equal(t, Word(0x8000), rom.Cursor())
	assert.Equal(t, 0, rom.Size())

	view, addr, err := rom.Allocate(4)
	require.Nil(t, err)
	assert.Equal(t, Word(0x8000), addr)
	require.Len(t, view, 4)

	addr2, err := rom.InsertData([]byte{1, 2, 3})
	require.Nil(t, err)
	assert.Equal(t, Word(0x8004), addr2)
	assert.Equal(t, Word(0x8007), rom.Cursor())
	assert.Equal(t, 7, rom.Size())

	// Views stay writable after later allocations.
	copy(view, []byte{9, 8, 7, 6})
	assert.Equal(t, []byte{9, 8, 7, 6, 1, 2, 3}, rom.Data())

	_, _, err = rom.Allocate(10)
	assert.ErrorContains(t, err, "rom data overflow")

	// A failed allocation leaves the arena untouched.
	assert.Equal(t, 7, rom.Size())
	_, _, err = rom.Allocate(9)
	assert.Nil(t, err)
}

func TestRomDataInsertDataAddrTable(t *testing.T) {
	t.Parallel()
	rom := NewRomData(0x8000, 32)
	tableAddr, err := rom.InsertDataAddrTable([][]byte{{0xaa}, {0xbb, 0xcc}})
	require.Nil(t, err)
	assert.Equal(t, Word(0x8003), tableAddr)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc, 0x00, 0x80, 0x01, 0x80}, rom.Data())

	// Table that no longer fits.
	rom = NewRomData(0x8000, 4)
	_, err = rom.InsertDataAddrTable([][]byte{{1}, {2}})
	assert.ErrorContains(t, err, "rom data overflow")
}

func TestRomDataWriteTo(t *testing.T) {
	t.Parallel()
	rom := NewRomData(0x8000, 8)
	_, err := rom.InsertData([]byte{1, 2, 3})
	require.Nil(t, err)

	var buf bytes.Buffer
	n, err := rom.WriteTo(&buf)
	assert.Nil(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, []byte{1, 2, 3}, buf.Bytes())
}
