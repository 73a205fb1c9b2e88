package sfcpack

import (
	"fmt"
	"io"
)

type Word uint16

func NewWord(bHi, bLo byte) Word {
	return Word(uint16(bHi)<<8 + uint16(bLo))
}
func (w Word) String() string {
	return fmt.Sprintf("0x%04x", uint16(w))
}
func (w Word) Low() byte {
	return byte(w & 0xff)
}
func (w Word) High() byte {
	return byte(w >> 8)
}
func (w Word) Bytes() []byte {
	return []byte{w.Low(), w.High()}
}

func BytesToWord(bLo, bHi byte) Word {
	return Word(uint16(bHi)<<8 + uint16(bLo))
}

// RomData is a growable arena covering a single bank, addressed from the
// memory map's bank start. The backing array never moves, so views returned
// by Allocate stay valid until Data is called.
type RomData struct {
	origin   Word
	capacity int
	data     []byte
}

// NewRomData returns an empty arena with capacity bytes, addressed from origin.
func NewRomData(origin Word, capacity int) *RomData {
	return &RomData{
		origin:   origin,
		capacity: capacity,
		data:     make([]byte, 0, capacity),
	}
}

// Allocate reserves n zeroed bytes and returns a writable view of them and
// their address.
func (r *RomData) Allocate(n int) ([]byte, Word, error) {
	if len(r.data)+n > r.capacity {
		return nil, 0, fmt.Errorf("rom data overflow: %s + 0x%04x exceeds bank size 0x%04x", r.Cursor(), n, r.capacity)
	}
	pos := len(r.data)
	r.data = r.data[: pos+n : r.capacity]
	return r.data[pos : pos+n], r.origin + Word(pos), nil
}

// InsertData appends b and returns its address.
func (r *RomData) InsertData(b []byte) (Word, error) {
	view, addr, err := r.Allocate(len(b))
	if err != nil {
		return 0, err
	}
	copy(view, b)
	return addr, nil
}

// InsertDataAddrTable appends each blob, then a table of their word
// addresses, and returns the address of the table.
func (r *RomData) InsertDataAddrTable(blobs [][]byte) (Word, error) {
	addrs := make([]Word, len(blobs))
	for i, b := range blobs {
		a, err := r.InsertData(b)
		if err != nil {
			return 0, err
		}
		addrs[i] = a
	}
	table, tableAddr, err := r.Allocate(len(addrs) * 2)
	if err != nil {
		return 0, err
	}
	for i, a := range addrs {
		table[i*2] = a.Low()
		table[i*2+1] = a.High()
	}
	return tableAddr, nil
}

// Cursor returns the address where the next Allocate will land.
func (r *RomData) Cursor() Word {
	return r.origin + Word(len(r.data))
}

// Origin returns the address of the first byte of the arena.
func (r *RomData) Origin() Word {
	return r.origin
}

// Size returns the number of bytes allocated so far.
func (r *RomData) Size() int {
	return len(r.data)
}

// Data returns the arena contents.
func (r *RomData) Data() []byte {
	return r.data
}

// WriteTo writes the arena contents to w.
func (r *RomData) WriteTo(w io.Writer) (n int64, err error) {
	m, err := w.Write(r.data)
	n = int64(m)
	if err != nil {
		return n, fmt.Errorf("rom data: write failed at %s: %w", r.origin+Word(m), err)
	}
	return n, nil
}
