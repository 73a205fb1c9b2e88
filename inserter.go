package sfcpack

import (
	"bytes"
	"errors"
	"fmt"
)

// ResourceType enumerates the engine's resource tables, in table order.
type ResourceType int

const (
	ResourceTypeMtTilesets ResourceType = iota
	ResourceTypeMsSpritesheets
	ResourceTypeTiles
	ResourceTypeAudioData

	nResourceTypes = 4
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeMtTilesets:
		return "mt_tilesets"
	case ResourceTypeMsSpritesheets:
		return "ms_spritesheets"
	case ResourceTypeTiles:
		return "tiles"
	case ResourceTypeAudioData:
		return "audio_data"
	}
	return fmt.Sprintf("ResourceType(%d)", int(t))
}

const (
	bankEnd = 0x10000

	// The MsFs data block owns the whole first resource bank.
	msFsDataBankOffset = 0

	useResourcesOverUsb2snesLabel = "resources.__UseResourcesOverUsb2snes"
	nResourcesPerTypeTableLabel   = "resources.__NResourcesPerTypeTable"
	resourceEntryTableLabel       = "resources.__ResourceEntryTable"
)

// blankResourceEntry is the unpatched state of a resource table slot.
var blankResourceEntry = make([]byte, 5)

// ResourceInserter packs compiled blobs into the image's resource banks and
// patches the engine's resource tables in place. Not safe for concurrent
// use; the link phase runs single threaded after all compilation.
type ResourceInserter struct {
	image   []byte
	symbols SymbolMap
	mode    MemoryMapMode

	firstResourceBank int
	bankPositions     []int
}

// NewResourceInserter validates the image against the symbol map and
// mappings and prepares the per-bank allocation cursors.
func NewResourceInserter(image []byte, symbols SymbolMap, m *Mappings) (*ResourceInserter, error) {
	if err := ValidateImage(image, symbols, m); err != nil {
		return nil, err
	}
	positions := make([]int, m.MemoryMap.NResourceBanks)
	for i := range positions {
		positions[i] = int(m.MemoryMap.Mode.BankStart())
	}
	return &ResourceInserter{
		image:             image,
		symbols:           symbols,
		mode:              m.MemoryMap.Mode,
		firstResourceBank: m.MemoryMap.FirstResourceBank,
		bankPositions:     positions,
	}, nil
}

func (ri *ResourceInserter) labelOffset(label string) (int, error) {
	addr, ok := ri.symbols[label]
	if !ok {
		return 0, fmt.Errorf("cannot find symbol %q", label)
	}
	return int(ri.mode.RomOffset(addr)), nil
}

func (ri *ResourceInserter) readU8(addr uint32) byte {
	return ri.image[ri.mode.RomOffset(addr)]
}

func (ri *ResourceInserter) readU16(addr uint32) uint16 {
	o := ri.mode.RomOffset(addr)
	return uint16(ri.image[o]) | uint16(ri.image[o+1])<<8
}

// InsertBlob packs a blob into the first resource bank with room for it and
// returns its 24-bit bus address.
func (ri *ResourceInserter) InsertBlob(blob []byte) (uint32, error) {
	size := len(blob)
	if size == 0 || size > ri.mode.BankSize() {
		return 0, fmt.Errorf("invalid blob size %d", size)
	}
	for i, pos := range ri.bankPositions {
		if pos+size > bankEnd {
			continue
		}
		addr := uint32(ri.firstResourceBank+i)<<16 | uint32(pos)
		o := ri.mode.RomOffset(addr)
		copy(ri.image[o:int(o)+size], blob)
		ri.bankPositions[i] += size
		return addr, nil
	}
	return 0, fmt.Errorf("cannot fit blob of size %d into binary", size)
}

// InsertBlobAtLabel patches the image at a label. There is no boundary
// checking; the caller owns the label's size.
func (ri *ResourceInserter) InsertBlobAtLabel(label string, blob []byte) error {
	o, err := ri.labelOffset(label)
	if err != nil {
		return err
	}
	copy(ri.image[o:o+len(blob)], blob)
	return nil
}

// InsertBlobIntoStartOfBank places a blob at the start of a still-empty
// resource bank and returns its bus address.
func (ri *ResourceInserter) InsertBlobIntoStartOfBank(bankID int, blob []byte) (uint32, error) {
	size := len(blob)
	if size == 0 {
		return 0, errors.New("empty blob")
	}
	if size > bankEnd {
		return 0, fmt.Errorf("cannot fit blob of size %d into binary", size)
	}
	pos := ri.bankPositions[bankID]
	if pos != int(ri.mode.BankStart()) {
		return 0, errors.New("bank is not empty")
	}
	addr := uint32(ri.firstResourceBank+bankID)<<16 | uint32(pos)
	o := ri.mode.RomOffset(addr)
	copy(ri.image[o:int(o)+size], blob)
	ri.bankPositions[bankID] += size
	return addr, nil
}

// ConfirmInitialDataIsCorrect checks the image bytes at a label still hold
// their expected pre-link state.
func (ri *ResourceInserter) ConfirmInitialDataIsCorrect(label string, expected []byte) error {
	o, err := ri.labelOffset(label)
	if err != nil {
		return err
	}
	if !bytes.Equal(ri.image[o:o+len(expected)], expected) {
		return fmt.Errorf("ROM data does not match expected data: %s", label)
	}
	return nil
}

// resourceTableForType reads the engine's baked-in table location and
// expected resource count for one resource type.
func (ri *ResourceInserter) resourceTableForType(t ResourceType) (uint32, int, error) {
	nrptt, ok := ri.symbols[nResourcesPerTypeTableLabel]
	if !ok {
		return 0, 0, fmt.Errorf("cannot find symbol %q", nResourcesPerTypeTableLabel)
	}
	retable, ok := ri.symbols[resourceEntryTableLabel]
	if !ok {
		return 0, 0, fmt.Errorf("cannot find symbol %q", resourceEntryTableLabel)
	}
	n := int(ri.readU8(nrptt + uint32(t)))
	tableAddr := uint32(ri.readU16(retable+uint32(t)*2)) | retable&0xff0000
	return tableAddr, n, nil
}

// InsertResources inserts every blob of one resource type and patches its
// (address, size) entries into the engine's resource table. The blob count
// must match the count baked into the image and every table slot must still
// hold the blank sentinel.
func (ri *ResourceInserter) InsertResources(t ResourceType, blobs [][]byte) error {
	tableAddr, expected, err := ri.resourceTableForType(t)
	if err != nil {
		return err
	}
	if len(blobs) != expected {
		return fmt.Errorf("NResourcesPerTypeTable mismatch in sfc file: %s (%d != %d)", t, len(blobs), expected)
	}
	pos := int(ri.mode.RomOffset(tableAddr))
	for i, blob := range blobs {
		size := len(blob)
		if size == 0 || size >= 0xffff {
			return fmt.Errorf("%s[%d]: invalid resource size %d", t, i, size)
		}
		addr, err := ri.InsertBlob(blob)
		if err != nil {
			return fmt.Errorf("%s[%d]: %w", t, i, err)
		}
		if !bytes.Equal(ri.image[pos:pos+5], blankResourceEntry) {
			return fmt.Errorf("%s[%d]: resource table entry is not blank", t, i)
		}
		ri.image[pos+0] = byte(addr)
		ri.image[pos+1] = byte(addr >> 8)
		ri.image[pos+2] = byte(addr >> 16)
		ri.image[pos+3] = byte(size)
		ri.image[pos+4] = byte(size >> 8)
		pos += 5
	}
	return nil
}

// InsertAll runs the whole link phase: the MsFs data bank, the entity ROM
// data, every resource table, and finally the resources-over-usb2snes
// switch.
func InsertAll(image []byte, in *SharedInput, ds *DataStore) error {
	nEntities := len(in.Entities.Entities)
	if err := ValidateEntityRomDataSymbols(in.Symbols, nEntities); err != nil {
		return err
	}

	ri, err := NewResourceInserter(image, in.Symbols, in.Mappings)
	if err != nil {
		return err
	}
	if nEntities > 0 {
		if err := ri.ConfirmInitialDataIsCorrect(entityRomDataLabel, ExpectedBlankEntityRomData(nEntities)); err != nil {
			return err
		}
	}

	msFsData, fsMap, err := BuildMsFsData(ds.MsFsEntries(), in.Symbols, in.Mappings.MemoryMap.Mode)
	if err != nil {
		return err
	}
	entityRomData, err := BuildEntityRomData(in.Entities, fsMap)
	if err != nil {
		return err
	}

	if _, err := ri.InsertBlobIntoStartOfBank(msFsDataBankOffset, msFsData.Data()); err != nil {
		return fmt.Errorf("MsFsData: %w", err)
	}
	if nEntities > 0 {
		if err := ri.InsertBlobAtLabel(entityRomDataLabel, entityRomData); err != nil {
			return err
		}
	}

	for t := ResourceType(0); t < nResourceTypes; t++ {
		if err := ri.InsertResources(t, ds.DataForType(t)); err != nil {
			return err
		}
	}

	// Resources now live in the image: flip the switch so the engine stops
	// requesting them over usb2snes.
	if _, ok := in.Symbols[useResourcesOverUsb2snesLabel]; ok {
		if err := ri.InsertBlobAtLabel(useResourcesOverUsb2snesLabel, []byte{0}); err != nil {
			return err
		}
	}
	return nil
}
