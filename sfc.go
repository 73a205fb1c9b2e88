package sfcpack

import (
	"fmt"
	"math/bits"
	"os"
	"strings"

	"github.com/alttpo/snes/mapping/hirom"
	"github.com/alttpo/snes/mapping/lorom"
	"golang.org/x/text/encoding/japanese"
)

// MemoryMapMode is the cartridge addressing mode. Exactly one mode is active
// per run, selected by the mappings file.
type MemoryMapMode byte

const (
	MapModeLoRom MemoryMapMode = iota
	MapModeHiRom
)

func ParseMemoryMapMode(s string) (MemoryMapMode, error) {
	switch strings.ToLower(s) {
	case "lorom":
		return MapModeLoRom, nil
	case "hirom":
		return MapModeHiRom, nil
	}
	return 0, fmt.Errorf("unknown memory map mode %q", s)
}

func (m MemoryMapMode) String() string {
	switch m {
	case MapModeLoRom:
		return "lorom"
	case MapModeHiRom:
		return "hirom"
	}
	return ""
}

// BankStart returns the bus address of the first ROM byte within a bank.
func (m MemoryMapMode) BankStart() Word {
	if m == MapModeHiRom {
		return 0x0000
	}
	return 0x8000
}

// BankSize returns the number of ROM bytes addressable within one bank.
func (m MemoryMapMode) BankSize() int {
	if m == MapModeHiRom {
		return 0x10000
	}
	return 0x8000
}

// RomOffset translates a 24-bit bus address to an offset into the image file.
func (m MemoryMapMode) RomOffset(addr uint32) uint32 {
	if m == MapModeHiRom {
		o, _ := hirom.BusAddressToPak(addr)
		return o
	}
	o, _ := lorom.BusAddressToPak(addr)
	return o
}

const (
	romHeaderExtAddr   = 0xffb0
	romHeaderTitleAddr = 0xffc0
	romHeaderTitleSize = 21

	checksumAddr = 0x00ffdc

	// MaxImageSize caps how much of an image file is read.
	MaxImageSize = 4 * 1024 * 1024
)

// EncodeCartTitle encodes a game title for the cartridge header: Shift-JIS,
// space padded to exactly 21 bytes.
func EncodeCartTitle(title string) ([]byte, error) {
	b, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(title))
	if err != nil {
		return nil, fmt.Errorf("cannot encode title %q: %w", title, err)
	}
	if len(b) > romHeaderTitleSize {
		return nil, fmt.Errorf("title %q is too large (%d bytes, max %d)", title, len(b), romHeaderTitleSize)
	}
	for len(b) < romHeaderTitleSize {
		b = append(b, 0x20)
	}
	return b, nil
}

func decodeCartTitle(b []byte) string {
	s, err := japanese.ShiftJIS.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(s))
}

// LoadImage reads an image file into memory.
func LoadImage(filename string) ([]byte, error) {
	fi, err := os.Stat(filename)
	if err != nil {
		return nil, err
	}
	if fi.Size() > MaxImageSize {
		return nil, fmt.Errorf("image %q is too large (%d bytes, max %d)", filename, fi.Size(), MaxImageSize)
	}
	return os.ReadFile(filename)
}

// ValidateImage confirms the image matches the symbol map and mappings: the
// resource banks are untouched, the size is what the memory map declares, and
// the header carries the expected title with a blank maker/game code region.
func ValidateImage(image []byte, symbols SymbolMap, m *Mappings) error {
	mode := m.MemoryMap.Mode

	lastSymbolBank := int(symbols.LargestAddress() >> 16)
	if lastSymbolBank >= m.MemoryMap.FirstResourceBank {
		return fmt.Errorf("first resource bank is not empty: found a symbol in bank 0x%02x", lastSymbolBank)
	}

	expectedSize := ((m.MemoryMap.FirstResourceBank + m.MemoryMap.NResourceBanks) & 0x3f) * mode.BankSize()
	if len(image) != expectedSize {
		return fmt.Errorf("unexpected image size %d, expected %d bytes", len(image), expectedSize)
	}

	// 6 spaces (unlicensed) followed by a blank 6 byte game code region.
	expectedExt := append([]byte("      "), make([]byte, 6)...)
	o := mode.RomOffset(romHeaderExtAddr)
	if string(image[o:o+uint32(len(expectedExt))]) != string(expectedExt) {
		return fmt.Errorf("image header at 0x%06x does not match expected value", romHeaderExtAddr)
	}

	expectedTitle, err := EncodeCartTitle(m.GameTitle)
	if err != nil {
		return err
	}
	o = mode.RomOffset(romHeaderTitleAddr)
	title := image[o : o+romHeaderTitleSize]
	if string(title) != string(expectedTitle) {
		return fmt.Errorf("image title (%s) does not match mappings game title (%s)", decodeCartTitle(title), m.GameTitle)
	}

	if addr, ok := symbols[useResourcesOverUsb2snesLabel]; ok {
		if image[mode.RomOffset(addr)] != 0xff {
			return fmt.Errorf("image already contains resource data")
		}
	}
	return nil
}

// UpdateChecksum computes the header checksum and complement over the fully
// patched image and writes them in place. The image size must be a
// bank-aligned power of two. Running it twice yields the same bytes.
func UpdateChecksum(image []byte, mode MemoryMapMode) error {
	if len(image)%mode.BankSize() != 0 {
		return fmt.Errorf("invalid image size %d: expected a multiple of 0x%04x", len(image), mode.BankSize())
	}
	if bits.OnesCount(uint(len(image))) != 1 {
		return fmt.Errorf("invalid image size %d: must be a power of two", len(image))
	}

	o := mode.RomOffset(checksumAddr)

	sum := 0
	for _, b := range image {
		sum += int(b)
	}
	// Replace the current checksum/complement bytes with the value the
	// summed header is defined to hold.
	for _, b := range image[o : o+4] {
		sum -= int(b)
	}
	sum += 0xff + 0xff

	checksum := Word(sum & 0xffff)
	complement := checksum ^ 0xffff

	copy(image[o:], complement.Bytes())
	copy(image[o+2:], checksum.Bytes())
	return nil
}
