package sfcpack

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// SymbolMap maps fully qualified labels to 24-bit bus addresses, as resolved
// by the assembler pass that produced the image.
type SymbolMap map[string]uint32

func (s SymbolMap) LargestAddress() uint32 {
	max := uint32(0)
	for _, addr := range s {
		if addr > max {
			max = addr
		}
	}
	return max
}

// LoadSymbols reads a WLA style symbol file.
func LoadSymbols(filename string) (SymbolMap, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := ParseSymbols(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return s, nil
}

// ParseSymbols parses symbol file entries of the form `bank:address name`
// from the [labels] section. Other sections are ignored, `;` starts a
// comment.
func ParseSymbols(r io.Reader) (SymbolMap, error) {
	out := SymbolMap{}
	section := "labels"
	line := 0
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line++
		s := sc.Text()
		if i := strings.IndexByte(s, ';'); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if s[0] == '[' && s[len(s)-1] == ']' {
			section = strings.ToLower(s[1 : len(s)-1])
			continue
		}
		if section != "labels" {
			continue
		}
		fields := strings.Fields(s)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected `bank:address name`", line)
		}
		bank, addr, ok := strings.Cut(fields[0], ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected `bank:address name`", line)
		}
		b, err := strconv.ParseUint(bank, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid bank %q", line, bank)
		}
		a, err := strconv.ParseUint(addr, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid address %q", line, addr)
		}
		name := fields[1]
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("line %d: duplicate symbol %q", line, name)
		}
		out[name] = uint32(b)<<16 | uint32(a)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
