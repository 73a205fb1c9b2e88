package bytecode

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// NChannels is the number of voice channels the audio driver mixes.
const NChannels = 8

// unusedChannelOffset marks a channel with no stream in the channel table.
const unusedChannelOffset = 0xffff

// maxSongSize keeps every stream reachable through a u16 offset.
const maxSongSize = 0xffff

// A song file is line oriented; ';' starts a comment. Directives open
// blocks, every other line is an instruction of the open block:
//
//	!instruments name...   instrument ids, in driver order
//	!subroutine name       the following lines form a subroutine stream
//	!channel N             the following lines form channel N's stream
//
// Channel streams must end in end or disable_channel, subroutines in
// return_from_subroutine.
type songBlock struct {
	name    string
	lines   []string
	lineNos []int
	lastNo  int
}

type songParser struct {
	instruments map[string]int
	subNames    []string
	subs        map[string]*songBlock
	channels    [NChannels]*songBlock
}

// AssembleSong parses a song file and assembles its blob.
//
// Blob envelope: eight u16 LE channel offsets (0xffff marks an unused
// channel), a u8 subroutine count, one u16 LE offset per subroutine id,
// then the streams. Offsets are relative to the start of the blob.
func AssembleSong(r io.Reader) ([]byte, error) {
	p := &songParser{subs: make(map[string]*songBlock)}
	if err := p.parse(r); err != nil {
		return nil, err
	}
	return p.assemble()
}

func (p *songParser) parse(r io.Reader) error {
	var block *songBlock

	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := scanner.Text()
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line[0] == '!' {
			b, err := p.directive(line)
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			block = b
			continue
		}
		if block == nil {
			return fmt.Errorf("line %d: instruction outside a channel or subroutine", lineNo)
		}
		block.lines = append(block.lines, line)
		block.lineNos = append(block.lineNos, lineNo)
		block.lastNo = lineNo
	}
	return scanner.Err()
}

// directive handles a '!' line. It returns the opened block, or nil for
// directives that do not open one.
func (p *songParser) directive(line string) (*songBlock, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "!instruments":
		if p.instruments != nil {
			return nil, fmt.Errorf("duplicate !instruments")
		}
		p.instruments = make(map[string]int, len(fields)-1)
		for i, name := range fields[1:] {
			if _, dup := p.instruments[name]; dup {
				return nil, fmt.Errorf("duplicate instrument: %s", name)
			}
			p.instruments[name] = i
		}
		return nil, nil

	case "!subroutine":
		if len(fields) != 2 {
			return nil, fmt.Errorf("expected a subroutine name")
		}
		name := fields[1]
		if _, dup := p.subs[name]; dup {
			return nil, fmt.Errorf("duplicate subroutine: %s", name)
		}
		if len(p.subNames) >= maxSubroutine {
			return nil, fmt.Errorf("too many subroutines (max %d)", maxSubroutine)
		}
		b := &songBlock{name: name}
		p.subNames = append(p.subNames, name)
		p.subs[name] = b
		return b, nil

	case "!channel":
		if len(fields) != 2 {
			return nil, fmt.Errorf("expected a channel number")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 || n >= NChannels {
			return nil, fmt.Errorf("invalid channel: %s", fields[1])
		}
		if p.channels[n] != nil {
			return nil, fmt.Errorf("duplicate channel: %d", n)
		}
		b := &songBlock{name: fields[1]}
		p.channels[n] = b
		return b, nil
	}
	return nil, fmt.Errorf("unknown directive: %s", fields[0])
}

func (p *songParser) assembleBlock(m *Mappings, b *songBlock, isSubroutine bool) (*Bytecode, error) {
	bc := New(m, isSubroutine)
	for i, line := range b.lines {
		if err := bc.ParseLine(line); err != nil {
			return nil, fmt.Errorf("line %d: %w", b.lineNos[i], err)
		}
	}
	if bc.InLoop() {
		return nil, fmt.Errorf("line %d: unbalanced loop", b.lastNo)
	}
	return bc, nil
}

func (p *songParser) assemble() ([]byte, error) {
	m := &Mappings{
		Instruments:       p.instruments,
		Subroutines:       make(map[string]int, len(p.subNames)),
		MinimumNoteLength: 1,
	}
	for i, name := range p.subNames {
		m.Subroutines[name] = i
	}

	subStreams := make([][]byte, len(p.subNames))
	for i, name := range p.subNames {
		bc, err := p.assembleBlock(m, p.subs[name], true)
		if err != nil {
			return nil, fmt.Errorf("subroutine %s: %w", name, err)
		}
		if !bc.Terminated() {
			return nil, fmt.Errorf("subroutine %s does not end with return_from_subroutine", name)
		}
		subStreams[i] = bc.Data()
	}

	nChannels := 0
	var channelStreams [NChannels][]byte
	for n, b := range p.channels {
		if b == nil {
			continue
		}
		bc, err := p.assembleBlock(m, b, false)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", n, err)
		}
		if !bc.Terminated() {
			return nil, fmt.Errorf("channel %d does not end with end or disable_channel", n)
		}
		channelStreams[n] = bc.Data()
		nChannels++
	}
	if nChannels == 0 {
		return nil, fmt.Errorf("song has no channels")
	}

	headerSize := NChannels*2 + 1 + len(subStreams)*2
	blob := make([]byte, headerSize)
	blob[NChannels*2] = byte(len(subStreams))

	putOffset := func(pos int, stream []byte) {
		offset := unusedChannelOffset
		if stream != nil {
			offset = len(blob)
		}
		blob[pos] = byte(offset)
		blob[pos+1] = byte(offset >> 8)
	}
	for n, stream := range channelStreams {
		putOffset(n*2, stream)
		blob = append(blob, stream...)
	}
	for i, stream := range subStreams {
		putOffset(NChannels*2+1+i*2, stream)
		blob = append(blob, stream...)
	}
	if len(blob) > maxSongSize {
		return nil, fmt.Errorf("song is too large (%d bytes, max %d)", len(blob), maxSongSize)
	}
	return blob, nil
}
