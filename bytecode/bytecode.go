// Package bytecode assembles audio driver bytecode from instruction text.
//
// A song is a set of channel streams plus optional subroutines. Each stream
// is a run of single-byte opcodes, some carrying one operand byte. The
// opcode values and operand encodings MUST match the audio driver's
// dispatch table.
package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Opcodes. The three note opcodes occupy the top bits so the low bits can
// carry the note id; everything below 1<<5 dispatches through the jump
// table.
const (
	SetInstrument          = 0
	SetChannelVolume       = 1
	Rest                   = 2
	CallSubroutine         = 3
	EndLoop0               = 4
	EndLoop1               = 5
	SetSemitoneOffset      = 6
	RelativeSemitoneOffset = 7
	DisableChannel         = 8
	End                    = 9
	ReturnFromSubroutine   = 10
	StartLoop0             = 11
	StartLoop1             = 12

	PlayNote         = 1 << 5
	PlayNoteSlurNext = 2 << 5
	ChangeOctave     = 3 << 5
)

// playNoteLengthFlag marks the two-byte note form: a length byte follows.
const playNoteLengthFlag = 0x10

const (
	maxNLoops     = 2
	maxSubroutine = 128

	minOctave = -6
	maxOctave = 9
)

// noteMap gives the semitone of each natural note within an octave.
var noteMap = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

// Mappings resolves the names and limits used while assembling.
type Mappings struct {
	Instruments       map[string]int
	Subroutines       map[string]int
	MinimumNoteLength int
}

type loopState struct {
	// count is the loop count when it was given on start_loop, else -1.
	count int
}

// Bytecode assembles one channel or subroutine stream.
type Bytecode struct {
	mappings     *Mappings
	isSubroutine bool

	data  []byte
	loops []loopState

	// terminated is set by the opcodes a channel stream may end with.
	terminated bool
}

func New(mappings *Mappings, isSubroutine bool) *Bytecode {
	return &Bytecode{mappings: mappings, isSubroutine: isSubroutine}
}

// Data returns the assembled stream.
func (bc *Bytecode) Data() []byte {
	return bc.data
}

// Terminated reports whether the stream ends in end or disable_channel (or
// return_from_subroutine for subroutines).
func (bc *Bytecode) Terminated() bool {
	return bc.terminated
}

// InLoop reports whether a start_loop is still unclosed.
func (bc *Bytecode) InLoop() bool {
	return len(bc.loops) > 0
}

// instructions maps instruction names to their assembler methods.
var instructions = map[string]func(*Bytecode, []string) error{
	"set_instrument":           (*Bytecode).setInstrument,
	"set_channel_volume":       (*Bytecode).setChannelVolume,
	"rest":                     (*Bytecode).rest,
	"play_note":                (*Bytecode).playNote,
	"play_note_slur_next":      (*Bytecode).playNoteSlurNext,
	"change_octave":            (*Bytecode).changeOctave,
	"increment_octave":         (*Bytecode).incrementOctave,
	"decrement_octave":         (*Bytecode).decrementOctave,
	"set_semitone_offset":      (*Bytecode).setSemitoneOffset,
	"relative_semitone_offset": (*Bytecode).relativeSemitoneOffset,
	"start_loop":               (*Bytecode).startLoop,
	"end_loop":                 (*Bytecode).endLoop,
	"call_subroutine":          (*Bytecode).callSubroutine,
	"return_from_subroutine":   (*Bytecode).returnFromSubroutine,
	"disable_channel":          (*Bytecode).disableChannel,
	"end":                      (*Bytecode).end,
}

// ParseLine assembles one instruction line: a name followed by whitespace
// separated arguments. Comments must already be stripped.
func (bc *Bytecode) ParseLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	inst, ok := instructions[fields[0]]
	if !ok {
		return fmt.Errorf("unknown instruction: %s", fields[0])
	}
	if err := inst(bc, fields[1:]); err != nil {
		return fmt.Errorf("%s: %w", fields[0], err)
	}
	return nil
}

func (bc *Bytecode) emit(b ...byte) {
	bc.data = append(bc.data, b...)
	bc.terminated = false
}

func castI8(i int) (byte, error) {
	if i < -128 || i > 127 {
		return 0, fmt.Errorf("value out of range (%d, expected -128..127)", i)
	}
	return byte(i), nil
}

func noArguments(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}
	return nil
}

func oneArgument(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected one argument, got %d", len(args))
	}
	return args[0], nil
}

func intArgument(args []string, min, max int) (int, error) {
	s, err := oneArgument(args)
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %s", s)
	}
	if i < min || i > max {
		return 0, fmt.Errorf("value out of range (%d, expected %d..%d)", i, min, max)
	}
	return i, nil
}

// parseNote accepts a natural note with accidentals (c, d+, b--) or a raw
// note id 0..15.
func parseNote(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("missing note")
	}
	n, ok := noteMap[s[0]]
	if !ok {
		id, err := strconv.Atoi(s)
		if err != nil || id < 0 || id > 15 {
			return 0, fmt.Errorf("invalid note: %s", s)
		}
		return id, nil
	}
	for _, c := range s[1:] {
		switch c {
		case '+':
			n++
		case '-':
			n--
		default:
			return 0, fmt.Errorf("invalid note: %s", s)
		}
	}
	if n < 0 || n > 15 {
		return 0, fmt.Errorf("note out of range: %s", s)
	}
	return n, nil
}

func (bc *Bytecode) setInstrument(args []string) error {
	name, err := oneArgument(args)
	if err != nil {
		return err
	}
	id, ok := bc.mappings.Instruments[name]
	if !ok {
		return fmt.Errorf("unknown instrument: %s", name)
	}
	bc.emit(SetInstrument, byte(id))
	return nil
}

func (bc *Bytecode) setChannelVolume(args []string) error {
	v, err := intArgument(args, 0, 127)
	if err != nil {
		return err
	}
	bc.emit(SetChannelVolume, byte(v))
	return nil
}

func (bc *Bytecode) rest(args []string) error {
	length, err := intArgument(args, 1, 255)
	if err != nil {
		return err
	}
	bc.emit(Rest, byte(length))
	return nil
}

// note assembles the one- or two-byte note form shared by play_note and
// play_note_slur_next.
func (bc *Bytecode) note(opcode byte, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("expected a note and an optional length, got %d arguments", len(args))
	}
	id, err := parseNote(args[0])
	if err != nil {
		return err
	}
	if len(args) == 1 {
		bc.emit(opcode | byte(id))
		return nil
	}
	length, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid length: %s", args[1])
	}
	min := bc.mappings.MinimumNoteLength
	if min < 1 {
		min = 1
	}
	if length < min || length > 255 {
		return fmt.Errorf("length out of range (%d, expected %d..255)", length, min)
	}
	bc.emit(opcode|playNoteLengthFlag|byte(id), byte(length))
	return nil
}

func (bc *Bytecode) playNote(args []string) error {
	return bc.note(PlayNote, args)
}

func (bc *Bytecode) playNoteSlurNext(args []string) error {
	return bc.note(PlayNoteSlurNext, args)
}

func (bc *Bytecode) emitChangeOctave(octave int, relative bool) error {
	if octave < minOctave || octave > maxOctave {
		return fmt.Errorf("octave out of range (%d, expected %d..%d)", octave, minOctave, maxOctave)
	}
	rel := byte(0)
	if relative {
		rel = 1
	}
	bc.emit(ChangeOctave | byte(octave-minOctave)<<1 | rel)
	return nil
}

func (bc *Bytecode) changeOctave(args []string) error {
	octave, err := intArgument(args, minOctave, maxOctave)
	if err != nil {
		return err
	}
	return bc.emitChangeOctave(octave, false)
}

func (bc *Bytecode) octaveStep(args []string, direction int) error {
	steps := 1
	if len(args) > 0 {
		var err error
		if steps, err = intArgument(args, 1, maxOctave); err != nil {
			return err
		}
	}
	return bc.emitChangeOctave(steps*direction, true)
}

func (bc *Bytecode) incrementOctave(args []string) error {
	return bc.octaveStep(args, 1)
}

func (bc *Bytecode) decrementOctave(args []string) error {
	return bc.octaveStep(args, -1)
}

func (bc *Bytecode) setSemitoneOffset(args []string) error {
	v, err := intArgument(args, -128, 127)
	if err != nil {
		return err
	}
	b, err := castI8(v)
	if err != nil {
		return err
	}
	bc.emit(SetSemitoneOffset, b)
	return nil
}

func (bc *Bytecode) relativeSemitoneOffset(args []string) error {
	v, err := intArgument(args, -128, 127)
	if err != nil {
		return err
	}
	b, err := castI8(v)
	if err != nil {
		return err
	}
	bc.emit(RelativeSemitoneOffset, b)
	return nil
}

func (bc *Bytecode) startLoop(args []string) error {
	if len(bc.loops) >= maxNLoops {
		return fmt.Errorf("too many nested loops (max %d)", maxNLoops)
	}
	count := -1
	if len(args) > 0 {
		var err error
		if count, err = intArgument(args, 2, 257); err != nil {
			return err
		}
	}
	bc.emit(byte(StartLoop0 + len(bc.loops)))
	bc.loops = append(bc.loops, loopState{count: count})
	return nil
}

// endLoop closes the innermost loop. The loop count must be given on
// exactly one of start_loop and end_loop; it rides the end_loop opcode so
// the driver loads it when the loop body has run once.
func (bc *Bytecode) endLoop(args []string) error {
	if len(bc.loops) == 0 {
		return fmt.Errorf("no loop to end")
	}
	loop := bc.loops[len(bc.loops)-1]
	bc.loops = bc.loops[:len(bc.loops)-1]

	count := loop.count
	if len(args) > 0 {
		if count >= 0 {
			return fmt.Errorf("loop count was already given on start_loop")
		}
		var err error
		if count, err = intArgument(args, 2, 257); err != nil {
			return err
		}
	}
	if count < 0 {
		return fmt.Errorf("missing loop count")
	}
	bc.emit(byte(EndLoop0+len(bc.loops)), byte(count-2))
	return nil
}

func (bc *Bytecode) callSubroutine(args []string) error {
	if bc.isSubroutine {
		return fmt.Errorf("not allowed in a subroutine")
	}
	name, err := oneArgument(args)
	if err != nil {
		return err
	}
	id, ok := bc.mappings.Subroutines[name]
	if !ok {
		return fmt.Errorf("unknown subroutine: %s", name)
	}
	if id >= maxSubroutine {
		return fmt.Errorf("subroutine id out of range: %d", id)
	}
	bc.emit(CallSubroutine, byte(id))
	return nil
}

func (bc *Bytecode) returnFromSubroutine(args []string) error {
	if !bc.isSubroutine {
		return fmt.Errorf("only allowed in a subroutine")
	}
	if err := noArguments(args); err != nil {
		return err
	}
	bc.emit(ReturnFromSubroutine)
	bc.terminated = true
	return nil
}

func (bc *Bytecode) disableChannel(args []string) error {
	if err := noArguments(args); err != nil {
		return err
	}
	bc.emit(DisableChannel)
	bc.terminated = true
	return nil
}

func (bc *Bytecode) end(args []string) error {
	if err := noArguments(args); err != nil {
		return err
	}
	bc.emit(End)
	bc.terminated = true
	return nil
}
