package sfcpack

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Asset loaders decode the JSON asset language into validated typed trees.
// Everything downstream of this file assumes the trees are well formed.

// Aabb is an axis-aligned box in frame pixels.
type Aabb struct {
	X, Y, Width, Height int
}

// TileHitbox is the frameset's tile collision half-extent.
type TileHitbox struct {
	HalfWidth, HalfHeight int
}

type MsPatternObject struct {
	XPos, YPos int
	Size       int
}

// MsPattern is one hardware tile arrangement template. The id doubles as an
// index into the engine's drawing function jump table.
type MsPattern struct {
	Name    string
	ID      byte
	Objects []MsPatternObject
}

type MsAnimationExportOrder struct {
	Name       string
	Animations []string
}

// MsExportOrder is the engine-defined export order catalogue: patterns,
// valid shadow sizes, and named animation lists.
type MsExportOrder struct {
	Patterns       map[string]*MsPattern
	ShadowSizes    map[string]struct{}
	AnimationLists map[string]*MsAnimationExportOrder
}

type MsBlock struct {
	Pattern string
	Start   int
	// X and Y are only meaningful when the block or its frameset declares a
	// pattern; the loader rejects the other combinations.
	X, Y           int
	Flip           string
	Frames         []string
	DefaultHitbox  *Aabb
	DefaultHurtbox *Aabb
}

type MsAnimation struct {
	Name       string
	Loop       bool
	DelayType  string
	FixedDelay float64
	Frames     []string
	// FrameDelays is nil when FixedDelay applies to every frame.
	FrameDelays []float64
}

type MsFrameset struct {
	Name             string
	Source           string
	FrameWidth       int
	FrameHeight      int
	XOrigin, YOrigin int
	ShadowSize       string
	TileHitbox       TileHitbox
	DefaultHitbox    *Aabb
	DefaultHurtbox   *Aabb
	Pattern          string
	MsExportOrder    string
	Order            int
	Blocks           []*MsBlock
	HitboxOverrides  map[string]Aabb
	HurtboxOverrides map[string]Aabb
	Animations       []*MsAnimation
}

type MsSpritesheet struct {
	Name      string
	Palette   string
	FirstTile int
	EndTile   int
	Framesets []*MsFrameset
}

type MemoryMap struct {
	Mode              MemoryMapMode
	FirstResourceBank int
	NResourceBanks    int
}

// Mappings is the project file: image identity, memory map and the per-type
// resource name lists whose order defines resource ids.
type Mappings struct {
	GameTitle      string
	MemoryMap      MemoryMap
	MtTilesets     []string
	MsSpritesheets []string
	Tiles          []string
	Audio          []string
}

type TilesInput struct {
	Name   string
	Format string
	Source string
}

// Resources lists per-name inputs for resource types whose sources carry
// extra metadata.
type Resources struct {
	Tiles map[string]*TilesInput
}

type EntityVision struct {
	A, B int
}

type EntityFunction struct {
	Name          string
	MsExportOrder string
}

type Entity struct {
	Name        string
	Function    string
	Metasprites string
	ZPos        int
	Vision      *EntityVision
	Health      int
	Attack      int
}

// Entities is the entity list; ids are list positions.
type Entities struct {
	Functions map[string]*EntityFunction
	Entities  []*Entity
}

const (
	maxFramesets           = 256
	maxAnimationsPerJSON   = 254
	maxEntities            = 254
	maxDrawOrder           = 3
	maxFrameDimension      = 256
	maxTileHitboxHalfWidth = 128
)

func isName(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return false
		}
	}
	return true
}

func isScopedName(s string) bool {
	a, b, ok := strings.Cut(s, ".")
	return ok && isName(a) && isName(b)
}

func parseName(s, what string) (string, error) {
	if !isName(s) {
		return "", fmt.Errorf("invalid %s name %q", what, s)
	}
	return s, nil
}

// parseIntList parses strings like "0 8 16 16" into n ints.
func parseIntList(s string, n int, what string) ([]int, error) {
	fields := strings.Fields(s)
	if len(fields) != n {
		return nil, fmt.Errorf("expected a string containing %d integers (%s), got %q", n, what, s)
	}
	out := make([]int, n)
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("expected a string containing %d integers (%s), got %q", n, what, s)
		}
		out[i] = v
	}
	return out, nil
}

func parseAabb(s string) (*Aabb, error) {
	v, err := parseIntList(s, 4, "Aabb")
	if err != nil {
		return nil, err
	}
	return &Aabb{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

func parseOptionalAabb(s string) (*Aabb, error) {
	if s == "" {
		return nil, nil
	}
	return parseAabb(s)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func decodeJSONFile(filename string, v interface{}) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}
	return nil
}

//
// mappings.json
//

type rawMemoryMap struct {
	Mode              string `json:"mode"`
	FirstResourceBank int    `json:"first_resource_bank"`
	NResourceBanks    int    `json:"n_resource_banks"`
}

type rawMappings struct {
	GameTitle      string       `json:"game_title"`
	MemoryMap      rawMemoryMap `json:"memory_map"`
	MtTilesets     []string     `json:"mt_tilesets"`
	MsSpritesheets []string     `json:"ms_spritesheets"`
	Tiles          []string     `json:"tiles"`
	Audio          []string     `json:"audio"`
}

// LoadMappings reads and validates the project mappings file.
func LoadMappings(filename string) (*Mappings, error) {
	var raw rawMappings
	if err := decodeJSONFile(filename, &raw); err != nil {
		return nil, err
	}
	mode, err := ParseMemoryMapMode(raw.MemoryMap.Mode)
	if err != nil {
		return nil, fmt.Errorf("%s: memory_map: %w", filename, err)
	}
	if raw.MemoryMap.FirstResourceBank <= 0 || raw.MemoryMap.FirstResourceBank > 0xff {
		return nil, fmt.Errorf("%s: memory_map: invalid first_resource_bank 0x%02x", filename, raw.MemoryMap.FirstResourceBank)
	}
	if raw.MemoryMap.NResourceBanks <= 0 {
		return nil, fmt.Errorf("%s: memory_map: invalid n_resource_banks %d", filename, raw.MemoryMap.NResourceBanks)
	}
	for _, names := range [][]string{raw.MtTilesets, raw.MsSpritesheets, raw.Tiles, raw.Audio} {
		for _, n := range names {
			if !isName(n) {
				return nil, fmt.Errorf("%s: invalid resource name %q", filename, n)
			}
		}
	}
	return &Mappings{
		GameTitle: raw.GameTitle,
		MemoryMap: MemoryMap{
			Mode:              mode,
			FirstResourceBank: raw.MemoryMap.FirstResourceBank,
			NResourceBanks:    raw.MemoryMap.NResourceBanks,
		},
		MtTilesets:     raw.MtTilesets,
		MsSpritesheets: raw.MsSpritesheets,
		Tiles:          raw.Tiles,
		Audio:          raw.Audio,
	}, nil
}

//
// resources.json
//

type rawTilesInput struct {
	Format string `json:"format"`
	Source string `json:"source"`
}

type rawResources struct {
	Tiles map[string]rawTilesInput `json:"tiles"`
}

var tileFormatBitDepth = map[string]int{
	"1bpp": 1,
	"2bpp": 2,
	"4bpp": 4,
	"8bpp": 8,
}

// LoadResources reads the per-name resource input list.
func LoadResources(filename string) (*Resources, error) {
	var raw rawResources
	if err := decodeJSONFile(filename, &raw); err != nil {
		return nil, err
	}
	tiles := make(map[string]*TilesInput, len(raw.Tiles))
	for name, t := range raw.Tiles {
		if !isName(name) {
			return nil, fmt.Errorf("%s: invalid tiles name %q", filename, name)
		}
		if _, ok := tileFormatBitDepth[t.Format]; !ok {
			return nil, fmt.Errorf("%s: tiles.%s: unknown format %q", filename, name, t.Format)
		}
		if t.Source == "" {
			return nil, fmt.Errorf("%s: tiles.%s: missing source", filename, name)
		}
		tiles[name] = &TilesInput{Name: name, Format: t.Format, Source: t.Source}
	}
	return &Resources{Tiles: tiles}, nil
}

//
// ms-export-order.json
//

type rawPatternObject struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	Size int `json:"size"`
}

type rawPattern struct {
	Name    string             `json:"name"`
	Objects []rawPatternObject `json:"objects"`
}

type rawExportOrder struct {
	Patterns       []rawPattern        `json:"patterns"`
	ShadowSizes    []string            `json:"shadow_sizes"`
	AnimationLists map[string][]string `json:"animation_lists"`
}

// LoadMsExportOrder reads the export order catalogue.
func LoadMsExportOrder(filename string) (*MsExportOrder, error) {
	var raw rawExportOrder
	if err := decodeJSONFile(filename, &raw); err != nil {
		return nil, err
	}
	eo := &MsExportOrder{
		Patterns:       make(map[string]*MsPattern, len(raw.Patterns)),
		ShadowSizes:    make(map[string]struct{}, len(raw.ShadowSizes)),
		AnimationLists: make(map[string]*MsAnimationExportOrder, len(raw.AnimationLists)),
	}
	for i, p := range raw.Patterns {
		if _, err := parseName(p.Name, "pattern"); err != nil {
			return nil, fmt.Errorf("%s: patterns[%d]: %w", filename, i, err)
		}
		if _, dup := eo.Patterns[p.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate pattern %q", filename, p.Name)
		}
		if len(p.Objects) == 0 {
			return nil, fmt.Errorf("%s: pattern %q has no objects", filename, p.Name)
		}
		objects := make([]MsPatternObject, len(p.Objects))
		for j, o := range p.Objects {
			if o.Size != 8 && o.Size != 16 {
				return nil, fmt.Errorf("%s: pattern %q object %d: invalid size %d", filename, p.Name, j, o.Size)
			}
			if o.X < 0 || o.Y < 0 || o.X%8 != 0 || o.Y%8 != 0 {
				return nil, fmt.Errorf("%s: pattern %q object %d: invalid position %d,%d", filename, p.Name, j, o.X, o.Y)
			}
			objects[j] = MsPatternObject{XPos: o.X, YPos: o.Y, Size: o.Size}
		}
		eo.Patterns[p.Name] = &MsPattern{Name: p.Name, ID: byte(i * 2), Objects: objects}
	}
	for _, s := range raw.ShadowSizes {
		if _, err := parseName(s, "shadow size"); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		eo.ShadowSizes[s] = struct{}{}
	}
	for name, animations := range raw.AnimationLists {
		if !isName(name) {
			return nil, fmt.Errorf("%s: invalid animation list name %q", filename, name)
		}
		for _, a := range animations {
			if !isName(a) {
				return nil, fmt.Errorf("%s: animation_lists.%s: invalid animation name %q", filename, name, a)
			}
		}
		eo.AnimationLists[name] = &MsAnimationExportOrder{Name: name, Animations: animations}
	}
	return eo, nil
}

//
// metasprites.json
//

type rawMsBlock struct {
	Pattern        string   `json:"pattern"`
	Start          int      `json:"start"`
	X              *int     `json:"x"`
	Y              *int     `json:"y"`
	Flip           string   `json:"flip"`
	Frames         []string `json:"frames"`
	DefaultHitbox  string   `json:"defaultHitbox"`
	DefaultHurtbox string   `json:"defaultHurtbox"`
}

type rawMsAnimation struct {
	Loop       bool              `json:"loop"`
	DelayType  string            `json:"delay-type"`
	FixedDelay *float64          `json:"fixed-delay"`
	Frames     []json.RawMessage `json:"frames"`
}

type rawMsFrameset struct {
	Name           string                    `json:"name"`
	Source         string                    `json:"source"`
	FrameWidth     int                       `json:"frameWidth"`
	FrameHeight    int                       `json:"frameHeight"`
	XOrigin        int                       `json:"xorigin"`
	YOrigin        int                       `json:"yorigin"`
	ShadowSize     string                    `json:"shadowSize"`
	TileHitbox     string                    `json:"tilehitbox"`
	DefaultHitbox  string                    `json:"defaultHitbox"`
	DefaultHurtbox string                    `json:"defaultHurtbox"`
	Pattern        string                    `json:"pattern"`
	MsExportOrder  string                    `json:"ms-export-order"`
	Order          int                       `json:"order"`
	Blocks         []rawMsBlock              `json:"blocks"`
	Hitboxes       map[string]string         `json:"hitboxes"`
	Hurtboxes      map[string]string         `json:"hurtboxes"`
	Animations     map[string]rawMsAnimation `json:"animations"`
}

type rawMsSpritesheet struct {
	Name      string          `json:"name"`
	Palette   string          `json:"palette"`
	FirstTile int             `json:"firstTile"`
	EndTile   int             `json:"endTile"`
	Framesets []rawMsFrameset `json:"framesets"`
}

func parseAnimationFrames(raw rawMsAnimation) ([]string, []float64, error) {
	if raw.FixedDelay != nil {
		frames := make([]string, len(raw.Frames))
		for i, m := range raw.Frames {
			if err := json.Unmarshal(m, &frames[i]); err != nil {
				return nil, nil, fmt.Errorf("frames[%d]: expected a frame name", i)
			}
		}
		return frames, nil, nil
	}
	// Without fixed-delay, frames interleaves `frame, delay, frame, delay, ...`.
	if len(raw.Frames)%2 != 0 {
		return nil, nil, fmt.Errorf("expected a list of `frame, delay, frame, delay, ...`")
	}
	n := len(raw.Frames) / 2
	frames := make([]string, n)
	delays := make([]float64, n)
	for i := 0; i < n; i++ {
		if err := json.Unmarshal(raw.Frames[i*2], &frames[i]); err != nil {
			return nil, nil, fmt.Errorf("frames[%d]: expected a frame name", i*2)
		}
		if err := json.Unmarshal(raw.Frames[i*2+1], &delays[i]); err != nil {
			return nil, nil, fmt.Errorf("frames[%d]: expected a delay value", i*2+1)
		}
	}
	return frames, delays, nil
}

func parseMsAnimation(name string, raw rawMsAnimation) (*MsAnimation, error) {
	if !isName(name) {
		return nil, fmt.Errorf("invalid animation name %q", name)
	}
	if !validDelayType(raw.DelayType) {
		return nil, fmt.Errorf("animation %s: unknown delay-type %q", name, raw.DelayType)
	}
	frames, delays, err := parseAnimationFrames(raw)
	if err != nil {
		return nil, fmt.Errorf("animation %s: %w", name, err)
	}
	for _, f := range frames {
		if !isName(f) {
			return nil, fmt.Errorf("animation %s: invalid frame name %q", name, f)
		}
	}
	a := &MsAnimation{
		Name:        name,
		Loop:        raw.Loop,
		DelayType:   raw.DelayType,
		Frames:      frames,
		FrameDelays: delays,
	}
	if raw.FixedDelay != nil {
		a.FixedDelay = *raw.FixedDelay
	}
	return a, nil
}

func parseMsBlock(i int, raw rawMsBlock, fsPattern string) (*MsBlock, error) {
	b := &MsBlock{
		Pattern: raw.Pattern,
		Start:   raw.Start,
		Flip:    raw.Flip,
		Frames:  raw.Frames,
	}
	if raw.Pattern != "" && !isName(raw.Pattern) {
		return nil, fmt.Errorf("blocks[%d]: invalid pattern name %q", i, raw.Pattern)
	}
	if raw.Pattern != "" || fsPattern != "" {
		if raw.X == nil || raw.Y == nil {
			return nil, fmt.Errorf("blocks[%d]: blocks with a pattern require `x` and `y` fields", i)
		}
		b.X, b.Y = *raw.X, *raw.Y
	} else if raw.X != nil || raw.Y != nil {
		return nil, fmt.Errorf("blocks[%d]: blocks with no pattern must not have a `x` or `y` field", i)
	}
	switch raw.Flip {
	case "", "hflip", "vflip", "hvflip":
	default:
		return nil, fmt.Errorf("blocks[%d]: unknown flip %q", i, raw.Flip)
	}
	if raw.Start < 0 {
		return nil, fmt.Errorf("blocks[%d]: invalid start %d", i, raw.Start)
	}
	if len(raw.Frames) == 0 {
		return nil, fmt.Errorf("blocks[%d]: block has no frames", i)
	}
	for _, f := range raw.Frames {
		if !isName(f) {
			return nil, fmt.Errorf("blocks[%d]: invalid frame name %q", i, f)
		}
	}
	var err error
	if b.DefaultHitbox, err = parseOptionalAabb(raw.DefaultHitbox); err != nil {
		return nil, fmt.Errorf("blocks[%d]: defaultHitbox: %w", i, err)
	}
	if b.DefaultHurtbox, err = parseOptionalAabb(raw.DefaultHurtbox); err != nil {
		return nil, fmt.Errorf("blocks[%d]: defaultHurtbox: %w", i, err)
	}
	return b, nil
}

func parseAabbOverrides(m map[string]string, what string) (map[string]Aabb, error) {
	out := make(map[string]Aabb, len(m))
	for frame, s := range m {
		if !isName(frame) {
			return nil, fmt.Errorf("%s: invalid frame name %q", what, frame)
		}
		box, err := parseAabb(s)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", what, frame, err)
		}
		out[frame] = *box
	}
	return out, nil
}

func parseMsFrameset(raw rawMsFrameset) (*MsFrameset, error) {
	name, err := parseName(raw.Name, "frameset")
	if err != nil {
		return nil, err
	}
	fail := func(format string, args ...interface{}) (*MsFrameset, error) {
		return nil, fmt.Errorf("frameset %s: %w", name, fmt.Errorf(format, args...))
	}
	if raw.Source == "" {
		return fail("missing source")
	}
	if !isName(raw.MsExportOrder) {
		return fail("invalid ms-export-order %q", raw.MsExportOrder)
	}
	if !isName(raw.ShadowSize) {
		return fail("invalid shadowSize %q", raw.ShadowSize)
	}
	if raw.Order < 0 || raw.Order > maxDrawOrder {
		return fail("invalid order %d", raw.Order)
	}
	if raw.Pattern != "" && !isName(raw.Pattern) {
		return fail("invalid pattern name %q", raw.Pattern)
	}
	th, err := parseIntList(raw.TileHitbox, 2, "TileHitbox")
	if err != nil {
		return fail("tilehitbox: %v", err)
	}
	fs := &MsFrameset{
		Name:          name,
		Source:        raw.Source,
		FrameWidth:    raw.FrameWidth,
		FrameHeight:   raw.FrameHeight,
		XOrigin:       raw.XOrigin,
		YOrigin:       raw.YOrigin,
		ShadowSize:    raw.ShadowSize,
		TileHitbox:    TileHitbox{HalfWidth: th[0], HalfHeight: th[1]},
		Pattern:       raw.Pattern,
		MsExportOrder: raw.MsExportOrder,
		Order:         raw.Order,
	}
	if fs.DefaultHitbox, err = parseOptionalAabb(raw.DefaultHitbox); err != nil {
		return fail("defaultHitbox: %v", err)
	}
	if fs.DefaultHurtbox, err = parseOptionalAabb(raw.DefaultHurtbox); err != nil {
		return fail("defaultHurtbox: %v", err)
	}
	for i, rb := range raw.Blocks {
		b, err := parseMsBlock(i, rb, raw.Pattern)
		if err != nil {
			return fail("%v", err)
		}
		if b.DefaultHitbox == nil {
			b.DefaultHitbox = fs.DefaultHitbox
		}
		if b.DefaultHurtbox == nil {
			b.DefaultHurtbox = fs.DefaultHurtbox
		}
		fs.Blocks = append(fs.Blocks, b)
	}
	if fs.HitboxOverrides, err = parseAabbOverrides(raw.Hitboxes, "hitboxes"); err != nil {
		return fail("%v", err)
	}
	if fs.HurtboxOverrides, err = parseAabbOverrides(raw.Hurtboxes, "hurtboxes"); err != nil {
		return fail("%v", err)
	}
	if len(raw.Animations) > maxAnimationsPerJSON {
		return fail("too many animations (%d, max %d)", len(raw.Animations), maxAnimationsPerJSON)
	}
	for _, aname := range sortedKeys(raw.Animations) {
		a, err := parseMsAnimation(aname, raw.Animations[aname])
		if err != nil {
			return fail("%v", err)
		}
		fs.Animations = append(fs.Animations, a)
	}
	return fs, nil
}

// LoadMsSpritesheet reads one metasprite spritesheet description.
func LoadMsSpritesheet(filename string) (*MsSpritesheet, error) {
	var raw rawMsSpritesheet
	if err := decodeJSONFile(filename, &raw); err != nil {
		return nil, err
	}
	sheet, err := parseMsSpritesheet(&raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return sheet, nil
}

func parseMsSpritesheet(raw *rawMsSpritesheet) (*MsSpritesheet, error) {
	name, err := parseName(raw.Name, "spritesheet")
	if err != nil {
		return nil, err
	}
	if raw.Palette == "" {
		return nil, fmt.Errorf("missing palette")
	}
	if raw.FirstTile < 0 || raw.EndTile >= 0x200 || raw.FirstTile > raw.EndTile {
		return nil, fmt.Errorf("invalid tile range 0x%03x..0x%03x", raw.FirstTile, raw.EndTile)
	}
	if raw.FirstTile%0x10 != 0 {
		return nil, fmt.Errorf("firstTile must be a multiple of 16")
	}
	if len(raw.Framesets) > maxFramesets {
		return nil, fmt.Errorf("too many framesets (%d, max %d)", len(raw.Framesets), maxFramesets)
	}
	sheet := &MsSpritesheet{
		Name:      name,
		Palette:   raw.Palette,
		FirstTile: raw.FirstTile,
		EndTile:   raw.EndTile,
	}
	seen := make(map[string]struct{}, len(raw.Framesets))
	for _, rf := range raw.Framesets {
		fs, err := parseMsFrameset(rf)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[fs.Name]; dup {
			return nil, fmt.Errorf("duplicate frameset %q", fs.Name)
		}
		seen[fs.Name] = struct{}{}
		sheet.Framesets = append(sheet.Framesets, fs)
	}
	return sheet, nil
}

//
// entities.json
//

type rawEntityFunction struct {
	Name          string `json:"name"`
	MsExportOrder string `json:"ms-export-order"`
}

type rawEntity struct {
	Name        string `json:"name"`
	Function    string `json:"function"`
	Metasprites string `json:"metasprites"`
	ZPos        int    `json:"zpos"`
	Vision      string `json:"vision"`
	Health      int    `json:"health"`
	Attack      int    `json:"attack"`
}

type rawEntities struct {
	EntityFunctions []rawEntityFunction `json:"entity_functions"`
	Entities        []rawEntity         `json:"entities"`
}

// LoadEntities reads the entity list. Entity ids are list positions.
func LoadEntities(filename string) (*Entities, error) {
	var raw rawEntities
	if err := decodeJSONFile(filename, &raw); err != nil {
		return nil, err
	}
	out := &Entities{Functions: make(map[string]*EntityFunction, len(raw.EntityFunctions))}
	for _, f := range raw.EntityFunctions {
		if !isName(f.Name) {
			return nil, fmt.Errorf("%s: invalid entity function name %q", filename, f.Name)
		}
		if !isName(f.MsExportOrder) {
			return nil, fmt.Errorf("%s: entity function %s: invalid ms-export-order %q", filename, f.Name, f.MsExportOrder)
		}
		if _, dup := out.Functions[f.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate entity function %q", filename, f.Name)
		}
		out.Functions[f.Name] = &EntityFunction{Name: f.Name, MsExportOrder: f.MsExportOrder}
	}
	if len(raw.Entities) > maxEntities {
		return nil, fmt.Errorf("%s: too many entities (%d, max %d)", filename, len(raw.Entities), maxEntities)
	}
	for i, e := range raw.Entities {
		if !isName(e.Name) {
			return nil, fmt.Errorf("%s: entities[%d]: invalid name %q", filename, i, e.Name)
		}
		if _, ok := out.Functions[e.Function]; !ok {
			return nil, fmt.Errorf("%s: entity %s: unknown function %q", filename, e.Name, e.Function)
		}
		if !isScopedName(e.Metasprites) {
			return nil, fmt.Errorf("%s: entity %s: invalid metasprites %q", filename, e.Name, e.Metasprites)
		}
		if e.ZPos < 0 || e.ZPos > 0xff || e.Health < 0 || e.Health > 0xff || e.Attack < 0 || e.Attack > 0xff {
			return nil, fmt.Errorf("%s: entity %s: byte field out of range", filename, e.Name)
		}
		entity := &Entity{
			Name:        e.Name,
			Function:    e.Function,
			Metasprites: e.Metasprites,
			ZPos:        e.ZPos,
			Health:      e.Health,
			Attack:      e.Attack,
		}
		if e.Vision != "" {
			v, err := parseIntList(e.Vision, 2, "vision")
			if err != nil {
				return nil, fmt.Errorf("%s: entity %s: %w", filename, e.Name, err)
			}
			if v[0] < 0 || v[0] > 0xff || v[1] < 0 || v[1] > 0xff {
				return nil, fmt.Errorf("%s: entity %s: vision out of range", filename, e.Name)
			}
			entity.Vision = &EntityVision{A: v[0], B: v[1]}
		}
		out.Entities = append(out.Entities, entity)
	}
	return out, nil
}
