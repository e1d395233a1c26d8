package settings

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/eigerco/isel/internal/probe"
)

// Kind is the storage detail of a setting.
type Kind uint8

const (
	Bool Kind = iota
	Enum
	Num
	Preset
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Enum:
		return "enum"
	case Num:
		return "num"
	case Preset:
		return "preset"
	}
	return "unknown"
}

// emptySlot marks an unused entry of the name hash table.
const emptySlot uint16 = 0xffff

// Descriptor locates one setting inside the flag bytes.
//
// Bool settings live in bit Bit of byte Offset. Enum settings store the enumerator index in
// byte Offset; their names are Enumerators[EnumOffset : EnumOffset+Last+1]. Num settings use
// the whole byte at Offset. For presets Offset is the first MaskValue of the preset.
type Descriptor struct {
	Name        string
	Offset      uint32
	Kind        Kind
	Bit         uint8
	Last        uint8
	EnumOffset  uint16
	Description string
}

// MaskValue is one byte of a preset: b = b&^Mask | Value.
type MaskValue struct {
	Mask  byte
	Value byte
}

// Definition is the human-authored description of one setting, compiled by NewTemplate.
type Definition struct {
	Name        string
	Kind        Kind
	Default     string
	Values      []string
	Description string
}

// PresetDefinition turns on a set of bool settings or earlier presets.
type PresetDefinition struct {
	Name   string
	Enable []string
}

// PredicateDefinition declares a computed predicate derived from bits declared before it.
type PredicateDefinition struct {
	Name string
	Expr Expr
}

type computed struct {
	name string
	bit  uint16
	expr Expr
}

// Template describes the byte layout of one settings group.
type Template struct {
	group       string
	descriptors []Descriptor
	enumerators []string
	hashTable   []uint16
	defaults    []byte
	presets     []MaskValue
	predicates  []computed
	byteSize    int
}

// NewTemplate lays out a settings group: num and enum settings take one byte each in
// declaration order, bool settings are packed eight per byte after them, and computed
// predicate bits follow the settings bytes.
func NewTemplate(group string, defs []Definition, presets []PresetDefinition, predicates []PredicateDefinition) (*Template, error) {
	t := &Template{group: group}
	bits := make(map[string]uint16)

	var numBytes, numBools uint32
	for _, d := range defs {
		switch d.Kind {
		case Enum, Num:
			numBytes++
		case Bool:
			numBools++
		default:
			return nil, fmt.Errorf("setting %s: kind %s cannot be defined directly", d.Name, d.Kind)
		}
	}
	settingsBytes := numBytes + (numBools+7)/8
	t.defaults = make([]byte, settingsBytes)

	var nextByte, nextBool uint32
	for _, d := range defs {
		desc := Descriptor{Name: d.Name, Kind: d.Kind, Description: d.Description}
		switch d.Kind {
		case Enum:
			if len(d.Values) == 0 || len(d.Values) > 256 {
				return nil, fmt.Errorf("setting %s: enum needs 1..256 values", d.Name)
			}
			desc.Offset = nextByte
			desc.Last = uint8(len(d.Values) - 1)
			desc.EnumOffset = uint16(len(t.enumerators))
			t.enumerators = append(t.enumerators, d.Values...)
			nextByte++
		case Num:
			desc.Offset = nextByte
			nextByte++
		case Bool:
			desc.Offset = numBytes + nextBool/8
			desc.Bit = uint8(nextBool % 8)
			bits[d.Name] = uint16(desc.Offset*8 + uint32(desc.Bit))
			nextBool++
		}
		if d.Default != "" {
			if err := t.store(t.defaults, desc, d.Default); err != nil {
				return nil, fmt.Errorf("default: %w", err)
			}
		}
		t.descriptors = append(t.descriptors, desc)
	}

	for _, p := range presets {
		start := len(t.presets)
		t.presets = append(t.presets, make([]MaskValue, settingsBytes)...)
		mv := t.presets[start:]
		for _, name := range p.Enable {
			if err := t.enable(mv, name); err != nil {
				return nil, fmt.Errorf("preset %s: %w", p.Name, err)
			}
		}
		t.descriptors = append(t.descriptors, Descriptor{Name: p.Name, Kind: Preset, Offset: uint32(start)})
	}

	nextPredicate := uint16(settingsBytes * 8)
	for _, p := range predicates {
		resolved, err := p.Expr.resolve(bits)
		if err != nil {
			return nil, fmt.Errorf("predicate %s: %w", p.Name, err)
		}
		t.predicates = append(t.predicates, computed{name: p.Name, bit: nextPredicate, expr: resolved})
		bits[p.Name] = nextPredicate
		nextPredicate++
	}
	t.byteSize = int(settingsBytes) + (len(predicates)+7)/8

	t.hashTable = make([]uint16, probe.SizeFor(len(t.descriptors)+len(t.descriptors)/2))
	for i := range t.hashTable {
		t.hashTable[i] = emptySlot
	}
	for i, d := range t.descriptors {
		if _, ok := t.lookup(d.Name); ok {
			return nil, fmt.Errorf("setting %s declared twice", d.Name)
		}
		slot, err := probe.Insert(len(t.hashTable), nameHash(d.Name), func(s int) bool {
			return t.hashTable[s] != emptySlot
		})
		if err != nil {
			return nil, err
		}
		t.hashTable[slot] = uint16(i)
	}
	return t, nil
}

// enable folds a bool setting or an earlier preset into the preset bytes mv.
func (t *Template) enable(mv []MaskValue, name string) error {
	for _, d := range t.descriptors {
		if d.Name != name {
			continue
		}
		switch d.Kind {
		case Bool:
			mv[d.Offset].Mask |= 1 << d.Bit
			mv[d.Offset].Value |= 1 << d.Bit
			return nil
		case Preset:
			for i, other := range t.presets[d.Offset : d.Offset+uint32(len(t.defaults))] {
				mv[i].Mask |= other.Mask
				mv[i].Value |= other.Value
			}
			return nil
		}
		return fmt.Errorf("%w: %s is not a bool", ErrBadValue, name)
	}
	return fmt.Errorf("%w: %s", ErrUnknownSetting, name)
}

func nameHash(name string) uint32 {
	return uint32(xxhash.Sum64String(name))
}

func (t *Template) lookup(name string) (int, bool) {
	slot, ok := probe.Find(len(t.hashTable), nameHash(name), func(s int) probe.Slot {
		idx := t.hashTable[s]
		switch {
		case idx == emptySlot:
			return probe.Empty
		case t.descriptors[idx].Name == name:
			return probe.Match
		}
		return probe.Occupied
	})
	if !ok {
		return -1, false
	}
	return int(t.hashTable[slot]), true
}

// Group is the section name used by the text format.
func (t *Template) Group() string {
	return t.group
}

// Lookup finds a descriptor by name.
func (t *Template) Lookup(name string) (Descriptor, bool) {
	i, ok := t.lookup(name)
	if !ok {
		return Descriptor{}, false
	}
	return t.descriptors[i], true
}

// Descriptors returns every descriptor in declaration order, presets last.
func (t *Template) Descriptors() []Descriptor {
	return t.descriptors
}

// ByteSize is the length of every Flags built from this template.
func (t *Template) ByteSize() int {
	return t.byteSize
}

// SettingsSize is the number of bytes holding settings; predicate bits follow.
func (t *Template) SettingsSize() int {
	return len(t.defaults)
}

// Bit resolves a bool setting or computed predicate to its bit number within the group.
func (t *Template) Bit(name string) (uint16, bool) {
	if d, ok := t.Lookup(name); ok && d.Kind == Bool {
		return uint16(d.Offset*8 + uint32(d.Bit)), true
	}
	for _, p := range t.predicates {
		if p.name == name {
			return p.bit, true
		}
	}
	return 0, false
}

// MustBit is Bit for names fixed at compile time.
func (t *Template) MustBit(name string) uint16 {
	bit, ok := t.Bit(name)
	if !ok {
		panic(fmt.Sprintf("settings: %s has no bit %q", t.group, name))
	}
	return bit
}

// Predicates lists computed predicate names in evaluation order.
func (t *Template) Predicates() []string {
	names := make([]string, len(t.predicates))
	for i, p := range t.predicates {
		names[i] = p.name
	}
	return names
}

// Enumerators returns the value names of an enum descriptor.
func (t *Template) Enumerators(d Descriptor) []string {
	if d.Kind != Enum {
		return nil
	}
	return t.enumerators[d.EnumOffset : int(d.EnumOffset)+int(d.Last)+1]
}

func (t *Template) preset(d Descriptor) []MaskValue {
	return t.presets[d.Offset : d.Offset+uint32(len(t.defaults))]
}

// store parses value for d and writes it into raw.
func (t *Template) store(raw []byte, d Descriptor, value string) error {
	switch d.Kind {
	case Bool:
		on, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s = %q", ErrBadValue, d.Name, value)
		}
		if on {
			raw[d.Offset] |= 1 << d.Bit
		} else {
			raw[d.Offset] &^= 1 << d.Bit
		}
	case Enum:
		for i, name := range t.Enumerators(d) {
			if name == value {
				raw[d.Offset] = byte(i)
				return nil
			}
		}
		return fmt.Errorf("%w: %s = %q", ErrBadValue, d.Name, value)
	case Num:
		n, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return fmt.Errorf("%w: %s = %q", ErrBadValue, d.Name, value)
		}
		raw[d.Offset] = byte(n)
	case Preset:
		on, err := parseBool(value)
		if err != nil || !on {
			return fmt.Errorf("%w: preset %s can only be enabled", ErrBadValue, d.Name)
		}
		applyPreset(raw, t.preset(d))
	}
	return nil
}

// load reads the value of d out of raw.
func (t *Template) load(raw []byte, d Descriptor) Value {
	v := Value{Name: d.Name, Kind: d.Kind}
	switch d.Kind {
	case Bool:
		v.Bool = raw[d.Offset]&(1<<d.Bit) != 0
	case Enum:
		idx := raw[d.Offset]
		if idx > d.Last {
			idx = d.Last
		}
		v.Enum = t.Enumerators(d)[idx]
	case Num:
		v.Num = raw[d.Offset]
	}
	return v
}

func applyPreset(raw []byte, mv []MaskValue) {
	for i, p := range mv {
		raw[i] = raw[i]&^p.Mask | p.Value
	}
}

func parseBool(s string) (bool, error) {
	switch s {
	case "true", "on", "yes":
		return true, nil
	case "false", "off", "no":
		return false, nil
	}
	return false, strconv.ErrSyntax
}

// Value is a decoded setting.
type Value struct {
	Name string
	Kind Kind
	Bool bool
	Enum string
	Num  uint8
}

func (v Value) String() string {
	switch v.Kind {
	case Bool:
		return strconv.FormatBool(v.Bool)
	case Enum:
		return v.Enum
	case Num:
		return strconv.Itoa(int(v.Num))
	}
	return ""
}
