// Package regs models register banks and register classes. Classes are stored in one registry
// and refer to each other by index; an index is a stable key used by recipe constraints.
package regs

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

var (
	ErrBadClassIndex = errors.New("register class index does not match its position")
	ErrNotSubset     = errors.New("subclass is not a subset of its superclass")
	ErrUnitOutside   = errors.New("register unit outside the owning bank")
)

// Unit is a register unit, numbered globally across banks.
type Unit uint16

// MaskWords is the number of 32-bit words in a ClassMask.
const MaskWords = 3

// MaxUnits is the number of units a ClassMask can address.
const MaxUnits = MaskWords * 32

// ClassMask is a bitmask over register units.
type ClassMask [MaskWords]uint32

// MaskOf builds a mask containing units.
func MaskOf(units ...Unit) ClassMask {
	var m ClassMask
	for _, u := range units {
		m[u/32] |= 1 << (u % 32)
	}
	return m
}

// MaskRange builds a mask of count consecutive units starting at first.
func MaskRange(first Unit, count int) ClassMask {
	var m ClassMask
	for u := int(first); u < int(first)+count; u++ {
		m[u/32] |= 1 << (u % 32)
	}
	return m
}

func (m ClassMask) Contains(u Unit) bool {
	if int(u) >= MaxUnits {
		return false
	}
	return m[u/32]&(1<<(u%32)) != 0
}

func (m ClassMask) And(o ClassMask) ClassMask {
	var r ClassMask
	for i := range m {
		r[i] = m[i] & o[i]
	}
	return r
}

// Covers reports whether every unit of o is also in m.
func (m ClassMask) Covers(o ClassMask) bool {
	return m.And(o) == o
}

func (m ClassMask) Count() int {
	var n int
	for _, w := range m {
		n += bits.OnesCount32(w)
	}
	return n
}

// Units lists the members in ascending order.
func (m ClassMask) Units() []Unit {
	units := make([]Unit, 0, m.Count())
	for i, w := range m {
		for w != 0 {
			b := bits.TrailingZeros32(w)
			units = append(units, Unit(i*32+b))
			w &= w - 1
		}
	}
	return units
}

// Bank is a contiguous range of register units.
type Bank struct {
	Name  string
	First Unit
	Units int
	// Names gives explicit unit names; units past the end are named Prefix + index.
	Names            []string
	Prefix           string
	PressureTracking bool
}

func (b *Bank) Contains(u Unit) bool {
	return u >= b.First && int(u) < int(b.First)+b.Units
}

// HwEncoding is the unit's position within the bank.
func (b *Bank) HwEncoding(u Unit) uint8 {
	return uint8(u - b.First)
}

func (b *Bank) UnitName(u Unit) string {
	off := int(u - b.First)
	if off < len(b.Names) {
		return b.Names[off]
	}
	return b.Prefix + strconv.Itoa(off)
}

// UnitByName resolves either an explicit name or a prefixed index.
func (b *Bank) UnitByName(name string) (Unit, bool) {
	for i, n := range b.Names {
		if n == name {
			return b.First + Unit(i), true
		}
	}
	if b.Prefix != "" && strings.HasPrefix(name, b.Prefix) {
		off, err := strconv.Atoi(name[len(b.Prefix):])
		if err == nil && off >= 0 && off < b.Units {
			return b.First + Unit(off), true
		}
	}
	return 0, false
}

// ClassIndex is the stable position of a class in its registry.
type ClassIndex uint8

// Class is a subset of one bank's units usable for an operand.
type Class struct {
	Name  string
	Index ClassIndex
	// Width is the number of units one register of this class occupies.
	Width uint8
	Bank  int
	// Subclasses is a bitset of class indexes contained in this class, itself included.
	Subclasses uint32
	Mask       ClassMask
	Pinned     Unit
	HasPinned  bool
}

// Info is the registry of banks and classes of one target.
type Info struct {
	banks   []Bank
	classes []Class
}

// NewInfo validates and freezes a register model.
func NewInfo(banks []Bank, classes []Class) (*Info, error) {
	info := &Info{banks: banks, classes: classes}
	if len(classes) > 32 {
		return nil, fmt.Errorf("too many register classes: %d", len(classes))
	}
	for i := range banks {
		if int(banks[i].First)+banks[i].Units > MaxUnits {
			return nil, fmt.Errorf("bank %s: %w", banks[i].Name, ErrUnitOutside)
		}
	}
	for i, c := range classes {
		if int(c.Index) != i {
			return nil, fmt.Errorf("class %s at %d: %w", c.Name, i, ErrBadClassIndex)
		}
		if c.Bank < 0 || c.Bank >= len(banks) {
			return nil, fmt.Errorf("class %s: no bank %d", c.Name, c.Bank)
		}
		bank := &banks[c.Bank]
		for _, u := range c.Mask.Units() {
			if !bank.Contains(u) {
				return nil, fmt.Errorf("class %s unit %d: %w", c.Name, u, ErrUnitOutside)
			}
		}
		if c.HasPinned && !c.Mask.Contains(c.Pinned) {
			return nil, fmt.Errorf("class %s pinned unit %d: %w", c.Name, c.Pinned, ErrUnitOutside)
		}
	}
	// Subset checks assume every mask already sits inside its bank.
	for _, c := range classes {
		for s := 0; s < len(classes); s++ {
			if c.Subclasses&(1<<s) == 0 {
				continue
			}
			if !c.Mask.Covers(classes[s].Mask) {
				return nil, fmt.Errorf("%s in %s: %w", classes[s].Name, c.Name, ErrNotSubset)
			}
		}
	}
	return info, nil
}

func (r *Info) Banks() []Bank {
	return r.banks
}

func (r *Info) Classes() []Class {
	return r.classes
}

func (r *Info) Class(idx ClassIndex) *Class {
	return &r.classes[idx]
}

func (r *Info) ClassByName(name string) (*Class, bool) {
	for i := range r.classes {
		if r.classes[i].Name == name {
			return &r.classes[i], true
		}
	}
	return nil, false
}

func (r *Info) Mask(idx ClassIndex) ClassMask {
	return r.classes[idx].Mask
}

func (r *Info) Contains(idx ClassIndex, u Unit) bool {
	return r.classes[idx].Mask.Contains(u)
}

// IsSubclassOf reports whether a is b or one of b's declared subclasses.
func (r *Info) IsSubclassOf(a, b ClassIndex) bool {
	return r.classes[b].Subclasses&(1<<a) != 0
}

// BankOf finds the bank holding u.
func (r *Info) BankOf(u Unit) (*Bank, bool) {
	for i := range r.banks {
		if r.banks[i].Contains(u) {
			return &r.banks[i], true
		}
	}
	return nil, false
}

func (r *Info) UnitName(u Unit) string {
	if b, ok := r.BankOf(u); ok {
		return b.UnitName(u)
	}
	return "%" + strconv.Itoa(int(u))
}

// UnitByName searches every bank.
func (r *Info) UnitByName(name string) (Unit, bool) {
	for i := range r.banks {
		if u, ok := r.banks[i].UnitByName(name); ok {
			return u, true
		}
	}
	return 0, false
}

// HwEncoding is the unit's encoding number inside its bank.
func (r *Info) HwEncoding(u Unit) uint8 {
	if b, ok := r.BankOf(u); ok {
		return b.HwEncoding(u)
	}
	return 0
}
