// Package probe pins down the open-addressing probe sequence used by every hashed table in the
// engine. Table generators insert along the same sequence that runtime lookups follow, so a
// table built here is always found here.
package probe

import (
	"errors"
	"math/bits"
)

var (
	ErrTableFull = errors.New("probe: table is full")
	ErrBadSize   = errors.New("probe: table size must be a non-zero power of two")
)

// Slot classifies a table slot during a lookup.
type Slot uint8

const (
	Occupied Slot = iota // some other key, keep probing
	Empty                // key is absent
	Match                // key found
)

// Sequence walks a power-of-two table in triangular-number order:
// h, h+1, h+3, h+6, ... (mod size). For power-of-two sizes the first `size` positions are a
// permutation of all slots, so any lookup terminates within `size` probes.
type Sequence struct {
	mask uint32
	pos  uint32
	step uint32
}

// Start begins a sequence for hash in a table of the given size. Size must be a power of two.
func Start(hash uint32, size int) Sequence {
	mask := uint32(size - 1)
	return Sequence{mask: mask, pos: hash & mask}
}

// Index is the current slot.
func (s *Sequence) Index() int {
	return int(s.pos)
}

// Next moves to the following slot.
func (s *Sequence) Next() {
	s.step++
	s.pos = (s.pos + s.step) & s.mask
}

// ValidSize reports whether size can back a probed table.
func ValidSize(size int) bool {
	return size > 0 && size&(size-1) == 0
}

// SizeFor is the smallest power-of-two table able to hold n keys with at least one spare slot.
func SizeFor(n int) int {
	if n < 1 {
		return 1
	}
	return 1 << bits.Len(uint(n))
}

// Find probes until inspect reports Match or Empty, or the whole table has been visited.
func Find(size int, hash uint32, inspect func(i int) Slot) (int, bool) {
	if !ValidSize(size) {
		return -1, false
	}
	seq := Start(hash, size)
	for n := 0; n < size; n++ {
		i := seq.Index()
		switch inspect(i) {
		case Match:
			return i, true
		case Empty:
			return i, false
		}
		seq.Next()
	}
	return -1, false
}

// Insert returns the first free slot on the probe sequence of hash.
func Insert(size int, hash uint32, occupied func(i int) bool) (int, error) {
	if !ValidSize(size) {
		return -1, ErrBadSize
	}
	seq := Start(hash, size)
	for n := 0; n < size; n++ {
		if i := seq.Index(); !occupied(i) {
			return i, nil
		}
		seq.Next()
	}
	return -1, ErrTableFull
}

// Mix spreads a small integer key over 32 bits.
func Mix(key uint32) uint32 {
	h := key * 0x9e3779b9
	return h ^ h>>16
}
