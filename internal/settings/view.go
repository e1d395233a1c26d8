package settings

import "fmt"

// PredicateView exposes the flag bytes of several groups as one bit-addressable region. ISA
// predicate numbers index into it without knowing where one group ends.
type PredicateView struct {
	bits []byte
}

// NewPredicateView concatenates the regions in order, typically shared flags then target flags.
func NewPredicateView(regions ...*Flags) PredicateView {
	var size int
	for _, r := range regions {
		size += len(r.bytes)
	}
	bits := make([]byte, 0, size)
	for _, r := range regions {
		bits = append(bits, r.bytes...)
	}
	return PredicateView{bits: bits}
}

// Test reports whether bit is set. A bit outside the view means the predicate tables were built
// for a different layout.
func (v PredicateView) Test(bit uint16) bool {
	i := int(bit / 8)
	if i >= len(v.bits) {
		panic(fmt.Sprintf("settings: predicate bit %d outside a %d-bit view", bit, len(v.bits)*8))
	}
	return v.bits[i]&(1<<(bit%8)) != 0
}

// Len is the number of addressable bits.
func (v PredicateView) Len() int {
	return len(v.bits) * 8
}
