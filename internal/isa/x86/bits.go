package x86

import (
	"fmt"
	"strings"
)

// OpcodeMap selects the escape bytes in front of the final opcode byte.
type OpcodeMap uint8

const (
	MapNone OpcodeMap = iota
	Map0F
	Map0F38
	Map0F3A
)

// Prefix is a mandatory legacy prefix.
type Prefix uint8

const (
	PrefixNone Prefix = iota
	Prefix66
	PrefixF3
	PrefixF2
)

// EncodingBits is the recipe-specific half of an x86 encoding:
//
//	[7:0]   final opcode byte
//	[9:8]   opcode map
//	[11:10] mandatory prefix
//	[14:12] ModRM.reg opcode extension
//	[15]    REX.W
type EncodingBits uint16

func NewBits(opcode byte, m OpcodeMap, p Prefix, rrr uint8, w bool) EncodingBits {
	b := EncodingBits(opcode) | EncodingBits(m&3)<<8 | EncodingBits(p&3)<<10 | EncodingBits(rrr&7)<<12
	if w {
		b |= 1 << 15
	}
	return b
}

// one-byte, 0F-escaped and prefixed 0F-escaped opcodes
func op1(opcode byte) EncodingBits              { return NewBits(opcode, MapNone, PrefixNone, 0, false) }
func op2(opcode byte) EncodingBits              { return NewBits(opcode, Map0F, PrefixNone, 0, false) }
func mp2(p Prefix, opcode byte) EncodingBits    { return NewBits(opcode, Map0F, p, 0, false) }
func (b EncodingBits) rrr(n uint8) EncodingBits { return b&^(7<<12) | EncodingBits(n&7)<<12 }
func (b EncodingBits) w() EncodingBits          { return b | 1<<15 }

func (b EncodingBits) Opcode() byte      { return byte(b) }
func (b EncodingBits) Map() OpcodeMap    { return OpcodeMap(b>>8) & 3 }
func (b EncodingBits) Prefix() Prefix    { return Prefix(b>>10) & 3 }
func (b EncodingBits) RRR() uint8        { return uint8(b>>12) & 7 }
func (b EncodingBits) RexW() bool        { return b&(1<<15) != 0 }
func (b EncodingBits) Uint16() uint16    { return uint16(b) }
func BitsOf(raw uint16) EncodingBits     { return EncodingBits(raw) }

var prefixBytes = [...][]byte{PrefixNone: nil, Prefix66: {0x66}, PrefixF3: {0xf3}, PrefixF2: {0xf2}}
var mapBytes = [...][]byte{MapNone: nil, Map0F: {0x0f}, Map0F38: {0x0f, 0x38}, Map0F3A: {0x0f, 0x3a}}

// Render produces the register-direct form of the encoding: ModRM.mod is 3, reg and rm are
// hardware register numbers. A REX prefix is emitted when W is set or a register is extended.
func (b EncodingBits) Render(reg, rm uint8) []byte {
	out := append([]byte(nil), prefixBytes[b.Prefix()]...)
	rex := byte(0x40)
	if b.RexW() {
		rex |= 0x08
	}
	if reg >= 8 {
		rex |= 0x04
	}
	if rm >= 8 {
		rex |= 0x01
	}
	if rex != 0x40 {
		out = append(out, rex)
	}
	out = append(out, mapBytes[b.Map()]...)
	return append(out, b.Opcode(), 0xc0|(reg&7)<<3|rm&7)
}

// String uses the manual's notation, e.g. "REX.W 0F AF" or "81 /7".
func (b EncodingBits) String() string {
	var parts []string
	for _, p := range prefixBytes[b.Prefix()] {
		parts = append(parts, fmt.Sprintf("%02X", p))
	}
	if b.RexW() {
		parts = append(parts, "REX.W")
	}
	for _, m := range mapBytes[b.Map()] {
		parts = append(parts, fmt.Sprintf("%02X", m))
	}
	parts = append(parts, fmt.Sprintf("%02X", b.Opcode()))
	if b.RRR() != 0 {
		parts = append(parts, fmt.Sprintf("/%d", b.RRR()))
	}
	return strings.Join(parts, " ")
}
