package recipe

import (
	"fmt"

	"github.com/eigerco/isel/internal/regs"
	"github.com/eigerco/isel/internal/safemath"
)

// SizeRule adjusts a recipe's base size once operand registers are known.
type SizeRule uint8

const (
	SizeBase SizeRule = iota
	// SizeMaybeOffsetIn0 adds a zero disp8 when input 0 is a base register that cannot be
	// encoded without one (rbp, r13).
	SizeMaybeOffsetIn0
	SizeMaybeOffsetIn1
	// SizeMaybeSibIn0 adds a SIB byte when input 0 is a base register that requires one (rsp, r12).
	SizeMaybeSibIn0
	SizeMaybeSibIn1
	SizeMaybeSibOrOffsetIn0
	SizeMaybeSibOrOffsetIn1
	// SizeInferredRexIn0 adds a REX prefix when input 0 is an extended register.
	SizeInferredRexIn0
	SizeInferredRexIn0In1
	SizeInferredRexIn0Out0
	// Memory forms without a REX.W prefix pay both the address-mode byte and an inferred REX
	// prefix. Loads address through input 0 and write output 0; stores write input 0 through
	// input 1.
	SizeMaybeSibOrOffsetIn0RexIn0Out0
	SizeMaybeSibIn0RexIn0Out0
	SizeMaybeSibOrOffsetIn1RexIn0In1
	SizeMaybeSibIn1RexIn0In1
)

var sizeRuleNames = [...]string{
	SizeBase:                "base",
	SizeMaybeOffsetIn0:      "maybe_offset_in0",
	SizeMaybeOffsetIn1:      "maybe_offset_in1",
	SizeMaybeSibIn0:         "maybe_sib_in0",
	SizeMaybeSibIn1:         "maybe_sib_in1",
	SizeMaybeSibOrOffsetIn0: "maybe_sib_or_offset_in0",
	SizeMaybeSibOrOffsetIn1: "maybe_sib_or_offset_in1",
	SizeInferredRexIn0:      "inferred_rex_in0",
	SizeInferredRexIn0In1:   "inferred_rex_in0_in1",
	SizeInferredRexIn0Out0:  "inferred_rex_in0_out0",

	SizeMaybeSibOrOffsetIn0RexIn0Out0: "maybe_sib_or_offset_in0_rex_in0_out0",
	SizeMaybeSibIn0RexIn0Out0:         "maybe_sib_in0_rex_in0_out0",
	SizeMaybeSibOrOffsetIn1RexIn0In1:  "maybe_sib_or_offset_in1_rex_in0_in1",
	SizeMaybeSibIn1RexIn0In1:          "maybe_sib_in1_rex_in0_in1",
}

// WithoutRex is the rule of the same recipe once a REX prefix is always emitted: the inferred
// REX part is dropped and any address-mode part is kept.
func (r SizeRule) WithoutRex() SizeRule {
	switch r {
	case SizeInferredRexIn0, SizeInferredRexIn0In1, SizeInferredRexIn0Out0:
		return SizeBase
	case SizeMaybeSibOrOffsetIn0RexIn0Out0:
		return SizeMaybeSibOrOffsetIn0
	case SizeMaybeSibIn0RexIn0Out0:
		return SizeMaybeSibIn0
	case SizeMaybeSibOrOffsetIn1RexIn0In1:
		return SizeMaybeSibOrOffsetIn1
	case SizeMaybeSibIn1RexIn0In1:
		return SizeMaybeSibIn1
	}
	return r
}

func (r SizeRule) String() string {
	if int(r) < len(sizeRuleNames) {
		return sizeRuleNames[r]
	}
	return "unknown"
}

// BranchRange describes how far a relaxable branch can reach. Displacements are measured from
// Origin bytes past the start of the instruction and must fit in Bits signed bits.
type BranchRange struct {
	Origin uint8
	Bits   uint8
}

// Contains reports whether a branch at offset can reach dest.
func (br BranchRange) Contains(offset, dest uint32) bool {
	base, ok := safemath.Add64(uint64(offset), uint64(br.Origin))
	if !ok {
		return false
	}
	disp, ok := safemath.Sub(int64(dest), int64(base))
	if !ok {
		return false
	}
	return safemath.FitsSigned(disp, uint(br.Bits))
}

func (br BranchRange) String() string {
	return fmt.Sprintf("origin=%d bits=%d", br.Origin, br.Bits)
}

// Sizing is the code-size metadata of a recipe.
type Sizing struct {
	Base        uint8
	Rule        SizeRule
	BranchRange *BranchRange
}

// LocationKind says where an operand ended up.
type LocationKind uint8

const (
	LocUnassigned LocationKind = iota
	LocReg
	LocStack
)

// Location is the resolved place of one operand.
type Location struct {
	Kind LocationKind
	Unit regs.Unit
	Slot int32
}

func InReg(u regs.Unit) Location {
	return Location{Kind: LocReg, Unit: u}
}

func OnStack(slot int32) Location {
	return Location{Kind: LocStack, Slot: slot}
}

// Placement is the operand locations of one instruction after register allocation.
type Placement struct {
	Ins  []Location
	Outs []Location
}

func hwEncoding(info *regs.Info, locs []Location, i int) (uint8, bool) {
	if i >= len(locs) || locs[i].Kind != LocReg {
		return 0, false
	}
	return info.HwEncoding(locs[i].Unit), true
}

func needsSib(info *regs.Info, locs []Location, i int) bool {
	enc, ok := hwEncoding(info, locs, i)
	return ok && enc&7 == 4
}

func needsOffset(info *regs.Info, locs []Location, i int) bool {
	enc, ok := hwEncoding(info, locs, i)
	return ok && enc&7 == 5
}

func needsRex(info *regs.Info, locs []Location, i int) bool {
	enc, ok := hwEncoding(info, locs, i)
	return ok && enc >= 8
}

func additional(rule SizeRule, info *regs.Info, p Placement) uint8 {
	var n uint8
	add := func(cond bool) {
		if cond {
			n++
		}
	}
	switch rule {
	case SizeBase:
	case SizeMaybeOffsetIn0:
		add(needsOffset(info, p.Ins, 0))
	case SizeMaybeOffsetIn1:
		add(needsOffset(info, p.Ins, 1))
	case SizeMaybeSibIn0:
		add(needsSib(info, p.Ins, 0))
	case SizeMaybeSibIn1:
		add(needsSib(info, p.Ins, 1))
	case SizeMaybeSibOrOffsetIn0:
		add(needsSib(info, p.Ins, 0) || needsOffset(info, p.Ins, 0))
	case SizeMaybeSibOrOffsetIn1:
		add(needsSib(info, p.Ins, 1) || needsOffset(info, p.Ins, 1))
	case SizeInferredRexIn0:
		add(needsRex(info, p.Ins, 0))
	case SizeInferredRexIn0In1:
		add(needsRex(info, p.Ins, 0) || needsRex(info, p.Ins, 1))
	case SizeInferredRexIn0Out0:
		add(needsRex(info, p.Ins, 0) || needsRex(info, p.Outs, 0))
	case SizeMaybeSibOrOffsetIn0RexIn0Out0:
		add(needsSib(info, p.Ins, 0) || needsOffset(info, p.Ins, 0))
		add(needsRex(info, p.Ins, 0) || needsRex(info, p.Outs, 0))
	case SizeMaybeSibIn0RexIn0Out0:
		add(needsSib(info, p.Ins, 0))
		add(needsRex(info, p.Ins, 0) || needsRex(info, p.Outs, 0))
	case SizeMaybeSibOrOffsetIn1RexIn0In1:
		add(needsSib(info, p.Ins, 1) || needsOffset(info, p.Ins, 1))
		add(needsRex(info, p.Ins, 0) || needsRex(info, p.Ins, 1))
	case SizeMaybeSibIn1RexIn0In1:
		add(needsSib(info, p.Ins, 1))
		add(needsRex(info, p.Ins, 0) || needsRex(info, p.Ins, 1))
	}
	return n
}
