package x86

import (
	"github.com/eigerco/isel/internal/regs"
)

// Register units. The integer and float banks follow the hardware numbering so a unit's
// position in its bank is its ModRM encoding.
const (
	RAX regs.Unit = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	XMM0 regs.Unit = 16
	RFLAGS regs.Unit = 32
)

// Register classes, in registry order.
const (
	GPR regs.ClassIndex = iota
	FPR
	FLAG
	GPR8
	ABCD
	FPR8
)

var banks = []regs.Bank{
	{Name: "IntRegs", First: RAX, Units: 16, Prefix: "r", PressureTracking: true,
		Names: []string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi"}},
	{Name: "FloatRegs", First: XMM0, Units: 16, Prefix: "xmm", PressureTracking: true},
	{Name: "FlagRegs", First: RFLAGS, Units: 1, Names: []string{"rflags"}},
}

var classes = []regs.Class{
	{Name: "GPR", Index: GPR, Width: 1, Bank: 0, Subclasses: 1<<GPR | 1<<GPR8 | 1<<ABCD,
		Mask: regs.MaskRange(RAX, 16), Pinned: R15, HasPinned: true},
	{Name: "FPR", Index: FPR, Width: 1, Bank: 1, Subclasses: 1<<FPR | 1<<FPR8, Mask: regs.MaskRange(XMM0, 16)},
	{Name: "FLAG", Index: FLAG, Width: 1, Bank: 2, Subclasses: 1 << FLAG, Mask: regs.MaskOf(RFLAGS)},
	// GPR8 is the set reachable without a REX prefix.
	{Name: "GPR8", Index: GPR8, Width: 1, Bank: 0, Subclasses: 1<<GPR8 | 1<<ABCD, Mask: regs.MaskRange(RAX, 8)},
	// ABCD holds the registers with addressable low bytes in every mode.
	{Name: "ABCD", Index: ABCD, Width: 1, Bank: 0, Subclasses: 1 << ABCD, Mask: regs.MaskRange(RAX, 4)},
	{Name: "FPR8", Index: FPR8, Width: 1, Bank: 1, Subclasses: 1 << FPR8, Mask: regs.MaskRange(XMM0, 8)},
}

func newRegisters() (*regs.Info, error) {
	return regs.NewInfo(banks, classes)
}
