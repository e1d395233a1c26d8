package ir

// Opcode identifies an IR instruction. The zero value never names a real instruction and marks
// empty dispatch slots.
type Opcode uint16

const (
	OpcodeInvalid Opcode = iota

	// control flow
	Jump
	Brz
	Brnz
	Trap
	Return
	Call
	FuncAddr

	// constants and moves
	Iconst
	Vconst
	Copy
	Uextend

	// integer arithmetic
	Iadd
	Isub
	Imul
	Udiv
	Sdiv
	Band
	Bor
	Bxor
	Ishl
	IaddImm
	Popcnt
	Clz
	Ctz

	// comparisons
	Icmp
	IcmpImm
	Fcmp

	// floating point
	Fadd
	Fmul

	// memory
	Load
	Store

	// x86 division producing quotient and remainder
	X86Udivmodx
	X86Sdivmodx

	opcodeCount
)

type opcodeInfo struct {
	name   string
	format Format
}

var opcodes = [opcodeCount]opcodeInfo{
	OpcodeInvalid: {"invalid", FormatNullary},
	Jump:          {"jump", FormatJump},
	Brz:           {"brz", FormatBranch},
	Brnz:          {"brnz", FormatBranch},
	Trap:          {"trap", FormatNullary},
	Return:        {"return", FormatMultiAry},
	Call:          {"call", FormatCall},
	FuncAddr:      {"func_addr", FormatFuncAddr},
	Iconst:        {"iconst", FormatUnaryImm},
	Vconst:        {"vconst", FormatUnaryConst},
	Copy:          {"copy", FormatUnary},
	Uextend:       {"uextend", FormatUnary},
	Iadd:          {"iadd", FormatBinary},
	Isub:          {"isub", FormatBinary},
	Imul:          {"imul", FormatBinary},
	Udiv:          {"udiv", FormatBinary},
	Sdiv:          {"sdiv", FormatBinary},
	Band:          {"band", FormatBinary},
	Bor:           {"bor", FormatBinary},
	Bxor:          {"bxor", FormatBinary},
	Ishl:          {"ishl", FormatBinary},
	IaddImm:       {"iadd_imm", FormatBinaryImm},
	Popcnt:        {"popcnt", FormatUnary},
	Clz:           {"clz", FormatUnary},
	Ctz:           {"ctz", FormatUnary},
	Icmp:          {"icmp", FormatIntCompare},
	IcmpImm:       {"icmp_imm", FormatIntCompareImm},
	Fcmp:          {"fcmp", FormatFloatCompare},
	Fadd:          {"fadd", FormatBinary},
	Fmul:          {"fmul", FormatBinary},
	Load:          {"load", FormatLoad},
	Store:         {"store", FormatStore},
	X86Udivmodx:   {"x86_udivmodx", FormatTernary},
	X86Sdivmodx:   {"x86_sdivmodx", FormatTernary},
}

func (o Opcode) String() string {
	if o < opcodeCount {
		return opcodes[o].name
	}
	return "unknown"
}

// Format is the instruction variant the opcode is always expressed with.
func (o Opcode) Format() Format {
	if o < opcodeCount {
		return opcodes[o].format
	}
	return FormatNullary
}

// ParseOpcode resolves an opcode by its textual name.
func ParseOpcode(name string) (Opcode, bool) {
	for i := Opcode(1); i < opcodeCount; i++ {
		if opcodes[i].name == name {
			return i, true
		}
	}
	return OpcodeInvalid, false
}

// Opcodes returns every valid opcode in declaration order.
func Opcodes() []Opcode {
	ops := make([]Opcode, 0, opcodeCount-1)
	for i := Opcode(1); i < opcodeCount; i++ {
		ops = append(ops, i)
	}
	return ops
}
