package x86

import (
	"github.com/eigerco/isel/internal/encoding"
	"github.com/eigerco/isel/internal/ir"
	"github.com/eigerco/isel/internal/isa"
	"github.com/eigerco/isel/internal/predicates"
	"github.com/eigerco/isel/internal/recipe"
)

// CPU modes.
const (
	ModeI64 = "I64"
	ModeI32 = "I32"
)

// Legalize actions.
const (
	ActionExpand    = "expand"
	ActionNarrow    = "narrow"
	ActionWiden     = "widen"
	ActionX86Expand = "x86_expand"
)

func enc(recipe string, bits EncodingBits) encoding.Entry {
	return encoding.Entry{Recipe: recipe, Bits: bits.Uint16()}
}

// isaBit numbers a setting in the predicate view: shared flags first, x86 flags after them.
func isaBit(name string) uint16 {
	shared := isa.SharedTemplate()
	if bit, ok := shared.Bit(name); ok {
		return bit
	}
	return uint16(shared.ByteSize()*8) + template.MustBit(name)
}

// requires guards entries with an ISA setting.
func requires(setting string, entries ...encoding.Entry) []encoding.Entry {
	bit := isaBit(setting)
	for i := range entries {
		entries[i].Isa = encoding.When(bit)
	}
	return entries
}

// onlyIf guards entries with an instruction predicate.
func onlyIf(p predicates.ID, entries ...encoding.Entry) []encoding.Entry {
	for i := range entries {
		entries[i].Inst = encoding.When(uint16(p))
	}
	return entries
}

// intOps lists the integer encodings of one width. 64-bit operations use the REX.W recipes,
// 32-bit ones the plain recipes with an inferred REX prefix.
func intOps(t *encoding.TypeBuilder, wide bool) {
	r := func(name string) string {
		if wide {
			return "Rex" + name
		}
		return name
	}
	b := func(bits EncodingBits) EncodingBits {
		if wide {
			return bits.w()
		}
		return bits
	}

	t.Encode(ir.Iadd, enc(r("Op1rr"), b(op1(0x01)))).
		Encode(ir.Isub, enc(r("Op1rr"), b(op1(0x29)))).
		Encode(ir.Band, enc(r("Op1rr"), b(op1(0x21)))).
		Encode(ir.Bor, enc(r("Op1rr"), b(op1(0x09)))).
		Encode(ir.Bxor, enc(r("Op1rr"), b(op1(0x31)))).
		Encode(ir.Imul, enc(r("Op2rrx"), b(op2(0xaf)))).
		Encode(ir.Ishl, enc(r("Op1rc"), b(op1(0xd3).rrr(4)))).
		Encode(ir.IaddImm,
			enc(r("Op1r_ib"), b(op1(0x83))),
			enc(r("Op1r_id"), b(op1(0x81)))).
		Encode(ir.X86Udivmodx, enc(r("Op1div"), b(op1(0xf7).rrr(6)))).
		Encode(ir.X86Sdivmodx, enc(r("Op1div"), b(op1(0xf7).rrr(7)))).
		Encode(ir.Copy, enc(r("Op1umr"), b(op1(0x89)))).
		Encode(ir.Icmp, enc(r("Op1icscc"), b(op1(0x39)))).
		Encode(ir.IcmpImm,
			enc(r("Op1icscc_ib"), b(op1(0x83).rrr(7))),
			enc(r("Op1icscc_id"), b(op1(0x81).rrr(7)))).
		Encode(ir.Popcnt, requires("use_popcnt", enc(r("Mp2urm"), b(mp2(PrefixF3, 0xb8))))...).
		Encode(ir.Clz, requires("use_lzcnt", enc(r("Mp2urm"), b(mp2(PrefixF3, 0xbd))))...).
		Encode(ir.Ctz, requires("use_bmi1", enc(r("Mp2urm"), b(mp2(PrefixF3, 0xbc))))...).
		Encode(ir.Load,
			enc(r("Op1ld"), b(op1(0x8b))),
			enc(r("Op1ldDisp8"), b(op1(0x8b))),
			enc(r("Op1ldDisp32"), b(op1(0x8b)))).
		Encode(ir.Store,
			enc(r("Op1st"), b(op1(0x89))),
			enc(r("Op1stDisp8"), b(op1(0x89))),
			enc(r("Op1stDisp32"), b(op1(0x89)))).
		Encode(ir.Brz,
			enc(r("Op1tjccb"), b(op1(0x74))),
			enc(r("Op1tjccd"), b(op2(0x84)))).
		Encode(ir.Brnz,
			enc(r("Op1tjccb"), b(op1(0x75))),
			enc(r("Op1tjccd"), b(op2(0x85))))

	if wide {
		// mov r32 zero-extends, so small constants skip REX.W
		t.Encode(ir.Iconst,
			enc("Op1pu_id", op1(0xb8)),
			enc("RexOp1u_id", op1(0xc7).w()),
			enc("RexOp1pu_iq", op1(0xb8).w()))
		t.Encode(ir.Uextend, append(
			onlyIf(instFromI32, enc("Op1umr", op1(0x89))),
			onlyIf(instFromI8, enc("RexOp2urm", op2(0xb6).w()))...)...)
		t.Encode(ir.FuncAddr,
			enc("RexOp1pcrel_fnaddr8", op1(0x8d).w()),
			enc("RexOp1fnaddr8", op1(0xb8).w()))
	} else {
		t.Encode(ir.Iconst,
			enc("Op1pu_id", op1(0xb8)),
			enc("Op1u_id", op1(0xc7)))
		t.Encode(ir.Uextend, onlyIf(instFromI8, enc("Op2urm", op2(0xb6)))...)
	}
}

func typelessOps(t *encoding.TypeBuilder) {
	t.Encode(ir.Jump,
		enc("Op1jmpb", op1(0xeb)),
		enc("Op1jmpd", op1(0xe9))).
		Encode(ir.Trap, enc("Op2trap", op2(0x0b))).
		Encode(ir.Return, onlyIf(instFewReturns, enc("Op1ret", op1(0xc3)))...).
		Encode(ir.Call,
			enc("Op1call_id", op1(0xe8)),
			enc("Op1call_plt_id", op1(0xe8)))
}

func boolOps(t *encoding.TypeBuilder) {
	t.Encode(ir.Brz,
		enc("Op1tjccb", op1(0x74)),
		enc("Op1tjccd", op2(0x84))).
		Encode(ir.Brnz,
			enc("Op1tjccb", op1(0x75)),
			enc("Op1tjccd", op2(0x85)))
}

// floatOps lists scalar float encodings; p selects single (F3) or double (F2) precision.
func floatOps(t *encoding.TypeBuilder, p Prefix) {
	cmp := op2(0x2e)
	if p == PrefixF2 {
		cmp = mp2(Prefix66, 0x2e)
	}
	t.Encode(ir.Fadd, requires("enable_float", enc("Mp2fa", mp2(p, 0x58)))...).
		Encode(ir.Fmul, requires("enable_float", enc("Mp2fa", mp2(p, 0x59)))...).
		Encode(ir.Fcmp, requires("enable_float", enc("Mp2fcscc", cmp))...)
}

// vectorOps lists SIMD encodings; a zero iadd or fadd leaves that opcode to legalization.
func vectorOps(t *encoding.TypeBuilder, iadd, fadd EncodingBits) {
	t.Encode(ir.Vconst, requires("enable_simd",
		enc("Mp2vconst_optimized", mp2(Prefix66, 0xef)),
		enc("Mp2vconst", op2(0x10)))...)
	if iadd != 0 {
		t.Encode(ir.Iadd, requires("enable_simd", enc("Mp2fa", iadd))...)
	}
	if fadd != 0 {
		t.Encode(ir.Fadd, requires("enable_simd", enc("Mp2fa", fadd))...)
	}
}

// buildTables lays out the encodings of both CPU modes.
func buildTables(catalog *recipe.Catalog) (*encoding.Tables, error) {
	b := encoding.NewBuilder(catalog)
	for _, a := range []string{ActionExpand, ActionNarrow, ActionWiden, ActionX86Expand} {
		b.Action(a)
	}

	m64 := b.Mode(ModeI64, ActionExpand)
	typelessOps(m64.Type(ir.Invalid, ActionExpand))
	boolOps(m64.Type(ir.B1, ActionExpand))
	m64.Type(ir.I8, ActionWiden)
	m64.Type(ir.I16, ActionWiden)
	intOps(m64.Type(ir.I32, ActionX86Expand), false)
	intOps(m64.Type(ir.I64, ActionX86Expand), true)
	floatOps(m64.Type(ir.F32, ActionExpand), PrefixF3)
	floatOps(m64.Type(ir.F64, ActionExpand), PrefixF2)
	vectorOps(m64.Type(ir.I8X16, ActionExpand), 0, 0)
	vectorOps(m64.Type(ir.I32X4, ActionExpand), mp2(Prefix66, 0xfe), 0)
	vectorOps(m64.Type(ir.F32X4, ActionExpand), 0, op2(0x58))

	// 32-bit mode has no 64-bit integers and no REX prefix.
	m32 := b.Mode(ModeI32, ActionNarrow)
	typelessOps(m32.Type(ir.Invalid, ActionExpand))
	boolOps(m32.Type(ir.B1, ActionExpand))
	m32.Type(ir.I8, ActionWiden)
	m32.Type(ir.I16, ActionWiden)
	intOps(m32.Type(ir.I32, ActionX86Expand), false)
	floatOps(m32.Type(ir.F32, ActionExpand), PrefixF3)
	floatOps(m32.Type(ir.F64, ActionExpand), PrefixF2)

	return b.Build()
}
