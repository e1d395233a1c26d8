package x86

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/eigerco/isel/internal/encoding"
	"github.com/eigerco/isel/internal/ir"
	"github.com/eigerco/isel/internal/isa"
	"github.com/eigerco/isel/internal/predicates"
	"github.com/eigerco/isel/internal/recipe"
	"github.com/eigerco/isel/internal/regs"
	"github.com/eigerco/isel/internal/settings"
)

type testingT interface {
	require.TestingT
	Helper()
}

func newTestIsa(t testingT, mode string, preset string, shared ...string) *Isa {
	t.Helper()
	sb := isa.NewSharedBuilder()
	for _, name := range shared {
		require.NoError(t, sb.Set(name, "true"))
	}
	s, err := isa.NewShared(sb)
	require.NoError(t, err)

	b := NewBuilder()
	if preset != "" {
		require.NoError(t, b.ApplyPreset(preset))
	}
	f, err := NewFlags(b)
	require.NoError(t, err)

	i, err := New(s, f, mode)
	require.NoError(t, err)
	return i
}

func recipeName(i *Isa, enc encoding.Encoding) string {
	return i.Catalog().Name(enc.Recipe)
}

func TestIaddI64(t *testing.T) {
	i := newTestIsa(t, ModeI64, "")
	fn := ir.NewFunction("f")
	a, b := fn.DefineValue(ir.I64), fn.DefineValue(ir.I64)

	enc, _, ok := i.Encode(&ir.Binary{Op: ir.Iadd, Args: [2]ir.Value{a, b}}, ir.I64, fn)
	require.True(t, ok)
	assert.Equal(t, "RexOp1rr", recipeName(i, enc))
	assert.Equal(t, uint16(0x8001), enc.Bits)
	assert.Equal(t, "RexOp1rr(REX.W 01)", i.Describe(enc))
}

func TestImulI8Widens(t *testing.T) {
	i := newTestIsa(t, ModeI64, "")
	fn := ir.NewFunction("f")
	a, b := fn.DefineValue(ir.I8), fn.DefineValue(ir.I8)

	enc, action, ok := i.Encode(&ir.Binary{Op: ir.Imul, Args: [2]ir.Value{a, b}}, ir.I8, fn)
	assert.False(t, ok)
	assert.Equal(t, encoding.Encoding{}, enc)
	assert.Equal(t, ActionWiden, i.ActionName(action))
}

func TestI64InI32ModeNarrows(t *testing.T) {
	i := newTestIsa(t, ModeI32, "")
	fn := ir.NewFunction("f")
	a, b := fn.DefineValue(ir.I64), fn.DefineValue(ir.I64)

	_, action, ok := i.Encode(&ir.Binary{Op: ir.Iadd, Args: [2]ir.Value{a, b}}, ir.I64, fn)
	assert.False(t, ok)
	assert.Equal(t, ActionNarrow, i.ActionName(action))

	enc, _, ok := i.Encode(&ir.Binary{Op: ir.Iadd, Args: [2]ir.Value{a, b}}, ir.I32, fn)
	require.True(t, ok)
	assert.Equal(t, "Op1rr", recipeName(i, enc))
	assert.Equal(t, uint16(0x0001), enc.Bits)
}

func TestRexOp1rIbSize(t *testing.T) {
	c, err := Recipes()
	require.NoError(t, err)

	rex, ok := c.ByName("RexOp1r_ib")
	require.True(t, ok)
	assert.Equal(t, uint8(4), c.Sizing(rex).Base)
	plain := recipe.Placement{
		Ins:  []recipe.Location{recipe.InReg(RCX)},
		Outs: []recipe.Location{recipe.InReg(RCX)},
	}
	assert.Equal(t, 4, c.EncodedSize(rex, plain))
	require.NoError(t, c.CheckPlacement(rex, plain))

	short, ok := c.ByName("Op1r_ib")
	require.True(t, ok)
	assert.Equal(t, 3, c.EncodedSize(short, plain))
	extended := recipe.Placement{
		Ins:  []recipe.Location{recipe.InReg(R9)},
		Outs: []recipe.Location{recipe.InReg(R9)},
	}
	assert.Equal(t, 4, c.EncodedSize(short, extended))
	assert.Equal(t, 4, c.EncodedSize(rex, extended))
}

func TestMemoryEncodedSize(t *testing.T) {
	c, err := Recipes()
	require.NoError(t, err)

	load := func(addr, dst regs.Unit) recipe.Placement {
		return recipe.Placement{Ins: []recipe.Location{recipe.InReg(addr)}, Outs: []recipe.Location{recipe.InReg(dst)}}
	}
	store := func(data, addr regs.Unit) recipe.Placement {
		return recipe.Placement{Ins: []recipe.Location{recipe.InReg(data), recipe.InReg(addr)}}
	}
	tests := []struct {
		name   string
		recipe string
		p      recipe.Placement
		want   int // length of the instruction bytes in the comment
	}{
		{"mov ecx,[rax]", "Op1ld", load(RAX, RCX), 2},                   // 8b 08
		{"mov r9d,[rax]", "Op1ld", load(RAX, R9), 3},                    // 44 8b 08
		{"mov eax,[r13+0]", "Op1ld", load(R13, RAX), 4},                 // 41 8b 45 00
		{"mov eax,[rsp]", "Op1ld", load(RSP, RAX), 3},                   // 8b 04 24
		{"mov rax,[r13+0]", "RexOp1ld", load(R13, RAX), 4},              // 49 8b 45 00
		{"mov r10d,[r12+8]", "Op1ldDisp8", load(R12, R10), 5},           // 45 8b 54 24 08
		{"mov eax,[rbx+disp32]", "Op1ldDisp32", load(RBX, RAX), 6},      // 8b 83 imm32
		{"mov [rax],r8d", "Op1st", store(R8, RAX), 3},                   // 44 89 00
		{"mov [rbp+0],eax", "Op1st", store(RAX, RBP), 3},                // 89 45 00
		{"mov [r12+8],eax", "Op1stDisp8", store(RAX, R12), 5},           // 41 89 44 24 08
		{"mov [rsp+disp32],eax", "Op1stDisp32", store(RAX, RSP), 7},     // 89 84 24 imm32
		{"mov [r9+disp32],r11", "RexOp1stDisp32", store(R11, R9), 7},    // 4d 89 99 imm32
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			idx, ok := c.ByName(tc.recipe)
			require.True(t, ok, tc.recipe)
			assert.Equal(t, tc.want, c.EncodedSize(idx, tc.p))
		})
	}
}

func TestDivConstraints(t *testing.T) {
	c, err := Recipes()
	require.NoError(t, err)

	for _, name := range []string{"Op1div", "RexOp1div"} {
		idx, ok := c.ByName(name)
		require.True(t, ok, name)
		k := c.Constraints(idx)
		assert.Equal(t, []recipe.Constraint{recipe.FixedTied(RAX), recipe.FixedTied(RDX), recipe.Reg(GPR8)}, k.Ins, name)
		assert.Equal(t, []recipe.Constraint{recipe.FixedTied(RAX), recipe.FixedTied(RDX)}, k.Outs, name)
		assert.True(t, k.FixedIns)
		assert.True(t, k.FixedOuts)
		assert.True(t, k.TiedOps)
		assert.True(t, k.ClobbersFlags)

		p := recipe.Placement{
			Ins:  []recipe.Location{recipe.InReg(RAX), recipe.InReg(RDX), recipe.InReg(RSI)},
			Outs: []recipe.Location{recipe.InReg(RAX), recipe.InReg(RDX)},
		}
		assert.NoError(t, c.CheckPlacement(idx, p))
		p.Ins[2] = recipe.InReg(R10)
		assert.ErrorIs(t, c.CheckPlacement(idx, p), recipe.ErrPlacement)
	}
}

func TestEncodeSelection(t *testing.T) {
	fn := ir.NewFunction("f")
	i64a, i64b := fn.DefineValue(ir.I64), fn.DefineValue(ir.I64)
	i32, i8, i16 := fn.DefineValue(ir.I32), fn.DefineValue(ir.I8), fn.DefineValue(ir.I16)
	f64a, f64b := fn.DefineValue(ir.F64), fn.DefineValue(ir.F64)
	zeros := fn.DefineConstant(make([]byte, 16))
	ones := fn.DefineConstant([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})
	local, extern := ir.FuncRef(0), ir.FuncRef(1)
	fn.Colocated[local] = true

	tests := []struct {
		name   string
		preset string
		shared []string
		inst   ir.InstructionData
		ctrl   ir.Type
		recipe string
		action string
	}{
		{name: "small imm", inst: &ir.BinaryImm{Op: ir.IaddImm, Arg: i64a, Imm: 100}, ctrl: ir.I64, recipe: "RexOp1r_ib"},
		{name: "word imm", inst: &ir.BinaryImm{Op: ir.IaddImm, Arg: i64a, Imm: -1000}, ctrl: ir.I64, recipe: "RexOp1r_id"},
		{name: "huge imm", inst: &ir.BinaryImm{Op: ir.IaddImm, Arg: i64a, Imm: 1 << 40}, ctrl: ir.I64, action: ActionX86Expand},
		{name: "iconst u32", inst: &ir.UnaryImm{Op: ir.Iconst, Imm: 0xffffffff}, ctrl: ir.I64, recipe: "Op1pu_id"},
		{name: "iconst s32", inst: &ir.UnaryImm{Op: ir.Iconst, Imm: -5}, ctrl: ir.I64, recipe: "RexOp1u_id"},
		{name: "iconst 64", inst: &ir.UnaryImm{Op: ir.Iconst, Imm: 1 << 40}, ctrl: ir.I64, recipe: "RexOp1pu_iq"},
		{name: "iconst negative i32", inst: &ir.UnaryImm{Op: ir.Iconst, Imm: -5}, ctrl: ir.I32, recipe: "Op1u_id"},
		{name: "udiv is expanded", inst: &ir.Binary{Op: ir.Udiv, Args: [2]ir.Value{i64a, i64b}}, ctrl: ir.I64, action: ActionX86Expand},
		{name: "udivmodx", inst: &ir.Ternary{Op: ir.X86Udivmodx, Args: [3]ir.Value{i64a, i64b, i64a}}, ctrl: ir.I64, recipe: "RexOp1div"},
		{name: "popcnt without feature", inst: &ir.Unary{Op: ir.Popcnt, Arg: i64a}, ctrl: ir.I64, action: ActionX86Expand},
		{name: "popcnt nehalem", preset: "nehalem", inst: &ir.Unary{Op: ir.Popcnt, Arg: i64a}, ctrl: ir.I64, recipe: "RexMp2urm"},
		{name: "lzcnt nehalem", preset: "nehalem", inst: &ir.Unary{Op: ir.Clz, Arg: i64a}, ctrl: ir.I64, action: ActionX86Expand},
		{name: "lzcnt haswell", preset: "haswell", inst: &ir.Unary{Op: ir.Clz, Arg: i32}, ctrl: ir.I32, recipe: "Mp2urm"},
		{name: "tzcnt haswell", preset: "haswell", inst: &ir.Unary{Op: ir.Ctz, Arg: i64a}, ctrl: ir.I64, recipe: "RexMp2urm"},
		{name: "uextend i32", inst: &ir.Unary{Op: ir.Uextend, Arg: i32}, ctrl: ir.I64, recipe: "Op1umr"},
		{name: "uextend i8", inst: &ir.Unary{Op: ir.Uextend, Arg: i8}, ctrl: ir.I64, recipe: "RexOp2urm"},
		{name: "uextend i16", inst: &ir.Unary{Op: ir.Uextend, Arg: i16}, ctrl: ir.I64, action: ActionX86Expand},
		{name: "load", inst: &ir.LoadData{Op: ir.Load, Arg: i64a}, ctrl: ir.I64, recipe: "RexOp1ld"},
		{name: "load disp8", inst: &ir.LoadData{Op: ir.Load, Arg: i64a, Offset: -8}, ctrl: ir.I64, recipe: "RexOp1ldDisp8"},
		{name: "load disp32", inst: &ir.LoadData{Op: ir.Load, Arg: i64a, Offset: 4096}, ctrl: ir.I32, recipe: "Op1ldDisp32"},
		{name: "store disp8", inst: &ir.StoreData{Op: ir.Store, Args: [2]ir.Value{i32, i64a}, Offset: 16}, ctrl: ir.I32, recipe: "Op1stDisp8"},
		{name: "icmp imm", inst: &ir.IntCompareImm{Op: ir.IcmpImm, Cond: ir.IntSignedLessThan, Arg: i64a, Imm: 3}, ctrl: ir.I64, recipe: "RexOp1icscc_ib"},
		{name: "brz b1", inst: &ir.Branch{Op: ir.Brz, Arg: i8}, ctrl: ir.B1, recipe: "Op1tjccb"},
		{name: "jump", inst: &ir.JumpData{Op: ir.Jump}, ctrl: ir.Invalid, recipe: "Op1jmpb"},
		{name: "trap", inst: &ir.Nullary{Op: ir.Trap}, ctrl: ir.Invalid, recipe: "Op2trap"},
		{name: "return", inst: &ir.MultiAry{Op: ir.Return, Args: []ir.Value{i64a}}, ctrl: ir.Invalid, recipe: "Op1ret"},
		{name: "return many", inst: &ir.MultiAry{Op: ir.Return, Args: []ir.Value{i64a, i64b, i32}}, ctrl: ir.Invalid, action: ActionExpand},
		{name: "call local", inst: &ir.CallData{Op: ir.Call, Callee: local}, ctrl: ir.Invalid, recipe: "Op1call_id"},
		{name: "call extern", inst: &ir.CallData{Op: ir.Call, Callee: extern}, ctrl: ir.Invalid, recipe: "Op1call_plt_id"},
		{name: "fnaddr local", inst: &ir.FuncAddrData{Op: ir.FuncAddr, Callee: local}, ctrl: ir.I64, recipe: "RexOp1pcrel_fnaddr8"},
		{name: "fnaddr extern", inst: &ir.FuncAddrData{Op: ir.FuncAddr, Callee: extern}, ctrl: ir.I64, recipe: "RexOp1fnaddr8"},
		{name: "fadd", inst: &ir.Binary{Op: ir.Fadd, Args: [2]ir.Value{f64a, f64b}}, ctrl: ir.F64, recipe: "Mp2fa"},
		{name: "fcmp gt", inst: &ir.FloatCompare{Op: ir.Fcmp, Cond: ir.FloatGreaterThan, Args: [2]ir.Value{f64a, f64b}}, ctrl: ir.F64, recipe: "Mp2fcscc"},
		{name: "fcmp eq", inst: &ir.FloatCompare{Op: ir.Fcmp, Cond: ir.FloatEqual, Args: [2]ir.Value{f64a, f64b}}, ctrl: ir.F64, action: ActionExpand},
		{name: "vconst without simd", inst: &ir.UnaryConst{Op: ir.Vconst, Constant: zeros}, ctrl: ir.I32X4, action: ActionExpand},
		{name: "vconst zeros", shared: []string{"enable_simd"}, inst: &ir.UnaryConst{Op: ir.Vconst, Constant: zeros}, ctrl: ir.I32X4, recipe: "Mp2vconst_optimized"},
		{name: "vconst", shared: []string{"enable_simd"}, inst: &ir.UnaryConst{Op: ir.Vconst, Constant: ones}, ctrl: ir.I8X16, recipe: "Mp2vconst"},
		{name: "i16 widens", inst: &ir.Binary{Op: ir.Iadd, Args: [2]ir.Value{i16, i16}}, ctrl: ir.I16, action: ActionWiden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			i := newTestIsa(t, ModeI64, tc.preset, tc.shared...)
			enc, action, ok := i.Encode(tc.inst, tc.ctrl, fn)
			if tc.recipe == "" {
				require.False(t, ok, "unexpected %s", i.Describe(enc))
				assert.Equal(t, tc.action, i.ActionName(action))
				return
			}
			require.True(t, ok, "got action %s", i.ActionName(action))
			assert.Equal(t, tc.recipe, recipeName(i, enc))
			assert.Equal(t, tc.inst.Format(), i.Catalog().Recipe(enc.Recipe).Format)
		})
	}
}

func TestFloatNeedsSetting(t *testing.T) {
	sb := isa.NewSharedBuilder()
	require.NoError(t, sb.Set("enable_float", "false"))
	s, err := isa.NewShared(sb)
	require.NoError(t, err)
	f, err := NewFlags(NewBuilder())
	require.NoError(t, err)
	i, err := New(s, f, ModeI64)
	require.NoError(t, err)

	fn := ir.NewFunction("f")
	a := fn.DefineValue(ir.F32)
	_, action, ok := i.Encode(&ir.Binary{Op: ir.Fadd, Args: [2]ir.Value{a, a}}, ir.F32, fn)
	assert.False(t, ok)
	assert.Equal(t, ActionExpand, i.ActionName(action))
}

func TestNewRejects(t *testing.T) {
	f, err := NewFlags(NewBuilder())
	require.NoError(t, err)
	_, err = New(isa.DefaultShared(), f, "I16")
	assert.ErrorIs(t, err, settings.ErrBadValue)
	_, err = New(isa.Shared{}, f, ModeI64)
	assert.ErrorIs(t, err, settings.ErrBadValue)
	_, err = NewFlags(isa.NewSharedBuilder())
	assert.ErrorIs(t, err, settings.ErrBadValue)
}

// Every data word of the generated tables must name a recipe of the opcode's format, and its
// recipe predicate must be bound to the same format.
func TestGeneratedTablesAreConsistent(t *testing.T) {
	tables, err := GeneratedTables()
	require.NoError(t, err)
	lim, err := Limits()
	require.NoError(t, err)
	require.NoError(t, tables.Validate(lim))

	c, err := Recipes()
	require.NoError(t, err)
	for _, m := range tables.Modes {
		for _, l1 := range m.Level1 {
			if l1.Empty() {
				continue
			}
			for _, l2 := range tables.Level2[l1.Offset : int(l1.Offset)+1<<l1.Log2Len] {
				if l2.Opcode == ir.OpcodeInvalid {
					continue
				}
				ops, err := encoding.DecodeRegion(tables.List, l2.Offset)
				require.NoError(t, err)
				for _, op := range ops {
					if op.Kind != encoding.OpData {
						continue
					}
					r := c.Recipe(op.Recipe)
					assert.Equal(t, l2.Opcode.Format(), r.Format, "%s %s.%s uses %s", m.Name, l1.Type, l2.Opcode, r.Name)
					assert.Equal(t, r.Predicate != predicates.None, op.Guarded, r.Name)
				}
			}
		}
	}
	stats := tables.Stats()
	assert.Equal(t, 2, stats.Modes)
	assert.Equal(t, 4, stats.Actions)
}

func TestStoredTables(t *testing.T) {
	tables, err := GeneratedTables()
	require.NoError(t, err)
	blob, err := tables.MarshalBinary()
	require.NoError(t, err)
	decoded, err := encoding.UnmarshalTables(blob)
	require.NoError(t, err)

	f, err := NewFlags(NewBuilder())
	require.NoError(t, err)
	i, err := NewWithTables(decoded, isa.DefaultShared(), f, ModeI64)
	require.NoError(t, err)

	fn := ir.NewFunction("f")
	a := fn.DefineValue(ir.I64)
	enc, _, ok := i.Encode(&ir.Binary{Op: ir.Iadd, Args: [2]ir.Value{a, a}}, ir.I64, fn)
	require.True(t, ok)
	assert.Equal(t, uint16(0x8001), enc.Bits)

	decoded.List[0] = 0x1fff | 0x8000
	_, err = NewWithTables(decoded, isa.DefaultShared(), f, ModeI64)
	assert.Error(t, err)
}

// Any instruction whose data matches its opcode's format encodes or legalizes without reaching a
// predicate bound to another format.
func TestEncodeNeverBreaksContract(t *testing.T) {
	presets := []string{"baseline", "nehalem", "haswell"}
	types := []ir.Type{ir.Invalid, ir.B1, ir.I8, ir.I16, ir.I32, ir.I64, ir.F32, ir.F64, ir.I8X16, ir.I32X4, ir.F32X4}
	rapid.Check(t, func(rt *rapid.T) {
		mode := rapid.SampledFrom([]string{ModeI64, ModeI32}).Draw(rt, "mode")
		simd := rapid.Bool().Draw(rt, "simd")
		var shared []string
		if simd {
			shared = append(shared, "enable_simd")
		}
		i := newTestIsa(rt, mode, rapid.SampledFrom(presets).Draw(rt, "preset"), shared...)

		fn := ir.NewFunction("f")
		ty := rapid.SampledFrom(types).Draw(rt, "ctrl")
		argTy := rapid.SampledFrom(types[1:]).Draw(rt, "argType")
		v := fn.DefineValue(argTy)
		fn.Colocated[1] = true
		c := fn.DefineConstant(rapid.SliceOfN(rapid.Byte(), 0, 16).Draw(rt, "const"))
		op := rapid.SampledFrom(ir.Opcodes()).Draw(rt, "op")
		imm := rapid.Int64().Draw(rt, "imm")
		inst := instOf(op, v, imm, c, ir.FuncRef(rapid.Uint32Range(0, 2).Draw(rt, "callee")))

		defer func() {
			if r := recover(); r != nil {
				var cv *predicates.ContractViolation
				if err, ok := r.(error); ok && errors.As(err, &cv) {
					rt.Fatalf("contract violation: %v", cv)
				}
				panic(r)
			}
		}()
		enc, action, ok := i.Encode(inst, ty, fn)
		if ok {
			if got := i.Catalog().Recipe(enc.Recipe).Format; got != op.Format() {
				rt.Fatalf("%s encoded with a %s recipe", op, got)
			}
		} else if i.ActionName(action) == "" {
			rt.Fatalf("miss without a legalize action")
		}
	})
}

func instOf(op ir.Opcode, v ir.Value, imm int64, c ir.Constant, callee ir.FuncRef) ir.InstructionData {
	switch op.Format() {
	case ir.FormatUnary:
		return &ir.Unary{Op: op, Arg: v}
	case ir.FormatUnaryImm:
		return &ir.UnaryImm{Op: op, Imm: imm}
	case ir.FormatUnaryConst:
		return &ir.UnaryConst{Op: op, Constant: c}
	case ir.FormatBinary:
		return &ir.Binary{Op: op, Args: [2]ir.Value{v, v}}
	case ir.FormatBinaryImm:
		return &ir.BinaryImm{Op: op, Arg: v, Imm: imm}
	case ir.FormatIntCompare:
		return &ir.IntCompare{Op: op, Cond: ir.IntCC(uint64(imm) % 10), Args: [2]ir.Value{v, v}}
	case ir.FormatIntCompareImm:
		return &ir.IntCompareImm{Op: op, Cond: ir.IntUnsignedLessThan, Arg: v, Imm: imm}
	case ir.FormatFloatCompare:
		return &ir.FloatCompare{Op: op, Cond: ir.FloatCC(uint64(imm) % 14), Args: [2]ir.Value{v, v}}
	case ir.FormatBranch:
		return &ir.Branch{Op: op, Arg: v}
	case ir.FormatJump:
		return &ir.JumpData{Op: op}
	case ir.FormatMultiAry:
		return &ir.MultiAry{Op: op, Args: make([]ir.Value, uint64(imm)%4)}
	case ir.FormatCall:
		return &ir.CallData{Op: op, Callee: callee}
	case ir.FormatFuncAddr:
		return &ir.FuncAddrData{Op: op, Callee: callee}
	case ir.FormatLoad:
		return &ir.LoadData{Op: op, Arg: v, Offset: int32(imm)}
	case ir.FormatStore:
		return &ir.StoreData{Op: op, Args: [2]ir.Value{v, v}, Offset: int32(imm)}
	case ir.FormatTernary:
		return &ir.Ternary{Op: op, Args: [3]ir.Value{v, v, v}}
	}
	return &ir.Nullary{Op: op}
}
