package recipe

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/eigerco/isel/internal/ir"
	"github.com/eigerco/isel/internal/predicates"
	"github.com/eigerco/isel/internal/regs"
)

const (
	gpr regs.ClassIndex = iota
	gpr8
	flag
)

func testRegisters(t testing.TB) *regs.Info {
	t.Helper()
	banks := []regs.Bank{
		{Name: "IntRegs", First: 0, Units: 16, Prefix: "r",
			Names: []string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi"}},
		{Name: "FlagRegs", First: 16, Units: 1, Names: []string{"rflags"}},
	}
	classes := []regs.Class{
		{Name: "GPR", Index: gpr, Width: 1, Bank: 0, Subclasses: 1<<gpr | 1<<gpr8, Mask: regs.MaskRange(0, 16)},
		{Name: "GPR8", Index: gpr8, Width: 1, Bank: 0, Subclasses: 1 << gpr8, Mask: regs.MaskRange(0, 8)},
		{Name: "FLAG", Index: flag, Width: 1, Bank: 1, Subclasses: 1 << flag, Mask: regs.MaskOf(16)},
	}
	info, err := regs.NewInfo(banks, classes)
	require.NoError(t, err)
	return info
}

func testRecipes() []Recipe {
	return []Recipe{
		{
			Name:   "rr",
			Format: ir.FormatBinary,
			Constraints: Constraints{
				Ins:           []Constraint{Reg(gpr), Reg(gpr)},
				Outs:          []Constraint{Tied(0)},
				TiedOps:       true,
				ClobbersFlags: true,
			},
			Sizing:    Sizing{Base: 2, Rule: SizeInferredRexIn0In1},
			Predicate: predicates.None,
		},
		{
			Name:   "r_ib",
			Format: ir.FormatBinaryImm,
			Constraints: Constraints{
				Ins:     []Constraint{Reg(gpr)},
				Outs:    []Constraint{Tied(0)},
				TiedOps: true,
			},
			Sizing:    Sizing{Base: 4, Rule: SizeBase},
			Predicate: 0,
		},
		{
			Name:   "div",
			Format: ir.FormatBinary,
			Constraints: Constraints{
				Ins:      []Constraint{FixedTied(0), FixedTied(2), Reg(gpr8)},
				Outs:     []Constraint{FixedTied(0), FixedTied(2)},
				FixedIns: true, FixedOuts: true, TiedOps: true, ClobbersFlags: true,
			},
			Sizing:    Sizing{Base: 2, Rule: SizeInferredRexIn0},
			Predicate: predicates.None,
		},
		{
			Name:   "ld",
			Format: ir.FormatLoad,
			Constraints: Constraints{
				Ins:  []Constraint{Reg(gpr)},
				Outs: []Constraint{Reg(gpr)},
			},
			Sizing:    Sizing{Base: 2, Rule: SizeMaybeSibOrOffsetIn0},
			Predicate: predicates.None,
		},
		{
			Name:   "spill",
			Format: ir.FormatUnary,
			Constraints: Constraints{
				Ins:  []Constraint{Reg(gpr)},
				Outs: []Constraint{Stack(gpr)},
			},
			Sizing:    Sizing{Base: 3, Rule: SizeMaybeSibIn1},
			Predicate: predicates.None,
		},
		{
			Name:        "jmpb",
			Format:      ir.FormatJump,
			Constraints: Constraints{},
			Sizing:      Sizing{Base: 2, BranchRange: &BranchRange{Origin: 2, Bits: 8}},
			Predicate:   predicates.None,
		},
	}
}

func newTestCatalog(t testing.TB) *Catalog {
	t.Helper()
	preds := predicates.NewTable(predicates.ImmFitsSigned(ir.FormatBinaryImm, 8))
	c, err := NewCatalog(testRegisters(t), preds, testRecipes())
	require.NoError(t, err)
	return c
}

func TestCatalogLookup(t *testing.T) {
	c := newTestCatalog(t)
	assert.Equal(t, 6, c.Len())

	idx, ok := c.ByName("div")
	require.True(t, ok)
	assert.Equal(t, "div", c.Name(idx))
	assert.Equal(t, []Constraint{FixedTied(0), FixedTied(2), Reg(gpr8)}, c.Constraints(idx).Ins)
	assert.Equal(t, KindFixedTied, c.Constraints(idx).Ins[0].Kind)
	assert.Equal(t, regs.Unit(2), c.Constraints(idx).Ins[1].Unit)

	_, ok = c.ByName("nope")
	assert.False(t, ok)

	jmp, _ := c.ByName("jmpb")
	br, ok := c.BranchRange(jmp)
	require.True(t, ok)
	assert.Equal(t, BranchRange{Origin: 2, Bits: 8}, br)
	_, ok = c.BranchRange(idx)
	assert.False(t, ok)
}

func TestNewCatalogValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]Recipe)
		want   error
	}{
		{"duplicate", func(r []Recipe) { r[1].Name = "rr" }, ErrDuplicateRecipe},
		{"summary flags", func(r []Recipe) { r[2].Constraints.FixedOuts = false }, ErrInconsistent},
		{"unknown class", func(r []Recipe) { r[3].Constraints.Outs[0] = Reg(9) }, ErrBadConstraint},
		{"unknown unit", func(r []Recipe) { r[2].Constraints.Ins[0] = FixedTied(60) }, ErrBadConstraint},
		{"tied past inputs", func(r []Recipe) { r[0].Constraints.Outs[0] = Tied(5) }, ErrBadConstraint},
		{"predicate format", func(r []Recipe) { r[0].Predicate = 0 }, ErrBadPredicate},
		{"missing predicate", func(r []Recipe) { r[1].Predicate = 4 }, ErrBadPredicate},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recipes := testRecipes()
			tc.mutate(recipes)
			preds := predicates.NewTable(predicates.ImmFitsSigned(ir.FormatBinaryImm, 8))
			_, err := NewCatalog(testRegisters(t), preds, recipes)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEncodedSize(t *testing.T) {
	c := newTestCatalog(t)
	tests := []struct {
		recipe string
		p      Placement
		want   int
	}{
		{"r_ib", Placement{Ins: []Location{InReg(0)}, Outs: []Location{InReg(0)}}, 4},
		{"r_ib", Placement{Ins: []Location{InReg(12)}, Outs: []Location{InReg(12)}}, 4},
		{"rr", Placement{Ins: []Location{InReg(0), InReg(1)}}, 2},
		{"rr", Placement{Ins: []Location{InReg(0), InReg(9)}}, 3},
		{"div", Placement{Ins: []Location{InReg(0), InReg(2), InReg(3)}}, 2},
		{"ld", Placement{Ins: []Location{InReg(0)}}, 2},
		{"ld", Placement{Ins: []Location{InReg(4)}}, 3},
		{"ld", Placement{Ins: []Location{InReg(13)}}, 3},
		{"spill", Placement{Ins: []Location{InReg(0), InReg(12)}}, 4},
		{"spill", Placement{Ins: []Location{InReg(0), OnStack(4)}}, 3},
	}
	for _, tc := range tests {
		idx, ok := c.ByName(tc.recipe)
		require.True(t, ok)
		assert.Equal(t, tc.want, c.EncodedSize(idx, tc.p), "%s %+v", tc.recipe, tc.p)
	}
}

func TestEncodedSizeNeverBelowBase(t *testing.T) {
	c := newTestCatalog(t)
	rapid.Check(t, func(t *rapid.T) {
		idx := Index(rapid.IntRange(0, c.Len()-1).Draw(t, "recipe"))
		loc := rapid.Custom(func(t *rapid.T) Location {
			if rapid.Bool().Draw(t, "stack") {
				return OnStack(rapid.Int32().Draw(t, "slot"))
			}
			return InReg(regs.Unit(rapid.IntRange(0, 16).Draw(t, "unit")))
		})
		p := Placement{
			Ins:  rapid.SliceOfN(loc, 0, 3).Draw(t, "ins"),
			Outs: rapid.SliceOfN(loc, 0, 2).Draw(t, "outs"),
		}
		size := c.EncodedSize(idx, p)
		if base := int(c.Sizing(idx).Base); size < base {
			t.Fatalf("%s: size %d below base %d", c.Name(idx), size, base)
		}
	})
}

func TestCheckPlacement(t *testing.T) {
	c := newTestCatalog(t)
	tests := []struct {
		name   string
		recipe string
		p      Placement
		want   error
	}{
		{"tied ok", "rr", Placement{Ins: []Location{InReg(3), InReg(9)}, Outs: []Location{InReg(3)}}, nil},
		{"tied broken", "rr", Placement{Ins: []Location{InReg(3), InReg(9)}, Outs: []Location{InReg(9)}}, ErrPlacement},
		{"arity", "rr", Placement{Ins: []Location{InReg(3)}, Outs: []Location{InReg(3)}}, ErrOperandCount},
		{"fixed ok", "div", Placement{Ins: []Location{InReg(0), InReg(2), InReg(6)}, Outs: []Location{InReg(0), InReg(2)}}, nil},
		{"fixed wrong unit", "div", Placement{Ins: []Location{InReg(1), InReg(2), InReg(6)}, Outs: []Location{InReg(0), InReg(2)}}, ErrPlacement},
		{"subclass escape", "div", Placement{Ins: []Location{InReg(0), InReg(2), InReg(10)}, Outs: []Location{InReg(0), InReg(2)}}, ErrPlacement},
		{"stack ok", "spill", Placement{Ins: []Location{InReg(1)}, Outs: []Location{OnStack(8)}}, nil},
		{"stack in reg", "spill", Placement{Ins: []Location{InReg(1)}, Outs: []Location{InReg(1)}}, ErrPlacement},
		{"reg on stack", "ld", Placement{Ins: []Location{OnStack(0)}, Outs: []Location{InReg(1)}}, ErrPlacement},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			idx, ok := c.ByName(tc.recipe)
			require.True(t, ok)
			err := c.CheckPlacement(idx, tc.p)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestBranchRange(t *testing.T) {
	br := BranchRange{Origin: 2, Bits: 8}
	assert.True(t, br.Contains(100, 102+127))
	assert.False(t, br.Contains(100, 102+128))
	assert.True(t, br.Contains(200, 202-128))
	assert.False(t, br.Contains(200, 202-129))
	assert.False(t, br.Contains(math.MaxUint32, 0))

	wide := BranchRange{Origin: 6, Bits: 32}
	assert.False(t, wide.Contains(math.MaxUint32-10, 0))
	assert.True(t, wide.Contains(math.MaxInt32, 6))
	assert.True(t, wide.Contains(0, math.MaxInt32))
	assert.False(t, wide.Contains(0, math.MaxUint32))
}

func TestSummarize(t *testing.T) {
	k := Constraints{
		Ins:  []Constraint{FixedReg(1), Reg(gpr)},
		Outs: []Constraint{Tied(1)},
	}.Summarize()
	assert.True(t, k.FixedIns)
	assert.False(t, k.FixedOuts)
	assert.True(t, k.TiedOps)
	assert.Equal(t, "fixed(1)", k.Ins[0].String())
	assert.Equal(t, "tied(1)", k.Outs[0].String())
}

func TestMemoryRulesCountRex(t *testing.T) {
	info := testRegisters(t)
	load := func(addr, dst regs.Unit) Placement {
		return Placement{Ins: []Location{InReg(addr)}, Outs: []Location{InReg(dst)}}
	}
	store := func(data, addr regs.Unit) Placement {
		return Placement{Ins: []Location{InReg(data), InReg(addr)}}
	}
	tests := []struct {
		name string
		rule SizeRule
		p    Placement
		want uint8
	}{
		{"load plain", SizeMaybeSibOrOffsetIn0RexIn0Out0, load(0, 1), 0},
		{"load extended dst", SizeMaybeSibOrOffsetIn0RexIn0Out0, load(0, 9), 1},
		{"load r13 base", SizeMaybeSibOrOffsetIn0RexIn0Out0, load(13, 0), 2},
		{"load r12 base disp", SizeMaybeSibIn0RexIn0Out0, load(12, 10), 2},
		{"load rbp base disp", SizeMaybeSibIn0RexIn0Out0, load(5, 0), 0},
		{"store extended data", SizeMaybeSibOrOffsetIn1RexIn0In1, store(8, 0), 1},
		{"store rsp base", SizeMaybeSibOrOffsetIn1RexIn0In1, store(0, 4), 1},
		{"store r12 base disp", SizeMaybeSibIn1RexIn0In1, store(0, 12), 2},
		{"store rbp base disp", SizeMaybeSibIn1RexIn0In1, store(1, 5), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, additional(tc.rule, info, tc.p))
		})
	}
}

func TestWithoutRex(t *testing.T) {
	tests := []struct {
		rule, want SizeRule
	}{
		{SizeBase, SizeBase},
		{SizeInferredRexIn0, SizeBase},
		{SizeInferredRexIn0In1, SizeBase},
		{SizeInferredRexIn0Out0, SizeBase},
		{SizeMaybeSibIn0, SizeMaybeSibIn0},
		{SizeMaybeSibOrOffsetIn0RexIn0Out0, SizeMaybeSibOrOffsetIn0},
		{SizeMaybeSibIn0RexIn0Out0, SizeMaybeSibIn0},
		{SizeMaybeSibOrOffsetIn1RexIn0In1, SizeMaybeSibOrOffsetIn1},
		{SizeMaybeSibIn1RexIn0In1, SizeMaybeSibIn1},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.rule.WithoutRex(), tc.rule.String())
		assert.NotEqual(t, "unknown", tc.rule.String())
	}
}
