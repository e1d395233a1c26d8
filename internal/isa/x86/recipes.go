package x86

import (
	"github.com/eigerco/isel/internal/ir"
	"github.com/eigerco/isel/internal/predicates"
	"github.com/eigerco/isel/internal/recipe"
	"github.com/eigerco/isel/internal/regs"
)

// Recipe predicates. The order matches recipePredicates.
const (
	predImmS8 predicates.ID = iota
	predImmS32
	predIconstU32
	predIconstS32
	predLoadNoOffset
	predLoadDisp8
	predStoreNoOffset
	predStoreDisp8
	predIcmpImmS8
	predIcmpImmS32
	predFloatFlags
	predZeroConst
	predColocatedCall
	predColocatedAddr
)

func recipePredicates() *predicates.Table {
	return predicates.NewTable(
		predicates.ImmFitsSigned(ir.FormatBinaryImm, 8),
		predicates.ImmFitsSigned(ir.FormatBinaryImm, 32),
		predicates.ImmFitsUnsigned(ir.FormatUnaryImm, 32),
		predicates.ImmFitsSigned(ir.FormatUnaryImm, 32).Named("iconst_fits_s32"),
		predicates.OffsetIsZero(ir.FormatLoad),
		predicates.OffsetFitsSigned(ir.FormatLoad, 8),
		predicates.OffsetIsZero(ir.FormatStore).Named("store_offset_is_zero"),
		predicates.OffsetFitsSigned(ir.FormatStore, 8).Named("store_offset_fits_s8"),
		predicates.ImmFitsSigned(ir.FormatIntCompareImm, 8).Named("icmp_imm_fits_s8"),
		predicates.ImmFitsSigned(ir.FormatIntCompareImm, 32).Named("icmp_imm_fits_s32"),
		// Conditions a single flags test answers after ucomiss/ucomisd.
		predicates.FloatCondIn(ir.FloatOrdered, ir.FloatUnordered, ir.FloatGreaterThan,
			ir.FloatGreaterThanOrEqual, ir.FloatUnorderedOrLessThan, ir.FloatUnorderedOrLessThanOrEqual),
		predicates.ConstantIs("all_zeros", predicates.AllZeros),
		predicates.ColocatedCallee(ir.FormatCall),
		predicates.ColocatedCallee(ir.FormatFuncAddr).Named("colocated_fnaddr"),
	)
}

// Instruction predicates referenced from the encoding lists.
const (
	instFromI32 predicates.ID = iota
	instFromI8
	instFewReturns
)

func instPredicates() *predicates.Table {
	return predicates.NewTable(
		predicates.ArgTypeIs(ir.FormatUnary, 0, ir.I32),
		predicates.ArgTypeIs(ir.FormatUnary, 0, ir.I8),
		predicates.ArgCountAtMost(ir.FormatMultiAry, 2),
	)
}

// def is a recipe under construction.
type def struct {
	recipe.Recipe
}

func op(name string, format ir.Format, base uint8, rule recipe.SizeRule) def {
	return def{recipe.Recipe{
		Name:      name,
		Format:    format,
		Sizing:    recipe.Sizing{Base: base, Rule: rule},
		Predicate: predicates.None,
	}}
}

func (d def) in(c ...recipe.Constraint) def {
	d.Constraints.Ins = c
	return d
}

func (d def) out(c ...recipe.Constraint) def {
	d.Constraints.Outs = c
	return d
}

func (d def) clobbers() def {
	d.Constraints.ClobbersFlags = true
	return d
}

func (d def) when(p predicates.ID) def {
	d.Predicate = p
	return d
}

// branch makes the recipe relaxable; displacements are relative to the end of the instruction.
func (d def) branch(bits uint8) def {
	d.Sizing.BranchRange = &recipe.BranchRange{Origin: d.Sizing.Base, Bits: bits}
	return d
}

type recipeList []recipe.Recipe

func (l *recipeList) add(d def) {
	d.Constraints = d.Constraints.Summarize()
	*l = append(*l, d.Recipe)
}

// withRex adds d and its REX-prefixed twin. The twin is one byte longer, so it never pays for
// an inferred prefix, but address-mode adjustments still apply.
func (l *recipeList) withRex(d def) {
	l.add(d)
	rex := d
	rex.Name = "Rex" + d.Name
	rex.Sizing.Base++
	rex.Sizing.Rule = d.Sizing.Rule.WithoutRex()
	if br := d.Sizing.BranchRange; br != nil {
		rex.Sizing.BranchRange = &recipe.BranchRange{Origin: br.Origin + 1, Bits: br.Bits}
	}
	l.add(rex)
}

func recipes() []recipe.Recipe {
	var (
		gpr   = recipe.Reg(GPR)
		fpr   = recipe.Reg(FPR)
		abcd  = recipe.Reg(ABCD)
		tied0 = recipe.Tied(0)
		l     recipeList
	)

	// integer arithmetic
	l.withRex(op("Op1rr", ir.FormatBinary, 2, recipe.SizeInferredRexIn0In1).in(gpr, gpr).out(tied0).clobbers())
	// two-byte opcode with the destination in ModRM.reg
	l.withRex(op("Op2rrx", ir.FormatBinary, 3, recipe.SizeInferredRexIn0In1).in(gpr, gpr).out(tied0).clobbers())
	// shift by cl
	l.withRex(op("Op1rc", ir.FormatBinary, 2, recipe.SizeInferredRexIn0).in(gpr, recipe.FixedReg(RCX)).out(tied0).clobbers())
	l.withRex(op("Op1r_ib", ir.FormatBinaryImm, 3, recipe.SizeInferredRexIn0).in(gpr).out(tied0).clobbers().when(predImmS8))
	l.withRex(op("Op1r_id", ir.FormatBinaryImm, 6, recipe.SizeInferredRexIn0).in(gpr).out(tied0).clobbers().when(predImmS32))
	l.withRex(op("Op1div", ir.FormatTernary, 2, recipe.SizeBase).
		in(recipe.FixedTied(RAX), recipe.FixedTied(RDX), recipe.Reg(GPR8)).
		out(recipe.FixedTied(RAX), recipe.FixedTied(RDX)).clobbers())
	// popcnt, lzcnt and tzcnt
	l.withRex(op("Mp2urm", ir.FormatUnary, 4, recipe.SizeInferredRexIn0Out0).in(gpr).out(gpr).clobbers())

	// constants and moves
	l.add(op("Op1pu_id", ir.FormatUnaryImm, 5, recipe.SizeInferredRexIn0Out0).out(gpr).when(predIconstU32))
	l.withRex(op("Op1u_id", ir.FormatUnaryImm, 6, recipe.SizeInferredRexIn0Out0).out(gpr).when(predIconstS32))
	l.add(op("RexOp1pu_iq", ir.FormatUnaryImm, 10, recipe.SizeBase).out(gpr))
	l.withRex(op("Op1umr", ir.FormatUnary, 2, recipe.SizeInferredRexIn0Out0).in(gpr).out(gpr))
	l.withRex(op("Op2urm", ir.FormatUnary, 3, recipe.SizeInferredRexIn0Out0).in(gpr).out(gpr))

	// comparisons produce a b1 in a byte-addressable register
	l.withRex(op("Op1icscc", ir.FormatIntCompare, 6, recipe.SizeInferredRexIn0In1).in(gpr, gpr).out(abcd).clobbers())
	l.withRex(op("Op1icscc_ib", ir.FormatIntCompareImm, 7, recipe.SizeInferredRexIn0).in(gpr).out(abcd).clobbers().when(predIcmpImmS8))
	l.withRex(op("Op1icscc_id", ir.FormatIntCompareImm, 10, recipe.SizeInferredRexIn0).in(gpr).out(abcd).clobbers().when(predIcmpImmS32))

	// memory; loads take the address in input 0, stores in input 1
	l.withRex(op("Op1ld", ir.FormatLoad, 2, recipe.SizeMaybeSibOrOffsetIn0RexIn0Out0).in(gpr).out(gpr).when(predLoadNoOffset))
	l.withRex(op("Op1ldDisp8", ir.FormatLoad, 3, recipe.SizeMaybeSibIn0RexIn0Out0).in(gpr).out(gpr).when(predLoadDisp8))
	l.withRex(op("Op1ldDisp32", ir.FormatLoad, 6, recipe.SizeMaybeSibIn0RexIn0Out0).in(gpr).out(gpr))
	l.withRex(op("Op1st", ir.FormatStore, 2, recipe.SizeMaybeSibOrOffsetIn1RexIn0In1).in(gpr, gpr).when(predStoreNoOffset))
	l.withRex(op("Op1stDisp8", ir.FormatStore, 3, recipe.SizeMaybeSibIn1RexIn0In1).in(gpr, gpr).when(predStoreDisp8))
	l.withRex(op("Op1stDisp32", ir.FormatStore, 6, recipe.SizeMaybeSibIn1RexIn0In1).in(gpr, gpr))

	// control flow
	l.withRex(op("Op1tjccb", ir.FormatBranch, 4, recipe.SizeInferredRexIn0).in(gpr).clobbers().branch(8))
	l.withRex(op("Op1tjccd", ir.FormatBranch, 8, recipe.SizeInferredRexIn0).in(gpr).clobbers().branch(32))
	l.add(op("Op1jmpb", ir.FormatJump, 2, recipe.SizeBase).branch(8))
	l.add(op("Op1jmpd", ir.FormatJump, 5, recipe.SizeBase).branch(32))
	l.add(op("Op2trap", ir.FormatNullary, 2, recipe.SizeBase))
	l.add(op("Op1ret", ir.FormatMultiAry, 1, recipe.SizeBase))
	l.add(op("Op1call_id", ir.FormatCall, 5, recipe.SizeBase).clobbers().when(predColocatedCall))
	l.add(op("Op1call_plt_id", ir.FormatCall, 5, recipe.SizeBase).clobbers())
	l.add(op("RexOp1pcrel_fnaddr8", ir.FormatFuncAddr, 7, recipe.SizeBase).out(gpr).when(predColocatedAddr))
	l.add(op("RexOp1fnaddr8", ir.FormatFuncAddr, 10, recipe.SizeBase).out(gpr))

	// floating point and vectors
	l.add(op("Mp2fa", ir.FormatBinary, 4, recipe.SizeInferredRexIn0In1).in(fpr, fpr).out(tied0))
	l.add(op("Mp2fcscc", ir.FormatFloatCompare, 7, recipe.SizeInferredRexIn0In1).in(fpr, fpr).out(abcd).clobbers().when(predFloatFlags))
	l.add(op("Mp2vconst_optimized", ir.FormatUnaryConst, 4, recipe.SizeInferredRexIn0Out0).out(fpr).when(predZeroConst))
	l.add(op("Mp2vconst", ir.FormatUnaryConst, 8, recipe.SizeInferredRexIn0Out0).out(fpr))

	return l
}

func newCatalog(info *regs.Info) (*recipe.Catalog, error) {
	return recipe.NewCatalog(info, recipePredicates(), recipes())
}
