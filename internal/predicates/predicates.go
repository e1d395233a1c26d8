// Package predicates holds the structural tests that guard recipes and encodings. Each predicate
// is bound to one instruction format; evaluating it against another format is a broken table and
// panics with a *ContractViolation.
package predicates

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/eigerco/isel/internal/ir"
	"github.com/eigerco/isel/internal/safemath"
)

// ID indexes a Table.
type ID uint16

// None marks a recipe without a predicate.
const None ID = 0xffff

// ContractViolation reports a predicate reached with an instruction it was not generated for.
type ContractViolation struct {
	ID        ID
	Predicate string
	Want      ir.Format
	Got       ir.Format
	Reason    string
}

func (e *ContractViolation) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("predicate %d (%s): %s", e.ID, e.Predicate, e.Reason)
	}
	return fmt.Sprintf("predicate %d (%s) bound to %s evaluated on %s", e.ID, e.Predicate, e.Want, e.Got)
}

type testFunc func(fn ir.FunctionView, inst ir.InstructionData) bool

// Predicate is a named test over one instruction format.
type Predicate struct {
	Name   string
	Format ir.Format
	test   testFunc
}

// Named returns a copy of p with a different name.
func (p Predicate) Named(name string) Predicate {
	p.Name = name
	return p
}

func (p Predicate) String() string {
	return p.Name + "(" + p.Format.String() + ")"
}

// Table is an immutable, id-indexed list of predicates.
type Table struct {
	preds []Predicate
}

func NewTable(preds ...Predicate) *Table {
	return &Table{preds: append([]Predicate(nil), preds...)}
}

func (t *Table) Len() int {
	return len(t.preds)
}

func (t *Table) Predicate(id ID) (Predicate, bool) {
	if int(id) >= len(t.preds) {
		return Predicate{}, false
	}
	return t.preds[id], true
}

// ByName finds the id of a predicate.
func (t *Table) ByName(name string) (ID, bool) {
	for i, p := range t.preds {
		if p.Name == name {
			return ID(i), true
		}
	}
	return 0, false
}

// Eval runs predicate id against inst.
func (t *Table) Eval(id ID, fn ir.FunctionView, inst ir.InstructionData) bool {
	if int(id) >= len(t.preds) {
		panic(&ContractViolation{ID: id, Predicate: "?", Got: inst.Format(),
			Reason: fmt.Sprintf("no predicate %d in a table of %d", id, len(t.preds))})
	}
	p := &t.preds[id]
	if inst.Format() != p.Format {
		panic(&ContractViolation{ID: id, Predicate: p.Name, Want: p.Format, Got: inst.Format()})
	}
	return p.test(fn, inst)
}

func immediate(inst ir.InstructionData) (int64, bool) {
	switch d := inst.(type) {
	case *ir.UnaryImm:
		return d.Imm, true
	case *ir.BinaryImm:
		return d.Imm, true
	case *ir.IntCompareImm:
		return d.Imm, true
	}
	return 0, false
}

func offset(inst ir.InstructionData) (int32, bool) {
	switch d := inst.(type) {
	case *ir.LoadData:
		return d.Offset, true
	case *ir.StoreData:
		return d.Offset, true
	}
	return 0, false
}

func callee(inst ir.InstructionData) (ir.FuncRef, bool) {
	switch d := inst.(type) {
	case *ir.CallData:
		return d.Callee, true
	case *ir.FuncAddrData:
		return d.Callee, true
	}
	return 0, false
}

func intCond(inst ir.InstructionData) (ir.IntCC, bool) {
	switch d := inst.(type) {
	case *ir.IntCompare:
		return d.Cond, true
	case *ir.IntCompareImm:
		return d.Cond, true
	}
	return 0, false
}

// bind builds a predicate after checking that extract understands format.
func bind[T any](name string, format ir.Format, extract func(ir.InstructionData) (T, bool), check func(fn ir.FunctionView, v T) bool) Predicate {
	sample := sampleOf(format)
	if sample == nil {
		panic(fmt.Sprintf("predicates: %s cannot apply to format %s", name, format))
	}
	if _, ok := extract(sample); !ok {
		panic(fmt.Sprintf("predicates: %s cannot apply to format %s", name, format))
	}
	return Predicate{
		Name:   name,
		Format: format,
		test: func(fn ir.FunctionView, inst ir.InstructionData) bool {
			v, _ := extract(inst)
			return check(fn, v)
		},
	}
}

// sampleOf returns a zero instruction of the given format.
func sampleOf(f ir.Format) ir.InstructionData {
	switch f {
	case ir.FormatNullary:
		return &ir.Nullary{}
	case ir.FormatUnary:
		return &ir.Unary{}
	case ir.FormatUnaryImm:
		return &ir.UnaryImm{}
	case ir.FormatUnaryConst:
		return &ir.UnaryConst{}
	case ir.FormatBinary:
		return &ir.Binary{}
	case ir.FormatBinaryImm:
		return &ir.BinaryImm{}
	case ir.FormatIntCompare:
		return &ir.IntCompare{}
	case ir.FormatIntCompareImm:
		return &ir.IntCompareImm{}
	case ir.FormatFloatCompare:
		return &ir.FloatCompare{}
	case ir.FormatBranch:
		return &ir.Branch{}
	case ir.FormatJump:
		return &ir.JumpData{}
	case ir.FormatMultiAry:
		return &ir.MultiAry{}
	case ir.FormatCall:
		return &ir.CallData{}
	case ir.FormatFuncAddr:
		return &ir.FuncAddrData{}
	case ir.FormatLoad:
		return &ir.LoadData{}
	case ir.FormatStore:
		return &ir.StoreData{}
	case ir.FormatTernary:
		return &ir.Ternary{}
	}
	return nil
}

// ImmFitsSigned accepts immediates representable in width signed bits.
func ImmFitsSigned(format ir.Format, width uint) Predicate {
	return bind(fmt.Sprintf("imm_fits_s%d", width), format, immediate,
		func(_ ir.FunctionView, imm int64) bool { return safemath.FitsSigned(imm, width) })
}

// ImmFitsUnsigned accepts non-negative immediates below 2^width.
func ImmFitsUnsigned(format ir.Format, width uint) Predicate {
	return bind(fmt.Sprintf("imm_fits_u%d", width), format, immediate,
		func(_ ir.FunctionView, imm int64) bool { return safemath.FitsUnsigned(imm, width) })
}

func OffsetIsZero(format ir.Format) Predicate {
	return bind("offset_is_zero", format, offset,
		func(_ ir.FunctionView, off int32) bool { return off == 0 })
}

func OffsetFitsSigned(format ir.Format, width uint) Predicate {
	return bind(fmt.Sprintf("offset_fits_s%d", width), format, offset,
		func(_ ir.FunctionView, off int32) bool { return safemath.FitsSigned(int64(off), width) })
}

// IntCondIn accepts integer compares whose condition is one of conds.
func IntCondIn(format ir.Format, conds ...ir.IntCC) Predicate {
	var set uint32
	names := make([]string, len(conds))
	for i, c := range conds {
		set |= 1 << c
		names[i] = c.String()
	}
	return bind("intcc_in("+strings.Join(names, ",")+")", format, intCond,
		func(_ ir.FunctionView, cc ir.IntCC) bool { return set&(1<<cc) != 0 })
}

// FloatCondIn accepts float compares whose condition is one of conds.
func FloatCondIn(conds ...ir.FloatCC) Predicate {
	var set uint32
	names := make([]string, len(conds))
	for i, c := range conds {
		set |= 1 << c
		names[i] = c.String()
	}
	return Predicate{
		Name:   "floatcc_in(" + strings.Join(names, ",") + ")",
		Format: ir.FormatFloatCompare,
		test: func(_ ir.FunctionView, inst ir.InstructionData) bool {
			return set&(1<<inst.(*ir.FloatCompare).Cond) != 0
		},
	}
}

// ArgCountAtMost bounds the number of value operands.
func ArgCountAtMost(format ir.Format, n int) Predicate {
	return Predicate{
		Name:   fmt.Sprintf("args_at_most_%d", n),
		Format: format,
		test: func(_ ir.FunctionView, inst ir.InstructionData) bool {
			return len(inst.Arguments()) <= n
		},
	}
}

// ConstantIs tests the constant-pool bytes of a UnaryConst instruction.
func ConstantIs(name string, match func(data []byte) bool) Predicate {
	return Predicate{
		Name:   name,
		Format: ir.FormatUnaryConst,
		test: func(fn ir.FunctionView, inst ir.InstructionData) bool {
			return match(fn.ConstantData(inst.(*ir.UnaryConst).Constant))
		},
	}
}

// AllZeros matches a non-empty constant of zero bytes.
func AllZeros(data []byte) bool {
	return len(data) > 0 && bytes.Count(data, []byte{0}) == len(data)
}

// ColocatedCallee accepts calls and function addresses whose target is in the same image.
func ColocatedCallee(format ir.Format) Predicate {
	return bind("colocated_callee", format, callee, func(fn ir.FunctionView, ref ir.FuncRef) bool {
		return fn.IsColocated(ref)
	})
}

// ArgTypeIs checks the type of value operand i. A missing operand fails the test.
func ArgTypeIs(format ir.Format, i int, ty ir.Type) Predicate {
	return Predicate{
		Name:   fmt.Sprintf("arg%d_is_%s", i, ty),
		Format: format,
		test: func(fn ir.FunctionView, inst ir.InstructionData) bool {
			args := inst.Arguments()
			return i < len(args) && fn.ValueType(args[i]) == ty
		},
	}
}

// All is the conjunction of preds, which must share a format.
func All(preds ...Predicate) Predicate {
	if len(preds) == 0 {
		panic("predicates: All needs at least one operand")
	}
	names := make([]string, len(preds))
	for i, p := range preds {
		if p.Format != preds[0].Format {
			panic(fmt.Sprintf("predicates: All mixes %s and %s", preds[0].Format, p.Format))
		}
		names[i] = p.Name
	}
	return Predicate{
		Name:   strings.Join(names, "&&"),
		Format: preds[0].Format,
		test: func(fn ir.FunctionView, inst ir.InstructionData) bool {
			for _, p := range preds {
				if !p.test(fn, inst) {
					return false
				}
			}
			return true
		},
	}
}
