package encoding

import (
	"fmt"

	"github.com/eigerco/isel/internal/ir"
	"github.com/eigerco/isel/internal/predicates"
	"github.com/eigerco/isel/internal/recipe"
)

// Encoding list words.
//
// A data pair is a dispatch word followed by the encoding bits:
//
//	1 S P rrrrrrrrrrrrr
//
// S ends the region when this pair is rejected, P guards the pair with the recipe's predicate and
// r is the recipe index.
//
// A control word tests a predicate:
//
//	0 K I ppppppppppppp
//
// I selects an instruction predicate instead of an ISA bit. With K clear a failed test ends the
// region; with K set the following word is a count of words to skip when the test fails.
const (
	wordData    = 1 << 15
	wordStop    = 1 << 14
	wordGuarded = 1 << 13
	recipeMask  = 1<<13 - 1

	ctlSkip  = 1 << 14
	ctlInst  = 1 << 13
	predMask = 1<<13 - 1

	// MaxPredicate is the largest predicate number a control word can hold.
	MaxPredicate = predMask
)

func interpret(env *Env, list []uint16, off uint32, inst ir.InstructionData, fn ir.FunctionView) (Encoding, bool) {
	pos := int(off)
	for pos < len(list) {
		w := list[pos]
		if w&wordData != 0 {
			if pos+1 >= len(list) {
				return Encoding{}, false
			}
			enc := Encoding{Recipe: recipe.Index(w & recipeMask), Bits: list[pos+1]}
			pos += 2
			if w&wordGuarded == 0 || recipeApplies(env, enc.Recipe, inst, fn) {
				return enc, true
			}
			if w&wordStop != 0 {
				return Encoding{}, false
			}
			continue
		}

		pred := w & predMask
		var pass bool
		if w&ctlInst != 0 {
			pass = env.Inst.Eval(predicates.ID(pred), fn, inst)
		} else {
			pass = env.Isa.Test(pred)
		}
		pos++
		if w&ctlSkip == 0 {
			if !pass {
				return Encoding{}, false
			}
			continue
		}
		if pos >= len(list) {
			return Encoding{}, false
		}
		skip := int(list[pos])
		pos++
		if !pass {
			pos += skip
		}
	}
	return Encoding{}, false
}

func recipeApplies(env *Env, idx recipe.Index, inst ir.InstructionData, fn ir.FunctionView) bool {
	id := env.Recipes.Recipe(idx).Predicate
	if id == predicates.None {
		return true
	}
	return env.Recipes.Predicates().Eval(id, fn, inst)
}

// OpKind classifies a decoded encoding list operation.
type OpKind uint8

const (
	OpData OpKind = iota
	OpStopUnlessIsa
	OpStopUnlessInst
	OpSkipUnlessIsa
	OpSkipUnlessInst
)

func (k OpKind) String() string {
	switch k {
	case OpData:
		return "data"
	case OpStopUnlessIsa:
		return "stop_unless_isa"
	case OpStopUnlessInst:
		return "stop_unless_inst"
	case OpSkipUnlessIsa:
		return "skip_unless_isa"
	case OpSkipUnlessInst:
		return "skip_unless_inst"
	}
	return "unknown"
}

// Op is one decoded operation of an encoding list region.
type Op struct {
	Kind    OpKind
	Pos     int
	Recipe  recipe.Index
	Bits    uint16
	Stop    bool
	Guarded bool
	Pred    uint16
	Skip    uint16
}

func (o Op) String() string {
	switch o.Kind {
	case OpData:
		flags := ""
		if o.Guarded {
			flags += " guarded"
		}
		if o.Stop {
			flags += " stop"
		}
		return fmt.Sprintf("%04d: recipe %d bits %#04x%s", o.Pos, o.Recipe, o.Bits, flags)
	case OpSkipUnlessIsa, OpSkipUnlessInst:
		return fmt.Sprintf("%04d: %s %d skip %d", o.Pos, o.Kind, o.Pred, o.Skip)
	}
	return fmt.Sprintf("%04d: %s %d", o.Pos, o.Kind, o.Pred)
}

// DecodeRegion decodes the region starting at off. A region ends with a stop data pair; skips
// may not leave it.
func DecodeRegion(list []uint16, off uint32) ([]Op, error) {
	var ops []Op
	pos := int(off)
	for {
		if pos >= len(list) {
			return nil, fmt.Errorf("%w: region at %d runs off the list", ErrMalformed, off)
		}
		w := list[pos]
		if w&wordData != 0 {
			if pos+1 >= len(list) {
				return nil, fmt.Errorf("%w: truncated data pair at %d", ErrMalformed, pos)
			}
			op := Op{
				Kind:    OpData,
				Pos:     pos,
				Recipe:  recipe.Index(w & recipeMask),
				Bits:    list[pos+1],
				Stop:    w&wordStop != 0,
				Guarded: w&wordGuarded != 0,
			}
			ops = append(ops, op)
			pos += 2
			if op.Stop {
				break
			}
			continue
		}
		op := Op{Pos: pos, Pred: w & predMask}
		switch {
		case w&ctlSkip == 0 && w&ctlInst == 0:
			op.Kind = OpStopUnlessIsa
		case w&ctlSkip == 0:
			op.Kind = OpStopUnlessInst
		case w&ctlInst == 0:
			op.Kind = OpSkipUnlessIsa
		default:
			op.Kind = OpSkipUnlessInst
		}
		pos++
		if w&ctlSkip != 0 {
			if pos >= len(list) {
				return nil, fmt.Errorf("%w: truncated skip at %d", ErrMalformed, op.Pos)
			}
			op.Skip = list[pos]
			pos++
		}
		ops = append(ops, op)
	}
	starts := make(map[int]struct{}, len(ops))
	for _, op := range ops {
		starts[op.Pos] = struct{}{}
	}
	for _, op := range ops {
		if op.Kind == OpSkipUnlessIsa || op.Kind == OpSkipUnlessInst {
			target := op.Pos + 2 + int(op.Skip)
			if target >= pos {
				return nil, fmt.Errorf("%w: skip at %d leaves the region", ErrMalformed, op.Pos)
			}
			if _, ok := starts[target]; !ok {
				return nil, fmt.Errorf("%w: skip at %d lands inside the word at %d", ErrMalformed, op.Pos, target)
			}
		}
	}
	return ops, nil
}
