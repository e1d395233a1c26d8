// Package encoding selects a recipe and encoding bits for an instruction. Two hashed tables map a
// controlling type and an opcode to a region of the encoding list; the region is interpreted in
// declaration order and the first applicable entry wins. A miss is not an error: it returns the
// legalize action the caller should apply before retrying.
package encoding

import (
	"github.com/eigerco/isel/internal/ir"
	"github.com/eigerco/isel/internal/predicates"
	"github.com/eigerco/isel/internal/probe"
	"github.com/eigerco/isel/internal/recipe"
	"github.com/eigerco/isel/internal/settings"
)

// LegalizeAction indexes Tables.Actions. The engine does not interpret it.
type LegalizeAction uint8

// emptyLog2 marks an unused Level1 slot.
const emptyLog2 = 0xff

// Level1Entry maps a controlling type to its Level2 sub-table.
type Level1Entry struct {
	Type    ir.Type
	Log2Len uint8
	Offset  uint32
	// Action applies when the opcode is not in the sub-table or its region yields nothing.
	Action LegalizeAction
}

func (e *Level1Entry) Empty() bool {
	return e.Log2Len == emptyLog2
}

// Level2Entry maps an opcode to the start of its encoding list region. OpcodeInvalid marks an
// empty slot.
type Level2Entry struct {
	Opcode ir.Opcode
	Offset uint32
}

// Mode is one CPU mode's Level1 table.
type Mode struct {
	Name   string
	Level1 []Level1Entry
	// Default applies when the controlling type has no Level1 entry.
	Default LegalizeAction
}

// Tables is the complete, immutable dispatch data of a target.
type Tables struct {
	Modes   []Mode
	Level2  []Level2Entry
	List    []uint16
	Actions []string
}

// Encoding is a selected recipe plus the bits the emitter needs.
type Encoding struct {
	Recipe recipe.Index
	Bits   uint16
}

// Env carries what the interpreter consults while walking a region.
type Env struct {
	Isa     settings.PredicateView
	Recipes *recipe.Catalog
	Inst    *predicates.Table
}

func hashType(ty ir.Type) uint32 {
	return probe.Mix(uint32(ty))
}

func hashOpcode(op ir.Opcode) uint32 {
	return probe.Mix(uint32(op))
}

// ModeByName returns the index of a CPU mode.
func (t *Tables) ModeByName(name string) (int, bool) {
	for i := range t.Modes {
		if t.Modes[i].Name == name {
			return i, true
		}
	}
	return 0, false
}

// ActionName is the legalize action's name, or "" when out of range.
func (t *Tables) ActionName(a LegalizeAction) string {
	if int(a) < len(t.Actions) {
		return t.Actions[a]
	}
	return ""
}

// ActionByName finds a legalize action.
func (t *Tables) ActionByName(name string) (LegalizeAction, bool) {
	for i, n := range t.Actions {
		if n == name {
			return LegalizeAction(i), true
		}
	}
	return 0, false
}

func (t *Tables) level1(m *Mode, ty ir.Type) (*Level1Entry, bool) {
	n := len(m.Level1)
	if !probe.ValidSize(n) {
		return nil, false
	}
	seq := probe.Start(hashType(ty), n)
	for i := 0; i < n; i++ {
		e := &m.Level1[seq.Index()]
		if e.Empty() {
			return nil, false
		}
		if e.Type == ty {
			return e, true
		}
		seq.Next()
	}
	return nil, false
}

func (t *Tables) level2(e *Level1Entry, op ir.Opcode) (*Level2Entry, bool) {
	n := 1 << e.Log2Len
	sub := t.Level2[e.Offset : int(e.Offset)+n]
	seq := probe.Start(hashOpcode(op), n)
	for i := 0; i < n; i++ {
		s := &sub[seq.Index()]
		if s.Opcode == ir.OpcodeInvalid {
			return nil, false
		}
		if s.Opcode == op {
			return s, true
		}
		seq.Next()
	}
	return nil, false
}

// Lookup resolves (mode, ctrl, op) to an encoding list offset. On a miss it returns the legalize
// action to apply instead.
func (t *Tables) Lookup(mode int, ctrl ir.Type, op ir.Opcode) (uint32, LegalizeAction, bool) {
	m := &t.Modes[mode]
	e, ok := t.level1(m, ctrl)
	if !ok {
		return 0, m.Default, false
	}
	l2, ok := t.level2(e, op)
	if !ok {
		return 0, e.Action, false
	}
	return l2.Offset, e.Action, true
}

// Encode selects the first applicable encoding of inst. When nothing applies it reports false
// and the legalize action for the instruction.
func (t *Tables) Encode(env *Env, mode int, ctrl ir.Type, inst ir.InstructionData, fn ir.FunctionView) (Encoding, LegalizeAction, bool) {
	off, action, ok := t.Lookup(mode, ctrl, inst.Opcode())
	if !ok {
		return Encoding{}, action, false
	}
	if enc, ok := interpret(env, t.List, off, inst, fn); ok {
		return enc, 0, true
	}
	return Encoding{}, action, false
}
