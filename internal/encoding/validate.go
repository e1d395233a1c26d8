package encoding

import (
	"errors"
	"fmt"

	"github.com/eigerco/isel/internal/ir"
	"github.com/eigerco/isel/internal/probe"
)

var ErrMalformed = errors.New("malformed encoding tables")

// Limits bounds the numbers an encoding list may reference. Zero leaves a field unchecked.
type Limits struct {
	Recipes        int
	InstPredicates int
	IsaBits        int
}

// Validate checks that tables built elsewhere, typically decoded from a blob, follow the layout
// and probe contract Lookup depends on.
func (t *Tables) Validate(lim Limits) error {
	if len(t.Modes) == 0 {
		return fmt.Errorf("%w: no modes", ErrMalformed)
	}
	for mi := range t.Modes {
		m := &t.Modes[mi]
		if err := t.validateMode(mi, m, lim); err != nil {
			return fmt.Errorf("mode %s: %w", m.Name, err)
		}
	}
	return nil
}

func (t *Tables) validateMode(mi int, m *Mode, lim Limits) error {
	if !probe.ValidSize(len(m.Level1)) {
		return fmt.Errorf("%w: level1 size %d", ErrMalformed, len(m.Level1))
	}
	if int(m.Default) >= len(t.Actions) {
		return fmt.Errorf("%w: default action %d", ErrMalformed, m.Default)
	}
	for i := range m.Level1 {
		e := &m.Level1[i]
		if e.Empty() {
			continue
		}
		if e.Log2Len > 16 || int(e.Offset)+1<<e.Log2Len > len(t.Level2) {
			return fmt.Errorf("%w: %s sub-table out of bounds", ErrMalformed, e.Type)
		}
		if int(e.Action) >= len(t.Actions) {
			return fmt.Errorf("%w: %s action %d", ErrMalformed, e.Type, e.Action)
		}
		if found, ok := t.level1(m, e.Type); !ok || found != e {
			return fmt.Errorf("%w: %s not reachable by probing", ErrMalformed, e.Type)
		}
		if err := t.validateSubTable(mi, e, lim); err != nil {
			return fmt.Errorf("%s: %w", e.Type, err)
		}
	}
	return nil
}

func (t *Tables) validateSubTable(mi int, e *Level1Entry, lim Limits) error {
	n := 1 << e.Log2Len
	sub := t.Level2[e.Offset : int(e.Offset)+n]
	for i := range sub {
		s := &sub[i]
		if s.Opcode == ir.OpcodeInvalid {
			continue
		}
		if found, ok := t.level2(e, s.Opcode); !ok || found != s {
			return fmt.Errorf("%w: %s duplicated or not reachable by probing", ErrMalformed, s.Opcode)
		}
		off, _, ok := t.Lookup(mi, e.Type, s.Opcode)
		if !ok || off != s.Offset {
			return fmt.Errorf("%w: %s lookup disagrees with the table", ErrMalformed, s.Opcode)
		}
		ops, err := DecodeRegion(t.List, s.Offset)
		if err != nil {
			return fmt.Errorf("%s: %w", s.Opcode, err)
		}
		if err := checkOps(ops, lim); err != nil {
			return fmt.Errorf("%s: %w", s.Opcode, err)
		}
	}
	return nil
}

func checkOps(ops []Op, lim Limits) error {
	for _, op := range ops {
		switch op.Kind {
		case OpData:
			if lim.Recipes > 0 && int(op.Recipe) >= lim.Recipes {
				return fmt.Errorf("%w: recipe %d at %d", ErrMalformed, op.Recipe, op.Pos)
			}
		case OpStopUnlessIsa, OpSkipUnlessIsa:
			if lim.IsaBits > 0 && int(op.Pred) >= lim.IsaBits {
				return fmt.Errorf("%w: isa bit %d at %d", ErrMalformed, op.Pred, op.Pos)
			}
		case OpStopUnlessInst, OpSkipUnlessInst:
			if lim.InstPredicates > 0 && int(op.Pred) >= lim.InstPredicates {
				return fmt.Errorf("%w: instruction predicate %d at %d", ErrMalformed, op.Pred, op.Pos)
			}
		}
	}
	return nil
}

// Stats summarizes table occupancy.
type Stats struct {
	Modes        int
	Types        int
	Opcodes      int
	Level1Slots  int
	Level2Slots  int
	ListWords    int
	Actions      int
	MaxRegionOps int
}

func (t *Tables) Stats() Stats {
	s := Stats{Modes: len(t.Modes), Level2Slots: len(t.Level2), ListWords: len(t.List), Actions: len(t.Actions)}
	for mi := range t.Modes {
		m := &t.Modes[mi]
		s.Level1Slots += len(m.Level1)
		for i := range m.Level1 {
			e := &m.Level1[i]
			if e.Empty() {
				continue
			}
			s.Types++
			for _, l2 := range t.Level2[e.Offset : int(e.Offset)+1<<e.Log2Len] {
				if l2.Opcode == ir.OpcodeInvalid {
					continue
				}
				s.Opcodes++
				if ops, err := DecodeRegion(t.List, l2.Offset); err == nil && len(ops) > s.MaxRegionOps {
					s.MaxRegionOps = len(ops)
				}
			}
		}
	}
	return s
}

// Region locates the encoding list of one (mode, type, opcode).
type Region struct {
	Mode   int
	Type   ir.Type
	Opcode ir.Opcode
	Offset uint32
}

// Regions lists every populated Level2 slot, mode by mode in table order.
func (t *Tables) Regions() []Region {
	var out []Region
	for mi := range t.Modes {
		for _, e := range t.Modes[mi].Level1 {
			if e.Empty() {
				continue
			}
			for _, l2 := range t.Level2[e.Offset : int(e.Offset)+1<<e.Log2Len] {
				if l2.Opcode != ir.OpcodeInvalid {
					out = append(out, Region{Mode: mi, Type: e.Type, Opcode: l2.Opcode, Offset: l2.Offset})
				}
			}
		}
	}
	return out
}
