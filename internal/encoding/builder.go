package encoding

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/eigerco/isel/internal/ir"
	"github.com/eigerco/isel/internal/predicates"
	"github.com/eigerco/isel/internal/probe"
	"github.com/eigerco/isel/internal/recipe"
)

var (
	ErrDuplicateType   = errors.New("controlling type listed twice in one mode")
	ErrDuplicateOpcode = errors.New("opcode listed twice for one type")
	ErrUnknownRecipe   = errors.New("unknown recipe")
	ErrEmptyRegion     = errors.New("opcode has no encodings")
	ErrTooManyActions  = errors.New("too many legalize actions")
	ErrOutOfRange      = errors.New("value does not fit its encoding field")
)

// Guard is an optional predicate number.
type Guard struct {
	ID  uint16
	Set bool
}

// When guards an entry with predicate id.
func When(id uint16) Guard {
	return Guard{ID: id, Set: true}
}

// Entry is one candidate encoding of an opcode. Entries are tried in the order they are added.
type Entry struct {
	Recipe string
	Bits   uint16
	// Isa is a bit of the predicate view, Inst an instruction predicate id.
	Isa  Guard
	Inst Guard
}

// Builder generates Tables. It uses the same probe sequence as the runtime lookups.
type Builder struct {
	catalog *recipe.Catalog
	actions []string
	modes   []*ModeBuilder
	err     error
}

func NewBuilder(catalog *recipe.Catalog) *Builder {
	return &Builder{catalog: catalog}
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Action interns a legalize action name.
func (b *Builder) Action(name string) LegalizeAction {
	for i, n := range b.actions {
		if n == name {
			return LegalizeAction(i)
		}
	}
	if len(b.actions) > 0xff {
		b.fail(fmt.Errorf("%w: %s", ErrTooManyActions, name))
		return 0
	}
	b.actions = append(b.actions, name)
	return LegalizeAction(len(b.actions) - 1)
}

// Mode starts a CPU mode whose unlisted types get defaultAction.
func (b *Builder) Mode(name, defaultAction string) *ModeBuilder {
	m := &ModeBuilder{b: b, name: name, def: b.Action(defaultAction)}
	b.modes = append(b.modes, m)
	return m
}

type ModeBuilder struct {
	b     *Builder
	name  string
	def   LegalizeAction
	types []*TypeBuilder
}

// Type adds a Level1 entry. An empty action falls back to the mode default.
func (m *ModeBuilder) Type(ty ir.Type, action string) *TypeBuilder {
	a := m.def
	if action != "" {
		a = m.b.Action(action)
	}
	tb := &TypeBuilder{m: m, ty: ty, action: a}
	m.types = append(m.types, tb)
	return tb
}

type TypeBuilder struct {
	m      *ModeBuilder
	ty     ir.Type
	action LegalizeAction
	ops    []opEntries
}

type opEntries struct {
	op      ir.Opcode
	entries []Entry
}

// Encode lists the candidate encodings of op, most preferred first.
func (t *TypeBuilder) Encode(op ir.Opcode, entries ...Entry) *TypeBuilder {
	t.ops = append(t.ops, opEntries{op: op, entries: entries})
	return t
}

// Build lays out the tables.
func (b *Builder) Build() (*Tables, error) {
	if b.err != nil {
		return nil, b.err
	}
	t := &Tables{Actions: append([]string(nil), b.actions...)}
	for _, m := range b.modes {
		mode, err := b.buildMode(t, m)
		if err != nil {
			return nil, fmt.Errorf("mode %s: %w", m.name, err)
		}
		t.Modes = append(t.Modes, mode)
	}
	return t, nil
}

func (b *Builder) buildMode(t *Tables, m *ModeBuilder) (Mode, error) {
	size := probe.SizeFor(len(m.types))
	mode := Mode{Name: m.name, Default: m.def, Level1: make([]Level1Entry, size)}
	for i := range mode.Level1 {
		mode.Level1[i].Log2Len = emptyLog2
	}
	seen := make(map[ir.Type]bool, len(m.types))
	for _, tb := range m.types {
		if seen[tb.ty] {
			return Mode{}, fmt.Errorf("%w: %s", ErrDuplicateType, tb.ty)
		}
		seen[tb.ty] = true

		l2size := probe.SizeFor(len(tb.ops))
		base := len(t.Level2)
		t.Level2 = append(t.Level2, make([]Level2Entry, l2size)...)
		sub := t.Level2[base:]
		ops := make(map[ir.Opcode]bool, len(tb.ops))
		for _, oe := range tb.ops {
			if oe.op == ir.OpcodeInvalid {
				return Mode{}, fmt.Errorf("%w: %s", ErrOutOfRange, oe.op)
			}
			if ops[oe.op] {
				return Mode{}, fmt.Errorf("%w: %s.%s", ErrDuplicateOpcode, tb.ty, oe.op)
			}
			ops[oe.op] = true
			words, err := b.emit(oe.entries)
			if err != nil {
				return Mode{}, fmt.Errorf("%s.%s: %w", tb.ty, oe.op, err)
			}
			slot, err := probe.Insert(l2size, hashOpcode(oe.op), func(i int) bool {
				return sub[i].Opcode != ir.OpcodeInvalid
			})
			if err != nil {
				return Mode{}, err
			}
			sub[slot] = Level2Entry{Opcode: oe.op, Offset: uint32(len(t.List))}
			t.List = append(t.List, words...)
		}

		slot, err := probe.Insert(size, hashType(tb.ty), func(i int) bool {
			return !mode.Level1[i].Empty()
		})
		if err != nil {
			return Mode{}, err
		}
		mode.Level1[slot] = Level1Entry{
			Type:    tb.ty,
			Log2Len: uint8(bits.TrailingZeros(uint(l2size))),
			Offset:  uint32(base),
			Action:  tb.action,
		}
	}
	return mode, nil
}

type group struct {
	isa, inst Guard
	entries   []Entry
}

// emit encodes one region. Consecutive entries with the same guards share control words; the last
// group uses stop tests so a region never falls into its neighbour.
func (b *Builder) emit(entries []Entry) ([]uint16, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyRegion
	}
	var groups []group
	for _, e := range entries {
		if n := len(groups); n > 0 && groups[n-1].isa == e.Isa && groups[n-1].inst == e.Inst {
			groups[n-1].entries = append(groups[n-1].entries, e)
			continue
		}
		groups = append(groups, group{isa: e.Isa, inst: e.Inst, entries: []Entry{e}})
	}

	var words []uint16
	for gi, g := range groups {
		last := gi == len(groups)-1
		body := make([]uint16, 0, 2*len(g.entries))
		for ei, e := range g.entries {
			idx, ok := b.catalog.ByName(e.Recipe)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownRecipe, e.Recipe)
			}
			w := uint16(wordData) | uint16(idx)
			if b.catalog.Recipe(idx).Predicate != predicates.None {
				w |= wordGuarded
			}
			if last && ei == len(g.entries)-1 {
				w |= wordStop
			}
			body = append(body, w, e.Bits)
		}
		for _, guard := range []Guard{g.isa, g.inst} {
			if guard.Set && guard.ID > MaxPredicate {
				return nil, fmt.Errorf("%w: predicate %d", ErrOutOfRange, guard.ID)
			}
		}
		if last {
			if g.isa.Set {
				words = append(words, g.isa.ID)
			}
			if g.inst.Set {
				words = append(words, ctlInst|g.inst.ID)
			}
		} else {
			n := len(body)
			if n+2 > 0xffff {
				return nil, fmt.Errorf("%w: skip of %d words", ErrOutOfRange, n+2)
			}
			if g.isa.Set {
				skip := n
				if g.inst.Set {
					skip += 2
				}
				words = append(words, ctlSkip|g.isa.ID, uint16(skip))
			}
			if g.inst.Set {
				words = append(words, ctlSkip|ctlInst|g.inst.ID, uint16(n))
			}
		}
		words = append(words, body...)
	}
	return words, nil
}
