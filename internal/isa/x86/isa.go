// Package x86 describes the x86 target: its settings, register model, recipes and the encoding
// tables for the 64-bit and 32-bit CPU modes.
package x86

import (
	"fmt"
	"sync"

	"github.com/eigerco/isel/internal/encoding"
	"github.com/eigerco/isel/internal/ir"
	"github.com/eigerco/isel/internal/isa"
	"github.com/eigerco/isel/internal/predicates"
	"github.com/eigerco/isel/internal/recipe"
	"github.com/eigerco/isel/internal/regs"
	"github.com/eigerco/isel/internal/settings"
	"github.com/eigerco/isel/pkg/log"
)

// Name identifies the target in persisted configurations.
const Name = "x86"

// target is the immutable, configuration-independent part of the ISA.
type target struct {
	registers *regs.Info
	catalog   *recipe.Catalog
	inst      *predicates.Table
	tables    *encoding.Tables
}

var loadTarget = sync.OnceValues(func() (*target, error) {
	info, err := newRegisters()
	if err != nil {
		return nil, fmt.Errorf("x86 registers: %w", err)
	}
	catalog, err := newCatalog(info)
	if err != nil {
		return nil, fmt.Errorf("x86 recipes: %w", err)
	}
	tables, err := buildTables(catalog)
	if err != nil {
		return nil, fmt.Errorf("x86 encodings: %w", err)
	}
	return &target{registers: info, catalog: catalog, inst: instPredicates(), tables: tables}, nil
})

// GeneratedTables returns the built-in encoding tables.
func GeneratedTables() (*encoding.Tables, error) {
	t, err := loadTarget()
	if err != nil {
		return nil, err
	}
	return t.tables, nil
}

// Recipes returns the recipe catalog shared by every configuration.
func Recipes() (*recipe.Catalog, error) {
	t, err := loadTarget()
	if err != nil {
		return nil, err
	}
	return t.catalog, nil
}

// Limits bounds what tables for this target may reference.
func Limits() (encoding.Limits, error) {
	t, err := loadTarget()
	if err != nil {
		return encoding.Limits{}, err
	}
	view := settings.NewPredicateView(isa.DefaultShared().Flags, mustDefaultFlags().Flags)
	return encoding.Limits{Recipes: t.catalog.Len(), InstPredicates: t.inst.Len(), IsaBits: view.Len()}, nil
}

func mustDefaultFlags() Flags {
	f, err := NewFlags(NewBuilder())
	if err != nil {
		panic(err)
	}
	return f
}

// Isa is the x86 target configured for one CPU mode.
type Isa struct {
	shared isa.Shared
	flags  Flags
	mode   int
	target *target
	tables *encoding.Tables
	env    encoding.Env
}

// New configures the target with the built-in tables.
func New(shared isa.Shared, flags Flags, mode string) (*Isa, error) {
	t, err := loadTarget()
	if err != nil {
		return nil, err
	}
	return newIsa(t, t.tables, shared, flags, mode)
}

// NewWithTables configures the target with tables obtained elsewhere, such as a stored blob.
// The tables are validated against this target's recipes and settings first.
func NewWithTables(tables *encoding.Tables, shared isa.Shared, flags Flags, mode string) (*Isa, error) {
	t, err := loadTarget()
	if err != nil {
		return nil, err
	}
	lim, err := Limits()
	if err != nil {
		return nil, err
	}
	if err := tables.Validate(lim); err != nil {
		return nil, err
	}
	return newIsa(t, tables, shared, flags, mode)
}

func newIsa(t *target, tables *encoding.Tables, shared isa.Shared, flags Flags, mode string) (*Isa, error) {
	if shared.Flags == nil || flags.Flags == nil {
		return nil, fmt.Errorf("%w: missing settings", settings.ErrBadValue)
	}
	mi, ok := tables.ModeByName(mode)
	if !ok {
		return nil, fmt.Errorf("%w: unknown CPU mode %q", settings.ErrBadValue, mode)
	}
	i := &Isa{
		shared: shared,
		flags:  flags,
		mode:   mi,
		target: t,
		tables: tables,
		env: encoding.Env{
			Isa:     settings.NewPredicateView(shared.Flags, flags.Flags),
			Recipes: t.catalog,
			Inst:    t.inst,
		},
	}
	log.Isa.Debug().Str("isa", Name).Str("mode", mode).Str("flags", flags.String()).Msg("isa configured")
	return i, nil
}

func (i *Isa) Name() string             { return Name }
func (i *Isa) Mode() string             { return i.tables.Modes[i.mode].Name }
func (i *Isa) Shared() isa.Shared       { return i.shared }
func (i *Isa) Flags() Flags             { return i.flags }
func (i *Isa) Catalog() *recipe.Catalog { return i.target.catalog }
func (i *Isa) Registers() *regs.Info    { return i.target.registers }
func (i *Isa) Tables() *encoding.Tables { return i.tables }

// InstPredicates is the table instruction guards in the encoding lists refer to.
func (i *Isa) InstPredicates() *predicates.Table { return i.target.inst }

// Encode selects the first applicable encoding of inst with controlling type ctrl. On failure it
// returns the legalize action the caller should apply instead.
func (i *Isa) Encode(inst ir.InstructionData, ctrl ir.Type, fn ir.FunctionView) (encoding.Encoding, encoding.LegalizeAction, bool) {
	return i.tables.Encode(&i.env, i.mode, ctrl, inst, fn)
}

// ActionName names a legalize action returned by Encode.
func (i *Isa) ActionName(a encoding.LegalizeAction) string {
	return i.tables.ActionName(a)
}

// EncodedSize is the byte length of enc with operands placed as in p.
func (i *Isa) EncodedSize(enc encoding.Encoding, p recipe.Placement) int {
	return i.target.catalog.EncodedSize(enc.Recipe, p)
}

// Describe renders an encoding as its recipe name and opcode bytes.
func (i *Isa) Describe(enc encoding.Encoding) string {
	return fmt.Sprintf("%s(%s)", i.target.catalog.Name(enc.Recipe), BitsOf(enc.Bits))
}
