// Package recipe describes encoding recipes: the operand constraints the register allocator must
// honour and the code-size metadata branch relaxation needs.
package recipe

import (
	"errors"
	"fmt"

	"github.com/eigerco/isel/internal/ir"
	"github.com/eigerco/isel/internal/predicates"
	"github.com/eigerco/isel/internal/regs"
)

var (
	ErrDuplicateRecipe = errors.New("duplicate recipe name")
	ErrTooManyRecipes  = errors.New("too many recipes")
	ErrBadConstraint   = errors.New("invalid operand constraint")
	ErrInconsistent    = errors.New("constraint summary flags disagree with operands")
	ErrBadPredicate    = errors.New("recipe predicate does not match the recipe format")
	ErrOperandCount    = errors.New("operand count does not match the recipe")
	ErrPlacement       = errors.New("operand location violates its constraint")
)

// Index identifies a recipe in its catalog. It fits the 13-bit recipe field of a dispatch word.
type Index uint16

// MaxRecipes is the number of recipes a dispatch word can address.
const MaxRecipes = 1 << 13

type Recipe struct {
	Name        string
	Format      ir.Format
	Constraints Constraints
	Sizing      Sizing
	// Predicate guards the recipe; predicates.None means unconditional.
	Predicate predicates.ID
}

// Catalog is the immutable recipe list of one target.
type Catalog struct {
	recipes []Recipe
	byName  map[string]Index
	regs    *regs.Info
	preds   *predicates.Table
}

// NewCatalog validates recipes against the register model and predicate table.
func NewCatalog(info *regs.Info, preds *predicates.Table, recipes []Recipe) (*Catalog, error) {
	if len(recipes) > MaxRecipes {
		return nil, fmt.Errorf("%w: %d", ErrTooManyRecipes, len(recipes))
	}
	c := &Catalog{
		recipes: recipes,
		byName:  make(map[string]Index, len(recipes)),
		regs:    info,
		preds:   preds,
	}
	for i, r := range recipes {
		if _, dup := c.byName[r.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRecipe, r.Name)
		}
		c.byName[r.Name] = Index(i)
		if err := r.Constraints.validate(info); err != nil {
			return nil, fmt.Errorf("recipe %s: %w", r.Name, err)
		}
		if r.Predicate != predicates.None {
			p, ok := preds.Predicate(r.Predicate)
			if !ok || p.Format != r.Format {
				return nil, fmt.Errorf("recipe %s: %w", r.Name, ErrBadPredicate)
			}
		}
	}
	return c, nil
}

func (c *Catalog) Len() int {
	return len(c.recipes)
}

func (c *Catalog) Recipe(idx Index) *Recipe {
	return &c.recipes[idx]
}

func (c *Catalog) Name(idx Index) string {
	return c.recipes[idx].Name
}

func (c *Catalog) ByName(name string) (Index, bool) {
	idx, ok := c.byName[name]
	return idx, ok
}

func (c *Catalog) Constraints(idx Index) *Constraints {
	return &c.recipes[idx].Constraints
}

func (c *Catalog) Sizing(idx Index) Sizing {
	return c.recipes[idx].Sizing
}

// BranchRange is set for relaxable control-flow recipes.
func (c *Catalog) BranchRange(idx Index) (BranchRange, bool) {
	br := c.recipes[idx].Sizing.BranchRange
	if br == nil {
		return BranchRange{}, false
	}
	return *br, true
}

// Predicates is the table recipe predicates index into.
func (c *Catalog) Predicates() *predicates.Table {
	return c.preds
}

func (c *Catalog) Registers() *regs.Info {
	return c.regs
}

// EncodedSize is the exact byte length of recipe idx with operands placed as in p. It is never
// smaller than the recipe's base size.
func (c *Catalog) EncodedSize(idx Index, p Placement) int {
	s := c.recipes[idx].Sizing
	return int(s.Base) + int(additional(s.Rule, c.regs, p))
}

// CheckPlacement verifies that allocated locations satisfy the recipe's constraints.
func (c *Catalog) CheckPlacement(idx Index, p Placement) error {
	r := &c.recipes[idx]
	k := &r.Constraints
	if len(p.Ins) != len(k.Ins) || len(p.Outs) != len(k.Outs) {
		return fmt.Errorf("%w: %s wants %d/%d, got %d/%d", ErrOperandCount, r.Name,
			len(k.Ins), len(k.Outs), len(p.Ins), len(p.Outs))
	}
	for i, want := range k.Ins {
		if err := c.checkOne(want, p.Ins[i], p); err != nil {
			return fmt.Errorf("%s input %d: %w", r.Name, i, err)
		}
	}
	for i, want := range k.Outs {
		if err := c.checkOne(want, p.Outs[i], p); err != nil {
			return fmt.Errorf("%s output %d: %w", r.Name, i, err)
		}
	}
	return nil
}

func (c *Catalog) checkOne(want Constraint, got Location, p Placement) error {
	switch want.Kind {
	case KindReg:
		if got.Kind != LocReg || !c.regs.Contains(want.Class, got.Unit) {
			return fmt.Errorf("%w: %s not in class %s", ErrPlacement, c.describe(got), c.regs.Class(want.Class).Name)
		}
	case KindStack:
		if got.Kind != LocStack {
			return fmt.Errorf("%w: %s is not a stack slot", ErrPlacement, c.describe(got))
		}
	case KindFixedReg, KindFixedTied:
		if got.Kind != LocReg || got.Unit != want.Unit {
			return fmt.Errorf("%w: %s is not %s", ErrPlacement, c.describe(got), c.regs.UnitName(want.Unit))
		}
	case KindTied:
		if got != p.Ins[want.Tied] {
			return fmt.Errorf("%w: %s differs from input %d", ErrPlacement, c.describe(got), want.Tied)
		}
	}
	return nil
}

func (c *Catalog) describe(l Location) string {
	switch l.Kind {
	case LocReg:
		return c.regs.UnitName(l.Unit)
	case LocStack:
		return fmt.Sprintf("ss%d", l.Slot)
	}
	return "unassigned"
}
