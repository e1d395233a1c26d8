package recipe

import (
	"fmt"

	"github.com/eigerco/isel/internal/regs"
)

type ConstraintKind uint8

const (
	// KindReg places the operand in any register of Class.
	KindReg ConstraintKind = iota
	// KindTied makes an output share the location of input Tied.
	KindTied
	// KindFixedReg pins the operand to Unit.
	KindFixedReg
	// KindFixedTied pins the operand to Unit and ties the input to the output in the same unit.
	KindFixedTied
	// KindStack places the operand in a stack slot of Class.
	KindStack
)

func (k ConstraintKind) String() string {
	switch k {
	case KindReg:
		return "reg"
	case KindTied:
		return "tied"
	case KindFixedReg:
		return "fixed"
	case KindFixedTied:
		return "fixed_tied"
	case KindStack:
		return "stack"
	}
	return "unknown"
}

// Constraint is the placement requirement of one operand.
type Constraint struct {
	Kind  ConstraintKind
	Class regs.ClassIndex
	Tied  uint8
	Unit  regs.Unit
}

func Reg(class regs.ClassIndex) Constraint {
	return Constraint{Kind: KindReg, Class: class}
}

func Tied(input uint8) Constraint {
	return Constraint{Kind: KindTied, Tied: input}
}

func FixedReg(unit regs.Unit) Constraint {
	return Constraint{Kind: KindFixedReg, Unit: unit}
}

func FixedTied(unit regs.Unit) Constraint {
	return Constraint{Kind: KindFixedTied, Unit: unit}
}

func Stack(class regs.ClassIndex) Constraint {
	return Constraint{Kind: KindStack, Class: class}
}

func (c Constraint) String() string {
	switch c.Kind {
	case KindReg, KindStack:
		return fmt.Sprintf("%s(%d)", c.Kind, c.Class)
	case KindTied:
		return fmt.Sprintf("tied(%d)", c.Tied)
	}
	return fmt.Sprintf("%s(%d)", c.Kind, c.Unit)
}

func (c Constraint) fixed() bool {
	return c.Kind == KindFixedReg || c.Kind == KindFixedTied
}

func (c Constraint) tied() bool {
	return c.Kind == KindTied || c.Kind == KindFixedTied
}

// Constraints lists a recipe's operand constraints in operand order. The summary flags must
// agree with the lists; NewCatalog checks them.
type Constraints struct {
	Ins           []Constraint
	Outs          []Constraint
	FixedIns      bool
	FixedOuts     bool
	TiedOps       bool
	ClobbersFlags bool
}

// Summarize fills the summary flags from the operand lists.
func (c Constraints) Summarize() Constraints {
	c.FixedIns, c.FixedOuts, c.TiedOps = false, false, false
	for _, in := range c.Ins {
		c.FixedIns = c.FixedIns || in.fixed()
		c.TiedOps = c.TiedOps || in.tied()
	}
	for _, out := range c.Outs {
		c.FixedOuts = c.FixedOuts || out.fixed()
		c.TiedOps = c.TiedOps || out.tied()
	}
	return c
}

func (c Constraints) validate(info *regs.Info) error {
	s := c.Summarize()
	if s.FixedIns != c.FixedIns || s.FixedOuts != c.FixedOuts || s.TiedOps != c.TiedOps {
		return ErrInconsistent
	}
	check := func(list []Constraint) error {
		for _, k := range list {
			switch k.Kind {
			case KindReg, KindStack:
				if int(k.Class) >= len(info.Classes()) {
					return fmt.Errorf("%w: class %d", ErrBadConstraint, k.Class)
				}
			case KindFixedReg, KindFixedTied:
				if _, ok := info.BankOf(k.Unit); !ok {
					return fmt.Errorf("%w: unit %d", ErrBadConstraint, k.Unit)
				}
			}
		}
		return nil
	}
	if err := check(c.Ins); err != nil {
		return err
	}
	if err := check(c.Outs); err != nil {
		return err
	}
	for _, in := range c.Ins {
		if in.Kind == KindTied {
			return fmt.Errorf("%w: input tied to input", ErrBadConstraint)
		}
	}
	for _, out := range c.Outs {
		if out.Kind == KindTied && int(out.Tied) >= len(c.Ins) {
			return fmt.Errorf("%w: tied to missing input %d", ErrBadConstraint, out.Tied)
		}
	}
	return nil
}
