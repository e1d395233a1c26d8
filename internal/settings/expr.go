package settings

import "fmt"

type exprOp uint8

const (
	opRef exprOp = iota
	opNot
	opAll
	opAny
)

// Expr is a boolean expression over bits set before it is evaluated.
type Expr struct {
	op   exprOp
	name string
	bit  uint16
	args []Expr
}

// Ref names a bool setting or an earlier computed predicate.
func Ref(name string) Expr {
	return Expr{op: opRef, name: name}
}

func Not(e Expr) Expr {
	return Expr{op: opNot, args: []Expr{e}}
}

// All is true when every operand is.
func All(es ...Expr) Expr {
	return Expr{op: opAll, args: es}
}

// Any is true when at least one operand is.
func Any(es ...Expr) Expr {
	return Expr{op: opAny, args: es}
}

func (e Expr) resolve(bits map[string]uint16) (Expr, error) {
	if e.op == opRef {
		bit, ok := bits[e.name]
		if !ok {
			return Expr{}, fmt.Errorf("%w: %s", ErrUnknownSetting, e.name)
		}
		e.bit = bit
		return e, nil
	}
	args := make([]Expr, len(e.args))
	for i, a := range e.args {
		r, err := a.resolve(bits)
		if err != nil {
			return Expr{}, err
		}
		args[i] = r
	}
	e.args = args
	return e, nil
}

func (e Expr) eval(raw []byte) bool {
	switch e.op {
	case opRef:
		return raw[e.bit/8]&(1<<(e.bit%8)) != 0
	case opNot:
		return !e.args[0].eval(raw)
	case opAll:
		for _, a := range e.args {
			if !a.eval(raw) {
				return false
			}
		}
		return true
	case opAny:
		for _, a := range e.args {
			if a.eval(raw) {
				return true
			}
		}
	}
	return false
}
