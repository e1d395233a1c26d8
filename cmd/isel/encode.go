package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eigerco/isel/internal/encoding"
	"github.com/eigerco/isel/internal/ir"
	"github.com/eigerco/isel/internal/isa/x86"
	"github.com/eigerco/isel/internal/recipe"
	"github.com/eigerco/isel/internal/regs"
)

type encodeOptions struct {
	target    targetOptions
	ctrl      string
	opcode    string
	argType   string
	args      int
	imm       int64
	offset    int32
	cond      string
	constant  string
	colocated bool
}

func newEncodeCommand() *cobra.Command {
	var opts encodeOptions

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Select the encoding of one instruction",
		Example: `  isel encode --type i64 --opcode iadd
  isel encode --type i64 --opcode iadd_imm --imm 1000
  isel encode --type i8 --opcode imul`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(cmd.OutOrStdout(), opts)
		},
	}

	opts.target.addFlags(cmd)
	flags := cmd.Flags()
	flags.StringVar(&opts.ctrl, "type", "i64", "Controlling type; typeless for non-polymorphic opcodes")
	flags.StringVar(&opts.opcode, "opcode", "", "Opcode name, e.g. iadd")
	flags.StringVar(&opts.argType, "arg-type", "", "Type of the value operands (default: the controlling type)")
	flags.IntVar(&opts.args, "args", 1, "Number of value operands of variadic instructions")
	flags.Int64Var(&opts.imm, "imm", 0, "Immediate operand")
	flags.Int32Var(&opts.offset, "offset", 0, "Memory offset")
	flags.StringVar(&opts.cond, "cond", "", "Condition code, e.g. slt or gt")
	flags.StringVar(&opts.constant, "const", "", "Hex bytes of the constant operand")
	flags.BoolVar(&opts.colocated, "colocated", false, "Treat the callee as colocated")
	_ = cmd.MarkFlagRequired("opcode")
	return cmd
}

func runEncode(out io.Writer, opts encodeOptions) error {
	target, err := opts.target.isa()
	if err != nil {
		return err
	}
	ctrl, ok := ir.ParseType(opts.ctrl)
	if !ok {
		return fmt.Errorf("unknown type %q", opts.ctrl)
	}
	op, ok := ir.ParseOpcode(opts.opcode)
	if !ok {
		return fmt.Errorf("unknown opcode %q", opts.opcode)
	}
	argType := ctrl
	if opts.argType != "" {
		if argType, ok = ir.ParseType(opts.argType); !ok {
			return fmt.Errorf("unknown type %q", opts.argType)
		}
	}

	fn := ir.NewFunction("cli")
	inst, err := buildInstruction(fn, op, argType, opts)
	if err != nil {
		return err
	}

	enc, action, ok := target.Encode(inst, ctrl, fn)
	if !ok {
		fmt.Fprintf(out, "no encoding for %s.%s in %s: legalize with %s\n", op, ctrl, target.Mode(), target.ActionName(action))
		return nil
	}
	describeEncoding(out, target, enc)
	return nil
}

func buildInstruction(fn *ir.Function, op ir.Opcode, ty ir.Type, opts encodeOptions) (ir.InstructionData, error) {
	value := func() ir.Value { return fn.DefineValue(ty) }
	callee := ir.FuncRef(0)
	fn.Colocated[callee] = opts.colocated

	switch op.Format() {
	case ir.FormatNullary:
		return &ir.Nullary{Op: op}, nil
	case ir.FormatUnary:
		return &ir.Unary{Op: op, Arg: value()}, nil
	case ir.FormatUnaryImm:
		return &ir.UnaryImm{Op: op, Imm: opts.imm}, nil
	case ir.FormatUnaryConst:
		data, err := hex.DecodeString(opts.constant)
		if err != nil {
			return nil, fmt.Errorf("--const: %w", err)
		}
		return &ir.UnaryConst{Op: op, Constant: fn.DefineConstant(data)}, nil
	case ir.FormatBinary:
		return &ir.Binary{Op: op, Args: [2]ir.Value{value(), value()}}, nil
	case ir.FormatBinaryImm:
		return &ir.BinaryImm{Op: op, Arg: value(), Imm: opts.imm}, nil
	case ir.FormatTernary:
		return &ir.Ternary{Op: op, Args: [3]ir.Value{value(), value(), value()}}, nil
	case ir.FormatIntCompare, ir.FormatIntCompareImm:
		cc, ok := ir.ParseIntCC(opts.cond)
		if !ok {
			return nil, fmt.Errorf("--cond: unknown integer condition %q", opts.cond)
		}
		if op.Format() == ir.FormatIntCompare {
			return &ir.IntCompare{Op: op, Cond: cc, Args: [2]ir.Value{value(), value()}}, nil
		}
		return &ir.IntCompareImm{Op: op, Cond: cc, Arg: value(), Imm: opts.imm}, nil
	case ir.FormatFloatCompare:
		cc, ok := ir.ParseFloatCC(opts.cond)
		if !ok {
			return nil, fmt.Errorf("--cond: unknown float condition %q", opts.cond)
		}
		return &ir.FloatCompare{Op: op, Cond: cc, Args: [2]ir.Value{value(), value()}}, nil
	case ir.FormatBranch:
		return &ir.Branch{Op: op, Arg: value()}, nil
	case ir.FormatJump:
		return &ir.JumpData{Op: op}, nil
	case ir.FormatMultiAry:
		args := make([]ir.Value, opts.args)
		for i := range args {
			args[i] = value()
		}
		return &ir.MultiAry{Op: op, Args: args}, nil
	case ir.FormatCall:
		return &ir.CallData{Op: op, Callee: callee}, nil
	case ir.FormatFuncAddr:
		return &ir.FuncAddrData{Op: op, Callee: callee}, nil
	case ir.FormatLoad:
		return &ir.LoadData{Op: op, Arg: value(), Offset: opts.offset}, nil
	case ir.FormatStore:
		return &ir.StoreData{Op: op, Args: [2]ir.Value{value(), value()}, Offset: opts.offset}, nil
	}
	return nil, fmt.Errorf("opcode %s has unsupported format %s", op, op.Format())
}

func describeEncoding(out io.Writer, target *x86.Isa, enc encoding.Encoding) {
	c := target.Catalog()
	r := c.Recipe(enc.Recipe)
	bits := x86.BitsOf(enc.Bits)
	fmt.Fprintf(out, "recipe:      %s\n", r.Name)
	fmt.Fprintf(out, "bits:        %#04x (%s)\n", enc.Bits, bits)
	fmt.Fprintf(out, "size:        %d (%s)\n", r.Sizing.Base, r.Sizing.Rule)
	if br, ok := c.BranchRange(enc.Recipe); ok {
		fmt.Fprintf(out, "branch:      %s\n", br)
	}
	fmt.Fprintf(out, "constraints: %s\n", formatConstraints(target.Registers(), &r.Constraints))
}

func formatConstraints(info *regs.Info, k *recipe.Constraints) string {
	one := func(c recipe.Constraint) string {
		switch c.Kind {
		case recipe.KindReg, recipe.KindStack:
			return fmt.Sprintf("%s(%s)", c.Kind, info.Class(c.Class).Name)
		case recipe.KindFixedReg, recipe.KindFixedTied:
			return fmt.Sprintf("%s(%s)", c.Kind, info.UnitName(c.Unit))
		}
		return c.String()
	}
	list := func(cs []recipe.Constraint) string {
		parts := make([]string, len(cs))
		for i, c := range cs {
			parts[i] = one(c)
		}
		return "[" + strings.Join(parts, " ") + "]"
	}
	s := "ins=" + list(k.Ins) + " outs=" + list(k.Outs)
	if k.ClobbersFlags {
		s += " clobbers_flags"
	}
	return s
}
