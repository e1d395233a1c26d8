package ir

// Format names the shape (variant) of an instruction's data.
type Format uint8

const (
	FormatNullary Format = iota
	FormatUnary
	FormatUnaryImm
	FormatUnaryConst
	FormatBinary
	FormatBinaryImm
	FormatIntCompare
	FormatIntCompareImm
	FormatFloatCompare
	FormatBranch
	FormatJump
	FormatMultiAry
	FormatCall
	FormatFuncAddr
	FormatLoad
	FormatStore
	FormatTernary
)

var formatNames = [...]string{
	FormatNullary:       "Nullary",
	FormatUnary:         "Unary",
	FormatUnaryImm:      "UnaryImm",
	FormatUnaryConst:    "UnaryConst",
	FormatBinary:        "Binary",
	FormatBinaryImm:     "BinaryImm",
	FormatIntCompare:    "IntCompare",
	FormatIntCompareImm: "IntCompareImm",
	FormatFloatCompare:  "FloatCompare",
	FormatBranch:        "Branch",
	FormatJump:          "Jump",
	FormatMultiAry:      "MultiAry",
	FormatCall:          "Call",
	FormatFuncAddr:      "FuncAddr",
	FormatLoad:          "Load",
	FormatStore:         "Store",
	FormatTernary:       "Ternary",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "unknown"
}

// Value, Block, FuncRef and Constant are opaque entity references into the owning function.
type (
	Value    uint32
	Block    uint32
	FuncRef  uint32
	Constant uint32
)

// IntCC is an integer condition code.
type IntCC uint8

const (
	IntEqual IntCC = iota
	IntNotEqual
	IntSignedLessThan
	IntSignedGreaterThanOrEqual
	IntSignedGreaterThan
	IntSignedLessThanOrEqual
	IntUnsignedLessThan
	IntUnsignedGreaterThanOrEqual
	IntUnsignedGreaterThan
	IntUnsignedLessThanOrEqual
)

var intCCNames = [...]string{"eq", "ne", "slt", "sge", "sgt", "sle", "ult", "uge", "ugt", "ule"}

func (c IntCC) String() string {
	if int(c) < len(intCCNames) {
		return intCCNames[c]
	}
	return "unknown"
}

func ParseIntCC(name string) (IntCC, bool) {
	for i, n := range intCCNames {
		if n == name {
			return IntCC(i), true
		}
	}
	return 0, false
}

// FloatCC is a floating point condition code.
type FloatCC uint8

const (
	FloatOrdered FloatCC = iota
	FloatUnordered
	FloatEqual
	FloatNotEqual
	FloatOrderedNotEqual
	FloatUnorderedOrEqual
	FloatLessThan
	FloatLessThanOrEqual
	FloatGreaterThan
	FloatGreaterThanOrEqual
	FloatUnorderedOrLessThan
	FloatUnorderedOrLessThanOrEqual
	FloatUnorderedOrGreaterThan
	FloatUnorderedOrGreaterThanOrEqual
)

var floatCCNames = [...]string{"ord", "uno", "eq", "ne", "one", "ueq", "lt", "le", "gt", "ge", "ult", "ule", "ugt", "uge"}

func (c FloatCC) String() string {
	if int(c) < len(floatCCNames) {
		return floatCCNames[c]
	}
	return "unknown"
}

func ParseFloatCC(name string) (FloatCC, bool) {
	for i, n := range floatCCNames {
		if n == name {
			return FloatCC(i), true
		}
	}
	return 0, false
}

// InstructionData is the read-only view of one instruction. Each concrete type is one variant;
// its Format never changes.
type InstructionData interface {
	Opcode() Opcode
	Format() Format
	// Arguments lists the value operands in order.
	Arguments() []Value
}

type Nullary struct {
	Op Opcode
}

type Unary struct {
	Op  Opcode
	Arg Value
}

type UnaryImm struct {
	Op  Opcode
	Imm int64
}

type UnaryConst struct {
	Op       Opcode
	Constant Constant
}

type Binary struct {
	Op   Opcode
	Args [2]Value
}

type BinaryImm struct {
	Op  Opcode
	Arg Value
	Imm int64
}

type IntCompare struct {
	Op   Opcode
	Cond IntCC
	Args [2]Value
}

type IntCompareImm struct {
	Op   Opcode
	Cond IntCC
	Arg  Value
	Imm  int64
}

type FloatCompare struct {
	Op   Opcode
	Cond FloatCC
	Args [2]Value
}

type Branch struct {
	Op          Opcode
	Arg         Value
	Destination Block
}

type JumpData struct {
	Op          Opcode
	Destination Block
}

type MultiAry struct {
	Op   Opcode
	Args []Value
}

type CallData struct {
	Op     Opcode
	Callee FuncRef
	Args   []Value
}

type FuncAddrData struct {
	Op     Opcode
	Callee FuncRef
}

type LoadData struct {
	Op     Opcode
	Arg    Value
	Offset int32
}

type StoreData struct {
	Op     Opcode
	Args   [2]Value
	Offset int32
}

type Ternary struct {
	Op   Opcode
	Args [3]Value
}

func (d *Nullary) Opcode() Opcode       { return d.Op }
func (d *Unary) Opcode() Opcode         { return d.Op }
func (d *UnaryImm) Opcode() Opcode      { return d.Op }
func (d *UnaryConst) Opcode() Opcode    { return d.Op }
func (d *Binary) Opcode() Opcode        { return d.Op }
func (d *BinaryImm) Opcode() Opcode     { return d.Op }
func (d *IntCompare) Opcode() Opcode    { return d.Op }
func (d *IntCompareImm) Opcode() Opcode { return d.Op }
func (d *FloatCompare) Opcode() Opcode  { return d.Op }
func (d *Branch) Opcode() Opcode        { return d.Op }
func (d *JumpData) Opcode() Opcode      { return d.Op }
func (d *MultiAry) Opcode() Opcode      { return d.Op }
func (d *CallData) Opcode() Opcode      { return d.Op }
func (d *FuncAddrData) Opcode() Opcode  { return d.Op }
func (d *LoadData) Opcode() Opcode      { return d.Op }
func (d *StoreData) Opcode() Opcode     { return d.Op }
func (d *Ternary) Opcode() Opcode       { return d.Op }

func (*Nullary) Format() Format       { return FormatNullary }
func (*Unary) Format() Format         { return FormatUnary }
func (*UnaryImm) Format() Format      { return FormatUnaryImm }
func (*UnaryConst) Format() Format    { return FormatUnaryConst }
func (*Binary) Format() Format        { return FormatBinary }
func (*BinaryImm) Format() Format     { return FormatBinaryImm }
func (*IntCompare) Format() Format    { return FormatIntCompare }
func (*IntCompareImm) Format() Format { return FormatIntCompareImm }
func (*FloatCompare) Format() Format  { return FormatFloatCompare }
func (*Branch) Format() Format        { return FormatBranch }
func (*JumpData) Format() Format      { return FormatJump }
func (*MultiAry) Format() Format      { return FormatMultiAry }
func (*CallData) Format() Format      { return FormatCall }
func (*FuncAddrData) Format() Format  { return FormatFuncAddr }
func (*LoadData) Format() Format      { return FormatLoad }
func (*StoreData) Format() Format     { return FormatStore }
func (*Ternary) Format() Format       { return FormatTernary }

func (*Nullary) Arguments() []Value         { return nil }
func (d *Unary) Arguments() []Value         { return []Value{d.Arg} }
func (*UnaryImm) Arguments() []Value        { return nil }
func (*UnaryConst) Arguments() []Value      { return nil }
func (d *Binary) Arguments() []Value        { return d.Args[:] }
func (d *BinaryImm) Arguments() []Value     { return []Value{d.Arg} }
func (d *IntCompare) Arguments() []Value    { return d.Args[:] }
func (d *IntCompareImm) Arguments() []Value { return []Value{d.Arg} }
func (d *FloatCompare) Arguments() []Value  { return d.Args[:] }
func (d *Branch) Arguments() []Value        { return []Value{d.Arg} }
func (*JumpData) Arguments() []Value        { return nil }
func (d *MultiAry) Arguments() []Value      { return d.Args }
func (d *CallData) Arguments() []Value      { return d.Args }
func (*FuncAddrData) Arguments() []Value    { return nil }
func (d *LoadData) Arguments() []Value      { return []Value{d.Arg} }
func (d *StoreData) Arguments() []Value     { return d.Args[:] }
func (d *Ternary) Arguments() []Value       { return d.Args[:] }
