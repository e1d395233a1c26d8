package ir

// FunctionView gives predicates read-only access to the function that owns the instruction
// being encoded.
type FunctionView interface {
	ValueType(v Value) Type
	IsColocated(f FuncRef) bool
	ConstantData(c Constant) []byte
}

// Function is a minimal in-memory FunctionView.
type Function struct {
	Name      string
	Types     map[Value]Type
	Colocated map[FuncRef]bool
	Constants map[Constant][]byte
}

func NewFunction(name string) *Function {
	return &Function{
		Name:      name,
		Types:     make(map[Value]Type),
		Colocated: make(map[FuncRef]bool),
		Constants: make(map[Constant][]byte),
	}
}

// DefineValue records the type of a new value and returns it.
func (f *Function) DefineValue(ty Type) Value {
	v := Value(len(f.Types))
	f.Types[v] = ty
	return v
}

// DefineConstant adds bytes to the constant pool.
func (f *Function) DefineConstant(data []byte) Constant {
	c := Constant(len(f.Constants))
	f.Constants[c] = data
	return c
}

func (f *Function) ValueType(v Value) Type {
	return f.Types[v]
}

func (f *Function) IsColocated(ref FuncRef) bool {
	return f.Colocated[ref]
}

func (f *Function) ConstantData(c Constant) []byte {
	return f.Constants[c]
}
