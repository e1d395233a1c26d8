package ir

// Type is an IR value type. The zero value is the invalid type, which doubles as the
// controlling type of non-polymorphic opcodes ("typeless").
type Type uint8

const (
	Invalid Type = iota
	B1
	I8
	I16
	I32
	I64
	F32
	F64
	I8X16
	I32X4
	F32X4
)

var typeNames = [...]string{
	Invalid: "typeless",
	B1:      "b1",
	I8:      "i8",
	I16:     "i16",
	I32:     "i32",
	I64:     "i64",
	F32:     "f32",
	F64:     "f64",
	I8X16:   "i8x16",
	I32X4:   "i32x4",
	F32X4:   "f32x4",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Bits is the total width of the type.
func (t Type) Bits() int {
	switch t {
	case B1:
		return 1
	case I8:
		return 8
	case I16:
		return 16
	case I32, F32:
		return 32
	case I64, F64:
		return 64
	case I8X16, I32X4, F32X4:
		return 128
	}
	return 0
}

func (t Type) IsInt() bool {
	return t >= I8 && t <= I64
}

func (t Type) IsFloat() bool {
	return t == F32 || t == F64
}

func (t Type) IsVector() bool {
	return t >= I8X16
}

// ParseType resolves a type by its textual name.
func ParseType(name string) (Type, bool) {
	for i, n := range typeNames {
		if n == name {
			return Type(i), true
		}
	}
	return Invalid, false
}
