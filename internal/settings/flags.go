package settings

import (
	"fmt"

	"github.com/eigerco/isel/pkg/log"
)

// Flags is the frozen, immutable form of a Builder. It is safe for concurrent use.
type Flags struct {
	template *Template
	bytes    []byte
}

// NewFlags copies the builder state and derives every computed predicate once.
func NewFlags(b *Builder) (*Flags, error) {
	raw := make([]byte, b.template.byteSize)
	copy(raw, b.bytes)
	return newFlags(b.template, raw)
}

// FromBytes rebuilds flags from raw bytes previously obtained with Bytes. Predicate bits in
// raw are ignored and recomputed.
func FromBytes(t *Template, raw []byte) (*Flags, error) {
	if len(raw) != t.byteSize {
		return nil, fmt.Errorf("%w: %s wants %d bytes, got %d", ErrBadLength, t.group, t.byteSize, len(raw))
	}
	own := make([]byte, t.byteSize)
	copy(own, raw[:len(t.defaults)])
	return newFlags(t, own)
}

func newFlags(t *Template, raw []byte) (*Flags, error) {
	if len(raw) != t.byteSize {
		return nil, fmt.Errorf("%w: %s wants %d bytes, got %d", ErrBadLength, t.group, t.byteSize, len(raw))
	}
	for _, p := range t.predicates {
		if p.expr.eval(raw) {
			raw[p.bit/8] |= 1 << (p.bit % 8)
		}
	}
	log.Settings.Debug().Str("group", t.group).Hex("bytes", raw).Msg("flags frozen")
	return &Flags{template: t, bytes: raw}, nil
}

func (f *Flags) Template() *Template {
	return f.template
}

// Get returns the value of a bool, enum or num setting.
func (f *Flags) Get(name string) (Value, error) {
	return get(f.template, f.bytes, name)
}

// Bool reads a bool setting or computed predicate by name.
func (f *Flags) Bool(name string) (bool, error) {
	bit, ok := f.template.Bit(name)
	if !ok {
		return false, fmt.Errorf("%w: %s.%s", ErrUnknownSetting, f.template.group, name)
	}
	return f.Test(bit), nil
}

// Test reads one bit of the group.
func (f *Flags) Test(bit uint16) bool {
	return f.bytes[bit/8]&(1<<(bit%8)) != 0
}

// Bytes returns a copy of the raw flag bytes.
func (f *Flags) Bytes() []byte {
	out := make([]byte, len(f.bytes))
	copy(out, f.bytes)
	return out
}

// Values lists every non-preset setting in declaration order.
func (f *Flags) Values() []Value {
	values := make([]Value, 0, len(f.template.descriptors))
	for _, d := range f.template.descriptors {
		if d.Kind == Preset {
			continue
		}
		values = append(values, f.template.load(f.bytes, d))
	}
	return values
}

func (f *Flags) String() string {
	return Format(f)
}
