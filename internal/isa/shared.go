// Package isa holds the settings shared by every target and the target-independent parts of an
// ISA description.
package isa

import (
	"fmt"

	"github.com/eigerco/isel/internal/settings"
)

// OptLevel mirrors the opt_level enum.
type OptLevel uint8

const (
	OptNone OptLevel = iota
	OptSpeed
	OptSpeedAndSize
)

var sharedTemplate = mustTemplate(settings.NewTemplate("shared",
	[]settings.Definition{
		{Name: "opt_level", Kind: settings.Enum, Default: "none", Values: []string{"none", "speed", "speed_and_size"},
			Description: "Optimization level for generated code."},
		{Name: "probestack_size_log2", Kind: settings.Num, Default: "12",
			Description: "Log2 of the stack probe interval."},
		{Name: "enable_verifier", Kind: settings.Bool, Default: "true",
			Description: "Run the IR verifier at compilation boundaries."},
		{Name: "is_pic", Kind: settings.Bool,
			Description: "Generate position-independent code."},
		{Name: "colocated_libcalls", Kind: settings.Bool, Default: "true",
			Description: "Assume runtime library calls are within direct call range."},
		{Name: "avoid_div_traps", Kind: settings.Bool,
			Description: "Expand divisions so they cannot trap."},
		{Name: "enable_float", Kind: settings.Bool, Default: "true",
			Description: "Allow floating point instructions."},
		{Name: "enable_simd", Kind: settings.Bool,
			Description: "Allow SIMD instructions."},
		{Name: "enable_atomics", Kind: settings.Bool, Default: "true",
			Description: "Allow atomic instructions."},
		{Name: "enable_probestack", Kind: settings.Bool, Default: "true",
			Description: "Probe the stack in large frames."},
		{Name: "enable_pinned_reg", Kind: settings.Bool,
			Description: "Reserve the pinned register for the embedder."},
	},
	nil,
	[]settings.PredicateDefinition{
		{Name: "use_pinned_reg", Expr: settings.Ref("enable_pinned_reg")},
	},
))

func mustTemplate(t *settings.Template, err error) *settings.Template {
	if err != nil {
		panic(fmt.Sprintf("isa: bad settings template: %v", err))
	}
	return t
}

// SharedTemplate describes the "shared" settings group.
func SharedTemplate() *settings.Template {
	return sharedTemplate
}

// NewSharedBuilder starts a shared configuration from the defaults.
func NewSharedBuilder() *settings.Builder {
	return settings.NewBuilder(sharedTemplate)
}

// Shared wraps frozen shared flags with typed accessors.
type Shared struct {
	*settings.Flags
}

func NewShared(b *settings.Builder) (Shared, error) {
	if b.Template() != sharedTemplate {
		return Shared{}, fmt.Errorf("%w: builder is for group %s", settings.ErrBadValue, b.Template().Group())
	}
	f, err := settings.NewFlags(b)
	if err != nil {
		return Shared{}, err
	}
	return Shared{f}, nil
}

// SharedFromBytes rebuilds shared flags persisted with Bytes.
func SharedFromBytes(raw []byte) (Shared, error) {
	f, err := settings.FromBytes(sharedTemplate, raw)
	if err != nil {
		return Shared{}, err
	}
	return Shared{f}, nil
}

// DefaultShared is the shared configuration with every setting at its default.
func DefaultShared() Shared {
	s, err := NewShared(NewSharedBuilder())
	if err != nil {
		panic(err)
	}
	return s
}

func (s Shared) flag(name string) bool {
	v, err := s.Flags.Bool(name)
	if err != nil {
		panic(err)
	}
	return v
}

func (s Shared) OptLevel() OptLevel {
	v, err := s.Get("opt_level")
	if err != nil {
		panic(err)
	}
	switch v.Enum {
	case "speed":
		return OptSpeed
	case "speed_and_size":
		return OptSpeedAndSize
	}
	return OptNone
}

func (s Shared) ProbestackSizeLog2() uint8 {
	v, err := s.Get("probestack_size_log2")
	if err != nil {
		panic(err)
	}
	return v.Num
}

func (s Shared) EnableVerifier() bool    { return s.flag("enable_verifier") }
func (s Shared) IsPIC() bool             { return s.flag("is_pic") }
func (s Shared) ColocatedLibcalls() bool { return s.flag("colocated_libcalls") }
func (s Shared) AvoidDivTraps() bool     { return s.flag("avoid_div_traps") }
func (s Shared) EnableFloat() bool       { return s.flag("enable_float") }
func (s Shared) EnableSIMD() bool        { return s.flag("enable_simd") }
func (s Shared) EnableAtomics() bool     { return s.flag("enable_atomics") }
func (s Shared) EnableProbestack() bool  { return s.flag("enable_probestack") }
func (s Shared) EnablePinnedReg() bool   { return s.flag("enable_pinned_reg") }
func (s Shared) UsePinnedReg() bool      { return s.flag("use_pinned_reg") }
