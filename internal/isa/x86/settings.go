package x86

import (
	"fmt"

	"github.com/eigerco/isel/internal/settings"
)

var template = mustTemplate(settings.NewTemplate("x86",
	[]settings.Definition{
		{Name: "has_sse3", Kind: settings.Bool, Description: "SSE3: CPUID.01H:ECX.SSE3[bit 0]"},
		{Name: "has_ssse3", Kind: settings.Bool, Description: "SSSE3: CPUID.01H:ECX.SSSE3[bit 9]"},
		{Name: "has_sse41", Kind: settings.Bool, Description: "SSE4.1: CPUID.01H:ECX.SSE4_1[bit 19]"},
		{Name: "has_sse42", Kind: settings.Bool, Description: "SSE4.2: CPUID.01H:ECX.SSE4_2[bit 20]"},
		{Name: "has_popcnt", Kind: settings.Bool, Description: "POPCNT: CPUID.01H:ECX.POPCNT[bit 23]"},
		{Name: "has_avx", Kind: settings.Bool, Description: "AVX: CPUID.01H:ECX.AVX[bit 28]"},
		{Name: "has_bmi1", Kind: settings.Bool, Description: "BMI1: CPUID.(EAX=07H, ECX=0H):EBX.BMI1[bit 3]"},
		{Name: "has_bmi2", Kind: settings.Bool, Description: "BMI2: CPUID.(EAX=07H, ECX=0H):EBX.BMI2[bit 8]"},
		{Name: "has_lzcnt", Kind: settings.Bool, Description: "LZCNT: CPUID.EAX=80000001H:ECX.LZCNT[bit 5]"},
	},
	[]settings.PresetDefinition{
		{Name: "baseline"},
		{Name: "nehalem", Enable: []string{"has_sse3", "has_ssse3", "has_sse41", "has_sse42", "has_popcnt"}},
		{Name: "haswell", Enable: []string{"nehalem", "has_bmi1", "has_bmi2", "has_lzcnt"}},
	},
	[]settings.PredicateDefinition{
		{Name: "use_ssse3", Expr: settings.All(settings.Ref("has_sse3"), settings.Ref("has_ssse3"))},
		{Name: "use_sse41", Expr: settings.All(settings.Ref("has_sse41"), settings.Ref("use_ssse3"))},
		{Name: "use_sse42", Expr: settings.All(settings.Ref("has_sse42"), settings.Ref("use_sse41"))},
		{Name: "use_popcnt", Expr: settings.All(settings.Ref("has_popcnt"), settings.Ref("use_sse42"))},
		{Name: "use_bmi1", Expr: settings.Ref("has_bmi1")},
		{Name: "use_lzcnt", Expr: settings.Ref("has_lzcnt")},
	},
))

func mustTemplate(t *settings.Template, err error) *settings.Template {
	if err != nil {
		panic(fmt.Sprintf("x86: bad settings template: %v", err))
	}
	return t
}

// Template describes the "x86" settings group.
func Template() *settings.Template {
	return template
}

// NewBuilder starts an x86 configuration with every feature off.
func NewBuilder() *settings.Builder {
	return settings.NewBuilder(template)
}

// Flags are the frozen x86 settings.
type Flags struct {
	*settings.Flags
}

func NewFlags(b *settings.Builder) (Flags, error) {
	if b.Template() != template {
		return Flags{}, fmt.Errorf("%w: builder is for group %s", settings.ErrBadValue, b.Template().Group())
	}
	f, err := settings.NewFlags(b)
	if err != nil {
		return Flags{}, err
	}
	return Flags{f}, nil
}

// FlagsFromBytes rebuilds flags persisted with Bytes.
func FlagsFromBytes(raw []byte) (Flags, error) {
	f, err := settings.FromBytes(template, raw)
	if err != nil {
		return Flags{}, err
	}
	return Flags{f}, nil
}

func (f Flags) flag(name string) bool {
	v, err := f.Flags.Bool(name)
	if err != nil {
		panic(err)
	}
	return v
}

func (f Flags) HasSSE3() bool   { return f.flag("has_sse3") }
func (f Flags) HasSSSE3() bool  { return f.flag("has_ssse3") }
func (f Flags) HasSSE41() bool  { return f.flag("has_sse41") }
func (f Flags) HasSSE42() bool  { return f.flag("has_sse42") }
func (f Flags) HasPopcnt() bool { return f.flag("has_popcnt") }
func (f Flags) HasAVX() bool    { return f.flag("has_avx") }
func (f Flags) HasBMI1() bool   { return f.flag("has_bmi1") }
func (f Flags) HasBMI2() bool   { return f.flag("has_bmi2") }
func (f Flags) HasLZCNT() bool  { return f.flag("has_lzcnt") }

func (f Flags) UseSSSE3() bool  { return f.flag("use_ssse3") }
func (f Flags) UseSSE41() bool  { return f.flag("use_sse41") }
func (f Flags) UseSSE42() bool  { return f.flag("use_sse42") }
func (f Flags) UsePopcnt() bool { return f.flag("use_popcnt") }
func (f Flags) UseBMI1() bool   { return f.flag("use_bmi1") }
func (f Flags) UseLZCNT() bool  { return f.flag("use_lzcnt") }
