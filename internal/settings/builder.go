package settings

import (
	"fmt"

	"github.com/eigerco/isel/pkg/log"
)

// Builder collects setting values for one template before they are frozen into Flags.
type Builder struct {
	template *Template
	bytes    []byte
}

// NewBuilder starts from the template defaults.
func NewBuilder(t *Template) *Builder {
	b := &Builder{template: t, bytes: make([]byte, t.byteSize)}
	copy(b.bytes, t.defaults)
	return b
}

func (b *Builder) Template() *Template {
	return b.template
}

// Set parses value according to the named setting's kind and stores it.
// Setting a preset to "true" applies it.
func (b *Builder) Set(name, value string) error {
	i, ok := b.template.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownSetting, b.template.group, name)
	}
	return b.template.store(b.bytes, b.template.descriptors[i], value)
}

// Enable turns on a bool setting or applies a preset.
func (b *Builder) Enable(name string) error {
	return b.Set(name, "true")
}

// ApplyPreset applies the named preset. Applying the same preset again changes nothing.
func (b *Builder) ApplyPreset(name string) error {
	i, ok := b.template.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownSetting, b.template.group, name)
	}
	d := b.template.descriptors[i]
	if d.Kind != Preset {
		return fmt.Errorf("%w: %s is a %s, not a preset", ErrBadValue, name, d.Kind)
	}
	applyPreset(b.bytes, b.template.preset(d))
	log.Settings.Debug().Str("group", b.template.group).Str("preset", name).Msg("preset applied")
	return nil
}

// Get reads back the current value of a setting.
func (b *Builder) Get(name string) (Value, error) {
	return get(b.template, b.bytes, name)
}

func get(t *Template, raw []byte, name string) (Value, error) {
	i, ok := t.lookup(name)
	if !ok {
		return Value{}, fmt.Errorf("%w: %s.%s", ErrUnknownSetting, t.group, name)
	}
	d := t.descriptors[i]
	if d.Kind == Preset {
		return Value{}, fmt.Errorf("%w: preset %s has no value", ErrBadValue, name)
	}
	return t.load(raw, d), nil
}
