package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eigerco/isel/internal/isa"
	"github.com/eigerco/isel/internal/isa/x86"
	"github.com/eigerco/isel/internal/settings"
)

// targetOptions configure the x86 target from the command line.
type targetOptions struct {
	mode    string
	file    string
	presets []string
	sets    []string
}

func (o *targetOptions) addFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.mode, "mode", x86.ModeI64, "CPU mode (I64 or I32)")
	flags.StringVar(&o.file, "file", "", "Settings file in the text format printed by `isel settings`")
	flags.StringArrayVar(&o.presets, "preset", nil, "Apply a preset, e.g. haswell")
	flags.StringArrayVar(&o.sets, "set", nil, "Set a value as [group.]name=value")
}

// flags applies the file, then presets, then individual settings.
func (o *targetOptions) flags() (isa.Shared, x86.Flags, error) {
	shared, target := isa.NewSharedBuilder(), x86.NewBuilder()
	if o.file != "" {
		text, err := os.ReadFile(o.file)
		if err != nil {
			return isa.Shared{}, x86.Flags{}, err
		}
		if err := settings.Parse(string(text), shared, target); err != nil {
			return isa.Shared{}, x86.Flags{}, fmt.Errorf("%s: %w", o.file, err)
		}
	}
	for _, p := range o.presets {
		b, name, err := pick(p, shared, target)
		if err != nil {
			return isa.Shared{}, x86.Flags{}, err
		}
		if err := b.ApplyPreset(name); err != nil {
			return isa.Shared{}, x86.Flags{}, err
		}
	}
	for _, kv := range o.sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return isa.Shared{}, x86.Flags{}, fmt.Errorf("%w: %q is not name=value", settings.ErrBadValue, kv)
		}
		b, name, err := pick(key, shared, target)
		if err != nil {
			return isa.Shared{}, x86.Flags{}, err
		}
		if err := b.Set(name, value); err != nil {
			return isa.Shared{}, x86.Flags{}, err
		}
	}

	s, err := isa.NewShared(shared)
	if err != nil {
		return isa.Shared{}, x86.Flags{}, err
	}
	f, err := x86.NewFlags(target)
	if err != nil {
		return isa.Shared{}, x86.Flags{}, err
	}
	return s, f, nil
}

func (o *targetOptions) isa() (*x86.Isa, error) {
	s, f, err := o.flags()
	if err != nil {
		return nil, err
	}
	return x86.New(s, f, o.mode)
}

// pick finds the builder owning a setting. A "group." prefix selects the group explicitly.
func pick(name string, builders ...*settings.Builder) (*settings.Builder, string, error) {
	group, key, qualified := strings.Cut(name, ".")
	for _, b := range builders {
		if qualified {
			if b.Template().Group() == group {
				return b, key, nil
			}
			continue
		}
		if _, ok := b.Template().Lookup(name); ok {
			return b, name, nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s", settings.ErrUnknownSetting, name)
}
