package settings

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml"
)

// Format renders flags as `[group]` sections of `name = value` lines. Enum values are quoted so
// the output is valid TOML.
func Format(groups ...*Flags) string {
	var sb strings.Builder
	for i, f := range groups {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "[%s]\n", f.template.group)
		for _, v := range f.Values() {
			if v.Kind == Enum {
				fmt.Fprintf(&sb, "%s = %q\n", v.Name, v.Enum)
				continue
			}
			fmt.Fprintf(&sb, "%s = %s\n", v.Name, v)
		}
	}
	return sb.String()
}

// Parse applies the settings text to the builders whose group appears in it. Presets are applied
// before plain settings so explicit values win.
func Parse(text string, builders ...*Builder) error {
	tree, err := toml.Load(text)
	if err != nil {
		return fmt.Errorf("parse settings: %w", err)
	}
	byGroup := make(map[string]*Builder, len(builders))
	for _, b := range builders {
		byGroup[b.template.group] = b
	}
	for _, group := range tree.Keys() {
		b, ok := byGroup[group]
		if !ok {
			return fmt.Errorf("%w: group [%s]", ErrUnknownSetting, group)
		}
		section, ok := tree.Get(group).(*toml.Tree)
		if !ok {
			return fmt.Errorf("%w: %s is not a group", ErrBadValue, group)
		}
		if err := applySection(b, section); err != nil {
			return err
		}
	}
	return nil
}

func applySection(b *Builder, section *toml.Tree) error {
	keys := section.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		return isPreset(b.template, keys[i]) && !isPreset(b.template, keys[j])
	})
	for _, key := range keys {
		value, err := tomlValue(section.Get(key))
		if err != nil {
			return fmt.Errorf("%w: %s.%s", err, b.template.group, key)
		}
		if err := b.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

func isPreset(t *Template, name string) bool {
	d, ok := t.Lookup(name)
	return ok && d.Kind == Preset
}

func tomlValue(v interface{}) (string, error) {
	switch v := v.(type) {
	case bool:
		return strconv.FormatBool(v), nil
	case string:
		return v, nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	}
	return "", ErrBadValue
}
