package settings

import "errors"

var (
	// ErrUnknownSetting is returned when a name matches no descriptor of the template.
	ErrUnknownSetting = errors.New("unknown setting")
	// ErrBadValue is returned when a value cannot be stored in the named setting.
	ErrBadValue = errors.New("invalid value for setting")
	// ErrBadLength is returned when raw flag bytes do not match the template size.
	ErrBadLength = errors.New("flags length does not match template")
)
