package types

import (
	"encoding"

	"github.com/pkg/errors"
)

var (
	Yes = Bool{Bool: true, Valid: true}
	No  = Bool{Bool: false, Valid: true}
)

// Bool represents a bool flag serialized as "0" or "1", which can be absent.
type Bool struct {
	Bool  bool
	Valid bool // Valid is true if the flag was present in the source.
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (b *Bool) UnmarshalText(text []byte) error {
	switch string(text) {
	case "0":
		*b = No
	case "1":
		*b = Yes
	default:
		return errors.Errorf("bad bool %q", text)
	}

	return nil
}

// MarshalText implements the encoding.TextMarshaler interface.
func (b Bool) MarshalText() ([]byte, error) {
	if !b.Valid {
		return nil, nil
	}

	if b.Bool {
		return []byte("1"), nil
	}

	return []byte("0"), nil
}

// Assert interface compliance.
var (
	_ encoding.TextUnmarshaler = (*Bool)(nil)
	_ encoding.TextMarshaler   = Bool{}
)
