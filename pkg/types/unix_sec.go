package types

import (
	"encoding"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// UnixSec is a second-resolution UNIX timestamp as found in monitoring
// status files. The zero value represents "never".
type UnixSec time.Time

// Time returns the time.Time conversion of UnixSec.
func (t UnixSec) Time() time.Time {
	return time.Time(t)
}

// IsZero reports whether t represents "never".
func (t UnixSec) IsZero() bool {
	return time.Time(t).IsZero()
}

// MarshalJSON implements the json.Marshaler interface.
func (t UnixSec) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}

	return []byte(strconv.FormatInt(time.Time(t).Unix(), 10)), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *UnixSec) UnmarshalJSON(data []byte) error {
	if string(data) == "null" || len(data) == 0 {
		return nil
	}

	return t.UnmarshalText(data)
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
// Status files carry timestamps as decimal UNIX seconds, "0" meaning never.
func (t *UnixSec) UnmarshalText(text []byte) error {
	s := string(text)

	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return errors.Wrap(err, "can't parse UNIX timestamp "+s)
	}

	if sec == 0 {
		*t = UnixSec(time.Time{})
		return nil
	}

	*t = UnixSec(time.Unix(sec, 0))

	return nil
}

// MarshalText implements the encoding.TextMarshaler interface.
func (t UnixSec) MarshalText() ([]byte, error) {
	if t.IsZero() {
		return []byte("0"), nil
	}

	return []byte(strconv.FormatInt(time.Time(t).Unix(), 10)), nil
}

// Assert interface compliance.
var (
	_ json.Marshaler           = UnixSec{}
	_ json.Unmarshaler         = (*UnixSec)(nil)
	_ encoding.TextUnmarshaler = (*UnixSec)(nil)
	_ encoding.TextMarshaler   = UnixSec{}
)
