// Package types holds small value types shared by scenario configuration:
// durations that accept both Go's native duration syntax and an extended
// day-aware syntax, and their nullable counterparts for JSON decoding.
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Duration is a time.Duration that (un)marshals as a human string
// ("1m15s") rather than a bare integer of nanoseconds.
type Duration time.Duration

// extendedDurationRE recognizes an optional sign, an optional day count, and
// a trailing Go duration string, e.g. "-1d2h1m15s".
var extendedDurationRE = regexp.MustCompile(`^([+-]?)(?:(\d+)d)?(.*)$`)

// ParseExtendedDuration parses a duration string that may be prefixed with
// a whole number of days ("1d2h" == 26h), in addition to everything
// time.ParseDuration already accepts.
func ParseExtendedDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, errors.New("duration cannot be empty")
	}

	m := extendedDurationRE.FindStringSubmatch(s)
	if m == nil {
		return time.ParseDuration(s)
	}
	sign, days, rest := m[1], m[2], m[3]

	if days == "" {
		return time.ParseDuration(s)
	}
	if rest == "" {
		rest = "0s"
	}
	if strings.ContainsAny(rest, "+-") {
		return 0, fmt.Errorf("invalid duration %q: sign not allowed after day count", s)
	}

	restDur, err := time.ParseDuration(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	daysInt, err := strconv.ParseInt(days, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	dayDur := time.Duration(daysInt) * 24 * time.Hour
	total := dayDur + restDur
	if sign == "-" {
		total = -total
	}
	return total, nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler, accepting either a bare
// millisecond count or a duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*d = Duration(time.Duration(num) * time.Millisecond)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("invalid duration %s: %w", data, err)
	}
	return d.UnmarshalText([]byte(str))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(data []byte) error {
	v, err := ParseExtendedDuration(string(data))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// NullDuration is a Duration that can be absent, distinguishing "not set"
// from "set to zero" the same way gopkg.in/guregu/null.v3 does for its
// builtin types.
type NullDuration struct {
	Duration Duration
	Valid    bool
}

// NewNullDuration wraps d, marking it valid or not per the valid argument.
func NewNullDuration(d time.Duration, valid bool) NullDuration {
	return NullDuration{Duration: Duration(d), Valid: valid}
}

// NullDurationFrom wraps a valid duration.
func NullDurationFrom(d time.Duration) NullDuration {
	return NewNullDuration(d, true)
}

// TimeDuration returns the value as a stdlib time.Duration.
func (d NullDuration) TimeDuration() time.Duration {
	return time.Duration(d.Duration)
}

// MarshalJSON implements json.Marshaler.
func (d NullDuration) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return d.Duration.MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *NullDuration) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		d.Duration, d.Valid = 0, false
		return nil
	}
	if err := d.Duration.UnmarshalJSON(data); err != nil {
		return err
	}
	d.Valid = true
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty string leaves
// the value unset rather than erroring.
func (d *NullDuration) UnmarshalText(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		*d = NullDuration{}
		return nil
	}
	if err := d.Duration.UnmarshalText(data); err != nil {
		return err
	}
	d.Valid = true
	return nil
}

// GetDurationValue coerces an arbitrary decoded config value (as produced
// by encoding/json's untyped unmarshalling) into a time.Duration.
func GetDurationValue(v interface{}) (time.Duration, error) {
	switch val := v.(type) {
	case time.Duration:
		return val, nil
	case Duration:
		return time.Duration(val), nil
	case string:
		return ParseExtendedDuration(strings.TrimSpace(val))
	case int:
		return time.Duration(val) * time.Millisecond, nil
	case int8:
		return time.Duration(val) * time.Millisecond, nil
	case int16:
		return time.Duration(val) * time.Millisecond, nil
	case int32:
		return time.Duration(val) * time.Millisecond, nil
	case int64:
		return time.Duration(val) * time.Millisecond, nil
	case uint:
		return time.Duration(val) * time.Millisecond, nil
	case uint8:
		return time.Duration(val) * time.Millisecond, nil
	case uint16:
		return time.Duration(val) * time.Millisecond, nil
	case uint32:
		return time.Duration(val) * time.Millisecond, nil
	case uint64:
		if val > 1<<62 {
			return 0, fmt.Errorf("duration value too large: %d", val)
		}
		return time.Duration(val) * time.Millisecond, nil
	case float32:
		return time.Duration(float64(val) * float64(time.Millisecond)), nil
	case float64:
		return time.Duration(val * float64(time.Millisecond)), nil
	default:
		return 0, fmt.Errorf("unable to use type %T as a duration value", v)
	}
}
