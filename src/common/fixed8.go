package common

import (
	"errors"
	"strconv"
	"strings"
)

const (
	fixed8Decimals = 8
	fixed8Factor   = 100000000
)

// ErrInvalidFixed8 is returned when a decimal string cannot be represented.
var ErrInvalidFixed8 = errors.New("invalid fixed8 value")

// Fixed8 is a signed amount with 8 implied decimal places. It is the unit of
// account for every asset value.
type Fixed8 int64

// Fixed8FromInt64 returns n whole units.
func Fixed8FromInt64(n int64) Fixed8 {
	return Fixed8(n * fixed8Factor)
}

// Fixed8FromString parses a decimal string such as "12.5".
func Fixed8FromString(s string) (Fixed8, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	parts := strings.SplitN(s, ".", 2)
	ip, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, ErrInvalidFixed8
	}
	var fp int64
	if len(parts) == 2 {
		frac := parts[1]
		if len(frac) > fixed8Decimals {
			return 0, ErrInvalidFixed8
		}
		frac += strings.Repeat("0", fixed8Decimals-len(frac))
		if fp, err = strconv.ParseInt(frac, 10, 64); err != nil {
			return 0, ErrInvalidFixed8
		}
	}
	v := ip*fixed8Factor + fp
	if neg {
		v = -v
	}
	return Fixed8(v), nil
}

// IntegralValue returns the whole units, truncated.
func (f Fixed8) IntegralValue() int64 {
	return int64(f) / fixed8Factor
}

// FractionalValue returns the sub-unit part.
func (f Fixed8) FractionalValue() int32 {
	return int32(int64(f) % fixed8Factor)
}

func (f Fixed8) String() string {
	v := int64(f)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatInt(v/fixed8Factor, 10)
	frac := v % fixed8Factor
	if frac == 0 {
		return sign + s
	}
	fs := strconv.FormatInt(frac, 10)
	fs = strings.Repeat("0", fixed8Decimals-len(fs)) + fs
	return sign + s + "." + strings.TrimRight(fs, "0")
}
