// Package money provides fixed-point monetary amounts.
// Amounts are stored as integer micro-dollars (1/1,000,000 USD) so that
// summing many fractional-cent values is exact and reproducible.
// All functions are pure - no side effects.
package money

import (
	"fmt"
	"strconv"
	"strings"
)

// MicrosPerDollar is the number of micro-units in one dollar.
const MicrosPerDollar = 1_000_000

// Zero is the zero amount.
const Zero Amount = 0

// Amount is a monetary value in micro-dollars.
// Amounts are comparable with the usual integer operators.
type Amount int64

// FromMicros creates an Amount from raw micro-dollars.
func FromMicros(m int64) Amount {
	return Amount(m)
}

// Micros returns the raw micro-dollar value.
func (a Amount) Micros() int64 {
	return int64(a)
}

// Add returns the sum of two amounts.
func (a Amount) Add(b Amount) Amount {
	return a + b
}

// IsNegative reports whether the amount is below zero.
func (a Amount) IsNegative() bool {
	return a < 0
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool {
	return a == 0
}

// Float64 converts to a floating-point dollar value.
// Only for display boundaries; never accumulate floats.
func (a Amount) Float64() float64 {
	return float64(a) / MicrosPerDollar
}

// String formats the amount as a decimal dollar string, e.g. "0.335" or "2".
// Trailing fractional zeros are trimmed.
func (a Amount) String() string {
	neg := a < 0
	v := int64(a)
	if neg {
		v = -v
	}
	dollars := v / MicrosPerDollar
	frac := v % MicrosPerDollar

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(strconv.FormatInt(dollars, 10))
	if frac > 0 {
		s := fmt.Sprintf("%06d", frac)
		s = strings.TrimRight(s, "0")
		b.WriteByte('.')
		b.WriteString(s)
	}
	return b.String()
}

// Parse converts a decimal dollar string (e.g. "2.00", "0.015") to an Amount.
// At most six fractional digits are accepted.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse amount: empty string")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" || s == "." {
		return 0, fmt.Errorf("parse amount: %q is not a number", s)
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart = s[:i]
		fracPart = s[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > 6 {
		return 0, fmt.Errorf("parse amount: %q has more than 6 decimal places", s)
	}

	// The sign was consumed above; both parts must be bare digits so that
	// strings like "--5" or "1.+5" are rejected rather than re-signed.
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return 0, fmt.Errorf("parse amount: %q is not a number", s)
	}

	dollars, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount: %q is not a number", s)
	}

	var frac int64
	if fracPart != "" {
		frac, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse amount: %q is not a number", s)
		}
		// Scale to six digits: "015" -> 15000.
		for i := len(fracPart); i < 6; i++ {
			frac *= 10
		}
	}

	micros := dollars*MicrosPerDollar + frac
	if neg {
		micros = -micros
	}
	return Amount(micros), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MustParse is Parse that panics on error. For constants in tests and config defaults.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// MarshalJSON emits the amount as a JSON number with exact decimal digits.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
