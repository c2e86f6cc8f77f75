// Package parse extracts typed values from the loosely structured text the
// portal returns. None of the parsers fail: unparseable input yields a null
// value so the rest of a fetch is kept.
package parse

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Float returns s as a float or nil if it isn't a number.
func Float(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}

// Int returns s as an integer or nil if it isn't an integer.
func Int(s string) *int64 {
	i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil
	}
	return &i
}

// Decimal returns s as a decimal. The result is invalid if s isn't a number.
func Decimal(s string) decimal.NullDecimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
