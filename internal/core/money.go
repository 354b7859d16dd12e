// Package core defines the domain types shared across the service.
//
// Money is handled as integer cents everywhere; conversion to display
// dollars goes through exact decimal arithmetic so rendered amounts never
// pick up binary floating point drift.
package core

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseDecimalToCents converts a decimal dollar string to cents with
// half-up rounding on the third decimal place.
//
// It accepts both dot (12.34) and comma (12,34) separators. Negative
// amounts are rejected; statement rows are charges. Zero is allowed.
//
// Examples:
//
//	ParseDecimalToCents("12.34")  -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil (rounds up)
//	ParseDecimalToCents("12.344") -> 1234, nil (rounds down)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	// Take the first two fractional digits, half-up rounding on the third
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents, nil
}

// Dollars renders cents as a two-decimal dollar amount, e.g. 1234 -> "12.34".
func Dollars(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// WholeDollars renders cents rounded to whole dollars, e.g. 1250 -> "13".
func WholeDollars(cents int64) string {
	return decimal.New(cents, -2).Round(0).StringFixed(0)
}
