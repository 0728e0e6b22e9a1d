// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts typed into forms
// and for rendering decimal amounts for display.
package core

import (
	"math"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DisplayCurrency is the ISO code used when formatting amounts for people.
const DisplayCurrency = gomoney.USD

// ParseAmount converts a decimal string typed by a user into a decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. The sign is
// preserved so callers can report "must be positive" separately from "not a number".
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("-5")     -> -5, nil
//	ParseAmount("abc")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	// decimal accepts exponents; form input never should.
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// FormatAmount renders an amount in the display currency, e.g. "$1,234.50".
// Amounts are rounded half-up to cents for display only. Amounts whose cents do not
// fit in an int64 are shown without thousands separators.
func FormatAmount(d decimal.Decimal) string {
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) || cents.LessThanOrEqual(minCents) {
		sign := ""
		if d.IsNegative() {
			sign = "-"
		}
		return sign + gomoney.GetCurrency(DisplayCurrency).Grapheme + d.Abs().StringFixed(2)
	}
	return gomoney.New(cents.IntPart(), DisplayCurrency).Display()
}
