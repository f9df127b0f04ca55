// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts and stock
// quantities from user input.
package core

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string to a positive amount rounded half-up
// to two places.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// ignores thousands separators written as spaces or underscores.
// Returns ErrInvalidAmount for empty, signed, malformed or zero input.
//
// Examples:
//
//	ParseAmount("1500")    -> 1500.00
//	ParseAmount("12,34")   -> 12.34
//	ParseAmount("12.345")  -> 12.35 (half-up)
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := ParseExactAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseExactAmount accepts the same input as ParseAmount but keeps every
// entered decimal. Minimum checks run on this value.
func ParseExactAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.NewReplacer(" ", "", "_", "").Replace(s)
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseRate is ParseAmount without the two-place rounding.
func ParseRate(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseQuantity parses a whole, strictly positive number of stock units.
func ParseQuantity(s string) (int, error) {
	q, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || q <= 0 {
		return 0, ErrInvalidQuantity
	}
	return q, nil
}

// FormatKSH renders an amount as "KSH 1,234.50".
func FormatKSH(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "KSH " + b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
