// Package core holds the normalized transaction model and the raw backend
// payload types.
//
// This file contains amount parsing for the loosely typed values the backend
// and its connections emit.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// currencyTokens are stripped from either end of an amount, longest first.
var currencyTokens = []string{"inr", "rs.", "rs", "₹"}

// ParseAmount converts a user- or bank-formatted amount to a decimal.
//
// A leading or trailing currency token (₹, Rs., Rs, INR) is dropped, as are
// spaces and underscores. Any other letter makes the amount unparseable.
// When both ',' and '.' appear, ',' is a thousands separator ("1,200.50").
// A lone ',' followed by one or two digits is a decimal separator ("12,34");
// otherwise it groups thousands ("1,200").
//
// Examples:
//
//	ParseAmount("500")       -> 500, true
//	ParseAmount("₹1,200.50") -> 1200.50, true
//	ParseAmount("Rs. 500")   -> 500, true
//	ParseAmount("12,34")     -> 12.34, true
//	ParseAmount("fee 12")    -> 0, false
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = stripCurrency(strings.TrimSpace(s))

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsSpace(r), r == '_':
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-', r == '+', r == 'e', r == 'E':
			b.WriteRune(r)
		default:
			return decimal.Zero, false
		}
	}
	s = b.String()
	if s == "" || !strings.ContainsAny(s, "0123456789") {
		return decimal.Zero, false
	}

	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else if i := strings.LastIndex(s, ","); strings.Count(s, ",") == 1 && len(s)-i-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

func stripCurrency(s string) string {
	for _, tok := range currencyTokens {
		if len(s) >= len(tok) && strings.EqualFold(s[:len(tok)], tok) {
			s = strings.TrimSpace(s[len(tok):])
			break
		}
	}
	for _, tok := range currencyTokens {
		if len(s) >= len(tok) && strings.EqualFold(s[len(s)-len(tok):], tok) {
			s = strings.TrimSpace(s[:len(s)-len(tok)])
			break
		}
	}
	return s
}
