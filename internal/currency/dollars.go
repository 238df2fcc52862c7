// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package currency provides the integer dollar amounts used by market pricing.
//
// All arithmetic is done in whole cents. Amounts arrive from the remote
// service as display strings like "$12.34"; ParseDollars accepts anything
// containing a digits-dot-digits run and ignores the surrounding symbols.
package currency

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrInvalidFormat indicates a price string that cannot be parsed into dollars.
var ErrInvalidFormat = errors.New("invalid currency format")

var amountPattern = regexp.MustCompile(`(\d+)\.(\d+)`)

// Dollars is a whole-cents dollar amount.
type Dollars struct {
	Dollars int
	Cents   int
}

// FromCents builds a Dollars value from a total cent count.
func FromCents(cents int) Dollars {
	return Dollars{Dollars: cents / 100, Cents: cents % 100}
}

// ParseDollars parses a display string such as "$12.34" or "12.34 USD".
func ParseDollars(text string) (Dollars, error) {
	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return Dollars{}, fmt.Errorf("%w: %q", ErrInvalidFormat, text)
	}

	// Digits-only submatches, Atoi cannot fail here.
	dollars, _ := strconv.Atoi(m[1])
	cents, _ := strconv.Atoi(m[2])
	return Dollars{Dollars: dollars, Cents: cents}, nil
}

// ToCents returns the amount as a total cent count.
func (d Dollars) ToCents() int {
	return d.Dollars*100 + d.Cents
}

// Add returns the sum of two amounts.
func (d Dollars) Add(other Dollars) Dollars {
	return FromCents(d.ToCents() + other.ToCents())
}

// String formats the amount as "$D.CC".
func (d Dollars) String() string {
	return fmt.Sprintf("$%d.%02d", d.Dollars, d.Cents)
}
