// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package market

import (
	"errors"
	"fmt"
	"math"
)

// Fee constants, in cents and fractions, as the market applies them.
const (
	WalletMinimumFee    = 1
	WalletBaseFee       = 0
	PublisherMinimumFee = 1

	DefaultSteamFeePercent     = 0.05
	DefaultPublisherFeePercent = 0.10
)

// ErrPriceInversion indicates DesiredPrice could not reconcile the fee
// arithmetic for a total. Should not happen for positive totals; kept as
// a loud failure rather than a silent mispricing.
var ErrPriceInversion = errors.New("could not invert fees for total")

// CalculateFees returns the wallet and publisher fees, in cents, charged
// on top of a list price.
func CalculateFees(priceCents int) (steamFee, publisherFee int) {
	return calculateFees(priceCents, DefaultSteamFeePercent, DefaultPublisherFeePercent)
}

func calculateFees(priceCents int, steamPct, publisherPct float64) (steamFee, publisherFee int) {
	steamFee = int(math.Floor(math.Max(float64(priceCents)*steamPct, WalletMinimumFee) + WalletBaseFee))
	if publisherPct > 0 {
		publisherFee = int(math.Floor(math.Max(float64(priceCents)*publisherPct, PublisherMinimumFee)))
	}
	return steamFee, publisherFee
}

// DesiredPrice inverts the fee arithmetic: given the total the buyer
// should pay, it returns the list price that produces that total once
// fees are added.
//
// The naive ceil division is off by a cent whenever a fee lands on a
// rounding boundary, and under-shoots when one of the fees bottoms out
// at its minimum; both cases are corrected explicitly.
func DesiredPrice(totalCents int) (int, error) {
	return desiredPrice(totalCents, DefaultSteamFeePercent, DefaultPublisherFeePercent)
}

func desiredPrice(totalCents int, steamPct, publisherPct float64) (int, error) {
	desired := int(math.Ceil(float64(totalCents) / (1 + steamPct + publisherPct)))
	steamFee, publisherFee := calculateFees(desired, steamPct, publisherPct)

	difference := totalCents - (desired + steamFee + publisherFee)

	switch {
	case difference == 0:
		return desired, nil
	case difference == 1:
		// Off by one from the ceil rounding.
		return desired + 1, nil
	case difference < 0:
		// One or both fees bottomed out at their minimum.
		return totalCents - max(steamFee, WalletMinimumFee) - max(publisherFee, PublisherMinimumFee), nil
	default:
		return 0, fmt.Errorf("%w: total %d, difference %d", ErrPriceInversion, totalCents, difference)
	}
}
