// sell_cmd.go - interactive sale of tradable inventory items.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/desperado/internal/apps"
	"github.com/jeranaias/desperado/internal/currency"
	"github.com/jeranaias/desperado/internal/inventory"
	"github.com/jeranaias/desperado/internal/market"
)

// runSell walks the tradable items in an app's inventory, suggests a
// list price from the current market low, and posts the ones the
// operator approves.
func runSell(ctx context.Context, args *ArgParser) error {
	if !IsTTY() {
		return errors.New("sell is interactive and needs a terminal")
	}

	shortName := args.Positional(0)
	if shortName == "" {
		return fmt.Errorf("usage: desperado sell <app> (one of %v)", apps.ShortNames())
	}
	appID, ok := apps.ID(shortName)
	if !ok {
		return fmt.Errorf("unknown app %q (one of %v)", shortName, apps.ShortNames())
	}

	var tagCategory, tagSearch string
	if tag := args.Flag("tag"); tag != "" {
		parts := strings.SplitN(tag, "=", 2)
		if len(parts) != 2 {
			return errors.New("--tag takes <category>=<substring>")
		}
		tagCategory, tagSearch = parts[0], parts[1]
	}

	sess, store, cfg, err := establishSession(ctx, args)
	if err != nil {
		return err
	}
	defer store.Close()

	inv, err := inventory.NewClient(sess).Retrieve(ctx, appID)
	if err != nil {
		return err
	}

	cache := market.NewPriceCache()
	mc := market.NewClient(sess, cache).WithLocale(cfg.Market.Country, cfg.Market.CurrencyCode)

	for _, item := range inv.Tradable() {
		if tagCategory != "" && !item.TagContains(tagCategory, tagSearch) {
			continue
		}

		price, err := item.PriceData(ctx, mc)
		if err != nil {
			fmt.Printf("%s: no price data (%v), skipping\n", item.MarketName, err)
			continue
		}

		// List for the current low so the item actually moves.
		listPrice, err := market.DesiredPrice(price.LowPrice.ToCents())
		if err != nil {
			return fmt.Errorf("%s: %w", item.MarketName, err)
		}

		fmt.Printf("%s\n  %s\n  would list at %s (buyer pays %s)\n",
			item.MarketName, price, currency.FromCents(listPrice), price.LowPrice)
		if !Confirm("sell?") {
			continue
		}

		if err := mc.SellItem(ctx, appID, inventory.DefaultContextID, item.ID, listPrice); err != nil {
			return err
		}
		fmt.Printf("listed %s for %s\n", item.MarketName, currency.FromCents(listPrice))
	}

	return nil
}
