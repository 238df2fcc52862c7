// listings_cmd.go - show or clear the account's active market listings.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/jeranaias/desperado/internal/market"
)

func runListings(ctx context.Context, args *ArgParser) error {
	sess, store, _, err := establishSession(ctx, args)
	if err != nil {
		return err
	}
	defer store.Close()

	client := market.NewClient(sess, nil)

	listings, err := client.Listings(ctx)
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		fmt.Println("no active listings")
		return nil
	}

	for _, l := range listings {
		fmt.Println(l)
	}

	if args.Subcommand() != "clear" {
		return nil
	}

	if IsTTY() && !args.BoolFlag("yes") {
		if !Confirm(fmt.Sprintf("remove all %d listings?", len(listings))) {
			return nil
		}
	}

	for _, l := range listings {
		if err := client.RemoveListing(ctx, l.ID); err != nil {
			return fmt.Errorf("remove %s: %w", l.ID, err)
		}
		fmt.Printf("removed %s\n", l.ID)
	}
	return nil
}
