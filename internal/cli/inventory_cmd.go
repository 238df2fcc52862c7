// inventory_cmd.go - list a profile's inventory for one app.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/jeranaias/desperado/internal/apps"
	"github.com/jeranaias/desperado/internal/inventory"
)

func runInventory(ctx context.Context, args *ArgParser) error {
	shortName := args.Positional(0)
	if shortName == "" {
		return fmt.Errorf("usage: desperado inventory <app> (one of %v)", apps.ShortNames())
	}
	appID, ok := apps.ID(shortName)
	if !ok {
		return fmt.Errorf("unknown app %q (one of %v)", shortName, apps.ShortNames())
	}

	sess, store, _, err := establishSession(ctx, args)
	if err != nil {
		return err
	}
	defer store.Close()

	inv, err := inventory.NewClient(sess).Retrieve(ctx, appID)
	if err != nil {
		return err
	}

	items := inv.Items
	if args.BoolFlag("tradable") {
		items = inv.Tradable()
	}

	fmt.Printf("%d items (%s, profile %s):\n", len(items), apps.Name(appID), inv.ProfileID)
	for _, item := range items {
		fmt.Println(" ", item)
	}
	return nil
}
