// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package market talks to the community market with an authenticated
// session: price lookups, posting and removing listings, and the fee
// arithmetic for working out list prices from target totals.
package market
