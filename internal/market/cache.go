// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package market

import "sync"

// priceKey identifies one item's price data.
type priceKey struct {
	appID    int
	hashName string
}

// PriceCache memoizes price overview responses for the life of the
// process. It is an explicitly constructed value handed to the client -
// nothing initializes it behind the caller's back - so two clients can
// share one cache or keep their own.
//
// Entries are never invalidated; a process that needs fresh prices makes
// a new cache.
type PriceCache struct {
	mu      sync.Mutex
	entries map[priceKey]*PriceData
}

// NewPriceCache creates an empty cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{entries: make(map[priceKey]*PriceData)}
}

// Get returns the cached price data for an item, or nil.
func (c *PriceCache) Get(appID int, marketHashName string) *PriceData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[priceKey{appID: appID, hashName: marketHashName}]
}

// Set stores price data for an item.
func (c *PriceCache) Set(appID int, marketHashName string, data *PriceData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[priceKey{appID: appID, hashName: marketHashName}] = data
}

// Len returns the number of cached entries.
func (c *PriceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
