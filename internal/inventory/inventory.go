// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package inventory retrieves a profile's item inventory for one
// application and joins items with their market descriptions.
package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jeranaias/desperado/internal/market"
	"github.com/jeranaias/desperado/internal/session"
)

// DefaultContextID is the inventory context holding tradable community
// items.
const DefaultContextID = 2

const maxResponseSize = 16 * 1024 * 1024

var (
	// ErrMorePages indicates the inventory is paginated and the rest was
	// not fetched. Pagination is not implemented; surfacing this beats
	// silently acting on a partial inventory.
	ErrMorePages = errors.New("inventory has more pages")

	// ErrRetrievalFailed indicates the server reported failure.
	ErrRetrievalFailed = errors.New("inventory retrieval failed")
)

// Item is one inventory asset joined with its description.
type Item struct {
	ID             string
	ClassID        string
	InstanceID     string
	Amount         string
	AppID          int
	MarketName     string
	MarketHashName string
	Tradable       bool

	// Tags maps tag category to tag name ("Type" -> "Container").
	Tags map[string]string
}

// String formats the item for display.
func (i *Item) String() string {
	state := "Not tradable"
	if i.Tradable {
		state = "Tradable"
	}
	return fmt.Sprintf("%s : %s - %s", i.ID, i.MarketName, state)
}

// HasTag reports whether the item carries a tag in the given category.
func (i *Item) HasTag(category string) bool {
	_, ok := i.Tags[category]
	return ok
}

// TagContains reports whether the item's tag in category contains the
// search string, case-insensitively.
func (i *Item) TagContains(category, search string) bool {
	name, ok := i.Tags[category]
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(search))
}

// PriceData looks up the item's market price overview. Untradable items
// short-circuit to a zero price without a request.
func (i *Item) PriceData(ctx context.Context, mc *market.Client) (*market.PriceData, error) {
	if !i.Tradable {
		return &market.PriceData{}, nil
	}
	return mc.PriceOverview(ctx, i.AppID, i.MarketHashName)
}

// Inventory is one profile's items for one application.
type Inventory struct {
	ProfileID string
	Items     []*Item
}

// Tradable returns only the items that can currently be traded.
func (inv *Inventory) Tradable() []*Item {
	var out []*Item
	for _, item := range inv.Items {
		if item.Tradable {
			out = append(out, item)
		}
	}
	return out
}

// Client retrieves inventories with an authenticated session.
type Client struct {
	sess    *session.Session
	baseURL string
}

// NewClient creates an inventory client.
func NewClient(s *session.Session) *Client {
	return &Client{sess: s, baseURL: s.BaseURL()}
}

// WithBaseURL overrides the base URL. Used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = strings.TrimSuffix(base, "/")
	return c
}

// inventoryResponse is the wire shape of the inventory endpoint. Assets
// and descriptions arrive separately and join on classid_instanceid.
type inventoryResponse struct {
	Success      bool                       `json:"success"`
	More         bool                       `json:"more"`
	Assets       map[string]json.RawMessage `json:"rgInventory"`
	Descriptions map[string]json.RawMessage `json:"rgDescriptions"`
}

type assetRecord struct {
	ID         string `json:"id"`
	ClassID    string `json:"classid"`
	InstanceID string `json:"instanceid"`
	Amount     string `json:"amount"`
}

type descriptionRecord struct {
	AppID          int    `json:"appid"`
	MarketName     string `json:"market_name"`
	MarketHashName string `json:"market_hash_name"`
	Tradable       int    `json:"tradable"`
	Tags           []struct {
		Category string `json:"category"`
		Name     string `json:"name"`
	} `json:"tags"`
}

// Retrieve fetches the profile's inventory for an application using the
// default context.
func (c *Client) Retrieve(ctx context.Context, appID int) (*Inventory, error) {
	return c.RetrieveContext(ctx, appID, DefaultContextID)
}

// RetrieveContext fetches the inventory for an explicit context id.
func (c *Client) RetrieveContext(ctx context.Context, appID, contextID int) (*Inventory, error) {
	profileID, err := c.sess.ProfileID(ctx)
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}

	rawURL := fmt.Sprintf("%s/profiles/%s/inventory/json/%d/%d/", c.baseURL, profileID, appID, contextID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}

	resp, err := c.sess.HTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inventory: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("inventory: read: %w", err)
	}

	var decoded inventoryResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("inventory: decode: %w", err)
	}
	if decoded.More {
		return nil, fmt.Errorf("%w: profile %s app %d", ErrMorePages, profileID, appID)
	}
	if !decoded.Success {
		return nil, fmt.Errorf("%w: profile %s app %d", ErrRetrievalFailed, profileID, appID)
	}

	inv := &Inventory{ProfileID: profileID}
	for _, rawAsset := range decoded.Assets {
		var asset assetRecord
		if err := json.Unmarshal(rawAsset, &asset); err != nil {
			return nil, fmt.Errorf("inventory: decode asset: %w", err)
		}

		rawDesc, ok := decoded.Descriptions[asset.ClassID+"_"+asset.InstanceID]
		if !ok {
			return nil, fmt.Errorf("%w: no description for class %s instance %s",
				ErrRetrievalFailed, asset.ClassID, asset.InstanceID)
		}
		var desc descriptionRecord
		if err := json.Unmarshal(rawDesc, &desc); err != nil {
			return nil, fmt.Errorf("inventory: decode description: %w", err)
		}

		item := &Item{
			ID:             asset.ID,
			ClassID:        asset.ClassID,
			InstanceID:     asset.InstanceID,
			Amount:         asset.Amount,
			AppID:          desc.AppID,
			MarketName:     desc.MarketName,
			MarketHashName: desc.MarketHashName,
			Tradable:       desc.Tradable == 1,
			Tags:           make(map[string]string, len(desc.Tags)),
		}
		for _, tag := range desc.Tags {
			item.Tags[tag.Category] = tag.Name
		}
		inv.Items = append(inv.Items, item)
	}

	return inv, nil
}
