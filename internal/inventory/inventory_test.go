// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package inventory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/desperado/internal/session"
)

const inventoryBody = `{
	"success": true,
	"more": false,
	"rgInventory": {
		"1111": {"id": "1111", "classid": "10", "instanceid": "0", "amount": "1"},
		"2222": {"id": "2222", "classid": "20", "instanceid": "0", "amount": "1"}
	},
	"rgDescriptions": {
		"10_0": {
			"appid": 730,
			"market_name": "Chroma 2 Case",
			"market_hash_name": "Chroma 2 Case",
			"tradable": 1,
			"tags": [{"category": "Type", "name": "Container"}]
		},
		"20_0": {
			"appid": 730,
			"market_name": "Souvenir Package",
			"market_hash_name": "Souvenir Package",
			"tradable": 0,
			"tags": []
		}
	}
}`

func newInventoryServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<a class="menuitem supernav username" href="/profiles/76561198012345/">gabe</a>
</body></html>`)
	})
	mux.HandleFunc("/profiles/76561198012345/inventory/json/730/2/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(srv *httptest.Server) *Client {
	sess := session.New("gabe", []session.Credential{
		{Name: "sessionid", Value: "abc", Path: "/"},
	}).WithBaseURL(srv.URL)
	return NewClient(sess).WithBaseURL(srv.URL)
}

func TestRetrieve(t *testing.T) {
	srv := newInventoryServer(t, inventoryBody)

	inv, err := testClient(srv).Retrieve(context.Background(), 730)
	require.NoError(t, err)
	require.Equal(t, "76561198012345", inv.ProfileID)
	require.Len(t, inv.Items, 2)

	byID := map[string]*Item{}
	for _, item := range inv.Items {
		byID[item.ID] = item
	}

	crate := byID["1111"]
	require.NotNil(t, crate)
	require.Equal(t, "Chroma 2 Case", crate.MarketName)
	require.Equal(t, 730, crate.AppID)
	require.True(t, crate.Tradable)
	require.True(t, crate.HasTag("Type"))
	require.True(t, crate.TagContains("Type", "contain"))
	require.False(t, crate.TagContains("Type", "weapon"))
	require.False(t, crate.TagContains("Rarity", "rare"))

	souvenir := byID["2222"]
	require.NotNil(t, souvenir)
	require.False(t, souvenir.Tradable)
}

func TestTradableFilter(t *testing.T) {
	srv := newInventoryServer(t, inventoryBody)

	inv, err := testClient(srv).Retrieve(context.Background(), 730)
	require.NoError(t, err)

	tradable := inv.Tradable()
	require.Len(t, tradable, 1)
	require.Equal(t, "1111", tradable[0].ID)
}

func TestRetrievePaginatedInventory(t *testing.T) {
	srv := newInventoryServer(t, `{"success": true, "more": true}`)

	_, err := testClient(srv).Retrieve(context.Background(), 730)
	require.True(t, errors.Is(err, ErrMorePages))
}

func TestRetrieveServerFailure(t *testing.T) {
	srv := newInventoryServer(t, `{"success": false}`)

	_, err := testClient(srv).Retrieve(context.Background(), 730)
	require.True(t, errors.Is(err, ErrRetrievalFailed))
}

func TestRetrieveMissingDescription(t *testing.T) {
	srv := newInventoryServer(t, `{
		"success": true,
		"rgInventory": {"1111": {"id": "1111", "classid": "10", "instanceid": "0", "amount": "1"}},
		"rgDescriptions": {}
	}`)

	_, err := testClient(srv).Retrieve(context.Background(), 730)
	require.True(t, errors.Is(err, ErrRetrievalFailed))
}

func TestItemString(t *testing.T) {
	item := &Item{ID: "1111", MarketName: "Chroma 2 Case", Tradable: true}
	require.Equal(t, "1111 : Chroma 2 Case - Tradable", item.String())

	item.Tradable = false
	require.Equal(t, "1111 : Chroma 2 Case - Not tradable", item.String())
}
