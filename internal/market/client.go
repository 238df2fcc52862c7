// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jeranaias/desperado/internal/currency"
	"github.com/jeranaias/desperado/internal/session"
)

// Defaults for market requests.
const (
	DefaultCountry      = "US"
	DefaultCurrencyCode = 1 // USD

	// The price endpoints rate limit aggressively; stay under roughly
	// one request per second.
	defaultRequestInterval = time.Second

	maxResponseSize = 8 * 1024 * 1024
)

var (
	// ErrPriceUnavailable indicates the price overview endpoint reported
	// failure for an item.
	ErrPriceUnavailable = errors.New("price overview unavailable")

	// ErrHistoryUnavailable indicates the price history endpoint
	// reported failure.
	ErrHistoryUnavailable = errors.New("price history unavailable")

	// ErrSaleRejected indicates the sell request was refused.
	ErrSaleRejected = errors.New("item sale rejected")

	// ErrRemovalRejected indicates the listing removal was refused.
	ErrRemovalRejected = errors.New("listing removal rejected")

	// ErrNoSessionID indicates the session carries no sessionid cookie,
	// without which the market write endpoints refuse requests.
	ErrNoSessionID = errors.New("session has no sessionid cookie")
)

var listingIDPattern = regexp.MustCompile(`(\d+)`)

// PriceData is the price overview for one item.
type PriceData struct {
	LowPrice    currency.Dollars
	MedianPrice currency.Dollars
	Volume      int
}

// String formats the overview for display.
func (d *PriceData) String() string {
	return fmt.Sprintf("Low: %s Median: %s Volume: %d", d.LowPrice, d.MedianPrice, d.Volume)
}

// PricePoint is one sample of an item's price history. The wire format
// is a [date, price, count] triple.
type PricePoint struct {
	Date  string
	Price float64
	Count string
}

// UnmarshalJSON implements json.Unmarshaler for the triple form.
func (p *PricePoint) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("price point has %d fields, want 3", len(raw))
	}

	date, ok := raw[0].(string)
	if !ok {
		return fmt.Errorf("price point date is %T, want string", raw[0])
	}
	price, ok := raw[1].(float64)
	if !ok {
		return fmt.Errorf("price point price is %T, want number", raw[1])
	}
	count, ok := raw[2].(string)
	if !ok {
		return fmt.Errorf("price point count is %T, want string", raw[2])
	}

	p.Date, p.Price, p.Count = date, price, count
	return nil
}

// Listing is one of the account's active market listings.
type Listing struct {
	ID       string
	ItemName string
	ItemLink string
	GameName string
}

// String formats the listing for display.
func (l Listing) String() string {
	return fmt.Sprintf("[%s]: %s", l.ID, l.ItemName)
}

// Client performs market operations with an authenticated session. All
// requests share one rate limiter so bursts of price lookups do not trip
// the server's limits.
type Client struct {
	sess         *session.Session
	baseURL      string
	limiter      *rate.Limiter
	cache        *PriceCache
	country      string
	currencyCode int
}

// NewClient creates a market client. The cache is the caller's: pass the
// same one to share memoized prices across clients, or nil to disable
// caching.
func NewClient(s *session.Session, cache *PriceCache) *Client {
	return &Client{
		sess:         s,
		baseURL:      s.BaseURL(),
		limiter:      rate.NewLimiter(rate.Every(defaultRequestInterval), 1),
		cache:        cache,
		country:      DefaultCountry,
		currencyCode: DefaultCurrencyCode,
	}
}

// WithBaseURL overrides the market base URL. Used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = strings.TrimSuffix(base, "/")
	return c
}

// WithLocale sets the country and currency code sent on price lookups.
func (c *Client) WithLocale(country string, currencyCode int) *Client {
	c.country = country
	c.currencyCode = currencyCode
	return c
}

// WithRateLimit overrides the request rate limit. Used by tests.
func (c *Client) WithRateLimit(limit rate.Limit, burst int) *Client {
	c.limiter = rate.NewLimiter(limit, burst)
	return c
}

// PriceOverview returns the current price summary for an item,
// consulting the cache first.
func (c *Client) PriceOverview(ctx context.Context, appID int, marketHashName string) (*PriceData, error) {
	if c.cache != nil {
		if data := c.cache.Get(appID, marketHashName); data != nil {
			return data, nil
		}
	}

	params := url.Values{
		"country":          {c.country},
		"currency":         {strconv.Itoa(c.currencyCode)},
		"appid":            {strconv.Itoa(appID)},
		"market_hash_name": {marketHashName},
	}
	body, err := c.get(ctx, c.baseURL+"/market/priceoverview/?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("price overview: %w", err)
	}

	var resp struct {
		Success     bool   `json:"success"`
		LowestPrice string `json:"lowest_price"`
		Volume      string `json:"volume"`
		MedianPrice string `json:"median_price"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("price overview: decode: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %d %q", ErrPriceUnavailable, appID, marketHashName)
	}

	low, err := currency.ParseDollars(resp.LowestPrice)
	if err != nil {
		return nil, fmt.Errorf("price overview: lowest price: %w", err)
	}

	// Thinly traded items come back without volume or median.
	data := &PriceData{LowPrice: low}
	if resp.MedianPrice != "" {
		if median, err := currency.ParseDollars(resp.MedianPrice); err == nil {
			data.MedianPrice = median
		}
	}
	if resp.Volume != "" {
		if vol, err := strconv.Atoi(strings.ReplaceAll(resp.Volume, ",", "")); err == nil {
			data.Volume = vol
		}
	}

	if c.cache != nil {
		c.cache.Set(appID, marketHashName, data)
	}
	return data, nil
}

// PriceHistory returns the full price history for an item. The response
// is large (tens of kilobytes per item); call sparingly and persist the
// result rather than re-fetching.
func (c *Client) PriceHistory(ctx context.Context, appID int, marketHashName string) ([]PricePoint, error) {
	params := url.Values{
		"appid":            {strconv.Itoa(appID)},
		"market_hash_name": {marketHashName},
	}
	body, err := c.get(ctx, c.baseURL+"/market/pricehistory/?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("price history: %w", err)
	}

	var resp struct {
		Success bool         `json:"success"`
		Prices  []PricePoint `json:"prices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("price history: decode: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %d %q", ErrHistoryUnavailable, appID, marketHashName)
	}
	return resp.Prices, nil
}

// SellItem posts an inventory asset for sale at priceCents, the amount
// the seller receives before fees.
func (c *Client) SellItem(ctx context.Context, appID int, contextID int, assetID string, priceCents int) error {
	sessionID, err := c.sessionID()
	if err != nil {
		return err
	}
	profileID, err := c.sess.ProfileID(ctx)
	if err != nil {
		return fmt.Errorf("sell item: %w", err)
	}

	form := url.Values{
		"sessionid": {sessionID},
		"appid":     {strconv.Itoa(appID)},
		"contextid": {strconv.Itoa(contextID)},
		"assetid":   {assetID},
		"amount":    {"1"},
		"price":     {strconv.Itoa(priceCents)},
	}
	referer := fmt.Sprintf("%s/profiles/%s/inventory", c.baseURL, profileID)

	if _, err := c.postForm(ctx, c.baseURL+"/market/sellitem/", form, referer); err != nil {
		return fmt.Errorf("%w: asset %s: %v", ErrSaleRejected, assetID, err)
	}

	logrus.WithFields(logrus.Fields{
		"asset": assetID,
		"price": priceCents,
	}).Info("posted item for sale")
	return nil
}

// Listings scrapes the account's active listings from the market page.
func (c *Client) Listings(ctx context.Context) ([]Listing, error) {
	body, err := c.get(ctx, c.baseURL+"/market/")
	if err != nil {
		return nil, fmt.Errorf("listings: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("listings: parse: %w", err)
	}

	var listings []Listing
	doc.Find("div.market_listing_item_name_block").Each(func(_ int, block *goquery.Selection) {
		name := block.Find("span.market_listing_item_name").First()
		m := listingIDPattern.FindStringSubmatch(name.AttrOr("id", ""))
		if m == nil {
			return
		}

		anchor := name.Find("a").First()
		if anchor.Length() == 0 {
			// Name block without a link; not a removable listing.
			return
		}

		listings = append(listings, Listing{
			ID:       m[1],
			ItemName: strings.TrimSpace(anchor.Text()),
			ItemLink: anchor.AttrOr("href", ""),
			GameName: strings.TrimSpace(block.Find("span.market_listing_game_name").First().Text()),
		})
	})

	return listings, nil
}

// RemoveListing takes down an active listing by id.
func (c *Client) RemoveListing(ctx context.Context, listingID string) error {
	sessionID, err := c.sessionID()
	if err != nil {
		return err
	}

	form := url.Values{"sessionid": {sessionID}}
	referer := c.baseURL + "/market/"

	if _, err := c.postForm(ctx, c.baseURL+"/market/removelisting/"+listingID, form, referer); err != nil {
		return fmt.Errorf("%w: listing %s: %v", ErrRemovalRejected, listingID, err)
	}

	logrus.WithField("listing", listingID).Info("removed listing")
	return nil
}

// sessionID returns the URL-decoded sessionid cookie the market write
// endpoints require as a form field.
func (c *Client) sessionID() (string, error) {
	raw, ok := c.sess.Cookie("sessionid")
	if !ok {
		return "", ErrNoSessionID
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("decode sessionid cookie: %w", err)
	}
	return decoded, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values, referer string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", referer)
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.sess.HTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
}
