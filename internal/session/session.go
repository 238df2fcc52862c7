// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jeranaias/desperado/internal/currency"
)

// DefaultBaseURL is the community site a session replays requests
// against unless overridden.
const DefaultBaseURL = "https://steamcommunity.com"

// scrapeTimeout bounds the homepage scrape round trip.
const scrapeTimeout = 30 * time.Second

var profileIDPattern = regexp.MustCompile(`/profiles/(\d+)`)

// Credential is one name/value pair of the session's network identity.
// The schema is deliberately plain so stored sessions survive HTTP
// client changes.
type Credential struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
}

// ScrapeError indicates an expected structural element was missing from
// an authenticated page - the markup changed, or the session is no
// longer valid. It is distinct from transport errors, which pass through
// unwrapped into this type.
type ScrapeError struct {
	// Element describes what was being looked for.
	Element string
}

// Error implements the error interface.
func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scrape: no %s found on account page", e.Element)
}

// Session is an authenticated identity for one account.
//
// Profile metadata accessors scrape lazily and memoize. The memoization
// is mutex-guarded, so concurrent first access performs one scrape; a
// failed parse leaves only the missing field uncached.
type Session struct {
	account string
	steamID string
	creds   []Credential
	baseURL string

	mu          sync.Mutex
	httpClient  *http.Client
	profileID   string
	wallet      currency.Dollars
	walletKnown bool
}

// New builds a session for account from its credential list.
func New(account string, creds []Credential) *Session {
	return &Session{
		account: account,
		creds:   creds,
		baseURL: DefaultBaseURL,
	}
}

// WithSteamID records the numeric account id reported at login.
func (s *Session) WithSteamID(id string) *Session {
	s.steamID = id
	return s
}

// WithBaseURL overrides the community base URL. Used by tests and by the
// login client when it was itself redirected.
func (s *Session) WithBaseURL(base string) *Session {
	s.baseURL = strings.TrimSuffix(base, "/")
	s.mu.Lock()
	s.httpClient = nil // cookies must re-apply against the new host
	s.mu.Unlock()
	return s
}

// Account returns the account identifier this session belongs to.
func (s *Session) Account() string { return s.account }

// SteamID returns the numeric account id from login, if known.
func (s *Session) SteamID() string { return s.steamID }

// BaseURL returns the community base URL in effect.
func (s *Session) BaseURL() string { return s.baseURL }

// Credentials returns a copy of the session's network identity.
func (s *Session) Credentials() []Credential {
	out := make([]Credential, len(s.creds))
	copy(out, s.creds)
	return out
}

// Cookie returns the value of a named credential.
func (s *Session) Cookie(name string) (string, bool) {
	for _, c := range s.creds {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// HTTPClient returns an HTTP client that replays this session's
// credentials as cookies. The client is built once per base URL.
func (s *Session) HTTPClient() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpClientLocked()
}

func (s *Session) httpClientLocked() *http.Client {
	if s.httpClient != nil {
		return s.httpClient
	}

	jar, _ := cookiejar.New(nil)
	if u, err := url.Parse(s.baseURL); err == nil {
		cookies := make([]*http.Cookie, 0, len(s.creds))
		for _, c := range s.creds {
			cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path})
		}
		jar.SetCookies(u, cookies)
	}

	s.httpClient = &http.Client{Jar: jar, Timeout: scrapeTimeout}
	return s.httpClient
}

// ProfileID returns the numeric profile id, scraping it from the
// community homepage on first access. It doubles as a cheap liveness
// probe: a stored session that the server no longer accepts fails here
// with a *ScrapeError.
func (s *Session) ProfileID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profileID != "" {
		return s.profileID, nil
	}
	if err := s.scrapeHomepageLocked(ctx); err != nil {
		return "", err
	}
	if s.profileID == "" {
		return "", &ScrapeError{Element: "profile link"}
	}
	return s.profileID, nil
}

// WalletBalance returns the account's wallet balance, scraped alongside
// the profile id. A page without the wallet element (some account states
// hide it) fails with *ScrapeError without invalidating the profile id.
func (s *Session) WalletBalance(ctx context.Context) (currency.Dollars, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.walletKnown {
		return s.wallet, nil
	}
	if err := s.scrapeHomepageLocked(ctx); err != nil {
		return currency.Dollars{}, err
	}
	if !s.walletKnown {
		return currency.Dollars{}, &ScrapeError{Element: "wallet balance"}
	}
	return s.wallet, nil
}

// scrapeHomepageLocked fetches the community homepage and fills in
// whichever metadata fields it can find. Transport and parse failures
// return an error and cache nothing.
func (s *Session) scrapeHomepageLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := s.httpClientLocked().Do(req)
	if err != nil {
		return fmt.Errorf("fetch account page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch account page: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("parse account page: %w", err)
	}

	if href, ok := doc.Find("a.menuitem.supernav.username").First().Attr("href"); ok {
		if m := profileIDPattern.FindStringSubmatch(href); m != nil {
			s.profileID = m[1]
		}
	}

	if text := doc.Find("#header_wallet_balance").First().Text(); text != "" {
		if amount, err := currency.ParseDollars(text); err == nil {
			s.wallet = amount
			s.walletKnown = true
		}
	}

	return nil
}
