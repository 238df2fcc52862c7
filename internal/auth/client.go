// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Endpoint configuration.
const (
	// DefaultCommunityURL hosts the key retrieval and login endpoints.
	DefaultCommunityURL = "https://steamcommunity.com"

	// DefaultStoreURL hosts the captcha endpoints.
	DefaultStoreURL = "https://store.steampowered.com"

	// DefaultTimeout is the timeout for individual login requests.
	// Challenge providers have their own budgets; this only bounds the
	// HTTP round trips.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent matches a desktop browser; the login endpoints
	// reject obviously non-browser agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 6.1; WOW64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/37.0.2062.120 Safari/537.36"

	// MaxResponseSize bounds login response bodies.
	MaxResponseSize = 1 * 1024 * 1024
)

// Client talks to the community login endpoints. It owns the cookie jar
// that accumulates the session identity during a login conversation.
//
// A Client serves one account's login at a time; the server keeps
// per-account captcha and timestamp state, so concurrent logins against
// the same account are not supported. Use separate Clients for separate
// accounts.
type Client struct {
	communityURL string
	storeURL     string
	httpClient   *http.Client
	jar          http.CookieJar
	userAgent    string
}

// NewClient creates a login client with a fresh cookie jar.
func NewClient() *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		communityURL: DefaultCommunityURL,
		storeURL:     DefaultStoreURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
		jar:       jar,
		userAgent: DefaultUserAgent,
	}
}

// WithBaseURLs overrides the community and store endpoints. Used by tests.
func (c *Client) WithBaseURLs(community, store string) *Client {
	c.communityURL = strings.TrimSuffix(community, "/")
	c.storeURL = strings.TrimSuffix(store, "/")
	return c
}

// WithUserAgent overrides the User-Agent header sent on every request.
func (c *Client) WithUserAgent(agent string) *Client {
	c.userAgent = agent
	return c
}

// rsaKeyResponse is the wire shape of the key retrieval endpoint.
type rsaKeyResponse struct {
	Success      bool   `json:"success"`
	PublicKeyMod string `json:"publickey_mod"`
	PublicKeyExp string `json:"publickey_exp"`
	Timestamp    string `json:"timestamp"`
	TokenGID     string `json:"token_gid"`
}

// GetRSAKey fetches fresh key material for an account. The material is
// single-use: the server rotates it, so every login conversation starts
// with its own call.
func (c *Client) GetRSAKey(ctx context.Context, account string) (*KeyMaterial, error) {
	form := url.Values{
		"username":   {account},
		"donotcache": {strconv.FormatInt(time.Now().UnixMilli(), 10)},
	}

	body, err := c.postForm(ctx, c.communityURL+"/login/getrsakey/", form, nil)
	if err != nil {
		return nil, &KeyRetrievalError{Err: err}
	}

	var resp rsaKeyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &KeyRetrievalError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if !resp.Success {
		return nil, &KeyRetrievalError{Err: fmt.Errorf("server reported failure")}
	}
	if resp.PublicKeyMod == "" || resp.PublicKeyExp == "" {
		return nil, &KeyRetrievalError{Err: fmt.Errorf("response missing key fields")}
	}

	// The key parameters arrive hex encoded.
	modulus, ok := new(big.Int).SetString(resp.PublicKeyMod, 16)
	if !ok {
		return nil, &KeyRetrievalError{Err: fmt.Errorf("bad modulus %q", resp.PublicKeyMod)}
	}
	exponent, ok := new(big.Int).SetString(resp.PublicKeyExp, 16)
	if !ok {
		return nil, &KeyRetrievalError{Err: fmt.Errorf("bad exponent %q", resp.PublicKeyExp)}
	}

	return &KeyMaterial{
		Modulus:   modulus,
		Exponent:  exponent,
		Timestamp: resp.Timestamp,
		TokenGID:  resp.TokenGID,
	}, nil
}

// submitLogin posts one login attempt carrying the encrypted password
// and whatever challenge answers have been collected so far. It returns
// the raw body alongside the decoded response so unrecognized states can
// be reported verbatim.
func (c *Client) submitLogin(ctx context.Context, account, encodedPassword, timestamp string, state *challengeState) (*loginResponse, []byte, error) {
	form := url.Values{
		"username":          {account},
		"password":          {encodedPassword},
		"twofactorcode":     {state.twoFactorCode},
		"emailauth":         {state.emailCode},
		"loginfriendlyname": {state.friendlyName},
		"captchagid":        {state.captchaGID},
		"captcha_text":      {state.captchaText},
		"emailsteamid":      {""},
		"rsatimestamp":      {timestamp},
		"remember_login":    {strconv.FormatBool(state.rememberLogin)},
		"donotcache":        {strconv.FormatInt(time.Now().UnixMilli(), 10)},
	}

	body, err := c.postForm(ctx, c.communityURL+"/login/dologin/", form, nil)
	if err != nil {
		return nil, nil, err
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		// Not JSON at all; let the caller classify it as unrecognized.
		return nil, body, nil
	}
	return &resp, body, nil
}

// RefreshCaptcha asks the store for a new captcha challenge and returns
// its gid.
func (c *Client) RefreshCaptcha(ctx context.Context) (string, error) {
	body, err := c.get(ctx, c.storeURL+"/join/refreshcaptcha/", nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		GID flexString `json:"gid"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode refreshcaptcha response: %w", err)
	}
	return string(resp.GID), nil
}

// CaptchaImage fetches the captcha image for a gid as raw PNG bytes.
func (c *Client) CaptchaImage(ctx context.Context, gid string) ([]byte, error) {
	return c.get(ctx, c.storeURL+"/public/captcha.php", url.Values{"gid": {gid}})
}

// Jar exposes the cookie jar accumulated during login. The session layer
// snapshots it into a serializable credential list on success.
func (c *Client) Jar() http.CookieJar { return c.jar }

// CommunityURL returns the community base URL in effect.
func (c *Client) CommunityURL() string { return c.communityURL }

func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values, headers http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, headers)
}

func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, headers http.Header) ([]byte, error) {
	req.Header.Set("User-Agent", c.userAgent)
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Path)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
