// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/desperado/internal/session"
)

// DefaultMaxAttempts bounds the login conversation when the caller does
// not say otherwise.
const DefaultMaxAttempts = 5

// LoginOptions configures one login conversation.
type LoginOptions struct {
	// Account is the login name. It also keys the session store.
	Account string

	// Password is the plaintext password. It is encrypted under fresh
	// key material before it ever leaves the process.
	Password string

	// Codes supplies the emailed guard code when the server asks for
	// one. Required only for accounts protected that way.
	Codes CodeProvider

	// Captcha answers captcha challenges.
	Captcha CaptchaSolver

	// TwoFactor supplies authenticator codes for accounts using
	// app-based two-factor instead of emailed codes.
	TwoFactor CodeProvider

	// MaxAttempts caps login submissions. Zero means DefaultMaxAttempts.
	MaxAttempts int

	// FriendlyName labels this device in the account's authorizations
	// list. A random one is generated when empty.
	FriendlyName string

	// RememberLogin asks the server for a long-lived session.
	RememberLogin bool

	// Store, when set, is consulted before contacting the server and
	// receives the session after a successful login. A stored session
	// is returned as-is: no liveness probe is made, so a stale session
	// surfaces later as a scrape failure.
	Store *session.Store
}

// challengeState accumulates challenge answers across attempts within a
// single login conversation. It never outlives the Login call.
type challengeState struct {
	captchaGID    string
	captchaText   string
	emailCode     string
	twoFactorCode string
	friendlyName  string
	rememberLogin bool
}

// Login performs the full login conversation and returns an
// authenticated session.
//
// The flow: consult the store, fetch key material once, encrypt the
// password, then submit attempts until the server reports success or the
// attempt budget runs out. Each non-success response either names a
// challenge - in which case the matching provider is invoked (again, if
// the server re-asks) and the loop continues - or is fatal.
//
// Every failure mode surfaces as a distinct inspectable error:
// *KeyRetrievalError, ErrPasswordTooLong, *ChallengeError,
// *RejectedError, *UnrecognizedStateError, ErrTooManyAttempts.
func (c *Client) Login(ctx context.Context, opts LoginOptions) (*session.Session, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.FriendlyName == "" {
		opts.FriendlyName = "desperado-" + uuid.NewString()[:8]
	}

	if opts.Store != nil {
		stored, err := opts.Store.Load(opts.Account)
		if err != nil {
			return nil, fmt.Errorf("load stored session: %w", err)
		}
		if stored != nil {
			logrus.WithField("account", opts.Account).Info("reusing stored session")
			return stored, nil
		}
	}

	key, err := c.GetRSAKey(ctx, opts.Account)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"account":   opts.Account,
		"token_gid": key.TokenGID,
	}).Debug("retrieved rsa key material")

	ciphertext, err := EncryptPassword([]byte(opts.Password), key.Modulus, key.Exponent)
	if err != nil {
		return nil, err
	}
	encoded := EncodePassword(ciphertext)

	state := &challengeState{
		friendlyName:  opts.FriendlyName,
		rememberLogin: opts.RememberLogin,
	}

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		resp, raw, err := c.submitLogin(ctx, opts.Account, encoded, key.Timestamp, state)
		if err != nil {
			return nil, fmt.Errorf("submit login attempt %d: %w", attempt, err)
		}

		outcome := classify(resp)
		logrus.WithFields(logrus.Fields{
			"account": opts.Account,
			"attempt": attempt,
			"outcome": outcome.String(),
		}).Info("login attempt classified")

		switch outcome {
		case OutcomeCaptchaNeeded:
			if err := c.answerCaptcha(ctx, opts, resp, state); err != nil {
				return nil, err
			}

		case OutcomeCodeNeeded:
			if opts.Codes == nil {
				return nil, &ChallengeError{Challenge: "email code", Err: ErrNoProvider}
			}
			code, err := opts.Codes.Code(ctx)
			if err != nil {
				return nil, &ChallengeError{Challenge: "email code", Err: err}
			}
			state.emailCode = code

		case OutcomeTwoFactorNeeded:
			if opts.TwoFactor == nil {
				return nil, &ChallengeError{Challenge: "two-factor code", Err: ErrNoProvider}
			}
			code, err := opts.TwoFactor.Code(ctx)
			if err != nil {
				return nil, &ChallengeError{Challenge: "two-factor code", Err: err}
			}
			state.twoFactorCode = code

		case OutcomeSuccess:
			return c.buildSession(opts, resp)

		case OutcomeRejected:
			return nil, &RejectedError{Reason: resp.Message}

		default:
			return nil, &UnrecognizedStateError{Raw: raw}
		}
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrTooManyAttempts, opts.MaxAttempts)
}

// answerCaptcha resolves a captcha challenge into the state. The gid
// comes from the response when present; otherwise a fresh challenge is
// requested. Re-asked captchas go through the solver again.
func (c *Client) answerCaptcha(ctx context.Context, opts LoginOptions, resp *loginResponse, state *challengeState) error {
	if opts.Captcha == nil {
		return &ChallengeError{Challenge: "captcha", Err: ErrNoProvider}
	}

	gid := string(resp.CaptchaGID)
	if gid == "" || gid == "-1" {
		fresh, err := c.RefreshCaptcha(ctx)
		if err != nil {
			return &ChallengeError{Challenge: "captcha", Err: err}
		}
		gid = fresh
	}

	text, err := opts.Captcha.Solve(ctx, gid)
	if err != nil {
		return &ChallengeError{Challenge: "captcha", Err: err}
	}
	state.captchaGID = gid
	state.captchaText = text
	return nil
}

// buildSession snapshots the cookie jar plus the transfer tokens into a
// serializable session and persists it.
func (c *Client) buildSession(opts LoginOptions, resp *loginResponse) (*session.Session, error) {
	u, err := url.Parse(c.communityURL)
	if err != nil {
		return nil, fmt.Errorf("parse community url: %w", err)
	}

	var creds []session.Credential
	seen := map[string]bool{}
	for _, cookie := range c.jar.Cookies(u) {
		creds = append(creds, session.Credential{
			Name:   cookie.Name,
			Value:  cookie.Value,
			Domain: u.Hostname(),
			Path:   "/",
		})
		seen[cookie.Name] = true
	}

	// The transfer parameters carry the login tokens even when the
	// server does not set them as cookies on this response.
	tp := resp.TransferParameters
	if tp.Token != "" && !seen["steamLogin"] {
		creds = append(creds, session.Credential{
			Name:   "steamLogin",
			Value:  tp.SteamID + "||" + tp.Token,
			Domain: u.Hostname(),
			Path:   "/",
		})
	}
	if tp.TokenSecure != "" && !seen["steamLoginSecure"] {
		creds = append(creds, session.Credential{
			Name:   "steamLoginSecure",
			Value:  tp.SteamID + "||" + tp.TokenSecure,
			Domain: u.Hostname(),
			Path:   "/",
		})
	}

	if len(creds) == 0 {
		return nil, ErrNoSessionCookies
	}

	sess := session.New(opts.Account, creds).WithSteamID(tp.SteamID).WithBaseURL(c.communityURL)

	if opts.Store != nil {
		if err := opts.Store.Save(sess); err != nil {
			// The login itself succeeded; losing it over a disk error
			// would force a pointless re-authentication next run.
			logrus.WithError(err).Warn("could not persist session")
		}
	}

	logrus.WithFields(logrus.Fields{
		"account":  opts.Account,
		"steam_id": tp.SteamID,
	}).Info("login complete")
	return sess, nil
}
