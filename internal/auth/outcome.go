// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"bytes"
	"strconv"
)

// flexString decodes JSON fields the server sends as either a string or
// a bare number (captcha gids do both).
type flexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) >= 2 && data[0] == '"' {
		unquoted, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		*f = flexString(unquoted)
		return nil
	}
	*f = flexString(data)
	return nil
}

// loginResponse is the wire shape of the login endpoint. Which fields
// are present depends on what the server wants next.
type loginResponse struct {
	Success           bool       `json:"success"`
	LoginComplete     bool       `json:"login_complete"`
	Message           string     `json:"message"`
	CaptchaNeeded     bool       `json:"captcha_needed"`
	CaptchaGID        flexString `json:"captcha_gid"`
	EmailAuthNeeded   bool       `json:"emailauth_needed"`
	EmailDomain       string     `json:"emaildomain"`
	RequiresTwoFactor bool       `json:"requires_twofactor"`

	TransferParameters struct {
		SteamID     string `json:"steamid"`
		Token       string `json:"token"`
		TokenSecure string `json:"token_secure"`
		Auth        string `json:"auth"`
	} `json:"transfer_parameters"`
}

// Outcome classifies one login response.
type Outcome int

// Possible outcomes of a single login attempt.
const (
	// OutcomeUnrecognized means the response matched no known shape.
	OutcomeUnrecognized Outcome = iota

	// OutcomeSuccess means the server accepted the login.
	OutcomeSuccess

	// OutcomeCaptchaNeeded means the server wants a captcha answer.
	OutcomeCaptchaNeeded

	// OutcomeCodeNeeded means the server wants the emailed guard code.
	OutcomeCodeNeeded

	// OutcomeTwoFactorNeeded means the server wants a two-factor code.
	OutcomeTwoFactorNeeded

	// OutcomeRejected means the server refused with an explicit message.
	OutcomeRejected
)

// String returns a short label for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeCaptchaNeeded:
		return "captcha needed"
	case OutcomeCodeNeeded:
		return "email code needed"
	case OutcomeTwoFactorNeeded:
		return "two-factor code needed"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unrecognized"
	}
}

// classify maps a decoded response to an Outcome. A nil response (body
// that did not decode) is always unrecognized.
//
// Challenge markers are checked before the success flag: a response
// asking for a captcha also carries success=false, and a response asking
// for an email code can carry success=true.
func classify(resp *loginResponse) Outcome {
	switch {
	case resp == nil:
		return OutcomeUnrecognized
	case resp.CaptchaNeeded:
		return OutcomeCaptchaNeeded
	case resp.EmailAuthNeeded:
		return OutcomeCodeNeeded
	case resp.RequiresTwoFactor:
		return OutcomeTwoFactorNeeded
	case resp.Success:
		return OutcomeSuccess
	case resp.Message != "":
		return OutcomeRejected
	default:
		return OutcomeUnrecognized
	}
}
