// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
)

// TOTPProvider generates time-based two-factor codes from a shared
// secret, for accounts protected by an authenticator app instead of
// emailed codes. It satisfies CodeProvider, so the caller wires it into
// LoginOptions.TwoFactor.
type TOTPProvider struct {
	secret string
	now    func() time.Time
}

// NewTOTPProvider creates a provider from a base32 TOTP secret.
func NewTOTPProvider(secret string) *TOTPProvider {
	return &TOTPProvider{secret: secret, now: time.Now}
}

// Code implements CodeProvider. Each invocation generates a code for the
// current time window, so a re-prompted challenge gets a fresh code once
// the window rolls over.
func (p *TOTPProvider) Code(_ context.Context) (string, error) {
	code, err := totp.GenerateCode(p.secret, p.now())
	if err != nil {
		return "", fmt.Errorf("generate totp code: %w", err)
	}
	return code, nil
}
