// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth implements the Steam web login protocol.
//
// A login is a short conversation with the community site: fetch the
// account's RSA key parameters, encrypt the password under them, then
// submit login requests until the server is satisfied. Each response
// tells us what the server wants next - a captcha answer, an emailed
// guard code, a two-factor code - and the corresponding challenge
// provider is consulted before the next attempt.
//
// Challenge providers are values passed by the caller, not defaults
// baked into the flow. The manual variants prompt the operator; the
// automated variants poll an inbox (package mail) or generate TOTP
// codes. All of them satisfy the same small contracts, so the login
// loop never knows which one it is talking to.
//
//	client := auth.NewClient()
//	sess, err := client.Login(ctx, auth.LoginOptions{
//	    Account:  "alice",
//	    Password: "hunter2",
//	    Codes:    mailProvider,
//	    Captcha:  auth.NewManualCaptchaSolver(client, prompt),
//	})
package auth
