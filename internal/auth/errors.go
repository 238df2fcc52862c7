// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for the login flow.
var (
	// ErrPasswordTooLong indicates the password does not fit the RSA key's
	// PKCS#1 v1.5 payload limit. Not retryable.
	ErrPasswordTooLong = errors.New("password too long for rsa key")

	// ErrTooManyAttempts indicates the attempt ceiling was reached without
	// a successful login.
	ErrTooManyAttempts = errors.New("login attempts exhausted")

	// ErrNoProvider indicates the server asked for a challenge the caller
	// supplied no provider for.
	ErrNoProvider = errors.New("no provider configured for requested challenge")

	// ErrNoSessionCookies indicates the server reported success but issued
	// no session cookies to build an identity from.
	ErrNoSessionCookies = errors.New("login succeeded but server issued no session cookies")
)

// KeyRetrievalError indicates the RSA key request failed or came back
// malformed. The login flow does not retry it.
type KeyRetrievalError struct {
	Err error
}

// Error implements the error interface.
func (e *KeyRetrievalError) Error() string {
	return fmt.Sprintf("rsa key retrieval failed: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *KeyRetrievalError) Unwrap() error { return e.Err }

// ChallengeError indicates a challenge provider failed to produce its
// value. It aborts the whole login rather than consuming an attempt.
type ChallengeError struct {
	// Challenge names what the server asked for: "captcha", "email code"
	// or "two-factor code".
	Challenge string
	Err       error
}

// Error implements the error interface.
func (e *ChallengeError) Error() string {
	return fmt.Sprintf("%s provider failed: %v", e.Challenge, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ChallengeError) Unwrap() error { return e.Err }

// RejectedError indicates the server refused the login with an explicit
// failure message (bad password, locked account). Fatal, never retried.
type RejectedError struct {
	Reason string
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	return fmt.Sprintf("login rejected: %s", e.Reason)
}

// UnrecognizedStateError indicates a login response that matched no known
// outcome. Retrying an unparseable response risks looping forever against
// a non-cooperating server, so this is fatal on first occurrence.
type UnrecognizedStateError struct {
	// Raw is the response body as received, kept for inspection.
	Raw []byte
}

// Error implements the error interface.
func (e *UnrecognizedStateError) Error() string {
	return fmt.Sprintf("unrecognized login state: %s", string(e.Raw))
}
