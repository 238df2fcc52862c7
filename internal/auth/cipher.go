// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
)

// pkcs1Overhead is the padding overhead of PKCS#1 v1.5 encryption.
const pkcs1Overhead = 11

// KeyMaterial holds the RSA parameters the server issues for one login.
// The server rotates these, so a KeyMaterial is used for exactly one
// login conversation and never persisted.
type KeyMaterial struct {
	// Modulus and Exponent are the public key, decoded from the hex
	// strings the key endpoint returns.
	Modulus  *big.Int
	Exponent *big.Int

	// Timestamp is the server's opaque timestamp token. It must be
	// echoed back verbatim on every login submission.
	Timestamp string

	// TokenGID is an opaque request identifier. Unused by the flow but
	// kept for logging.
	TokenGID string
}

// EncryptPassword encrypts a plaintext password under the given RSA
// public key using PKCS#1 v1.5 padding.
//
// The padding scheme is part of the protocol: the server only accepts
// PKCS#1 v1.5, and any other scheme fails authentication server-side
// with no local error. The password must be shorter than the key size
// in bytes minus the 11-byte padding overhead; ErrPasswordTooLong is
// returned otherwise, and that is a hard ceiling, not retryable.
func EncryptPassword(password []byte, modulus, exponent *big.Int) ([]byte, error) {
	// rsa.PublicKey.E is an int; a wider exponent would truncate into a
	// garbage key. Real exponents are tiny (65537), so reject loudly.
	if exponent.BitLen() > 62 {
		return nil, fmt.Errorf("rsa exponent too large: %d bits", exponent.BitLen())
	}
	pub := &rsa.PublicKey{N: modulus, E: int(exponent.Int64())}

	if max := pub.Size() - pkcs1Overhead; len(password) >= max {
		return nil, fmt.Errorf("%w: %d bytes, limit %d for a %d-byte key",
			ErrPasswordTooLong, len(password), max-1, pub.Size())
	}

	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, password)
	if err != nil {
		return nil, fmt.Errorf("rsa encrypt: %w", err)
	}
	return ciphertext, nil
}

// EncodePassword converts raw ciphertext into the base64 form the login
// endpoint expects. The raw-bytes/encoded-text boundary is part of the
// wire contract: the request body always carries the encoded form.
func EncodePassword(ciphertext []byte) string {
	return base64.StdEncoding.EncodeToString(ciphertext)
}
