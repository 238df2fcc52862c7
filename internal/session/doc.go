// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the authenticated identity produced by a login
// and its durable storage.
//
// A Session's network identity is a plain list of name/value credential
// pairs - the cookies the login conversation earned - deliberately
// decoupled from any HTTP client object graph so it can be serialized
// with a stable schema. The Store keeps one row per account in a local
// sqlite file; loading a session needs nothing but that file.
//
// Account-scoped metadata (profile id, wallet balance) is not part of
// the stored record. It is scraped from the community homepage on first
// access and memoized for the life of the process.
package session
