// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	account     TEXT PRIMARY KEY,
	steam_id    TEXT NOT NULL DEFAULT '',
	base_url    TEXT NOT NULL DEFAULT '',
	credentials TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);`

// Store persists sessions in a local sqlite file, one row per account.
//
// The store holds no expiry or validation logic: Load hands back
// whatever was last saved, staleness and all. Concurrent saves for the
// same account are serialized; last writer wins.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenStore opens (creating if necessary) the session database at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init session store schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Save upserts the session's record under its account identifier. The
// stored copy is a serialization, not a live reference; later changes to
// the Session are not reflected until the next Save.
func (st *Store) Save(s *Session) error {
	creds, err := json.Marshal(s.Credentials())
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	_, err = st.db.Exec(`
		INSERT INTO sessions (account, steam_id, base_url, credentials, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET
			steam_id    = excluded.steam_id,
			base_url    = excluded.base_url,
			credentials = excluded.credentials,
			updated_at  = excluded.updated_at`,
		s.Account(), s.SteamID(), s.BaseURL(), string(creds), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save session for %q: %w", s.Account(), err)
	}
	return nil
}

// Load returns the stored session for an account, or nil if none exists.
// No liveness check is made against the server; a stale session loads
// fine here and fails later on first authenticated use.
func (st *Store) Load(account string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	var steamID, baseURL, credsJSON string
	err := st.db.QueryRow(
		`SELECT steam_id, base_url, credentials FROM sessions WHERE account = ?`, account).
		Scan(&steamID, &baseURL, &credsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session for %q: %w", account, err)
	}

	var creds []Credential
	if err := json.Unmarshal([]byte(credsJSON), &creds); err != nil {
		return nil, fmt.Errorf("decode credentials for %q: %w", account, err)
	}

	sess := New(account, creds).WithSteamID(steamID)
	if baseURL != "" {
		sess = sess.WithBaseURL(baseURL)
	}
	return sess, nil
}

// Delete removes an account's stored session, if any.
func (st *Store) Delete(account string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, err := st.db.Exec(`DELETE FROM sessions WHERE account = ?`, account); err != nil {
		return fmt.Errorf("delete session for %q: %w", account, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (st *Store) Close() error {
	return st.db.Close()
}
