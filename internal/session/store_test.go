// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)

	creds := []Credential{
		{Name: "sessionid", Value: "abc", Domain: "example.com", Path: "/"},
		{Name: "steamLogin", Value: "111||tok", Domain: "example.com", Path: "/"},
	}
	require.NoError(t, store.Save(New("gabe", creds).WithSteamID("111")))

	loaded, err := store.Load("gabe")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "gabe", loaded.Account())
	require.Equal(t, "111", loaded.SteamID())
	require.Equal(t, creds, loaded.Credentials())
}

func TestStoreRoundTripKeepsBaseURL(t *testing.T) {
	store := openTestStore(t)

	sess := New("gabe", []Credential{{Name: "sessionid", Value: "abc"}}).
		WithBaseURL("https://partner.example.com")
	require.NoError(t, store.Save(sess))

	loaded, err := store.Load("gabe")
	require.NoError(t, err)
	require.Equal(t, "https://partner.example.com", loaded.BaseURL())
}

func TestStoreMissingAccount(t *testing.T) {
	store := openTestStore(t)

	loaded, err := store.Load("nobody")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestStoreUpsertLastWriterWins(t *testing.T) {
	store := openTestStore(t)

	first := New("gabe", []Credential{{Name: "sessionid", Value: "old"}})
	second := New("gabe", []Credential{{Name: "sessionid", Value: "new"}}).WithSteamID("222")
	require.NoError(t, store.Save(first))
	require.NoError(t, store.Save(second))

	loaded, err := store.Load("gabe")
	require.NoError(t, err)
	v, ok := loaded.Cookie("sessionid")
	require.True(t, ok)
	require.Equal(t, "new", v)
	require.Equal(t, "222", loaded.SteamID())
}

func TestStoreAccountsAreIndependent(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save(New("alice", []Credential{{Name: "sessionid", Value: "a"}})))
	require.NoError(t, store.Save(New("bob", []Credential{{Name: "sessionid", Value: "b"}})))

	alice, err := store.Load("alice")
	require.NoError(t, err)
	v, _ := alice.Cookie("sessionid")
	require.Equal(t, "a", v)
}

func TestStoreDelete(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save(New("gabe", []Credential{{Name: "sessionid", Value: "x"}})))
	require.NoError(t, store.Delete("gabe"))

	loaded, err := store.Load("gabe")
	require.NoError(t, err)
	require.Nil(t, loaded)

	// Deleting a missing account is not an error.
	require.NoError(t, store.Delete("gabe"))
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "sessions.db")

	store, err := OpenStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(New("gabe", []Credential{{Name: "sessionid", Value: "x"}})))
	require.NoError(t, store.Close())

	reopened, err := OpenStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load("gabe")
	require.NoError(t, err)
	require.NotNil(t, loaded)
}
