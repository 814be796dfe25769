// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package auth

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), zerolog.Nop())
}

func sampleCreds() *Credentials {
	return &Credentials{
		Homeserver:  "https://matrix.example.org",
		UserID:      "@bot:example.org",
		AccessToken: "syt_secret",
		DeviceID:    "ABCDEFGH",
	}
}

// TestStore_SaveLoadRoundtrip verifies a saved session loads back intact.
func TestStore_SaveLoadRoundtrip(t *testing.T) {
	t.Parallel()
	store := testStore(t)
	require.NoError(t, store.Save(sampleCreds()))

	got := store.Load()
	require.NotNil(t, got)
	assert.Equal(t, sampleCreds(), got)
}

// TestStore_SaveRestrictsPermissions verifies the credentials file is
// owner-only.
func TestStore_SaveRestrictsPermissions(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("POSIX permissions")
	}
	store := testStore(t)
	require.NoError(t, store.Save(sampleCreds()))

	info, err := os.Stat(store.CredentialsPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

// TestStore_LoadMissingIsNil verifies an absent file is not an error.
func TestStore_LoadMissingIsNil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, testStore(t).Load())
}

// TestStore_LoadCorruptIsNil verifies unparseable files are ignored rather
// than fatal.
func TestStore_LoadCorruptIsNil(t *testing.T) {
	t.Parallel()
	store := testStore(t)
	require.NoError(t, os.WriteFile(store.CredentialsPath(), []byte("{not json"), 0o600))
	assert.Nil(t, store.Load())
}

// TestStore_LoadIncompleteIsNil verifies sessions missing required fields
// are ignored.
func TestStore_LoadIncompleteIsNil(t *testing.T) {
	t.Parallel()
	store := testStore(t)
	require.NoError(t, os.WriteFile(store.CredentialsPath(),
		[]byte(`{"homeserver":"https://example.org"}`), 0o600))
	assert.Nil(t, store.Load())
}

// TestStore_SaveLeavesNoTempFiles verifies the atomic write cleans up.
func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	t.Parallel()
	store := testStore(t)
	require.NoError(t, store.Save(sampleCreds()))
	require.NoError(t, store.Save(sampleCreds()))

	entries, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "credentials.json", entries[0].Name())
}

// TestStore_DeleteIsIdempotent verifies Delete removes session and key store
// and tolerates repeated calls.
func TestStore_DeleteIsIdempotent(t *testing.T) {
	t.Parallel()
	store := testStore(t)
	require.NoError(t, store.Save(sampleCreds()))
	require.NoError(t, os.WriteFile(store.CryptoDBPath(), []byte("keys"), 0o600))

	require.NoError(t, store.Delete())
	assert.NoFileExists(t, store.CredentialsPath())
	assert.NoFileExists(t, store.CryptoDBPath())

	require.NoError(t, store.Delete())
}

// TestStore_DeleteRemovesWALSidecars verifies the sqlite -wal and -shm files
// left by the crypto store do not survive logout.
func TestStore_DeleteRemovesWALSidecars(t *testing.T) {
	t.Parallel()
	store := testStore(t)
	require.NoError(t, store.Save(sampleCreds()))
	for _, path := range []string{
		store.CryptoDBPath(),
		store.CryptoDBPath() + "-wal",
		store.CryptoDBPath() + "-shm",
	} {
		require.NoError(t, os.WriteFile(path, []byte("keys"), 0o600))
	}

	require.NoError(t, store.Delete())

	entries, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestDefaultDir verifies the store lives under the user config dir.
func TestDefaultDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir, err := DefaultDir()
	require.NoError(t, err)
	assert.Equal(t, "matrix-biblebot", filepath.Base(dir))
}
