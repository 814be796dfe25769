// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/id"
)

const (
	credentialsFile = "credentials.json"
	cryptoDBFile    = "crypto.db"
)

// Credentials is a stored Matrix session.
type Credentials struct {
	Homeserver  string      `json:"homeserver"`
	UserID      id.UserID   `json:"user_id"`
	AccessToken string      `json:"access_token"`
	DeviceID    id.DeviceID `json:"device_id"`
}

// Store persists credentials and the E2EE database under a config directory.
type Store struct {
	dir string
	log zerolog.Logger
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, log zerolog.Logger) *Store {
	return &Store{dir: dir, log: log.With().Str("component", "authstore").Logger()}
}

// DefaultDir returns ~/.config/matrix-biblebot, honoring XDG_CONFIG_HOME.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(base, "matrix-biblebot"), nil
}

// CredentialsPath returns the location of the credentials file.
func (s *Store) CredentialsPath() string {
	return filepath.Join(s.dir, credentialsFile)
}

// CryptoDBPath returns the location of the E2EE key database.
func (s *Store) CryptoDBPath() string {
	return filepath.Join(s.dir, cryptoDBFile)
}

// Load reads the stored credentials. A missing or unreadable file is not an
// error: it returns nil so the caller falls back to interactive login.
func (s *Store) Load() *Credentials {
	raw, err := os.ReadFile(s.CredentialsPath())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn().Err(err).Msg("Failed to read credentials file")
		}
		return nil
	}
	var creds Credentials
	if err = json.Unmarshal(raw, &creds); err != nil {
		s.log.Warn().Err(err).Msg("Ignoring corrupt credentials file")
		return nil
	}
	if creds.Homeserver == "" || creds.UserID == "" || creds.AccessToken == "" {
		s.log.Warn().Msg("Ignoring incomplete credentials file")
		return nil
	}
	return &creds
}

// Save writes the credentials atomically with owner-only permissions.
func (s *Store) Save(creds *Credentials) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	raw, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, credentialsFile+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("restricting permissions: %w", err)
	}
	if _, err = tmp.Write(raw); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("flushing credentials: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.CredentialsPath()); err != nil {
		return fmt.Errorf("replacing credentials file: %w", err)
	}
	tmp = nil
	return nil
}

// Delete removes the credentials file and the E2EE database, including the
// sqlite WAL sidecars the crypto store leaves next to it. Missing files are
// not errors, so it is safe to call repeatedly.
func (s *Store) Delete() error {
	cryptoDB := s.CryptoDBPath()
	for _, path := range []string{
		s.CredentialsPath(),
		cryptoDB,
		cryptoDB + "-wal",
		cryptoDB + "-shm",
	} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}
