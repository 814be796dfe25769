// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

// LoginRequest carries the interactive login inputs. Homeserver may be a
// bare server name or a URL; User may be a full MXID or a bare localpart.
type LoginRequest struct {
	Homeserver string
	User       string
	Password   string
}

// Login performs a password login, reusing the stored device ID if a
// previous session left one behind, and saves the resulting session.
func Login(ctx context.Context, store *Store, req LoginRequest, log zerolog.Logger) (*Credentials, error) {
	serverName, baseURL, err := resolveHomeserver(ctx, req.Homeserver)
	if err != nil {
		return nil, err
	}
	localpart := localpartOf(req.User)
	if localpart == "" {
		return nil, fmt.Errorf("empty username")
	}

	client, err := mautrix.NewClient(baseURL, "", "")
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	var deviceID id.DeviceID
	if prev := store.Load(); prev != nil && prev.UserID == id.NewUserID(localpart, serverName) {
		// Reusing the device keeps existing E2EE sessions valid.
		deviceID = prev.DeviceID
	}

	resp, err := client.Login(ctx, &mautrix.ReqLogin{
		Type: mautrix.AuthTypePassword,
		Identifier: mautrix.UserIdentifier{
			Type: mautrix.IdentifierTypeUser,
			User: localpart,
		},
		Password:                 req.Password,
		DeviceID:                 deviceID,
		InitialDeviceDisplayName: "biblebot",
	})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	creds := &Credentials{
		Homeserver:  baseURL,
		UserID:      resp.UserID,
		AccessToken: resp.AccessToken,
		DeviceID:    resp.DeviceID,
	}
	if err = store.Save(creds); err != nil {
		return nil, err
	}
	log.Info().
		Stringer("user_id", creds.UserID).
		Stringer("device_id", creds.DeviceID).
		Msg("Logged in and saved session")
	return creds, nil
}

// Logout invalidates the stored session on the server, then removes the
// local credentials and key store. Server errors are logged but do not keep
// the local state around.
func Logout(ctx context.Context, store *Store, log zerolog.Logger) error {
	if creds := store.Load(); creds != nil {
		client, err := mautrix.NewClient(creds.Homeserver, creds.UserID, creds.AccessToken)
		if err == nil {
			if _, err = client.Logout(ctx); err != nil {
				log.Warn().Err(err).Msg("Server logout failed, clearing local session anyway")
			}
		}
	}
	return store.Delete()
}

// resolveHomeserver normalizes the input to a server name and discovers the
// client API base URL via .well-known, falling back to https://<name>.
func resolveHomeserver(ctx context.Context, input string) (serverName, baseURL string, err error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", "", fmt.Errorf("empty homeserver")
	}
	serverName = input
	if strings.Contains(input, "://") {
		parsed, err := url.Parse(input)
		if err != nil || parsed.Host == "" {
			return "", "", fmt.Errorf("invalid homeserver URL %q", input)
		}
		serverName = parsed.Host
	}

	wellKnown, err := mautrix.DiscoverClientAPI(ctx, serverName)
	if err == nil && wellKnown != nil && wellKnown.Homeserver.BaseURL != "" {
		return serverName, wellKnown.Homeserver.BaseURL, nil
	}
	if strings.Contains(input, "://") {
		return serverName, input, nil
	}
	return serverName, "https://" + serverName, nil
}

// localpartOf accepts "@user:server", "user:server" or "user" and returns
// the bare localpart.
func localpartOf(user string) string {
	user = strings.TrimSpace(strings.TrimPrefix(user, "@"))
	if i := strings.IndexByte(user, ':'); i >= 0 {
		user = user[:i]
	}
	return user
}
