// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package bot wires the reference resolver, passage cache and provider
// registry to a Matrix client and answers scripture references in the
// configured rooms.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/crypto/cryptohelper"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/matrix-biblebot/biblebot/pkg/auth"
	"github.com/matrix-biblebot/biblebot/pkg/bible"
	"github.com/matrix-biblebot/biblebot/pkg/cache"
	"github.com/matrix-biblebot/biblebot/pkg/config"
	"github.com/matrix-biblebot/biblebot/pkg/provider"
)

// votdFetcher is the verse-of-the-day dependency, split out so tests can
// substitute a fake.
type votdFetcher interface {
	VerseOfTheDay(ctx context.Context, version string) (provider.Passage, error)
}

// Bot owns all steady-state dispatch state. The rooms set and watermark are
// written only during startup; handlers treat them as read-only.
type Bot struct {
	cfg *config.Config
	log zerolog.Logger

	resolver *bible.Resolver
	cache    *cache.PassageCache
	registry *provider.Registry
	votd     votdFetcher

	transport transport
	self      id.UserID
	watermark int64 // milliseconds; events at or before it are discarded
	rooms     map[id.RoomID]struct{}

	requestedKeys map[id.SessionID]struct{}
}

// New assembles a bot from validated configuration. The Matrix side is not
// connected until Run.
func New(cfg *config.Config, log zerolog.Logger) *Bot {
	registry := provider.BuildRegistry(provider.Config{
		ESVKey:         cfg.APIKeys.ESV,
		APIBibleKey:    cfg.APIKeys.APIBible,
		APIBibleBibles: cfg.APIBible.Bibles,
	}, nil)
	return &Bot{
		cfg:      cfg,
		log:      log,
		resolver: bible.NewResolver(registry.Translations(), cfg.Bot.DefaultTranslation, cfg.Bot.DetectReferencesAnywhere),
		cache: cache.New(cfg.Bot.CacheMaxEntries, time.Duration(cfg.Bot.CacheTTL),
			cfg.Bot.CacheEnabled),
		registry:      registry,
		votd:          provider.NewVOTD(nil),
		rooms:         make(map[id.RoomID]struct{}),
		requestedKeys: make(map[id.SessionID]struct{}),
	}
}

// Run connects to the homeserver with the stored session and syncs until the
// context is cancelled. cryptoDBPath is only used when E2EE is enabled.
func (b *Bot) Run(ctx context.Context, creds *auth.Credentials, cryptoDBPath string) error {
	client, err := mautrix.NewClient(creds.Homeserver, creds.UserID, creds.AccessToken)
	if err != nil {
		return fmt.Errorf("creating matrix client: %w", err)
	}
	client.DeviceID = creds.DeviceID
	client.Log = b.log.With().Str("component", "mautrix").Logger()
	b.self = creds.UserID

	var helper *cryptohelper.CryptoHelper
	if b.cfg.Matrix.E2EE.Enabled {
		helper, err = cryptohelper.NewCryptoHelper(client, []byte("biblebot"), cryptoDBPath)
		if err != nil {
			return fmt.Errorf("creating crypto helper: %w", err)
		}
		helper.DecryptErrorCallback = func(evt *event.Event, decryptErr error) {
			b.log.Debug().Err(decryptErr).Stringer("event_id", evt.ID).Msg("Failed to decrypt event")
			b.handleDecryptionFailure(ctx, evt)
		}
		if err = helper.Init(ctx); err != nil {
			return fmt.Errorf("initializing encryption: %w", err)
		}
		client.Crypto = helper
	}
	b.transport = newMatrixTransport(client, helper)

	syncer := client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, func(ctx context.Context, evt *event.Event) {
		content := evt.Content.AsMessage()
		if content == nil || content.MsgType != event.MsgText {
			return
		}
		b.handleMessage(ctx, roomMessage{
			RoomID:    evt.RoomID,
			Sender:    evt.Sender,
			EventID:   evt.ID,
			Timestamp: evt.Timestamp,
			Body:      content.Body,
		})
	})
	syncer.OnEventType(event.StateMember, func(ctx context.Context, evt *event.Event) {
		membership := evt.Content.AsMember()
		if membership == nil || membership.Membership != event.MembershipInvite {
			return
		}
		if evt.GetStateKey() != string(b.self) {
			return
		}
		b.handleInvite(ctx, evt.RoomID)
	})

	// Events at or before this instant were sent before we started.
	b.watermark = time.Now().UnixMilli()

	b.resolveAliases(ctx)
	if len(b.rooms) == 0 {
		return fmt.Errorf("no configured room could be resolved")
	}
	b.ensureJoined(ctx)

	b.log.Info().
		Stringer("user_id", b.self).
		Int("rooms", len(b.rooms)).
		Msg("Starting sync")
	return client.SyncWithContext(ctx)
}

// resolveAliases builds the authorized room set from the configuration,
// resolving alias-shaped entries through the transport. Unresolvable aliases
// are dropped with a warning.
func (b *Bot) resolveAliases(ctx context.Context) {
	for _, room := range b.cfg.Matrix.RoomIDs {
		if strings.HasPrefix(room, "!") {
			b.rooms[id.RoomID(room)] = struct{}{}
			continue
		}
		resolved, err := b.transport.ResolveAlias(ctx, id.RoomAlias(room))
		if err != nil {
			b.log.Warn().Err(err).Str("alias", room).Msg("Dropping unresolvable room alias")
			continue
		}
		b.rooms[resolved] = struct{}{}
	}
}

// ensureJoined joins every authorized room the session is not already in.
func (b *Bot) ensureJoined(ctx context.Context) {
	joined := make(map[id.RoomID]struct{})
	if rooms, err := b.transport.JoinedRooms(ctx); err != nil {
		b.log.Warn().Err(err).Msg("Failed to list joined rooms, joining all configured rooms")
	} else {
		for _, room := range rooms {
			joined[room] = struct{}{}
		}
	}
	for room := range b.rooms {
		if _, ok := joined[room]; ok {
			continue
		}
		if err := b.transport.JoinRoom(ctx, room); err != nil {
			b.log.Warn().Err(err).Stringer("room_id", room).Msg("Failed to join configured room")
		}
	}
}

// isAuthorized reports whether the room is in the resolved allowlist.
func (b *Bot) isAuthorized(roomID id.RoomID) bool {
	_, ok := b.rooms[roomID]
	return ok
}
