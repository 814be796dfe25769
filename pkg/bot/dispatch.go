// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bot

import (
	"context"
	"errors"
	"strings"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/matrix-biblebot/biblebot/pkg/cache"
	"github.com/matrix-biblebot/biblebot/pkg/provider"
)

const (
	reactionAck = "✅"
	votdCommand = "!votd"
)

// Generic user-facing error texts. Provider error details are logged, never
// sent to the room.
const (
	msgPassageNotFound   = "Sorry, that passage could not be found."
	msgCredentialMissing = "That translation requires an API key that is not configured."
	msgUnavailable       = "The Bible text service is currently unavailable. Please try again later."
)

// roomMessage is the per-event state the dispatcher works with. It is built
// from the raw protocol event and discarded after handling.
type roomMessage struct {
	RoomID    id.RoomID
	Sender    id.UserID
	EventID   id.EventID
	Timestamp int64 // milliseconds, server-assigned
	Body      string
}

// handleMessage filters an inbound message and, if it survives, resolves and
// answers it. Silent returns are ordinary chat; only provider failures
// produce a user-visible error message.
func (b *Bot) handleMessage(ctx context.Context, msg roomMessage) {
	if !b.isAuthorized(msg.RoomID) {
		return
	}
	if msg.Sender == b.self {
		return
	}
	if msg.Timestamp <= b.watermark {
		return
	}

	body := strings.TrimSpace(msg.Body)
	if strings.EqualFold(body, votdCommand) || strings.HasPrefix(strings.ToLower(body), votdCommand+" ") {
		b.handleVOTD(ctx, msg, strings.TrimSpace(body[len(votdCommand):]))
		return
	}

	ref, ok := b.resolver.Parse(body)
	if !ok {
		return
	}
	log := b.log.With().
		Stringer("room_id", msg.RoomID).
		Stringer("event_id", msg.EventID).
		Str("passage", ref.Passage()).
		Str("translation", ref.Translation).
		Logger()

	text, reference, err := b.lookupPassage(ctx, ref.Passage(), ref.Translation)
	if err != nil {
		log.Warn().Err(err).Msg("Passage lookup failed")
		b.sendErrorMessage(ctx, msg.RoomID, err)
		return
	}

	if err = b.transport.SendReaction(ctx, msg.RoomID, msg.EventID, reactionAck); err != nil {
		log.Warn().Err(err).Msg("Failed to send acknowledgement reaction")
	}
	b.sendReply(ctx, msg.RoomID, text, reference)
	log.Debug().Msg("Answered scripture reference")
}

// lookupPassage consults the cache, then the provider bound to the
// translation. Successful provider fetches populate the cache.
func (b *Bot) lookupPassage(ctx context.Context, passage, translation string) (text, reference string, err error) {
	if cached, ok := b.cache.Get(passage, translation); ok {
		return cached.Text, cached.Reference, nil
	}
	p, ok := b.registry.Lookup(translation)
	if !ok {
		return "", "", provider.ErrPassageNotFound
	}
	fetched, err := p.Fetch(ctx, passage, translation)
	if err != nil {
		return "", "", err
	}
	b.cache.Put(passage, translation, cache.Passage{Text: fetched.Text, Reference: fetched.Reference})
	return fetched.Text, fetched.Reference, nil
}

// handleVOTD answers the verse-of-the-day command. The optional argument
// picks the BibleGateway version, defaulting to the configured translation.
func (b *Bot) handleVOTD(ctx context.Context, msg roomMessage, version string) {
	if version == "" {
		version = b.cfg.Bot.DefaultTranslation
	}
	got, err := b.votd.VerseOfTheDay(ctx, version)
	if err != nil {
		b.log.Warn().Err(err).Str("version", version).Msg("Verse of the day fetch failed")
		b.sendErrorMessage(ctx, msg.RoomID, err)
		return
	}
	if err = b.transport.SendReaction(ctx, msg.RoomID, msg.EventID, reactionAck); err != nil {
		b.log.Warn().Err(err).Msg("Failed to send acknowledgement reaction")
	}
	b.sendReply(ctx, msg.RoomID, got.Text, got.Reference)
}

// sendReply formats and sends the passage, splitting into multiple messages
// when configured.
func (b *Bot) sendReply(ctx context.Context, roomID id.RoomID, text, reference string) {
	parts := formatReply(text, reference, formatOptions{
		maxLength:      b.cfg.Bot.MaxMessageLength,
		splitLength:    b.cfg.Bot.SplitMessageLength,
		preservePoetry: b.cfg.Bot.PreservePoetryFormatting,
	})
	for _, part := range parts {
		if err := b.transport.SendMessage(ctx, roomID, part, htmlBody(part)); err != nil {
			b.log.Warn().Err(err).Stringer("room_id", roomID).Msg("Failed to send reply")
			return
		}
	}
}

// sendErrorMessage sends exactly one generic error message, no reaction.
func (b *Bot) sendErrorMessage(ctx context.Context, roomID id.RoomID, cause error) {
	var body string
	switch {
	case errors.Is(cause, provider.ErrCredentialMissing):
		body = msgCredentialMissing
	case errors.Is(cause, provider.ErrUnavailable):
		body = msgUnavailable
	default:
		body = msgPassageNotFound
	}
	if err := b.transport.SendMessage(ctx, roomID, body, ""); err != nil {
		b.log.Warn().Err(err).Stringer("room_id", roomID).Msg("Failed to send error message")
	}
}

// handleInvite joins invited rooms that are in the authorized set and
// ignores everything else.
func (b *Bot) handleInvite(ctx context.Context, roomID id.RoomID) {
	if !b.isAuthorized(roomID) {
		b.log.Info().Stringer("room_id", roomID).Msg("Ignoring invite to unlisted room")
		return
	}
	if err := b.transport.JoinRoom(ctx, roomID); err != nil {
		b.log.Warn().Err(err).Stringer("room_id", roomID).Msg("Failed to join invited room")
		return
	}
	b.log.Info().Stringer("room_id", roomID).Msg("Joined room on invite")
}

// handleDecryptionFailure requests the missing room key exactly once per
// megolm session. When the primary path reports a duplicate or is
// unsupported, the to-device fallback is tried exactly once instead.
func (b *Bot) handleDecryptionFailure(ctx context.Context, evt *event.Event) {
	var sessionID id.SessionID
	if content := evt.Content.AsEncrypted(); content != nil {
		sessionID = content.SessionID
	}
	if sessionID != "" {
		if _, seen := b.requestedKeys[sessionID]; seen {
			return
		}
		b.requestedKeys[sessionID] = struct{}{}
	}

	log := b.log.With().Stringer("event_id", evt.ID).Str("session_id", string(sessionID)).Logger()
	err := b.transport.RequestRoomKey(ctx, evt)
	if err == nil {
		log.Debug().Msg("Requested room key")
		return
	}
	if errors.Is(err, errKeyRequestDuplicate) || errors.Is(err, errKeyRequestUnsupported) {
		if err = b.transport.SendKeyRequestToDevice(ctx, evt); err != nil {
			log.Warn().Err(err).Msg("Fallback key request failed")
			return
		}
		log.Debug().Msg("Requested room key via to-device fallback")
		return
	}
	log.Warn().Err(err).Msg("Room key request failed")
}
