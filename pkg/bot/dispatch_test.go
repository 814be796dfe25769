// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/matrix-biblebot/biblebot/pkg/bible"
	"github.com/matrix-biblebot/biblebot/pkg/cache"
	"github.com/matrix-biblebot/biblebot/pkg/config"
	"github.com/matrix-biblebot/biblebot/pkg/provider"
)

const (
	testRoom   = id.RoomID("!room:example.org")
	testSelf   = id.UserID("@biblebot:example.org")
	testSender = id.UserID("@alice:example.org")
	testEvent  = id.EventID("$evt1")
)

type reactionCall struct {
	RoomID  id.RoomID
	EventID id.EventID
	Key     string
}

type messageCall struct {
	RoomID        id.RoomID
	Body          string
	FormattedBody string
}

// mockTransport records outbound calls and serves canned responses.
type mockTransport struct {
	reactions []reactionCall
	messages  []messageCall
	joins     []id.RoomID

	joinedRooms []id.RoomID
	aliases     map[id.RoomAlias]id.RoomID

	keyRequestErr error
	keyRequests   int
	toDeviceReqs  int
}

var _ transport = (*mockTransport)(nil)

func (m *mockTransport) SendReaction(_ context.Context, roomID id.RoomID, eventID id.EventID, key string) error {
	m.reactions = append(m.reactions, reactionCall{roomID, eventID, key})
	return nil
}

func (m *mockTransport) SendMessage(_ context.Context, roomID id.RoomID, body, formattedBody string) error {
	m.messages = append(m.messages, messageCall{roomID, body, formattedBody})
	return nil
}

func (m *mockTransport) JoinRoom(_ context.Context, roomID id.RoomID) error {
	m.joins = append(m.joins, roomID)
	return nil
}

func (m *mockTransport) JoinedRooms(_ context.Context) ([]id.RoomID, error) {
	return m.joinedRooms, nil
}

func (m *mockTransport) ResolveAlias(_ context.Context, alias id.RoomAlias) (id.RoomID, error) {
	if roomID, ok := m.aliases[alias]; ok {
		return roomID, nil
	}
	return "", &mockAliasError{alias}
}

type mockAliasError struct{ alias id.RoomAlias }

func (e *mockAliasError) Error() string { return "unknown alias " + string(e.alias) }

func (m *mockTransport) RequestRoomKey(_ context.Context, _ *event.Event) error {
	m.keyRequests++
	return m.keyRequestErr
}

func (m *mockTransport) SendKeyRequestToDevice(_ context.Context, _ *event.Event) error {
	m.toDeviceReqs++
	return nil
}

// fakeProvider counts fetches and returns a fixed passage or error.
type fakeProvider struct {
	calls int
	text  string
	ref   string
	err   error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Fetch(_ context.Context, _, _ string) (provider.Passage, error) {
	f.calls++
	if f.err != nil {
		return provider.Passage{}, f.err
	}
	return provider.Passage{Text: f.text, Reference: f.ref}, nil
}

type fakeVOTD struct {
	calls   int
	version string
	passage provider.Passage
	err     error
}

func (f *fakeVOTD) VerseOfTheDay(_ context.Context, version string) (provider.Passage, error) {
	f.calls++
	f.version = version
	if f.err != nil {
		return provider.Passage{}, f.err
	}
	return f.passage, nil
}

// newTestBot wires a bot to a mock transport with kjv and esv fakes.
func newTestBot(t *testing.T, kjv, esv *fakeProvider) (*Bot, *mockTransport) {
	t.Helper()
	registry := provider.NewRegistry()
	registry.Register(kjv, "kjv")
	registry.Register(esv, "esv")

	cfg := &config.Config{
		Matrix: config.MatrixConfig{RoomIDs: []string{string(testRoom)}},
		Bot: config.BotConfig{
			DefaultTranslation: "kjv",
			CacheEnabled:       true,
			CacheMaxEntries:    config.DefaultCacheMaxEntries,
			CacheTTL:           config.Duration(config.DefaultCacheTTL),
			MaxMessageLength:   config.DefaultMaxMessageLength,
		},
	}
	mock := &mockTransport{}
	return &Bot{
		cfg:           cfg,
		log:           zerolog.Nop(),
		resolver:      bible.NewResolver(registry.Translations(), cfg.Bot.DefaultTranslation, false),
		cache:         cache.New(cfg.Bot.CacheMaxEntries, time.Duration(cfg.Bot.CacheTTL), true),
		registry:      registry,
		votd:          &fakeVOTD{},
		transport:     mock,
		self:          testSelf,
		watermark:     1000,
		rooms:         map[id.RoomID]struct{}{testRoom: {}},
		requestedKeys: make(map[id.SessionID]struct{}),
	}, mock
}

func messageAt(ts int64, body string) roomMessage {
	return roomMessage{
		RoomID:    testRoom,
		Sender:    testSender,
		EventID:   testEvent,
		Timestamp: ts,
		Body:      body,
	}
}

// TestHandleMessage_RepliesWithPassage verifies the reaction-then-reply
// happy path.
func TestHandleMessage_RepliesWithPassage(t *testing.T) {
	t.Parallel()
	kjv := &fakeProvider{text: "For God so loved the world...", ref: "John 3:16"}
	bot, mock := newTestBot(t, kjv, &fakeProvider{})

	bot.handleMessage(context.Background(), messageAt(2000, "John 3:16"))

	if len(mock.reactions) != 1 {
		t.Fatalf("expected 1 reaction, got %d", len(mock.reactions))
	}
	if mock.reactions[0] != (reactionCall{testRoom, testEvent, reactionAck}) {
		t.Errorf("unexpected reaction %+v", mock.reactions[0])
	}
	if len(mock.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(mock.messages))
	}
	body := mock.messages[0].Body
	if !strings.Contains(body, "For God so loved the world...") {
		t.Errorf("reply missing verse text: %q", body)
	}
	if !strings.Contains(body, "John 3:16") {
		t.Errorf("reply missing reference: %q", body)
	}
}

// TestHandleMessage_OrdinaryChatIsSilent verifies no-match bodies produce
// zero outbound events.
func TestHandleMessage_OrdinaryChatIsSilent(t *testing.T) {
	t.Parallel()
	kjv := &fakeProvider{text: "x", ref: "y"}
	bot, mock := newTestBot(t, kjv, &fakeProvider{})

	for _, body := range []string{
		"hello everyone",
		"see you at 3 pm",
		"John 3:16:17",
	} {
		bot.handleMessage(context.Background(), messageAt(2000, body))
	}

	if kjv.calls != 0 {
		t.Errorf("provider called %d times for ordinary chat", kjv.calls)
	}
	if len(mock.reactions)+len(mock.messages) != 0 {
		t.Errorf("expected no outbound events, got %d reactions and %d messages",
			len(mock.reactions), len(mock.messages))
	}
}

// TestHandleMessage_Filters verifies unauthorized rooms, own messages and
// pre-watermark events are discarded before resolution.
func TestHandleMessage_Filters(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		msg  roomMessage
	}{
		{"unauthorized room", roomMessage{RoomID: "!other:example.org", Sender: testSender, EventID: testEvent, Timestamp: 2000, Body: "John 3:16"}},
		{"own message", roomMessage{RoomID: testRoom, Sender: testSelf, EventID: testEvent, Timestamp: 2000, Body: "John 3:16"}},
		{"before watermark", messageAt(999, "John 3:16")},
		{"at watermark", messageAt(1000, "John 3:16")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			kjv := &fakeProvider{text: "x", ref: "y"}
			bot, mock := newTestBot(t, kjv, &fakeProvider{})

			bot.handleMessage(context.Background(), tc.msg)

			if kjv.calls != 0 || len(mock.reactions)+len(mock.messages) != 0 {
				t.Errorf("event was not discarded: %d calls, %d reactions, %d messages",
					kjv.calls, len(mock.reactions), len(mock.messages))
			}
		})
	}
}

// TestHandleMessage_TranslationSelection verifies explicit tokens override
// the default translation.
func TestHandleMessage_TranslationSelection(t *testing.T) {
	t.Parallel()
	kjv := &fakeProvider{text: "kjv text", ref: "John 3:16"}
	esv := &fakeProvider{text: "esv text", ref: "John 3:16"}
	bot, _ := newTestBot(t, kjv, esv)

	bot.handleMessage(context.Background(), messageAt(2000, "John 3:16"))
	if kjv.calls != 1 || esv.calls != 0 {
		t.Errorf("default translation: kjv=%d esv=%d", kjv.calls, esv.calls)
	}

	bot.handleMessage(context.Background(), messageAt(2001, "John 3:16 esv"))
	if esv.calls != 1 {
		t.Errorf("explicit translation: esv=%d", esv.calls)
	}
}

// TestHandleMessage_CacheSuppressesSecondFetch verifies resolving the same
// reference twice makes exactly one provider call.
func TestHandleMessage_CacheSuppressesSecondFetch(t *testing.T) {
	t.Parallel()
	kjv := &fakeProvider{text: "For God so loved the world...", ref: "John 3:16"}
	bot, mock := newTestBot(t, kjv, &fakeProvider{})

	bot.handleMessage(context.Background(), messageAt(2000, "John 3:16"))
	bot.handleMessage(context.Background(), messageAt(2001, "john 3:16"))

	if kjv.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", kjv.calls)
	}
	if len(mock.messages) != 2 {
		t.Errorf("expected 2 replies, got %d", len(mock.messages))
	}
}

// TestHandleMessage_ProviderErrors verifies each failure class maps to one
// generic message with no reaction and no raw error text.
func TestHandleMessage_ProviderErrors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		err      error
		wantBody string
	}{
		{"not found", provider.ErrPassageNotFound, msgPassageNotFound},
		{"credential missing", provider.ErrCredentialMissing, msgCredentialMissing},
		{"unavailable", provider.ErrUnavailable, msgUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			esv := &fakeProvider{err: tc.err}
			bot, mock := newTestBot(t, &fakeProvider{}, esv)

			bot.handleMessage(context.Background(), messageAt(2000, "John 3:16 esv"))

			if len(mock.reactions) != 0 {
				t.Errorf("error path must not react, got %d reactions", len(mock.reactions))
			}
			if len(mock.messages) != 1 {
				t.Fatalf("expected exactly 1 error message, got %d", len(mock.messages))
			}
			if mock.messages[0].Body != tc.wantBody {
				t.Errorf("unexpected error body %q", mock.messages[0].Body)
			}
		})
	}
}

// TestHandleMessage_ErrorsAreNotCached verifies a failed fetch does not
// poison the cache.
func TestHandleMessage_ErrorsAreNotCached(t *testing.T) {
	t.Parallel()
	kjv := &fakeProvider{err: provider.ErrUnavailable}
	bot, mock := newTestBot(t, kjv, &fakeProvider{})

	bot.handleMessage(context.Background(), messageAt(2000, "John 3:16"))
	kjv.err = nil
	kjv.text, kjv.ref = "For God so loved the world...", "John 3:16"
	bot.handleMessage(context.Background(), messageAt(2001, "John 3:16"))

	if kjv.calls != 2 {
		t.Errorf("expected a retry after failure, got %d calls", kjv.calls)
	}
	if len(mock.messages) != 2 {
		t.Errorf("expected error message plus reply, got %d messages", len(mock.messages))
	}
}

// TestHandleVOTD verifies the verse-of-the-day command and its version
// argument.
func TestHandleVOTD(t *testing.T) {
	t.Parallel()
	bot, mock := newTestBot(t, &fakeProvider{}, &fakeProvider{})
	votd := &fakeVOTD{passage: provider.Passage{Text: "Rejoice always", Reference: "1 Thessalonians 5:16"}}
	bot.votd = votd

	bot.handleMessage(context.Background(), messageAt(2000, "!votd"))
	if votd.calls != 1 {
		t.Fatalf("expected 1 votd call, got %d", votd.calls)
	}
	if votd.version != "kjv" {
		t.Errorf("expected default version, got %q", votd.version)
	}
	if len(mock.messages) != 1 || !strings.Contains(mock.messages[0].Body, "Rejoice always") {
		t.Errorf("unexpected votd reply %+v", mock.messages)
	}

	bot.handleMessage(context.Background(), messageAt(2001, "!votd nkjv"))
	if votd.version != "nkjv" {
		t.Errorf("expected explicit version, got %q", votd.version)
	}
}

// TestHandleInvite verifies invites are joined only for authorized rooms.
func TestHandleInvite(t *testing.T) {
	t.Parallel()
	bot, mock := newTestBot(t, &fakeProvider{}, &fakeProvider{})

	bot.handleInvite(context.Background(), testRoom)
	if len(mock.joins) != 1 || mock.joins[0] != testRoom {
		t.Errorf("expected join for authorized room, got %v", mock.joins)
	}

	bot.handleInvite(context.Background(), "!stranger:example.org")
	if len(mock.joins) != 1 {
		t.Errorf("unlisted invite must not join, got %v", mock.joins)
	}
}

func encryptedEvent(eventID id.EventID, sessionID id.SessionID) *event.Event {
	return &event.Event{
		ID:     eventID,
		RoomID: testRoom,
		Content: event.Content{Parsed: &event.EncryptedEventContent{
			Algorithm: id.AlgorithmMegolmV1,
			SessionID: sessionID,
		}},
	}
}

// TestHandleDecryptionFailure_OneRequestPerSession verifies repeated
// failures for one megolm session produce a single key request.
func TestHandleDecryptionFailure_OneRequestPerSession(t *testing.T) {
	t.Parallel()
	bot, mock := newTestBot(t, &fakeProvider{}, &fakeProvider{})

	bot.handleDecryptionFailure(context.Background(), encryptedEvent("$e1", "session-a"))
	bot.handleDecryptionFailure(context.Background(), encryptedEvent("$e2", "session-a"))

	if mock.keyRequests != 1 {
		t.Errorf("expected 1 key request, got %d", mock.keyRequests)
	}
	if mock.toDeviceReqs != 0 {
		t.Errorf("fallback must not fire on success, got %d", mock.toDeviceReqs)
	}

	bot.handleDecryptionFailure(context.Background(), encryptedEvent("$e3", "session-b"))
	if mock.keyRequests != 2 {
		t.Errorf("expected a request for the new session, got %d", mock.keyRequests)
	}
}

// TestHandleDecryptionFailure_FallbackOnDuplicate verifies the to-device
// path fires exactly once when the primary path reports a duplicate.
func TestHandleDecryptionFailure_FallbackOnDuplicate(t *testing.T) {
	t.Parallel()
	bot, mock := newTestBot(t, &fakeProvider{}, &fakeProvider{})
	mock.keyRequestErr = errKeyRequestDuplicate

	bot.handleDecryptionFailure(context.Background(), encryptedEvent("$e1", "session-a"))

	if mock.keyRequests != 1 || mock.toDeviceReqs != 1 {
		t.Errorf("expected 1 primary and 1 fallback, got %d and %d",
			mock.keyRequests, mock.toDeviceReqs)
	}
}

// TestResolveAliases verifies alias resolution and the drop-on-failure
// policy.
func TestResolveAliases(t *testing.T) {
	t.Parallel()
	bot, mock := newTestBot(t, &fakeProvider{}, &fakeProvider{})
	bot.cfg.Matrix.RoomIDs = []string{
		"!direct:example.org",
		"#bible:example.org",
		"#missing:example.org",
	}
	bot.rooms = make(map[id.RoomID]struct{})
	mock.aliases = map[id.RoomAlias]id.RoomID{
		"#bible:example.org": "!resolved:example.org",
	}

	bot.resolveAliases(context.Background())

	if len(bot.rooms) != 2 {
		t.Fatalf("expected 2 resolved rooms, got %d", len(bot.rooms))
	}
	if !bot.isAuthorized("!direct:example.org") || !bot.isAuthorized("!resolved:example.org") {
		t.Errorf("unexpected room set %v", bot.rooms)
	}
	if bot.isAuthorized("#bible:example.org") {
		t.Error("aliases must never stay in the authorized set")
	}
}

// TestEnsureJoined verifies only missing rooms are joined.
func TestEnsureJoined(t *testing.T) {
	t.Parallel()
	bot, mock := newTestBot(t, &fakeProvider{}, &fakeProvider{})
	bot.rooms = map[id.RoomID]struct{}{
		"!a:example.org": {},
		"!b:example.org": {},
	}
	mock.joinedRooms = []id.RoomID{"!a:example.org"}

	bot.ensureJoined(context.Background())

	if len(mock.joins) != 1 || mock.joins[0] != "!b:example.org" {
		t.Errorf("expected join only for !b, got %v", mock.joins)
	}
}
