// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bot

import (
	"context"
	"errors"
	"fmt"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/crypto/cryptohelper"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	_ "github.com/mattn/go-sqlite3"
)

// Key request outcomes the dispatcher branches on. Duplicate and unsupported
// trigger the to-device fallback, anything else is a plain failure.
var (
	errKeyRequestDuplicate   = errors.New("room key already requested")
	errKeyRequestUnsupported = errors.New("room key requests unsupported without encryption")
)

// transport is the narrow surface the dispatcher needs from the protocol
// client. Tests substitute a mock.
type transport interface {
	SendReaction(ctx context.Context, roomID id.RoomID, eventID id.EventID, key string) error
	SendMessage(ctx context.Context, roomID id.RoomID, body, formattedBody string) error
	JoinRoom(ctx context.Context, roomID id.RoomID) error
	JoinedRooms(ctx context.Context) ([]id.RoomID, error)
	ResolveAlias(ctx context.Context, alias id.RoomAlias) (id.RoomID, error)
	RequestRoomKey(ctx context.Context, evt *event.Event) error
	SendKeyRequestToDevice(ctx context.Context, evt *event.Event) error
}

// matrixTransport adapts a mautrix client to the transport interface.
type matrixTransport struct {
	client *mautrix.Client
	crypto *cryptohelper.CryptoHelper

	requestedSessions map[id.SessionID]struct{}
}

var _ transport = (*matrixTransport)(nil)

func newMatrixTransport(client *mautrix.Client, crypto *cryptohelper.CryptoHelper) *matrixTransport {
	return &matrixTransport{
		client:            client,
		crypto:            crypto,
		requestedSessions: make(map[id.SessionID]struct{}),
	}
}

func (t *matrixTransport) SendReaction(ctx context.Context, roomID id.RoomID, eventID id.EventID, key string) error {
	_, err := t.client.SendReaction(ctx, roomID, eventID, key)
	return err
}

func (t *matrixTransport) SendMessage(ctx context.Context, roomID id.RoomID, body, formattedBody string) error {
	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    body,
	}
	if formattedBody != "" && formattedBody != body {
		content.Format = event.FormatHTML
		content.FormattedBody = formattedBody
	}
	_, err := t.client.SendMessageEvent(ctx, roomID, event.EventMessage, content)
	return err
}

func (t *matrixTransport) JoinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := t.client.JoinRoomByID(ctx, roomID)
	return err
}

func (t *matrixTransport) JoinedRooms(ctx context.Context) ([]id.RoomID, error) {
	resp, err := t.client.JoinedRooms(ctx)
	if err != nil {
		return nil, err
	}
	return resp.JoinedRooms, nil
}

func (t *matrixTransport) ResolveAlias(ctx context.Context, alias id.RoomAlias) (id.RoomID, error) {
	resp, err := t.client.ResolveAlias(ctx, alias)
	if err != nil {
		return "", err
	}
	return resp.RoomID, nil
}

// RequestRoomKey asks the crypto machine to request keys for the megolm
// session the event was encrypted with. Repeats for the same session report
// errKeyRequestDuplicate so the caller can decide on a fallback.
func (t *matrixTransport) RequestRoomKey(ctx context.Context, evt *event.Event) error {
	if t.crypto == nil {
		return errKeyRequestUnsupported
	}
	content := evt.Content.AsEncrypted()
	if content == nil || content.SessionID == "" {
		return fmt.Errorf("event %s has no megolm session", evt.ID)
	}
	if _, dup := t.requestedSessions[content.SessionID]; dup {
		return errKeyRequestDuplicate
	}
	t.requestedSessions[content.SessionID] = struct{}{}

	err := t.crypto.Machine().SendRoomKeyRequest(ctx, evt.RoomID, content.SenderKey, content.SessionID,
		t.client.TxnID(), map[id.UserID][]id.DeviceID{t.client.UserID: {"*"}})
	if err != nil {
		return fmt.Errorf("sending room key request: %w", err)
	}
	return nil
}

// SendKeyRequestToDevice is the low-level fallback: a raw m.room_key_request
// to-device event addressed to the bot's own devices.
func (t *matrixTransport) SendKeyRequestToDevice(ctx context.Context, evt *event.Event) error {
	content := evt.Content.AsEncrypted()
	if content == nil || content.SessionID == "" {
		return fmt.Errorf("event %s has no megolm session", evt.ID)
	}
	req := &event.RoomKeyRequestEventContent{
		Action: event.KeyRequestActionRequest,
		Body: event.RequestedKeyInfo{
			Algorithm: content.Algorithm,
			RoomID:    evt.RoomID,
			SenderKey: content.SenderKey,
			SessionID: content.SessionID,
		},
		RequestingDeviceID: t.client.DeviceID,
		RequestID:          t.client.TxnID(),
	}
	_, err := t.client.SendToDevice(ctx, event.ToDeviceRoomKeyRequest, &mautrix.ReqSendToDevice{
		Messages: map[id.UserID]map[id.DeviceID]*event.Content{
			t.client.UserID: {"*": {Parsed: req}},
		},
	})
	return err
}
