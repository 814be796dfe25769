// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
)

const defaultVOTDBaseURL = "https://www.biblegateway.com/votd/get/"

// VOTD fetches BibleGateway's verse of the day. It is not a passage
// provider; the dispatcher calls it for the !votd command.
type VOTD struct {
	baseURL string
	client  *http.Client
}

// NewVOTD creates the verse-of-the-day gateway.
func NewVOTD(client *http.Client) *VOTD {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &VOTD{baseURL: defaultVOTDBaseURL, client: client}
}

type votdResponse struct {
	VOTD struct {
		Text      string `json:"text"`
		Reference string `json:"display_ref"`
	} `json:"votd"`
}

// VerseOfTheDay returns today's verse in the given version (e.g. "NKJV").
func (v *VOTD) VerseOfTheDay(ctx context.Context, version string) (Passage, error) {
	params := url.Values{
		"format":  {"json"},
		"version": {strings.ToUpper(version)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Passage{}, fmt.Errorf("%w: building request: %v", ErrUnavailable, err)
	}

	status, body, err := getJSON(v.client, req)
	if err != nil {
		return Passage{}, err
	}
	if status != http.StatusOK {
		return Passage{}, fmt.Errorf("%w: HTTP %d from biblegateway votd", ErrUnavailable, status)
	}

	var parsed votdResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Passage{}, fmt.Errorf("%w: invalid JSON from biblegateway votd: %v", ErrUnavailable, err)
	}
	// The feed delivers entity-encoded typographic quotes.
	text := strings.TrimSpace(html.UnescapeString(parsed.VOTD.Text))
	if text == "" {
		return Passage{}, fmt.Errorf("%w: empty verse of the day (%s)", ErrPassageNotFound, version)
	}
	return Passage{Text: text, Reference: parsed.VOTD.Reference}, nil
}
