// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const defaultBibleAPIBaseURL = "https://bible-api.com"

// BibleAPI fetches passages from bible-api.com, a keyless JSON service
// serving several public-domain translations.
type BibleAPI struct {
	baseURL string
	client  *http.Client
}

// NewBibleAPI creates the bible-api.com provider.
func NewBibleAPI(client *http.Client) *BibleAPI {
	return &BibleAPI{baseURL: defaultBibleAPIBaseURL, client: client}
}

func (b *BibleAPI) Name() string { return "bible-api.com" }

// Translations returns the public-domain translation codes the endpoint
// serves.
func (b *BibleAPI) Translations() []string {
	return []string{"kjv", "web", "asv"}
}

type bibleAPIResponse struct {
	Reference string `json:"reference"`
	Text      string `json:"text"`
	Error     string `json:"error"`
}

func (b *BibleAPI) Fetch(ctx context.Context, passage, translation string) (Passage, error) {
	// PathEscape keeps ':' intact in chapter:verse while encoding spaces.
	reqURL := fmt.Sprintf("%s/%s?translation=%s",
		b.baseURL, url.PathEscape(passage), url.QueryEscape(strings.ToLower(translation)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Passage{}, fmt.Errorf("%w: building request: %v", ErrUnavailable, err)
	}

	status, body, err := getJSON(b.client, req)
	if err != nil {
		return Passage{}, err
	}
	switch {
	case status == http.StatusOK:
	case status == http.StatusNotFound:
		return Passage{}, fmt.Errorf("%w: %q (%s)", ErrPassageNotFound, passage, translation)
	default:
		return Passage{}, fmt.Errorf("%w: HTTP %d from %s", ErrUnavailable, status, b.Name())
	}

	var parsed bibleAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Passage{}, fmt.Errorf("%w: invalid JSON from %s: %v", ErrUnavailable, b.Name(), err)
	}
	text := strings.TrimSpace(parsed.Text)
	if parsed.Error != "" || text == "" {
		return Passage{}, fmt.Errorf("%w: %q (%s)", ErrPassageNotFound, passage, translation)
	}
	return Passage{Text: text, Reference: parsed.Reference}, nil
}
