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

const defaultAPIBibleBaseURL = "https://api.scripture.api.bible/v1"

// APIBible fetches passages from api.scripture.api.bible. Translation codes
// are bound to bible IDs in configuration, so any edition the service hosts
// can be exposed as a translation token.
type APIBible struct {
	baseURL string
	apiKey  string
	bibles  map[string]string // translation code -> bible ID
	client  *http.Client
}

// NewAPIBible creates the api.bible provider with the configured
// translation-to-bible-ID bindings.
func NewAPIBible(apiKey string, bibles map[string]string, client *http.Client) *APIBible {
	normalized := make(map[string]string, len(bibles))
	for code, id := range bibles {
		normalized[strings.ToLower(code)] = id
	}
	return &APIBible{
		baseURL: defaultAPIBibleBaseURL,
		apiKey:  apiKey,
		bibles:  normalized,
		client:  client,
	}
}

func (a *APIBible) Name() string { return "api.bible" }

type apiBibleSearchResponse struct {
	Data struct {
		Passages []struct {
			Reference string `json:"reference"`
			Content   string `json:"content"`
		} `json:"passages"`
	} `json:"data"`
}

func (a *APIBible) Fetch(ctx context.Context, passage, translation string) (Passage, error) {
	if a.apiKey == "" {
		return Passage{}, fmt.Errorf("%w: api.bible key required for %q", ErrCredentialMissing, passage)
	}
	bibleID, ok := a.bibles[strings.ToLower(translation)]
	if !ok {
		return Passage{}, fmt.Errorf("%w: no bible configured for translation %q", ErrPassageNotFound, translation)
	}

	params := url.Values{
		"query":        {passage},
		"content-type": {"text"},
	}
	reqURL := fmt.Sprintf("%s/bibles/%s/search?%s", a.baseURL, url.PathEscape(bibleID), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Passage{}, fmt.Errorf("%w: building request: %v", ErrUnavailable, err)
	}
	req.Header.Set("api-key", a.apiKey)

	status, body, err := getJSON(a.client, req)
	if err != nil {
		return Passage{}, err
	}
	switch {
	case status == http.StatusOK:
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Passage{}, fmt.Errorf("%w: api.bible rejected the configured key", ErrCredentialMissing)
	case status == http.StatusNotFound || status == http.StatusBadRequest:
		return Passage{}, fmt.Errorf("%w: %q (%s)", ErrPassageNotFound, passage, translation)
	default:
		return Passage{}, fmt.Errorf("%w: HTTP %d from %s", ErrUnavailable, status, a.Name())
	}

	var parsed apiBibleSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Passage{}, fmt.Errorf("%w: invalid JSON from %s: %v", ErrUnavailable, a.Name(), err)
	}
	if len(parsed.Data.Passages) == 0 {
		return Passage{}, fmt.Errorf("%w: %q (%s)", ErrPassageNotFound, passage, translation)
	}
	first := parsed.Data.Passages[0]
	text := strings.TrimSpace(first.Content)
	if text == "" {
		return Passage{}, fmt.Errorf("%w: empty text for %q (%s)", ErrPassageNotFound, passage, translation)
	}
	return Passage{Text: text, Reference: first.Reference}, nil
}
