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

const defaultESVBaseURL = "https://api.esv.org/v3/passage/text/"

// ESV fetches passages from api.esv.org. The service requires an API token.
type ESV struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewESV creates the ESV provider. An empty key is legal at construction
// time; Fetch reports ErrCredentialMissing when the key is actually needed.
func NewESV(apiKey string, client *http.Client) *ESV {
	return &ESV{baseURL: defaultESVBaseURL, apiKey: apiKey, client: client}
}

func (e *ESV) Name() string { return "api.esv.org" }

type esvResponse struct {
	Canonical string   `json:"canonical"`
	Passages  []string `json:"passages"`
}

func (e *ESV) Fetch(ctx context.Context, passage, _ string) (Passage, error) {
	if e.apiKey == "" {
		return Passage{}, fmt.Errorf("%w: ESV API key required for %q", ErrCredentialMissing, passage)
	}

	params := url.Values{
		"q":                          {passage},
		"include-headings":           {"false"},
		"include-footnotes":          {"false"},
		"include-verse-numbers":      {"false"},
		"include-short-copyright":    {"false"},
		"include-passage-references": {"false"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Passage{}, fmt.Errorf("%w: building request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Token "+e.apiKey)

	status, body, err := getJSON(e.client, req)
	if err != nil {
		return Passage{}, err
	}
	switch {
	case status == http.StatusOK:
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Passage{}, fmt.Errorf("%w: ESV API rejected the configured key", ErrCredentialMissing)
	default:
		return Passage{}, fmt.Errorf("%w: HTTP %d from %s", ErrUnavailable, status, e.Name())
	}

	var parsed esvResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Passage{}, fmt.Errorf("%w: invalid JSON from %s: %v", ErrUnavailable, e.Name(), err)
	}
	// The API answers 200 with an empty passage list for unknown
	// references.
	if len(parsed.Passages) == 0 || strings.TrimSpace(parsed.Passages[0]) == "" {
		return Passage{}, fmt.Errorf("%w: %q (esv)", ErrPassageNotFound, passage)
	}
	return Passage{Text: strings.TrimSpace(parsed.Passages[0]), Reference: parsed.Canonical}, nil
}
