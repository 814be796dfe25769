// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package provider fetches scripture text from external passage services.
// Each provider owns one wire format; failures are mapped onto a closed set
// of sentinel errors so the dispatcher can branch without knowing which
// service was behind the request.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Sentinel errors returned by every provider. Wrapped details carry the
// underlying cause for logging; callers branch with errors.Is.
var (
	// ErrPassageNotFound means the provider was reached but could not
	// resolve the reference.
	ErrPassageNotFound = errors.New("passage not found")
	// ErrCredentialMissing means the provider requires an API key that is
	// not configured.
	ErrCredentialMissing = errors.New("provider credential missing")
	// ErrUnavailable covers network errors, timeouts and unexpected
	// status codes.
	ErrUnavailable = errors.New("provider unavailable")
)

// DefaultTimeout bounds every provider request.
const DefaultTimeout = 10 * time.Second

const userAgent = "matrix-biblebot"

// Passage is a resolved scripture text with the canonical reference label
// reported by the provider.
type Passage struct {
	Text      string
	Reference string
}

// Provider resolves a passage reference in a specific translation.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string
	// Fetch resolves the passage. The translation is one of the codes
	// the provider was registered for.
	Fetch(ctx context.Context, passage, translation string) (Passage, error)
}

// Registry maps translation codes to the single provider serving each code.
// There is no fallback chain: a provider failure surfaces as-is.
type Registry struct {
	byTranslation map[string]Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byTranslation: make(map[string]Provider)}
}

// Register binds the provider to the given translation codes, replacing any
// previous binding.
func (r *Registry) Register(p Provider, translations ...string) {
	for _, t := range translations {
		r.byTranslation[strings.ToLower(t)] = p
	}
}

// Lookup returns the provider for a translation code.
func (r *Registry) Lookup(translation string) (Provider, bool) {
	p, ok := r.byTranslation[strings.ToLower(translation)]
	return p, ok
}

// Translations returns the registered translation codes, sorted.
func (r *Registry) Translations() []string {
	codes := make([]string, 0, len(r.byTranslation))
	for code := range r.byTranslation {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Config carries the per-provider credentials and bindings from the loaded
// configuration.
type Config struct {
	ESVKey         string
	APIBibleKey    string
	APIBibleBibles map[string]string // translation code -> api.bible bible ID
}

// BuildRegistry assembles the standard registry: bible-api.com for its
// keyless translations, api.esv.org for esv, and api.scripture.api.bible for
// any configured bible bindings. A nil client gets the default timeout.
func BuildRegistry(cfg Config, client *http.Client) *Registry {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	reg := NewRegistry()

	bibleAPI := NewBibleAPI(client)
	reg.Register(bibleAPI, bibleAPI.Translations()...)

	reg.Register(NewESV(cfg.ESVKey, client), "esv")

	if len(cfg.APIBibleBibles) > 0 {
		apiBible := NewAPIBible(cfg.APIBibleKey, cfg.APIBibleBibles, client)
		for code := range cfg.APIBibleBibles {
			reg.Register(apiBible, code)
		}
	}
	return reg
}

// getJSON issues the request with the shared headers and returns the status
// code and body. Transport-level failures, including timeouts, map to
// ErrUnavailable.
func getJSON(client *http.Client, req *http.Request) (int, []byte, error) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	return resp.StatusCode, body, nil
}
