// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package bible parses free-text scripture references. The grammar is
// deliberately conservative: anything that does not look exactly like
// "Book Chapter[:Verse[-Verse]] [translation]" is ordinary chat, not an
// error.
package bible

import (
	"fmt"
	"regexp"
	"strings"
)

// CommandPrefix lets users address the bot explicitly; the remainder of the
// message is parsed with the same anchored grammars as a bare reference.
const CommandPrefix = "!bible"

// Reference is a parsed scripture locator. Translation is always populated:
// either the explicit token from the message or the resolver's default.
type Reference struct {
	Book         string // canonical book name
	ChapterVerse string // "3:16", "3:16-18" or "3"
	Translation  string // lowercase translation code
}

// Passage returns the "<Book> <ChapterVerse>" string sent to providers and
// used as the cache key.
func (r Reference) Passage() string {
	return r.Book + " " + r.ChapterVerse
}

// Resolver matches message bodies against an ordered list of reference
// grammars. The first grammar that matches wins.
type Resolver struct {
	defaultTranslation string
	detectAnywhere     bool

	// Anchored grammars require the whole body to be a reference. The
	// unanchored variants, used only in detect-anywhere mode, find a
	// reference embedded in longer text.
	anchored   []*regexp.Regexp
	unanchored []*regexp.Regexp
}

// NewResolver builds a resolver recognizing the given translation codes as
// explicit tokens. defaultTranslation is applied when a message carries no
// token. When detectAnywhere is set, references are also matched inside
// longer messages, but only for books present in the alias table: the
// title-case fallback for unknown books is restricted to whole-message
// matches, where the false-positive risk is low.
func NewResolver(translations []string, defaultTranslation string, detectAnywhere bool) *Resolver {
	alternation := translationAlternation(translations)
	// Book: optional leading ordinal then one or more word characters,
	// dots allowed so "Gen. 1:1" parses.
	const book = `([\w][\w.]*(?:\s+[\w][\w.]*){0,3})`
	// Chapter:verse with optional verse range (hyphen or en dash), or a
	// bare chapter number.
	const chapterVerse = `(\d+:\d+(?:[-\x{2013}]\d+)?)`
	const chapterOnly = `(\d+)`

	compileBoth := func(core string) (anchored, unanchored *regexp.Regexp) {
		anchored = regexp.MustCompile(`(?i)^\s*` + core + `\s*$`)
		unanchored = regexp.MustCompile(`(?i)\b` + core + `\b`)
		return
	}

	verseCore := fmt.Sprintf(`%s\s+%s(?:\s+(%s))?`, book, chapterVerse, alternation)
	chapterCore := fmt.Sprintf(`%s\s+%s(?:\s+(%s))?`, book, chapterOnly, alternation)

	verseAnchored, verseUnanchored := compileBoth(verseCore)
	chapterAnchored, _ := compileBoth(chapterCore)

	return &Resolver{
		defaultTranslation: strings.ToLower(defaultTranslation),
		detectAnywhere:     detectAnywhere,
		anchored:           []*regexp.Regexp{verseAnchored, chapterAnchored},
		// Chapter-only detection inside running text would fire on any
		// "word number" pair, so only the chapter:verse grammar is used
		// for embedded matches.
		unanchored: []*regexp.Regexp{verseUnanchored},
	}
}

// translationAlternation builds the regexp alternation of recognized
// translation tokens, longest first so longer codes win over prefixes.
func translationAlternation(translations []string) string {
	codes := make([]string, 0, len(translations))
	for _, t := range translations {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			codes = append(codes, regexp.QuoteMeta(t))
		}
	}
	if len(codes) == 0 {
		codes = []string{"kjv"}
	}
	for i := 0; i < len(codes); i++ {
		for j := i + 1; j < len(codes); j++ {
			if len(codes[j]) > len(codes[i]) {
				codes[i], codes[j] = codes[j], codes[i]
			}
		}
	}
	return strings.Join(codes, "|")
}

// Parse matches a message body against the reference grammars. The boolean
// is false when the body is ordinary chat.
func (r *Resolver) Parse(body string) (Reference, bool) {
	body = strings.TrimSpace(body)

	// Explicit command prefix: the rest of the message must be a full
	// reference.
	if rest, ok := trimPrefixFold(body, CommandPrefix); ok {
		return r.parseAnchored(strings.TrimSpace(rest))
	}

	if ref, ok := r.parseAnchored(body); ok {
		return ref, true
	}

	if r.detectAnywhere {
		for _, pattern := range r.unanchored {
			for _, match := range pattern.FindAllStringSubmatch(body, -1) {
				// Embedded matches accept only known books; a
				// title-cased echo of arbitrary words would turn
				// ordinary sentences into lookups. The greedy book
				// group may swallow leading sentence words, so take
				// the longest suffix that names a known book.
				book, ok := knownBookSuffix(match[1])
				if !ok {
					continue
				}
				match[1] = book
				return r.makeReference(match), true
			}
		}
	}

	return Reference{}, false
}

func (r *Resolver) parseAnchored(body string) (Reference, bool) {
	for _, pattern := range r.anchored {
		match := pattern.FindStringSubmatch(body)
		if match == nil {
			continue
		}
		return r.makeReference(match), true
	}
	return Reference{}, false
}

func (r *Resolver) makeReference(match []string) Reference {
	translation := strings.ToLower(match[3])
	if translation == "" {
		translation = r.defaultTranslation
	}
	return Reference{
		Book:         NormalizeBook(match[1]),
		ChapterVerse: normalizeRange(match[2]),
		Translation:  translation,
	}
}

// normalizeRange replaces an en dash range separator with a plain hyphen so
// providers receive a single canonical form.
func normalizeRange(cv string) string {
	return strings.ReplaceAll(cv, "–", "-")
}

// knownBookSuffix returns the longest trailing word sequence of raw that maps
// to a known book.
func knownBookSuffix(raw string) (string, bool) {
	words := strings.Fields(raw)
	for i := 0; i < len(words); i++ {
		candidate := strings.Join(words[i:], " ")
		if KnownBook(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func trimPrefixFold(s, prefix string) (string, bool) {
	if len(s) > len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) && s[len(prefix)] == ' ' {
		return s[len(prefix):], true
	}
	return s, false
}
