// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bot

import (
	"html"
	"strings"
)

const (
	replySuffixDecoration = " 🕊️✝️"
	truncationIndicator   = "..."
)

// formatOptions mirrors the bot message settings from the configuration.
type formatOptions struct {
	maxLength      int
	splitLength    int
	preservePoetry bool
}

// formatReply renders a fetched passage into one or more outgoing message
// bodies. The last (usually only) part carries the " - <reference>" tail and
// the decorative suffix; bodies over maxLength are truncated with an
// indicator unless splitting is enabled. An oversized reference is itself
// trimmed, or dropped from the tail entirely, so no emitted part exceeds the
// configured limits.
func formatReply(text, reference string, opts formatOptions) []string {
	text = normalizeText(text, opts.preservePoetry)

	limit := opts.maxLength
	if opts.splitLength > 0 && (limit <= 0 || opts.splitLength < limit) {
		limit = opts.splitLength
	}
	if limit > 0 {
		reference = trimReference(reference, limit)
	}
	tail := replySuffixDecoration
	if reference != "" {
		tail = " - " + reference + replySuffixDecoration
	}

	// Splitting needs room for the tail plus at least one character of text
	// in the final chunk; otherwise fall through to single-message
	// truncation.
	if opts.splitLength > 0 && opts.splitLength > len(tail) && len(text)+len(tail) > opts.splitLength {
		chunkLimit := opts.splitLength
		if opts.maxLength > 0 && opts.maxLength < chunkLimit {
			chunkLimit = opts.maxLength
		}
		parts := splitText(text, chunkLimit)
		lastLimit := chunkLimit - len(tail)
		if lastLimit < 1 {
			lastLimit = 1
		}
		if last := parts[len(parts)-1]; len(last) > lastLimit {
			parts = append(parts[:len(parts)-1], splitText(last, lastLimit)...)
		}
		parts[len(parts)-1] += tail
		return parts
	}

	body := text + tail
	if opts.maxLength > 0 && len(body) > opts.maxLength {
		body = truncateWithTail(text, tail, opts.maxLength)
	}
	return []string{body}
}

// trimReference shortens a reference so that " - <reference>" plus the
// decoration, the truncation indicator and at least one character of text
// fit within max bytes. A reference that cannot fit even truncated is
// dropped (empty result), in which case the reply carries the decoration
// alone.
func trimReference(reference string, max int) string {
	if reference == "" {
		return ""
	}
	budget := max - len(replySuffixDecoration) - len(" - ") - len(truncationIndicator) - 1
	if budget <= 0 {
		return ""
	}
	if len(reference) <= budget {
		return reference
	}
	keep := budget - len(truncationIndicator)
	for keep > 0 && !isRuneStart(reference[keep]) {
		keep--
	}
	if keep <= 0 {
		return ""
	}
	return reference[:keep] + truncationIndicator
}

// htmlBody converts a plain reply body to its HTML rendering.
func htmlBody(body string) string {
	return strings.ReplaceAll(html.EscapeString(body), "\n", "<br/>")
}

// normalizeText collapses all whitespace runs to single spaces, unless
// poetry formatting is preserved, in which case line structure survives and
// only intra-line whitespace is collapsed.
func normalizeText(text string, preservePoetry bool) string {
	if !preservePoetry {
		return strings.Join(strings.Fields(text), " ")
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.Join(strings.Fields(line), " "))
	}
	// Drop leading and trailing blank lines but keep interior stanza breaks.
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

// truncateWithTail shortens text so that text + indicator + tail fits within
// max bytes, cutting on a rune boundary. When max is too small for any text
// at all, the tail alone is kept, itself hard-cut if it still exceeds max.
func truncateWithTail(text, tail string, max int) string {
	budget := max - len(tail) - len(truncationIndicator)
	if budget <= 0 {
		if len(tail) > max {
			cut := max
			for cut > 0 && !isRuneStart(tail[cut]) {
				cut--
			}
			return tail[:cut]
		}
		return tail
	}
	if budget >= len(text) {
		return text + tail
	}
	cut := budget
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return strings.TrimRight(text[:cut], " \n") + truncationIndicator + tail
}

// splitText breaks text into chunks of at most size bytes, preferring to
// break at whitespace.
func splitText(text string, size int) []string {
	if size <= 0 || len(text) <= size {
		return []string{text}
	}
	var parts []string
	for len(text) > size {
		cut := size
		if i := strings.LastIndexAny(text[:cut], " \n"); i > 0 {
			cut = i
		} else {
			for cut > 0 && !isRuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = size
			}
		}
		parts = append(parts, strings.TrimSpace(text[:cut]))
		text = strings.TrimLeft(text[cut:], " \n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
