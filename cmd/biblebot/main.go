// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command biblebot is a Matrix bot that answers scripture references in the
// rooms it is configured for. A message like "John 3:16" or "!bible Psalm 23
// esv" gets an acknowledgement reaction and a reply with the passage text.
package main

func main() {
	Execute()
}
