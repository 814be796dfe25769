// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bible

import "strings"

// canonicalBooks lists the 66 books in canonical order. The alias table is
// built from this list plus bookAliases at init time.
var canonicalBooks = []string{
	"Genesis", "Exodus", "Leviticus", "Numbers", "Deuteronomy",
	"Joshua", "Judges", "Ruth", "1 Samuel", "2 Samuel",
	"1 Kings", "2 Kings", "1 Chronicles", "2 Chronicles",
	"Ezra", "Nehemiah", "Esther", "Job", "Psalms", "Proverbs",
	"Ecclesiastes", "Song of Solomon", "Isaiah", "Jeremiah",
	"Lamentations", "Ezekiel", "Daniel", "Hosea", "Joel", "Amos",
	"Obadiah", "Jonah", "Micah", "Nahum", "Habakkuk", "Zephaniah",
	"Haggai", "Zechariah", "Malachi",
	"Matthew", "Mark", "Luke", "John", "Acts", "Romans",
	"1 Corinthians", "2 Corinthians", "Galatians", "Ephesians",
	"Philippians", "Colossians", "1 Thessalonians", "2 Thessalonians",
	"1 Timothy", "2 Timothy", "Titus", "Philemon", "Hebrews", "James",
	"1 Peter", "2 Peter", "1 John", "2 John", "3 John", "Jude",
	"Revelation",
}

// bookAliases maps cleaned abbreviations and alternate names to canonical
// book names. Keys are lowercased with dots removed and whitespace collapsed.
var bookAliases = map[string]string{
	"gen": "Genesis", "ge": "Genesis", "gn": "Genesis",
	"ex": "Exodus", "exod": "Exodus", "exo": "Exodus",
	"lev": "Leviticus", "lv": "Leviticus",
	"num": "Numbers", "nm": "Numbers", "nu": "Numbers",
	"deut": "Deuteronomy", "dt": "Deuteronomy",
	"josh": "Joshua", "jos": "Joshua",
	"judg": "Judges", "jdg": "Judges", "jg": "Judges",
	"ru": "Ruth", "rth": "Ruth",
	"1 sam": "1 Samuel", "1sam": "1 Samuel", "1 sa": "1 Samuel", "1sa": "1 Samuel",
	"2 sam": "2 Samuel", "2sam": "2 Samuel", "2 sa": "2 Samuel", "2sa": "2 Samuel",
	"1 kgs": "1 Kings", "1kgs": "1 Kings", "1 ki": "1 Kings", "1ki": "1 Kings",
	"2 kgs": "2 Kings", "2kgs": "2 Kings", "2 ki": "2 Kings", "2ki": "2 Kings",
	"1 chron": "1 Chronicles", "1 chr": "1 Chronicles", "1chr": "1 Chronicles", "1 ch": "1 Chronicles",
	"2 chron": "2 Chronicles", "2 chr": "2 Chronicles", "2chr": "2 Chronicles", "2 ch": "2 Chronicles",
	"ezr": "Ezra",
	"neh": "Nehemiah", "ne": "Nehemiah",
	"esth": "Esther", "est": "Esther",
	"jb": "Job",
	"ps": "Psalms", "psa": "Psalms", "psalm": "Psalms", "pss": "Psalms",
	"prov": "Proverbs", "pr": "Proverbs", "prv": "Proverbs",
	"eccl": "Ecclesiastes", "ecc": "Ecclesiastes", "qoheleth": "Ecclesiastes",
	"song": "Song of Solomon", "song of songs": "Song of Solomon",
	"song of sol": "Song of Solomon", "sos": "Song of Solomon", "canticles": "Song of Solomon",
	"isa": "Isaiah", "is": "Isaiah",
	"jer": "Jeremiah", "je": "Jeremiah",
	"lam": "Lamentations", "la": "Lamentations",
	"ezek": "Ezekiel", "eze": "Ezekiel", "ezk": "Ezekiel",
	"dan": "Daniel", "da": "Daniel", "dn": "Daniel",
	"hos": "Hosea", "ho": "Hosea",
	"jl": "Joel",
	"am": "Amos",
	"obad": "Obadiah", "ob": "Obadiah",
	"jon": "Jonah", "jnh": "Jonah",
	"mic": "Micah", "mc": "Micah",
	"nah": "Nahum", "na": "Nahum",
	"hab": "Habakkuk", "hb": "Habakkuk",
	"zeph": "Zephaniah", "zep": "Zephaniah", "zp": "Zephaniah",
	"hag": "Haggai", "hg": "Haggai",
	"zech": "Zechariah", "zec": "Zechariah", "zc": "Zechariah",
	"mal": "Malachi", "ml": "Malachi",
	"matt": "Matthew", "mt": "Matthew",
	"mk": "Mark", "mrk": "Mark",
	"lk": "Luke", "luk": "Luke",
	"jn": "John", "jhn": "John",
	"ac": "Acts", "act": "Acts",
	"rom": "Romans", "ro": "Romans", "rm": "Romans",
	"1 cor": "1 Corinthians", "1cor": "1 Corinthians", "1 co": "1 Corinthians", "1co": "1 Corinthians",
	"2 cor": "2 Corinthians", "2cor": "2 Corinthians", "2 co": "2 Corinthians", "2co": "2 Corinthians",
	"gal": "Galatians", "ga": "Galatians",
	"eph": "Ephesians",
	"phil": "Philippians", "php": "Philippians",
	"col": "Colossians",
	"1 thess": "1 Thessalonians", "1 thes": "1 Thessalonians", "1thess": "1 Thessalonians", "1 th": "1 Thessalonians", "1th": "1 Thessalonians",
	"2 thess": "2 Thessalonians", "2 thes": "2 Thessalonians", "2thess": "2 Thessalonians", "2 th": "2 Thessalonians", "2th": "2 Thessalonians",
	"1 tim": "1 Timothy", "1tim": "1 Timothy", "1 ti": "1 Timothy", "1ti": "1 Timothy",
	"2 tim": "2 Timothy", "2tim": "2 Timothy", "2 ti": "2 Timothy", "2ti": "2 Timothy",
	"tit": "Titus", "ti": "Titus",
	"philem": "Philemon", "phm": "Philemon",
	"heb": "Hebrews",
	"jas": "James", "jm": "James",
	"1 pet": "1 Peter", "1pet": "1 Peter", "1 pe": "1 Peter", "1pe": "1 Peter", "1pt": "1 Peter",
	"2 pet": "2 Peter", "2pet": "2 Peter", "2 pe": "2 Peter", "2pe": "2 Peter", "2pt": "2 Peter",
	"1 jn": "1 John", "1jn": "1 John", "1 jo": "1 John", "1 john": "1 John", "1john": "1 John",
	"2 jn": "2 John", "2jn": "2 John", "2 jo": "2 John", "2 john": "2 John", "2john": "2 John",
	"3 jn": "3 John", "3jn": "3 John", "3 jo": "3 John", "3 john": "3 John", "3john": "3 John",
	"jud": "Jude",
	"rev": "Revelation", "re": "Revelation", "apocalypse": "Revelation",
}

// bookLookup holds every accepted spelling (aliases plus the full canonical
// names) mapped to the canonical name.
var bookLookup = func() map[string]string {
	lookup := make(map[string]string, len(bookAliases)+len(canonicalBooks))
	for alias, name := range bookAliases {
		lookup[alias] = name
	}
	for _, name := range canonicalBooks {
		lookup[strings.ToLower(name)] = name
	}
	return lookup
}()

// cleanBookName lowercases the input, strips dots so "Gen." matches "gen",
// and collapses internal whitespace.
func cleanBookName(name string) string {
	name = strings.ReplaceAll(strings.ToLower(name), ".", "")
	return strings.Join(strings.Fields(name), " ")
}

// NormalizeBook maps a raw book name or abbreviation to its canonical form.
// Unknown names are deliberately not rejected: the bot echoes a title-cased
// version of the input and lets the provider decide whether the book exists.
// This keeps the resolver lenient toward spellings missing from the alias
// table while still producing a well-formed reference.
func NormalizeBook(name string) string {
	clean := cleanBookName(name)
	if canonical, ok := bookLookup[clean]; ok {
		return canonical
	}
	return titleCase(clean)
}

// KnownBook reports whether the name maps to an entry in the alias table.
func KnownBook(name string) bool {
	_, ok := bookLookup[cleanBookName(name)]
	return ok
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		r := []rune(word)
		if len(r) > 0 {
			words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
		}
	}
	return strings.Join(words, " ")
}
