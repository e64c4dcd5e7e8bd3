package core

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Normalize returns the comparison key for a name: symbols and emoji are
// removed, then the result is trimmed and lower-cased. "💰 Cash" and "cash"
// share a key. Letters keep their diacritics, so "Café" and "Cafe" differ.
//
// The key is only meant for equality checks; stored names keep their
// original spelling.
func Normalize(s string) string {
	out, _, err := transform.String(runes.Remove(runes.Predicate(isIgnorable)), s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// emojiModifiers are the non-symbol runes emoji sequences are built from:
// the zero width joiner and the variation selectors.
var emojiModifiers = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x200d, Hi: 0x200d, Stride: 1},
		{Lo: 0xfe00, Hi: 0xfe0f, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0xe0100, Hi: 0xe01ef, Stride: 1},
	},
}

// isIgnorable reports runes that never take part in name comparison:
// symbols (which covers emoji), enclosing marks such as the keycap, and
// emoji modifiers.
func isIgnorable(r rune) bool {
	return unicode.In(r, unicode.S, unicode.Me, emojiModifiers)
}
