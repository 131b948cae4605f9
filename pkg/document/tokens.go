package document

import (
	"strings"
	"unicode"
	"unicode/utf16"
)

// Tokenize builds the N-gram token set for the given texts: every 1- and
// 2-rune contiguous substring of each cleaned input, merged into one map.
// Returns nil when no tokens were produced.
//
// Cleaning drops whitespace, the literal characters ~ * [ ], and every
// codepoint that would need a surrogate pair in UTF-16 (pictographs and the
// like), since the store's query layer cannot index those reliably. 1- and
// 2-rune grams keep index fan-out bounded while still matching single-rune
// CJK queries.
func Tokenize(texts ...string) map[string]bool {
	tokens := make(map[string]bool)
	for _, text := range texts {
		runes := cleanRunes(text)
		for i := range runes {
			tokens[string(runes[i:i+1])] = true
			if i+2 <= len(runes) {
				tokens[string(runes[i:i+2])] = true
			}
		}
	}
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

func cleanRunes(text string) []rune {
	runes := make([]rune, 0, len(text))
	for _, r := range text {
		if r > 0xFFFF || utf16.IsSurrogate(r) {
			continue
		}
		if unicode.IsSpace(r) || strings.ContainsRune("~*[]", r) {
			continue
		}
		runes = append(runes, r)
	}
	return runes
}

// TokenMap derives the search token map from the definition's token fields,
// using each field's current value when it is a non-empty string. It is
// recomputed on every call and never stored with the ordinary fields.
func (d *Document) TokenMap() map[string]bool {
	if len(d.def.TokenFields) == 0 {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	texts := make([]string, 0, len(d.def.TokenFields))
	for _, name := range d.def.TokenFields {
		if s, ok := d.fields[name].(string); ok && s != "" {
			texts = append(texts, s)
		}
	}
	return Tokenize(texts...)
}
