// Package basic implements a simple whitespace+punctuation tokenizer,
// independent of any sub-word vocabulary.
//
// It is used by the answer-reconstruction alignment (which must re-tokenize
// raw document substrings the same way regardless of which sub-word model
// produced the prediction) and as the pre-tokenization step of the wordpiece
// tokenizer.
package basic

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Tokenizer splits text on whitespace and punctuation, optionally
// lower-casing and stripping accents first.
type Tokenizer struct {
	// LowerCase lower-cases tokens and strips accent marks (NFD
	// decomposition followed by removal of nonspacing marks).
	LowerCase bool
}

// New returns a basic tokenizer.
func New(lowerCase bool) *Tokenizer {
	return &Tokenizer{LowerCase: lowerCase}
}

// Tokenize splits text into tokens: control characters are removed,
// whitespace runs separate tokens and each punctuation rune becomes its own
// token.
func (t *Tokenizer) Tokenize(text string) []string {
	var tokens []string
	for _, word := range strings.Fields(CleanText(text)) {
		if t.LowerCase {
			word = RemoveAccents(norm.NFD.String(strings.ToLower(word)))
		}
		tokens = append(tokens, SplitPunctuation(word)...)
	}
	return tokens
}

// CleanText drops control characters and the replacement character, and maps
// all whitespace runes to plain spaces.
func CleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == 0 || r == 0xFFFD || IsControl(r) {
			continue
		}
		if IsWhitespace(r) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SplitPunctuation splits a single word into runs of non-punctuation runes
// and single-rune punctuation tokens.
func SplitPunctuation(word string) []string {
	var tokens []string
	var current strings.Builder
	for _, r := range word {
		if IsPunctuation(r) {
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			tokens = append(tokens, string(r))
		} else {
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

// RemoveAccents removes nonspacing marks (Unicode category Mn). The input is
// expected to already be NFD-decomposed.
func RemoveAccents(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if !unicode.Is(unicode.Mn, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsWhitespace reports whether r separates tokens.
func IsWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

// IsControl reports whether r is a control character. Tab, newline and
// carriage return count as whitespace, not control.
func IsControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}

// IsPunctuation reports whether r is punctuation. All non-letter/number
// ASCII is treated as punctuation, matching BERT's basic tokenizer.
func IsPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
