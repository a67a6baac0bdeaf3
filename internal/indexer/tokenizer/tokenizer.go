// Package tokenizer normalizes music-library text for indexing and
// searching. It lower-cases input, strips diacritics via Unicode NFD
// decomposition, folds punctuation to whitespace, and splits the result
// into index-worthy terms with stop-words removed.
package tokenizer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// characterNormalizations overrides characters whose NFD decomposition does
// not produce the ASCII fold we want.
var characterNormalizations = map[rune]rune{
	'ø': 'o',
}

// Stop words are excluded from exact-term indexing and search. Single
// characters are always excluded, whether or not they appear here.
var stopWords = map[string]struct{}{
	"and": {}, "in": {}, "is": {}, "it": {},
	"my": {}, "of": {}, "the": {}, "to": {},
}

// IsStopWord reports whether term is un-indexable: a stop word or a single
// character.
func IsStopWord(term string) bool {
	if utf8.RuneCountInString(term) <= 1 {
		return true
	}
	_, ok := stopWords[term]
	return ok
}

// Matches interior periods, i.e. "L.A".
var collapseInteriorPeriodsRE = regexp.MustCompile(`(\S)\.(\S)`)

// Scrub normalizes a text string for use in indexing and searching.
//
// Interior periods are collapsed ("L.A." becomes "LA "), letters and digits
// are lower-cased and reduced to their NFD base character, apostrophes are
// dropped so "foo's" becomes "foos", and all other characters are replaced
// by a single space. Whitespace runs are preserved; splitting happens in
// Explode.
func Scrub(text string) string {
	text = collapseInteriorPeriodsRE.ReplaceAllString(text, "$1$2")
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		b.WriteString(scrubRune(r))
	}
	return b.String()
}

func scrubRune(r rune) string {
	r = unicode.ToLower(r)
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		decomposed, _ := utf8.DecodeRuneInString(norm.NFD.String(string(r)))
		if folded, ok := characterNormalizations[decomposed]; ok {
			decomposed = folded
		}
		return string(decomposed)
	}
	if r == '\'' {
		// Apostrophes vanish so "foo's" indexes as "foos".
		return ""
	}
	return " "
}

// Explode splits a piece of text into a normalized list of terms. Stop
// words and single characters are stripped out, along with any other
// un-indexable content.
func Explode(text string) []string {
	var terms []string
	for _, term := range strings.Fields(Scrub(text)) {
		if IsStopWord(term) {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

var tagRE = regexp.MustCompile(`\[[^\]]+\]`)

// StripTags removes all tags from a string. A tag is a chunk of text
// enclosed in square brackets, [like this]; library imports attach them to
// album and track titles.
func StripTags(text string) string {
	return tagRE.ReplaceAllString(text, "")
}
