// Package bm25 implements the lexical index spec §4.7 requires:
// tokenize/stem → inverted postings → BM25(k1=1.2, b=0.75) scoring → a
// stable per-base binary persistence format.
package bm25

import (
	"strings"
	"unicode"

	"github.com/surgebase/porter2"
)

// stopWords is the fixed stop-word set spec §4.7 calls for. Kept small and
// deliberate rather than importing a large generic list, matching the
// teacher's own semantic/stemmer.go approach of an explicit, inspectable
// set.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "if": true, "in": true,
	"into": true, "is": true, "it": true, "no": true, "not": true, "of": true,
	"on": true, "or": true, "such": true, "that": true, "the": true,
	"their": true, "then": true, "there": true, "these": true, "they": true,
	"this": true, "to": true, "was": true, "will": true, "with": true,
}

// Tokenize lowercases, splits on non-alphanumeric runs, discards tokens
// shorter than 2 characters, stems with Porter2 (mirroring the teacher's
// semantic.Stemmer, which wraps the same github.com/surgebase/porter2),
// and discards stop words — spec §4.7's vocabulary rule exactly.
func Tokenize(text string) []string {
	var tokens []string
	var sb strings.Builder
	flush := func() {
		if sb.Len() == 0 {
			return
		}
		tok := strings.ToLower(sb.String())
		sb.Reset()
		if len(tok) < 2 {
			return
		}
		stemmed := porter2.Stem(tok)
		if stopWords[stemmed] {
			return
		}
		tokens = append(tokens, stemmed)
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}
