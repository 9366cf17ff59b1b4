// Package similarity scores how alike two short transcripts are.
//
// WordOverlap compares token sets and is used against notes emitted earlier
// in the session. EditSimilarity compares characters and is used against the
// notes currently shown to the user. Both are case-insensitive, trim
// surrounding whitespace, return 1 for identical non-empty strings and 0 when
// either side is empty.
package similarity

import (
	"strings"
	"unicode"
)

// Duplicate thresholds. They differ on purpose; see DESIGN.md.
const (
	WordOverlapThreshold = 0.85 // duplicate if strictly greater
	EditThreshold        = 0.8  // duplicate if greater or equal
)

// stopWords are ignored by WordOverlap unless nothing else is left.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "to": true, "of": true, "in": true, "on": true,
	"at": true, "and": true, "or": true, "it": true, "this": true, "that": true,
	"for": true, "with": true, "as": true, "by": true,
}

// WordOverlap returns |A∩B| / max(|A|,|B|) over the content-word sets of a and b.
func WordOverlap(a, b string) float64 {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	setA, setB := tokenSet(a), tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	shared := 0
	for tok := range setA {
		if setB[tok] {
			shared++
		}
	}
	return float64(shared) / float64(max(len(setA), len(setB)))
}

// IsWordDuplicate reports whether WordOverlap exceeds WordOverlapThreshold.
func IsWordDuplicate(a, b string) bool {
	return WordOverlap(a, b) > WordOverlapThreshold
}

// EditSimilarity returns 1 - levenshtein(a,b)/max(len(a),len(b)) over runes.
func EditSimilarity(a, b string) float64 {
	ra := []rune(strings.ToLower(strings.TrimSpace(a)))
	rb := []rune(strings.ToLower(strings.TrimSpace(b)))
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	longest := max(len(ra), len(rb))
	return 1 - float64(Levenshtein(ra, rb))/float64(longest)
}

// IsEditDuplicate reports whether EditSimilarity reaches EditThreshold.
func IsEditDuplicate(a, b string) bool {
	return EditSimilarity(a, b) >= EditThreshold
}

// Levenshtein is the classic insert/delete/substitute edit distance.
func Levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// tokenSet splits lowercase text into punctuation-free tokens without stop words.
func tokenSet(text string) map[string]bool {
	all := make(map[string]bool)
	content := make(map[string]bool)
	for _, field := range strings.Fields(text) {
		tok := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if tok == "" {
			continue
		}
		all[tok] = true
		if !stopWords[tok] {
			content[tok] = true
		}
	}
	if len(content) == 0 {
		return all
	}
	return content
}
