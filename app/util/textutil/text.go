// Package textutil holds the word-level helpers shared by the query classifiers.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var wordRegex = regexp.MustCompile(`[\p{L}\p{N}_']+`)

// Words returns the word tokens of s in order, apostrophes kept.
func Words(s string) []string {
	raw := wordRegex.FindAllString(s, -1)

	words := raw[:0]
	for _, w := range raw {
		w = strings.Trim(w, "'")
		if w != "" {
			words = append(words, w)
		}
	}

	return words
}

// LowerWords is Words on the lowercased input.
func LowerWords(s string) []string {
	return Words(strings.ToLower(s))
}

// Set builds a lookup table from a word list.
func Set(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// ContainsAny reports whether any of words is in set.
func ContainsAny(set map[string]struct{}, words []string) bool {
	for _, w := range words {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// Matching returns the words present in set, in order of appearance.
func Matching(set map[string]struct{}, words []string) []string {
	var out []string
	for _, w := range words {
		if _, ok := set[w]; ok {
			out = append(out, w)
		}
	}
	return out
}

// IsCapitalized reports whether w starts with an upper case letter.
func IsCapitalized(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}

// Jaccard is the token set similarity of a and b.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	setA := Set(a...)
	setB := Set(b...)

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// Stopwords are function words that never count as content or candidates.
var Stopwords = Set(
	"the", "a", "an", "and", "or", "but", "if", "then", "so", "of", "to", "in", "on", "at",
	"for", "with", "by", "from", "about", "as", "into", "over", "after", "before", "than",
	"is", "are", "was", "were", "be", "been", "being", "do", "does", "did", "have", "has", "had",
	"i", "you", "we", "me", "my", "your", "our", "us", "it", "its", "they", "them", "their",
	"this", "that", "these", "those", "he", "she", "his", "her", "there", "here",
	"what", "which", "who", "whom", "whose", "when", "where", "why", "how",
	"can", "could", "should", "would", "will", "shall", "may", "might", "must",
	"not", "no", "yes", "also", "just", "very", "more", "most", "some", "any", "all",
	"tell", "explain", "please", "thanks", "thank", "like", "want", "need", "know",
)
