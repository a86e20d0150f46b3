package spelling

import (
	"strings"
	"unicode"
)

// Correction records one applied rewrite.
type Correction struct {
	Rule string `json:"rule"`
	From string `json:"from"`
	To   string `json:"to"`
}

type Result struct {
	Text        string       `json:"text"`
	Corrected   bool         `json:"corrected"`
	Corrections []Correction `json:"corrections,omitempty"`
}

type rule struct {
	name  string
	apply func(tokens []string) ([]string, []Correction)
}

// Normalizer fixes repeated words and a fixed list of common typos.
// It is pure and never calls a model.
type Normalizer struct {
	rules []rule
}

func New() *Normalizer {
	return &Normalizer{
		rules: []rule{
			{name: "repeated_word", apply: collapseRepeats},
			{name: "typo", apply: fixTypos},
		},
	}
}

func (n *Normalizer) Check(text string) Result {
	tokens := strings.Fields(text)

	var corrections []Correction
	for _, r := range n.rules {
		var applied []Correction
		tokens, applied = r.apply(tokens)
		for _, c := range applied {
			c.Rule = r.name
			corrections = append(corrections, c)
		}
	}

	if len(corrections) == 0 {
		return Result{Text: text}
	}

	return Result{
		Text:        strings.Join(tokens, " "),
		Corrected:   true,
		Corrections: corrections,
	}
}

func collapseRepeats(tokens []string) ([]string, []Correction) {
	out := make([]string, 0, len(tokens))
	var corrections []Correction

	for _, tok := range tokens {
		if n := len(out); n > 0 {
			prev := out[n-1]
			word, suffix := splitTrailing(tok)
			if isWord(prev) && isWord(word) && strings.EqualFold(prev, word) {
				out[n-1] = prev + suffix
				corrections = append(corrections, Correction{From: prev + " " + tok, To: prev + suffix})
				continue
			}
		}
		out = append(out, tok)
	}

	return out, corrections
}

func fixTypos(tokens []string) ([]string, []Correction) {
	out := make([]string, len(tokens))
	var corrections []Correction

	for i, tok := range tokens {
		out[i] = tok

		word, suffix := splitTrailing(tok)
		lower := strings.ToLower(word)

		if _, ok := domainTerms[lower]; ok {
			continue
		}

		fixed, ok := typos[lower]
		if !ok {
			continue
		}

		if first := []rune(word); len(first) > 0 && unicode.IsUpper(first[0]) {
			fixed = capitalize(fixed)
		}

		out[i] = fixed + suffix
		corrections = append(corrections, Correction{From: tok, To: out[i]})
	}

	return out, corrections
}

func splitTrailing(tok string) (string, string) {
	end := strings.TrimRightFunc(tok, unicode.IsPunct)
	return end, tok[len(end):]
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

func capitalize(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
