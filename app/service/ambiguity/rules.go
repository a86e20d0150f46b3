package ambiguity

import (
	"fmt"
	"regexp"
	"strings"

	"querymind/app/service/session"
	"querymind/app/util/textutil"

	"github.com/elliotchance/pie/v2"
)

const (
	CategoryReference = "unresolved_reference"
	CategoryMalformed = "malformed_question"
	CategoryIntent    = "unclear_intent"
)

const contextWindow = 3

var (
	pronouns   = textutil.Set("it", "they", "this", "that", "he", "she", "them", "these", "those")
	anaphors   = textutil.Set("same", "similar", "such", "previous", "aforementioned")
	whWords    = textutil.Set("what", "which", "who", "whom", "whose", "when", "where", "why", "how")
	verbs      = textutil.Set("is", "are", "was", "were", "am", "can", "could", "would", "should", "do", "does", "did", "have", "has", "will", "shall", "may", "might", "must", "be", "been", "being")
	imperative = textutil.Set("show", "tell", "give", "explain", "find", "search", "list", "get", "help", "fix", "improve", "build", "create", "describe", "compare", "summarize", "write")

	whichOneRegex = regexp.MustCompile(`\bwhich\b(?:\s+\w+){0,5}?\s+ones?\b`)
	chooseRegex   = regexp.MustCompile(`^\s*(?:what|which)\b.*\b(?:choose|pick|select)\b(?:\s+(\w+))?\s*\?*\s*$`)
)

var irregularNegations = map[string]string{
	"can't":  "can",
	"won't":  "will",
	"shan't": "shall",
}

var contractions = map[string]string{
	"s":  "is",
	"re": "are",
	"m":  "am",
	"ll": "will",
	"ve": "have",
	"d":  "would",
}

// Signal is one rule hit.
type Signal struct {
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

type features struct {
	query       string
	lower       string
	tokenCount  int
	words       []string
	hasWH       bool
	hasVerb     bool
	context     []session.Message
	contextText string
	candidates  []string
}

type signalRule struct {
	category string
	detect   func(f *features) (string, bool)
}

var rules = []signalRule{
	{category: CategoryReference, detect: unresolvedPronoun},
	{category: CategoryReference, detect: danglingAnaphor},
	{category: CategoryReference, detect: whichOne},
	{category: CategoryMalformed, detect: tooShort},
	{category: CategoryMalformed, detect: whWithoutVerb},
	{category: CategoryMalformed, detect: chooseWithoutObject},
	{category: CategoryIntent, detect: declarative},
}

func extract(query string, history []session.Message) *features {
	lower := strings.ToLower(strings.TrimSpace(query))
	words := expandContractions(textutil.Words(lower))

	context := history
	if len(context) > contextWindow {
		context = context[len(context)-contextWindow:]
	}

	contextText := strings.ToLower(strings.Join(
		pie.Map(context, func(m session.Message) string { return m.Content }), " "))

	var candidates []string
	seen := map[string]struct{}{}
	for _, w := range textutil.Words(contextText) {
		if len(w) <= 3 {
			continue
		}
		if _, stop := textutil.Stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		candidates = append(candidates, w)
	}

	return &features{
		query:       query,
		lower:       lower,
		tokenCount:  len(strings.Fields(query)),
		words:       words,
		hasWH:       textutil.ContainsAny(whWords, words),
		hasVerb:     textutil.ContainsAny(verbs, words),
		context:     context,
		contextText: contextText,
		candidates:  candidates,
	}
}

// expandContractions splits "what's" into "what is" so WH and verb checks see both.
func expandContractions(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if base, ok := irregularNegations[w]; ok {
			out = append(out, base, "not")
			continue
		}
		if base, ok := strings.CutSuffix(w, "n't"); ok {
			out = append(out, base, "not")
			continue
		}
		if i := strings.LastIndexByte(w, '\''); i > 0 {
			if full, ok := contractions[w[i+1:]]; ok {
				out = append(out, w[:i], full)
				continue
			}
		}
		out = append(out, w)
	}
	return out
}

func unresolvedPronoun(f *features) (string, bool) {
	found := textutil.Matching(pronouns, f.words)
	if len(found) == 0 {
		return "", false
	}

	switch {
	case len(f.context) == 0:
		return fmt.Sprintf("Unclear reference: %q has no prior context", found[0]), true
	case len(f.candidates) == 0:
		return fmt.Sprintf("Unclear reference: %q has no clear antecedent", found[0]), true
	case len(f.candidates) == 1:
		return "", false
	default:
		return fmt.Sprintf("Unclear reference: %q could refer to several things (%s)",
			found[0], strings.Join(pie.Top(f.candidates, 3), ", ")), true
	}
}

func danglingAnaphor(f *features) (string, bool) {
	for i, w := range f.words {
		if _, ok := anaphors[w]; !ok || i+1 >= len(f.words) {
			continue
		}

		noun := f.words[i+1]
		if !strings.Contains(f.contextText, noun) {
			return fmt.Sprintf("Unclear reference: %q points to something not mentioned before", w+" "+noun), true
		}
	}
	return "", false
}

func whichOne(f *features) (string, bool) {
	if !whichOneRegex.MatchString(f.lower) {
		return "", false
	}
	if len(f.context) == 0 || len(f.candidates) == 0 {
		return "Unclear reference: 'which one' without anything to choose from", true
	}
	return "Choice underspecified: 'which one' without selection criteria", true
}

func tooShort(f *features) (string, bool) {
	if f.tokenCount < 4 && !f.hasWH && !f.hasVerb {
		return "Unclear question: too short, with no verb or question word", true
	}
	return "", false
}

func whWithoutVerb(f *features) (string, bool) {
	if f.hasWH && !f.hasVerb && f.tokenCount < 5 {
		return "Incomplete question: question word without a complete clause", true
	}
	return "", false
}

func chooseWithoutObject(f *features) (string, bool) {
	m := chooseRegex.FindStringSubmatch(f.lower)
	if m == nil || m[1] != "" {
		return "", false
	}
	return "Unclear question: nothing named to choose from", true
}

func declarative(f *features) (string, bool) {
	isQuestion := strings.HasSuffix(strings.TrimSpace(f.query), "?") || f.hasWH
	isImperative := len(f.words) > 0 && textutil.ContainsAny(imperative, f.words[:1])

	if isQuestion || isImperative || f.tokenCount <= 5 {
		return "", false
	}
	if strings.ContainsAny(f.query, "?!") {
		return "", false
	}
	return "Unclear intent: statement without a question or request", true
}

func evaluate(f *features) []Signal {
	var signals []Signal
	for _, r := range rules {
		if reason, ok := r.detect(f); ok {
			signals = append(signals, Signal{Category: r.category, Reason: reason})
		}
	}
	return signals
}
