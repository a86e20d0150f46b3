package refiner

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"querymind/app/client/llm"
	"querymind/app/util/textutil"

	"github.com/elliotchance/pie/v2"
)

const (
	cacheSize      = 3
	maxCandidates  = 10
	promptEntities = 5
	minEntityLen   = 3

	llmTemperature = 0.3
	llmMaxTokens   = 20
)

var (
	pronouns    = textutil.Set("it", "they", "them", "this", "that", "he", "she")
	entityRegex = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]*\b`)
	notEntities = textutil.Set(
		"I", "The", "This", "That", "What", "Which", "How", "Are", "Is", "So", "We", "You",
		"They", "Can", "Should", "Would", "Could", "Do", "Did", "Have", "Has", "Will", "A", "Or",
	)
)

type Result struct {
	Query      string   `json:"query"`
	Refined    bool     `json:"refined"`
	Pronouns   []string `json:"pronouns,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
	UsedLLM    bool     `json:"used_llm"`
}

// Refiner rewrites pronouns into entities seen in the last few queries of
// the same session. Each session keeps its own bounded query cache.
type Refiner struct {
	client  llm.Client
	timeout time.Duration

	mu     sync.Mutex
	recent map[string][]string
}

func New(client llm.Client, timeout time.Duration) *Refiner {
	return &Refiner{
		client:  client,
		timeout: timeout,
		recent:  make(map[string][]string),
	}
}

// Remember adds query to the session cache, evicting the oldest entry when full.
func (r *Refiner) Remember(sessionID, query string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	queries := append(r.recent[sessionID], query)
	if len(queries) > cacheSize {
		queries = queries[len(queries)-cacheSize:]
	}
	r.recent[sessionID] = queries
}

func (r *Refiner) Forget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.recent, sessionID)
}

func (r *Refiner) Recent(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string{}, r.recent[sessionID]...)
}

// Refine always caches the query first. It returns the query unchanged unless
// it has a pronoun, the cache holds candidate entities and the model rewrote it.
func (r *Refiner) Refine(ctx context.Context, sessionID, query string) Result {
	r.Remember(sessionID, query)

	result := Result{Query: query}

	result.Pronouns = DetectPronouns(query)
	if len(result.Pronouns) == 0 {
		return result
	}

	result.Candidates = Candidates(r.Recent(sessionID))
	if len(result.Candidates) == 0 {
		return result
	}

	result.UsedLLM = true

	refined, err := r.rewrite(ctx, query, result.Pronouns, result.Candidates)
	if err != nil {
		slog.Warn("Query refinement failed",
			"session_id", sessionID,
			"error", err,
		)
		return result
	}
	if refined == "" || refined == query {
		return result
	}

	result.Query = refined
	result.Refined = true

	return result
}

func (r *Refiner) rewrite(ctx context.Context, query string, found, candidates []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	prompt := fmt.Sprintf("Rewrite this query by replacing the pronouns [%s] with one of these entities [%s]:\n\n"+
		"Query: %s\n\nRewritten query (keep it concise):",
		strings.Join(found, ", "),
		strings.Join(pie.Top(candidates, promptEntities), ", "),
		query,
	)

	text, err := r.client.Generate(ctx, llm.Request{
		Prompt:      prompt,
		Temperature: llmTemperature,
		MaxTokens:   llmMaxTokens,
		Lightweight: true,
	})
	if err != nil {
		return "", fmt.Errorf("client.Generate: %w", err)
	}

	return cleanRewrite(text), nil
}

func cleanRewrite(text string) string {
	text = strings.TrimSpace(text)
	if line, _, ok := strings.Cut(text, "\n"); ok {
		text = strings.TrimSpace(line)
	}
	text = strings.TrimSpace(strings.TrimPrefix(text, "Rewritten query:"))
	text = strings.TrimSpace(strings.TrimPrefix(text, "Query:"))
	return strings.Trim(text, `"'`)
}

// DetectPronouns returns the distinct pronouns of query in order of appearance.
func DetectPronouns(query string) []string {
	var found []string
	for _, w := range textutil.Matching(pronouns, textutil.LowerWords(query)) {
		if !pie.Contains(found, w) {
			found = append(found, w)
		}
	}
	return found
}

// Candidates extracts capitalized entities from cached queries, oldest first.
func Candidates(queries []string) []string {
	var entities []string
	for _, q := range queries {
		for _, w := range entityRegex.FindAllString(q, -1) {
			if len(w) < minEntityLen {
				continue
			}
			if _, bad := notEntities[w]; bad {
				continue
			}
			if !pie.Contains(entities, w) {
				entities = append(entities, w)
			}
		}
	}
	return pie.Top(entities, maxCandidates)
}
