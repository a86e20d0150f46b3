package answerability

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"querymind/app/client/embedding"
	"querymind/app/service/session"
	"querymind/app/util/textutil"

	"github.com/elliotchance/pie/v2"
)

const (
	similarityThreshold = 0.75
	weakMatchThreshold  = 0.5
	baseConfidence      = 0.9
	weakMatchConfidence = 0.75
	maxSimilarMatches   = 3

	reasonAmbiguous  = "Query is ambiguous - cannot answer without clarification"
	reasonAnswerable = "Query appears answerable based on clarity and context"
)

type Input struct {
	Query        string
	Ambiguous    bool
	PriorQueries []string
	Summary      *session.Summary
}

type Verdict struct {
	IsAnswerable        bool     `json:"is_answerable"`
	Reason              string   `json:"reason"`
	Confidence          float64  `json:"confidence"`
	SimilarPriorQueries []string `json:"similar_prior_queries,omitempty"`
	RelatedFacts        []string `json:"related_facts,omitempty"`
}

type scored struct {
	query string
	score float64
}

// Gate decides whether a query can be answered directly. It never calls a
// generation model; an optional embedder only sharpens prior query similarity.
type Gate struct {
	embedder embedding.Embedder
	timeout  time.Duration
}

type Option func(*Gate)

func WithEmbedder(embedder embedding.Embedder, timeout time.Duration) Option {
	return func(g *Gate) {
		g.embedder = embedder
		g.timeout = timeout
	}
}

func New(opts ...Option) *Gate {
	g := &Gate{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) Check(ctx context.Context, in Input) Verdict {
	if in.Ambiguous {
		return Verdict{
			IsAnswerable: false,
			Reason:       reasonAmbiguous,
			Confidence:   0,
		}
	}

	verdict := Verdict{
		IsAnswerable: true,
		Reason:       reasonAnswerable,
		Confidence:   baseConfidence,
	}

	if matches := g.similar(ctx, in.Query, in.PriorQueries); len(matches) > 0 {
		var strong []scored
		for _, m := range matches {
			if m.score > similarityThreshold {
				strong = append(strong, m)
			}
		}

		switch {
		case len(strong) > 0:
			verdict.Confidence = math.Min(0.95, 0.7+0.1*float64(len(strong)))
			verdict.Reason = fmt.Sprintf("Similar to %d previously answered queries", len(strong))
			verdict.SimilarPriorQueries = pie.Map(pie.Top(strong, maxSimilarMatches), func(m scored) string {
				return m.query
			})
		case matches[0].score > weakMatchThreshold:
			verdict.Confidence = weakMatchConfidence
			verdict.Reason = fmt.Sprintf("Partially similar to a previous query (similarity %.2f)", matches[0].score)
		}
	}

	if facts := relatedFacts(in.Query, in.Summary); len(facts) > 0 {
		verdict.Confidence = math.Min(1.0, verdict.Confidence+0.1)
		verdict.Reason = fmt.Sprintf("%s; found %d related session facts", verdict.Reason, len(facts))
		verdict.RelatedFacts = facts
	}

	return verdict
}

// similar returns prior queries sorted by descending similarity.
func (g *Gate) similar(ctx context.Context, query string, prior []string) []scored {
	if len(prior) == 0 {
		return nil
	}

	var matches []scored

	if g.embedder != nil {
		var err error
		if matches, err = g.embeddingScores(ctx, query, prior); err != nil {
			slog.Warn("Embedding similarity failed, using token overlap", "error", err)
			matches = nil
		}
	}

	if matches == nil {
		queryWords := contentWords(query)
		for _, p := range prior {
			matches = append(matches, scored{query: p, score: textutil.Jaccard(queryWords, contentWords(p))})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	return matches
}

func (g *Gate) embeddingScores(ctx context.Context, query string, prior []string) ([]scored, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	vectors, err := g.embedder.Embed(ctx, append([]string{query}, prior...))
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(prior)+1 {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(prior)+1, len(vectors))
	}

	matches := make([]scored, 0, len(prior))
	for i, p := range prior {
		matches = append(matches, scored{query: p, score: embedding.Cosine(vectors[0], vectors[i+1])})
	}

	return matches, nil
}

func relatedFacts(query string, summary *session.Summary) []string {
	if summary.IsEmpty() {
		return nil
	}

	queryWords := textutil.Set(contentWords(query)...)

	var related []string
	for _, fact := range append(append([]string{}, summary.KeyFacts...), summary.Decisions...) {
		if textutil.ContainsAny(queryWords, contentWords(fact)) {
			related = append(related, fact)
		}
	}

	return related
}

func contentWords(text string) []string {
	var out []string
	for _, w := range textutil.LowerWords(text) {
		w = strings.TrimSuffix(w, "'s")
		if len(w) < 3 {
			continue
		}
		if _, stop := textutil.Stopwords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}
