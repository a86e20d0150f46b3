package pipeline

import (
	"fmt"
	"sync/atomic"
)

// UsageTarget is the share of queries allowed to reach a model. Exceeding it
// is reported, never enforced.
const UsageTarget = 0.30

type CallKind string

const (
	KindGeneration    CallKind = "generation"
	KindClarification CallKind = "clarification"
	KindAmbiguity     CallKind = "ambiguity"
	KindRefinement    CallKind = "refinement"
	KindSummarization CallKind = "summarization"
)

var callKinds = []CallKind{KindGeneration, KindClarification, KindAmbiguity, KindRefinement, KindSummarization}

type counters struct {
	queries atomic.Int64
	calls   atomic.Int64
	byKind  map[CallKind]*atomic.Int64
}

func newCounters() *counters {
	c := &counters{byKind: make(map[CallKind]*atomic.Int64, len(callKinds))}
	for _, kind := range callKinds {
		c.byKind[kind] = &atomic.Int64{}
	}
	return c
}

func (c *counters) query() {
	c.queries.Add(1)
}

func (c *counters) call(kind CallKind) {
	c.byKind[kind].Add(1)
	c.calls.Add(1)
}

func (c *counters) snapshot() UsageStats {
	stats := UsageStats{
		TotalQueries: c.queries.Load(),
		LLMCalls:     c.calls.Load(),
		Target:       UsageTarget,
		ByKind:       make(map[string]int64, len(callKinds)),
	}

	for kind, counter := range c.byKind {
		stats.ByKind[string(kind)] = counter.Load()
	}

	if stats.TotalQueries > 0 {
		stats.Ratio = float64(stats.LLMCalls) / float64(stats.TotalQueries)
	}
	stats.UsagePercentage = fmt.Sprintf("%.1f%%", stats.Ratio*100)
	stats.OverTarget = stats.Ratio > UsageTarget

	return stats
}
