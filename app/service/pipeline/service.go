package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"querymind/app/client/embedding"
	"querymind/app/client/llm"
	"querymind/app/config"
	"querymind/app/service/ambiguity"
	"querymind/app/service/answerability"
	"querymind/app/service/assembler"
	"querymind/app/service/audit"
	"querymind/app/service/clarifier"
	"querymind/app/service/memory"
	"querymind/app/service/refiner"
	"querymind/app/service/session"
	"querymind/app/service/spelling"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
)

const degradedResponse = "I'm having trouble reaching the language model right now. Please try again in a moment."

var ErrEmptyQuery = errors.New("query is empty")

// Auditor receives a record of every processed message.
type Auditor interface {
	LogConversation(record audit.ConversationRecord)
	LogQuery(record audit.QueryRecord)
	LogSummary(record audit.SummaryRecord)
}

type nopAuditor struct{}

func (nopAuditor) LogConversation(audit.ConversationRecord) {}
func (nopAuditor) LogQuery(audit.QueryRecord)               {}
func (nopAuditor) LogSummary(audit.SummaryRecord)           {}

type Deps struct {
	Store  session.Store
	LLM    llm.Client
	Memory *memory.Manager
	Audit  Auditor
	// Embedder is optional and only used for prior query similarity.
	Embedder embedding.Embedder
}

type Options struct {
	QueryUnderstanding  bool
	MaxResponseTokens   int
	ResponseTemperature float64
	SystemPrompt        string
	LLMTimeout          time.Duration
	StorageTimeout      time.Duration
}

type Service struct {
	store  session.Store
	client llm.Client
	memory *memory.Manager
	audit  Auditor
	locker *session.Locker
	stats  *counters
	opts   Options

	normalizer *spelling.Normalizer
	classifier *ambiguity.Classifier
	gate       *answerability.Gate
	refiner    *refiner.Refiner
	clarifier  *clarifier.Generator
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	deps := Deps{
		Store:  do.MustInvoke[session.Store](di),
		LLM:    do.MustInvoke[*llm.Chain](di),
		Memory: do.MustInvoke[*memory.Manager](di),
		Audit:  do.MustInvoke[*audit.Service](di),
	}

	if cfg.Embedding.Enabled {
		embedder, err := embedding.NewGenAIEmbedder(do.MustInvoke[context.Context](di), cfg.Embedding)
		if err != nil {
			slog.Warn("Embeddings disabled, using token overlap", "error", err)
		} else {
			deps.Embedder = embedder
		}
	}

	return NewService(deps, Options{
		QueryUnderstanding:  cfg.Pipeline.QueryUnderstandingEnabled(),
		MaxResponseTokens:   cfg.Pipeline.MaxResponseTokens,
		ResponseTemperature: cfg.Pipeline.ResponseTemperature,
		SystemPrompt:        cfg.Pipeline.SystemPrompt,
		LLMTimeout:          cfg.Pipeline.LLMTimeout,
		StorageTimeout:      cfg.Pipeline.StorageTimeout,
	}), nil
}

func NewService(deps Deps, opts Options) *Service {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	if deps.Audit == nil {
		deps.Audit = nopAuditor{}
	}

	var gateOpts []answerability.Option
	if deps.Embedder != nil {
		gateOpts = append(gateOpts, answerability.WithEmbedder(deps.Embedder, opts.LLMTimeout))
	}

	return &Service{
		store:      deps.Store,
		client:     deps.LLM,
		memory:     deps.Memory,
		audit:      deps.Audit,
		locker:     session.NewLocker(),
		stats:      newCounters(),
		opts:       opts,
		normalizer: spelling.New(),
		classifier: ambiguity.New(deps.LLM, opts.LLMTimeout),
		gate:       answerability.New(gateOpts...),
		refiner:    refiner.New(deps.LLM, opts.LLMTimeout),
		clarifier:  clarifier.New(deps.LLM, opts.LLMTimeout),
	}
}

// run carries the state of one message through the pipeline.
type run struct {
	sessionID string
	query     string
	result    Result
	history   []session.Message
	summary   *session.Summary
	context   assembler.Result
	final     string
	ambiguity ambiguity.Verdict
}

func (r *run) enter(state State) {
	r.result.Metadata.States = append(r.result.Metadata.States, state)
}

func (r *run) degrade() {
	r.result.Metadata.Degraded = true
}

func (s *Service) call(r *run, kind CallKind) {
	s.stats.call(kind)
	r.result.Metadata.LLMCalls++
}

// ProcessMessage answers query or asks for clarification. Backend failures
// degrade the result instead of failing the call; an error means the input was
// invalid or ctx ended before the session could be locked.
func (s *Service) ProcessMessage(ctx context.Context, sessionID, query string) (*Result, error) {
	if err := session.ValidateID(sessionID); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}
	defer unlock()

	start := time.Now()
	s.stats.query()

	r := &run{sessionID: sessionID, query: query}
	r.enter(StateReceived)

	pending := session.NewMessage(session.RoleUser, query)

	s.checkBudget(ctx, r, pending)
	s.load(ctx, r)

	if s.opts.QueryUnderstanding {
		s.understand(ctx, r)
	} else {
		s.skipUnderstanding(r)
	}

	if r.result.QueryUnderstanding.IsAnswerable {
		s.answer(ctx, r)
	} else {
		s.clarify(ctx, r)
	}

	s.persist(ctx, r, pending)
	s.log(r)

	r.result.SessionMemory = r.summary
	r.result.Usage = s.stats.snapshot()
	r.enter(StateReturned)

	slog.Info("Processed message",
		"session_id", sessionID,
		"answerable", r.result.QueryUnderstanding.IsAnswerable,
		"llm_calls", r.result.Metadata.LLMCalls,
		"summarized", r.result.Metadata.SummarizationTriggered,
		"degraded", r.result.Metadata.Degraded,
		"usage", r.result.Usage.UsagePercentage,
		"duration", time.Since(start),
	)

	if r.result.Usage.OverTarget {
		slog.Debug("LLM usage above target",
			"ratio", r.result.Usage.Ratio,
			"target", UsageTarget,
		)
	}

	return &r.result, nil
}

func (s *Service) checkBudget(ctx context.Context, r *run, pending session.Message) {
	event, err := s.memory.Maintain(ctx, r.sessionID, pending)
	if err != nil {
		slog.Error("Session maintenance failed",
			"session_id", r.sessionID,
			"error", err,
		)
		r.degrade()
	}

	r.result.Metadata.TokenCount = event.TokenCount
	r.enter(StateBudgetChecked)

	if !event.Triggered {
		return
	}

	s.call(r, KindSummarization)
	r.result.Metadata.SummarizationTriggered = true
	r.result.Metadata.SummarizationRange = &event.Range
	if event.Degraded {
		r.degrade()
	}
	r.enter(StateSummarized)

	s.audit.LogSummary(audit.SummaryRecord{
		Timestamp: time.Now().UTC(),
		SessionID: r.sessionID,
		Summary:   *event.Summary,
	})
}

// load reads the log and summary as they are after maintenance. A failed read
// continues with what is available.
func (s *Service) load(ctx context.Context, r *run) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	history, err := s.store.Messages(ctx, r.sessionID)
	if err != nil {
		slog.Error("Failed to load messages", "session_id", r.sessionID, "error", err)
		r.degrade()
	}
	r.history = history

	summary, err := s.store.Summary(ctx, r.sessionID)
	if err != nil {
		slog.Error("Failed to load summary", "session_id", r.sessionID, "error", err)
		r.degrade()
	}
	r.summary = summary
}

func (s *Service) understand(ctx context.Context, r *run) {
	qu := &r.result.QueryUnderstanding

	normalized := s.normalizer.Check(r.query)
	qu.NormalizedQuery = normalized.Text
	r.result.Metadata.SpellingCorrected = normalized.Corrected
	r.enter(StateNormalized)

	r.ambiguity = s.classifier.Classify(ctx, normalized.Text, r.history)
	if r.ambiguity.UsedLLM {
		s.call(r, KindAmbiguity)
		r.result.Metadata.AmbiguityLLMUsed = true
	}
	qu.IsAmbiguous = r.ambiguity.IsAmbiguous
	qu.AmbiguityReason = r.ambiguity.Reason
	qu.AmbiguityConfidence = r.ambiguity.Confidence
	r.enter(StateAmbiguityResolved)

	verdict := s.gate.Check(ctx, answerability.Input{
		Query:        normalized.Text,
		Ambiguous:    r.ambiguity.IsAmbiguous,
		PriorQueries: priorQueries(r.history),
		Summary:      r.summary,
	})
	qu.IsAnswerable = verdict.IsAnswerable
	qu.AnswerabilityReason = verdict.Reason
	qu.AnswerabilityConfidence = verdict.Confidence
	qu.SimilarPriorQueries = verdict.SimilarPriorQueries
	r.enter(StateAnswerabilityResolved)
}

// skipUnderstanding treats every query as clear and answerable.
func (s *Service) skipUnderstanding(r *run) {
	qu := &r.result.QueryUnderstanding

	qu.NormalizedQuery = r.query
	r.enter(StateNormalized)

	r.ambiguity = ambiguity.Verdict{Confidence: 1}
	qu.AmbiguityConfidence = 1
	r.enter(StateAmbiguityResolved)

	qu.IsAnswerable = true
	qu.AnswerabilityReason = "Query understanding disabled"
	qu.AnswerabilityConfidence = 1
	r.enter(StateAnswerabilityResolved)
}

func (s *Service) answer(ctx context.Context, r *run) {
	qu := &r.result.QueryUnderstanding

	r.context = assembler.Assemble(qu.NormalizedQuery, r.history, r.summary, nil)
	qu.ContextFields = r.context.FieldsUsed
	r.result.Metadata.ContextExpanded = r.context.Expanded
	r.result.Metadata.ContextTurns = r.context.Turns
	r.enter(StateContextAssembled)

	r.final = qu.NormalizedQuery
	if s.opts.QueryUnderstanding {
		refined := s.refiner.Refine(ctx, r.sessionID, qu.NormalizedQuery)
		if refined.UsedLLM {
			s.call(r, KindRefinement)
		}
		if refined.Refined {
			r.final = refined.Query
			qu.RewrittenQuery = refined.Query
			r.result.Metadata.RefinementApplied = true
		}
	}
	r.enter(StateRefined)

	s.call(r, KindGeneration)
	r.result.Metadata.LLMCallMade = true

	text, err := s.generate(ctx, r.final, r.context.Text)
	if err != nil {
		slog.Error("Answer generation failed",
			"session_id", r.sessionID,
			"kind", llm.KindOf(err),
			"error", err,
		)
		text = degradedResponse
		r.degrade()
	}
	r.result.Response = text
	r.enter(StateGenerated)
}

func (s *Service) generate(ctx context.Context, query, contextText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.LLMTimeout)
	defer cancel()

	text, err := s.client.Generate(ctx, llm.Request{
		Prompt:      buildPrompt(query, contextText),
		System:      s.opts.SystemPrompt,
		Temperature: s.opts.ResponseTemperature,
		MaxTokens:   s.opts.MaxResponseTokens,
	})
	if err != nil {
		return "", fmt.Errorf("client.Generate: %w", err)
	}

	return text, nil
}

func (s *Service) clarify(ctx context.Context, r *run) {
	qu := &r.result.QueryUnderstanding

	// unanswerable queries still count as recent queries for later pronouns
	s.refiner.Remember(r.sessionID, qu.NormalizedQuery)

	s.call(r, KindClarification)
	r.result.Metadata.LLMCallMade = true

	clarification := s.clarifier.Generate(ctx, qu.NormalizedQuery, r.ambiguity.Reason, r.history)
	if clarification.Degraded {
		r.degrade()
	}

	qu.ClarifyingQuestions = clarification.Questions
	r.result.Response = clarification.Text()
	r.enter(StateClarified)
}

// persist appends the user message and the reply together. Nothing is written
// once the caller has gone away.
func (s *Service) persist(ctx context.Context, r *run, pending session.Message) {
	if err := ctx.Err(); err != nil {
		slog.Warn("Request cancelled, exchange not persisted",
			"session_id", r.sessionID,
			"error", err,
		)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	reply := session.NewMessage(session.RoleAssistant, r.result.Response)
	if err := s.store.Append(ctx, r.sessionID, pending, reply); err != nil {
		slog.Error("Failed to persist exchange",
			"session_id", r.sessionID,
			"error", err,
		)
		r.degrade()
		return
	}

	r.result.Metadata.Persisted = true
	r.enter(StatePersisted)
}

func (s *Service) log(r *run) {
	now := time.Now().UTC()
	qu := r.result.QueryUnderstanding

	if s.opts.QueryUnderstanding {
		s.audit.LogQuery(audit.QueryRecord{
			Timestamp:               now,
			SessionID:               r.sessionID,
			OriginalQuery:           r.query,
			IsAmbiguous:             qu.IsAmbiguous,
			RewrittenQuery:          qu.RewrittenQuery,
			NeededContextFromMemory: memoryValues(r.summary),
			ClarifyingQuestions:     qu.ClarifyingQuestions,
			FinalAugmentedContext:   r.context.Text,
		})
	}

	s.audit.LogConversation(audit.ConversationRecord{
		Timestamp:         now,
		SessionID:         r.sessionID,
		UserMessage:       r.query,
		AssistantResponse: r.result.Response,
		Metadata:          r.result.Metadata,
	})

	r.enter(StateLogged)
}

func (s *Service) Messages(ctx context.Context, sessionID string) ([]session.Message, error) {
	if err := session.ValidateID(sessionID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	messages, err := s.store.Messages(ctx, sessionID)
	if err != nil {
		return nil, oops.
			In("pipeline").
			With("session_id", sessionID).
			Wrapf(err, "failed to load messages")
	}

	return messages, nil
}

func (s *Service) Summary(ctx context.Context, sessionID string) (*session.Summary, error) {
	if err := session.ValidateID(sessionID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	summary, err := s.store.Summary(ctx, sessionID)
	if err != nil {
		return nil, oops.
			In("pipeline").
			With("session_id", sessionID).
			Wrapf(err, "failed to load summary")
	}

	return summary, nil
}

// DeleteSession removes the log, the summary and the cached queries of a session.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	if err := session.ValidateID(sessionID); err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to lock session: %w", err)
	}
	defer unlock()

	storageCtx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	if err = s.store.Delete(storageCtx, sessionID); err != nil {
		return oops.
			In("pipeline").
			With("session_id", sessionID).
			Wrapf(err, "failed to delete session")
	}

	s.refiner.Forget(sessionID)

	slog.Info("Session deleted", "session_id", sessionID)

	return nil
}

func (s *Service) Stats() UsageStats {
	return s.stats.snapshot()
}

func priorQueries(history []session.Message) []string {
	return pie.Map(
		pie.Filter(history, func(m session.Message) bool { return m.Role == session.RoleUser }),
		func(m session.Message) string { return m.Content },
	)
}

// memoryValues lists the summary entries worth auditing next to a query.
func memoryValues(summary *session.Summary) []string {
	if summary == nil {
		return []string{}
	}

	values := make([]string, 0)
	values = append(values, summary.UserProfile.Prefs...)
	values = append(values, summary.UserProfile.Constraints...)
	values = append(values, summary.Decisions...)
	values = append(values, summary.OpenQuestions...)

	return values
}
