// Package service implements the narrowing engine: the conversational
// state machine that whittles a candidate set of visa types down to one
// through question/answer rounds with the classification oracle.
//
// The engine is written for an unreliable collaborator. Every oracle-facing
// failure — malformed shape, timeout, empty list, refusal to narrow — is
// absorbed at the smallest possible scope with a safe default. The only
// errors callers ever see are sequencing mistakes (answering before
// starting) and state lookup misses.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"visaflow/internal/interview/events"
	"visaflow/internal/interview/metrics"
	"visaflow/internal/interview/models"
	"visaflow/internal/interview/oracle"
	"visaflow/internal/interview/store"
	id "visaflow/pkg/domain"
	dErrors "visaflow/pkg/domain-errors"
	"visaflow/pkg/platform/sentinel"
	"visaflow/pkg/requestcontext"
)

// Publisher hands completed interviews to the workflow materializer.
// Publishing is fire-and-forget: implementations log failures and never
// return them, so a broken materializer cannot unwind a completed
// interview.
type Publisher interface {
	PublishCompleted(ctx context.Context, event events.CompletedEvent)
}

// Engine orchestrates interview rounds against the oracle and owns the
// persisted interview state exclusively.
type Engine struct {
	store     store.Store
	oracle    oracle.Client
	locker    Locker
	guard     *ProgressGuard
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPublisher sets the completion event publisher.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithLocker replaces the default in-process locker, e.g. with the Redis
// locker when running multiple replicas.
func WithLocker(l Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithForcingThreshold overrides the default stall threshold of 3.
func WithForcingThreshold(threshold int) Option {
	return func(e *Engine) { e.guard = NewProgressGuard(threshold) }
}

// New creates a narrowing engine over a state store and an oracle client.
func New(st store.Store, oc oracle.Client, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("interview store is required")
	}
	if oc == nil {
		return nil, fmt.Errorf("oracle client is required")
	}

	e := &Engine{
		store:  st,
		oracle: oc,
		locker: NewKeyedMutex(),
		guard:  NewProgressGuard(3),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Start opens an interview for the user, or resumes the pending one. It is
// idempotent: re-calling with an unresolved interview returns the existing
// question rather than restarting.
func (e *Engine) Start(ctx context.Context, userID id.UserID, category, instructions string) (*models.StepResponse, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	release, err := e.locker.Acquire(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not serialize interview access")
	}
	defer release()

	existing, err := e.store.Get(ctx, userID)
	switch {
	case err == nil && existing.IsCompleted:
		return completedResponse(existing), nil
	case err == nil && existing.Candidates.Size() > 0:
		return &models.StepResponse{Question: existing.LastQuestion, Step: existing.Step}, nil
	case err != nil && !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load interview state")
	}

	msg := e.ask(ctx, "handshake", func(ctx context.Context) (string, error) {
		return e.oracle.Handshake(ctx, category, instructions)
	})

	// The handshake should yield a candidate list. Anything else, or an
	// empty list, falls back to the built-in set for the category: the
	// oracle is unreliable and start must never fail outright.
	candidates := models.NewCandidateSet(msg.Codes)
	if candidates.Size() == 0 {
		candidates = defaultCandidates(category)
		e.logger.InfoContext(ctx, "handshake fell back to default candidates",
			"category", category,
			"response_kind", string(msg.Kind),
		)
	}

	question := strings.TrimSpace(msg.Question)
	if question == "" {
		question = e.questionFor(ctx, candidates, genericFirstQuestion)
	}

	state := &models.State{
		UserID:       userID,
		Category:     category,
		Step:         1,
		Candidates:   candidates,
		LastQuestion: question,
		LastUpdated:  requestcontext.Now(ctx),
	}
	if err := e.store.Save(ctx, state); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist interview state")
	}

	return &models.StepResponse{Question: question, Step: state.Step}, nil
}

// Answer processes one narrowing round. The interview must have been
// started and not yet completed.
func (e *Engine) Answer(ctx context.Context, userID id.UserID, answer string) (*models.StepResponse, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	if strings.TrimSpace(answer) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "answer is required")
	}

	release, err := e.locker.Acquire(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not serialize interview access")
	}
	defer release()

	st, err := e.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidState, "interview has not been started")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load interview state")
	}
	if st.IsCompleted {
		return nil, dErrors.New(dErrors.CodeInvalidState, "interview is already completed")
	}
	if st.Candidates.Size() == 0 {
		// Should be unreachable: size zero is never persisted. Recover
		// with the category default rather than wedging the user.
		st.Candidates = defaultCandidates(st.Category)
	}

	st.LastAnswer = answer

	msg := e.ask(ctx, "filter", func(ctx context.Context) (string, error) {
		return e.oracle.Filter(ctx, st.Candidates.Strings(), answer)
	})

	switch msg.Kind {
	case oracle.KindCandidateList, oracle.KindCandidateListWithQuestion:
		return e.applyCandidates(ctx, st, msg)

	case oracle.KindQuestion:
		// Clarification from the oracle: candidates and step unchanged.
		return e.stalledRound(ctx, st, msg.Question)

	case oracle.KindWorkflow:
		// Unexpected this early, but if a single candidate remains it is
		// an implicit termination signal carrying the final document.
		if st.Candidates.Size() == 1 {
			return e.finish(ctx, st, st.Candidates.First(), msg.Raw)
		}
		return e.stalledRound(ctx, st, clarificationQuestion)

	default:
		return e.stalledRound(ctx, st, clarificationQuestion)
	}
}

// applyCandidates handles an oracle round that returned a candidate list,
// with or without an embedded question.
func (e *Engine) applyCandidates(ctx context.Context, st *models.State, msg oracle.Message) (*models.StepResponse, error) {
	newSet := models.NewCandidateSet(msg.Codes)

	// Over-filtering down to zero is always an error condition: discard
	// the round and re-ask, never persist an empty set.
	if newSet.Size() == 0 {
		question := st.LastQuestion
		if question == "" {
			question = repeatQuestionFallback
		}
		return e.stalledRound(ctx, st, question)
	}

	if e.guard.IsStall(st.Candidates, newSet, st.LastAnswer) {
		question := strings.TrimSpace(msg.Question)
		if question == "" {
			question = clarificationQuestion
		}
		return e.stalledRound(ctx, st, question)
	}

	// The set legitimately changed.
	st.ConsecutiveStalls = 0
	if newSet.Size() == 1 {
		return e.finish(ctx, st, newSet.First(), "")
	}

	st.Candidates = newSet
	st.Step++

	question := strings.TrimSpace(msg.Question)
	if question == "" {
		question = e.questionFor(ctx, newSet, clarificationQuestion)
	}
	st.LastQuestion = question
	st.LastUpdated = requestcontext.Now(ctx)
	if err := e.store.Save(ctx, st); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist interview state")
	}

	e.countRound("narrowed")
	return &models.StepResponse{Question: question, Step: st.Step}, nil
}

// stalledRound records a round that made no narrowing progress. The stall
// counter advances; at the forcing threshold the guard decides a candidate
// and the interview terminates. Step never advances here.
func (e *Engine) stalledRound(ctx context.Context, st *models.State, question string) (*models.StepResponse, error) {
	st.ConsecutiveStalls++
	e.countStall()

	if e.guard.ShouldForce(st.Candidates, st.Candidates, st.ConsecutiveStalls) {
		code := e.guard.ForceChoice(st.Candidates, st.LastAnswer)
		e.countForced()
		e.logger.InfoContext(ctx, "forcing candidate after repeated stalls",
			"user_id", st.UserID,
			"code", code,
			"stalls", st.ConsecutiveStalls,
		)
		return e.finish(ctx, st, code, "")
	}

	st.LastQuestion = question
	st.LastUpdated = requestcontext.Now(ctx)
	if err := e.store.Save(ctx, st); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist interview state")
	}

	e.countRound("stalled")
	return &models.StepResponse{Question: question, Step: st.Step}, nil
}

// finish terminates the interview on a single code. When the oracle's
// workflow response lacks a steps array, a static template keyed by code
// prefix substitutes — the user journey never fails at the finish line.
func (e *Engine) finish(ctx context.Context, st *models.State, code id.VisaCode, rawWorkflow string) (*models.StepResponse, error) {
	doc := rawWorkflow
	if doc == "" {
		msg := e.ask(ctx, "workflow", func(ctx context.Context) (string, error) {
			return e.oracle.WorkflowFor(ctx, code)
		})
		if msg.Kind == oracle.KindWorkflow {
			doc = msg.Raw
		} else {
			doc = fallbackWorkflow(code)
			e.logger.WarnContext(ctx, "workflow response unusable, using fallback template",
				"user_id", st.UserID,
				"code", code,
				"response_kind", string(msg.Kind),
			)
		}
	}

	single := models.NewCandidateSet([]id.VisaCode{code})
	if !st.Candidates.Equal(single) {
		st.Step++
	}
	st.Candidates = single
	st.SelectedVisaType = code
	st.WorkflowDocument = doc
	st.IsCompleted = true
	st.ConsecutiveStalls = 0
	st.LastUpdated = requestcontext.Now(ctx)

	if err := e.store.Save(ctx, st); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist interview state")
	}

	e.countRound("completed")
	e.countCompletion()

	if e.publisher != nil {
		e.publisher.PublishCompleted(ctx, events.CompletedEvent{
			EventID:          uuid.NewString(),
			UserID:           st.UserID.String(),
			VisaCode:         string(code),
			WorkflowDocument: doc,
			CompletedAt:      st.LastUpdated,
		})
	}

	return completedResponse(st), nil
}

// Reset unconditionally clears the interview back to the pre-handshake
// state. Resetting a nonexistent interview is a no-op.
func (e *Engine) Reset(ctx context.Context, userID id.UserID) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	release, err := e.locker.Acquire(ctx, userID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "could not serialize interview access")
	}
	defer release()

	if err := e.store.Delete(ctx, userID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset interview state")
	}
	return nil
}

// GetState returns a read-only snapshot of the interview state.
func (e *Engine) GetState(ctx context.Context, userID id.UserID) (*models.State, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	st, err := e.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no interview found for user")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load interview state")
	}
	return st, nil
}

// questionFor asks the oracle for a question discriminating the candidate
// set, substituting fallback if the oracle misbehaves (e.g. replies with
// yet another candidate list).
func (e *Engine) questionFor(ctx context.Context, candidates models.CandidateSet, fallback string) string {
	msg := e.ask(ctx, "question_for", func(ctx context.Context) (string, error) {
		return e.oracle.QuestionFor(ctx, candidates.Strings())
	})
	if q := strings.TrimSpace(msg.Question); q != "" {
		return q
	}
	return fallback
}

// ask runs one oracle round-trip and normalizes the response. Transport
// failure degrades to an unrecognized message: the caller's fallback path
// handles both identically.
func (e *Engine) ask(ctx context.Context, round string, call func(context.Context) (string, error)) oracle.Message {
	start := time.Now()
	raw, err := call(ctx)
	e.observeOracle(time.Since(start))
	if err != nil {
		e.countOracleFailure()
		e.logger.WarnContext(ctx, "oracle round failed, degrading to unrecognized",
			"round", round,
			"error", err,
		)
		return oracle.Message{Kind: oracle.KindUnrecognized}
	}

	msg := oracle.Normalize(raw)
	e.countNormalized(string(msg.Kind))
	return msg
}

func completedResponse(st *models.State) *models.StepResponse {
	return &models.StepResponse{
		Step:       st.Step,
		IsComplete: true,
		Recommendation: &models.Recommendation{
			Code:             string(st.SelectedVisaType),
			WorkflowDocument: st.WorkflowDocument,
		},
	}
}

func (e *Engine) countRound(outcome string) {
	if e.metrics != nil {
		e.metrics.Rounds.WithLabelValues(outcome).Inc()
	}
}

func (e *Engine) countStall() {
	if e.metrics != nil {
		e.metrics.Stalls.Inc()
	}
}

func (e *Engine) countForced() {
	if e.metrics != nil {
		e.metrics.ForcedChoices.Inc()
	}
}

func (e *Engine) countCompletion() {
	if e.metrics != nil {
		e.metrics.Completions.Inc()
	}
}

func (e *Engine) countNormalized(kind string) {
	if e.metrics != nil {
		e.metrics.NormalizerOutcomes.WithLabelValues(kind).Inc()
	}
}

func (e *Engine) countOracleFailure() {
	if e.metrics != nil {
		e.metrics.OracleFailures.Inc()
	}
}

func (e *Engine) observeOracle(d time.Duration) {
	if e.metrics != nil {
		e.metrics.OracleLatency.Observe(d.Seconds())
	}
}
