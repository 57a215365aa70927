// Package orchestrator runs one turn submission end to end: quota, intent,
// retrieval, generation with bounded retries, validation and the atomic
// commit of the turn and its ledger entry.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domainagg "github.com/yungbote/english-trainer-backend/internal/domain/aggregates"
	"github.com/yungbote/english-trainer-backend/internal/domain/billing"
	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
	"github.com/yungbote/english-trainer-backend/internal/observability"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
	"github.com/yungbote/english-trainer-backend/internal/trainer/prompt"
	"github.com/yungbote/english-trainer-backend/internal/trainer/provider"
	"github.com/yungbote/english-trainer-backend/internal/trainer/retrieval"
	"github.com/yungbote/english-trainer-backend/internal/trainer/validate"
)

const (
	DefaultGenerationTimeout = 30 * time.Second
	MaxInputRunes            = 5000

	maxTimeoutRetries = 1
	maxInvalidRetries = 1
)

type QuotaGate interface {
	EnsureCanSubmit(ctx context.Context, userID uuid.UUID) (billing.QuotaDecision, error)
}

type SessionReader interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*trainer.TrainingSession, error)
}

type IntentNormalizer interface {
	Normalize(sess *trainer.TrainingSession, raw string) trainer.Intent
}

type Retriever interface {
	Retrieve(ctx context.Context, userID uuid.UUID, scenario, level string, in trainer.Intent) retrieval.Bundle
}

type Deps struct {
	Log        *logger.Logger
	Metrics    *observability.Metrics
	Quota      QuotaGate
	Sessions   SessionReader
	Normalizer IntentNormalizer
	Retriever  Retriever
	Generator  provider.GenerationProvider
	Turns      domainagg.TurnAggregate

	// GenerationTimeout bounds each provider call, not the whole turn.
	GenerationTimeout time.Duration
}

type Orchestrator struct {
	log        *logger.Logger
	metrics    *observability.Metrics
	quota      QuotaGate
	sessions   SessionReader
	normalizer IntentNormalizer
	retriever  Retriever
	generator  provider.GenerationProvider
	turns      domainagg.TurnAggregate
	timeout    time.Duration
	now        func() time.Time
}

func New(deps Deps) *Orchestrator {
	timeout := deps.GenerationTimeout
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}
	return &Orchestrator{
		log:        deps.Log.With("service", "TurnOrchestrator"),
		metrics:    deps.Metrics,
		quota:      deps.Quota,
		sessions:   deps.Sessions,
		normalizer: deps.Normalizer,
		retriever:  deps.Retriever,
		generator:  deps.Generator,
		turns:      deps.Turns,
		timeout:    timeout,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type SubmitInput struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	Input     string
}

type TurnResult struct {
	Turn     trainer.TrainingTurn
	Feedback trainer.Feedback
	Status   string
	Quota    billing.QuotaDecision
	// Attempts counts generation calls, including retries.
	Attempts int
}

// run is the mutable state of one submission. Only the step functions touch it.
type run struct {
	in      SubmitInput
	input   string
	started time.Time

	session *trainer.TrainingSession
	quota   billing.QuotaDecision
	intent  trainer.Intent
	bundle  retrieval.Bundle

	prompt   prompt.Prompt
	variant  string
	raw      string
	attempts int
	timeouts int
	invalids int

	feedback trainer.Feedback
	status   string
	cause    string

	result TurnResult
	err    error
}

type step func(ctx context.Context, r *run) State

func (o *Orchestrator) steps() map[State]step {
	return map[State]step{
		StateInit:         o.stepInit,
		StateQuotaChecked: o.stepNormalize,
		StateNormalized:   o.stepRetrieve,
		StateRetrieved:    o.stepGenerate,
		StateGenerated:    o.stepValidate,
		StateValidated:    o.stepPersist,
		StateFallback:     o.stepFallback,
	}
}

// Submit returns ErrQuotaExceeded (as *QuotaExceededError), ErrSessionNotFound,
// ErrSessionArchived or ErrInvalidInput without writing anything. Timeouts and
// invalid output end in a persisted fallback turn, not an error.
func (o *Orchestrator) Submit(ctx context.Context, in SubmitInput) (TurnResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "orchestrator.Submit", trace.WithAttributes(
		attribute.String("session_id", in.SessionID.String()),
		attribute.Int("input_len", utf8.RuneCountInString(in.Input)),
	))
	defer span.End()

	r := &run{in: in, input: strings.TrimSpace(in.Input), started: time.Now(), variant: variantPrimary}
	steps := o.steps()
	state := StateInit
	for !state.terminal() {
		fn, ok := steps[state]
		if !ok {
			r.err = fmt.Errorf("no step for state %s", state)
			state = StateAborted
			break
		}
		next := fn(ctx, r)
		span.AddEvent("transition", trace.WithAttributes(
			attribute.String("from", state.String()),
			attribute.String("to", next.String()),
		))
		state = next
	}

	latency := time.Since(r.started)
	if state == StateAborted {
		outcome := "aborted"
		if errors.Is(r.err, ErrQuotaExceeded) {
			outcome = "quota_denied"
		}
		o.metrics.ObserveTurn(outcome, latency)
		span.SetStatus(codes.Error, outcome)
		if r.err == nil {
			r.err = errors.New("turn aborted")
		}
		span.RecordError(r.err)
		return TurnResult{}, r.err
	}

	o.metrics.ObserveTurn(r.result.Status, latency)
	span.SetAttributes(
		attribute.String("status", r.result.Status),
		attribute.Int("turn_index", r.result.Turn.TurnIndex),
		attribute.Int("attempts", r.attempts),
	)
	o.log.Info("turn submitted",
		"user_id", in.UserID,
		"session_id", in.SessionID,
		"turn_id", r.result.Turn.ID,
		"turn_index", r.result.Turn.TurnIndex,
		"status", r.result.Status,
		"cause", r.cause,
		"input_len", utf8.RuneCountInString(r.input),
		"attempts", r.attempts,
		"latency_ms", latency.Milliseconds(),
	)
	return r.result, nil
}

func (o *Orchestrator) stepInit(ctx context.Context, r *run) State {
	if r.in.UserID == uuid.Nil || r.in.SessionID == uuid.Nil {
		r.err = fmt.Errorf("%w: missing user or session id", ErrInvalidInput)
		return StateAborted
	}
	if r.input == "" {
		r.err = fmt.Errorf("%w: input is empty", ErrInvalidInput)
		return StateAborted
	}
	if n := utf8.RuneCountInString(r.input); n > MaxInputRunes {
		r.err = fmt.Errorf("%w: input has %d characters, max %d", ErrInvalidInput, n, MaxInputRunes)
		return StateAborted
	}

	sess, err := o.sessions.GetByID(dbctx.Context{Ctx: ctx}, r.in.SessionID)
	if err != nil {
		r.err = fmt.Errorf("load session: %w", err)
		return StateAborted
	}
	if sess == nil || sess.UserID != r.in.UserID {
		r.err = ErrSessionNotFound
		return StateAborted
	}
	if sess.IsArchived {
		r.err = ErrSessionArchived
		return StateAborted
	}
	r.session = sess

	d, err := o.quota.EnsureCanSubmit(ctx, r.in.UserID)
	if err != nil {
		r.err = fmt.Errorf("check quota: %w", err)
		return StateAborted
	}
	if !d.Allowed {
		r.err = &QuotaExceededError{Decision: d}
		return StateAborted
	}
	r.quota = d
	return StateQuotaChecked
}

func (o *Orchestrator) stepNormalize(_ context.Context, r *run) State {
	r.intent = o.normalizer.Normalize(r.session, r.input)
	return StateNormalized
}

func (o *Orchestrator) stepRetrieve(ctx context.Context, r *run) State {
	r.bundle = o.retriever.Retrieve(ctx, r.in.UserID, r.session.Scenario, r.session.Level, r.intent)
	r.prompt = prompt.Build(r.session, r.input, r.intent, r.bundle)
	return StateRetrieved
}

// stepGenerate makes one bounded provider call. Retries re-enter this state
// with a different prompt variant.
func (o *Orchestrator) stepGenerate(ctx context.Context, r *run) State {
	if err := ctx.Err(); err != nil {
		r.err = err
		return StateAborted
	}
	r.attempts++
	actx, cancel := context.WithTimeout(ctx, o.timeout)
	raw, err := o.generator.GenerateStructured(actx, r.prompt.Text, r.prompt.OutputSchema)
	deadline := errors.Is(actx.Err(), context.DeadlineExceeded)
	cancel()

	// The caller going away is not a provider timeout.
	if cerr := ctx.Err(); cerr != nil {
		r.err = cerr
		return StateAborted
	}

	switch {
	case err != nil && (provider.IsTimeout(err) || deadline):
		o.metrics.IncGenerationAttempt(r.variant, "timeout")
		r.timeouts++
		if r.timeouts > maxTimeoutRetries {
			r.status, r.cause = trainer.TurnStatusFallback, "timeout"
			return StateFallback
		}
		o.log.Warn("generation timed out, retrying with simplified prompt", "session_id", r.in.SessionID, "attempt", r.attempts)
		r.prompt, r.variant = prompt.Simplified(r.input), variantSimplified
		return StateRetrieved
	case err != nil:
		o.metrics.IncGenerationAttempt(r.variant, "error")
		o.log.Error("generation failed", "session_id", r.in.SessionID, "attempt", r.attempts, "error", err)
		r.status, r.cause = trainer.TurnStatusError, "provider_error"
		return StateFallback
	}

	r.raw = raw
	return StateGenerated
}

func (o *Orchestrator) stepValidate(_ context.Context, r *run) State {
	res := validate.Validate(r.raw)
	if !res.Valid {
		o.metrics.IncGenerationAttempt(r.variant, "invalid")
		r.invalids++
		if r.invalids > maxInvalidRetries {
			r.status, r.cause = trainer.TurnStatusFallback, "invalid_output"
			return StateFallback
		}
		o.log.Warn("generation output invalid, retrying with strict prompt", "session_id", r.in.SessionID, "reason", res.Reason)
		r.prompt, r.variant = prompt.Strict(r.prompt), variantStrict
		return StateRetrieved
	}
	o.metrics.IncGenerationAttempt(r.variant, "ok")
	if len(res.Dropped) > 0 {
		o.log.Debug("generation output corrected", "session_id", r.in.SessionID, "corrections", len(res.Dropped))
	}
	r.feedback = res.Feedback
	r.status = trainer.TurnStatusSuccess
	return StateValidated
}

func (o *Orchestrator) stepFallback(ctx context.Context, r *run) State {
	r.feedback = validate.Fallback(r.input)
	if r.status == "" {
		r.status = trainer.TurnStatusFallback
	}
	return o.stepPersist(ctx, r)
}

// stepPersist is the cancellation boundary: once CommitTurn returns without
// error the turn exists, otherwise nothing does.
func (o *Orchestrator) stepPersist(ctx context.Context, r *run) State {
	if err := ctx.Err(); err != nil {
		r.err = err
		return StateAborted
	}
	consume := r.status == trainer.TurnStatusSuccess
	res, err := o.turns.CommitTurn(ctx, domainagg.CommitTurnInput{
		UserID:        r.in.UserID,
		SessionID:     r.in.SessionID,
		UserInput:     r.input,
		Intent:        r.intent,
		UserCardIDs:   r.bundle.UserCardIDs(),
		PublicCardIDs: r.bundle.PublicCardIDs(),
		Feedback:      r.feedback,
		Status:        r.status,
		Latency:       time.Since(r.started),
		ConsumeQuota:  consume,
		Now:           o.now(),
	})
	if err != nil {
		if domainagg.IsCode(err, domainagg.CodeQuotaExceeded) {
			o.log.Info("quota exhausted before commit", "user_id", r.in.UserID, "reason", res.Quota.Reason)
			r.err = &QuotaExceededError{Decision: res.Quota}
			return StateAborted
		}
		r.err = fmt.Errorf("commit turn: %w", err)
		return StateAborted
	}

	quota := r.quota
	if consume {
		quota = res.Quota
	}
	r.result = TurnResult{
		Turn:     res.Turn,
		Feedback: r.feedback,
		Status:   r.status,
		Quota:    quota,
		Attempts: r.attempts,
	}
	return StatePersisted
}
