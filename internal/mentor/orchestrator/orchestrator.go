package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/eduai-mentor/internal/domain/mentor"
	"github.com/yungbote/eduai-mentor/internal/inference/engine"
	"github.com/yungbote/eduai-mentor/internal/inference/engine/oaihttp"
	"github.com/yungbote/eduai-mentor/internal/mentor/offline"
	"github.com/yungbote/eduai-mentor/internal/mentor/prompt"
	"github.com/yungbote/eduai-mentor/internal/observability"
	"github.com/yungbote/eduai-mentor/internal/platform/httpx"
	"github.com/yungbote/eduai-mentor/internal/platform/logger"
)

type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeOffline           Outcome = "offline"
	OutcomeUpstreamExhausted Outcome = "upstream_exhausted"
	OutcomeEmptySoftFailure  Outcome = "empty_soft_failure"
)

var (
	ErrUpstreamExhausted = errors.New("upstream exhausted")
	ErrEmptyReply        = errors.New("empty upstream reply")
	ErrPolicyViolation   = errors.New("reply contains code outside the answer phase")
)

// RepromptText is returned, with the phase unchanged, when the upstream was reachable but gave nothing usable.
const RepromptText = "I couldn't generate a response just now. Tell me briefly what you already know, or ask for a guiding question."

const chatEndpoint = "chat_completions"

type Request struct {
	Phase             mentor.Phase
	Topic             string
	Window            []mentor.Turn
	CredentialPresent bool
}

type Result struct {
	Reply    string
	Phase    mentor.Phase
	Outcome  Outcome
	Attempts int
	// Err is the classification of the final failed attempt. It is informational only.
	Err error
}

// RetryPolicy bounds the total number of upstream attempts for one reply.
// Backoff receives the zero-based index of the attempt that just failed.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 2,
		Backoff:     httpx.ExponentialBackoff(250*time.Millisecond, 2*time.Second),
	}
}

type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int

	// CallTimeout bounds the whole reply including backoff. Zero means no extra bound.
	CallTimeout time.Duration

	StrictContentPolicy bool

	Retry RetryPolicy

	// Sleep waits between attempts. Tests replace it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

type Orchestrator struct {
	engine  engine.Engine
	opts    Options
	log     *logger.Logger
	metrics *observability.Metrics
}

func New(eng engine.Engine, opts Options, log *logger.Logger, metrics *observability.Metrics) *Orchestrator {
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = DefaultRetryPolicy().MaxAttempts
	}
	if opts.Retry.Backoff == nil {
		opts.Retry.Backoff = func(int) time.Duration { return 0 }
	}
	if opts.Sleep == nil {
		opts.Sleep = httpx.Sleep
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 500
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		engine:  eng,
		opts:    opts,
		log:     log.With("service", "MentorOrchestrator"),
		metrics: metrics,
	}
}

type attemptClass int

const (
	attemptOK attemptClass = iota
	attemptSoft
	attemptHard
)

// ObtainReply produces the mentor's next reply and the phase the session moves to.
// Upstream failures never surface as errors; only an unknown phase does.
func (o *Orchestrator) ObtainReply(ctx context.Context, req Request) (Result, error) {
	if !req.Phase.Valid() {
		return Result{}, fmt.Errorf("%w: %q", mentor.ErrInvalidPhase, string(req.Phase))
	}

	ctx, span := observability.Tracer().Start(ctx, "mentor.ObtainReply")
	defer span.End()
	span.SetAttributes(
		attribute.String("mentor.phase", req.Phase.String()),
		attribute.Int("mentor.window", len(req.Window)),
	)

	if !req.CredentialPresent || o.engine == nil {
		reply, next, err := offline.Reply(req.Phase)
		if err != nil {
			return Result{}, err
		}
		res := Result{Reply: reply, Phase: next, Outcome: OutcomeOffline}
		o.finish(span, req.Phase, res)
		return res, nil
	}

	if o.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.CallTimeout)
		defer cancel()
	}

	messages := prompt.Build(req.Phase, req.Topic, req.Window)
	genOpts := engine.GenerateOptions{Temperature: o.opts.Temperature, MaxTokens: o.opts.MaxTokens}

	var (
		text     string
		class    attemptClass
		lastErr  error
		attempts int
	)
	for attempt := 0; attempt < o.opts.Retry.MaxAttempts; attempt++ {
		attempts++
		text, class, lastErr = o.attempt(ctx, req.Phase, messages, genOpts, attempt)
		if class == attemptOK {
			break
		}
		if attempt == o.opts.Retry.MaxAttempts-1 {
			break
		}
		o.log.Warn("mentor attempt failed, retrying",
			"phase", req.Phase.String(),
			"attempt", attempt+1,
			"max_attempts", o.opts.Retry.MaxAttempts,
			"error", lastErr,
		)
		if err := o.opts.Sleep(ctx, o.opts.Retry.Backoff(attempt)); err != nil {
			lastErr = err
			class = attemptHard
			break
		}
	}

	var res Result
	switch class {
	case attemptOK:
		next, _ := mentor.Advance(req.Phase)
		res = Result{Reply: text, Phase: next, Outcome: OutcomeSuccess, Attempts: attempts}
	case attemptSoft:
		res = Result{Reply: RepromptText, Phase: req.Phase, Outcome: OutcomeEmptySoftFailure, Attempts: attempts, Err: lastErr}
	default:
		res = Result{
			Reply:    errorReply(lastErr),
			Phase:    mentor.PhaseElicitation,
			Outcome:  OutcomeUpstreamExhausted,
			Attempts: attempts,
			Err:      fmt.Errorf("%w: %w", ErrUpstreamExhausted, lastErr),
		}
		o.log.Error("mentor upstream exhausted",
			"phase", req.Phase.String(),
			"attempts", attempts,
			"error", lastErr,
		)
	}
	o.finish(span, req.Phase, res)
	return res, nil
}

func (o *Orchestrator) attempt(ctx context.Context, phase mentor.Phase, messages []engine.Message, opts engine.GenerateOptions, attempt int) (string, attemptClass, error) {
	ctx, span := observability.Tracer().Start(ctx, "mentor.upstream_attempt")
	defer span.End()
	span.SetAttributes(attribute.Int("mentor.attempt", attempt+1))

	start := time.Now()
	text, err := o.engine.GenerateText(ctx, o.opts.Model, messages, opts)
	dur := time.Since(start)

	text = strings.TrimSpace(text)
	class, status := classify(phase, text, err, o.opts.StrictContentPolicy)
	o.metrics.ObserveLLMRequest(o.opts.Model, chatEndpoint, status, dur)
	span.SetAttributes(attribute.String("mentor.attempt_status", status))

	switch class {
	case attemptOK:
		return text, attemptOK, nil
	case attemptSoft:
		if err == nil {
			if text == "" {
				err = ErrEmptyReply
			} else {
				err = ErrPolicyViolation
			}
		}
		return "", attemptSoft, err
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		return "", attemptHard, err
	}
}

// classify maps one attempt's result onto the retry classes. status is the metrics label.
func classify(phase mentor.Phase, text string, err error, strict bool) (attemptClass, string) {
	if err != nil {
		var he *oaihttp.HTTPError
		var de *oaihttp.DecodeError
		switch {
		case errors.As(err, &he):
			return attemptHard, strconv.Itoa(he.StatusCode)
		case errors.As(err, &de):
			return attemptHard, "malformed"
		case httpx.IsTransportError(err):
			return attemptHard, "transport"
		default:
			return attemptHard, "error"
		}
	}
	if text == "" {
		return attemptSoft, "empty"
	}
	if strict && !phase.RevealsSolution() && prompt.ContainsCodeFormatting(text) {
		return attemptSoft, "policy"
	}
	return attemptOK, "200"
}

func errorReply(err error) string {
	return fmt.Sprintf("Mentor error: %s. Try again or rephrase.", describe(err))
}

// describe keeps upstream bodies out of learner-facing text.
func describe(err error) string {
	var he *oaihttp.HTTPError
	var de *oaihttp.DecodeError
	switch {
	case err == nil:
		return "the mentor is unavailable"
	case errors.As(err, &he):
		return fmt.Sprintf("the mentor service returned status %d", he.StatusCode)
	case errors.As(err, &de):
		return "the mentor service sent a response I couldn't read"
	case errors.Is(err, context.DeadlineExceeded):
		return "the mentor took too long to answer"
	case errors.Is(err, context.Canceled):
		return "the request was cancelled"
	case httpx.IsTransportError(err):
		return "the mentor service could not be reached"
	default:
		return "the mentor is unavailable"
	}
}

func (o *Orchestrator) finish(span trace.Span, from mentor.Phase, res Result) {
	span.SetAttributes(
		attribute.String("mentor.outcome", string(res.Outcome)),
		attribute.String("mentor.next_phase", res.Phase.String()),
		attribute.Int("mentor.attempts", res.Attempts),
	)
	o.metrics.ObserveMentorReply(string(res.Outcome), res.Attempts)
	if from != res.Phase {
		o.metrics.IncPhaseTransition(from.String(), res.Phase.String())
	}
}
