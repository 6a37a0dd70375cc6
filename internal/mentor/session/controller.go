package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yungbote/eduai-mentor/internal/codegen"
	"github.com/yungbote/eduai-mentor/internal/domain/mentor"
	"github.com/yungbote/eduai-mentor/internal/mentor/orchestrator"
	"github.com/yungbote/eduai-mentor/internal/observability"
	"github.com/yungbote/eduai-mentor/internal/platform/logger"
	"github.com/yungbote/eduai-mentor/internal/transcript"
)

// Replier produces one mentor reply. *orchestrator.Orchestrator implements it.
type Replier interface {
	ObtainReply(ctx context.Context, req orchestrator.Request) (orchestrator.Result, error)
}

// Emitter accepts transcript events without blocking. *transcript.Worker implements it.
type Emitter interface {
	Emit(events ...transcript.Event) bool
}

type Options struct {
	HistoryWindow     int
	CredentialPresent bool
	PromptMaxBytes    int
	Now               func() time.Time
}

type Controller struct {
	store   Store
	replier Replier
	coder   codegen.Generator
	sink    Emitter
	metrics *observability.Metrics
	log     *logger.Logger
	locks   *keyedMutex
	opts    Options
}

func NewController(store Store, replier Replier, coder codegen.Generator, sink Emitter, metrics *observability.Metrics, baseLog *logger.Logger, opts Options) *Controller {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 10
	}
	if opts.PromptMaxBytes <= 0 {
		opts.PromptMaxBytes = 2000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Controller{
		store:   store,
		replier: replier,
		coder:   coder,
		sink:    sink,
		metrics: metrics,
		log:     baseLog.With("service", "SessionController"),
		locks:   newKeyedMutex(),
		opts:    opts,
	}
}

type Submission struct {
	Text          string
	AttachmentRef string
	// Phase overrides the session's current phase when set.
	Phase string
	Topic string
}

type LedgerView struct {
	Points   int         `json:"points"`
	Attempts int         `json:"attempts"`
	Tier     mentor.Tier `json:"tier"`
}

func ledgerView(l mentor.Ledger) LedgerView {
	return LedgerView{Points: l.Points, Attempts: l.Attempts, Tier: l.Tier()}
}

type Reply struct {
	Reply    string               `json:"reply"`
	Phase    mentor.Phase         `json:"phase"`
	Progress int                  `json:"progress"`
	Outcome  orchestrator.Outcome `json:"outcome,omitempty"`
	Ledger   LedgerView           `json:"ledger"`
	// Skipped is set when the submission was empty and there was nothing to continue.
	Skipped bool `json:"skipped,omitempty"`
}

type View struct {
	ID       string        `json:"id"`
	Phase    mentor.Phase  `json:"phase"`
	Progress int           `json:"progress"`
	Topic    string        `json:"topic"`
	Turns    []mentor.Turn `json:"turns"`
	Ledger   LedgerView    `json:"ledger"`
}

func (c *Controller) load(ctx context.Context, id string) (*mentor.SessionState, error) {
	st, err := c.store.Get(ctx, id)
	if errors.Is(err, mentor.ErrSessionNotFound) {
		return mentor.NewSessionState(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if st.Transcript == nil {
		st.Transcript = mentor.NewTranscript()
	}
	if !st.CurrentPhase.Valid() {
		st.CurrentPhase = mentor.PhaseElicitation
	}
	return st, nil
}

// Submit runs one student turn through the mentor and records the result.
func (c *Controller) Submit(ctx context.Context, sessionID string, sub Submission) (Reply, error) {
	unlock := c.locks.Lock(sessionID)
	defer unlock()

	st, err := c.load(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}
	phase, err := mentor.ParsePhaseOr(sub.Phase, st.CurrentPhase)
	if err != nil {
		return Reply{}, err
	}
	topic := strings.TrimSpace(sub.Topic)
	if topic == "" {
		topic = st.Topic
	}

	text := strings.TrimSpace(sub.Text)
	ref := strings.TrimSpace(sub.AttachmentRef)
	hasContent := text != "" || ref != ""
	if !hasContent && st.Transcript.Len() == 0 {
		return Reply{Phase: st.CurrentPhase, Progress: st.CurrentPhase.Progress(), Ledger: ledgerView(st.Ledger), Skipped: true}, nil
	}

	now := c.opts.Now()
	var events []transcript.Event
	if hasContent {
		turn := mentor.NewTurn(mentor.RoleStudent, mentor.ComposeStudentContent(text, ref), phase, ref, now)
		st.Transcript.Append(turn)
		events = append(events, transcript.FromTurn(sessionID, turn))
	}

	res, err := c.replier.ObtainReply(ctx, orchestrator.Request{
		Phase:             phase,
		Topic:             topic,
		Window:            st.Transcript.RecentWindow(c.opts.HistoryWindow),
		CredentialPresent: c.opts.CredentialPresent,
	})
	if err != nil {
		return Reply{}, err
	}
	// Nobody receives a cancelled reply, so the stored session stays as it was.
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(res.Err, context.Canceled) {
		return Reply{}, fmt.Errorf("submit cancelled: %w", context.Canceled)
	}

	before := st.Ledger.Points
	st.Ledger.RecordAttempt(hasContent)
	c.metrics.AddLedgerPoints(st.Ledger.Points - before)

	mentorTurn := mentor.NewTurn(mentor.RoleMentor, res.Reply, res.Phase, "", c.opts.Now())
	st.Transcript.Append(mentorTurn)
	events = append(events, transcript.FromTurn(sessionID, mentorTurn))

	st.CurrentPhase = res.Phase
	st.Topic = topic
	st.UpdatedAt = now.UTC()
	if err := c.store.Put(ctx, st); err != nil {
		return Reply{}, fmt.Errorf("save session: %w", err)
	}
	c.emit(events...)

	c.log.Info("mentor turn",
		"session_id", sessionID,
		"phase", phase.String(),
		"next_phase", res.Phase.String(),
		"outcome", string(res.Outcome),
		"attempts", res.Attempts,
	)
	return Reply{
		Reply:    res.Reply,
		Phase:    res.Phase,
		Progress: res.Phase.Progress(),
		Outcome:  res.Outcome,
		Ledger:   ledgerView(st.Ledger),
	}, nil
}

// Converse answers a caller-supplied history without touching stored state.
func (c *Controller) Converse(ctx context.Context, history []mentor.Turn, phase mentor.Phase, topic string) (Reply, error) {
	t := mentor.NewTranscript(history...)
	if strings.TrimSpace(topic) == "" {
		topic = mentor.DefaultTopic
	}
	res, err := c.replier.ObtainReply(ctx, orchestrator.Request{
		Phase:             phase,
		Topic:             topic,
		Window:            t.RecentWindow(c.opts.HistoryWindow),
		CredentialPresent: c.opts.CredentialPresent,
	})
	if err != nil {
		return Reply{}, err
	}
	return Reply{Reply: res.Reply, Phase: res.Phase, Progress: res.Phase.Progress(), Outcome: res.Outcome}, nil
}

type CodeRequest struct {
	Prompt   string
	Language string
}

type CodeResult struct {
	Code     string           `json:"code"`
	Language codegen.Language `json:"language"`
	Ledger   *LedgerView      `json:"ledger,omitempty"`
	Err      error            `json:"-"`
}

// GenerateCode asks the code collaborator for a solution. Failures come back in-band as a
// source comment in Code, with Err set; the returned error is reserved for storage faults.
func (c *Controller) GenerateCode(ctx context.Context, sessionID string, req CodeRequest) (CodeResult, error) {
	unlock := c.locks.Lock(sessionID)
	defer unlock()

	st, err := c.load(ctx, sessionID)
	if err != nil {
		return CodeResult{}, err
	}
	lang := codegen.ParseLanguage(req.Language)
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = tailBytes(joinContents(st.Transcript.Turns()), c.opts.PromptMaxBytes)
	}

	code, genErr := c.generate(ctx, prompt, lang)
	if genErr != nil {
		lv := ledgerView(st.Ledger)
		return CodeResult{Code: codegen.CommentForError(genErr), Language: lang, Ledger: &lv, Err: genErr}, nil
	}

	st.Ledger.RecordCodeGenerationSuccess()
	c.metrics.AddLedgerPoints(mentor.CodeReward)
	turn := mentor.NewTurn(mentor.RoleMentor, "```"+string(lang)+"\n"+code+"\n```", mentor.PhaseAnswer, "", c.opts.Now())
	st.Transcript.Append(turn)
	st.UpdatedAt = c.opts.Now().UTC()
	if err := c.store.Put(ctx, st); err != nil {
		return CodeResult{}, fmt.Errorf("save session: %w", err)
	}
	c.emit(transcript.FromTurn(sessionID, turn))

	lv := ledgerView(st.Ledger)
	return CodeResult{Code: code, Language: lang, Ledger: &lv}, nil
}

// Code generates a solution for a caller-supplied prompt without touching stored state.
func (c *Controller) Code(ctx context.Context, req CodeRequest) CodeResult {
	lang := codegen.ParseLanguage(req.Language)
	code, err := c.generate(ctx, strings.TrimSpace(req.Prompt), lang)
	if err != nil {
		return CodeResult{Code: codegen.CommentForError(err), Language: lang, Err: err}
	}
	return CodeResult{Code: code, Language: lang}
}

func (c *Controller) generate(ctx context.Context, prompt string, lang codegen.Language) (string, error) {
	if c.coder == nil {
		c.metrics.IncCodegen(string(lang), false)
		return "", codegen.ErrMissingCredential
	}
	code, err := c.coder.Generate(ctx, prompt, lang)
	if err == nil && strings.TrimSpace(code) == "" {
		err = errors.New("empty code generation result")
	}
	c.metrics.IncCodegen(string(lang), err == nil)
	if err != nil {
		c.log.Warn("code generation failed", "language", string(lang), "error", err)
		return "", err
	}
	return code, nil
}

// Reset clears the dialogue and phase. Points and attempts carry over.
func (c *Controller) Reset(ctx context.Context, sessionID string) (View, error) {
	unlock := c.locks.Lock(sessionID)
	defer unlock()

	st, err := c.load(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	st.Reset()
	st.UpdatedAt = c.opts.Now().UTC()
	if err := c.store.Put(ctx, st); err != nil {
		return View{}, fmt.Errorf("save session: %w", err)
	}
	return viewOf(st), nil
}

func (c *Controller) Snapshot(ctx context.Context, sessionID string) (View, error) {
	unlock := c.locks.Lock(sessionID)
	defer unlock()

	st, err := c.load(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	return viewOf(st), nil
}

func viewOf(st *mentor.SessionState) View {
	return View{
		ID:       st.ID,
		Phase:    st.CurrentPhase,
		Progress: st.CurrentPhase.Progress(),
		Topic:    st.Topic,
		Turns:    st.Transcript.Turns(),
		Ledger:   ledgerView(st.Ledger),
	}
}

func (c *Controller) emit(events ...transcript.Event) {
	if c.sink == nil || len(events) == 0 {
		return
	}
	c.sink.Emit(events...)
}

func joinContents(turns []mentor.Turn) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		parts = append(parts, t.Content)
	}
	return strings.Join(parts, "\n")
}

// tailBytes keeps at most n trailing bytes of s without splitting a rune.
func tailBytes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}
