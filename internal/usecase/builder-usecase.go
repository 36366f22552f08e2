package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/iamvkosarev/ai-widget-builder/config"
	"github.com/iamvkosarev/ai-widget-builder/internal/model"
	openai_tools "github.com/iamvkosarev/ai-widget-builder/pkg/openai-tools"
	"github.com/iamvkosarev/ai-widget-builder/pkg/widgetcode"
)

const StatusCancelled = "Generation cancelled"

type Generator interface {
	StreamGenerate(ctx context.Context, req model.GenerateRequest, onProgress func(text string)) (string, error)
}

type Critic interface {
	Critique(ctx context.Context, code, userPrompt string) model.CritiqueResult
}

type ProgressKind string

const (
	ProgressStream     = ProgressKind("stream")
	ProgressCritique   = ProgressKind("critique")
	ProgressCheckpoint = ProgressKind("checkpoint")
	ProgressStatus     = ProgressKind("status")
)

type ProgressEvent struct {
	Kind       ProgressKind
	State      model.State
	Iteration  int
	Text       string
	Critique   *model.CritiqueResult
	Checkpoint *model.IterationCheckpoint
	Status     string
}

type progressKey struct{}

// WithProgress attaches a progress handler to ctx. A Builder run started with
// that ctx reports its events to fn and to nobody else.
func WithProgress(ctx context.Context, fn func(ProgressEvent)) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

func progressFrom(ctx context.Context) func(ProgressEvent) {
	fn, _ := ctx.Value(progressKey{}).(func(ProgressEvent))
	return fn
}

type BuilderDeps struct {
	Generator Generator
	Critic    Critic
	Preview   PreviewSink
	Tokens    openai_tools.Counter
	Logger    *slog.Logger
}

// Builder drives one widget session through the clarify, build and refine
// phases. At most one pipeline runs at a time; a new Submit cancels the one
// in flight and waits for it to unwind before starting.
type Builder struct {
	BuilderDeps
	cfg config.Builder

	mu          sync.Mutex
	session     model.Session
	ledger      *Ledger
	running     chan struct{}
	cancel      context.CancelFunc
	onProgress  func(ProgressEvent)
	statusTimer *time.Timer
	statusSeq   uint64

	sandbox   *widgetcode.ErrorLog
	debouncer *PreviewDebouncer

	previewMu sync.Mutex
	rendered  string
}

type run struct {
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	onProgress func(ProgressEvent)
}

// sessionMark is what a cancelled pipeline restores.
type sessionMark struct {
	conversation   int
	ledger         LedgerMark
	code           string
	title          string
	originalPrompt string
	lastCritique   *model.CritiqueResult
	iteration      int
	extraFixes     int
}

type loopSpec struct {
	maxIterations  int
	critiquePrompt string
	fixContext     string
	history        []model.HistoryEntry
	label          func(iteration int) string
}

func NewBuilder(deps BuilderDeps, cfg config.Builder, session model.Session) *Builder {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if session.State.IsActive() {
		session.State = model.StateIdle
	}
	if session.Conversation == nil {
		session.Conversation = make([]model.ConversationMessage, 0)
	}
	b := &Builder{
		BuilderDeps: deps,
		cfg:         cfg,
		session:     session,
		ledger:      NewLedgerFrom(session.Checkpoints, session.ActiveCheckpoint),
		sandbox:     widgetcode.NewErrorLog(),
	}
	b.session.Checkpoints = b.ledger.Entries()
	b.session.ActiveCheckpoint = b.ledger.Active()
	b.session.Iteration = 0
	b.debouncer = NewPreviewDebouncer(PreviewFunc(b.render), cfg.PreviewDebounce)
	if code := session.Code; strings.TrimSpace(code) != "" {
		b.rendered = widgetcode.WrapForSandbox(code)
	}
	return b
}

func (b *Builder) SetAskFirst(askFirst bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session.AskFirst = askFirst
}

// SetTitle sets an explicit title; title inference is skipped afterwards.
func (b *Builder) SetTitle(title string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session.Title = strings.TrimSpace(title)
}

// HasWidget decides between a fresh build and a refinement: a session has a
// widget exactly when its live code buffer is not blank.
func (b *Builder) HasWidget() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hasWidgetLocked()
}

func (b *Builder) hasWidgetLocked() bool {
	return strings.TrimSpace(b.session.Code) != ""
}

func (b *Builder) IsGenerating() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running != nil
}

func (b *Builder) Snapshot() model.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Builder) snapshotLocked() model.Session {
	s := b.session
	s.Conversation = append(make([]model.ConversationMessage, 0, len(s.Conversation)), s.Conversation...)
	s.Checkpoints = b.ledger.Entries()
	s.ActiveCheckpoint = b.ledger.Active()
	if s.LastCritique != nil {
		critique := s.LastCritique.Clone()
		s.LastCritique = &critique
	}
	return s
}

// PreviewDocument is the sandbox-wrapped document last sent to the preview.
func (b *Builder) PreviewDocument() string {
	b.previewMu.Lock()
	defer b.previewMu.Unlock()
	return b.rendered
}

func (b *Builder) render(document string) {
	b.previewMu.Lock()
	b.rendered = document
	b.previewMu.Unlock()
	if b.Preview != nil {
		b.Preview.Render(document)
	}
}

func (b *Builder) flushPreview(code string) {
	if strings.TrimSpace(code) == "" {
		b.debouncer.Flush("")
		return
	}
	b.debouncer.Flush(widgetcode.WrapForSandbox(code))
}

// Submit runs one user turn: a clarifying question round, a fresh build or a
// refinement of the existing widget.
func (b *Builder) Submit(ctx context.Context, prompt string) (model.BuildResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return model.BuildResult{}, model.ErrEmptyPrompt
	}
	r, err := b.begin(ctx)
	if err != nil {
		return model.BuildResult{}, err
	}
	defer b.end(r)

	b.mu.Lock()
	mark := b.markLocked()
	firstMessage := len(b.session.Conversation) == 0
	last, hasLast := b.session.LastMessage()
	answeringClarify := hasLast && last.IsClarify()
	hasWidget := b.hasWidgetLocked()
	clarify := firstMessage && !hasWidget && b.session.AskFirst
	if firstMessage {
		b.session.OriginalPrompt = prompt
	}
	b.session.Conversation = append(b.session.Conversation, userMessage(prompt, b.cfg.SummaryLength))
	originalPrompt := b.session.OriginalPrompt
	b.mu.Unlock()

	var result model.BuildResult
	switch {
	case clarify:
		result, err = b.runClarify(r, prompt)
	case !hasWidget:
		effective := prompt
		if answeringClarify {
			effective = clarifiedPrompt(originalPrompt, prompt)
		}
		result, err = b.runBuild(r, effective)
	default:
		result, err = b.runRefine(r, prompt)
	}
	if err != nil {
		return model.BuildResult{}, b.fail(r, mark, prompt, err)
	}
	return result, nil
}

// Retry resubmits the prompt of the last failed turn.
func (b *Builder) Retry(ctx context.Context) (model.BuildResult, error) {
	b.mu.Lock()
	prompt := b.session.FailedPrompt
	b.mu.Unlock()
	if prompt == "" {
		return model.BuildResult{}, model.ErrNothingToRetry
	}
	return b.Submit(ctx, prompt)
}

func (b *Builder) runClarify(r *run, prompt string) (model.BuildResult, error) {
	var index int
	err := b.commit(r, func(s *model.Session) error {
		if err := b.transitionLocked(model.EventClarify); err != nil {
			return err
		}
		s.Conversation = append(s.Conversation, model.ConversationMessage{
			Role: model.MessageRoleAssistant,
			Type: model.MessageTypeClarify,
		})
		index = len(s.Conversation) - 1
		return nil
	})
	if err != nil {
		return model.BuildResult{}, err
	}

	req := model.GenerateRequest{
		Prompt:              prompt,
		Mode:                model.ModeClarify,
		ConversationHistory: make([]model.HistoryEntry, 0),
	}
	text, err := b.Generator.StreamGenerate(r.ctx, req, func(text string) {
		if b.commit(r, func(s *model.Session) error {
			s.Conversation[index].Content = text
			return nil
		}) == nil {
			b.emit(r, ProgressEvent{Kind: ProgressStream, State: model.StateClarifying, Text: text})
		}
	})
	if err != nil {
		return model.BuildResult{}, err
	}

	err = b.commit(r, func(s *model.Session) error {
		s.Conversation[index].Content = text
		s.UpdatedAt = time.Now()
		s.LastError = ""
		s.FailedPrompt = ""
		return b.transitionLocked(model.EventClarifyDone)
	})
	if err != nil {
		return model.BuildResult{}, err
	}
	return model.BuildResult{Outcome: model.OutcomeClarify, Questions: text}, nil
}

func (b *Builder) runBuild(r *run, prompt string) (model.BuildResult, error) {
	var originalPrompt string
	err := b.commit(r, func(s *model.Session) error {
		if err := b.transitionLocked(model.EventBuild); err != nil {
			return err
		}
		b.ledger.Reset()
		s.Checkpoints = b.ledger.Entries()
		s.ActiveCheckpoint = model.NoActiveCheckpoint
		s.LastCritique = nil
		s.ExtraFixes = 0
		s.Iteration = 1
		originalPrompt = s.OriginalPrompt
		return nil
	})
	if err != nil {
		return model.BuildResult{}, err
	}

	code, err := b.generate(r, 1, model.GenerateRequest{
		Prompt:              prompt,
		Mode:                model.ModeGenerate,
		ConversationHistory: make([]model.HistoryEntry, 0),
		OriginalPrompt:      originalPrompt,
	})
	if err != nil {
		return model.BuildResult{}, err
	}

	code, critique, err := b.iterate(r, code, loopSpec{
		maxIterations:  b.cfg.MaxBuildIterations,
		critiquePrompt: prompt,
		fixContext:     prompt,
		history:        make([]model.HistoryEntry, 0),
		label:          buildLabel,
	})
	if err != nil {
		return model.BuildResult{}, err
	}
	return b.finish(r, code, critique)
}

func (b *Builder) runRefine(r *run, prompt string) (model.BuildResult, error) {
	var currentCode, originalPrompt string
	var history []model.HistoryEntry
	err := b.commit(r, func(s *model.Session) error {
		if err := b.transitionLocked(model.EventRefine); err != nil {
			return err
		}
		s.ExtraFixes = 0
		s.Iteration = 1
		currentCode = s.Code
		originalPrompt = s.OriginalPrompt
		// The turn being answered travels as the prompt, not as history.
		history = historyFor(s.Conversation[:len(s.Conversation)-1])
		return nil
	})
	if err != nil {
		return model.BuildResult{}, err
	}
	history, trimmed := trimHistory(history, b.cfg.HistoryTokenLimit, b.Tokens)
	if trimmed {
		b.Logger.Info("refine history trimmed to token budget", "entries", len(history))
	}

	code, err := b.generate(r, 1, model.GenerateRequest{
		Prompt:              prompt,
		Mode:                model.ModeRefine,
		ConversationHistory: history,
		CurrentCode:         currentCode,
		OriginalPrompt:      originalPrompt,
	})
	if err != nil {
		return model.BuildResult{}, err
	}

	code, critique, err := b.iterate(r, code, loopSpec{
		maxIterations:  b.cfg.MaxRefineIterations,
		critiquePrompt: refineCritiquePrompt(originalPrompt, prompt),
		fixContext:     prompt,
		history:        history,
		label:          refineLabel,
	})
	if err != nil {
		return model.BuildResult{}, err
	}
	return b.finish(r, code, critique)
}

// iterate runs critique rounds on code, fixing between rounds, until the
// verdict settles or the iteration budget is spent. Every round leaves one
// checkpoint.
func (b *Builder) iterate(r *run, code string, spec loopSpec) (string, model.CritiqueResult, error) {
	iteration := 1
	for {
		critique, err := b.critiqueRound(r, code, iteration, spec.critiquePrompt, spec.label(iteration))
		if err != nil {
			return "", model.CritiqueResult{}, err
		}
		if critique.Settled() || iteration >= spec.maxIterations {
			return code, critique, nil
		}
		iteration++
		code, err = b.fix(r, iteration, code, critique, spec)
		if err != nil {
			return "", model.CritiqueResult{}, err
		}
	}
}

func (b *Builder) critiqueRound(
	r *run,
	code string,
	iteration int,
	critiquePrompt string,
	label string,
) (model.CritiqueResult, error) {
	err := b.commit(r, func(s *model.Session) error {
		s.Iteration = iteration
		return b.transitionLocked(model.EventCritique)
	})
	if err != nil {
		return model.CritiqueResult{}, err
	}

	b.emit(r, ProgressEvent{Kind: ProgressCritique, State: model.StateIteratingQA, Iteration: iteration})
	critique := b.Critic.Critique(r.ctx, code, critiquePrompt)
	if critique.Unavailable() {
		b.Logger.Warn("widget round not verified", "iteration", iteration)
	}

	var checkpoint model.IterationCheckpoint
	err = b.commit(r, func(s *model.Session) error {
		stored := critique.Clone()
		s.LastCritique = &stored
		checkpoint = b.ledger.Append(code, iteration, critique, label)
		s.Checkpoints = b.ledger.Entries()
		s.ActiveCheckpoint = model.NoActiveCheckpoint
		return nil
	})
	if err != nil {
		return model.CritiqueResult{}, err
	}
	b.emit(r, ProgressEvent{
		Kind:       ProgressCheckpoint,
		State:      model.StateIteratingQA,
		Iteration:  iteration,
		Critique:   &critique,
		Checkpoint: &checkpoint,
	})
	return critique, nil
}

func (b *Builder) fix(
	r *run,
	iteration int,
	code string,
	critique model.CritiqueResult,
	spec loopSpec,
) (string, error) {
	var originalPrompt string
	err := b.commit(r, func(s *model.Session) error {
		s.Iteration = iteration
		originalPrompt = s.OriginalPrompt
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.generate(r, iteration, model.GenerateRequest{
		Prompt:              fixPrompt(spec.fixContext, critique),
		Mode:                model.ModeRefine,
		ConversationHistory: spec.history,
		CurrentCode:         code,
		OriginalPrompt:      originalPrompt,
	})
}

// generate streams one request into the live preview and commits the
// extracted document as the session code.
func (b *Builder) generate(r *run, iteration int, req model.GenerateRequest) (string, error) {
	raw, err := b.Generator.StreamGenerate(r.ctx, req, func(text string) {
		if r.ctx.Err() != nil {
			return
		}
		if partial := widgetcode.Normalize(text); partial != "" {
			b.debouncer.Update(widgetcode.WrapForSandbox(partial))
		}
		b.emit(r, ProgressEvent{Kind: ProgressStream, State: b.state(), Iteration: iteration, Text: text})
	})
	if err != nil {
		return "", err
	}
	code := widgetcode.Normalize(raw)
	if code == "" {
		return "", model.ErrNoCode
	}
	err = b.commit(r, func(s *model.Session) error {
		s.Code = code
		return nil
	})
	if err != nil {
		return "", err
	}
	b.flushPreview(code)
	return code, nil
}

func (b *Builder) finish(r *run, code string, critique model.CritiqueResult) (model.BuildResult, error) {
	var result model.BuildResult
	err := b.commit(r, func(s *model.Session) error {
		if s.Title == "" {
			s.Title = inferTitle(code, s.OriginalPrompt)
		}
		s.Conversation = append(s.Conversation, model.ConversationMessage{
			Role:    model.MessageRoleAssistant,
			Content: code,
			Summary: completionSummary(critique, s.Iteration),
			Type:    model.MessageTypeCode,
		})
		s.View = model.ViewPreview
		s.LastError = ""
		s.FailedPrompt = ""
		s.UpdatedAt = time.Now()
		result = b.resultLocked(critique)
		return b.transitionLocked(model.EventComplete)
	})
	if err != nil {
		return model.BuildResult{}, err
	}
	b.sandbox.Clear()
	b.flushPreview(code)
	return result, nil
}

func (b *Builder) resultLocked(critique model.CritiqueResult) model.BuildResult {
	outcome := outcomeOf(critique)
	return model.BuildResult{
		Outcome:     outcome,
		Score:       critique.Score,
		Issues:      critique.Clone().Issues,
		Code:        b.session.Code,
		Title:       b.session.Title,
		Checkpoints: b.ledger.Len(),
		CanFixMore:  outcome == model.OutcomeIssuesRemaining && b.session.ExtraFixes < b.cfg.MaxExtraFixes,
	}
}

// CanFixRemaining reports whether FixRemainingIssues would run.
func (b *Builder) CanFixRemaining() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.canFixRemainingLocked()
}

func (b *Builder) canFixRemainingLocked() bool {
	return b.running == nil && b.extraFixAvailableLocked()
}

func (b *Builder) extraFixAvailableLocked() bool {
	lc := b.session.LastCritique
	return b.hasWidgetLocked() &&
		lc != nil &&
		outcomeOf(*lc) == model.OutcomeIssuesRemaining &&
		b.session.ExtraFixes < b.cfg.MaxExtraFixes
}

// FixRemainingIssues spends one extra fix round on the actionable issues the
// last run left behind.
func (b *Builder) FixRemainingIssues(ctx context.Context) (model.BuildResult, error) {
	b.mu.Lock()
	if b.running != nil {
		b.mu.Unlock()
		return model.BuildResult{}, model.ErrBusy
	}
	if !b.canFixRemainingLocked() {
		b.mu.Unlock()
		return model.BuildResult{}, model.ErrNoExtraFix
	}
	b.mu.Unlock()

	r, err := b.begin(ctx)
	if err != nil {
		return model.BuildResult{}, err
	}
	defer b.end(r)

	var (
		code, critiquePrompt string
		lastCritique         model.CritiqueResult
		history              []model.HistoryEntry
		round                int
	)
	b.mu.Lock()
	mark := b.markLocked()
	b.mu.Unlock()
	err = b.commit(r, func(s *model.Session) error {
		if !b.extraFixAvailableLocked() {
			return model.ErrNoExtraFix
		}
		if err := b.transitionLocked(model.EventExtraFix); err != nil {
			return err
		}
		code = s.Code
		lastCritique = s.LastCritique.Clone()
		critiquePrompt = s.OriginalPrompt
		history = historyFor(s.Conversation)
		round = s.ExtraFixes + 1
		s.Iteration = round
		return nil
	})
	if errors.Is(err, model.ErrNoExtraFix) {
		return model.BuildResult{}, err
	}
	if err != nil {
		return model.BuildResult{}, b.fail(r, mark, "", err)
	}
	history, _ = trimHistory(history, b.cfg.HistoryTokenLimit, b.Tokens)

	code, err = b.fix(r, round, code, lastCritique, loopSpec{
		fixContext: critiquePrompt,
		history:    history,
	})
	if err != nil {
		return model.BuildResult{}, b.fail(r, mark, "", err)
	}
	critique, err := b.critiqueRound(r, code, round, critiquePrompt, fmt.Sprintf("Extra fix %d", round))
	if err != nil {
		return model.BuildResult{}, b.fail(r, mark, "", err)
	}

	var result model.BuildResult
	err = b.commit(r, func(s *model.Session) error {
		s.ExtraFixes = round
		s.UpdatedAt = time.Now()
		s.LastError = ""
		result = b.resultLocked(critique)
		return b.transitionLocked(model.EventComplete)
	})
	if err != nil {
		return model.BuildResult{}, b.fail(r, mark, "", err)
	}
	b.sandbox.Clear()
	b.flushPreview(code)
	return result, nil
}

// Abort cancels the pipeline in flight. It reports false when nothing runs.
func (b *Builder) Abort() bool {
	b.mu.Lock()
	if b.running == nil || b.cancel == nil {
		b.mu.Unlock()
		return false
	}
	b.cancel()
	if next, err := model.Transition(b.session.State, model.EventCancel); err == nil {
		b.session.State = next
	}
	b.session.Iteration = 0
	b.setStatusLocked(StatusCancelled)
	state := b.session.State
	handler := b.onProgress
	b.mu.Unlock()

	b.debouncer.Cancel()
	if handler != nil {
		handler(ProgressEvent{Kind: ProgressStatus, State: state, Status: StatusCancelled})
	}
	return true
}

// StartOver cancels anything in flight and resets the session to an empty
// idle one, keeping its identity and the ask-first preference.
func (b *Builder) StartOver() {
	b.mu.Lock()
	for b.running != nil {
		done := b.running
		b.cancel()
		b.mu.Unlock()
		<-done
		b.mu.Lock()
	}
	fresh := model.NewSession(b.session.ChatID, b.session.AskFirst)
	fresh.ID = b.session.ID
	b.session = fresh
	b.ledger.Reset()
	if b.statusTimer != nil {
		b.statusTimer.Stop()
		b.statusTimer = nil
	}
	b.statusSeq++
	b.mu.Unlock()

	b.sandbox.Clear()
	b.debouncer.Cancel()
	b.flushPreview("")
}

// RestoreCheckpoint makes checkpoint index the live code and critique. The
// ledger keeps every entry, so later checkpoints stay reachable.
func (b *Builder) RestoreCheckpoint(index int) (model.IterationCheckpoint, error) {
	b.mu.Lock()
	if b.running != nil {
		b.mu.Unlock()
		return model.IterationCheckpoint{}, model.ErrBusy
	}
	checkpoint, ok := b.ledger.Restore(index)
	if !ok {
		b.mu.Unlock()
		return model.IterationCheckpoint{}, model.ErrCheckpointOutOfRange
	}
	critique := checkpoint.Critique()
	b.session.Code = checkpoint.Code
	b.session.LastCritique = &critique
	b.session.ActiveCheckpoint = index
	b.session.UpdatedAt = time.Now()
	b.mu.Unlock()

	b.flushPreview(checkpoint.Code)
	return checkpoint, nil
}

// ReportSandboxMessage accepts a raw message from the preview frame.
func (b *Builder) ReportSandboxMessage(raw []byte) bool {
	return b.sandbox.Record(raw)
}

func (b *Builder) SandboxErrors() []string {
	return b.sandbox.Entries()
}

// FixSandboxErrors submits the recorded runtime errors as the next turn.
func (b *Builder) FixSandboxErrors(ctx context.Context) (model.BuildResult, error) {
	prompt := b.sandbox.FixPrompt()
	if prompt == "" {
		return model.BuildResult{}, model.ErrNoSandboxErrors
	}
	return b.Submit(ctx, prompt)
}

// Close stops timers and cancels the pipeline in flight.
func (b *Builder) Close() {
	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	if b.statusTimer != nil {
		b.statusTimer.Stop()
		b.statusTimer = nil
	}
	b.mu.Unlock()
	b.debouncer.Stop()
}

func (b *Builder) begin(parent context.Context) (*run, error) {
	b.mu.Lock()
	for b.running != nil {
		done := b.running
		b.cancel()
		b.mu.Unlock()
		select {
		case <-done:
		case <-parent.Done():
			return nil, model.ErrAborted
		}
		b.mu.Lock()
	}
	ctx, cancel := context.WithCancel(parent)
	r := &run{ctx: ctx, cancel: cancel, done: make(chan struct{}), onProgress: progressFrom(parent)}
	b.running = r.done
	b.cancel = cancel
	b.onProgress = r.onProgress
	b.mu.Unlock()
	return r, nil
}

func (b *Builder) end(r *run) {
	r.cancel()
	b.mu.Lock()
	if b.running == r.done {
		b.running = nil
		b.cancel = nil
		b.onProgress = nil
	}
	b.mu.Unlock()
	close(r.done)
}

// commit applies fn to the session unless the run was cancelled.
func (b *Builder) commit(r *run, fn func(s *model.Session) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r.ctx.Err() != nil {
		return model.ErrAborted
	}
	return fn(&b.session)
}

func (b *Builder) markLocked() sessionMark {
	mark := sessionMark{
		conversation:   len(b.session.Conversation),
		ledger:         b.ledger.Mark(),
		code:           b.session.Code,
		title:          b.session.Title,
		originalPrompt: b.session.OriginalPrompt,
		iteration:      b.session.Iteration,
		extraFixes:     b.session.ExtraFixes,
	}
	if b.session.LastCritique != nil {
		critique := b.session.LastCritique.Clone()
		mark.lastCritique = &critique
	}
	return mark
}

// fail settles a pipeline that returned err. Cancellation undoes everything
// the pipeline added; any other error drops the turn's user message and keeps
// the prompt for a retry.
func (b *Builder) fail(r *run, mark sessionMark, prompt string, err error) error {
	if errors.Is(err, model.ErrAborted) || r.ctx.Err() != nil {
		b.mu.Lock()
		b.session.Conversation = b.session.Conversation[:mark.conversation]
		b.rollbackLocked(mark)
		b.session.OriginalPrompt = mark.originalPrompt
		b.session.Iteration = 0
		if next, tErr := model.Transition(b.session.State, model.EventCancel); tErr == nil {
			b.session.State = next
		}
		code := b.session.Code
		b.mu.Unlock()

		b.debouncer.Cancel()
		b.flushPreview(code)
		return model.ErrAborted
	}

	message := err.Error()
	var genErr *model.GenerationError
	if errors.As(err, &genErr) {
		message = genErr.Message
	}
	b.Logger.Error("widget generation failed", "session_id", b.sessionID(), "error", err)

	b.mu.Lock()
	if len(b.session.Conversation) > mark.conversation {
		b.session.Conversation = b.session.Conversation[:mark.conversation]
	}
	if mark.conversation == 0 {
		b.session.OriginalPrompt = mark.originalPrompt
	}
	// A failed first build leaves no widget behind, so the retry builds again.
	rebuild := strings.TrimSpace(mark.code) == ""
	if rebuild {
		b.rollbackLocked(mark)
	}
	code := b.session.Code
	b.session.LastError = message
	if prompt != "" {
		b.session.FailedPrompt = prompt
	}
	b.session.Iteration = 0
	if next, tErr := model.Transition(b.session.State, model.EventFail); tErr == nil {
		b.session.State = next
	}
	b.mu.Unlock()

	b.debouncer.Cancel()
	if rebuild {
		b.flushPreview(code)
	}
	return fmt.Errorf("failed to generate widget: %w", err)
}

// rollbackLocked puts back the widget, its checkpoints and its critique as
// they were at mark.
func (b *Builder) rollbackLocked(mark sessionMark) {
	b.ledger.Rollback(mark.ledger)
	b.session.Checkpoints = b.ledger.Entries()
	b.session.ActiveCheckpoint = b.ledger.Active()
	b.session.Code = mark.code
	b.session.Title = mark.title
	b.session.LastCritique = mark.lastCritique
	b.session.ExtraFixes = mark.extraFixes
}

func (b *Builder) transitionLocked(event model.Event) error {
	next, err := model.Transition(b.session.State, event)
	if err != nil {
		return err
	}
	b.session.State = next
	return nil
}

func (b *Builder) state() model.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session.State
}

func (b *Builder) sessionID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session.ID.String()
}

func (b *Builder) setStatusLocked(status string) {
	b.session.Status = status
	b.statusSeq++
	seq := b.statusSeq
	if b.statusTimer != nil {
		b.statusTimer.Stop()
	}
	b.statusTimer = time.AfterFunc(b.cfg.StatusClearDelay, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.statusSeq == seq {
			b.session.Status = ""
			b.statusTimer = nil
		}
	})
}

// emit reports event to the handler of r. Events of a cancelled run are
// dropped.
func (b *Builder) emit(r *run, event ProgressEvent) {
	if r.onProgress == nil || r.ctx.Err() != nil {
		return
	}
	r.onProgress(event)
}
