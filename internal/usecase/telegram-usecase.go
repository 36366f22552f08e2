package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/google/uuid"
	"github.com/iamvkosarev/ai-widget-builder/config"
	"github.com/iamvkosarev/ai-widget-builder/internal/model"
	"github.com/iamvkosarev/ai-widget-builder/pkg/local"
	"github.com/sourcegraph/conc"
)

const (
	CommandStart       = "start"
	CommandHelp        = "help"
	CommandNew         = "new"
	CommandAsk         = "ask"
	CommandCancel      = "cancel"
	CommandFix         = "fix"
	CommandRetry       = "retry"
	CommandCheckpoints = "checkpoints"
	CommandRestore     = "restore"
	CommandErrors      = "errors"

	maxTelegramMessageLength = 4000
)

type TelegramUsecaseDeps struct {
	Bot        *api.BotAPI
	Sessions   *SessionUsecase
	PreviewURL func(sessionID uuid.UUID) string
	Logger     *slog.Logger
}

type TelegramUsecase struct {
	TelegramUsecaseDeps
	cfg          config.Telegram
	allowedUsers map[int64]struct{}
}

type pipeline func(ctx context.Context, b *Builder) (model.BuildResult, error)

func NewTelegramUsecase(cfg config.Telegram, deps TelegramUsecaseDeps) (*TelegramUsecase, error) {
	allowedUsers := make(map[int64]struct{})
	for _, userID := range cfg.AllowedTelegramID {
		allowedUsers[userID] = struct{}{}
	}

	_, err := deps.Bot.Request(
		api.NewSetMyCommands(
			[]api.BotCommand{
				{Command: CommandHelp, Description: "Get help"},
				{Command: CommandNew, Description: "Start a new widget, optionally with a title"},
				{Command: CommandAsk, Description: "Toggle questions before the first build"},
				{Command: CommandCancel, Description: "Stop the current generation"},
				{Command: CommandFix, Description: "One more fix round"},
				{Command: CommandRetry, Description: "Repeat the last failed request"},
				{Command: CommandCheckpoints, Description: "List saved versions"},
				{Command: CommandRestore, Description: "Switch to a saved version"},
				{Command: CommandErrors, Description: "Fix errors reported by the preview"},
			}...,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set bot commands: %w", err)
	}

	return &TelegramUsecase{
		TelegramUsecaseDeps: deps,
		cfg:                 cfg,
		allowedUsers:        allowedUsers,
	}, nil
}

// Run consumes updates until ctx is done. Messages are handled concurrently so
// that /cancel reaches a chat whose build is still running.
func (t *TelegramUsecase) Run(ctx context.Context) error {
	u := api.NewUpdate(0)
	u.Timeout = 60

	updates := t.Bot.GetUpdatesChan(u)
	wg := conc.NewWaitGroup()
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			t.Bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			wg.Go(
				func() {
					if err := t.handleMessage(ctx, update.Message); err != nil {
						t.Logger.Error("error handling message", "chat_id", update.Message.Chat.ID, "error", err)
					}
				},
			)
		}
	}
}

func (t *TelegramUsecase) handleMessage(ctx context.Context, message *api.Message) error {
	chatID := message.Chat.ID
	lang := local.Eng
	if message.From != nil {
		lang = local.ParseLanguage(message.From.LanguageCode)
	}

	if t.cfg.IsNotPublic {
		if _, ok := t.allowedUsers[chatID]; !ok {
			t.sendMessageAndHandleErr(chatID, MessageUserNoAccess.Text(lang))
			return nil
		}
	}

	if message.IsCommand() {
		return t.handleCommand(ctx, chatID, lang, message.Command(), message.CommandArguments())
	}

	text := strings.TrimSpace(message.Text)
	if text == "" {
		return nil
	}
	return t.runPipeline(
		ctx, chatID, lang, func(ctx context.Context, b *Builder) (model.BuildResult, error) {
			return b.Submit(ctx, text)
		},
	)
}

func (t *TelegramUsecase) handleCommand(
	ctx context.Context,
	chatID int64,
	lang local.Language,
	command string,
	args string,
) error {
	switch command {
	case CommandStart:
		t.sendMessageAndHandleErr(chatID, MessageCommandStart.Text(lang))
	case CommandHelp:
		t.sendMessageAndHandleErr(chatID, MessageCommandHelp.Text(lang))
	case CommandNew:
		b, err := t.Sessions.Reset(ctx, chatID)
		if err != nil {
			t.sendMessageAndHandleErr(chatID, MessageServerError.Text(lang))
			return fmt.Errorf("failed to reset session: %w", err)
		}
		if title := strings.TrimSpace(args); title != "" {
			b.SetTitle(title)
			t.save(ctx, b)
		}
		t.sendMessageAndHandleErr(chatID, MessageStartedOver.Text(lang))
	case CommandAsk:
		b, err := t.builder(ctx, chatID, lang)
		if err != nil {
			return err
		}
		askFirst := !b.Snapshot().AskFirst
		b.SetAskFirst(askFirst)
		t.save(ctx, b)
		if askFirst {
			t.sendMessageAndHandleErr(chatID, MessageAskFirstOn.Text(lang))
		} else {
			t.sendMessageAndHandleErr(chatID, MessageAskFirstOff.Text(lang))
		}
	case CommandCancel:
		b, err := t.builder(ctx, chatID, lang)
		if err != nil {
			return err
		}
		if !b.Abort() {
			t.sendMessageAndHandleErr(chatID, MessageNothingToCancel.Text(lang))
		}
	case CommandFix:
		return t.runPipeline(
			ctx, chatID, lang, func(ctx context.Context, b *Builder) (model.BuildResult, error) {
				return b.FixRemainingIssues(ctx)
			},
		)
	case CommandRetry:
		return t.runPipeline(
			ctx, chatID, lang, func(ctx context.Context, b *Builder) (model.BuildResult, error) {
				return b.Retry(ctx)
			},
		)
	case CommandCheckpoints:
		b, err := t.builder(ctx, chatID, lang)
		if err != nil {
			return err
		}
		t.sendMessageAndHandleErr(chatID, prepareCheckpoints(b.Snapshot(), lang))
	case CommandRestore:
		return t.restore(ctx, chatID, lang, args)
	case CommandErrors:
		b, err := t.builder(ctx, chatID, lang)
		if err != nil {
			return err
		}
		sandboxErrors := b.SandboxErrors()
		if len(sandboxErrors) == 0 {
			t.sendMessageAndHandleErr(chatID, MessageNoSandboxErrors.Text(lang))
			return nil
		}
		t.sendMessageAndHandleErr(chatID, MessageSandboxErrorsFormat.Format(lang, len(sandboxErrors)))
		return t.runPipeline(
			ctx, chatID, lang, func(ctx context.Context, b *Builder) (model.BuildResult, error) {
				return b.FixSandboxErrors(ctx)
			},
		)
	default:
		t.sendMessageAndHandleErr(chatID, MessageCommandUnknown.Text(lang))
	}
	return nil
}

func (t *TelegramUsecase) restore(ctx context.Context, chatID int64, lang local.Language, args string) error {
	number, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		t.sendMessageAndHandleErr(chatID, MessageRestoreUsage.Text(lang))
		return nil
	}
	b, err := t.builder(ctx, chatID, lang)
	if err != nil {
		return err
	}
	checkpoint, err := b.RestoreCheckpoint(number - 1)
	switch {
	case errors.Is(err, model.ErrBusy):
		t.sendMessageAndHandleErr(chatID, MessageBusy.Text(lang))
		return nil
	case errors.Is(err, model.ErrCheckpointOutOfRange):
		t.sendMessageAndHandleErr(chatID, MessageRestoreUsage.Text(lang))
		return nil
	case err != nil:
		t.sendMessageAndHandleErr(chatID, MessageServerError.Text(lang))
		return fmt.Errorf("failed to restore checkpoint: %w", err)
	}
	t.save(ctx, b)
	snapshot := b.Snapshot()
	caption := MessageRestoredFormat.Format(lang, number, checkpoint.Label)
	t.sendWidget(chatID, snapshot.Title, checkpoint.Code, caption)
	return nil
}

// runPipeline runs fn against the chat builder while relaying its progress to
// a single message that is edited at most once per progress interval.
func (t *TelegramUsecase) runPipeline(ctx context.Context, chatID int64, lang local.Language, fn pipeline) error {
	b, err := t.builder(ctx, chatID, lang)
	if err != nil {
		return err
	}

	relay := newProgressRelay()
	ctx = WithProgress(
		ctx, func(event ProgressEvent) {
			if text := progressText(event, lang); text != "" {
				relay.send(text)
			}
		},
	)
	throttledChan := make(chan string)

	var (
		result     model.BuildResult
		runErr     error
		progressID int
	)
	wg := conc.NewWaitGroup()
	wg.Go(
		func() {
			defer relay.close()
			result, runErr = fn(ctx, b)
		},
	)
	wg.Go(
		func() {
			lastUpdateTime := time.Now()
			var current string
			for text := range relay.ch {
				current = text
				// Telegram rate-limits message edits well below one per second in practice.
				if lastUpdateTime.Add(t.cfg.ProgressInterval).Before(time.Now()) {
					throttledChan <- current
					lastUpdateTime = time.Now()
				}
			}
			close(throttledChan)
		},
	)
	wg.Go(
		func() {
			if _, err := t.Bot.Request(api.NewChatAction(chatID, api.ChatTyping)); err != nil {
				t.Logger.Warn("failed to send chat action", "chat_id", chatID, "error", err)
			}
			for text := range throttledChan {
				if progressID == 0 {
					msg, err := t.sendMessage(chatID, text)
					if err != nil {
						t.Logger.Warn("failed to send progress", "chat_id", chatID, "error", err)
						continue
					}
					progressID = msg.MessageID
					continue
				}
				if _, err := t.sendEditMessage(chatID, progressID, text); err != nil {
					t.Logger.Warn("failed to edit progress", "chat_id", chatID, "error", err)
				}
			}
		},
	)
	wg.Wait()

	if progressID != 0 {
		if _, err := t.Bot.Request(api.NewDeleteMessage(chatID, progressID)); err != nil {
			t.Logger.Warn("failed to delete progress", "chat_id", chatID, "error", err)
		}
	}
	t.save(ctx, b)
	return t.report(chatID, lang, b, result, runErr)
}

func (t *TelegramUsecase) report(
	chatID int64,
	lang local.Language,
	b *Builder,
	result model.BuildResult,
	err error,
) error {
	var genErr *model.GenerationError
	switch {
	case err == nil:
	case errors.Is(err, model.ErrAborted):
		t.sendMessageAndHandleErr(chatID, MessageCancelled.Text(lang))
		return nil
	case errors.Is(err, model.ErrBusy):
		t.sendMessageAndHandleErr(chatID, MessageBusy.Text(lang))
		return nil
	case errors.Is(err, model.ErrNoExtraFix):
		t.sendMessageAndHandleErr(chatID, MessageNoExtraFix.Text(lang))
		return nil
	case errors.Is(err, model.ErrNothingToRetry):
		t.sendMessageAndHandleErr(chatID, MessageNothingToRetry.Text(lang))
		return nil
	case errors.Is(err, model.ErrNoSandboxErrors):
		t.sendMessageAndHandleErr(chatID, MessageNoSandboxErrors.Text(lang))
		return nil
	case errors.Is(err, model.ErrNoCode):
		t.sendMessageAndHandleErr(chatID, MessageNoCode.Text(lang))
		return nil
	case errors.As(err, &genErr):
		t.sendMessageAndHandleErr(chatID, MessageGenerationFailedFormat.Format(lang, genErr.Message))
		return nil
	default:
		t.sendMessageAndHandleErr(chatID, MessageGenerationFailedFormat.Format(lang, MessageServerError.Text(lang)))
		return err
	}

	if result.Outcome == model.OutcomeClarify {
		t.sendMessageAndHandleErr(chatID, truncateForTelegram(result.Questions))
		return nil
	}

	caption := resultCaption(result, lang)
	if t.PreviewURL != nil {
		if url := t.PreviewURL(b.Snapshot().ID); url != "" {
			caption += "\n" + MessagePreviewFormat.Format(lang, url)
		}
	}
	t.sendWidget(chatID, result.Title, result.Code, caption)
	return nil
}

func (t *TelegramUsecase) sendWidget(chatID int64, title, code, caption string) {
	doc := api.NewDocument(
		chatID, api.FileBytes{
			Name:  widgetFileName(title),
			Bytes: []byte(code),
		},
	)
	doc.Caption = truncateForTelegram(caption)
	if _, err := t.sendToBot(doc); err != nil {
		t.Logger.Warn("failed to send widget document", "chat_id", chatID, "error", err)
		t.sendMessageAndHandleErr(chatID, caption)
	}
}

func (t *TelegramUsecase) builder(ctx context.Context, chatID int64, lang local.Language) (*Builder, error) {
	b, err := t.Sessions.Builder(ctx, chatID)
	if err != nil {
		t.sendMessageAndHandleErr(chatID, MessageServerError.Text(lang))
		return nil, fmt.Errorf("failed to get chat builder: %w", err)
	}
	return b, nil
}

func (t *TelegramUsecase) save(ctx context.Context, b *Builder) {
	if err := t.Sessions.Save(ctx, b); err != nil {
		t.Logger.Error("failed to save session", "error", err)
	}
}

func (t *TelegramUsecase) sendMessageAndHandleErr(chatID int64, message string) api.Message {
	msg, err := t.sendMessage(chatID, message)
	if err != nil {
		t.Logger.Warn("failed to send new message to bot", "chat_id", chatID, "error", err)
	}
	return msg
}

func (t *TelegramUsecase) sendMessage(chatID int64, message string) (api.Message, error) {
	return t.sendToBot(api.NewMessage(chatID, message))
}

func (t *TelegramUsecase) sendEditMessage(chatID int64, previousMsgID int, message string) (api.Message, error) {
	return t.sendToBot(api.NewEditMessageText(chatID, previousMsgID, message))
}

func (t *TelegramUsecase) sendToBot(c api.Chattable) (api.Message, error) {
	return t.Bot.Send(c)
}

// progressRelay hands progress lines to the throttle goroutine. Sends after
// close are dropped, since Abort may report from another goroutine.
type progressRelay struct {
	mu     sync.Mutex
	ch     chan string
	closed bool
}

func newProgressRelay() *progressRelay {
	return &progressRelay{ch: make(chan string, 1)}
}

func (r *progressRelay) send(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- text:
	default:
		// Keep the newest line.
		select {
		case <-r.ch:
		default:
		}
		r.ch <- text
	}
}

func (r *progressRelay) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
}

func progressText(event ProgressEvent, lang local.Language) string {
	switch event.Kind {
	case ProgressStream:
		return MessageProgressStreamFormat.Format(
			lang, stateText(event.State, lang), max(event.Iteration, 1), utf8.RuneCountInString(event.Text),
		)
	case ProgressCritique:
		return MessageProgressCritiqueFormat.Format(lang, max(event.Iteration, 1))
	case ProgressCheckpoint:
		if event.Critique == nil {
			return ""
		}
		return MessageProgressCheckpointFormat.Format(
			lang, event.Iteration, event.Critique.Score, event.Critique.ActionableCount(),
		)
	case ProgressStatus:
		return event.Status
	default:
		return ""
	}
}

func stateText(state model.State, lang local.Language) string {
	switch state {
	case model.StateClarifying:
		return MessageStateClarifying.Text(lang)
	case model.StateRefining:
		return MessageStateRefining.Text(lang)
	case model.StateIteratingQA:
		return MessageStateFixing.Text(lang)
	default:
		return MessageStateBuilding.Text(lang)
	}
}

func resultCaption(result model.BuildResult, lang local.Language) string {
	switch result.Outcome {
	case model.OutcomeUnverified:
		return MessageUnverified.Text(lang)
	case model.OutcomeIssuesRemaining:
		caption := MessageIssuesRemainingFormat.Format(lang, len(actionable(result.Issues)), result.Score)
		if result.CanFixMore {
			caption += "\n" + MessageCanFixMore.Text(lang)
		}
		return caption
	default:
		return MessagePassedFormat.Format(lang, result.Score)
	}
}

func actionable(issues []model.CritiqueIssue) []model.CritiqueIssue {
	return model.CritiqueResult{Issues: issues}.ActionableIssues()
}

func prepareCheckpoints(session model.Session, lang local.Language) string {
	if len(session.Checkpoints) == 0 {
		return MessageNoCheckpoints.Text(lang)
	}
	result := strings.Builder{}
	for i, cp := range session.Checkpoints {
		marker := ""
		if i == session.ActiveCheckpoint {
			marker = " *"
		}
		result.WriteString(fmt.Sprintf("%v) %s, score %v/10%s\n", i+1, cp.Label, cp.Score, marker))
	}
	return result.String()
}

func widgetFileName(title string) string {
	name := strings.Map(
		func(r rune) rune {
			switch {
			case r == ' ' || r == '-' || r == '_':
				return '-'
			case r < 128 && !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'):
				return -1
			default:
				return r
			}
		}, strings.TrimSpace(title),
	)
	if name == "" {
		name = "widget"
	}
	return name + ".html"
}

func truncateForTelegram(text string) string {
	truncated, _ := truncateRunes(text, maxTelegramMessageLength)
	return truncated
}
