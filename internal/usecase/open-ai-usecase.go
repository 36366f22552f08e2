package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/iamvkosarev/ai-widget-builder/config"
	"github.com/iamvkosarev/ai-widget-builder/internal/model"
	"github.com/sashabaranov/go-openai"
)

const (
	OpenAIRoleSystem    = "system"
	OpenAIRoleUser      = "user"
	OpenAIRoleAssistant = "assistant"
)

const (
	clarifySystemPrompt = `You help people describe a self-contained HTML widget before it is built.
Ask at most three short numbered questions about layout, colors, data and behaviour.
Do not write any code.`

	generateSystemPrompt = `You build self-contained HTML widgets.
Answer with ONE complete HTML document: <!DOCTYPE html>, inline <style> and <script>, no external assets.
Do not explain the code. Wrap the document in a single fenced code block.`

	refineSystemPrompt = `You modify an existing self-contained HTML widget.
Apply the requested change to the current code and answer with the COMPLETE updated HTML document
in a single fenced code block. Never answer with a diff or a fragment.`

	critiqueSystemPrompt = `You review self-contained HTML widgets for correctness, accessibility, layout and
whether they match the request. Answer with JSON only:
{"passed": bool, "score": number 1-10, "issues": [{"category": string, "severity": "critical"|"major"|"minor", "description": string, "fix": string}]}`
)

// OpenAIUsecase talks to an OpenAI compatible API directly and stands in for
// the generation and critique endpoints.
type OpenAIUsecase struct {
	cfg    config.OpenAI
	client *openai.Client
	logger *slog.Logger
}

func NewOpenAIUsecase(cfg config.OpenAI, logger *slog.Logger) *OpenAIUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}
	return &OpenAIUsecase{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger,
	}
}

func (o *OpenAIUsecase) StreamGenerate(
	ctx context.Context,
	req model.GenerateRequest,
	onProgress func(text string),
) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("invalid generate request: %w", err)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       o.cfg.OpenAIModel,
		Temperature: o.cfg.ModelTemperature,
		TopP:        1,
		N:           1,
		Messages:    generationMessages(req),
		Stream:      true,
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", model.ErrAborted
		}
		return "", toGenerationError(err)
	}
	defer stream.Close()

	var currentAnswer string
	var frames int
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", model.ErrAborted
			}
			return "", toGenerationError(err)
		}
		frames++
		if len(response.Choices) == 0 || response.Choices[0].Delta.Content == "" {
			continue
		}
		currentAnswer += response.Choices[0].Delta.Content
		if onProgress != nil && ctx.Err() == nil {
			onProgress(currentAnswer)
		}
	}
	if ctx.Err() != nil {
		return "", model.ErrAborted
	}
	if frames == 0 {
		return "", model.ErrEmptyStream
	}
	return currentAnswer, nil
}

func (o *OpenAIUsecase) Critique(ctx context.Context, code, userPrompt string) model.CritiqueResult {
	req := model.CritiqueRequest{Code: code, UserPrompt: userPrompt}
	if err := req.Validate(); err != nil {
		o.logger.Warn("quality check unavailable", "error", err)
		return model.CritiqueUnavailable()
	}

	resp, err := o.client.CreateChatCompletion(
		ctx, openai.ChatCompletionRequest{
			Model:       o.cfg.OpenAIModel,
			Temperature: 0,
			N:           1,
			Messages: []openai.ChatCompletionMessage{
				{Role: OpenAIRoleSystem, Content: critiqueSystemPrompt},
				{Role: OpenAIRoleUser, Content: critiqueUserMessage(req)},
			},
		},
	)
	if err != nil {
		o.logger.Warn("quality check unavailable", "error", err)
		return model.CritiqueUnavailable()
	}
	if len(resp.Choices) == 0 {
		o.logger.Warn("quality check returned no choices")
		return model.CritiqueUnavailable()
	}
	return parseCritique([]byte(jsonObject(resp.Choices[0].Message.Content)))
}

// jsonObject cuts the outermost {...} out of a chat answer that may wrap it
// in a fence or prose.
func jsonObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}

func generationMessages(req model.GenerateRequest) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.ConversationHistory)+3)
	messages = append(messages, openai.ChatCompletionMessage{Role: OpenAIRoleSystem, Content: systemPromptFor(req.Mode)})
	if req.OriginalPrompt != "" && req.OriginalPrompt != req.Prompt {
		messages = append(
			messages, openai.ChatCompletionMessage{
				Role:    OpenAIRoleSystem,
				Content: "The widget was originally requested as: " + req.OriginalPrompt,
			},
		)
	}
	for _, entry := range req.ConversationHistory {
		messages = append(
			messages, openai.ChatCompletionMessage{
				Role:    parseMessageRole(entry.Role),
				Content: entry.Content,
			},
		)
	}
	prompt := req.Prompt
	if req.Mode == model.ModeRefine {
		prompt = "Current code:\n```html\n" + req.CurrentCode + "\n```\n\n" + req.Prompt
	}
	return append(messages, openai.ChatCompletionMessage{Role: OpenAIRoleUser, Content: prompt})
}

func critiqueUserMessage(req model.CritiqueRequest) string {
	message := "Widget code:\n```html\n" + req.Code + "\n```"
	if req.UserPrompt != "" {
		message = "Request: " + req.UserPrompt + "\n\n" + message
	}
	return message
}

func systemPromptFor(mode model.Mode) string {
	switch mode {
	case model.ModeClarify:
		return clarifySystemPrompt
	case model.ModeRefine:
		return refineSystemPrompt
	default:
		return generateSystemPrompt
	}
}

func parseMessageRole(role model.MessageRole) string {
	switch role {
	case model.MessageRoleAssistant:
		return OpenAIRoleAssistant
	default:
		return OpenAIRoleUser
	}
}

func toGenerationError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &model.GenerationError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &model.GenerationError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return fmt.Errorf("failed to stream completion: %w", err)
}
