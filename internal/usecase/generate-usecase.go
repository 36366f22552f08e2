package usecase

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iamvkosarev/ai-widget-builder/config"
	"github.com/iamvkosarev/ai-widget-builder/internal/model"
)

const (
	sseDataPrefix   = "data:"
	sseDoneSentinel = "[DONE]"

	maxStreamLineSize = 4 * 1024 * 1024
	maxErrorBodySize  = 64 * 1024
)

type streamFrame struct {
	Content string `json:"content"`
	Error   string `json:"error"`
}

type errorBody struct {
	Error string `json:"error"`
}

// GenerateUsecase streams widget text from the generation endpoint.
type GenerateUsecase struct {
	cfg    config.Endpoints
	client *http.Client
	logger *slog.Logger
}

func NewGenerateUsecase(cfg config.Endpoints, client *http.Client, logger *slog.Logger) *GenerateUsecase {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerateUsecase{
		cfg:    cfg,
		client: client,
		logger: logger,
	}
}

// StreamGenerate sends one generation request and returns the accumulated
// text. onProgress receives the cumulative text after every content frame.
// A cancelled ctx yields model.ErrAborted and stops progress callbacks.
func (g *GenerateUsecase) StreamGenerate(
	ctx context.Context,
	req model.GenerateRequest,
	onProgress func(text string),
) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("invalid generate request: %w", err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.GenerateURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if g.cfg.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.cfg.AuthToken)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", model.ErrAborted
		}
		return "", fmt.Errorf("failed to request generation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", readGenerationError(resp)
	}

	text, err := g.readStream(ctx, resp.Body, onProgress)
	if ctx.Err() != nil {
		return "", model.ErrAborted
	}
	return text, err
}

func (g *GenerateUsecase) readStream(ctx context.Context, body io.Reader, onProgress func(string)) (string, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLineSize)

	var content strings.Builder
	var frames int
	for scanner.Scan() {
		if ctx.Err() != nil {
			return "", model.ErrAborted
		}
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, sseDataPrefix) {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, sseDataPrefix))
		frames++
		if data == sseDoneSentinel {
			continue
		}

		var frame streamFrame
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				g.logger.Debug("skipping undecodable stream frame", "error", err)
				continue
			}
			return "", fmt.Errorf("failed to decode stream frame: %w", err)
		}
		if frame.Error != "" {
			return "", &model.GenerationError{Message: frame.Error}
		}
		if frame.Content == "" {
			continue
		}
		content.WriteString(frame.Content)
		if onProgress != nil && ctx.Err() == nil {
			onProgress(content.String())
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read generation stream: %w", err)
	}
	if frames == 0 {
		return "", model.ErrEmptyStream
	}
	return content.String(), nil
}

func readGenerationError(resp *http.Response) error {
	genErr := &model.GenerationError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("Generation failed (HTTP %d)", resp.StatusCode),
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return genErr
	}
	var body errorBody
	if err = json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		genErr.Message = body.Error
	}
	return genErr
}
