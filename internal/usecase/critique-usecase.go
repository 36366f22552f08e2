package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"

	"github.com/iamvkosarev/ai-widget-builder/config"
	"github.com/iamvkosarev/ai-widget-builder/internal/model"
)

const maxCritiqueBodySize = 1024 * 1024

type critiqueResponse struct {
	Passed json.RawMessage `json:"passed"`
	Score  json.RawMessage `json:"score"`
	Issues json.RawMessage `json:"issues"`
}

// CritiqueUsecase asks the critique endpoint for a verdict. It fails open:
// any problem turns into a passing verdict so the build is never blocked.
type CritiqueUsecase struct {
	cfg    config.Endpoints
	client *http.Client
	logger *slog.Logger
}

func NewCritiqueUsecase(cfg config.Endpoints, client *http.Client, logger *slog.Logger) *CritiqueUsecase {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CritiqueUsecase{
		cfg:    cfg,
		client: client,
		logger: logger,
	}
}

func (c *CritiqueUsecase) Critique(ctx context.Context, code, userPrompt string) model.CritiqueResult {
	raw, err := c.request(ctx, model.CritiqueRequest{Code: code, UserPrompt: userPrompt})
	if err != nil {
		c.logger.Warn("quality check unavailable", "error", err)
		return model.CritiqueUnavailable()
	}
	return parseCritique(raw)
}

func (c *CritiqueUsecase) request(ctx context.Context, req model.CritiqueRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid critique request: %w", err)
	}
	if c.cfg.CritiqueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CritiqueTimeout)
		defer cancel()
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal critique request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.CritiqueURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create critique request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to request critique: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("critique returned status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxCritiqueBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read critique response: %w", err)
	}
	return raw, nil
}

// parseCritique normalizes a critique body. Missing or mistyped passed/score
// fields give the default optimistic verdict.
func parseCritique(raw []byte) model.CritiqueResult {
	var resp critiqueResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return model.CritiqueDefault()
	}
	var passed bool
	if !present(resp.Passed) || json.Unmarshal(resp.Passed, &passed) != nil {
		return model.CritiqueDefault()
	}
	var score float64
	if !present(resp.Score) || json.Unmarshal(resp.Score, &score) != nil {
		return model.CritiqueDefault()
	}

	issues := make([]model.CritiqueIssue, 0)
	if present(resp.Issues) {
		var parsed []model.CritiqueIssue
		if err := json.Unmarshal(resp.Issues, &parsed); err == nil && parsed != nil {
			issues = parsed
		}
	}
	return model.CritiqueResult{
		Passed: passed,
		Score:  int(math.Round(score)),
		Issues: issues,
	}
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
