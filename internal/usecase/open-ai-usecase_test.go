package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iamvkosarev/ai-widget-builder/config"
	"github.com/iamvkosarev/ai-widget-builder/internal/model"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAIServer(t *testing.T, handler http.HandlerFunc) *OpenAIUsecase {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return NewOpenAIUsecase(
		config.OpenAI{OpenAIAPIKey: "key", OpenAIModel: "gpt-4o", OpenAIBaseURL: server.URL + "/v1"}, nil,
	)
}

func streamChunk(content string) string {
	chunk := openai.ChatCompletionStreamResponse{
		ID:     "chunk",
		Object: "chat.completion.chunk",
		Model:  "gpt-4o",
		Choices: []openai.ChatCompletionStreamChoice{
			{Index: 0, Delta: openai.ChatCompletionStreamChoiceDelta{Content: content}},
		},
	}
	raw, _ := json.Marshal(chunk)
	return "data: " + string(raw) + "\n\n"
}

func TestOpenAIUsecase_StreamGenerate(t *testing.T) {
	var received openai.ChatCompletionRequest
	o := newOpenAIServer(
		t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, streamChunk("<div>"))
			fmt.Fprint(w, streamChunk("clock</div>"))
			fmt.Fprint(w, "data: [DONE]\n\n")
		},
	)

	progress := make([]string, 0)
	text, err := o.StreamGenerate(
		context.Background(), model.GenerateRequest{
			Prompt:      "add seconds",
			Mode:        model.ModeRefine,
			CurrentCode: "<div>clock</div>",
			ConversationHistory: []model.HistoryEntry{
				{Role: model.MessageRoleUser, Content: "make a clock"},
				{Role: model.MessageRoleAssistant, Content: "[Widget ready]"},
			},
			OriginalPrompt: "make a clock",
		}, func(text string) {
			progress = append(progress, text)
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "<div>clock</div>", text)
	assert.Equal(t, []string{"<div>", "<div>clock</div>"}, progress)

	assert.True(t, received.Stream)
	require.Len(t, received.Messages, 5)
	assert.Equal(t, OpenAIRoleSystem, received.Messages[0].Role)
	assert.Equal(t, refineSystemPrompt, received.Messages[0].Content)
	assert.Contains(t, received.Messages[1].Content, "make a clock")
	assert.Equal(t, OpenAIRoleAssistant, received.Messages[3].Role)
	assert.Contains(t, received.Messages[4].Content, "<div>clock</div>")
	assert.Contains(t, received.Messages[4].Content, "add seconds")
}

func TestOpenAIUsecase_StreamGenerate_APIError(t *testing.T) {
	o := newOpenAIServer(
		t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
		},
	)

	_, err := o.StreamGenerate(
		context.Background(), model.GenerateRequest{Prompt: "make a clock", Mode: model.ModeGenerate}, nil,
	)
	var genErr *model.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, http.StatusServiceUnavailable, genErr.StatusCode)
	assert.Equal(t, "overloaded", genErr.Message)
}

func TestOpenAIUsecase_Critique(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    model.CritiqueResult
	}{
		{
			name: "fenced verdict",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				resp := openai.ChatCompletionResponse{
					Choices: []openai.ChatCompletionChoice{
						{
							Message: openai.ChatCompletionMessage{
								Role:    OpenAIRoleAssistant,
								Content: "```json\n{\"passed\": true, \"score\": 8, \"issues\": []}\n```",
							},
						},
					},
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			want: model.CritiqueResult{Passed: true, Score: 8, Issues: make([]model.CritiqueIssue, 0)},
		},
		{
			name: "api failure fails open",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			want: model.CritiqueUnavailable(),
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				o := newOpenAIServer(t, tt.handler)
				assert.Equal(t, tt.want, o.Critique(context.Background(), "<div>clock</div>", "make a clock"))
			},
		)
	}
}

func TestJSONObject(t *testing.T) {
	assert.Equal(t, `{"a":1}`, jsonObject("Here you go:\n```json\n{\"a\":1}\n```"))
	assert.Equal(t, "no json", jsonObject("no json"))
}

func TestSystemPromptFor(t *testing.T) {
	assert.Equal(t, clarifySystemPrompt, systemPromptFor(model.ModeClarify))
	assert.Equal(t, generateSystemPrompt, systemPromptFor(model.ModeGenerate))
	assert.Equal(t, refineSystemPrompt, systemPromptFor(model.ModeRefine))
}
