package usecase

import (
	"strings"
	"testing"

	"github.com/iamvkosarev/ai-widget-builder/internal/model"
	openai_tools "github.com/iamvkosarev/ai-widget-builder/pkg/openai-tools"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestUserMessage_Summary(t *testing.T) {
	short := userMessage("make a clock", 60)
	assert.Empty(t, short.Summary)

	long := strings.Repeat("я", 61)
	msg := userMessage(long, 60)
	assert.Equal(t, long, msg.Content)
	assert.Equal(t, strings.Repeat("я", 60)+"…", msg.Summary)
	assert.Equal(t, msg.Summary, msg.Display())
}

func TestInferTitle(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		prompt string
		want   string
	}{
		{
			name:   "document title",
			code:   "<html><head><title> Weather </title></head></html>",
			prompt: "make a weather card",
			want:   "Weather",
		},
		{
			name:   "long title falls back to prompt",
			code:   "<title>" + strings.Repeat("x", 60) + "</title>",
			prompt: "a pomodoro timer with sound and stats",
			want:   "a pomodoro timer with sound",
		},
		{
			name:   "no title",
			code:   "<div>clock</div>",
			prompt: "clock",
			want:   "clock",
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				assert.Equal(t, tt.want, inferTitle(tt.code, tt.prompt))
			},
		)
	}
}

func TestFixPrompt_ListsOnlyActionableIssues(t *testing.T) {
	prompt := fixPrompt(
		"make a clock", model.CritiqueResult{
			Issues: []model.CritiqueIssue{
				{Category: "layout", Severity: model.SeverityCritical, Description: "overflows", Fix: "wrap text"},
				{Category: "style", Severity: model.SeverityMinor, Description: "font is plain"},
				{Category: "a11y", Severity: model.SeverityMajor, Description: "no label"},
			},
		},
	)
	assert.Contains(t, prompt, "1. [critical] layout: overflows Suggested fix: wrap text")
	assert.Contains(t, prompt, "2. [major] a11y: no label")
	assert.NotContains(t, prompt, "font is plain")
	assert.Contains(t, prompt, "make a clock")
}

func TestCompletionSummaryAndOutcome(t *testing.T) {
	unavailable := model.CritiqueUnavailable()
	assert.Equal(t, model.OutcomeUnverified, outcomeOf(unavailable))
	assert.Equal(t, "Widget built without verification (1 round)", completionSummary(unavailable, 1))

	passed := model.CritiqueResult{Passed: true, Score: 9}
	assert.Equal(t, model.OutcomePassed, outcomeOf(passed))
	assert.Equal(t, "Widget ready, score 9/10 (2 rounds)", completionSummary(passed, 2))

	remaining := model.CritiqueResult{
		Score:  4,
		Issues: []model.CritiqueIssue{{Severity: model.SeverityMajor}},
	}
	assert.Equal(t, model.OutcomeIssuesRemaining, outcomeOf(remaining))
	assert.Equal(t, "Widget built with 1 unresolved issue, score 4/10", completionSummary(remaining, 5))
}

func TestTrimHistory(t *testing.T) {
	history := []model.HistoryEntry{
		{Role: model.MessageRoleUser, Content: "one"},
		{Role: model.MessageRoleAssistant, Content: "two"},
		{Role: model.MessageRoleUser, Content: "three"},
	}
	byMessages := openai_tools.Counter(
		func(messages []openai.ChatCompletionMessage) (int, error) {
			return len(messages) * 10, nil
		},
	)

	kept, trimmed := trimHistory(history, 25, byMessages)
	assert.True(t, trimmed)
	assert.Equal(t, history[1:], kept)

	kept, trimmed = trimHistory(history, 100, nil)
	assert.False(t, trimmed)
	assert.Equal(t, history, kept)
}

func TestClarifiedPromptAndLabels(t *testing.T) {
	assert.Equal(t, "make a clock\n\nUser's choices: blue", clarifiedPrompt("make a clock", "blue"))
	assert.Equal(t, "Initial build", buildLabel(1))
	assert.Equal(t, "Fix 3", buildLabel(4))
	assert.Equal(t, "Refinement", refineLabel(1))
	assert.Equal(t, "Refinement fix 1", refineLabel(2))
	assert.Equal(t, "add seconds", refineCritiquePrompt("", "add seconds"))
	assert.Equal(t, "make a clock\n\nRequested change: add seconds", refineCritiquePrompt("make a clock", "add seconds"))
}

func TestHistoryFor_SkipsClarifyTurns(t *testing.T) {
	conversation := []model.ConversationMessage{
		{Role: model.MessageRoleUser, Content: "make a clock"},
		{Role: model.MessageRoleAssistant, Content: "1. Which colors?", Type: model.MessageTypeClarify},
		{Role: model.MessageRoleUser, Content: "blue"},
		{Role: model.MessageRoleAssistant, Content: "<html></html>", Summary: "Widget ready", Type: model.MessageTypeCode},
	}

	history := historyFor(conversation)

	assert.Equal(
		t, []model.HistoryEntry{
			{Role: model.MessageRoleUser, Content: "make a clock"},
			{Role: model.MessageRoleUser, Content: "blue"},
			{Role: model.MessageRoleAssistant, Content: "[Widget ready]"},
		}, history,
	)
}
