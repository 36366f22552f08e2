package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/iamvkosarev/ai-widget-builder/internal/model"
	openai_tools "github.com/iamvkosarev/ai-widget-builder/pkg/openai-tools"
	"github.com/iamvkosarev/ai-widget-builder/pkg/widgetcode"
	"github.com/sashabaranov/go-openai"
)

const (
	maxTitleLength  = 50
	titleWordsCount = 5
)

func clarifiedPrompt(originalPrompt, reply string) string {
	return originalPrompt + "\n\nUser's choices: " + reply
}

func fixPrompt(userPrompt string, critique model.CritiqueResult) string {
	var b strings.Builder
	b.WriteString("A quality review found problems in the current widget. ")
	b.WriteString("Fix every issue below and return the COMPLETE corrected HTML document, not a diff or a fragment.\n\n")
	for i, issue := range critique.ActionableIssues() {
		fmt.Fprintf(&b, "%d. [%s] %s: %s", i+1, issue.Severity, issue.Category, issue.Description)
		if issue.Fix != "" {
			fmt.Fprintf(&b, " Suggested fix: %s", issue.Fix)
		}
		b.WriteString("\n")
	}
	if userPrompt != "" {
		b.WriteString("\nThe widget was requested as: ")
		b.WriteString(userPrompt)
	}
	return b.String()
}

func refineCritiquePrompt(originalPrompt, change string) string {
	if originalPrompt == "" || originalPrompt == change {
		return change
	}
	return originalPrompt + "\n\nRequested change: " + change
}

func truncateRunes(text string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	runes := []rune(text)
	return string(runes[:limit]) + "…", true
}

func userMessage(prompt string, summaryLength int) model.ConversationMessage {
	msg := model.ConversationMessage{
		Role:    model.MessageRoleUser,
		Content: prompt,
	}
	if summary, truncated := truncateRunes(prompt, summaryLength); truncated {
		msg.Summary = summary
	}
	return msg
}

// inferTitle prefers a short <title> from the document, then the first words
// of the prompt.
func inferTitle(code, prompt string) string {
	if title, ok := widgetcode.Title(code); ok && utf8.RuneCountInString(title) < maxTitleLength {
		return title
	}
	words := strings.Fields(prompt)
	if len(words) > titleWordsCount {
		words = words[:titleWordsCount]
	}
	return strings.Join(words, " ")
}

func completionSummary(critique model.CritiqueResult, rounds int) string {
	switch {
	case critique.Unavailable():
		return fmt.Sprintf("Widget built without verification (%d %s)", rounds, plural(rounds, "round", "rounds"))
	case critique.Passed || critique.ActionableCount() == 0:
		return fmt.Sprintf("Widget ready, score %d/10 (%d %s)", critique.Score, rounds, plural(rounds, "round", "rounds"))
	default:
		n := critique.ActionableCount()
		return fmt.Sprintf("Widget built with %d unresolved %s, score %d/10", n, plural(n, "issue", "issues"), critique.Score)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// historyFor turns the conversation into request history: user turns plus
// the one-line summaries of code turns. Clarifying question blocks are left
// out, the answers to them are user turns.
func historyFor(conversation []model.ConversationMessage) []model.HistoryEntry {
	history := make([]model.HistoryEntry, 0, len(conversation))
	for _, msg := range conversation {
		if msg.IsClarify() {
			continue
		}
		content := msg.Content
		if msg.IsCode() {
			summary := msg.Summary
			if summary == "" {
				summary = "Generated widget"
			}
			content = "[" + summary + "]"
		}
		history = append(history, model.HistoryEntry{Role: msg.Role, Content: content})
	}
	return history
}

func trimHistory(history []model.HistoryEntry, limit int, count openai_tools.Counter) ([]model.HistoryEntry, bool) {
	if count == nil || limit <= 0 || len(history) == 0 {
		return history, false
	}
	messages := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, entry := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: string(entry.Role), Content: entry.Content})
	}
	kept, trimmed := openai_tools.TrimHistory(messages, limit, count)
	return history[len(history)-len(kept):], trimmed
}

func outcomeOf(critique model.CritiqueResult) model.Outcome {
	switch {
	case critique.Unavailable():
		return model.OutcomeUnverified
	case critique.Passed || critique.ActionableCount() == 0:
		return model.OutcomePassed
	default:
		return model.OutcomeIssuesRemaining
	}
}

func buildLabel(iteration int) string {
	if iteration <= 1 {
		return "Initial build"
	}
	return fmt.Sprintf("Fix %d", iteration-1)
}

func refineLabel(iteration int) string {
	if iteration <= 1 {
		return "Refinement"
	}
	return fmt.Sprintf("Refinement fix %d", iteration-1)
}
