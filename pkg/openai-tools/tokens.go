package openai_tools

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"
)

const fallbackEncoding = "cl100k_base"

// Counter returns the prompt token count of a message list.
type Counter func(messages []openai.ChatCompletionMessage) (int, error)

func NewCounter(model string) Counter {
	return func(messages []openai.ChatCompletionMessage) (int, error) {
		return CountToken(messages, model)
	}
}

// CountToken follows the chat format accounting: every message costs its
// content and role plus a fixed overhead, and the reply is primed with three
// more tokens.
func CountToken(messages []openai.ChatCompletionMessage, model string) (int, error) {
	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tkm, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return 0, fmt.Errorf("failed to get encoding for model %s: %w", model, err)
		}
	}

	const (
		tokensPerMessage = 3
		tokensPerName    = 1
	)
	numTokens := 0
	for _, message := range messages {
		numTokens += tokensPerMessage
		numTokens += len(tkm.Encode(message.Content, nil, nil))
		numTokens += len(tkm.Encode(message.Role, nil, nil))
		if message.Name != "" {
			numTokens += len(tkm.Encode(message.Name, nil, nil))
			numTokens += tokensPerName
		}
	}
	numTokens += 3
	return numTokens, nil
}

// TrimHistory drops the oldest messages until the rest fits under limit. A
// counting failure is treated like an overflow.
func TrimHistory(
	messages []openai.ChatCompletionMessage,
	limit int,
	count Counter,
) ([]openai.ChatCompletionMessage, bool) {
	var trimmed bool
	for len(messages) > 0 {
		tokenCount, err := count(messages)
		if err == nil && tokenCount < limit {
			break
		}
		messages = messages[1:]
		trimmed = true
	}
	return messages, trimmed
}
