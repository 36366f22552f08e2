package model

type MessageRole string

const (
	MessageRoleUser      = MessageRole("user")
	MessageRoleAssistant = MessageRole("assistant")
)

type MessageType string

const (
	MessageTypeClarify = MessageType("clarify")
	MessageTypeCode    = MessageType("code")
)

// ConversationMessage is one turn of the build dialogue. For assistant code
// turns Content holds the whole generated document and Summary is what the
// transcript shows instead.
type ConversationMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
	Summary string      `json:"summary,omitempty"`
	Type    MessageType `json:"messageType,omitempty"`
}

func (m ConversationMessage) IsClarify() bool {
	return m.Role == MessageRoleAssistant && m.Type == MessageTypeClarify
}

func (m ConversationMessage) IsCode() bool {
	return m.Role == MessageRoleAssistant && m.Type == MessageTypeCode
}

// Display returns the text shown in a transcript.
func (m ConversationMessage) Display() string {
	if m.Summary != "" {
		return m.Summary
	}
	return m.Content
}
