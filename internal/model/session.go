package model

import (
	"time"

	"github.com/google/uuid"
)

type View string

const (
	ViewCode    = View("code")
	ViewPreview = View("preview")
)

const NoActiveCheckpoint = -1

// Session is the working state of one widget build conversation.
type Session struct {
	ID               uuid.UUID
	ChatID           int64
	Title            string
	Code             string
	OriginalPrompt   string
	Conversation     []ConversationMessage
	Checkpoints      []IterationCheckpoint
	ActiveCheckpoint int
	Iteration        int
	LastCritique     *CritiqueResult
	ExtraFixes       int
	State            State
	View             View
	LastError        string
	FailedPrompt     string
	Status           string
	AskFirst         bool
	UpdatedAt        time.Time
}

func NewSession(chatID int64, askFirst bool) Session {
	return Session{
		ID:               uuid.New(),
		ChatID:           chatID,
		Conversation:     make([]ConversationMessage, 0),
		Checkpoints:      make([]IterationCheckpoint, 0),
		ActiveCheckpoint: NoActiveCheckpoint,
		State:            StateIdle,
		View:             ViewCode,
		AskFirst:         askFirst,
		UpdatedAt:        time.Now(),
	}
}

// LastMessage returns the most recent conversation turn, if any.
func (s Session) LastMessage() (ConversationMessage, bool) {
	if len(s.Conversation) == 0 {
		return ConversationMessage{}, false
	}
	return s.Conversation[len(s.Conversation)-1], true
}
