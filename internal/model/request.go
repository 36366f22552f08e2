package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Mode string

const (
	ModeClarify  = Mode("clarify")
	ModeGenerate = Mode("generate")
	ModeRefine   = Mode("refine")
)

type HistoryEntry struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

type GenerateRequest struct {
	Prompt              string         `json:"prompt"`
	Mode                Mode           `json:"mode"`
	ConversationHistory []HistoryEntry `json:"conversationHistory"`
	CurrentCode         string         `json:"currentCode,omitempty"`
	OriginalPrompt      string         `json:"originalPrompt,omitempty"`
}

func (r GenerateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Prompt, validation.Required),
		validation.Field(&r.Mode, validation.Required, validation.In(ModeClarify, ModeGenerate, ModeRefine)),
		validation.Field(&r.CurrentCode, validation.When(r.Mode == ModeRefine, validation.Required)),
	)
}

type CritiqueRequest struct {
	Code       string `json:"code"`
	UserPrompt string `json:"userPrompt"`
}

func (r CritiqueRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required),
	)
}
