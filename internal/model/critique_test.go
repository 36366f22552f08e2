package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCritiqueResult_Settled(t *testing.T) {
	major := CritiqueIssue{Severity: SeverityMajor, Description: "overflow"}
	minor := CritiqueIssue{Severity: SeverityMinor, Description: "font"}

	tests := []struct {
		name    string
		result  CritiqueResult
		settled bool
	}{
		{"passed", CritiqueResult{Passed: true, Score: 9, Issues: []CritiqueIssue{major}}, true},
		{"unavailable", CritiqueUnavailable(), true},
		{"only minor", CritiqueResult{Score: 6, Issues: []CritiqueIssue{minor}}, true},
		{"actionable", CritiqueResult{Score: 6, Issues: []CritiqueIssue{minor, major}}, false},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				assert.Equal(t, tt.settled, tt.result.Settled())
			},
		)
	}
}

func TestCritiqueResult_Clone(t *testing.T) {
	original := CritiqueResult{Score: 4, Issues: []CritiqueIssue{{Severity: SeverityCritical, Description: "broken"}}}
	clone := original.Clone()
	clone.Issues[0].Description = "changed"

	assert.Equal(t, "broken", original.Issues[0].Description)
	assert.Equal(t, 1, original.ActionableCount())
}

func TestCritiqueDefaults(t *testing.T) {
	unavailable := CritiqueUnavailable()
	assert.True(t, unavailable.Passed)
	assert.True(t, unavailable.Unavailable())
	assert.Equal(t, 0, unavailable.ActionableCount())

	def := CritiqueDefault()
	assert.True(t, def.Passed)
	assert.Equal(t, 7, def.Score)
	assert.Empty(t, def.Issues)
}

func TestGenerateRequest_Validate(t *testing.T) {
	valid := GenerateRequest{Prompt: "make a clock", Mode: ModeGenerate}
	assert.NoError(t, valid.Validate())

	refine := GenerateRequest{Prompt: "add seconds", Mode: ModeRefine}
	assert.Error(t, refine.Validate())
	refine.CurrentCode = "<div></div>"
	assert.NoError(t, refine.Validate())

	assert.Error(t, GenerateRequest{Mode: ModeGenerate}.Validate())
	assert.Error(t, GenerateRequest{Prompt: "x", Mode: Mode("chat")}.Validate())
	assert.Error(t, CritiqueRequest{UserPrompt: "x"}.Validate())
}
