package model

type Outcome string

const (
	OutcomePassed          = Outcome("passed")
	OutcomeUnverified      = Outcome("unverified")
	OutcomeIssuesRemaining = Outcome("issues_remaining")
	OutcomeClarify         = Outcome("clarify")
)

// BuildResult describes how a submit or extra fix round ended.
type BuildResult struct {
	Outcome     Outcome
	Score       int
	Issues      []CritiqueIssue
	Code        string
	Title       string
	Questions   string
	Checkpoints int
	CanFixMore  bool
}
