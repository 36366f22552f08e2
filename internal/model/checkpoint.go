package model

// IterationCheckpoint is an immutable snapshot of one completed generate or
// fix round.
type IterationCheckpoint struct {
	Code      string          `json:"code"`
	Iteration int             `json:"iteration"`
	Score     int             `json:"score"`
	Passed    bool            `json:"passed"`
	Issues    []CritiqueIssue `json:"issues"`
	Label     string          `json:"label"`
}

func (c IterationCheckpoint) Critique() CritiqueResult {
	return CritiqueResult{
		Passed: c.Passed,
		Score:  c.Score,
		Issues: c.Issues,
	}.Clone()
}
