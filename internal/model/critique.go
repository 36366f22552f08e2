package model

type Severity string

const (
	SeverityCritical = Severity("critical")
	SeverityMajor    = Severity("major")
	SeverityMinor    = Severity("minor")
)

type CritiqueIssue struct {
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Fix         string   `json:"fix"`
}

// IsActionable reports whether the issue should drive another fix round.
func (i CritiqueIssue) IsActionable() bool {
	return i.Severity == SeverityCritical || i.Severity == SeverityMajor
}

// CritiqueResult is the verdict for one code snapshot. A zero Score means the
// check could not run and Passed must not be read as a quality judgment.
type CritiqueResult struct {
	Passed bool            `json:"passed"`
	Score  int             `json:"score"`
	Issues []CritiqueIssue `json:"issues"`
}

func (r CritiqueResult) Unavailable() bool {
	return r.Score == 0
}

func (r CritiqueResult) ActionableIssues() []CritiqueIssue {
	actionable := make([]CritiqueIssue, 0, len(r.Issues))
	for _, issue := range r.Issues {
		if issue.IsActionable() {
			actionable = append(actionable, issue)
		}
	}
	return actionable
}

func (r CritiqueResult) ActionableCount() int {
	var count int
	for _, issue := range r.Issues {
		if issue.IsActionable() {
			count++
		}
	}
	return count
}

// Settled reports whether a fix loop may stop on this verdict regardless of
// the remaining iteration budget.
func (r CritiqueResult) Settled() bool {
	return r.Passed || r.Unavailable() || r.ActionableCount() == 0
}

func (r CritiqueResult) Clone() CritiqueResult {
	issues := make([]CritiqueIssue, len(r.Issues))
	copy(issues, r.Issues)
	r.Issues = issues
	return r
}

// CritiqueUnavailable is the fail-open verdict used when the quality check
// cannot be reached.
func CritiqueUnavailable() CritiqueResult {
	return CritiqueResult{
		Passed: true,
		Score:  0,
		Issues: []CritiqueIssue{
			{
				Category:    "system",
				Severity:    SeverityMinor,
				Description: "Quality check unavailable, skipped",
			},
		},
	}
}

// CritiqueDefault is used when the quality check answered with an unusable
// shape.
func CritiqueDefault() CritiqueResult {
	return CritiqueResult{
		Passed: true,
		Score:  7,
		Issues: make([]CritiqueIssue, 0),
	}
}
