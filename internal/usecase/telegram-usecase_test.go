package usecase

import (
	"testing"

	"github.com/iamvkosarev/ai-widget-builder/internal/model"
	"github.com/iamvkosarev/ai-widget-builder/pkg/local"
	"github.com/stretchr/testify/assert"
)

func TestProgressRelay_KeepsNewestAndIgnoresClosed(t *testing.T) {
	relay := newProgressRelay()
	relay.send("one")
	relay.send("two")
	relay.close()
	relay.send("three")
	relay.close()

	received := make([]string, 0)
	for text := range relay.ch {
		received = append(received, text)
	}
	assert.Equal(t, []string{"two"}, received)
}

func TestWidgetFileName(t *testing.T) {
	assert.Equal(t, "Pomodoro-Timer.html", widgetFileName("Pomodoro Timer"))
	assert.Equal(t, "Часы.html", widgetFileName("Часы!"))
	assert.Equal(t, "widget.html", widgetFileName("  "))
}

func TestResultCaption(t *testing.T) {
	remaining := model.BuildResult{
		Outcome:    model.OutcomeIssuesRemaining,
		Score:      5,
		Issues:     []model.CritiqueIssue{{Severity: model.SeverityMajor}, {Severity: model.SeverityMinor}},
		CanFixMore: true,
	}
	caption := resultCaption(remaining, local.Eng)
	assert.Contains(t, caption, "Widget built with 1 unresolved issues, score 5/10")
	assert.Contains(t, caption, "/fix")

	assert.Equal(t, "Widget ready, score 9/10", resultCaption(model.BuildResult{Outcome: model.OutcomePassed, Score: 9}, local.Eng))
	assert.Equal(t, "Виджет собран, проверка качества недоступна", resultCaption(model.BuildResult{Outcome: model.OutcomeUnverified}, local.Rus))
}

func TestProgressText(t *testing.T) {
	stream := progressText(
		ProgressEvent{Kind: ProgressStream, State: model.StateRefining, Iteration: 2, Text: "abc"}, local.Eng,
	)
	assert.Equal(t, "Refining, round 2, 3 characters received", stream)

	critique := model.CritiqueResult{Score: 6, Issues: []model.CritiqueIssue{{Severity: model.SeverityCritical}}}
	checkpoint := progressText(
		ProgressEvent{Kind: ProgressCheckpoint, Iteration: 1, Critique: &critique}, local.Eng,
	)
	assert.Equal(t, "Round 1 checked: score 6/10, 1 issues to fix", checkpoint)

	assert.Equal(t, "Checking quality, round 3", progressText(ProgressEvent{Kind: ProgressCritique, Iteration: 3}, local.Eng))
	assert.Equal(t, StatusCancelled, progressText(ProgressEvent{Kind: ProgressStatus, Status: StatusCancelled}, local.Eng))
}

func TestPrepareCheckpoints(t *testing.T) {
	session := model.NewSession(1, false)
	assert.Equal(t, "No versions yet", prepareCheckpoints(session, local.Eng))

	session.Checkpoints = []model.IterationCheckpoint{
		{Label: "Initial build", Score: 5},
		{Label: "Fix 1", Score: 8},
	}
	session.ActiveCheckpoint = 0
	assert.Equal(t, "1) Initial build, score 5/10 *\n2) Fix 1, score 8/10\n", prepareCheckpoints(session, local.Eng))
}
