package usecase

import (
	"github.com/iamvkosarev/ai-widget-builder/internal/model"
)

// Ledger is the append-only list of iteration checkpoints of one session.
// Restoring an entry never truncates the list. It is not safe for concurrent
// use; the owning Builder serializes access.
type Ledger struct {
	entries []model.IterationCheckpoint
	active  int
}

// LedgerMark is a saved ledger state used to undo a cancelled pipeline.
type LedgerMark struct {
	entries []model.IterationCheckpoint
	active  int
}

func NewLedger() *Ledger {
	return &Ledger{
		entries: make([]model.IterationCheckpoint, 0),
		active:  model.NoActiveCheckpoint,
	}
}

func NewLedgerFrom(entries []model.IterationCheckpoint, active int) *Ledger {
	l := NewLedger()
	l.entries = append(l.entries, entries...)
	if active >= 0 && active < len(l.entries) {
		l.active = active
	}
	return l
}

func (l *Ledger) Append(
	code string,
	iteration int,
	critique model.CritiqueResult,
	label string,
) model.IterationCheckpoint {
	critique = critique.Clone()
	checkpoint := model.IterationCheckpoint{
		Code:      code,
		Iteration: iteration,
		Score:     critique.Score,
		Passed:    critique.Passed,
		Issues:    critique.Issues,
		Label:     label,
	}
	l.entries = append(l.entries, checkpoint)
	l.active = model.NoActiveCheckpoint
	return checkpoint
}

// Restore marks the checkpoint at index as active. Out of range indexes leave
// the ledger untouched.
func (l *Ledger) Restore(index int) (model.IterationCheckpoint, bool) {
	if index < 0 || index >= len(l.entries) {
		return model.IterationCheckpoint{}, false
	}
	l.active = index
	return l.entries[index], true
}

func (l *Ledger) Active() int {
	return l.active
}

func (l *Ledger) Len() int {
	return len(l.entries)
}

func (l *Ledger) Entries() []model.IterationCheckpoint {
	entries := make([]model.IterationCheckpoint, len(l.entries))
	copy(entries, l.entries)
	return entries
}

func (l *Ledger) Reset() {
	l.entries = make([]model.IterationCheckpoint, 0)
	l.active = model.NoActiveCheckpoint
}

func (l *Ledger) Mark() LedgerMark {
	return LedgerMark{
		entries: l.Entries(),
		active:  l.active,
	}
}

func (l *Ledger) Rollback(mark LedgerMark) {
	l.entries = append(make([]model.IterationCheckpoint, 0, len(mark.entries)), mark.entries...)
	l.active = mark.active
}
