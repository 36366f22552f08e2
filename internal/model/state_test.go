package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from  State
		event Event
		want  State
	}{
		{StateIdle, EventClarify, StateClarifying},
		{StateClarifying, EventClarifyDone, StateAwaitingClarification},
		{StateAwaitingClarification, EventBuild, StateBuilding},
		{StateIdle, EventBuild, StateBuilding},
		{StateIdle, EventRefine, StateRefining},
		{StateBuilding, EventCritique, StateIteratingQA},
		{StateRefining, EventCritique, StateIteratingQA},
		{StateIteratingQA, EventCritique, StateIteratingQA},
		{StateIteratingQA, EventComplete, StateIdle},
		{StateIdle, EventExtraFix, StateIteratingQA},
		{StateFailed, EventRefine, StateRefining},
		{StateCancelled, EventBuild, StateBuilding},
		{StateBuilding, EventCancel, StateCancelled},
		{StateIteratingQA, EventFail, StateFailed},
		{StateRefining, EventReset, StateIdle},
		{StateCancelled, EventReset, StateIdle},
	}

	for _, tt := range tests {
		t.Run(
			string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
				got, err := Transition(tt.from, tt.event)
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			},
		)
	}
}

func TestTransition_Invalid(t *testing.T) {
	tests := []struct {
		from  State
		event Event
	}{
		{StateIdle, EventCancel},
		{StateIdle, EventFail},
		{StateIdle, EventComplete},
		{StateBuilding, EventBuild},
		{StateAwaitingClarification, EventRefine},
		{StateClarifying, EventCritique},
		{StateCancelled, EventCancel},
	}

	for _, tt := range tests {
		got, err := Transition(tt.from, tt.event)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, tt.from, got)
	}
}

func TestState_IsActive(t *testing.T) {
	assert.True(t, StateBuilding.IsActive())
	assert.True(t, StateClarifying.IsActive())
	assert.False(t, StateAwaitingClarification.IsActive())
	assert.False(t, StateFailed.IsActive())
}
