package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/iamvkosarev/ai-widget-builder/internal/model"
	in_memory "github.com/iamvkosarev/ai-widget-builder/internal/storage/in-memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessions(t *testing.T, storage SessionStorage) *SessionUsecase {
	t.Helper()
	sessions := NewSessionUsecase(
		SessionUsecaseDeps{
			Storage:   storage,
			Generator: &fakeGenerator{StreamGenerateFunc: streamed(clockDoc)},
			Critic:    &fakeCritic{CritiqueFunc: passing(9)},
		}, testBuilderConfig(),
	)
	t.Cleanup(sessions.Close)
	return sessions
}

func TestSessionUsecase_BuilderIsPerChat(t *testing.T) {
	sessions := newTestSessions(t, in_memory.NewSessionStorage())
	ctx := context.Background()

	first, err := sessions.Builder(ctx, 1)
	require.NoError(t, err)
	again, err := sessions.Builder(ctx, 1)
	require.NoError(t, err)
	other, err := sessions.Builder(ctx, 2)
	require.NoError(t, err)

	assert.Same(t, first, again)
	assert.NotSame(t, first, other)

	found, err := sessions.Lookup(ctx, first.Snapshot().ID)
	require.NoError(t, err)
	assert.Same(t, first, found)

	_, err = sessions.Lookup(ctx, uuid.New())
	assert.ErrorIs(t, err, model.ErrSessionDoesNotExist)
}

func TestSessionUsecase_RestoresSavedSession(t *testing.T) {
	storage := in_memory.NewSessionStorage()
	ctx := context.Background()

	sessions := newTestSessions(t, storage)
	b, err := sessions.Builder(ctx, 7)
	require.NoError(t, err)
	_, err = b.Submit(ctx, "make a clock")
	require.NoError(t, err)
	require.NoError(t, sessions.Save(ctx, b))

	restarted := newTestSessions(t, storage)
	restored, err := restarted.Builder(ctx, 7)
	require.NoError(t, err)

	snapshot := restored.Snapshot()
	assert.Equal(t, b.Snapshot().ID, snapshot.ID)
	assert.Equal(t, clockDoc, snapshot.Code)
	assert.Len(t, snapshot.Conversation, 2)
	assert.Len(t, snapshot.Checkpoints, 1)
	assert.True(t, restored.HasWidget())
}

func TestSessionUsecase_Reset(t *testing.T) {
	storage := in_memory.NewSessionStorage()
	sessions := newTestSessions(t, storage)
	ctx := context.Background()

	b, err := sessions.Builder(ctx, 3)
	require.NoError(t, err)
	_, err = b.Submit(ctx, "make a clock")
	require.NoError(t, err)
	require.NoError(t, sessions.Save(ctx, b))

	reset, err := sessions.Reset(ctx, 3)
	require.NoError(t, err)
	assert.Same(t, b, reset)
	assert.False(t, reset.HasWidget())

	_, err = storage.GetChatSession(ctx, 3)
	assert.ErrorIs(t, err, model.ErrSessionDoesNotExist)
}
