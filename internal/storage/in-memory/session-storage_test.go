package in_memory

import (
	"context"
	"testing"

	"github.com/iamvkosarev/ai-widget-builder/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStorage(t *testing.T) {
	storage := NewSessionStorage()
	ctx := context.Background()

	_, err := storage.GetChatSession(ctx, 5)
	assert.ErrorIs(t, err, model.ErrSessionDoesNotExist)

	session := model.NewSession(5, false)
	session.Conversation = append(session.Conversation, model.ConversationMessage{Role: model.MessageRoleUser, Content: "make a clock"})
	require.NoError(t, storage.SaveSession(ctx, session))

	session.Conversation[0].Content = "changed after save"

	got, err := storage.GetChatSession(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, "make a clock", got.Conversation[0].Content)

	require.NoError(t, storage.DeleteChatSession(ctx, 5))
	_, err = storage.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, model.ErrSessionDoesNotExist)
}
