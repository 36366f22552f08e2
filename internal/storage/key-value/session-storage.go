package key_value

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/iamvkosarev/ai-widget-builder/internal/model"
	"github.com/redis/go-redis/v9"
)

type messageInternal struct {
	Role    model.MessageRole `json:"role"`
	Content string            `json:"content"`
	Summary string            `json:"summary,omitempty"`
	Type    model.MessageType `json:"message_type,omitempty"`
}

type checkpointInternal struct {
	Code      string                `json:"code"`
	Iteration int                   `json:"iteration"`
	Score     int                   `json:"score"`
	Passed    bool                  `json:"passed"`
	Issues    []model.CritiqueIssue `json:"issues"`
	Label     string                `json:"label"`
}

type sessionInternal struct {
	SessionID        string                `json:"session_id"`
	ChatID           int64                 `json:"chat_id"`
	Title            string                `json:"title"`
	Code             string                `json:"code"`
	OriginalPrompt   string                `json:"original_prompt"`
	Messages         []messageInternal     `json:"messages"`
	Checkpoints      []checkpointInternal  `json:"checkpoints"`
	ActiveCheckpoint int                   `json:"active_checkpoint"`
	LastCritique     *model.CritiqueResult `json:"last_critique,omitempty"`
	ExtraFixes       int                   `json:"extra_fixes"`
	State            model.State           `json:"state"`
	View             model.View            `json:"view"`
	LastError        string                `json:"last_error,omitempty"`
	FailedPrompt     string                `json:"failed_prompt,omitempty"`
	AskFirst         bool                  `json:"ask_first"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// SessionStorage keeps widget sessions in redis as JSON documents. A second
// key maps a telegram chat to its current session.
type SessionStorage struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionStorage(rdb *redis.Client, ttl time.Duration) *SessionStorage {
	return &SessionStorage{
		rdb: rdb,
		ttl: ttl,
	}
}

func (s *SessionStorage) GetSession(ctx context.Context, sessionID uuid.UUID) (model.Session, error) {
	sessionInt, err := s.getSessionInt(ctx, sessionID)
	if err != nil {
		return model.Session{}, err
	}
	session, err := toSession(sessionInt)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to parse session %s: %w", sessionID, err)
	}
	return session, nil
}

func (s *SessionStorage) GetChatSession(ctx context.Context, chatID int64) (model.Session, error) {
	sessionIDRaw, err := s.rdb.Get(ctx, getChatSessionKey(chatID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Session{}, model.ErrSessionDoesNotExist
		}
		return model.Session{}, fmt.Errorf("failed to get session of chat %d: %w", chatID, err)
	}
	sessionID, err := uuid.Parse(sessionIDRaw)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to parse session id %s: %w", sessionIDRaw, err)
	}
	return s.GetSession(ctx, sessionID)
}

func (s *SessionStorage) SaveSession(ctx context.Context, session model.Session) error {
	sessionIntJSON, err := json.Marshal(toSessionInternal(session))
	if err != nil {
		return fmt.Errorf("failed to marshal internal session: %w", err)
	}
	_, err = s.rdb.TxPipelined(
		ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, getSessionKey(session.ID), sessionIntJSON, s.ttl)
			pipe.Set(ctx, getChatSessionKey(session.ChatID), session.ID.String(), s.ttl)
			return nil
		},
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	return nil
}

func (s *SessionStorage) DeleteChatSession(ctx context.Context, chatID int64) error {
	chatKey := getChatSessionKey(chatID)
	sessionIDRaw, err := s.rdb.Get(ctx, chatKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to get session of chat %d: %w", chatID, err)
	}
	keys := []string{chatKey}
	if sessionID, err := uuid.Parse(sessionIDRaw); err == nil {
		keys = append(keys, getSessionKey(sessionID))
	}
	if err = s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete session of chat %d: %w", chatID, err)
	}
	return nil
}

func (s *SessionStorage) getSessionInt(ctx context.Context, sessionID uuid.UUID) (sessionInternal, error) {
	sessionIntRaw, err := s.rdb.Get(ctx, getSessionKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return sessionInternal{}, model.ErrSessionDoesNotExist
		}
		return sessionInternal{}, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	var sessionInt sessionInternal
	if err = json.Unmarshal([]byte(sessionIntRaw), &sessionInt); err != nil {
		return sessionInternal{}, fmt.Errorf("failed to unmarshal session %s: %w", sessionID, err)
	}
	return sessionInt, nil
}

func toSessionInternal(session model.Session) sessionInternal {
	messages := make([]messageInternal, 0, len(session.Conversation))
	for _, msg := range session.Conversation {
		messages = append(
			messages, messageInternal{
				Role:    msg.Role,
				Content: msg.Content,
				Summary: msg.Summary,
				Type:    msg.Type,
			},
		)
	}
	checkpoints := make([]checkpointInternal, 0, len(session.Checkpoints))
	for _, cp := range session.Checkpoints {
		checkpoints = append(
			checkpoints, checkpointInternal{
				Code:      cp.Code,
				Iteration: cp.Iteration,
				Score:     cp.Score,
				Passed:    cp.Passed,
				Issues:    cp.Issues,
				Label:     cp.Label,
			},
		)
	}
	state := session.State
	if state.IsActive() {
		state = model.StateIdle
	}
	return sessionInternal{
		SessionID:        session.ID.String(),
		ChatID:           session.ChatID,
		Title:            session.Title,
		Code:             session.Code,
		OriginalPrompt:   session.OriginalPrompt,
		Messages:         messages,
		Checkpoints:      checkpoints,
		ActiveCheckpoint: session.ActiveCheckpoint,
		LastCritique:     session.LastCritique,
		ExtraFixes:       session.ExtraFixes,
		State:            state,
		View:             session.View,
		LastError:        session.LastError,
		FailedPrompt:     session.FailedPrompt,
		AskFirst:         session.AskFirst,
		UpdatedAt:        session.UpdatedAt,
	}
}

func toSession(sessionInt sessionInternal) (model.Session, error) {
	sessionID, err := uuid.Parse(sessionInt.SessionID)
	if err != nil {
		return model.Session{}, err
	}
	conversation := make([]model.ConversationMessage, 0, len(sessionInt.Messages))
	for _, msg := range sessionInt.Messages {
		conversation = append(
			conversation, model.ConversationMessage{
				Role:    msg.Role,
				Content: msg.Content,
				Summary: msg.Summary,
				Type:    msg.Type,
			},
		)
	}
	checkpoints := make([]model.IterationCheckpoint, 0, len(sessionInt.Checkpoints))
	for _, cp := range sessionInt.Checkpoints {
		checkpoints = append(
			checkpoints, model.IterationCheckpoint{
				Code:      cp.Code,
				Iteration: cp.Iteration,
				Score:     cp.Score,
				Passed:    cp.Passed,
				Issues:    cp.Issues,
				Label:     cp.Label,
			},
		)
	}
	return model.Session{
		ID:               sessionID,
		ChatID:           sessionInt.ChatID,
		Title:            sessionInt.Title,
		Code:             sessionInt.Code,
		OriginalPrompt:   sessionInt.OriginalPrompt,
		Conversation:     conversation,
		Checkpoints:      checkpoints,
		ActiveCheckpoint: sessionInt.ActiveCheckpoint,
		LastCritique:     sessionInt.LastCritique,
		ExtraFixes:       sessionInt.ExtraFixes,
		State:            sessionInt.State,
		View:             sessionInt.View,
		LastError:        sessionInt.LastError,
		FailedPrompt:     sessionInt.FailedPrompt,
		AskFirst:         sessionInt.AskFirst,
		UpdatedAt:        sessionInt.UpdatedAt,
	}, nil
}

func getSessionKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("widget_session_%v", sessionID.String())
}

func getChatSessionKey(chatID int64) string {
	return fmt.Sprintf("chat_widget_session_%v", chatID)
}
