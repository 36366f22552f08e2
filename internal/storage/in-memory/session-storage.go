package in_memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/iamvkosarev/ai-widget-builder/internal/model"
)

// SessionStorage keeps sessions in process memory. It is used when no redis
// endpoint is configured.
type SessionStorage struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]model.Session
	chats    map[int64]uuid.UUID
}

func NewSessionStorage() *SessionStorage {
	return &SessionStorage{
		sessions: make(map[uuid.UUID]model.Session),
		chats:    make(map[int64]uuid.UUID),
	}
}

func (s *SessionStorage) GetSession(_ context.Context, sessionID uuid.UUID) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return model.Session{}, model.ErrSessionDoesNotExist
	}
	return copySession(session), nil
}

func (s *SessionStorage) GetChatSession(ctx context.Context, chatID int64) (model.Session, error) {
	s.mu.RLock()
	sessionID, ok := s.chats[chatID]
	s.mu.RUnlock()
	if !ok {
		return model.Session{}, model.ErrSessionDoesNotExist
	}
	return s.GetSession(ctx, sessionID)
}

func (s *SessionStorage) SaveSession(_ context.Context, session model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = copySession(session)
	s.chats[session.ChatID] = session.ID
	return nil
}

func (s *SessionStorage) DeleteChatSession(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID, ok := s.chats[chatID]; ok {
		delete(s.sessions, sessionID)
		delete(s.chats, chatID)
	}
	return nil
}

func copySession(session model.Session) model.Session {
	session.Conversation = append(make([]model.ConversationMessage, 0, len(session.Conversation)), session.Conversation...)
	session.Checkpoints = append(make([]model.IterationCheckpoint, 0, len(session.Checkpoints)), session.Checkpoints...)
	if session.LastCritique != nil {
		critique := session.LastCritique.Clone()
		session.LastCritique = &critique
	}
	return session
}
