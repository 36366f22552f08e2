package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/iamvkosarev/ai-widget-builder/config"
	"github.com/iamvkosarev/ai-widget-builder/internal/model"
	openai_tools "github.com/iamvkosarev/ai-widget-builder/pkg/openai-tools"
)

type SessionStorage interface {
	GetSession(ctx context.Context, sessionID uuid.UUID) (model.Session, error)
	GetChatSession(ctx context.Context, chatID int64) (model.Session, error)
	SaveSession(ctx context.Context, session model.Session) error
	DeleteChatSession(ctx context.Context, chatID int64) error
}

type SessionUsecaseDeps struct {
	Storage   SessionStorage
	Generator Generator
	Critic    Critic
	Tokens    openai_tools.Counter
	Logger    *slog.Logger
}

// SessionUsecase owns one live Builder per chat and persists their sessions.
type SessionUsecase struct {
	SessionUsecaseDeps
	cfg config.Builder

	mu       sync.Mutex
	builders map[int64]*Builder
	byID     map[uuid.UUID]*Builder
}

func NewSessionUsecase(deps SessionUsecaseDeps, cfg config.Builder) *SessionUsecase {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &SessionUsecase{
		SessionUsecaseDeps: deps,
		cfg:                cfg,
		builders:           make(map[int64]*Builder),
		byID:               make(map[uuid.UUID]*Builder),
	}
}

// Builder returns the live builder of a chat, restoring the stored session or
// starting a fresh one.
func (s *SessionUsecase) Builder(ctx context.Context, chatID int64) (*Builder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.builders[chatID]; ok {
		return b, nil
	}
	session, err := s.Storage.GetChatSession(ctx, chatID)
	if err != nil {
		if !errors.Is(err, model.ErrSessionDoesNotExist) {
			return nil, fmt.Errorf("failed to get chat session: %w", err)
		}
		session = model.NewSession(chatID, s.cfg.AskFirst)
	}
	b := s.newBuilder(session)
	s.builders[chatID] = b
	s.byID[session.ID] = b
	return b, nil
}

// Lookup finds a builder by session id. Sessions that are only stored are
// loaded on demand.
func (s *SessionUsecase) Lookup(ctx context.Context, sessionID uuid.UUID) (*Builder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.byID[sessionID]; ok {
		return b, nil
	}
	session, err := s.Storage.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if b, ok := s.builders[session.ChatID]; ok {
		// The chat moved on to a newer session.
		return b, nil
	}
	b := s.newBuilder(session)
	s.builders[session.ChatID] = b
	s.byID[session.ID] = b
	return b, nil
}

func (s *SessionUsecase) Save(ctx context.Context, b *Builder) error {
	if err := s.Storage.SaveSession(ctx, b.Snapshot()); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Reset starts the chat over and drops the stored session.
func (s *SessionUsecase) Reset(ctx context.Context, chatID int64) (*Builder, error) {
	b, err := s.Builder(ctx, chatID)
	if err != nil {
		return nil, err
	}
	b.StartOver()
	if err = s.Storage.DeleteChatSession(ctx, chatID); err != nil {
		return nil, fmt.Errorf("failed to delete chat session: %w", err)
	}
	return b, nil
}

func (s *SessionUsecase) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.builders {
		b.Close()
	}
}

func (s *SessionUsecase) newBuilder(session model.Session) *Builder {
	return NewBuilder(
		BuilderDeps{
			Generator: s.Generator,
			Critic:    s.Critic,
			Tokens:    s.Tokens,
			Logger:    s.Logger.With("chat_id", session.ChatID),
		},
		s.cfg,
		session,
	)
}
