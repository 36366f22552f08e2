// Package preview hosts the sandboxed widget preview and collects the runtime
// errors its error bridge reports.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/iamvkosarev/ai-widget-builder/config"
	"github.com/iamvkosarev/ai-widget-builder/internal/model"
	"github.com/iamvkosarev/ai-widget-builder/pkg/widgetcode"
	"github.com/rs/cors"
)

const (
	maxErrorReportSize = 64 * 1024
	shutdownTimeout    = 5 * time.Second
)

type Widget interface {
	PreviewDocument() string
	ReportSandboxMessage(raw []byte) bool
}

type LookupFunc func(ctx context.Context, sessionID uuid.UUID) (Widget, error)

type Server struct {
	cfg    config.Preview
	lookup LookupFunc
	logger *slog.Logger
}

func NewServer(cfg config.Preview, lookup LookupFunc, logger *slog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		lookup: lookup,
		logger: logger,
	}
}

// URL is the public address of a session preview page.
func (s *Server) URL(sessionID uuid.UUID) string {
	if s.cfg.PublicURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/preview/%s", s.cfg.PublicURL, sessionID)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /preview/{id}", s.page)
	mux.HandleFunc("GET /preview/{id}/frame", s.frame)
	mux.HandleFunc("POST /preview/{id}/errors", s.reportErrors)

	var handler http.Handler = mux
	handler = recovery(s.logger)(handler)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept"},
	})
	return corsHandler.Handler(handler)
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:        s.cfg.Addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("preview server starting", "addr", s.cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve preview: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown preview server: %w", err)
		}
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	sessionID, widget, ok := s.widget(w, r)
	if !ok {
		return
	}
	data := pageData{
		ErrorsURL:     fmt.Sprintf("/preview/%s/errors", sessionID),
		Document:      widget.PreviewDocument(),
		MessageType:   widgetcode.SandboxMessageType,
		MessageSource: widgetcode.SandboxMessageSource,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.Error("failed to render preview page", "session_id", sessionID, "error", err)
	}
}

func (s *Server) frame(w http.ResponseWriter, r *http.Request) {
	_, widget, ok := s.widget(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", "sandbox allow-scripts")
	_, _ = io.WriteString(w, widget.PreviewDocument())
}

func (s *Server) reportErrors(w http.ResponseWriter, r *http.Request) {
	sessionID, widget, ok := s.widget(w, r)
	if !ok {
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxErrorReportSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	recorded := widget.ReportSandboxMessage(raw)
	if recorded {
		s.logger.Info("sandbox error recorded", "session_id", sessionID)
	}
	respondJSON(w, http.StatusAccepted, map[string]bool{"recorded": recorded})
}

func (s *Server) widget(w http.ResponseWriter, r *http.Request) (uuid.UUID, Widget, bool) {
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return uuid.Nil, nil, false
	}
	widget, err := s.lookup(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, model.ErrSessionDoesNotExist) {
			respondError(w, http.StatusNotFound, "session not found")
			return uuid.Nil, nil, false
		}
		s.logger.Error("failed to look up session", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return uuid.Nil, nil, false
	}
	return sessionID, widget, true
}

func recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"error", err,
						"path", r.URL.Path,
						"method", r.Method,
						"stack", string(debug.Stack()),
					)
					respondError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
