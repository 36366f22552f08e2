package usecase

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iamvkosarev/ai-widget-builder/config"
	"github.com/iamvkosarev/ai-widget-builder/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestCritiqueUsecase_Critique(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    model.CritiqueResult
	}{
		{
			name: "verdict",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"passed":false,"score":6.6,"issues":[{"category":"layout","severity":"major","description":"overflows","fix":"wrap"}]}`)
			},
			want: model.CritiqueResult{
				Passed: false,
				Score:  7,
				Issues: []model.CritiqueIssue{
					{Category: "layout", Severity: model.SeverityMajor, Description: "overflows", Fix: "wrap"},
				},
			},
		},
		{
			name: "server error fails open",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			want: model.CritiqueUnavailable(),
		},
		{
			name: "missing score gives default",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"passed":false}`)
			},
			want: model.CritiqueDefault(),
		},
		{
			name: "null passed gives default",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"passed":null,"score":3}`)
			},
			want: model.CritiqueDefault(),
		},
		{
			name: "broken issues become empty",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"passed":true,"score":9,"issues":"none"}`)
			},
			want: model.CritiqueResult{Passed: true, Score: 9, Issues: make([]model.CritiqueIssue, 0)},
		},
		{
			name: "not json gives default",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `<html>oops</html>`)
			},
			want: model.CritiqueDefault(),
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				server := httptest.NewServer(tt.handler)
				defer server.Close()
				critic := NewCritiqueUsecase(config.Endpoints{CritiqueURL: server.URL}, server.Client(), nil)

				got := critic.Critique(context.Background(), "<div>clock</div>", "make a clock")
				assert.Equal(t, tt.want, got)
			},
		)
	}
}

func TestCritiqueUsecase_Critique_Timeout(t *testing.T) {
	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				<-r.Context().Done()
			},
		),
	)
	defer server.Close()
	critic := NewCritiqueUsecase(
		config.Endpoints{CritiqueURL: server.URL, CritiqueTimeout: 20 * time.Millisecond}, server.Client(), nil,
	)

	got := critic.Critique(context.Background(), "<div>clock</div>", "make a clock")
	assert.True(t, got.Unavailable())
	assert.True(t, got.Passed)
}

func TestCritiqueUsecase_Critique_EmptyCode(t *testing.T) {
	critic := NewCritiqueUsecase(config.Endpoints{CritiqueURL: "http://127.0.0.1:0"}, nil, nil)
	assert.Equal(t, model.CritiqueUnavailable(), critic.Critique(context.Background(), "", "make a clock"))
}
