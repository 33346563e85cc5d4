// Package handler exposes the platform as a JSON API.
package handler

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/autoescuela/campus/internal/auth"
	"github.com/autoescuela/campus/internal/exam"
	"github.com/autoescuela/campus/internal/model"
	"github.com/autoescuela/campus/internal/store"
)

// Suggester proposes extra accepted answers for open-text questions.
type Suggester interface {
	SuggestAlternatives(ctx context.Context, q model.Question) ([][]string, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	exams    *exam.Service
	tokens   *auth.Tokens
	llm      Suggester
	validate *validator.Validate
	now      func() time.Time
}

// New creates a new Handler. llm may be nil when no assistant is configured.
func New(s *store.Store, exams *exam.Service, tokens *auth.Tokens, llm Suggester) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		store:    s,
		exams:    exams,
		tokens:   tokens,
		llm:      llm,
		validate: v,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Get("/auth/me", h.handleMe)
			r.Post("/auth/logout", h.handleLogout)
			r.Post("/auth/password", h.handleChangePassword)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.UserRoleStudent))

				r.Get("/exams", h.handleStudentExams)
				r.Get("/exams/{examID}/my-attempt", h.handleMyAttempt)
				r.Post("/exams/{examID}/start", h.handleStartAttempt)
				r.Post("/attempts/{attemptID}/submit", h.handleSubmitAttempt)
				r.Get("/attempts/{attemptID}/result", h.handleAttemptResult)
				r.Get("/attempts/{attemptID}/detail", h.handleAttemptDetail)
				r.Get("/exam-results", h.handleMyExamResults)
				r.Get("/progress", h.handleProgress)
				r.Get("/subjects", h.handleMySubjects)
				r.Get("/subjects/{subjectID}/contents", h.handleSubjectContents)
				r.Get("/notifications", h.handleInbox)
				r.Get("/notifications/unread-count", h.handleUnreadCount)
				r.Post("/notifications/{notificationID}/read", h.handleMarkRead)
				r.Post("/activity", h.handleAddActivity)
				r.Get("/activity", h.handleMyActivity)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireRole(model.UserRoleAdmin))
				h.adminRoutes(r)
			})
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "timestamp": h.now()})
}
