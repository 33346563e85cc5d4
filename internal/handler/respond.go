package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/autoescuela/campus/internal/auth"
	appI18n "github.com/autoescuela/campus/internal/i18n"
	"github.com/autoescuela/campus/internal/model"
)

const maxBodyBytes = 1 << 20

// errLLMUnavailable is reported when no answer assistant is configured.
var errLLMUnavailable = errors.New("llm not configured")

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps domain errors to statuses and writes the localized envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := appI18n.T(r.Context(), code)
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		msg = appI18n.Td(r.Context(), code, map[string]any{"Detail": ve.Error()})
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			"method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
	} else {
		slog.Debug("request rejected", "path", r.URL.Path, "code", code, "error", err)
	}
	writeJSON(w, status, envelope{Error: errorBody{Code: code, Message: msg}})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, errWrongPassword):
		return http.StatusBadRequest, "wrong_password"
	case errors.Is(err, errInvalidBody):
		return http.StatusBadRequest, "invalid_body"
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, model.ErrNoMoreAttempts):
		return http.StatusBadRequest, "no_more_attempts"
	case errors.Is(err, model.ErrEmptyBank):
		return http.StatusBadRequest, "empty_bank"
	case errors.Is(err, model.ErrAlreadySubmitted):
		return http.StatusConflict, "already_submitted"
	case errors.Is(err, errLLMUnavailable):
		return http.StatusServiceUnavailable, "llm_unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

var errInvalidBody = errors.New("invalid request body")

// decode reads a JSON body into v and runs its validation tags.
func (h *Handler) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return h.check(v)
}

// check runs validation tags on v and reports the first violation.
func (h *Handler) check(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return model.Invalid(fieldName(fe), "failed %q check", fe.Tag())
	}
	return model.Invalid("", "%v", err)
}

// fieldName turns a validator namespace such as "submitRequest.answers[0].question_id"
// into "answers[0].question_id".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, model.Invalid(name, "not a valid id")
	}
	return id, nil
}

// queryID reads an optional UUID query parameter.
func queryID(r *http.Request, name string) (*uuid.UUID, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, model.Invalid(name, "not a valid id")
	}
	return &id, nil
}

// orEmpty keeps JSON list responses as [] rather than null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
