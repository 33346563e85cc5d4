package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/autoescuela/campus/internal/auth"
	"github.com/autoescuela/campus/internal/model"
)

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errWrongPassword      = errors.New("wrong current password")
)

// requireAuth is middleware that checks for a valid bearer token and loads its user.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			writeError(w, r, fmt.Errorf("%w: missing bearer token", auth.ErrInvalidToken))
			return
		}

		claims, err := h.tokens.Verify(r.Context(), strings.TrimSpace(token))
		if err != nil {
			writeError(w, r, err)
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err))
			return
		}
		user, err := h.store.GetUserByID(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if user == nil {
			writeError(w, r, fmt.Errorf("%w: user %s no longer exists", auth.ErrInvalidToken, userID))
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		ctx = auth.ContextWithClaims(ctx, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole is middleware that rejects users without the given role.
func requireRole(role model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil || user.Role != role {
				writeError(w, r, fmt.Errorf("role %s required: %w", role, model.ErrForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        *model.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		slog.Warn("failed login", "email", strings.ToLower(req.Email))
		writeError(w, r, errInvalidCredentials)
		return
	}

	token, exp, err := h.tokens.Issue(user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("user logged in", "user", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, ExpiresAt: exp, User: user})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.UserFromContext(r.Context()))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if err := h.tokens.Revoke(r.Context(), claims); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,max=72"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	var req changePasswordRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		writeError(w, r, errWrongPassword)
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.SetPassword(r.Context(), user.ID, hash, false); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("password changed", "user", user.ID)
	w.WriteHeader(http.StatusNoContent)
}
