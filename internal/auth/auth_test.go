package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/autoescuela/campus/internal/model"
	"github.com/autoescuela/campus/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestTokens(t *testing.T, now *time.Time) *Tokens {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	tok, err := NewTokens(testSecret, time.Hour, s)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	tok.now = func() time.Time { return *now }
	return tok
}

func TestNewTokensRejectsShortSecret(t *testing.T) {
	if _, err := NewTokens("short", time.Hour, nil); err == nil {
		t.Error("expected error for short secret")
	}
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tok := newTestTokens(t, &now)
	ctx := context.Background()
	u := &model.User{ID: uuid.New(), Role: model.UserRoleAdmin}

	signed, exp, err := tok.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.Equal(now.Add(time.Hour)) {
		t.Errorf("expected expiry in one hour, got %v", exp)
	}

	claims, err := tok.Verify(ctx, signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	id, err := claims.UserID()
	if err != nil || id != u.ID {
		t.Errorf("expected subject %s, got %s (%v)", u.ID, id, err)
	}
	if claims.Role != model.UserRoleAdmin {
		t.Errorf("expected admin role, got %q", claims.Role)
	}
}

func TestVerifyRejects(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tok := newTestTokens(t, &now)
	ctx := context.Background()
	u := &model.User{ID: uuid.New(), Role: model.UserRoleStudent}
	signed, _, err := tok.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other, err := NewTokens(strings.Repeat("x", MinSecretLength), time.Hour, tok.store)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	other.now = tok.now
	forged, _, err := other.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   u.ID.String(),
		ID:        "x",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	tests := []struct {
		name  string
		token string
		at    time.Time
	}{
		{"garbage", "not-a-token", now},
		{"other secret", forged, now},
		{"alg none", none, now},
		{"expired", signed, now.Add(2 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := tt.at
			tok.now = func() time.Time { return at }
			if _, err := tok.Verify(ctx, tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestRevokeAndPurge(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tok := newTestTokens(t, &now)
	ctx := context.Background()
	signed, _, err := tok.Issue(&model.User{ID: uuid.New(), Role: model.UserRoleStudent})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := tok.Verify(ctx, signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if err := tok.Revoke(ctx, claims); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := tok.Verify(ctx, signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected revoked token to be rejected, got %v", err)
	}

	n, err := tok.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 0 {
		t.Errorf("expected nothing purged before expiry, got %d", n)
	}

	now = now.Add(2 * time.Hour)
	n, err = tok.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged after expiry, got %d", n)
	}
}

func TestScheduleCleanup(t *testing.T) {
	now := time.Now()
	tok := newTestTokens(t, &now)
	if _, err := tok.ScheduleCleanup("not a schedule"); err == nil {
		t.Error("expected error for bad schedule")
	}
	c, err := tok.ScheduleCleanup("")
	if err != nil {
		t.Fatalf("ScheduleCleanup: %v", err)
	}
	if len(c.Entries()) != 1 {
		t.Errorf("expected one cron entry, got %d", len(c.Entries()))
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("secreto1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "secreto1") {
		t.Error("expected password to match")
	}
	if CheckPassword(hash, "secreto2") {
		t.Error("expected wrong password to fail")
	}
}

func TestClaimsContext(t *testing.T) {
	if ClaimsFromContext(context.Background()) != nil {
		t.Error("expected nil claims on empty context")
	}
	c := &Claims{Role: model.UserRoleStudent}
	if got := ClaimsFromContext(ContextWithClaims(context.Background(), c)); got != c {
		t.Error("expected stored claims")
	}
}
