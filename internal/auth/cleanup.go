package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultCleanupSchedule purges expired revocations every 15 minutes.
const DefaultCleanupSchedule = "@every 15m"

// PurgeExpired deletes revocation records of tokens that have expired anyway.
func (t *Tokens) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := t.store.PurgeRevokedTokens(ctx, t.now())
	if err != nil {
		return 0, fmt.Errorf("purge revoked tokens: %w", err)
	}
	return n, nil
}

// ScheduleCleanup registers the revocation purge on a new cron scheduler.
// The caller starts and stops the returned scheduler.
func (t *Tokens) ScheduleCleanup(spec string) (*cron.Cron, error) {
	if spec == "" {
		spec = DefaultCleanupSchedule
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := t.PurgeExpired(ctx)
		if err != nil {
			slog.Error("revoked token cleanup failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("revoked tokens purged", "count", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return c, nil
}
