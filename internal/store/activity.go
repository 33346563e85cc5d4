package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/autoescuela/campus/internal/model"
)

// AddActivity adds seconds to the user's time accumulator, records a viewed
// content item if given, and bumps last_active_at.
func (s *Store) AddActivity(ctx context.Context, userID uuid.UUID, seconds int64, contentID *uuid.UUID) (model.Activity, error) {
	now := time.Now().UTC()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx,
			`SELECT contents_viewed FROM user_activity WHERE user_id = ?`, userID,
		).Scan(&raw)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		viewed := []uuid.UUID{}
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &viewed); err != nil {
				return fmt.Errorf("decode contents viewed: %w", err)
			}
		}
		if contentID != nil && !slices.Contains(viewed, *contentID) {
			viewed = append(viewed, *contentID)
		}
		data, err := json.Marshal(viewed)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO user_activity (user_id, total_time_seconds, contents_viewed, last_active_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(user_id) DO UPDATE SET
				total_time_seconds = total_time_seconds + excluded.total_time_seconds,
				contents_viewed = excluded.contents_viewed,
				last_active_at = excluded.last_active_at`,
			userID, seconds, string(data), now,
		)
		return constraint(err, "user_id")
	})
	if err != nil {
		return model.Activity{}, err
	}
	return s.GetActivity(ctx, userID)
}

// GetActivity returns the user's activity. Users without activity get a zero record.
func (s *Store) GetActivity(ctx context.Context, userID uuid.UUID) (model.Activity, error) {
	act := model.Activity{UserID: userID, ContentsViewed: []uuid.UUID{}}
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT total_time_seconds, contents_viewed, last_active_at FROM user_activity WHERE user_id = ?`, userID,
	).Scan(&act.TotalTimeSeconds, &raw, &act.LastActiveAt)
	if err == sql.ErrNoRows {
		return act, nil
	}
	if err != nil {
		return act, err
	}
	if err := json.Unmarshal([]byte(raw), &act.ContentsViewed); err != nil {
		return act, fmt.Errorf("decode contents viewed: %w", err)
	}
	return act, nil
}

// CohortActivity returns the activity of every student in a cohort keyed by user.
func (s *Store) CohortActivity(ctx context.Context, cohortID uuid.UUID) (map[uuid.UUID]model.Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.user_id, a.total_time_seconds, a.last_active_at
		 FROM user_activity a JOIN users u ON u.id = a.user_id
		 WHERE u.cohort_id = ?`, cohortID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]model.Activity)
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.UserID, &a.TotalTimeSeconds, &a.LastActiveAt); err != nil {
			return nil, err
		}
		out[a.UserID] = a
	}
	return out, rows.Err()
}
