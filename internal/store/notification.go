package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/autoescuela/campus/internal/model"
)

// CreateNotification stores a notification for a cohort.
func (s *Store) CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	n.ID = uuid.New()
	n.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, cohort_id, title, body, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.CohortID, n.Title, n.Body, n.CreatedBy, n.CreatedAt,
	)
	if err != nil {
		return n, constraint(err, "cohort_id")
	}
	return n, nil
}

// ListNotifications returns every notification, newest first, labeled with its cohort.
func (s *Store) ListNotifications(ctx context.Context) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT n.id, n.cohort_id, n.title, n.body, n.created_by, n.created_at, co.name, ch.name
		 FROM notifications n
		 JOIN cohorts ch ON ch.id = n.cohort_id
		 JOIN courses co ON co.id = ch.course_id
		 ORDER BY n.created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		cohort := model.Cohort{}
		if err := rows.Scan(&n.ID, &n.CohortID, &n.Title, &n.Body, &n.CreatedBy, &n.CreatedAt,
			&cohort.CourseName, &cohort.Name); err != nil {
			return nil, err
		}
		n.CohortLabel = cohort.Label()
		out = append(out, n)
	}
	return out, rows.Err()
}

// Inbox returns the notifications of the user's cohort with their read state, newest first.
func (s *Store) Inbox(ctx context.Context, userID uuid.UUID) ([]model.InboxNotification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT n.id, n.cohort_id, n.title, n.body, n.created_by, n.created_at, r.read_at
		 FROM notifications n
		 JOIN users u ON u.cohort_id = n.cohort_id
		 LEFT JOIN notification_reads r ON r.notification_id = n.id AND r.user_id = u.id
		 WHERE u.id = ?
		 ORDER BY n.created_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.InboxNotification
	for rows.Next() {
		var n model.InboxNotification
		if err := rows.Scan(&n.ID, &n.CohortID, &n.Title, &n.Body, &n.CreatedBy, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, err
		}
		n.IsRead = n.ReadAt != nil
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadCount returns how many notifications of the user's cohort are unread.
func (s *Store) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications n
		 JOIN users u ON u.cohort_id = n.cohort_id
		 LEFT JOIN notification_reads r ON r.notification_id = n.id AND r.user_id = u.id
		 WHERE u.id = ? AND r.read_at IS NULL`, userID,
	).Scan(&n)
	return n, err
}

// MarkNotificationRead records that the user read a notification of their cohort.
func (s *Store) MarkNotificationRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_reads (notification_id, user_id, read_at)
		 SELECT n.id, u.id, ? FROM notifications n JOIN users u ON u.cohort_id = n.cohort_id
		 WHERE n.id = ? AND u.id = ?
		 ON CONFLICT(notification_id, user_id) DO UPDATE SET read_at = excluded.read_at`,
		time.Now().UTC(), notificationID, userID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, "notification")
}
