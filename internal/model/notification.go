package model

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a message broadcast to every user of a cohort.
type Notification struct {
	ID          uuid.UUID `json:"id"`
	CohortID    uuid.UUID `json:"cohort_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	CohortLabel string    `json:"cohort_label,omitempty"`
}

// InboxNotification is a notification as seen by one recipient.
type InboxNotification struct {
	Notification
	ReadAt *time.Time `json:"read_at,omitempty"`
	IsRead bool       `json:"is_read"`
}

// Activity accumulates a user's time on the platform and the contents they opened.
type Activity struct {
	UserID           uuid.UUID   `json:"user_id"`
	TotalTimeSeconds int64       `json:"total_time_seconds"`
	ContentsViewed   []uuid.UUID `json:"contents_viewed"`
	LastActiveAt     *time.Time  `json:"last_active_at"`
}
