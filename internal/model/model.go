package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student enrolled in a cohort.
	UserRoleStudent UserRole = "student"
	// UserRoleAdmin manages courses, exams and users.
	UserRoleAdmin UserRole = "admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == UserRoleStudent || r == UserRoleAdmin
}

// User represents a system user.
type User struct {
	ID                 uuid.UUID  `json:"id"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	FullName           string     `json:"full_name"`
	Role               UserRole   `json:"role"`
	CohortID           *uuid.UUID `json:"cohort_id,omitempty"`
	DirectCourseID     *uuid.UUID `json:"-"`
	CourseID           *uuid.UUID `json:"course_id,omitempty"` // effective course: cohort's course, else DirectCourseID
	Cedula             string     `json:"cedula"`
	MustChangePassword bool       `json:"must_change_password"`
	CreatedAt          time.Time  `json:"created_at"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == UserRoleAdmin
}

// UserFilter narrows user listings. Zero values mean no filtering.
type UserFilter struct {
	CourseID *uuid.UUID
	CohortID *uuid.UUID
	Role     UserRole
	Search   string
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}
